package rules

import (
	"fmt"

	"github.com/pankaj-dahiya-devops/manifest-policy/internal/manifest"
	"github.com/pankaj-dahiya-devops/manifest-policy/internal/policy"
)

// DuplicateRuleError is returned when two rules share an ID. It indicates a
// wiring mistake, so callers treat it as fatal at startup.
type DuplicateRuleError struct {
	ID string
}

func (e *DuplicateRuleError) Error() string {
	return fmt.Sprintf("duplicate rule ID: %q", e.ID)
}

// DefaultRuleRegistry is a simple, ordered, in-memory registry.
// Rules are evaluated and reported in registration order.
type DefaultRuleRegistry struct {
	rules []Rule
	index map[string]struct{}
}

// NewDefaultRuleRegistry returns an empty registry ready for rule registration.
func NewDefaultRuleRegistry() *DefaultRuleRegistry {
	return &DefaultRuleRegistry{
		index: make(map[string]struct{}),
	}
}

// Register adds rule to the registry. Registering the same ID twice returns
// a *DuplicateRuleError and leaves the registry unchanged.
func (r *DefaultRuleRegistry) Register(rule Rule) error {
	if _, exists := r.index[rule.ID()]; exists {
		return &DuplicateRuleError{ID: rule.ID()}
	}
	r.rules = append(r.rules, rule)
	r.index[rule.ID()] = struct{}{}
	return nil
}

// MustRegister is Register for static wiring; it panics on a duplicate ID.
func (r *DefaultRuleRegistry) MustRegister(rule Rule) {
	if err := r.Register(rule); err != nil {
		panic(err.Error())
	}
}

// All returns all registered rules in registration order.
func (r *DefaultRuleRegistry) All() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// IDs returns the registered rule IDs in registration order.
func (r *DefaultRuleRegistry) IDs() []string {
	ids := make([]string, len(r.rules))
	for i, rule := range r.rules {
		ids[i] = rule.ID()
	}
	return ids
}

// RulesFor returns the rules whose AppliesTo accepts doc, preserving
// registration order.
func (r *DefaultRuleRegistry) RulesFor(doc *manifest.Document, opts *policy.Options) []Rule {
	if opts == nil {
		opts = defaultOptions()
	}
	var out []Rule
	for _, rule := range r.rules {
		if rule.AppliesTo(doc, opts) {
			out = append(out, rule)
		}
	}
	return out
}
