package rules

import (
	"fmt"
	"sync"

	"github.com/pankaj-dahiya-devops/manifest-policy/internal/manifest"
	"github.com/pankaj-dahiya-devops/manifest-policy/internal/models"
	"github.com/pankaj-dahiya-devops/manifest-policy/internal/policy"
)

// RuleContext carries everything a rule may look at for one evaluation.
// Rules must never perform I/O, read the clock or the environment, or keep
// references to the context after Evaluate returns.
type RuleContext struct {
	// Document is the document under evaluation.
	Document *manifest.Document

	// Documents is the whole batch in canonical order (source order, then
	// document index). Only cross-document rules read it. Read-only.
	Documents []*manifest.Document

	// Options holds the compiled organizational standards. May be nil;
	// rules must treat nil as "use defaults" (see RuleContext.Opts).
	Options *policy.Options
}

// defaultOptions is shared by every context without options; rules only
// read it.
var defaultOptions = sync.OnceValue(policy.DefaultOptions)

// Opts returns the context options, falling back to the defaults.
func (c RuleContext) Opts() *policy.Options {
	if c.Options == nil {
		return defaultOptions()
	}
	return c.Options
}

// Rule is a single deterministic policy check.
// Rules must be stateless, pure and safe to call concurrently: the same
// context always produces the same findings in the same order.
type Rule interface {
	// ID returns the unique, stable identifier for this rule (e.g. "IMAGE_MUTABLE_TAG").
	ID() string

	// Name returns a short human-readable description.
	Name() string

	// Severity returns the severity of the findings this rule emits before
	// any policy override.
	Severity() models.Severity

	// AppliesTo reports whether the rule should run against doc.
	AppliesTo(doc *manifest.Document, opts *policy.Options) bool

	// Evaluate inspects ctx.Document and returns zero or more findings.
	// A returned error means the rule itself failed, not that the document
	// is non-compliant.
	Evaluate(ctx RuleContext) ([]models.Finding, error)
}

// RuleRegistry manages the ordered set of active rules.
type RuleRegistry interface {
	// Register adds a rule to the registry. Returns *DuplicateRuleError when
	// the ID is already registered.
	Register(rule Rule) error

	// All returns all registered rules in registration order.
	All() []Rule

	// RulesFor returns the rules applicable to doc, in registration order.
	RulesFor(doc *manifest.Document, opts *policy.Options) []Rule
}

// RuleExecutionError records a rule that failed or panicked while evaluating
// a document. The engine converts it into a single ERROR finding; it never
// aborts the run.
type RuleExecutionError struct {
	RuleID        string
	SourceID      string
	DocumentIndex int
	Err           error
}

func (e *RuleExecutionError) Error() string {
	return fmt.Sprintf("rule %s failed on %s document %d: %v", e.RuleID, e.SourceID, e.DocumentIndex, e.Err)
}

func (e *RuleExecutionError) Unwrap() error { return e.Err }

// newFinding builds a finding attributed to rule r at path inside doc.
func newFinding(r Rule, doc *manifest.Document, path manifest.Path, format string, args ...any) models.Finding {
	f := models.Finding{
		RuleID:        r.ID(),
		Severity:      r.Severity(),
		SourceID:      doc.SourceID,
		DocumentIndex: doc.Index,
		Resource:      doc.Ref(),
		Message:       fmt.Sprintf(format, args...),
	}
	if len(path) > 0 {
		f.FieldPath = path.String()
	}
	f.ID = models.Fingerprint(f)
	return f
}
