package policy

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/pankaj-dahiya-devops/manifest-policy/internal/models"
)

// Validate checks cfg for semantic correctness and returns all validation errors
// found. An empty slice means the config is valid.
//
// Checks performed:
//   - version must be 1
//   - rule IDs must appear in availableRuleIDs
//   - rule severity overrides must be ERROR or WARNING if set
//   - standards values must be usable (see validateStandards)
//
// All errors are collected before returning; Validate never stops at the first error.
func Validate(cfg *PolicyConfig, availableRuleIDs []string) []error {
	if cfg == nil {
		return []error{fmt.Errorf("policy config is nil")}
	}

	knownIDs := make(map[string]struct{}, len(availableRuleIDs))
	for _, id := range availableRuleIDs {
		knownIDs[id] = struct{}{}
	}

	var errs []error

	if cfg.Version != 1 {
		errs = append(errs, fmt.Errorf("version: unsupported value %d; must be 1", cfg.Version))
	}

	// Map iteration order is random; sort so the error list is stable.
	ruleIDs := make([]string, 0, len(cfg.Rules))
	for id := range cfg.Rules {
		ruleIDs = append(ruleIDs, id)
	}
	sort.Strings(ruleIDs)

	for _, ruleID := range ruleIDs {
		rcfg := cfg.Rules[ruleID]
		if _, ok := knownIDs[ruleID]; !ok {
			errs = append(errs, fmt.Errorf("rules.%s: unknown rule ID", ruleID))
		}
		if rcfg.Severity != "" {
			if _, err := models.ParseSeverity(rcfg.Severity); err != nil {
				errs = append(errs, fmt.Errorf("rules.%s.severity: %w", ruleID, err))
			}
		}
	}

	errs = append(errs, validateStandards(cfg.Standards)...)
	return errs
}

// validateStandards checks the standards section. Nil values are defaults
// and always valid.
func validateStandards(sc StandardsConfig) []error {
	var errs []error

	for i, l := range sc.RequiredLabels {
		if strings.TrimSpace(l) == "" {
			errs = append(errs, fmt.Errorf("standards.required_labels[%d]: empty label key", i))
		}
	}

	if sc.NamePattern != nil {
		if _, err := regexp.Compile(*sc.NamePattern); err != nil {
			errs = append(errs, fmt.Errorf("standards.name_pattern: %w", err))
		}
	}

	if sc.ApprovedRegistryPrefixes != nil && len(sc.ApprovedRegistryPrefixes) == 0 {
		errs = append(errs, fmt.Errorf("standards.approved_registry_prefixes: must list at least one prefix; disable IMAGE_UNAPPROVED_REGISTRY under rules to skip the check"))
	}
	for i, p := range sc.ApprovedRegistryPrefixes {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, fmt.Errorf("standards.approved_registry_prefixes[%d]: empty prefix", i))
		}
	}

	if sc.WorkloadKinds != nil && len(sc.WorkloadKinds) == 0 {
		errs = append(errs, fmt.Errorf("standards.workload_kinds: must list at least one kind"))
	}

	kinds := make([]string, 0, len(sc.ObservabilityAnnotations))
	for kind := range sc.ObservabilityAnnotations {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		if kind == "" {
			errs = append(errs, fmt.Errorf("standards.observability_annotations: empty kind"))
		}
		for i, key := range sc.ObservabilityAnnotations[kind] {
			if strings.TrimSpace(key) == "" {
				errs = append(errs, fmt.Errorf("standards.observability_annotations.%s[%d]: empty annotation key", kind, i))
			}
		}
	}

	if d := sc.MinInitialDelaySeconds.Liveness; d != nil && *d < 0 {
		errs = append(errs, fmt.Errorf("standards.min_initial_delay_seconds.liveness: must be >= 0, got %d", *d))
	}
	if d := sc.MinInitialDelaySeconds.Readiness; d != nil && *d < 0 {
		errs = append(errs, fmt.Errorf("standards.min_initial_delay_seconds.readiness: must be >= 0, got %d", *d))
	}

	return errs
}
