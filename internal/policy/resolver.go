package policy

import (
	"github.com/pankaj-dahiya-devops/manifest-policy/internal/models"
)

// RuleEnabled reports whether ruleID should run. Rules are enabled unless
// the policy explicitly disables them. Safe to call with cfg == nil.
func RuleEnabled(ruleID string, cfg *PolicyConfig) bool {
	if cfg == nil {
		return true
	}
	rc, ok := cfg.Rules[ruleID]
	if !ok || rc.Enabled == nil {
		return true
	}
	return *rc.Enabled
}

// ApplyPolicy applies per-rule severity overrides to findings and drops
// findings of disabled rules. The input slice is not modified.
func ApplyPolicy(findings []models.Finding, cfg *PolicyConfig) []models.Finding {
	if cfg == nil {
		return findings
	}

	result := make([]models.Finding, 0, len(findings))

	for _, f := range findings {
		ruleCfg, hasRule := cfg.Rules[f.RuleID]

		// Rule-level disable
		if hasRule && ruleCfg.Enabled != nil && !*ruleCfg.Enabled {
			continue
		}

		// Severity override
		if hasRule && ruleCfg.Severity != "" {
			if sev, err := models.ParseSeverity(ruleCfg.Severity); err == nil {
				f.Severity = sev
			}
		}

		result = append(result, f)
	}

	return result
}
