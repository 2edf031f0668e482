package policy

import (
	"testing"

	"github.com/pankaj-dahiya-devops/manifest-policy/internal/models"
)

func boolPtr(b bool) *bool { return &b }

func TestApplyPolicy_NilConfig(t *testing.T) {
	findings := []models.Finding{{RuleID: "A"}}
	if got := ApplyPolicy(findings, nil); len(got) != 1 {
		t.Fatalf("nil cfg must keep findings; got %d", len(got))
	}
}

func TestApplyPolicy_RuleDisabled(t *testing.T) {
	cfg := &PolicyConfig{
		Rules: map[string]RuleConfig{
			"IMAGE_MUTABLE_TAG": {Enabled: boolPtr(false)},
		},
	}

	findings := []models.Finding{
		{RuleID: "IMAGE_MUTABLE_TAG"},
		{RuleID: "IMAGE_UNAPPROVED_REGISTRY"},
	}

	result := ApplyPolicy(findings, cfg)

	if len(result) != 1 {
		t.Fatalf("expected 1 finding; got %d", len(result))
	}
	if result[0].RuleID != "IMAGE_UNAPPROVED_REGISTRY" {
		t.Fatalf("wrong finding kept: %s", result[0].RuleID)
	}
}

func TestApplyPolicy_SeverityOverride(t *testing.T) {
	cfg := &PolicyConfig{
		Rules: map[string]RuleConfig{
			"IMAGE_NOT_DIGEST_PINNED": {Severity: "warning"},
		},
	}

	findings := []models.Finding{
		{RuleID: "IMAGE_NOT_DIGEST_PINNED", Severity: models.SeverityError},
	}

	result := ApplyPolicy(findings, cfg)

	if result[0].Severity != models.SeverityWarning {
		t.Fatalf("expected severity override to WARNING; got %s", result[0].Severity)
	}
	if findings[0].Severity != models.SeverityError {
		t.Fatalf("input slice must not be modified")
	}
}

func TestRuleEnabled(t *testing.T) {
	cfg := &PolicyConfig{
		Rules: map[string]RuleConfig{
			"OFF":      {Enabled: boolPtr(false)},
			"ON":       {Enabled: boolPtr(true)},
			"SEV_ONLY": {Severity: "WARNING"},
		},
	}
	cases := map[string]bool{"OFF": false, "ON": true, "SEV_ONLY": true, "UNLISTED": true}
	for id, want := range cases {
		if got := RuleEnabled(id, cfg); got != want {
			t.Errorf("RuleEnabled(%q) = %v; want %v", id, got, want)
		}
	}
	if !RuleEnabled("ANY", nil) {
		t.Errorf("nil cfg must enable every rule")
	}
}
