package policy

import (
	"testing"

	"github.com/pankaj-dahiya-devops/manifest-policy/internal/models"
)

func reportWith(findings ...models.Finding) *models.Report {
	return &models.Report{
		Passed:   !models.HasErrors(findings),
		Summary:  models.ComputeSummary(findings),
		Findings: findings,
	}
}

func TestShouldFail_NilReport(t *testing.T) {
	if ShouldFail(nil, nil) {
		t.Error("nil report must not fail")
	}
}

func TestShouldFail_ErrorFindingFails(t *testing.T) {
	r := reportWith(models.Finding{Severity: models.SeverityError})
	if !ShouldFail(r, nil) {
		t.Error("error finding must fail with nil cfg")
	}
}

func TestShouldFail_WarningsPassByDefault(t *testing.T) {
	r := reportWith(models.Finding{Severity: models.SeverityWarning})
	if ShouldFail(r, nil) {
		t.Error("warnings must not fail with nil cfg")
	}
	if ShouldFail(r, &PolicyConfig{}) {
		t.Error("warnings must not fail without fail_on_warning")
	}
}

func TestShouldFail_FailOnWarning(t *testing.T) {
	cfg := &PolicyConfig{Enforcement: EnforcementConfig{FailOnWarning: true}}

	if !ShouldFail(reportWith(models.Finding{Severity: models.SeverityWarning}), cfg) {
		t.Error("warning must fail when fail_on_warning is set")
	}
	r := reportWith(models.Finding{Severity: models.SeverityWarning})
	if !r.Passed {
		t.Error("fail_on_warning must not change Report.Passed")
	}
	if ShouldFail(reportWith(), cfg) {
		t.Error("clean report must pass")
	}
}
