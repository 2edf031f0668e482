package policy

import (
	"github.com/pankaj-dahiya-devops/manifest-policy/internal/models"
)

// ShouldFail reports whether the run should exit with a failure status.
//
// It returns true when:
//   - the report did not pass (at least one ERROR finding), or
//   - enforcement.fail_on_warning is set and at least one WARNING was reported.
//
// A nil cfg means only ERROR findings fail the run.
func ShouldFail(report *models.Report, cfg *PolicyConfig) bool {
	if report == nil {
		return false
	}
	if !report.Passed {
		return true
	}
	if cfg == nil || !cfg.Enforcement.FailOnWarning {
		return false
	}
	return report.Summary.WarningFindings > 0
}
