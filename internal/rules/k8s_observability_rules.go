package rules

import (
	"github.com/pankaj-dahiya-devops/manifest-policy/internal/manifest"
	"github.com/pankaj-dahiya-devops/manifest-policy/internal/models"
	"github.com/pankaj-dahiya-devops/manifest-policy/internal/policy"
)

// ── OBSERVABILITY_ANNOTATIONS ────────────────────────────────────────────────

// ObservabilityAnnotationsRule requires the annotation keys configured for a
// document's kind. When an expected value is configured for a key, the
// annotation must equal it exactly.
type ObservabilityAnnotationsRule struct{}

func (r ObservabilityAnnotationsRule) ID() string { return "OBSERVABILITY_ANNOTATIONS" }
func (r ObservabilityAnnotationsRule) Name() string {
	return "Documents carry the observability annotations for their kind"
}
func (r ObservabilityAnnotationsRule) Severity() models.Severity { return models.SeverityError }

func (r ObservabilityAnnotationsRule) AppliesTo(doc *manifest.Document, opts *policy.Options) bool {
	return doc.Kind != "" && len(opts.ObservabilityAnnotations[doc.Kind]) > 0
}

func (r ObservabilityAnnotationsRule) Evaluate(ctx RuleContext) ([]models.Finding, error) {
	doc := ctx.Document
	opts := ctx.Opts()

	var findings []models.Finding
	for _, key := range opts.ObservabilityAnnotations[doc.Kind] {
		p := manifest.Path{"metadata", "annotations", key}
		v, ok := manifest.Get(doc.Root, p...)
		if !ok || v.IsNull() {
			findings = append(findings, newFinding(r, doc, p, "missing annotation %q", key))
			continue
		}
		want, hasExpected := opts.ObservabilityExpectedValues[key]
		if !hasExpected {
			continue
		}
		if got, _ := v.Text(); got != want {
			findings = append(findings, newFinding(r, doc, p, "annotation %q is %q; want %q", key, got, want))
		}
	}
	return findings, nil
}
