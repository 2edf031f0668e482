package rules

import (
	"strings"

	"k8s.io/apimachinery/pkg/util/validation"

	"github.com/pankaj-dahiya-devops/manifest-policy/internal/manifest"
	"github.com/pankaj-dahiya-devops/manifest-policy/internal/models"
)

// ── METADATA_REQUIRED_LABELS ─────────────────────────────────────────────────

// MetadataRequiredLabelsRule emits one finding per required label key missing
// from metadata.labels, in the configured order.
type MetadataRequiredLabelsRule struct{ anyKindRule }

func (r MetadataRequiredLabelsRule) ID() string                { return "METADATA_REQUIRED_LABELS" }
func (r MetadataRequiredLabelsRule) Name() string              { return "Metadata carries the required labels" }
func (r MetadataRequiredLabelsRule) Severity() models.Severity { return models.SeverityError }

func (r MetadataRequiredLabelsRule) Evaluate(ctx RuleContext) ([]models.Finding, error) {
	doc := ctx.Document
	labels := doc.Labels()

	var findings []models.Finding
	for _, key := range ctx.Opts().RequiredLabels {
		if _, ok := labels[key]; ok {
			continue
		}
		findings = append(findings, newFinding(r, doc, manifest.Path{"metadata", "labels", key},
			"missing required label %q", key))
	}
	return findings, nil
}

// ── METADATA_NAME_CONVENTION ─────────────────────────────────────────────────

// MetadataNameConventionRule checks metadata.name against the configured
// naming pattern and against the DNS-1123 subdomain rules every Kubernetes
// object name must satisfy.
type MetadataNameConventionRule struct{ anyKindRule }

func (r MetadataNameConventionRule) ID() string { return "METADATA_NAME_CONVENTION" }
func (r MetadataNameConventionRule) Name() string {
	return "Object names follow the naming convention"
}
func (r MetadataNameConventionRule) Severity() models.Severity { return models.SeverityError }

func (r MetadataNameConventionRule) Evaluate(ctx RuleContext) ([]models.Finding, error) {
	doc := ctx.Document
	p := manifest.Path{"metadata", "name"}
	name := doc.Name()
	if name == "" {
		return []models.Finding{newFinding(r, doc, p, "metadata.name is missing")}, nil
	}

	var findings []models.Finding
	if errs := validation.IsDNS1123Subdomain(name); len(errs) > 0 {
		findings = append(findings, newFinding(r, doc, p, "name %q is not a valid object name: %s", name, strings.Join(errs, "; ")))
	}
	if pattern := ctx.Opts().NamePattern; pattern != nil && !pattern.MatchString(name) {
		findings = append(findings, newFinding(r, doc, p,
			"name %q does not follow the naming convention %s", name, pattern.String()))
	}
	return findings, nil
}
