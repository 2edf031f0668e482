package rules

import (
	"fmt"

	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/kubernetes/scheme"

	"github.com/pankaj-dahiya-devops/manifest-policy/internal/manifest"
	"github.com/pankaj-dahiya-devops/manifest-policy/internal/models"
	"github.com/pankaj-dahiya-devops/manifest-policy/internal/policy"
)

// ── DOCUMENT_STRUCTURE ───────────────────────────────────────────────────────

// DocumentStructureRule requires every document to be a mapping carrying
// apiVersion, kind and metadata. One finding is emitted per missing field.
type DocumentStructureRule struct{}

func (r DocumentStructureRule) ID() string                { return "DOCUMENT_STRUCTURE" }
func (r DocumentStructureRule) Name() string              { return "Document declares apiVersion, kind and metadata" }
func (r DocumentStructureRule) Severity() models.Severity { return models.SeverityError }

func (r DocumentStructureRule) AppliesTo(*manifest.Document, *policy.Options) bool { return true }

func (r DocumentStructureRule) Evaluate(ctx RuleContext) ([]models.Finding, error) {
	doc := ctx.Document
	if doc.Root == nil || doc.Root.Kind != manifest.MappingNode {
		kind := "empty"
		if doc.Root != nil {
			kind = doc.Root.Kind.String()
		}
		return []models.Finding{
			newFinding(r, doc, nil, "document root is a %s; a manifest must be a mapping", kind),
		}, nil
	}

	var findings []models.Finding
	for _, field := range []string{"apiVersion", "kind"} {
		v, ok := manifest.Get(doc.Root, field)
		switch {
		case !ok || v.IsNull():
			findings = append(findings, newFinding(r, doc, manifest.Path{field}, "missing required field %s", field))
		case !isNonEmptyString(v):
			findings = append(findings, newFinding(r, doc, manifest.Path{field}, "%s must be a non-empty string", field))
		}
	}
	meta, ok := manifest.Get(doc.Root, "metadata")
	switch {
	case !ok || meta.IsNull():
		findings = append(findings, newFinding(r, doc, manifest.Path{"metadata"}, "missing required field metadata"))
	case meta.Kind != manifest.MappingNode:
		findings = append(findings, newFinding(r, doc, manifest.Path{"metadata"}, "metadata must be a mapping, got %s", meta.Kind))
	}
	return findings, nil
}

func isNonEmptyString(n *manifest.Node) bool {
	s, ok := n.AsString()
	return ok && s != ""
}

// ── DOCUMENT_TYPED_SCHEMA ────────────────────────────────────────────────────

// DocumentTypedSchemaRule converts documents of kinds known to the client-go
// scheme into their typed API object, rejecting unknown fields and values of
// the wrong type. Kinds the scheme does not know (CRDs, typos) are skipped;
// this is a typed decode, not JSON-Schema validation.
type DocumentTypedSchemaRule struct{}

func (r DocumentTypedSchemaRule) ID() string                { return "DOCUMENT_TYPED_SCHEMA" }
func (r DocumentTypedSchemaRule) Name() string              { return "Document decodes into its typed Kubernetes API object" }
func (r DocumentTypedSchemaRule) Severity() models.Severity { return models.SeverityWarning }

func (r DocumentTypedSchemaRule) AppliesTo(doc *manifest.Document, _ *policy.Options) bool {
	gvk, ok := documentGVK(doc)
	return ok && scheme.Scheme.Recognizes(gvk)
}

func (r DocumentTypedSchemaRule) Evaluate(ctx RuleContext) ([]models.Finding, error) {
	doc := ctx.Document
	gvk, ok := documentGVK(doc)
	if !ok {
		return nil, nil
	}
	obj, err := scheme.Scheme.New(gvk)
	if err != nil {
		return nil, fmt.Errorf("instantiate %s: %w", gvk, err)
	}
	u, ok := doc.Root.Interface().(map[string]any)
	if !ok {
		return nil, nil
	}
	if err := runtime.DefaultUnstructuredConverter.FromUnstructuredWithValidation(u, obj, true); err != nil {
		return []models.Finding{
			newFinding(r, doc, nil, "document does not match the %s %s schema: %v", doc.APIVersion(), doc.Kind, err),
		}, nil
	}
	return nil, nil
}

// documentGVK resolves the group/version/kind a document declares.
func documentGVK(doc *manifest.Document) (schema.GroupVersionKind, bool) {
	if doc.Kind == "" || doc.Root == nil || doc.Root.Kind != manifest.MappingNode {
		return schema.GroupVersionKind{}, false
	}
	gv, err := schema.ParseGroupVersion(doc.APIVersion())
	if err != nil || gv.Version == "" {
		return schema.GroupVersionKind{}, false
	}
	return gv.WithKind(doc.Kind), true
}
