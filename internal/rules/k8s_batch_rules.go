package rules

import (
	"fmt"

	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/pankaj-dahiya-devops/manifest-policy/internal/manifest"
	"github.com/pankaj-dahiya-devops/manifest-policy/internal/models"
	"github.com/pankaj-dahiya-devops/manifest-policy/internal/policy"
)

// Rules in this file read RuleContext.Documents, the whole batch, in
// addition to the document under evaluation.

// ── SERVICE_SELECTOR_UNMATCHED ───────────────────────────────────────────────

// ServiceSelectorUnmatchedRule fires for a Service whose selector matches the
// pod template labels of no workload in the batch. Services without a
// selector (headless or externally managed endpoints) are skipped. A document
// without a namespace matches any namespace.
type ServiceSelectorUnmatchedRule struct{}

func (r ServiceSelectorUnmatchedRule) ID() string { return "SERVICE_SELECTOR_UNMATCHED" }
func (r ServiceSelectorUnmatchedRule) Name() string {
	return "Service selectors match a workload in the batch"
}
func (r ServiceSelectorUnmatchedRule) Severity() models.Severity { return models.SeverityWarning }

func (r ServiceSelectorUnmatchedRule) AppliesTo(doc *manifest.Document, _ *policy.Options) bool {
	return doc.Kind == "Service"
}

func (r ServiceSelectorUnmatchedRule) Evaluate(ctx RuleContext) ([]models.Finding, error) {
	doc := ctx.Document
	opts := ctx.Opts()
	p := manifest.Path{"spec", "selector"}

	sel, ok := manifest.GetMapping(doc.Root, p...)
	if !ok || len(sel.Fields) == 0 {
		return nil, nil
	}
	set := labels.Set(sel.StringMap())
	selector := labels.SelectorFromSet(set)

	for _, other := range ctx.Documents {
		if !opts.IsWorkload(other.Kind) || !sameNamespace(doc, other) {
			continue
		}
		podLabels, ok := manifest.GetMapping(other.Root, podLabelsPath(other.Kind)...)
		if !ok {
			continue
		}
		if selector.Matches(labels.Set(podLabels.StringMap())) {
			return nil, nil
		}
	}
	return []models.Finding{
		newFinding(r, doc, p, "selector %s matches no workload pod template in this batch", set.String()),
	}, nil
}

func sameNamespace(a, b *manifest.Document) bool {
	na, nb := a.Namespace(), b.Namespace()
	return na == "" || nb == "" || na == nb
}

// ── DUPLICATE_RESOURCE ───────────────────────────────────────────────────────

// DuplicateResourceRule fires on every occurrence of an object after the
// first with the same API group, kind, namespace and name. Applying the batch
// would silently let the later definition win.
type DuplicateResourceRule struct{}

func (r DuplicateResourceRule) ID() string { return "DUPLICATE_RESOURCE" }
func (r DuplicateResourceRule) Name() string {
	return "Objects are defined once per batch"
}
func (r DuplicateResourceRule) Severity() models.Severity { return models.SeverityError }

func (r DuplicateResourceRule) AppliesTo(doc *manifest.Document, _ *policy.Options) bool {
	return doc.Kind != "" && doc.Name() != ""
}

func (r DuplicateResourceRule) Evaluate(ctx RuleContext) ([]models.Finding, error) {
	doc := ctx.Document
	key := objectKey(doc)
	for _, other := range ctx.Documents {
		if other == doc {
			// Reached the document itself before any earlier twin.
			return nil, nil
		}
		if other.Kind == "" || objectKey(other) != key {
			continue
		}
		return []models.Finding{
			newFinding(r, doc, manifest.Path{"metadata", "name"},
				"%s duplicates the object defined in %s (document %d)", key, other.SourceID, other.Index),
		}, nil
	}
	return nil, nil
}

// objectKey identifies an object the way the API server does. The version
// is not part of the identity: apps/v1 and apps/v1beta2 name the same object.
func objectKey(doc *manifest.Document) string {
	group := doc.APIVersion()
	if gv, err := schema.ParseGroupVersion(group); err == nil {
		group = gv.Group
	}
	kind := doc.Kind
	if group != "" {
		kind += "." + group
	}
	ns := doc.Namespace()
	if ns == "" {
		ns = "default"
	}
	return fmt.Sprintf("%s %s/%s", kind, ns, doc.Name())
}
