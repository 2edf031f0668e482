package rules

import (
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/pankaj-dahiya-devops/manifest-policy/internal/manifest"
	"github.com/pankaj-dahiya-devops/manifest-policy/internal/models"
)

// governedResources lists the resources every container must request and
// limit, in reporting order.
var governedResources = []corev1.ResourceName{corev1.ResourceCPU, corev1.ResourceMemory}

// quantityState classifies a resource quantity field.
type quantityState int

const (
	quantityAbsent quantityState = iota
	quantityValid
	quantityInvalid
)

// readQuantity parses the quantity at path. Numeric scalars such as
// `cpu: 1` are accepted in their text form.
func readQuantity(n *manifest.Node, path manifest.Path) (resource.Quantity, quantityState) {
	v, ok := manifest.Get(n, path...)
	if !ok || v.IsNull() {
		return resource.Quantity{}, quantityAbsent
	}
	text, ok := v.Text()
	if !ok {
		return resource.Quantity{}, quantityInvalid
	}
	q, err := resource.ParseQuantity(text)
	if err != nil {
		return resource.Quantity{}, quantityInvalid
	}
	return q, quantityValid
}

// ── CONTAINER_RESOURCES ──────────────────────────────────────────────────────

// ContainerResourcesRule requires CPU and memory under both resources.requests
// and resources.limits. Each missing or unparsable value is its own finding,
// so a container with no resources block yields four.
type ContainerResourcesRule struct{ workloadRule }

func (r ContainerResourcesRule) ID() string                { return "CONTAINER_RESOURCES" }
func (r ContainerResourcesRule) Name() string              { return "Containers declare CPU and memory requests and limits" }
func (r ContainerResourcesRule) Severity() models.Severity { return models.SeverityError }

func (r ContainerResourcesRule) Evaluate(ctx RuleContext) ([]models.Finding, error) {
	doc := ctx.Document
	var findings []models.Finding
	for _, c := range containersOf(doc, true) {
		for _, section := range []string{"requests", "limits"} {
			for _, res := range governedResources {
				p := c.Path.Child("resources", section, string(res))
				_, state := readQuantity(doc.Root, p)
				switch state {
				case quantityAbsent:
					findings = append(findings, newFinding(r, doc, p,
						"%s is missing resources.%s.%s", c.label(), section, res))
				case quantityInvalid:
					v, _ := manifest.Get(doc.Root, p...)
					text, _ := v.Text()
					findings = append(findings, newFinding(r, doc, p,
						"%s has an invalid resources.%s.%s quantity %q", c.label(), section, res, text))
				}
			}
		}
	}
	return findings, nil
}

// ── CONTAINER_REQUEST_EXCEEDS_LIMIT ──────────────────────────────────────────

// ContainerRequestExceedsLimitRule fires when a container requests more of a
// resource than its limit allows; the API server rejects such pods.
type ContainerRequestExceedsLimitRule struct{ workloadRule }

func (r ContainerRequestExceedsLimitRule) ID() string { return "CONTAINER_REQUEST_EXCEEDS_LIMIT" }
func (r ContainerRequestExceedsLimitRule) Name() string {
	return "Container resource requests do not exceed limits"
}
func (r ContainerRequestExceedsLimitRule) Severity() models.Severity { return models.SeverityError }

func (r ContainerRequestExceedsLimitRule) Evaluate(ctx RuleContext) ([]models.Finding, error) {
	doc := ctx.Document
	var findings []models.Finding
	for _, c := range containersOf(doc, true) {
		for _, res := range governedResources {
			reqPath := c.Path.Child("resources", "requests", string(res))
			req, reqState := readQuantity(doc.Root, reqPath)
			lim, limState := readQuantity(doc.Root, c.Path.Child("resources", "limits", string(res)))
			if reqState != quantityValid || limState != quantityValid {
				continue
			}
			if req.Cmp(lim) > 0 {
				findings = append(findings, newFinding(r, doc, reqPath,
					"%s requests %s %s but is limited to %s", c.label(), req.String(), res, lim.String()))
			}
		}
	}
	return findings, nil
}
