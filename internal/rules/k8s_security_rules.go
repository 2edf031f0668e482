package rules

import (
	"strings"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/pankaj-dahiya-devops/manifest-policy/internal/manifest"
	"github.com/pankaj-dahiya-devops/manifest-policy/internal/models"
)

// capabilityAll is the only accepted capabilities.drop set.
const capabilityAll corev1.Capability = "ALL"

// ── POD_RUN_AS_NON_ROOT ──────────────────────────────────────────────────────

// PodRunAsNonRootRule requires securityContext.runAsNonRoot: true on the pod.
type PodRunAsNonRootRule struct{ workloadRule }

func (r PodRunAsNonRootRule) ID() string                { return "POD_RUN_AS_NON_ROOT" }
func (r PodRunAsNonRootRule) Name() string              { return "Pod security context enforces runAsNonRoot" }
func (r PodRunAsNonRootRule) Severity() models.Severity { return models.SeverityError }

func (r PodRunAsNonRootRule) Evaluate(ctx RuleContext) ([]models.Finding, error) {
	doc := ctx.Document
	p := podSpecPath(doc.Kind).Child("securityContext", "runAsNonRoot")
	switch readBool(doc.Root, p...) {
	case boolAbsent:
		return []models.Finding{newFinding(r, doc, p, "pod securityContext does not set runAsNonRoot")}, nil
	case boolFalse:
		return []models.Finding{newFinding(r, doc, p, "pod securityContext sets runAsNonRoot: false")}, nil
	case boolInvalid:
		return []models.Finding{newFinding(r, doc, p, "pod securityContext.runAsNonRoot must be a boolean")}, nil
	}
	return nil, nil
}

// ── CONTAINER_RUN_AS_NON_ROOT ────────────────────────────────────────────────

// ContainerRunAsNonRootRule requires every container to run as non-root. The
// effective value is used: a container without its own runAsNonRoot inherits
// the pod's.
type ContainerRunAsNonRootRule struct{ workloadRule }

func (r ContainerRunAsNonRootRule) ID() string                { return "CONTAINER_RUN_AS_NON_ROOT" }
func (r ContainerRunAsNonRootRule) Name() string              { return "Containers run as non-root" }
func (r ContainerRunAsNonRootRule) Severity() models.Severity { return models.SeverityError }

func (r ContainerRunAsNonRootRule) Evaluate(ctx RuleContext) ([]models.Finding, error) {
	doc := ctx.Document
	podValue := readBool(doc.Root, podSpecPath(doc.Kind).Child("securityContext", "runAsNonRoot")...)

	var findings []models.Finding
	for _, c := range containersOf(doc, true) {
		p := c.Path.Child("securityContext", "runAsNonRoot")
		switch readBool(doc.Root, p...) {
		case boolTrue:
			continue
		case boolFalse:
			findings = append(findings, newFinding(r, doc, p, "%s sets runAsNonRoot: false", c.label()))
		case boolInvalid:
			findings = append(findings, newFinding(r, doc, p, "%s securityContext.runAsNonRoot must be a boolean", c.label()))
		case boolAbsent:
			switch podValue {
			case boolTrue:
				continue
			case boolFalse:
				findings = append(findings, newFinding(r, doc, p, "%s inherits runAsNonRoot: false from the pod", c.label()))
			default:
				findings = append(findings, newFinding(r, doc, p,
					"%s does not set runAsNonRoot and the pod does not enforce it", c.label()))
			}
		}
	}
	return findings, nil
}

// ── CONTAINER_READ_ONLY_ROOT_FS ──────────────────────────────────────────────

// ContainerReadOnlyRootFSRule requires readOnlyRootFilesystem: true. An
// explicit false and a missing field are reported with different messages.
type ContainerReadOnlyRootFSRule struct{ workloadRule }

func (r ContainerReadOnlyRootFSRule) ID() string                { return "CONTAINER_READ_ONLY_ROOT_FS" }
func (r ContainerReadOnlyRootFSRule) Name() string              { return "Containers use a read-only root filesystem" }
func (r ContainerReadOnlyRootFSRule) Severity() models.Severity { return models.SeverityError }

func (r ContainerReadOnlyRootFSRule) Evaluate(ctx RuleContext) ([]models.Finding, error) {
	doc := ctx.Document
	var findings []models.Finding
	for _, c := range containersOf(doc, true) {
		p := c.Path.Child("securityContext", "readOnlyRootFilesystem")
		switch readBool(doc.Root, p...) {
		case boolAbsent:
			findings = append(findings, newFinding(r, doc, p, "%s does not set readOnlyRootFilesystem", c.label()))
		case boolFalse:
			findings = append(findings, newFinding(r, doc, p, "%s sets readOnlyRootFilesystem: false", c.label()))
		case boolInvalid:
			findings = append(findings, newFinding(r, doc, p, "%s securityContext.readOnlyRootFilesystem must be a boolean", c.label()))
		}
	}
	return findings, nil
}

// ── CONTAINER_DROP_ALL_CAPABILITIES ──────────────────────────────────────────

// ContainerDropAllCapabilitiesRule requires capabilities.drop to be exactly
// [ALL]. Supersets such as [ALL, NET_ADMIN] are rejected too: the policy asks
// for one canonical form.
type ContainerDropAllCapabilitiesRule struct{ workloadRule }

func (r ContainerDropAllCapabilitiesRule) ID() string { return "CONTAINER_DROP_ALL_CAPABILITIES" }
func (r ContainerDropAllCapabilitiesRule) Name() string {
	return "Containers drop exactly the ALL capability set"
}
func (r ContainerDropAllCapabilitiesRule) Severity() models.Severity { return models.SeverityError }

func (r ContainerDropAllCapabilitiesRule) Evaluate(ctx RuleContext) ([]models.Finding, error) {
	doc := ctx.Document
	want := sets.New(string(capabilityAll))

	var findings []models.Finding
	for _, c := range containersOf(doc, true) {
		p := c.Path.Child("securityContext", "capabilities", "drop")
		v, ok := manifest.Get(doc.Root, p...)
		if !ok || v.IsNull() {
			findings = append(findings, newFinding(r, doc, p, "%s does not drop capabilities; want drop: [ALL]", c.label()))
			continue
		}
		if v.Kind != manifest.SequenceNode {
			findings = append(findings, newFinding(r, doc, p, "%s capabilities.drop must be a list", c.label()))
			continue
		}
		got := sets.New[string]()
		for _, item := range v.Items {
			s, _ := item.Text()
			got.Insert(s)
		}
		if !got.Equal(want) {
			findings = append(findings, newFinding(r, doc, p,
				"%s drops [%s]; want exactly [ALL]", c.label(), strings.Join(sets.List(got), ", ")))
		}
	}
	return findings, nil
}

// ── POD_SECCOMP_RUNTIME_DEFAULT ──────────────────────────────────────────────

// PodSeccompRuntimeDefaultRule requires the pod seccomp profile type to be
// RuntimeDefault and rejects containers that override it with another type.
type PodSeccompRuntimeDefaultRule struct{ workloadRule }

func (r PodSeccompRuntimeDefaultRule) ID() string                { return "POD_SECCOMP_RUNTIME_DEFAULT" }
func (r PodSeccompRuntimeDefaultRule) Name() string              { return "Pod uses the RuntimeDefault seccomp profile" }
func (r PodSeccompRuntimeDefaultRule) Severity() models.Severity { return models.SeverityError }

func (r PodSeccompRuntimeDefaultRule) Evaluate(ctx RuleContext) ([]models.Finding, error) {
	doc := ctx.Document
	want := string(corev1.SeccompProfileTypeRuntimeDefault)

	var findings []models.Finding
	p := podSpecPath(doc.Kind).Child("securityContext", "seccompProfile", "type")
	v, ok := manifest.Get(doc.Root, p...)
	if !ok || v.IsNull() {
		findings = append(findings, newFinding(r, doc, p, "pod securityContext does not set seccompProfile.type; want %s", want))
	} else if s, _ := v.Text(); s != want {
		findings = append(findings, newFinding(r, doc, p, "pod seccompProfile.type is %q; want %s", s, want))
	}

	for _, c := range containersOf(doc, true) {
		cp := c.Path.Child("securityContext", "seccompProfile", "type")
		v, ok := manifest.Get(doc.Root, cp...)
		if !ok || v.IsNull() {
			continue
		}
		if s, _ := v.Text(); s != want {
			findings = append(findings, newFinding(r, doc, cp, "%s overrides seccompProfile.type with %q; want %s", c.label(), s, want))
		}
	}
	return findings, nil
}

// ── CONTAINER_NO_PRIVILEGE_ESCALATION ────────────────────────────────────────

// ContainerNoPrivilegeEscalationRule requires allowPrivilegeEscalation to be
// explicitly false; the Kubernetes default allows escalation.
type ContainerNoPrivilegeEscalationRule struct{ workloadRule }

func (r ContainerNoPrivilegeEscalationRule) ID() string { return "CONTAINER_NO_PRIVILEGE_ESCALATION" }
func (r ContainerNoPrivilegeEscalationRule) Name() string {
	return "Containers explicitly deny privilege escalation"
}
func (r ContainerNoPrivilegeEscalationRule) Severity() models.Severity { return models.SeverityError }

func (r ContainerNoPrivilegeEscalationRule) Evaluate(ctx RuleContext) ([]models.Finding, error) {
	doc := ctx.Document
	var findings []models.Finding
	for _, c := range containersOf(doc, true) {
		p := c.Path.Child("securityContext", "allowPrivilegeEscalation")
		switch readBool(doc.Root, p...) {
		case boolAbsent:
			findings = append(findings, newFinding(r, doc, p, "%s does not set allowPrivilegeEscalation: false", c.label()))
		case boolTrue:
			findings = append(findings, newFinding(r, doc, p, "%s sets allowPrivilegeEscalation: true", c.label()))
		case boolInvalid:
			findings = append(findings, newFinding(r, doc, p, "%s securityContext.allowPrivilegeEscalation must be a boolean", c.label()))
		}
	}
	return findings, nil
}

// ── CONTAINER_PRIVILEGED ─────────────────────────────────────────────────────

// ContainerPrivilegedRule fires for each container with
// securityContext.privileged: true. An absent field is compliant.
type ContainerPrivilegedRule struct{ workloadRule }

func (r ContainerPrivilegedRule) ID() string                { return "CONTAINER_PRIVILEGED" }
func (r ContainerPrivilegedRule) Name() string              { return "Containers do not run privileged" }
func (r ContainerPrivilegedRule) Severity() models.Severity { return models.SeverityError }

func (r ContainerPrivilegedRule) Evaluate(ctx RuleContext) ([]models.Finding, error) {
	doc := ctx.Document
	var findings []models.Finding
	for _, c := range containersOf(doc, true) {
		p := c.Path.Child("securityContext", "privileged")
		if readBool(doc.Root, p...) == boolTrue {
			findings = append(findings, newFinding(r, doc, p, "%s runs privileged", c.label()))
		}
	}
	return findings, nil
}
