package rules_test

import (
	"testing"

	"github.com/pankaj-dahiya-devops/manifest-policy/internal/rules"
)

// ── POD_RUN_AS_NON_ROOT ──────────────────────────────────────────────────────

func TestPodRunAsNonRoot_AbsentAndFalseDiffer(t *testing.T) {
	absent := evaluate(t, rules.PodRunAsNonRootRule{}, parseDoc(t, deployment(`{containers: []}`)), nil)
	explicit := evaluate(t, rules.PodRunAsNonRootRule{}, parseDoc(t, deployment(`{securityContext: {runAsNonRoot: false}, containers: []}`)), nil)
	if len(absent) != 1 || len(explicit) != 1 {
		t.Fatalf("expected 1 finding each; got %d and %d", len(absent), len(explicit))
	}
	if absent[0].Message == explicit[0].Message {
		t.Errorf("absent and explicit false share message %q", absent[0].Message)
	}
	if absent[0].FieldPath != "spec.template.spec.securityContext.runAsNonRoot" {
		t.Errorf("FieldPath = %q", absent[0].FieldPath)
	}
}

func TestPodRunAsNonRoot_PodKind(t *testing.T) {
	src := "apiVersion: v1\nkind: Pod\nmetadata:\n  name: p\nspec:\n  securityContext:\n    runAsNonRoot: true\n"
	if got := evaluate(t, rules.PodRunAsNonRootRule{}, parseDoc(t, src), nil); len(got) != 0 {
		t.Errorf("expected 0 findings for Pod with spec.securityContext; got %d", len(got))
	}
}

// ── CONTAINER_RUN_AS_NON_ROOT ────────────────────────────────────────────────

func TestContainerRunAsNonRoot_InheritsFromPod(t *testing.T) {
	doc := parseDoc(t, deployment(`{securityContext: {runAsNonRoot: true}, containers: [{name: a}, {name: b, securityContext: {runAsNonRoot: false}}]}`))
	got := evaluate(t, rules.ContainerRunAsNonRootRule{}, doc, nil)
	assertPaths(t, got, "spec.template.spec.containers[1].securityContext.runAsNonRoot")
	assertMessageContains(t, got[0], "runAsNonRoot: false")
}

func TestContainerRunAsNonRoot_NeitherLevelSet(t *testing.T) {
	doc := parseDoc(t, deployment(`{containers: [{name: a}]}`))
	got := evaluate(t, rules.ContainerRunAsNonRootRule{}, doc, nil)
	if len(got) != 1 {
		t.Fatalf("expected 1 finding; got %d", len(got))
	}
	assertMessageContains(t, got[0], "does not set runAsNonRoot")
}

// ── CONTAINER_READ_ONLY_ROOT_FS ──────────────────────────────────────────────

func TestReadOnlyRootFS_AbsentVsExplicitFalse(t *testing.T) {
	doc := parseDoc(t, deployment(`{containers: [{name: a}, {name: b, securityContext: {readOnlyRootFilesystem: false}}, {name: c, securityContext: {readOnlyRootFilesystem: true}}]}`))
	got := evaluate(t, rules.ContainerReadOnlyRootFSRule{}, doc, nil)
	if len(got) != 2 {
		t.Fatalf("expected 2 findings; got %d", len(got))
	}
	assertMessageContains(t, got[0], "does not set readOnlyRootFilesystem")
	assertMessageContains(t, got[1], "readOnlyRootFilesystem: false")
}

// ── CONTAINER_DROP_ALL_CAPABILITIES ──────────────────────────────────────────

func TestDropAllCapabilities(t *testing.T) {
	cases := []struct {
		name      string
		container string
		want      int
	}{
		{"drop ALL passes", `{name: a, securityContext: {capabilities: {drop: [ALL]}}}`, 0},
		{"superset fires", `{name: a, securityContext: {capabilities: {drop: [ALL, NET_ADMIN]}}}`, 1},
		{"absent fires", `{name: a, securityContext: {capabilities: {add: [NET_BIND_SERVICE]}}}`, 1},
		{"no security context fires", `{name: a}`, 1},
		{"other set fires", `{name: a, securityContext: {capabilities: {drop: [NET_RAW]}}}`, 1},
		{"not a list fires", `{name: a, securityContext: {capabilities: {drop: ALL}}}`, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := parseDoc(t, deployment(`{containers: [`+tc.container+`]}`))
			got := evaluate(t, rules.ContainerDropAllCapabilitiesRule{}, doc, nil)
			if len(got) != tc.want {
				t.Fatalf("expected %d findings; got %d: %+v", tc.want, len(got), got)
			}
		})
	}
}

// ── POD_SECCOMP_RUNTIME_DEFAULT ──────────────────────────────────────────────

func TestSeccomp_PodLevel(t *testing.T) {
	r := rules.PodSeccompRuntimeDefaultRule{}
	if got := evaluate(t, r, parseDoc(t, deployment(`{containers: []}`)), nil); len(got) != 1 {
		t.Errorf("absent profile: expected 1 finding; got %d", len(got))
	}
	got := evaluate(t, r, parseDoc(t, deployment(`{securityContext: {seccompProfile: {type: Unconfined}}, containers: []}`)), nil)
	if len(got) != 1 {
		t.Fatalf("Unconfined: expected 1 finding; got %d", len(got))
	}
	assertMessageContains(t, got[0], `"Unconfined"`)
}

func TestSeccomp_ContainerOverride(t *testing.T) {
	doc := parseDoc(t, deployment(`{securityContext: {seccompProfile: {type: RuntimeDefault}}, containers: [{name: a, securityContext: {seccompProfile: {type: Localhost}}}, {name: b}]}`))
	got := evaluate(t, rules.PodSeccompRuntimeDefaultRule{}, doc, nil)
	assertPaths(t, got, "spec.template.spec.containers[0].securityContext.seccompProfile.type")
}

// ── CONTAINER_NO_PRIVILEGE_ESCALATION ────────────────────────────────────────

func TestNoPrivilegeEscalation(t *testing.T) {
	doc := parseDoc(t, deployment(`{containers: [{name: a}, {name: b, securityContext: {allowPrivilegeEscalation: true}}, {name: c, securityContext: {allowPrivilegeEscalation: false}}]}`))
	got := evaluate(t, rules.ContainerNoPrivilegeEscalationRule{}, doc, nil)
	assertPaths(t, got,
		"spec.template.spec.containers[0].securityContext.allowPrivilegeEscalation",
		"spec.template.spec.containers[1].securityContext.allowPrivilegeEscalation",
	)
}

// ── CONTAINER_PRIVILEGED ─────────────────────────────────────────────────────

func TestContainerPrivileged_OnlyExplicitTrueFires(t *testing.T) {
	doc := parseDoc(t, deployment(`{containers: [{name: a}, {name: b, securityContext: {privileged: true}}, {name: c, securityContext: {privileged: false}}]}`))
	got := evaluate(t, rules.ContainerPrivilegedRule{}, doc, nil)
	assertPaths(t, got, "spec.template.spec.containers[1].securityContext.privileged")
}
