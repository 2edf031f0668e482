package rules_test

import (
	"testing"

	"github.com/pankaj-dahiya-devops/manifest-policy/internal/rules"
)

// ── CONTAINER_RESOURCES ──────────────────────────────────────────────────────

func TestContainerResources_NoResourcesBlock_FourFindings(t *testing.T) {
	doc := parseDoc(t, deployment(`{containers: [{name: app}]}`))
	got := evaluate(t, rules.ContainerResourcesRule{}, doc, nil)
	assertPaths(t, got,
		"spec.template.spec.containers[0].resources.requests.cpu",
		"spec.template.spec.containers[0].resources.requests.memory",
		"spec.template.spec.containers[0].resources.limits.cpu",
		"spec.template.spec.containers[0].resources.limits.memory",
	)
}

func TestContainerResources_OnlyMissingFieldReported(t *testing.T) {
	doc := parseDoc(t, deployment(`{containers: [{name: app, resources: {requests: {cpu: 100m, memory: 64Mi}, limits: {cpu: 1}}}]}`))
	got := evaluate(t, rules.ContainerResourcesRule{}, doc, nil)
	assertPaths(t, got, "spec.template.spec.containers[0].resources.limits.memory")
	assertMessageContains(t, got[0], "missing resources.limits.memory")
}

func TestContainerResources_InvalidQuantity(t *testing.T) {
	doc := parseDoc(t, deployment(`{containers: [{name: app, resources: {requests: {cpu: lots, memory: 64Mi}, limits: {cpu: 1, memory: 128Mi}}}]}`))
	got := evaluate(t, rules.ContainerResourcesRule{}, doc, nil)
	if len(got) != 1 {
		t.Fatalf("expected 1 finding; got %d", len(got))
	}
	assertMessageContains(t, got[0], `invalid resources.requests.cpu quantity "lots"`)
}

func TestContainerResources_CoversInitContainers(t *testing.T) {
	full := `{requests: {cpu: 100m, memory: 64Mi}, limits: {cpu: 200m, memory: 128Mi}}`
	doc := parseDoc(t, deployment(`{containers: [{name: app, resources: `+full+`}], initContainers: [{name: migrate}]}`))
	got := evaluate(t, rules.ContainerResourcesRule{}, doc, nil)
	if len(got) != 4 {
		t.Fatalf("expected 4 findings for the init container; got %d", len(got))
	}
	assertMessageContains(t, got[0], `init container "migrate"`)
}

func TestContainerResources_CronJobPodSpec(t *testing.T) {
	src := `apiVersion: batch/v1
kind: CronJob
metadata:
  name: nightly
spec:
  jobTemplate:
    spec:
      template:
        spec:
          containers:
            - name: job
`
	got := evaluate(t, rules.ContainerResourcesRule{}, parseDoc(t, src), nil)
	if len(got) != 4 {
		t.Fatalf("expected 4 findings; got %d", len(got))
	}
	if got[0].FieldPath != "spec.jobTemplate.spec.template.spec.containers[0].resources.requests.cpu" {
		t.Errorf("FieldPath = %q", got[0].FieldPath)
	}
}

// ── CONTAINER_REQUEST_EXCEEDS_LIMIT ──────────────────────────────────────────

func TestRequestExceedsLimit_Fires(t *testing.T) {
	doc := parseDoc(t, deployment(`{containers: [{name: app, resources: {requests: {cpu: 1500m, memory: 1Gi}, limits: {cpu: 1, memory: 2Gi}}}]}`))
	got := evaluate(t, rules.ContainerRequestExceedsLimitRule{}, doc, nil)
	assertPaths(t, got, "spec.template.spec.containers[0].resources.requests.cpu")
}

func TestRequestExceedsLimit_Silent_WhenEqualOrMissing(t *testing.T) {
	doc := parseDoc(t, deployment(`{containers: [{name: app, resources: {requests: {cpu: 1000m, memory: 1Gi}, limits: {cpu: 1}}}]}`))
	if got := evaluate(t, rules.ContainerRequestExceedsLimitRule{}, doc, nil); len(got) != 0 {
		t.Errorf("expected 0 findings; got %d", len(got))
	}
}
