package rules

import (
	"strings"

	"github.com/pankaj-dahiya-devops/manifest-policy/internal/manifest"
	"github.com/pankaj-dahiya-devops/manifest-policy/internal/models"
	"github.com/pankaj-dahiya-devops/manifest-policy/internal/policy"
)

const (
	livenessProbe  = "livenessProbe"
	readinessProbe = "readinessProbe"
)

// probeSettings pairs a probe field with its configured thresholds.
type probeSettings struct {
	field         string
	pathSubstring string
	minDelay      int64
}

func probesFor(opts *policy.Options) []probeSettings {
	return []probeSettings{
		{field: livenessProbe, pathSubstring: opts.LivenessPathSubstring, minDelay: opts.MinLivenessInitialDelay},
		{field: readinessProbe, pathSubstring: opts.ReadinessPathSubstring, minDelay: opts.MinReadinessInitialDelay},
	}
}

// probeOf returns the probe mapping declared on c, if any.
func probeOf(c container, field string) (*manifest.Node, bool) {
	return manifest.GetMapping(c.Node, field)
}

// missingProbes reports every regular container whose probe under field is
// absent, empty or not a mapping. A probe without a handler is rejected by
// the API server, so an empty mapping counts as missing. Init containers run
// to completion and cannot carry probes.
func missingProbes(r Rule, doc *manifest.Document, field string) []models.Finding {
	var findings []models.Finding
	for _, c := range containersOf(doc, false) {
		path := c.Path.Child(field)
		v, ok := manifest.Get(c.Node, field)
		switch {
		case !ok || v.IsNull():
			findings = append(findings, newFinding(r, doc, path, "%s has no %s", c.label(), field))
		case v.Kind != manifest.MappingNode:
			findings = append(findings, newFinding(r, doc, path, "%s has a %s that is not a mapping", c.label(), field))
		case len(v.Fields) == 0:
			findings = append(findings, newFinding(r, doc, path, "%s has an empty %s with no handler", c.label(), field))
		}
	}
	return findings
}

// ── LIVENESS_PROBE_PRESENT ───────────────────────────────────────────────────

// LivenessProbePresentRule requires a livenessProbe on every container.
type LivenessProbePresentRule struct{ workloadRule }

func (r LivenessProbePresentRule) ID() string                { return "LIVENESS_PROBE_PRESENT" }
func (r LivenessProbePresentRule) Name() string              { return "Containers declare a liveness probe" }
func (r LivenessProbePresentRule) Severity() models.Severity { return models.SeverityError }

func (r LivenessProbePresentRule) Evaluate(ctx RuleContext) ([]models.Finding, error) {
	return missingProbes(r, ctx.Document, livenessProbe), nil
}

// ── READINESS_PROBE_PRESENT ──────────────────────────────────────────────────

// ReadinessProbePresentRule requires a readinessProbe on every container.
type ReadinessProbePresentRule struct{ workloadRule }

func (r ReadinessProbePresentRule) ID() string                { return "READINESS_PROBE_PRESENT" }
func (r ReadinessProbePresentRule) Name() string              { return "Containers declare a readiness probe" }
func (r ReadinessProbePresentRule) Severity() models.Severity { return models.SeverityError }

func (r ReadinessProbePresentRule) Evaluate(ctx RuleContext) ([]models.Finding, error) {
	return missingProbes(r, ctx.Document, readinessProbe), nil
}

// ── PROBE_HTTP_PATH ──────────────────────────────────────────────────────────

// ProbeHTTPPathRule checks that HTTP probes target the configured health
// endpoint. A probe without httpGet (exec, tcpSocket, grpc) is not checked;
// an httpGet without a path probes "/".
type ProbeHTTPPathRule struct{ workloadRule }

func (r ProbeHTTPPathRule) ID() string                { return "PROBE_HTTP_PATH" }
func (r ProbeHTTPPathRule) Name() string              { return "HTTP probes target the health endpoint" }
func (r ProbeHTTPPathRule) Severity() models.Severity { return models.SeverityWarning }

func (r ProbeHTTPPathRule) Evaluate(ctx RuleContext) ([]models.Finding, error) {
	doc := ctx.Document
	settings := probesFor(ctx.Opts())

	var findings []models.Finding
	for _, c := range containersOf(doc, false) {
		for _, s := range settings {
			if s.pathSubstring == "" {
				continue
			}
			probe, ok := probeOf(c, s.field)
			if !ok {
				continue
			}
			httpGet, ok := manifest.GetMapping(probe, "httpGet")
			if !ok {
				continue
			}
			path := "/"
			if v, ok := manifest.Get(httpGet, "path"); ok {
				path, _ = v.Text()
			}
			if !strings.Contains(path, s.pathSubstring) {
				findings = append(findings, newFinding(r, doc, c.Path.Child(s.field, "httpGet", "path"),
					"%s %s path %q does not contain %q", c.label(), s.field, path, s.pathSubstring))
			}
		}
	}
	return findings, nil
}

// ── PROBE_INITIAL_DELAY ──────────────────────────────────────────────────────

// ProbeInitialDelayRule enforces a minimum initialDelaySeconds per probe
// type. An omitted initialDelaySeconds is the Kubernetes default of 0.
type ProbeInitialDelayRule struct{ workloadRule }

func (r ProbeInitialDelayRule) ID() string { return "PROBE_INITIAL_DELAY" }
func (r ProbeInitialDelayRule) Name() string {
	return "Probes wait at least the minimum initial delay"
}
func (r ProbeInitialDelayRule) Severity() models.Severity { return models.SeverityWarning }

func (r ProbeInitialDelayRule) Evaluate(ctx RuleContext) ([]models.Finding, error) {
	doc := ctx.Document
	settings := probesFor(ctx.Opts())

	var findings []models.Finding
	for _, c := range containersOf(doc, false) {
		for _, s := range settings {
			probe, ok := probeOf(c, s.field)
			if !ok {
				continue
			}
			p := c.Path.Child(s.field, "initialDelaySeconds")
			var delay int64
			if v, ok := manifest.Get(probe, "initialDelaySeconds"); ok && !v.IsNull() {
				d, isInt := v.AsInt()
				if !isInt {
					findings = append(findings, newFinding(r, doc, p, "%s %s.initialDelaySeconds must be an integer", c.label(), s.field))
					continue
				}
				delay = d
			}
			if delay < s.minDelay {
				findings = append(findings, newFinding(r, doc, p,
					"%s %s initialDelaySeconds is %d; want at least %d", c.label(), s.field, delay, s.minDelay))
			}
		}
	}
	return findings, nil
}
