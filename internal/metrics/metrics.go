// Package metrics exports the outcome of one evaluation run in the
// Prometheus text format, for node_exporter's textfile collector or CI
// artifact scraping.
//
// Metrics:
//   - manifest_policy_findings_total: findings by rule and severity
//   - manifest_policy_sources_scanned: sources handed to the engine
//   - manifest_policy_documents_scanned: documents parsed from those sources
//   - manifest_policy_rule_evaluations: (document, rule) evaluations performed
//   - manifest_policy_rules_registered: rules active for the run
//   - manifest_policy_run_passed: 1 when the report passed, else 0
//   - manifest_policy_run_duration_seconds: wall time of the run
//   - manifest_policy_last_run_timestamp_seconds: end of the run, Unix time
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pankaj-dahiya-devops/manifest-policy/internal/models"
)

const namespace = "manifest_policy"

// RunMetrics holds the collectors for a single run on a private registry.
type RunMetrics struct {
	registry *prometheus.Registry

	findings         *prometheus.CounterVec
	sourcesScanned   prometheus.Gauge
	documentsScanned prometheus.Gauge
	ruleEvaluations  prometheus.Gauge
	rulesRegistered  prometheus.Gauge
	passed           prometheus.Gauge
	duration         prometheus.Gauge
	lastRun          prometheus.Gauge
}

func newGauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	})
}

// NewRunMetrics creates and registers the run collectors.
func NewRunMetrics() *RunMetrics {
	m := &RunMetrics{
		registry: prometheus.NewRegistry(),
		findings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "findings_total",
				Help:      "Findings reported by the run, by rule and severity",
			},
			[]string{"rule_id", "severity"},
		),
		sourcesScanned:   newGauge("sources_scanned", "Number of manifest sources evaluated"),
		documentsScanned: newGauge("documents_scanned", "Number of documents parsed from the sources"),
		ruleEvaluations:  newGauge("rule_evaluations", "Number of (document, rule) evaluations performed"),
		rulesRegistered:  newGauge("rules_registered", "Number of rules active for the run"),
		passed:           newGauge("run_passed", "1 if the run produced no ERROR findings, 0 otherwise"),
		duration:         newGauge("run_duration_seconds", "Wall time of the evaluation run in seconds"),
		lastRun:          newGauge("last_run_timestamp_seconds", "Unix time at which the run finished"),
	}

	m.registry.MustRegister(
		m.findings,
		m.sourcesScanned,
		m.documentsScanned,
		m.ruleEvaluations,
		m.rulesRegistered,
		m.passed,
		m.duration,
		m.lastRun,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *RunMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Record copies the report counters into the collectors. started and
// finished bound the run.
func (m *RunMetrics) Record(r *models.Report, started, finished time.Time) {
	for _, f := range r.Findings {
		m.findings.WithLabelValues(f.RuleID, string(f.Severity)).Inc()
	}
	m.sourcesScanned.Set(float64(r.SourcesScanned))
	m.documentsScanned.Set(float64(r.DocumentsScanned))
	m.ruleEvaluations.Set(float64(r.RulesRun))
	m.rulesRegistered.Set(float64(r.RulesRegistered))
	if r.Passed {
		m.passed.Set(1)
	} else {
		m.passed.Set(0)
	}
	m.duration.Set(finished.Sub(started).Seconds())
	m.lastRun.Set(float64(finished.Unix()))
}

// WriteFile writes the registry to path in the text exposition format. The
// file is replaced atomically.
func (m *RunMetrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics file %q: %w", path, err)
	}
	return nil
}
