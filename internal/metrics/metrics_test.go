package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/pankaj-dahiya-devops/manifest-policy/internal/models"
)

func sampleReport() *models.Report {
	return &models.Report{
		Passed:           false,
		SourcesScanned:   2,
		DocumentsScanned: 3,
		RulesRun:         40,
		RulesRegistered:  22,
		Findings: []models.Finding{
			{RuleID: "IMAGE_MUTABLE_TAG", Severity: models.SeverityError},
			{RuleID: "IMAGE_MUTABLE_TAG", Severity: models.SeverityError},
			{RuleID: "PROBE_INITIAL_DELAY", Severity: models.SeverityWarning},
		},
	}
}

func TestRecord_Counters(t *testing.T) {
	m := NewRunMetrics()
	start := time.Unix(1_700_000_000, 0)
	m.Record(sampleReport(), start, start.Add(1500*time.Millisecond))

	if got := testutil.ToFloat64(m.findings.WithLabelValues("IMAGE_MUTABLE_TAG", "ERROR")); got != 2 {
		t.Errorf("IMAGE_MUTABLE_TAG findings = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.findings.WithLabelValues("PROBE_INITIAL_DELAY", "WARNING")); got != 1 {
		t.Errorf("PROBE_INITIAL_DELAY findings = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.findings); got != 2 {
		t.Errorf("findings series = %d, want 2", got)
	}
	if got := testutil.ToFloat64(m.documentsScanned); got != 3 {
		t.Errorf("documents_scanned = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.ruleEvaluations); got != 40 {
		t.Errorf("rule_evaluations = %v, want 40", got)
	}
	if got := testutil.ToFloat64(m.passed); got != 0 {
		t.Errorf("run_passed = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.duration); got != 1.5 {
		t.Errorf("run_duration_seconds = %v, want 1.5", got)
	}
}

func TestRecord_PassedRun(t *testing.T) {
	m := NewRunMetrics()
	now := time.Now()
	m.Record(&models.Report{Passed: true, SourcesScanned: 1}, now, now)

	if got := testutil.ToFloat64(m.passed); got != 1 {
		t.Errorf("run_passed = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.findings); got != 0 {
		t.Errorf("findings series = %d, want 0", got)
	}
}

func TestWriteFile(t *testing.T) {
	m := NewRunMetrics()
	start := time.Unix(1_700_000_000, 0)
	m.Record(sampleReport(), start, start.Add(time.Second))

	path := filepath.Join(t.TempDir(), "mp.prom")
	if err := m.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read metrics file: %v", err)
	}
	text := string(raw)
	for _, want := range []string{
		`manifest_policy_findings_total{rule_id="IMAGE_MUTABLE_TAG",severity="ERROR"} 2`,
		"manifest_policy_sources_scanned 2",
		"manifest_policy_run_passed 0",
		"manifest_policy_last_run_timestamp_seconds 1.700000001e+09",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics file missing %q:\n%s", want, text)
		}
	}
}

func TestWriteFile_BadDirectory(t *testing.T) {
	m := NewRunMetrics()
	err := m.WriteFile(filepath.Join(t.TempDir(), "missing", "mp.prom"))
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}
