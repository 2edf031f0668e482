package output_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pankaj-dahiya-devops/manifest-policy/internal/models"
	"github.com/pankaj-dahiya-devops/manifest-policy/internal/output"
)

// ── helpers ───────────────────────────────────────────────────────────────────

func renderToString(findings []models.Finding, opts output.TableOptions) string {
	var buf bytes.Buffer
	output.RenderTable(&buf, findings, opts)
	return buf.String()
}

func oneFinding(overrides ...func(*models.Finding)) models.Finding {
	f := models.Finding{
		RuleID:        "IMAGE_MUTABLE_TAG",
		Severity:      models.SeverityError,
		SourceID:      "k8s/deploy.yaml",
		DocumentIndex: 2,
		Resource:      "Deployment/payments-api",
		Message:       `container "app" image "repo.example/app:latest" uses the mutable tag :latest`,
		FieldPath:     "spec.template.spec.containers[0].image",
	}
	for _, fn := range overrides {
		fn(&f)
	}
	return f
}

// ── empty ─────────────────────────────────────────────────────────────────────

func TestRenderTable_NoFindings(t *testing.T) {
	if out := renderToString(nil, output.TableOptions{}); out != "No findings.\n" {
		t.Errorf("got %q; want %q", out, "No findings.\n")
	}
}

// ── SOURCE column ─────────────────────────────────────────────────────────────

func TestRenderTable_SourceColumn_WhenEnabled(t *testing.T) {
	out := renderToString([]models.Finding{oneFinding()}, output.TableOptions{IncludeSource: true})
	if !strings.Contains(out, "SOURCE") {
		t.Errorf("expected SOURCE column header in output\ngot:\n%s", out)
	}
	if !strings.Contains(out, "k8s/deploy.yaml#2") {
		t.Errorf("expected source cell 'k8s/deploy.yaml#2' in output\ngot:\n%s", out)
	}
}

func TestRenderTable_SourceColumn_SourceLevelFinding(t *testing.T) {
	f := oneFinding(func(f *models.Finding) {
		f.DocumentIndex = models.SourceLevelIndex
		f.Resource = ""
	})
	out := renderToString([]models.Finding{f}, output.TableOptions{IncludeSource: true})
	if strings.Contains(out, "#-1") {
		t.Errorf("source-level finding must not render an index\ngot:\n%s", out)
	}
}

func TestRenderTable_SourceColumn_WhenDisabled(t *testing.T) {
	out := renderToString([]models.Finding{oneFinding()}, output.TableOptions{})
	if strings.Contains(out, "SOURCE") {
		t.Errorf("SOURCE column must not appear when IncludeSource=false\ngot:\n%s", out)
	}
}

// ── FIELD column ──────────────────────────────────────────────────────────────

func TestRenderTable_FieldColumn(t *testing.T) {
	out := renderToString([]models.Finding{oneFinding()}, output.TableOptions{IncludeFieldPath: true})
	if !strings.Contains(out, "spec.template.spec.containers[0].image") {
		t.Errorf("expected field path in output\ngot:\n%s", out)
	}
}

// ── truncation & alignment ────────────────────────────────────────────────────

func TestRenderTable_LongMessageTruncated(t *testing.T) {
	f := oneFinding(func(f *models.Finding) { f.Message = strings.Repeat("x", 200) })
	out := renderToString([]models.Finding{f}, output.TableOptions{})
	if strings.Contains(out, strings.Repeat("x", 61)) {
		t.Errorf("message was not truncated\ngot:\n%s", out)
	}
	if !strings.Contains(out, "...") {
		t.Errorf("expected ellipsis in truncated message")
	}
}

func TestRenderTable_SeparatorMatchesHeader(t *testing.T) {
	out := renderToString([]models.Finding{oneFinding()}, output.TableOptions{IncludeSource: true, IncludeFieldPath: true})
	lines := strings.Split(out, "\n")
	if len(lines) < 3 {
		t.Fatalf("expected header, separator and row\ngot:\n%s", out)
	}
	if len(lines[1]) != len(lines[0]) || strings.Trim(lines[1], "-") != "" {
		t.Errorf("separator does not match header width")
	}
}

// ── colour ────────────────────────────────────────────────────────────────────

func TestRenderTable_Colored(t *testing.T) {
	out := renderToString([]models.Finding{oneFinding()}, output.TableOptions{Colored: true})
	if !strings.Contains(out, "\033[1;31mERROR\033[0m") {
		t.Errorf("expected colored ERROR\ngot:\n%q", out)
	}
	plain := renderToString([]models.Finding{oneFinding()}, output.TableOptions{})
	if strings.Contains(plain, "\033[") {
		t.Errorf("uncolored table must not contain ANSI codes")
	}
}

func TestColorSeverity(t *testing.T) {
	if got := output.ColorSeverity(models.SeverityWarning, false); got != "WARNING" {
		t.Errorf("uncolored = %q", got)
	}
	if got := output.ColorSeverity(models.SeverityWarning, true); got != "\033[0;33mWARNING\033[0m" {
		t.Errorf("colored = %q", got)
	}
}

func TestShortenMessage(t *testing.T) {
	if got := output.ShortenMessage("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := output.ShortenMessage("abcdefghij", 6); got != "abc..." {
		t.Errorf("got %q", got)
	}
}
