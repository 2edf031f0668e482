package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/pankaj-dahiya-devops/manifest-policy/internal/models"
)

// ANSI color codes for severity output (used when Colored=true).
const (
	ansiReset   = "\033[0m"
	ansiBoldRed = "\033[1;31m"
	ansiYellow  = "\033[0;33m"
)

// TableOptions controls which columns RenderTable renders and how severity is coloured.
type TableOptions struct {
	// Colored wraps severity labels with ANSI codes. Default false (CI-safe).
	Colored bool

	// IncludeSource adds a SOURCE column with the source ID and document index.
	IncludeSource bool

	// IncludeFieldPath adds a FIELD column with the offending field path.
	IncludeFieldPath bool
}

// ColorSeverity wraps a severity string with ANSI codes when colored is true.
// When colored is false the string is returned unchanged (CI-safe default).
func ColorSeverity(sev models.Severity, colored bool) string {
	s := string(sev)
	if !colored {
		return s
	}
	if code := severityColor(sev); code != "" {
		return code + s + ansiReset
	}
	return s
}

func severityColor(sev models.Severity) string {
	switch sev {
	case models.SeverityError:
		return ansiBoldRed
	case models.SeverityWarning:
		return ansiYellow
	default:
		return ""
	}
}

// ShortenMessage truncates msg to at most max runes, appending "..." when truncated.
// max is treated as at least 4 to guarantee space for the ellipsis.
func ShortenMessage(msg string, max int) string {
	if max < 4 {
		max = 4
	}
	runes := []rune(msg)
	if len(runes) <= max {
		return msg
	}
	return string(runes[:max-3]) + "..."
}

// severityCell returns the severity padded to width characters.
// When colored, ANSI codes wrap only the text; trailing padding spaces are plain
// so subsequent columns stay visually aligned regardless of terminal ANSI support.
func severityCell(sev models.Severity, width int, colored bool) string {
	text := string(sev)
	code := severityColor(sev)
	if !colored || code == "" {
		return fmt.Sprintf("%-*s", width, text)
	}
	spaces := max(width-len(text), 0)
	return code + text + ansiReset + strings.Repeat(" ", spaces)
}

// truncateField shortens s to at most max runes for ID/label columns.
// A single-rune ellipsis replaces the last rune when truncation occurs.
func truncateField(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

// sourceCell renders "file#index", or the bare file for source-level findings.
func sourceCell(f models.Finding) string {
	if f.DocumentIndex == models.SourceLevelIndex {
		return f.SourceID
	}
	return fmt.Sprintf("%s#%d", f.SourceID, f.DocumentIndex)
}

// RenderTable writes a formatted findings table to w.
// Columns are dynamically selected based on opts; the separator line width is
// derived from the header row so all rows align correctly.
//
// Column order:
//
//	[SOURCE]  RESOURCE  SEVERITY  RULE  MESSAGE  [FIELD]
func RenderTable(w io.Writer, findings []models.Finding, opts TableOptions) {
	if len(findings) == 0 {
		fmt.Fprintln(w, "No findings.")
		return
	}

	// Fixed column display widths.
	const (
		wSource   = 28
		wResource = 30
		wSeverity = 8
		wRule     = 33
		wMessage  = 60
	)

	var hb strings.Builder
	if opts.IncludeSource {
		hb.WriteString(fmt.Sprintf("%-*s  ", wSource, "SOURCE"))
	}
	hb.WriteString(fmt.Sprintf("%-*s", wResource, "RESOURCE"))
	hb.WriteString(fmt.Sprintf("  %-*s", wSeverity, "SEVERITY"))
	hb.WriteString(fmt.Sprintf("  %-*s", wRule, "RULE"))
	hb.WriteString(fmt.Sprintf("  %-*s", wMessage, "MESSAGE"))
	if opts.IncludeFieldPath {
		hb.WriteString("  FIELD")
	}
	header := hb.String()

	fmt.Fprintln(w, header)
	fmt.Fprintln(w, strings.Repeat("-", len(header)))

	for _, f := range findings {
		var rb strings.Builder
		if opts.IncludeSource {
			rb.WriteString(fmt.Sprintf("%-*s  ", wSource, truncateField(sourceCell(f), wSource)))
		}
		resource := f.Resource
		if resource == "" {
			resource = "-"
		}
		rb.WriteString(fmt.Sprintf("%-*s", wResource, truncateField(resource, wResource)))
		rb.WriteString("  " + severityCell(f.Severity, wSeverity, opts.Colored))
		rb.WriteString(fmt.Sprintf("  %-*s", wRule, truncateField(f.RuleID, wRule)))
		rb.WriteString(fmt.Sprintf("  %-*s", wMessage, ShortenMessage(f.Message, wMessage)))
		if opts.IncludeFieldPath && f.FieldPath != "" {
			rb.WriteString("  " + f.FieldPath)
		}
		fmt.Fprintln(w, strings.TrimRight(rb.String(), " "))
	}
}
