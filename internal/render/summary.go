// Package render provides the human-readable presentation of a Report and of
// the rule catalogue. It is a pure rendering package: no evaluation, no I/O
// beyond the writer it is given.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/pankaj-dahiya-devops/manifest-policy/internal/models"
	"github.com/pankaj-dahiya-devops/manifest-policy/internal/output"
)

// WriteSummary writes report grouped by source, then by rule ID (ascending),
// followed by the verdict line. Sources appear in report order.
//
// Example output:
//
//	k8s/deploy.yaml
//	  IMAGE_MUTABLE_TAG (1)
//	    - ERROR Deployment/web: container "app" image "repo.example/app:latest" uses the mutable tag :latest
//	      at spec.template.spec.containers[0].image
//
//	FAILED: 1 source, 1 document, 23 rule evaluations, 1 finding (1 error, 0 warnings)
func WriteSummary(w io.Writer, report *models.Report, colored bool) error {
	var sourceOrder []string
	bySource := make(map[string]map[string][]models.Finding)
	for _, f := range report.Findings {
		rules, ok := bySource[f.SourceID]
		if !ok {
			rules = make(map[string][]models.Finding)
			bySource[f.SourceID] = rules
			sourceOrder = append(sourceOrder, f.SourceID)
		}
		rules[f.RuleID] = append(rules[f.RuleID], f)
	}

	for _, src := range sourceOrder {
		fmt.Fprintln(w, src)

		ruleIDs := make([]string, 0, len(bySource[src]))
		for id := range bySource[src] {
			ruleIDs = append(ruleIDs, id)
		}
		sort.Strings(ruleIDs)

		for _, id := range ruleIDs {
			findings := bySource[src][id]
			fmt.Fprintf(w, "  %s (%d)\n", id, len(findings))
			for _, f := range findings {
				subject := f.Resource
				if subject == "" {
					subject = "source"
				}
				fmt.Fprintf(w, "    - %s %s: %s\n", output.ColorSeverity(f.Severity, colored), subject, f.Message)
				if f.FieldPath != "" {
					fmt.Fprintf(w, "      at %s\n", f.FieldPath)
				}
			}
		}
		fmt.Fprintln(w)
	}
	return WriteSummaryLine(w, report)
}

// WriteSummaryLine writes the one-line verdict for report.
func WriteSummaryLine(w io.Writer, report *models.Report) error {
	verdict := "PASSED"
	if !report.Passed {
		verdict = "FAILED"
	}
	_, err := fmt.Fprintf(w, "%s: %s, %s, %s, %s (%s, %s)\n",
		verdict,
		plural(report.SourcesScanned, "source"),
		plural(report.DocumentsScanned, "document"),
		plural(report.RulesRun, "rule evaluation"),
		plural(report.Summary.TotalFindings, "finding"),
		plural(report.Summary.ErrorFindings, "error"),
		plural(report.Summary.WarningFindings, "warning"),
	)
	return err
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// RuleInfo describes one rule for the catalogue listing.
type RuleInfo struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Severity    models.Severity `json:"severity"`
	Enabled     bool            `json:"enabled"`
}

// WriteRuleCatalogue writes one line per rule in registration order.
func WriteRuleCatalogue(w io.Writer, infos []RuleInfo) {
	for _, r := range infos {
		state := ""
		if !r.Enabled {
			state = "  (disabled)"
		}
		fmt.Fprintf(w, "%-34s %-8s %s%s\n", r.ID, r.Severity, r.Description, state)
	}
}

// WriteRuleCatalogueJSON writes the catalogue as indented JSON:
//
//	{"rules": [{"id": ..., "description": ..., "severity": ..., "enabled": ...}]}
func WriteRuleCatalogueJSON(w io.Writer, infos []RuleInfo) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if infos == nil {
		infos = []RuleInfo{}
	}
	return enc.Encode(map[string]any{"rules": infos})
}
