package models

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Severity represents the impact level of a finding.
type Severity string

const (
	// SeverityError fails the run.
	SeverityError Severity = "ERROR"
	// SeverityWarning is reported but never flips Report.Passed.
	SeverityWarning Severity = "WARNING"
)

// ParseSeverity maps a case-insensitive severity name to a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(strings.ToUpper(strings.TrimSpace(s))) {
	case SeverityError:
		return SeverityError, nil
	case SeverityWarning:
		return SeverityWarning, nil
	default:
		return "", fmt.Errorf("invalid severity %q; valid values: ERROR, WARNING", s)
	}
}

// SourceLevelIndex is the DocumentIndex of findings that concern a whole
// source rather than one document in it (parse failures, empty sources).
const SourceLevelIndex = -1

// Finding is a single policy violation or observation.
// It is the atomic output unit of the rule engine and must not be modified
// after it has been appended to a Report.
type Finding struct {
	// ID is a stable fingerprint of the finding; see Fingerprint.
	ID            string   `json:"id"`
	RuleID        string   `json:"rule_id"`
	Severity      Severity `json:"severity"`
	SourceID      string   `json:"source_id"`
	DocumentIndex int      `json:"document_index"`

	// Resource is a short reference to the offending object, e.g. "Deployment/web".
	Resource  string `json:"resource,omitempty"`
	Message   string `json:"message"`
	FieldPath string `json:"field_path,omitempty"`
}

// fingerprintNamespace scopes finding fingerprints so they never collide with
// other name-based UUIDs.
var fingerprintNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/pankaj-dahiya-devops/manifest-policy/finding"))

// Fingerprint derives the finding ID from its identifying fields. The same
// violation in the same place always yields the same ID, which lets CI
// systems diff reports across runs.
func Fingerprint(f Finding) string {
	key := strings.Join([]string{
		f.RuleID,
		f.SourceID,
		fmt.Sprint(f.DocumentIndex),
		f.FieldPath,
		f.Message,
	}, "\x00")
	return uuid.NewSHA1(fingerprintNamespace, []byte(key)).String()
}

// Summary aggregates counts across all findings of a report.
type Summary struct {
	TotalFindings   int `json:"total_findings"`
	ErrorFindings   int `json:"error_findings"`
	WarningFindings int `json:"warning_findings"`
	// ByRule counts findings per rule ID. encoding/json writes map keys in
	// sorted order, so the rendered form is stable.
	ByRule map[string]int `json:"by_rule,omitempty"`
}

// Report is the result of one evaluation run. It is built once by the
// engine and treated as read-only afterwards.
type Report struct {
	// Passed is true iff no finding has SeverityError.
	Passed bool `json:"passed"`

	// SourcesScanned is the number of sources handed to the engine.
	SourcesScanned int `json:"sources_scanned"`

	// DocumentsScanned is the number of documents parsed from those sources.
	DocumentsScanned int `json:"documents_scanned"`

	// RulesRun counts rule evaluations, one per (document, applicable rule) pair.
	RulesRun int `json:"rules_run"`

	// RulesRegistered is the number of rules that were active for the run.
	RulesRegistered int `json:"rules_registered"`

	Summary  Summary   `json:"summary"`
	Findings []Finding `json:"findings"`
}

// ComputeSummary aggregates finding counts per severity and per rule.
func ComputeSummary(findings []Finding) Summary {
	s := Summary{TotalFindings: len(findings)}
	if len(findings) > 0 {
		s.ByRule = make(map[string]int)
	}
	for _, f := range findings {
		switch f.Severity {
		case SeverityError:
			s.ErrorFindings++
		case SeverityWarning:
			s.WarningFindings++
		}
		s.ByRule[f.RuleID]++
	}
	return s
}

// HasErrors reports whether any finding is SeverityError.
func HasErrors(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}
