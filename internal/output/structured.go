// Package output renders a finished Report. Rendering never changes the
// Report; every renderer is deterministic for a given Report.
package output

import (
	"encoding/json"
	"fmt"
	"io"

	"sigs.k8s.io/yaml"

	"github.com/pankaj-dahiya-devops/manifest-policy/internal/models"
)

// Format names a report rendering.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatTable Format = "table"
)

// Formats lists the supported formats in help-text order.
var Formats = []Format{FormatText, FormatJSON, FormatYAML, FormatTable}

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported format %q; valid values: text, json, yaml, table", s)
}

// WriteJSON writes report as indented JSON. Struct fields keep declaration
// order and map keys are sorted, so equal reports render byte-identically.
func WriteJSON(w io.Writer, report *models.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// WriteYAML writes report as YAML using the JSON field names. Keys are
// emitted in sorted order.
func WriteYAML(w io.Writer, report *models.Report) error {
	data, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	_, err = w.Write(data)
	return err
}
