package output_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pankaj-dahiya-devops/manifest-policy/internal/models"
	"github.com/pankaj-dahiya-devops/manifest-policy/internal/output"
)

func sampleReport() *models.Report {
	findings := []models.Finding{oneFinding(), oneFinding(func(f *models.Finding) {
		f.RuleID = "PROBE_INITIAL_DELAY"
		f.Severity = models.SeverityWarning
	})}
	return &models.Report{
		Passed:           false,
		SourcesScanned:   1,
		DocumentsScanned: 3,
		RulesRun:         60,
		RulesRegistered:  23,
		Summary:          models.ComputeSummary(findings),
		Findings:         findings,
	}
}

func TestParseFormat(t *testing.T) {
	for _, f := range output.Formats {
		got, err := output.ParseFormat(string(f))
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
	_, err := output.ParseFormat("xml")
	assert.Error(t, err)
}

func TestWriteJSON_StableAndComplete(t *testing.T) {
	var a, b bytes.Buffer
	require.NoError(t, output.WriteJSON(&a, sampleReport()))
	require.NoError(t, output.WriteJSON(&b, sampleReport()))
	assert.Equal(t, a.String(), b.String())

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(a.Bytes(), &decoded))
	assert.Equal(t, false, decoded["passed"])
	assert.EqualValues(t, 3, decoded["documents_scanned"])
	assert.Len(t, decoded["findings"], 2)

	// ByRule keys are emitted in sorted order.
	out := a.String()
	assert.Less(t, strings.Index(out, `"IMAGE_MUTABLE_TAG": 1`), strings.Index(out, `"PROBE_INITIAL_DELAY": 1`))
}

func TestWriteYAML_UsesJSONFieldNames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, output.WriteYAML(&buf, sampleReport()))
	out := buf.String()
	assert.Contains(t, out, "passed: false")
	assert.Contains(t, out, "rule_id: IMAGE_MUTABLE_TAG")
	assert.Contains(t, out, "document_index: 2")
	assert.NotContains(t, out, "RuleID")
}
