package formatters

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvoptimizer/internal/types"
)

func TestRegistryFormatsPipelineResult(t *testing.T) {
	result := &types.PipelineResult{
		OptimizedCV:   "Jane Doe\nSenior Go Engineer",
		CompanyName:   "Acme",
		KeywordsCount: 4,
	}
	registry := NewFormatterRegistry()

	text, err := registry.Format(result, "text")
	require.NoError(t, err)
	assert.Contains(t, text, "=== OPTIMIZED CV ===")
	assert.Contains(t, text, "Senior Go Engineer")
	assert.Contains(t, text, "Company: Acme")
	assert.Contains(t, text, "Keywords matched against: 4")

	md, err := registry.Format(*result, "markdown")
	require.NoError(t, err)
	assert.Contains(t, md, "# Optimized CV for Acme")
	assert.Contains(t, md, "**Keywords:** 4")

	raw, err := registry.Format(result, "json")
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	assert.Equal(t, "Acme", decoded["company_name"])
	assert.EqualValues(t, 4, decoded["keywords_count"])
}

func TestRegistryFormatsJobAnalysis(t *testing.T) {
	analysis := types.JobAnalysis{CompanyName: "Acme", Keywords: []string{"Go", "Kubernetes"}}
	registry := NewFormatterRegistry()

	text, err := registry.Format(&analysis, "text")
	require.NoError(t, err)
	assert.Contains(t, text, "Keywords (2):")
	assert.Contains(t, text, "- Kubernetes")

	md, err := registry.Format(analysis, "markdown")
	require.NoError(t, err)
	assert.Contains(t, md, "**Company:** Acme")
	assert.Contains(t, md, "- Go")

	empty, err := registry.Format(types.JobAnalysis{CompanyName: types.UnidentifiedCompany}, "text")
	require.NoError(t, err)
	assert.Contains(t, empty, "No keywords found.")
}

func TestRegistryUnknownFormat(t *testing.T) {
	_, err := NewFormatterRegistry().Format(types.JobAnalysis{}, "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no formatter found for format 'xml' and type 'JobAnalysis'")
}

func TestRegistryFallsBackToAnyFormatter(t *testing.T) {
	registry := NewFormatterRegistry()

	_, err := registry.Format(map[string]int{"a": 1}, "text")
	require.Error(t, err, "text has no generic formatter")

	out, err := registry.Format(map[string]int{"a": 1}, "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, out)
}

func TestTypedFormatterRejectsOtherTypes(t *testing.T) {
	_, err := (&ResultTextFormatter{}).Format(types.JobAnalysis{})
	assert.EqualError(t, err, "expected PipelineResult, got types.JobAnalysis")

	var nilResult *types.PipelineResult
	_, err = (&ResultMarkdownFormatter{}).Format(nilResult)
	assert.Error(t, err)
}

func TestGetSupportedFormats(t *testing.T) {
	assert.Equal(t, []string{"json", "markdown", "text"}, NewFormatterRegistry().GetSupportedFormats())
}
