package formatters

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"cvoptimizer/internal/types"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

const (
	typeAny            = "any"
	typePipelineResult = "PipelineResult"
	typeJobAnalysis    = "JobAnalysis"
)

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	registry.RegisterFormatter("json", &JSONFormatter{})
	registry.RegisterFormatter("text", &ResultTextFormatter{})
	registry.RegisterFormatter("markdown", &ResultMarkdownFormatter{})
	registry.RegisterFormatter("text", &AnalysisTextFormatter{})
	registry.RegisterFormatter("markdown", &AnalysisMarkdownFormatter{})

	return registry
}

// RegisterFormatter registers a formatter for a format under the data type it supports
func (fr *FormatterRegistry) RegisterFormatter(format string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][formatter.SupportedType()] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		if formatter, exists := formatters[typeAny]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all registered formats, sorted
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	sort.Strings(formats)
	return formats
}

func getDataType(data any) string {
	switch data.(type) {
	case types.PipelineResult, *types.PipelineResult:
		return typePipelineResult
	case types.JobAnalysis, *types.JobAnalysis:
		return typeJobAnalysis
	default:
		return typeAny
	}
}

func asPipelineResult(data any) (types.PipelineResult, error) {
	switch v := data.(type) {
	case types.PipelineResult:
		return v, nil
	case *types.PipelineResult:
		if v != nil {
			return *v, nil
		}
	}
	return types.PipelineResult{}, fmt.Errorf("expected PipelineResult, got %T", data)
}

func asJobAnalysis(data any) (types.JobAnalysis, error) {
	switch v := data.(type) {
	case types.JobAnalysis:
		return v, nil
	case *types.JobAnalysis:
		if v != nil {
			return *v, nil
		}
	}
	return types.JobAnalysis{}, fmt.Errorf("expected JobAnalysis, got %T", data)
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData) + "\n", nil
}

func (jf *JSONFormatter) SupportedType() string {
	return typeAny
}

// ResultTextFormatter renders an optimization result as plain text
type ResultTextFormatter struct{}

func (f *ResultTextFormatter) Format(data any) (string, error) {
	result, err := asPipelineResult(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	output.WriteString("=== OPTIMIZED CV ===\n\n")
	output.WriteString(result.OptimizedCV)
	output.WriteString("\n\n")
	output.WriteString("=== TARGET ===\n")
	fmt.Fprintf(&output, "Company: %s\n", result.CompanyName)
	fmt.Fprintf(&output, "Keywords matched against: %d\n", result.KeywordsCount)
	return output.String(), nil
}

func (f *ResultTextFormatter) SupportedType() string {
	return typePipelineResult
}

// ResultMarkdownFormatter renders an optimization result as markdown
type ResultMarkdownFormatter struct{}

func (f *ResultMarkdownFormatter) Format(data any) (string, error) {
	result, err := asPipelineResult(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	fmt.Fprintf(&output, "# Optimized CV for %s\n\n", result.CompanyName)
	fmt.Fprintf(&output, "**Keywords:** %d\n\n", result.KeywordsCount)
	output.WriteString("---\n\n")
	output.WriteString(result.OptimizedCV)
	output.WriteString("\n")
	return output.String(), nil
}

func (f *ResultMarkdownFormatter) SupportedType() string {
	return typePipelineResult
}

// AnalysisTextFormatter renders a job analysis as plain text
type AnalysisTextFormatter struct{}

func (f *AnalysisTextFormatter) Format(data any) (string, error) {
	analysis, err := asJobAnalysis(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	output.WriteString("=== JOB ANALYSIS ===\n\n")
	fmt.Fprintf(&output, "Company: %s\n\n", analysis.CompanyName)
	if len(analysis.Keywords) == 0 {
		output.WriteString("No keywords found.\n")
		return output.String(), nil
	}
	fmt.Fprintf(&output, "Keywords (%d):\n", len(analysis.Keywords))
	for _, keyword := range analysis.Keywords {
		fmt.Fprintf(&output, "- %s\n", keyword)
	}
	return output.String(), nil
}

func (f *AnalysisTextFormatter) SupportedType() string {
	return typeJobAnalysis
}

// AnalysisMarkdownFormatter renders a job analysis as markdown
type AnalysisMarkdownFormatter struct{}

func (f *AnalysisMarkdownFormatter) Format(data any) (string, error) {
	analysis, err := asJobAnalysis(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	output.WriteString("# Job Analysis\n\n")
	fmt.Fprintf(&output, "**Company:** %s\n\n", analysis.CompanyName)
	output.WriteString("## Keywords\n\n")
	if len(analysis.Keywords) == 0 {
		output.WriteString("_None found._\n")
		return output.String(), nil
	}
	for _, keyword := range analysis.Keywords {
		fmt.Fprintf(&output, "- %s\n", keyword)
	}
	return output.String(), nil
}

func (f *AnalysisMarkdownFormatter) SupportedType() string {
	return typeJobAnalysis
}

// GlobalRegistry is the registry used by the CLI output handler
var GlobalRegistry = NewFormatterRegistry()
