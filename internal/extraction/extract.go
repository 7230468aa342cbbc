// Package extraction recovers the structured job analysis from raw model output.
package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"cvoptimizer/internal/errors"
	"cvoptimizer/internal/types"
)

const fenceMarker = "```"

// ParseJobAnalysis decodes the analysis stage output into a JobAnalysis.
//
// Accepted shapes are a bare JSON object, or a JSON object wrapped in a
// markdown code block whose fence lines may carry a language tag. Missing or
// null fields fall back to types.UnidentifiedCompany and an empty keyword list;
// unknown fields are ignored. Output that is not a JSON object, or whose
// keywords value is not an array, yields a MALFORMED_ANALYSIS error.
func ParseJobAnalysis(raw string) (types.JobAnalysis, error) {
	payload := StripCodeFences(raw)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return types.JobAnalysis{}, errors.NewMalformedAnalysisError(err)
	}
	if fields == nil {
		return types.JobAnalysis{}, errors.NewMalformedAnalysisError(fmt.Errorf("expected a JSON object, got null"))
	}

	companyName, err := decodeCompanyName(fields["company_name"])
	if err != nil {
		return types.JobAnalysis{}, errors.NewMalformedAnalysisError(err)
	}

	keywords, err := decodeKeywords(fields["keywords"])
	if err != nil {
		return types.JobAnalysis{}, errors.NewMalformedAnalysisError(err)
	}

	return types.JobAnalysis{CompanyName: companyName, Keywords: keywords}, nil
}

// StripCodeFences trims raw and, when it opens with a fence line, drops every
// line beginning with the fence marker.
func StripCodeFences(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, fenceMarker) {
		return text
	}

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(line, fenceMarker) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// decodeCompanyName accepts any JSON value. Non-string values are kept as
// their JSON text.
func decodeCompanyName(raw json.RawMessage) (string, error) {
	if isAbsent(raw) {
		return types.UnidentifiedCompany, nil
	}
	return valueText(raw), nil
}

// decodeKeywords requires an array. Every element counts as a keyword: null
// becomes "" and other non-string values are kept as their JSON text.
func decodeKeywords(raw json.RawMessage) ([]string, error) {
	if isAbsent(raw) {
		return []string{}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("keywords: %w", err)
	}

	keywords := make([]string, 0, len(items))
	for _, item := range items {
		if isAbsent(item) {
			keywords = append(keywords, "")
			continue
		}
		keywords = append(keywords, valueText(item))
	}
	return keywords, nil
}

// valueText returns the string a JSON string holds, or the compacted JSON
// text of any other value.
func valueText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
