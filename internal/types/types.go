package types

import "strings"

// UnidentifiedCompany is used when the analysis does not name the employer.
const UnidentifiedCompany = "unidentified company"

// PipelineInput represents the caller input for one optimization run
type PipelineInput struct {
	JobDescription string `json:"job_description" validate:"required"`
	BaseCV         string `json:"base_cv" validate:"required"`
}

// Trimmed returns a copy with surrounding whitespace removed from both fields
func (in PipelineInput) Trimmed() PipelineInput {
	return PipelineInput{
		JobDescription: strings.TrimSpace(in.JobDescription),
		BaseCV:         strings.TrimSpace(in.BaseCV),
	}
}

// AnalyzeJobInput represents the input for the analysis stage alone
type AnalyzeJobInput struct {
	JobDescription string `json:"job_description" validate:"required"`
}

// JobAnalysis is the structured result of the analysis stage
type JobAnalysis struct {
	CompanyName string   `json:"company_name"`
	Keywords    []string `json:"keywords"`
}

// CultureReport is the free-form research text about the target company
type CultureReport string

// PipelineResult is the terminal artifact of a successful run
type PipelineResult struct {
	OptimizedCV   string `json:"optimized_cv"`
	CompanyName   string `json:"company_name"`
	KeywordsCount int    `json:"keywords_count"`
}
