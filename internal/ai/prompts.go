package ai

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"text/template"

	"cvoptimizer/internal/config"
	"cvoptimizer/internal/types"
)

// DefaultAnalysisPrompt asks for the employer name and keywords as bare JSON.
const DefaultAnalysisPrompt = `Analyze the following job description and extract the information in JSON format:

JOB DESCRIPTION:
{{.JobDescription}}

Please return ONLY a valid JSON object with exactly this structure:
{
  "company_name": "name of the company (or 'unidentified company' if it is not clear)",
  "keywords": ["list", "of", "important", "keywords", "and", "skills"]
}

Do not include any additional text, only the JSON.`

// DefaultCultureResearchPrompt asks for a culture briefing on the employer.
const DefaultCultureResearchPrompt = `Research and provide detailed information about the culture, values and work environment of the company "{{.CompanyName}}".

Include:
- Company mission and values
- Organizational culture
- Work environment
- Typical benefits
- Management style
- Any other information relevant to a candidate

If the company is not well known or you cannot find enough information, state that clearly.`

// DefaultSynthesisPrompt asks for the rewritten resume.
const DefaultSynthesisPrompt = `You are a resume optimization expert. Based on the information provided, create an optimized version of the resume that aligns closely with the job.

JOB DESCRIPTION:
{{.JobDescription}}

CANDIDATE'S BASE RESUME:
{{.BaseCV}}

INFORMATION ABOUT THE COMPANY CULTURE:
{{.CultureReport}}
{{- if .Keywords}}

PRIORITY KEYWORDS:
{{join .Keywords ", "}}
{{- end}}

INSTRUCTIONS:
1. Keep all information from the original resume truthful
2. Reorganize and reword the experience to highlight the skills most relevant to this job
3. Use keywords from the job description naturally
4. Adapt the tone and style to match the company culture
5. Highlight quantifiable achievements whenever possible
6. Keep a professional, easy to read format
7. Do NOT invent experience or skills that do not exist in the original resume

Please return the complete optimized resume as formatted text.`

// promptData is the value every stage template is executed against
type promptData struct {
	JobDescription string
	BaseCV         string
	CompanyName    string
	Keywords       []string
	CultureReport  string
}

// samplePromptData is used to validate templates when they are loaded
var samplePromptData = promptData{
	JobDescription: "job",
	BaseCV:         "cv",
	CompanyName:    "company",
	Keywords:       []string{"keyword"},
	CultureReport:  "culture",
}

var promptFuncs = template.FuncMap{"join": strings.Join}

// PromptSet holds the parsed templates for the three pipeline stages.
// Rendering is deterministic: the same inputs always yield the same prompt.
type PromptSet struct {
	analysis        *template.Template
	cultureResearch *template.Template
	synthesis       *template.Template
}

// NewPromptSet parses the overrides, falling back to the built-in template
// for any that are empty.
func NewPromptSet(overrides config.PromptTemplates) (*PromptSet, error) {
	analysis, err := parsePrompt(config.PromptAnalysis, overrides.Analysis, DefaultAnalysisPrompt)
	if err != nil {
		return nil, err
	}
	culture, err := parsePrompt(config.PromptCultureResearch, overrides.CultureResearch, DefaultCultureResearchPrompt)
	if err != nil {
		return nil, err
	}
	synthesis, err := parsePrompt(config.PromptSynthesis, overrides.Synthesis, DefaultSynthesisPrompt)
	if err != nil {
		return nil, err
	}
	return &PromptSet{analysis: analysis, cultureResearch: culture, synthesis: synthesis}, nil
}

// DefaultPromptSet returns the built-in templates
func DefaultPromptSet() *PromptSet {
	set, err := NewPromptSet(config.PromptTemplates{})
	if err != nil {
		panic(fmt.Sprintf("built-in prompt templates are invalid: %v", err))
	}
	return set
}

func parsePrompt(name, override, fallback string) (*template.Template, error) {
	text := resolvePrompt(override, fallback)
	tmpl, err := template.New(name).Funcs(promptFuncs).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("invalid %s prompt template: %w", name, err)
	}
	if err := tmpl.Execute(&bytes.Buffer{}, samplePromptData); err != nil {
		return nil, fmt.Errorf("invalid %s prompt template: %w", name, err)
	}
	return tmpl, nil
}

func resolvePrompt(override, fallback string) string {
	if strings.TrimSpace(override) != "" {
		return override
	}
	return fallback
}

// AnalysisPrompt renders the Stage 1 prompt
func (p *PromptSet) AnalysisPrompt(jobDescription string) (string, error) {
	return render(p.analysis, promptData{JobDescription: jobDescription})
}

// CultureResearchPrompt renders the Stage 2 prompt
func (p *PromptSet) CultureResearchPrompt(analysis types.JobAnalysis) (string, error) {
	return render(p.cultureResearch, promptData{
		CompanyName: analysis.CompanyName,
		Keywords:    analysis.Keywords,
	})
}

// SynthesisPrompt renders the Stage 3 prompt
func (p *PromptSet) SynthesisPrompt(input types.PipelineInput, analysis types.JobAnalysis, report types.CultureReport) (string, error) {
	return render(p.synthesis, promptData{
		JobDescription: input.JobDescription,
		BaseCV:         input.BaseCV,
		CompanyName:    analysis.CompanyName,
		Keywords:       analysis.Keywords,
		CultureReport:  string(report),
	})
}

func render(tmpl *template.Template, data promptData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

// PromptStore holds the active PromptSet and allows it to be swapped while
// runs are in flight. Each run reads the set once.
type PromptStore struct {
	mu  sync.RWMutex
	set *PromptSet
}

// NewPromptStore creates a store holding set
func NewPromptStore(set *PromptSet) *PromptStore {
	return &PromptStore{set: set}
}

// Current returns the active prompt set
func (s *PromptStore) Current() *PromptSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set
}

// Replace swaps in a new prompt set
func (s *PromptStore) Replace(set *PromptSet) {
	s.mu.Lock()
	s.set = set
	s.mu.Unlock()
}
