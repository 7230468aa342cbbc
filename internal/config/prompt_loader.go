package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Prompt names used in logs, file lookups and the prompt watcher
const (
	PromptAnalysis        = "analysis"
	PromptCultureResearch = "cultureResearch"
	PromptSynthesis       = "synthesis"
)

// PromptTemplates holds the override template for each stage prompt.
// An empty field means the built-in template is used.
type PromptTemplates struct {
	Analysis        string
	CultureResearch string
	Synthesis       string
	Sources         map[string]string // prompt name -> "file:<path>", "config" or "default"
}

type promptSpec struct {
	name   string
	inline string
	file   string
	target *string
}

func (p PromptsConfig) specs(out *PromptTemplates) []promptSpec {
	return []promptSpec{
		{PromptAnalysis, p.Analysis, p.AnalysisFile, &out.Analysis},
		{PromptCultureResearch, p.CultureResearch, p.CultureResearchFile, &out.CultureResearch},
		{PromptSynthesis, p.Synthesis, p.SynthesisFile, &out.Synthesis},
	}
}

// PromptFiles returns the configured prompt file paths keyed by prompt name
func (p PromptsConfig) PromptFiles() map[string]string {
	files := make(map[string]string)
	for _, spec := range p.specs(&PromptTemplates{}) {
		if spec.file != "" {
			files[spec.name] = spec.file
		}
	}
	return files
}

// LoadPromptTemplates resolves every prompt override. A file wins over an
// inline template; neither means the built-in default.
func LoadPromptTemplates(p PromptsConfig) (PromptTemplates, error) {
	log.Println("[CONFIG] Starting prompt template loading")

	result := PromptTemplates{Sources: make(map[string]string)}
	for _, spec := range p.specs(&result) {
		switch {
		case spec.file != "":
			content, err := loadPromptFromFile(spec.file, spec.name)
			if err != nil {
				return PromptTemplates{}, err
			}
			*spec.target = content
			result.Sources[spec.name] = "file:" + spec.file
		case strings.TrimSpace(spec.inline) != "":
			*spec.target = strings.TrimSpace(spec.inline)
			result.Sources[spec.name] = "config"
		default:
			result.Sources[spec.name] = "default"
		}
	}

	logPromptLoadingSummary(result)
	return result, nil
}

// loadPromptFromFile reads one prompt template and rejects empty files
func loadPromptFromFile(filePath, name string) (string, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for %s prompt file '%s': %w", name, filePath, err)
	}

	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return "", fmt.Errorf("%s prompt file not found: %s", name, absPath)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s prompt file '%s': %w", name, absPath, err)
	}

	trimmed := strings.TrimSpace(string(content))
	if trimmed == "" {
		return "", fmt.Errorf("%s prompt file '%s' is empty", name, absPath)
	}

	log.Printf("[CONFIG] Successfully loaded %s prompt from file: %s (%d characters)", name, absPath, len(trimmed))
	return trimmed, nil
}

// validatePromptFiles checks that every configured prompt file exists
func (p PromptsConfig) validatePromptFiles() error {
	var validationErrors []string

	for name, filePath := range p.PromptFiles() {
		absPath, err := filepath.Abs(filePath)
		if err != nil {
			validationErrors = append(validationErrors, fmt.Sprintf("invalid path for %s prompt: %s", name, filePath))
			continue
		}
		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			validationErrors = append(validationErrors, fmt.Sprintf("%s prompt file not found: %s", name, absPath))
		}
	}

	if len(validationErrors) > 0 {
		return fmt.Errorf("prompt file validation failed:\n%s", strings.Join(validationErrors, "\n"))
	}
	return nil
}

func logPromptLoadingSummary(prompts PromptTemplates) {
	log.Println("[CONFIG] === Prompt Template Summary ===")
	custom := 0
	for _, name := range []string{PromptAnalysis, PromptCultureResearch, PromptSynthesis} {
		source := prompts.Sources[name]
		log.Printf("[CONFIG] %s prompt: %s", name, source)
		if source != "default" {
			custom++
		}
	}
	if custom == 0 {
		log.Println("[CONFIG] No custom prompts loaded - using built-in defaults")
	} else {
		log.Printf("[CONFIG] Total custom prompts loaded: %d", custom)
	}
	log.Println("[CONFIG] ==========================================")
}
