package pipeline

import (
	"bytes"
	"context"
	stderrors "errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvoptimizer/internal/ai"
	"cvoptimizer/internal/config"
	"cvoptimizer/internal/errors"
	"cvoptimizer/internal/types"
)

type stubGenerator struct {
	mu        sync.Mutex
	responses []string
	err       error
	prompts   []string
}

func (s *stubGenerator) Generate(_ context.Context, prompt string) (string, *ai.TokenUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", nil, s.err
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, &ai.TokenUsage{InputTokens: 1, OutputTokens: 1, TotalTokens: 2}, nil
}

func (s *stubGenerator) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

type stubResearcher struct {
	report  string
	err     error
	prompts []string
}

func (s *stubResearcher) Research(_ context.Context, prompt string) (string, *ai.TokenUsage, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", nil, s.err
	}
	return s.report, nil, nil
}

type recordedRun struct {
	stages   []string
	outcomes []string
	aiOps    []string
}

func (r *recordedRun) RecordAIOperation(_ context.Context, provider, operation string, _ time.Duration, _ *ai.TokenUsage, _ error) {
	r.aiOps = append(r.aiOps, provider+":"+operation)
}

func (r *recordedRun) RecordStage(_ context.Context, stage string, _ time.Duration, _ error) {
	r.stages = append(r.stages, stage)
}

func (r *recordedRun) RecordRun(_ context.Context, outcome string) {
	r.outcomes = append(r.outcomes, outcome)
}

func testLogger(buf *bytes.Buffer) *errors.Logger {
	if buf == nil {
		buf = &bytes.Buffer{}
	}
	return errors.NewLoggerWithWriter(buf, slog.LevelDebug)
}

func validInput() types.PipelineInput {
	return types.PipelineInput{
		JobDescription: "Senior Go engineer at Acme. Kubernetes, gRPC.",
		BaseCV:         "Jane Doe. Backend engineer, 6 years of Go.",
	}
}

func TestRunCompletes(t *testing.T) {
	gen := &stubGenerator{responses: []string{
		"```json\n{\"company_name\": \"Acme\", \"keywords\": [\"Go\", \"Kubernetes\", \"gRPC\"]}\n```",
		"Optimized CV for Acme",
	}}
	res := &stubResearcher{report: "Acme values ownership."}
	rec := &recordedRun{}

	var transitions []Transition
	o := New(gen, res, testLogger(nil),
		WithRecorder(rec),
		WithRunIDGenerator(func() string { return "run-1" }),
		WithStateHook(func(tr Transition) { transitions = append(transitions, tr) }))

	result, err := o.Run(context.Background(), validInput())
	require.NoError(t, err)

	assert.Equal(t, &types.PipelineResult{
		OptimizedCV:   "Optimized CV for Acme",
		CompanyName:   "Acme",
		KeywordsCount: 3,
	}, result)

	var states []State
	for _, tr := range transitions {
		assert.Equal(t, "run-1", tr.RunID)
		states = append(states, tr.To)
	}
	assert.Equal(t, []State{StateStage1Running, StateStage2Running, StateStage3Running, StateCompleted}, states)
	assert.Equal(t, StateIdle, transitions[0].From)

	assert.Equal(t, 2, gen.calls())
	require.Len(t, res.prompts, 1)
	assert.Contains(t, res.prompts[0], "Acme")
	assert.Contains(t, gen.prompts[1], "Acme values ownership.")
	assert.Contains(t, gen.prompts[1], "Go, Kubernetes, gRPC")

	assert.Equal(t, []string{"analysis", "culture_research", "synthesis"}, rec.stages)
	assert.Equal(t, []string{OutcomeCompleted}, rec.outcomes)
	assert.Equal(t, []string{"gemini:analysis", "perplexity:culture_research", "gemini:synthesis"}, rec.aiOps)
}

func TestRunDefaultsMissingAnalysisFields(t *testing.T) {
	gen := &stubGenerator{responses: []string{"{}", "cv"}}
	res := &stubResearcher{report: "unknown company"}

	result, err := New(gen, res, testLogger(nil)).Run(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, types.UnidentifiedCompany, result.CompanyName)
	assert.Equal(t, 0, result.KeywordsCount)
	assert.Contains(t, res.prompts[0], types.UnidentifiedCompany)
}

func TestRunCountsEveryDecodedKeyword(t *testing.T) {
	gen := &stubGenerator{responses: []string{`{"company_name":7,"keywords":["go",null,"k8s"]}`, "cv"}}
	res := &stubResearcher{report: "report"}

	result, err := New(gen, res, testLogger(nil)).Run(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, "7", result.CompanyName)
	assert.Equal(t, 3, result.KeywordsCount)
}

func TestRunCultureResearchFailureStopsPipeline(t *testing.T) {
	gen := &stubGenerator{responses: []string{`{"company_name":"Acme","keywords":["x"]}`, "unused"}}
	providerErr := errors.NewProviderError(ai.ProviderPerplexity, "perplexity returned HTTP 500", false, nil)
	res := &stubResearcher{err: providerErr}

	var last Transition
	o := New(gen, res, testLogger(nil), WithStateHook(func(tr Transition) { last = tr }))

	result, err := o.Run(context.Background(), validInput())
	require.Error(t, err)
	assert.Nil(t, result)

	stageErr, ok := errors.AsStageError(err)
	require.True(t, ok)
	assert.Equal(t, errors.StageCultureResearch, stageErr.Stage)
	assert.ErrorIs(t, err, providerErr)

	assert.Equal(t, 1, gen.calls(), "synthesis must not run")
	assert.Equal(t, StateFailed, last.To)
	assert.Equal(t, StateStage2Running, last.From)
	assert.Equal(t, errors.StageCultureResearch, last.FailedStage)
}

func TestRunMalformedAnalysis(t *testing.T) {
	gen := &stubGenerator{responses: []string{"I could not find a company."}}
	res := &stubResearcher{}

	_, err := New(gen, res, testLogger(nil)).Run(context.Background(), validInput())
	require.Error(t, err)

	stageErr, ok := errors.AsStageError(err)
	require.True(t, ok)
	assert.Equal(t, errors.StageAnalysis, stageErr.Stage)
	assert.True(t, errors.HasCode(err, errors.ErrCodeMalformedAnalysis))
	assert.Empty(t, res.prompts)
}

func TestRunSynthesisRetryExhausted(t *testing.T) {
	exhausted := errors.NewRetryExhaustedError(ai.ProviderGemini, 3, stderrors.New("rate limit"))
	gen := &synthesisFailingGenerator{analysis: `{"company_name":"Acme"}`, err: exhausted}
	res := &stubResearcher{report: "report"}
	rec := &recordedRun{}

	_, err := New(gen, res, testLogger(nil), WithRecorder(rec)).Run(context.Background(), validInput())
	require.Error(t, err)

	stageErr, ok := errors.AsStageError(err)
	require.True(t, ok)
	assert.Equal(t, errors.StageSynthesis, stageErr.Stage)
	assert.True(t, errors.HasCode(err, errors.ErrCodeRetryExhausted))
	assert.Equal(t, []string{string(errors.StageSynthesis)}, rec.outcomes)
}

type synthesisFailingGenerator struct {
	analysis string
	err      error
	calls    int
}

func (g *synthesisFailingGenerator) Generate(context.Context, string) (string, *ai.TokenUsage, error) {
	g.calls++
	if g.calls == 1 {
		return g.analysis, nil, nil
	}
	return "", nil, g.err
}

func TestRunRejectsEmptyInput(t *testing.T) {
	tests := []struct {
		name   string
		input  types.PipelineInput
		fields []string
	}{
		{"empty job description", types.PipelineInput{JobDescription: "", BaseCV: "cv"}, []string{"job_description"}},
		{"whitespace cv", types.PipelineInput{JobDescription: "job", BaseCV: " \n\t"}, []string{"base_cv"}},
		{"both empty", types.PipelineInput{}, []string{"job_description", "base_cv"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &stubGenerator{}
			res := &stubResearcher{}
			hooked := false
			o := New(gen, res, testLogger(nil), WithStateHook(func(Transition) { hooked = true }))

			_, err := o.Run(context.Background(), tt.input)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
			assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput))

			var appErr *errors.AppError
			require.True(t, stderrors.As(err, &appErr))
			assert.Equal(t, tt.fields, appErr.Context["fields"])

			assert.Zero(t, gen.calls())
			assert.Empty(t, res.prompts)
			assert.False(t, hooked)
		})
	}
}

func TestRunUsesPromptSnapshot(t *testing.T) {
	custom, err := ai.NewPromptSet(config.PromptTemplates{Analysis: "CUSTOM {{.JobDescription}}"})
	require.NoError(t, err)
	store := ai.NewPromptStore(custom)

	gen := &stubGenerator{responses: []string{`{"company_name":"Acme"}`, "cv"}}
	_, err = New(gen, &stubResearcher{report: "r"}, testLogger(nil), WithPromptStore(store)).
		Run(context.Background(), validInput())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(gen.prompts[0], "CUSTOM Senior Go engineer"))
}

func TestRunLogsRunID(t *testing.T) {
	var buf bytes.Buffer
	gen := &stubGenerator{responses: []string{`{"company_name":"Acme"}`, "cv"}}
	o := New(gen, &stubResearcher{report: "secret culture details"}, testLogger(&buf),
		WithRunIDGenerator(func() string { return "run-42" }))

	_, err := o.Run(context.Background(), validInput())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"run_id":"run-42"`)
	assert.Contains(t, out, `"report_length":22`)
	assert.NotContains(t, out, "secret culture details")
}

func TestConcurrentRunsAreIndependent(t *testing.T) {
	o := New(&echoGenerator{}, &stubResearcher{report: "report"}, testLogger(nil))

	var wg sync.WaitGroup
	results := make([]*types.PipelineResult, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = o.Run(context.Background(), validInput())
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, "Acme", results[i].CompanyName)
	}
}

// echoGenerator answers analysis prompts with a fixed analysis and anything else with a CV
type echoGenerator struct{}

func (echoGenerator) Generate(_ context.Context, prompt string) (string, *ai.TokenUsage, error) {
	if strings.Contains(prompt, "company_name") {
		return `{"company_name":"Acme","keywords":["Go"]}`, nil, nil
	}
	return "cv", nil, nil
}

func TestAnalyze(t *testing.T) {
	gen := &stubGenerator{responses: []string{`{"company_name":"Acme","keywords":["Go"]}`}}
	res := &stubResearcher{}

	analysis, err := New(gen, res, testLogger(nil)).Analyze(context.Background(), "  job  ")
	require.NoError(t, err)
	assert.Equal(t, &types.JobAnalysis{CompanyName: "Acme", Keywords: []string{"Go"}}, analysis)
	assert.Empty(t, res.prompts)

	_, err = New(&stubGenerator{}, res, testLogger(nil)).Analyze(context.Background(), " ")
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput))
}
