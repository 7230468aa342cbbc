package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"cvoptimizer/internal/ai"
	"cvoptimizer/internal/errors"
	"cvoptimizer/internal/extraction"
	"cvoptimizer/internal/types"
)

// OutcomeCompleted labels a successful run for Recorder.RecordRun.
// Failed runs are labelled with the failing stage.
const OutcomeCompleted = "completed"

// Recorder receives pipeline measurements
type Recorder interface {
	RecordAIOperation(ctx context.Context, provider, operation string, duration time.Duration, usage *ai.TokenUsage, err error)
	RecordStage(ctx context.Context, stage string, duration time.Duration, err error)
	RecordRun(ctx context.Context, outcome string)
}

type noopRecorder struct{}

func (noopRecorder) RecordAIOperation(context.Context, string, string, time.Duration, *ai.TokenUsage, error) {
}
func (noopRecorder) RecordStage(context.Context, string, time.Duration, error) {}
func (noopRecorder) RecordRun(context.Context, string)                        {}

// Orchestrator chains job analysis, culture research and CV synthesis.
// It holds no per-run state and is safe for concurrent use.
type Orchestrator struct {
	generator  ai.Generator
	researcher ai.Researcher
	prompts    *ai.PromptStore
	validate   *validator.Validate
	recorder   Recorder
	hook       StateHook
	newRunID   func() string
	logger     *errors.Logger
}

// Option customizes an Orchestrator
type Option func(*Orchestrator)

// WithPromptStore sets the store prompts are read from at the start of each run
func WithPromptStore(store *ai.PromptStore) Option {
	return func(o *Orchestrator) { o.prompts = store }
}

// WithRecorder sets the metrics sink
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithStateHook registers an observer for state transitions
func WithStateHook(hook StateHook) Option {
	return func(o *Orchestrator) { o.hook = hook }
}

// WithRunIDGenerator replaces the uuid run id generator
func WithRunIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) { o.newRunID = fn }
}

// New creates an orchestrator over the two providers
func New(generator ai.Generator, researcher ai.Researcher, logger *errors.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		generator:  generator,
		researcher: researcher,
		prompts:    ai.NewPromptStore(ai.DefaultPromptSet()),
		validate:   newValidator(),
		recorder:   noopRecorder{},
		newRunID:   uuid.NewString,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// run carries the values of a single pipeline execution
type run struct {
	*Orchestrator
	id      string
	state   State
	prompts *ai.PromptSet
	logger  *errors.Logger
	tracer  trace.Tracer
}

func (o *Orchestrator) newRun() *run {
	id := o.newRunID()
	return &run{
		Orchestrator: o,
		id:           id,
		state:        StateIdle,
		prompts:      o.prompts.Current(),
		logger:       o.logger.With("run_id", id),
		tracer:       otel.Tracer("cvoptimizer.pipeline"),
	}
}

// Run executes the three stages in order. Invalid input fails before any
// provider call. A stage failure is returned as *errors.StageError and no
// later stage runs.
func (o *Orchestrator) Run(ctx context.Context, input types.PipelineInput) (*types.PipelineResult, error) {
	r := o.newRun()
	input = input.Trimmed()

	if err := validateInput(o.validate, input); err != nil {
		r.logger.LogError(err, "Pipeline input rejected")
		return nil, err
	}

	ctx, span := r.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("pipeline.run_id", r.id),
		attribute.Int("input.job_description_length", len(input.JobDescription)),
		attribute.Int("input.base_cv_length", len(input.BaseCV)),
	))
	defer span.End()

	r.logger.Info("Pipeline run started",
		"job_description_length", len(input.JobDescription),
		"base_cv_length", len(input.BaseCV))
	start := time.Now()

	result, err := r.execute(ctx, input)
	if err != nil {
		if stageErr, ok := errors.AsStageError(err); ok {
			r.recorder.RecordRun(ctx, string(stageErr.Stage))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.LogError(err, "Pipeline run failed", "duration", time.Since(start).String())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("pipeline.company_name", result.CompanyName),
		attribute.Int("pipeline.keywords_count", result.KeywordsCount),
	)
	r.logger.Info("Pipeline run completed",
		"company_name", result.CompanyName,
		"keywords_count", result.KeywordsCount,
		"optimized_cv_length", len(result.OptimizedCV),
		"duration", time.Since(start).String())
	return result, nil
}

func (r *run) execute(ctx context.Context, input types.PipelineInput) (*types.PipelineResult, error) {
	var analysis types.JobAnalysis
	err := r.stage(ctx, errors.StageAnalysis, func(ctx context.Context) error {
		var err error
		analysis, err = r.analyze(ctx, input.JobDescription)
		return err
	})
	if err != nil {
		return nil, err
	}

	var report types.CultureReport
	err = r.stage(ctx, errors.StageCultureResearch, func(ctx context.Context) error {
		var err error
		report, err = r.research(ctx, analysis)
		return err
	})
	if err != nil {
		return nil, err
	}

	var optimized string
	err = r.stage(ctx, errors.StageSynthesis, func(ctx context.Context) error {
		var err error
		optimized, err = r.synthesize(ctx, input, analysis, report)
		return err
	})
	if err != nil {
		return nil, err
	}

	r.transition(StateCompleted, "")
	r.recorder.RecordRun(ctx, OutcomeCompleted)

	return &types.PipelineResult{
		OptimizedCV:   optimized,
		CompanyName:   analysis.CompanyName,
		KeywordsCount: len(analysis.Keywords),
	}, nil
}

// Analyze runs the analysis stage alone
func (o *Orchestrator) Analyze(ctx context.Context, jobDescription string) (*types.JobAnalysis, error) {
	r := o.newRun()
	input := types.AnalyzeJobInput{JobDescription: strings.TrimSpace(jobDescription)}

	if err := validateInput(o.validate, input); err != nil {
		r.logger.LogError(err, "Analysis input rejected")
		return nil, err
	}

	ctx, span := r.tracer.Start(ctx, "pipeline.analyze", trace.WithAttributes(
		attribute.String("pipeline.run_id", r.id),
	))
	defer span.End()

	var analysis types.JobAnalysis
	err := r.stage(ctx, errors.StageAnalysis, func(ctx context.Context) error {
		var err error
		analysis, err = r.analyze(ctx, input.JobDescription)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.LogError(err, "Job analysis failed")
		return nil, err
	}

	r.transition(StateCompleted, "")
	return &analysis, nil
}

// stage runs fn as the given stage, wrapping any failure in a StageError
func (r *run) stage(ctx context.Context, stage errors.Stage, fn func(ctx context.Context) error) error {
	r.transition(runningState(stage), "")

	ctx, span := r.tracer.Start(ctx, "pipeline.stage", trace.WithAttributes(
		attribute.String("pipeline.stage", string(stage)),
	))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)
	r.recorder.RecordStage(ctx, string(stage), duration, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.transition(StateFailed, stage)
		return errors.NewStageError(stage, err)
	}

	r.logger.Info("Stage completed",
		"stage", string(stage),
		"duration", duration.String())
	return nil
}

func (r *run) transition(to State, failed errors.Stage) {
	from := r.state
	r.state = to

	args := []any{"from", string(from), "to", string(to)}
	if failed != "" {
		args = append(args, "failed_stage", string(failed))
	}
	r.logger.Info("Pipeline state changed", args...)

	if r.hook != nil {
		r.hook(Transition{RunID: r.id, From: from, To: to, FailedStage: failed})
	}
}

func (r *run) analyze(ctx context.Context, jobDescription string) (types.JobAnalysis, error) {
	prompt, err := r.prompts.AnalysisPrompt(jobDescription)
	if err != nil {
		return types.JobAnalysis{}, errors.NewInternalError(errors.ErrCodeStageFailed, "failed to build analysis prompt", err)
	}

	raw, err := r.generate(ctx, errors.StageAnalysis, prompt)
	if err != nil {
		return types.JobAnalysis{}, err
	}

	analysis, err := extraction.ParseJobAnalysis(raw)
	if err != nil {
		return types.JobAnalysis{}, err
	}
	r.logger.Info("Job analysis extracted",
		"company_name", analysis.CompanyName,
		"keywords_count", len(analysis.Keywords))
	return analysis, nil
}

func (r *run) research(ctx context.Context, analysis types.JobAnalysis) (types.CultureReport, error) {
	prompt, err := r.prompts.CultureResearchPrompt(analysis)
	if err != nil {
		return "", errors.NewInternalError(errors.ErrCodeStageFailed, "failed to build culture research prompt", err)
	}

	start := time.Now()
	text, usage, err := r.researcher.Research(ctx, prompt)
	r.recorder.RecordAIOperation(ctx, ai.ProviderPerplexity, string(errors.StageCultureResearch), time.Since(start), usage, err)
	if err != nil {
		return "", err
	}

	r.logger.Info("Culture report received", "report_length", len(text))
	return types.CultureReport(text), nil
}

func (r *run) synthesize(ctx context.Context, input types.PipelineInput, analysis types.JobAnalysis, report types.CultureReport) (string, error) {
	prompt, err := r.prompts.SynthesisPrompt(input, analysis, report)
	if err != nil {
		return "", errors.NewInternalError(errors.ErrCodeStageFailed, "failed to build synthesis prompt", err)
	}
	return r.generate(ctx, errors.StageSynthesis, prompt)
}

func (r *run) generate(ctx context.Context, stage errors.Stage, prompt string) (string, error) {
	start := time.Now()
	text, usage, err := r.generator.Generate(ctx, prompt)
	r.recorder.RecordAIOperation(ctx, ai.ProviderGemini, string(stage), time.Since(start), usage, err)
	return text, err
}
