package server

import (
	"context"
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"cvoptimizer/internal/errors"
	"cvoptimizer/internal/types"
)

// optimizeHandler runs the full pipeline for one request
func (s *Server) optimizeHandler(w http.ResponseWriter, r *http.Request) {
	tracer := s.observability.Tracer("cvoptimizer.api")
	ctx, span := tracer.Start(r.Context(), "api.optimize")
	defer span.End()

	var req types.PipelineInput
	if err := parseJSONRequest(r, &req); err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.type", "validation"))
		writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	span.SetAttributes(
		attribute.Int("request.job_length", len(req.JobDescription)),
		attribute.Int("request.cv_length", len(req.BaseCV)),
	)

	ctx, cancel := s.runContext(ctx)
	defer cancel()

	result, err := s.optimizer.Run(ctx, req)
	if err != nil {
		span.RecordError(err)
		s.writePipelineError(w, err)
		return
	}

	span.SetAttributes(
		attribute.Bool("success", true),
		attribute.String("response.company_name", result.CompanyName),
		attribute.Int("response.keywords_count", result.KeywordsCount),
	)
	writeJSON(w, http.StatusOK, result)
}

// analyzeHandler runs the analysis stage only
func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	tracer := s.observability.Tracer("cvoptimizer.api")
	ctx, span := tracer.Start(r.Context(), "api.analyze")
	defer span.End()

	var req AnalyzeRequest
	if err := parseJSONRequest(r, &req); err != nil {
		span.RecordError(err)
		writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.Int("request.job_length", len(req.JobDescription)))

	ctx, cancel := s.runContext(ctx)
	defer cancel()

	analysis, err := s.optimizer.Analyze(ctx, req.JobDescription)
	if err != nil {
		span.RecordError(err)
		s.writePipelineError(w, err)
		return
	}

	span.SetAttributes(
		attribute.Bool("success", true),
		attribute.Int("response.keywords_count", len(analysis.Keywords)),
	)
	writeJSON(w, http.StatusOK, analysis)
}

// runContext applies the per-run deadline
func (s *Server) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if timeout := s.AppConfig.Pipeline.RunTimeout; timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

// writePipelineError maps a pipeline failure onto an HTTP status:
// 400 for invalid input, 503 with Retry-After when the provider stayed
// throttled, 504 when the run deadline passed and 500 otherwise.
func (s *Server) writePipelineError(w http.ResponseWriter, err error) {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) && appErr.Type == errors.ErrorTypeValidation {
		writeErrorResponse(w, "Invalid input", appErr.Message, http.StatusBadRequest)
		return
	}

	resp := ErrorResponse{Error: "Pipeline failed", Message: err.Error()}
	if stageErr, ok := errors.AsStageError(err); ok {
		resp = ErrorResponse{
			Error:   stageErr.Stage.Title() + " failed",
			Message: stageErr.Cause.Error(),
			Stage:   string(stageErr.Stage),
		}
	}

	status := http.StatusInternalServerError
	switch {
	case errors.HasCode(err, errors.ErrCodeRetryExhausted):
		status = http.StatusServiceUnavailable
		w.Header().Set("Retry-After", s.retryAfterSeconds())
	case stderrors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	s.Logger.LogError(err, "Request failed", "status", status)
	writeJSON(w, status, resp)
}

func (s *Server) retryAfterSeconds() string {
	wait := s.AppConfig.AI.Gemini.RetryWait
	if wait < time.Second {
		wait = time.Second
	}
	return strconv.Itoa(int(wait.Seconds()))
}
