package errors

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderErrorCarriesRetryable(t *testing.T) {
	cause := stderrors.New("429 too many requests")
	err := NewProviderError("gemini", "generation failed", true, cause)

	assert.Equal(t, ErrCodeProviderFailed, err.Code)
	assert.Equal(t, ErrorTypeProvider, err.Type)
	assert.True(t, err.Retryable)
	assert.Equal(t, "gemini", err.Context["provider"])
	assert.ErrorIs(t, err, cause)
}

func TestRetryExhaustedError(t *testing.T) {
	err := NewRetryExhaustedError("gemini", 3, stderrors.New("quota"))

	assert.Equal(t, ErrCodeRetryExhausted, err.Code)
	assert.Equal(t, 3, err.Context["attempts"])
	assert.False(t, err.Retryable)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestIsRetryableWalksWrappedChain(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", stderrors.New("rate limit"), false},
		{"retryable provider error", NewProviderError("gemini", "x", true, nil), true},
		{"terminal provider error", NewProviderError("gemini", "x", false, nil), false},
		{"wrapped retryable", fmt.Errorf("call: %w", NewProviderError("gemini", "x", true, nil)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestHasCodeFindsNestedAppError(t *testing.T) {
	inner := NewMalformedAnalysisError(stderrors.New("unexpected end of JSON input"))
	outer := NewStageError(StageAnalysis, NewInternalError("WRAPPED", "wrapper", inner))

	assert.True(t, HasCode(outer, ErrCodeMalformedAnalysis))
	assert.True(t, HasCode(outer, "WRAPPED"))
	assert.False(t, HasCode(outer, ErrCodeRetryExhausted))
	assert.False(t, HasCode(stderrors.New("plain"), ErrCodeMalformedAnalysis))
}

func TestStageError(t *testing.T) {
	cause := NewProviderError("perplexity", "research failed", false, nil)
	err := error(NewStageError(StageCultureResearch, cause))

	stageErr, ok := AsStageError(fmt.Errorf("run: %w", err))
	require.True(t, ok)
	assert.Equal(t, StageCultureResearch, stageErr.Stage)
	assert.Equal(t, 2, stageErr.Stage.Number())
	assert.Contains(t, err.Error(), "Stage 2 (culture research) failed")
	assert.ErrorIs(t, err, cause)

	_, ok = AsStageError(stderrors.New("plain"))
	assert.False(t, ok)
}

func TestLoggerLogErrorExpandsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, slog.LevelDebug)

	err := NewStageError(StageSynthesis, NewRetryExhaustedError("gemini", 3, nil))
	logger.With("run_id", "abc").LogError(err, "Pipeline run failed")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "Pipeline run failed", record["msg"])
	assert.Equal(t, "abc", record["run_id"])
	assert.Equal(t, "synthesis", record["stage"])
	assert.Equal(t, ErrCodeRetryExhausted, record["error_code"])
	assert.Equal(t, float64(3), record["attempts"])
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}
