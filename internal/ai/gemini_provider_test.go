package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"cvoptimizer/internal/config"
	apperrors "cvoptimizer/internal/errors"
)

func testGeminiConfig(baseURL string) config.GeminiConfig {
	return config.GeminiConfig{
		APIKey:     "test-key",
		Model:      "gemini-test",
		BaseURL:    baseURL,
		Timeout:    5 * time.Second,
		MaxRetries: 2,
		RetryWait:  60 * time.Second,
	}
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromText(text, genai.RoleModel),
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     10,
			CandidatesTokenCount: 20,
			TotalTokenCount:      30,
		},
	}
}

func newStubbedGemini(t *testing.T, fn generateFunc, opts ...GeminiOption) (*GeminiProvider, *recordingSleeper) {
	t.Helper()
	sleeper := &recordingSleeper{}
	opts = append([]GeminiOption{withGenerateFunc(fn), WithSleeper(sleeper.Sleep)}, opts...)
	g, err := NewGeminiProvider(context.Background(), testGeminiConfig(""), testLogger, opts...)
	require.NoError(t, err)
	return g, sleeper
}

func TestGeminiGenerateRetriesRateLimit(t *testing.T) {
	calls := 0
	g, sleeper := newStubbedGemini(t, func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		calls++
		if calls <= 2 {
			return nil, errors.New("429: rate limit exceeded")
		}
		return textResponse("tailored cv"), nil
	})

	text, usage, err := g.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "tailored cv", text)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{60 * time.Second, 60 * time.Second}, sleeper.waits)
	require.NotNil(t, usage)
	assert.Equal(t, int64(30), usage.TotalTokens)
}

func TestGeminiGenerateDoesNotRetryOtherFailures(t *testing.T) {
	calls := 0
	g, sleeper := newStubbedGemini(t, func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		calls++
		return nil, errors.New("invalid API key")
	})

	_, _, err := g.Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeper.waits)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeProviderFailed))
	assert.False(t, apperrors.IsRetryable(err))
}

func TestGeminiGenerateRetryExhausted(t *testing.T) {
	calls := 0
	retries := 0
	g, _ := newStubbedGemini(t, func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		calls++
		return nil, errors.New("quota exceeded")
	}, WithRetryHook(func(context.Context) { retries++ }))

	_, _, err := g.Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, retries)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeRetryExhausted))
}

func TestGeminiGenerateEmptyResponseIsTerminal(t *testing.T) {
	calls := 0
	g, sleeper := newStubbedGemini(t, func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		calls++
		return &genai.GenerateContentResponse{}, nil
	})

	_, _, err := g.Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeper.waits)
	assert.Contains(t, err.Error(), "empty response")
}

func TestGeminiGenerateSendsFixedSampling(t *testing.T) {
	var gotModel string
	var gotCfg *genai.GenerateContentConfig
	var gotPrompt string
	g, _ := newStubbedGemini(t, func(_ context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		gotModel = model
		gotCfg = cfg
		gotPrompt = contents[0].Parts[0].Text
		return textResponse("ok"), nil
	})

	_, _, err := g.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "gemini-test", gotModel)
	assert.Equal(t, "hello", gotPrompt)
	require.NotNil(t, gotCfg)
	assert.Equal(t, float32(0.7), *gotCfg.Temperature)
	assert.Equal(t, float32(0.95), *gotCfg.TopP)
	assert.Equal(t, float32(40), *gotCfg.TopK)
	assert.Equal(t, int32(8192), gotCfg.MaxOutputTokens)
}

func TestGeminiGenerateOverHTTP(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := requests.Add(1)
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/gemini-test:generateContent"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		if n == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": "from server"}},
				},
			}},
		})
	}))
	defer server.Close()

	sleeper := &recordingSleeper{}
	g, err := NewGeminiProvider(context.Background(), testGeminiConfig(server.URL), testLogger, WithSleeper(sleeper.Sleep))
	require.NoError(t, err)

	text, _, err := g.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "from server", text)
	assert.Equal(t, int32(2), requests.Load())
	assert.Len(t, sleeper.waits, 1)
}

func TestGeminiGenerateHTTPBadRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`))
	}))
	defer server.Close()

	sleeper := &recordingSleeper{}
	g, err := NewGeminiProvider(context.Background(), testGeminiConfig(server.URL), testLogger, WithSleeper(sleeper.Sleep))
	require.NoError(t, err)

	_, _, err = g.Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.False(t, apperrors.IsRetryable(err))
	assert.Empty(t, sleeper.waits)

	var apiErr genai.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 400, apiErr.Code)
}

func TestGeminiCircuitBreakerStatsDisabled(t *testing.T) {
	g, _ := newStubbedGemini(t, nil)
	stats := g.CircuitBreakerStats()
	assert.Equal(t, true, stats["overall_healthy"])
	assert.Equal(t, map[string]any{"enabled": false}, stats["generate"])
}
