package ai

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"

	"cvoptimizer/internal/errors"
)

// throttlingMarkers identify upstream rate or quota limiting in a failure description
var throttlingMarkers = []string{"rate", "quota", "limit", "resource"}

// classifyGeminiError converts a raw Gemini failure into a provider error
// whose Retryable flag marks throttling.
func classifyGeminiError(err error) *errors.AppError {
	return errors.NewProviderError(ProviderGemini, "gemini generation failed", isThrottling(err), err)
}

func isThrottling(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr genai.APIError
	if stderrors.As(err, &apiErr) && (apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED") {
		return true
	}

	var googleErr *googleapi.Error
	if stderrors.As(err, &googleErr) && googleErr.Code == http.StatusTooManyRequests {
		return true
	}

	// Error() carries details and reasons as well as the message
	return hasThrottlingMarker(err.Error())
}

func hasThrottlingMarker(description string) bool {
	lower := strings.ToLower(description)
	for _, marker := range throttlingMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
