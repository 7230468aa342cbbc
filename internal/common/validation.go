package common

import (
	"fmt"
	"slices"
	"strings"

	"cvoptimizer/internal/errors"
)

// ResolveOutputFormat picks the requested format, or fallback when none was
// requested, and checks it against the supported list. Matching ignores case.
// An empty supported list allows any format.
func ResolveOutputFormat(requested, fallback string, supportedFormats []string) (string, error) {
	format := strings.ToLower(strings.TrimSpace(requested))
	if format == "" {
		format = strings.ToLower(fallback)
	}

	if len(supportedFormats) == 0 || slices.Contains(supportedFormats, format) {
		return format, nil
	}

	return "", errors.NewValidationError(errors.ErrCodeInvalidFormat,
		fmt.Sprintf("unsupported output format '%s'. Supported formats: %v", format, supportedFormats), nil)
}
