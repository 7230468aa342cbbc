package common

import (
	"fmt"
	"os"
	"strings"

	"cvoptimizer/internal/errors"
)

// FileProcessor reads command inputs and writes command outputs
type FileProcessor struct {
	maxFileSize int64
	logger      *errors.Logger
}

// NewFileProcessor creates a file processor that rejects inputs larger than
// maxFileSize bytes. Zero means no limit.
func NewFileProcessor(maxFileSize int64, logger *errors.Logger) *FileProcessor {
	return &FileProcessor{maxFileSize: maxFileSize, logger: logger}
}

// ReadFile reads the whole file as text
func (fp *FileProcessor) ReadFile(filename string) (string, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewIOError(errors.ErrCodeFileNotFound,
				fmt.Sprintf("File not found: %s", filename), err)
		}
		return "", errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read file: %s", filename), err)
	}
	return string(content), nil
}

// WriteFile writes content to a file, creating its directory
func (fp *FileProcessor) WriteFile(filename, content string) error {
	if err := ensureOutputDir(filename); err != nil {
		return errors.NewIOError("DIRECTORY_CREATE_FAILED",
			fmt.Sprintf("Cannot create directory for: %s", filename), err)
	}

	if err := os.WriteFile(filename, []byte(content), 0600); err != nil {
		return errors.NewIOError("FILE_WRITE_FAILED",
			fmt.Sprintf("Cannot write file: %s", filename), err)
	}

	return nil
}

// ValidateAndReadFiles validates and reads every input file in order.
// A file with only whitespace is rejected.
func (fp *FileProcessor) ValidateAndReadFiles(filenames ...string) ([]string, error) {
	contents := make([]string, len(filenames))

	for i, filename := range filenames {
		if err := validateInputFile(filename, fp.maxFileSize); err != nil {
			return nil, errors.NewValidationError("INVALID_INPUT_FILE",
				fmt.Sprintf("Invalid file %s", filename), err)
		}

		if !isTextFile(filename) && fp.logger != nil {
			fp.logger.Warn("File may not be a text file", "filename", filename)
		}

		content, err := fp.ReadFile(filename)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(content) == "" {
			return nil, errors.NewValidationError(errors.ErrCodeInvalidInput,
				fmt.Sprintf("File is empty: %s", filename), nil)
		}

		contents[i] = content
	}

	return contents, nil
}

// ValidateOutputFile validates the output file path. Empty means stdout.
func (fp *FileProcessor) ValidateOutputFile(filename string) error {
	if filename == "" {
		return nil
	}

	if err := ensureOutputDir(filename); err != nil {
		return errors.NewValidationError("INVALID_OUTPUT_FILE",
			fmt.Sprintf("Invalid output file: %s", filename), err)
	}

	return nil
}
