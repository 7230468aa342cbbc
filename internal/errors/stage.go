package errors

import (
	stderrors "errors"
	"fmt"
)

// Stage names one step of the optimization pipeline.
type Stage string

const (
	StageAnalysis        Stage = "analysis"
	StageCultureResearch Stage = "culture_research"
	StageSynthesis       Stage = "synthesis"
)

// Number returns the 1-based position of the stage in the pipeline.
func (s Stage) Number() int {
	switch s {
	case StageAnalysis:
		return 1
	case StageCultureResearch:
		return 2
	case StageSynthesis:
		return 3
	default:
		return 0
	}
}

// Title returns a human readable label, e.g. "Stage 2 (culture research)".
func (s Stage) Title() string {
	switch s {
	case StageAnalysis:
		return "Stage 1 (job analysis)"
	case StageCultureResearch:
		return "Stage 2 (culture research)"
	case StageSynthesis:
		return "Stage 3 (resume synthesis)"
	default:
		return fmt.Sprintf("Stage (%s)", string(s))
	}
}

// StageError tags a pipeline failure with the stage that produced it.
type StageError struct {
	Stage Stage
	Cause error
}

func NewStageError(stage Stage, cause error) *StageError {
	return &StageError{Stage: stage, Cause: cause}
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage.Title(), e.Cause)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// AsStageError returns the StageError in err's chain, if any.
func AsStageError(err error) (*StageError, bool) {
	var stageErr *StageError
	if stderrors.As(err, &stageErr) {
		return stageErr, true
	}
	return nil, false
}
