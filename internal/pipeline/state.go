package pipeline

import (
	"cvoptimizer/internal/errors"
)

// State is the position of a run in the pipeline
type State string

const (
	StateIdle          State = "idle"
	StateStage1Running State = "stage1_running"
	StateStage2Running State = "stage2_running"
	StateStage3Running State = "stage3_running"
	StateCompleted     State = "completed"
	StateFailed        State = "failed"
)

// runningState returns the state a run is in while stage executes
func runningState(stage errors.Stage) State {
	switch stage {
	case errors.StageAnalysis:
		return StateStage1Running
	case errors.StageCultureResearch:
		return StateStage2Running
	default:
		return StateStage3Running
	}
}

// Transition describes one state change of a run. FailedStage is set only
// when To is StateFailed.
type Transition struct {
	RunID       string
	From        State
	To          State
	FailedStage errors.Stage
}

// StateHook observes every transition of every run. It is called on the
// run's goroutine and must not block.
type StateHook func(Transition)
