package orchestration

import (
	"errors"
	"fmt"
)

var (
	// ErrNoImage is returned when an object was added without an image.
	ErrNoImage = errors.New("no image found")
	// ErrNoDescription is returned when neither the perception nor the image
	// describer produced a room description.
	ErrNoDescription = errors.New("no description found")
	// ErrNoGenerator is returned when a text generating step runs without a
	// configured language model.
	ErrNoGenerator = errors.New("no text generator configured")
	ErrNoDescriber = errors.New("no image describer configured")

	errPendingPerceptions = errors.New("perceptions pending")
)

// Step names a single stage of a turn.
type Step string

const (
	StepDescribeInput     Step = "describe input"
	StepComputeChange     Step = "compute change"
	StepMonologue         Step = "monologue"
	StepGenerateFragment  Step = "generate fragment"
	StepPlanFragmentCount Step = "plan fragment count"
	StepPlanLength        Step = "plan fragment length"
	StepPlanConclusion    Step = "plan conclusion"
	StepSummarize         Step = "summarize"
)

func (s Step) String() string { return string(s) }

// FatalTurnError ends a turn in the Failed state.
type FatalTurnError struct {
	Step Step
	Err  error
}

func (e *FatalTurnError) Error() string {
	return fmt.Sprintf("turn failed to %s: %v", e.Step, e.Err)
}

func (e *FatalTurnError) Unwrap() error { return e.Err }

// RecoverableStepError is reported for steps whose failure leaves the turn
// running with a default outcome.
type RecoverableStepError struct {
	Step Step
	Err  error
}

func (e *RecoverableStepError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Step, e.Err)
}

func (e *RecoverableStepError) Unwrap() error { return e.Err }

// DispatchError is returned when a fragment could not be handed to the
// dispatch sink.
type DispatchError struct {
	Sequence int
	Err      error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("failed to dispatch fragment %d: %v", e.Sequence, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }
