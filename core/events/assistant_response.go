package events

const (
	// KindAssistantFragment identifies a dispatched text fragment.
	KindAssistantFragment Kind = "assistant_response.fragment"
	// KindAssistantStepFailed identifies a skipped recoverable step.
	KindAssistantStepFailed Kind = "assistant_response.step_failed"
)

// AssistantFragment carries a fragment dispatched as text.
type AssistantFragment struct {
	Base
	TurnID   string
	Sequence int
	Text     string
}

// NewAssistantFragment creates an assistant fragment event.
func NewAssistantFragment(turnID string, sequence int, text string) AssistantFragment {
	return AssistantFragment{Base: NewBase(KindAssistantFragment), TurnID: turnID, Sequence: sequence, Text: text}
}

// AssistantStepFailed carries the error of a step that was skipped.
type AssistantStepFailed struct {
	Base
	TurnID string
	Step   string
	Err    error
}

// NewAssistantStepFailed creates an assistant step failed event.
func NewAssistantStepFailed(turnID, step string, err error) AssistantStepFailed {
	return AssistantStepFailed{Base: NewBase(KindAssistantStepFailed), TurnID: turnID, Step: step, Err: err}
}
