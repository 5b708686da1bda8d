package events

const (
	// KindAssistantSpeechReady identifies synthesized audio for a fragment.
	KindAssistantSpeechReady Kind = "assistant_speech.ready"
	// KindAssistantSpeechFailed identifies failed synthesis for a fragment.
	KindAssistantSpeechFailed Kind = "assistant_speech.failed"
)

// AssistantSpeechReady carries the audio reference for a fragment.
type AssistantSpeechReady struct {
	Base
	TurnID   string
	Sequence int
	Ref      string
}

// NewAssistantSpeechReady creates an assistant speech ready event.
func NewAssistantSpeechReady(turnID string, sequence int, ref string) AssistantSpeechReady {
	return AssistantSpeechReady{Base: NewBase(KindAssistantSpeechReady), TurnID: turnID, Sequence: sequence, Ref: ref}
}

// AssistantSpeechFailed carries a synthesis error for a fragment.
type AssistantSpeechFailed struct {
	Base
	TurnID   string
	Sequence int
	Err      error
}

// NewAssistantSpeechFailed creates an assistant speech failed event.
func NewAssistantSpeechFailed(turnID string, sequence int, err error) AssistantSpeechFailed {
	return AssistantSpeechFailed{Base: NewBase(KindAssistantSpeechFailed), TurnID: turnID, Sequence: sequence, Err: err}
}
