package events

const (
	// KindAssistantTalkingStarted identifies the start of clip playback.
	KindAssistantTalkingStarted Kind = "assistant_playback.talking_started"
	// KindAssistantTalkingStopped identifies the end of clip playback.
	KindAssistantTalkingStopped Kind = "assistant_playback.talking_stopped"
	// KindAssistantPlaybackFailed identifies a skipped clip.
	KindAssistantPlaybackFailed Kind = "assistant_playback.failed"
)

// AssistantTalkingStarted marks the start of clip playback.
type AssistantTalkingStarted struct {
	Base
	TurnID   string
	Sequence int
}

// NewAssistantTalkingStarted creates an assistant talking started event.
func NewAssistantTalkingStarted(turnID string, sequence int) AssistantTalkingStarted {
	return AssistantTalkingStarted{Base: NewBase(KindAssistantTalkingStarted), TurnID: turnID, Sequence: sequence}
}

// AssistantTalkingStopped marks the end of clip playback.
type AssistantTalkingStopped struct {
	Base
	TurnID   string
	Sequence int
}

// NewAssistantTalkingStopped creates an assistant talking stopped event.
func NewAssistantTalkingStopped(turnID string, sequence int) AssistantTalkingStopped {
	return AssistantTalkingStopped{Base: NewBase(KindAssistantTalkingStopped), TurnID: turnID, Sequence: sequence}
}

// AssistantPlaybackFailed carries the error of a skipped clip.
type AssistantPlaybackFailed struct {
	Base
	TurnID   string
	Sequence int
	Err      error
}

// NewAssistantPlaybackFailed creates an assistant playback failed event.
func NewAssistantPlaybackFailed(turnID string, sequence int, err error) AssistantPlaybackFailed {
	return AssistantPlaybackFailed{Base: NewBase(KindAssistantPlaybackFailed), TurnID: turnID, Sequence: sequence, Err: err}
}
