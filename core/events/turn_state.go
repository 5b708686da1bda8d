package events

const (
	// KindTurnStarted identifies the start of a turn.
	KindTurnStarted Kind = "turn_state.started"
	// KindTurnStateChanged identifies a turn state transition.
	KindTurnStateChanged Kind = "turn_state.changed"
	// KindTurnCompleted identifies a turn that spoke every planned fragment.
	KindTurnCompleted Kind = "turn_state.completed"
	// KindTurnAborted identifies a turn stopped by pending perceptions.
	KindTurnAborted Kind = "turn_state.aborted"
	// KindTurnFailed identifies a turn stopped by a fatal error.
	KindTurnFailed Kind = "turn_state.failed"
)

// TurnStarted marks the start of a turn.
type TurnStarted struct {
	Base
	TurnID       string
	PerceptionID string
}

// NewTurnStarted creates a turn started event.
func NewTurnStarted(turnID, perceptionID string) TurnStarted {
	return TurnStarted{Base: NewBase(KindTurnStarted), TurnID: turnID, PerceptionID: perceptionID}
}

// TurnStateChanged carries the state a turn moved into.
type TurnStateChanged struct {
	Base
	TurnID string
	State  string
}

// NewTurnStateChanged creates a turn state changed event.
func NewTurnStateChanged(turnID, state string) TurnStateChanged {
	return TurnStateChanged{Base: NewBase(KindTurnStateChanged), TurnID: turnID, State: state}
}

// TurnCompleted marks a completed turn.
type TurnCompleted struct {
	Base
	TurnID    string
	Fragments int
}

// NewTurnCompleted creates a turn completed event.
func NewTurnCompleted(turnID string, fragments int) TurnCompleted {
	return TurnCompleted{Base: NewBase(KindTurnCompleted), TurnID: turnID, Fragments: fragments}
}

// TurnAborted marks a turn stopped at a fragment boundary.
type TurnAborted struct {
	Base
	TurnID    string
	Fragments int
}

// NewTurnAborted creates a turn aborted event.
func NewTurnAborted(turnID string, fragments int) TurnAborted {
	return TurnAborted{Base: NewBase(KindTurnAborted), TurnID: turnID, Fragments: fragments}
}

// TurnFailed marks a turn stopped by a fatal error.
type TurnFailed struct {
	Base
	TurnID string
	Err    error
}

// NewTurnFailed creates a turn failed event.
func NewTurnFailed(turnID string, err error) TurnFailed {
	return TurnFailed{Base: NewBase(KindTurnFailed), TurnID: turnID, Err: err}
}
