package orchestration

import (
	"github.com/koscakluka/ema-room/core/memory"
)

type TurnState int

const (
	TurnStateInit TurnState = iota
	TurnStateDescribingInput
	TurnStateComputingChange
	TurnStateMonologuing
	TurnStateSpeakingFirstFragment
	TurnStatePlanningAdditional
	TurnStateSpeakingFragment
	TurnStateConcludingCheck
	TurnStateDone
	TurnStateAborted
	TurnStateFailed
)

func (s TurnState) String() string {
	switch s {
	case TurnStateInit:
		return "init"
	case TurnStateDescribingInput:
		return "describing input"
	case TurnStateComputingChange:
		return "computing change"
	case TurnStateMonologuing:
		return "monologuing"
	case TurnStateSpeakingFirstFragment:
		return "speaking first fragment"
	case TurnStatePlanningAdditional:
		return "planning additional"
	case TurnStateSpeakingFragment:
		return "speaking fragment"
	case TurnStateConcludingCheck:
		return "concluding check"
	case TurnStateDone:
		return "done"
	case TurnStateAborted:
		return "aborted"
	case TurnStateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsFinal reports whether no transition leaves s.
func (s TurnState) IsFinal() bool {
	return s == TurnStateDone || s == TurnStateAborted || s == TurnStateFailed
}

// TurnReport is the outcome of a single turn.
type TurnReport struct {
	ID           string
	PerceptionID string
	State        TurnState
	// States lists every state the turn went through, in order.
	States    []TurnState
	Fragments []Fragment
	// Session is the state handed to the next turn. On failure it is the
	// state the turn started with.
	Session SessionState
	// Err is set for failed turns and for completed turns that stopped
	// early because a later fragment could not be generated.
	Err error
	// Truncated is set when the turn finished without speaking every
	// planned fragment.
	Truncated bool
}

func (r TurnReport) Memory() memory.WorkingMemory { return r.Session.Memory }
