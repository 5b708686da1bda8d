package orchestration

import (
	"github.com/koscakluka/ema-room/core/memory"
)

// DefaultRoomDescription is the room as it is remembered before anything
// was added to it.
const DefaultRoomDescription = "- The human is positioned in the center of the image, facing downward."

// SessionState is everything a session carries from one turn to the next.
type SessionState struct {
	Memory                memory.WorkingMemory
	RoomDescription       string
	PreviousFragmentCount int
	// EventNotes are the running notes of the conversation kept by the
	// summary step, empty until the first summary.
	EventNotes string
}

// NewSessionState returns the state of a fresh session whose memory only
// holds the soul's blueprint.
func NewSessionState(soulName string) SessionState {
	return SessionState{
		Memory: memory.New(soulName, memory.Entry{
			Role:    memory.RoleSystem,
			Content: newInstructions(soulName).blueprint(),
		}),
		RoomDescription:       DefaultRoomDescription,
		PreviousFragmentCount: 0,
	}
}
