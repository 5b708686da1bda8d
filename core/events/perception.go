package events

// KindPerceptionReceived identifies a queued perception.
const KindPerceptionReceived Kind = "perception.received"

// PerceptionReceived marks a perception entering the queue.
type PerceptionReceived struct {
	Base
	PerceptionID string
	Action       string
	Pending      int
}

// NewPerceptionReceived creates a perception received event.
func NewPerceptionReceived(perceptionID, action string, pending int) PerceptionReceived {
	return PerceptionReceived{
		Base:         NewBase(KindPerceptionReceived),
		PerceptionID: perceptionID,
		Action:       action,
		Pending:      pending,
	}
}
