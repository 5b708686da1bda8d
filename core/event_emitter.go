package orchestration

import events "github.com/koscakluka/ema-room/core/events"

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

func newCallbackEventEmitter(opts OrchestrateOptions) eventEmitter {
	return func(event events.Event) {
		if opts.onEvent != nil {
			opts.onEvent(event)
		}

		switch typedEvent := event.(type) {
		case events.AssistantFragment:
			if opts.onFragment != nil {
				opts.onFragment(typedEvent.TurnID, typedEvent.Sequence, typedEvent.Text)
			}
		case events.TurnStateChanged:
			if opts.onTurnState != nil {
				opts.onTurnState(typedEvent.TurnID, typedEvent.State)
			}
		case events.MemorySummarized:
			if opts.onSummary != nil {
				opts.onSummary(typedEvent.Notes)
			}
		}
	}
}
