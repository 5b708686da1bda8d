package orchestration

import (
	"github.com/koscakluka/ema-room/core/events"
	"github.com/koscakluka/ema-room/core/llms"
	"github.com/koscakluka/ema-room/core/texttospeech"
)

type OrchestratorOption func(*Orchestrator)

// WithOracle uses client for every language model step of a turn.
func WithOracle(client llms.Oracle) OrchestratorOption {
	return func(o *Orchestrator) { o.llm.set(client) }
}

func WithGenerator(client llms.Generator) OrchestratorOption {
	return func(o *Orchestrator) { o.llm.generator = client }
}

func WithDecider(client llms.Decider) OrchestratorOption {
	return func(o *Orchestrator) { o.llm.decider = client }
}

func WithDescriber(client llms.Describer) OrchestratorOption {
	return func(o *Orchestrator) { o.llm.describer = client }
}

// WithTextToSpeech enables speech for every dispatched fragment.
func WithTextToSpeech(client texttospeech.Synthesizer, opts ...texttospeech.TextToSpeechOption) OrchestratorOption {
	return func(o *Orchestrator) { o.textToSpeech.set(client, opts...) }
}

func WithDispatchSink(sink DispatchSink) OrchestratorOption {
	return func(o *Orchestrator) {
		if sink != nil {
			o.sink = sink
		}
	}
}

func WithSoulName(name string) OrchestratorOption {
	return func(o *Orchestrator) {
		if name != "" {
			o.soulName = name
		}
	}
}

// WithSessionState resumes a session from state instead of starting fresh.
func WithSessionState(state SessionState) OrchestratorOption {
	return func(o *Orchestrator) { o.initialSession = &state }
}

// WithSummary compacts the memory once it holds more than after entries,
// keeping the keep most recent ones next to the summary. A non-positive
// after disables summaries.
func WithSummary(after, keep int) OrchestratorOption {
	return func(o *Orchestrator) {
		o.summarizeAfter = after
		if keep > 0 {
			o.keepAfterSummary = keep
		}
	}
}

type OrchestrateOptions struct {
	onEvent     func(events.Event)
	onFragment  func(turnID string, sequence int, text string)
	onTurnState func(turnID string, state string)
	onTurnEnd   func(TurnReport)
	onSummary   func(notes string)
}

type OrchestrateOption func(*OrchestrateOptions)

// WithEventCallback receives every event emitted by the session.
func WithEventCallback(callback func(events.Event)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onEvent = callback }
}

func WithFragmentCallback(callback func(turnID string, sequence int, text string)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onFragment = callback }
}

func WithTurnStateCallback(callback func(turnID string, state string)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onTurnState = callback }
}

// WithTurnEndCallback is called after every turn, once the session state
// has been updated.
func WithTurnEndCallback(callback func(TurnReport)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onTurnEnd = callback }
}

func WithSummaryCallback(callback func(notes string)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onSummary = callback }
}
