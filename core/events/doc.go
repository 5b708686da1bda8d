// Package events defines the typed events emitted while a soul perceives,
// speaks and plays back speech.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - perception.*
//   - turn_state.*
//   - assistant_response.*
//   - assistant_speech.*
//   - assistant_playback.*
//   - memory.*
//
// perception events
//
//   - PerceptionReceived (perception.received): a perception was queued.
//
// turn_state events
//
//   - TurnStarted (turn_state.started): a turn picked up its invoking
//     perception.
//   - TurnStateChanged (turn_state.changed): the turn moved to a new state.
//   - TurnCompleted (turn_state.completed): the turn spoke every planned
//     fragment.
//   - TurnAborted (turn_state.aborted): the turn stopped at a fragment
//     boundary because new perceptions were pending.
//   - TurnFailed (turn_state.failed): the turn hit a fatal error.
//
// assistant_response events
//
//   - AssistantFragment (assistant_response.fragment): a fragment was
//     dispatched as text. Sequence numbers start at 0 for every turn.
//   - AssistantStepFailed (assistant_response.step_failed): a recoverable
//     step failed and was skipped.
//
// assistant_speech events
//
//   - AssistantSpeechReady (assistant_speech.ready): synthesized audio for a
//     fragment is available under a reference.
//   - AssistantSpeechFailed (assistant_speech.failed): synthesis failed, the
//     fragment has no audio.
//
// assistant_playback events
//
//   - AssistantTalkingStarted (assistant_playback.talking_started): a clip
//     started playing.
//   - AssistantTalkingStopped (assistant_playback.talking_stopped): a clip
//     ended or failed.
//   - AssistantPlaybackFailed (assistant_playback.failed): a clip could not
//     be loaded or played and was skipped.
//
// memory events
//
//   - MemorySummarized (memory.summarized): working memory was compacted
//     into a summary.
package events
