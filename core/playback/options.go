package playback

import (
	"time"

	"github.com/koscakluka/ema-room/core/events"
)

const DefaultReadyTimeout = 30 * time.Second

type SchedulerOption func(*Scheduler)

// WithReadyTimeout drops a clip that is still not loaded after d at the head
// of the queue.
func WithReadyTimeout(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.readyTimeout = d
		}
	}
}

func WithTalkingCallbacks(onStarted, onStopped func(Key)) SchedulerOption {
	return func(s *Scheduler) {
		s.onTalkingStarted = onStarted
		s.onTalkingStopped = onStopped
	}
}

func WithFailureCallback(onFailure func(*PlaybackError)) SchedulerOption {
	return func(s *Scheduler) { s.onClipFailed = onFailure }
}

// WithEventCallback receives the playback events of every clip.
func WithEventCallback(onEvent func(events.Event)) SchedulerOption {
	return func(s *Scheduler) { s.onEvent = onEvent }
}
