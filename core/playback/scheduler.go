// Package playback plays spoken fragments on the listening side in the
// order they were spoken, whatever order their audio finishes loading in.
//
// A slot is reserved for every fragment as soon as its text arrives. Audio
// is loaded independently for each slot and a single consumer plays the
// head of the queue once it is ready. A slot that fails or does not become
// ready in time is dropped, so one bad clip never stalls the ones behind it.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/koscakluka/ema-room/core/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrReadyTimeout = errors.New("clip was not ready in time")
	ErrClosed       = errors.New("scheduler closed")
)

// Key identifies a fragment's clip.
type Key struct {
	Turn     string
	Sequence int
}

func (k Key) String() string { return fmt.Sprintf("%s/%d", k.Turn, k.Sequence) }

type Clip struct {
	Key   Key
	Ref   string
	Audio []byte
}

// Loader fetches the audio an audio reference points to.
type Loader interface {
	Load(ctx context.Context, ref string) ([]byte, error)
}

// Player plays a clip and returns once it finished playing.
type Player interface {
	Play(ctx context.Context, clip Clip) error
}

// PlaybackError is reported for every clip that could not be played.
type PlaybackError struct {
	Key Key
	Err error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("failed to play clip %s: %v", e.Key, e.Err)
}

func (e *PlaybackError) Unwrap() error { return e.Err }

type slot struct {
	key  Key
	clip Clip
	err  error
	// ready is closed once the clip is loaded or failed.
	ready     chan struct{}
	delivered bool
	settled   bool
	// headSince is when the slot reached the head of the queue.
	headSince time.Time
}

func (s *slot) settle(clip Clip, err error) bool {
	if s.settled {
		return false
	}
	s.clip = clip
	s.err = err
	s.settled = true
	close(s.ready)
	return true
}

type Scheduler struct {
	loader       Loader
	player       Player
	readyTimeout time.Duration

	onTalkingStarted func(Key)
	onTalkingStopped func(Key)
	onClipFailed     func(*PlaybackError)
	onEvent          func(events.Event)

	mu      sync.Mutex
	slots   []*slot
	playing bool
	// finished holds every key that was played or dropped, late audio for
	// them is ignored.
	finished map[Key]struct{}
	// updated is closed and replaced whenever the queue changes.
	updated chan struct{}
	closed  bool

	loads       sync.WaitGroup
	loadContext context.Context
	cancelLoads context.CancelFunc
}

func NewScheduler(loader Loader, player Player, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		loader:       loader,
		player:       player,
		readyTimeout: DefaultReadyTimeout,
		finished:     map[Key]struct{}{},
		updated:      make(chan struct{}),
	}
	s.loadContext, s.cancelLoads = context.WithCancel(context.Background())

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reserve queues a slot for key. Slots of the same turn are kept in
// sequence order, but a slot is never placed in front of the clip that is
// already playing. Reserving a queued or finished key is a no-op.
func (s *Scheduler) Reserve(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.find(key) != nil {
		return false
	}
	if _, ok := s.finished[key]; ok {
		return false
	}

	s.slots = append(s.slots, &slot{key: key, ready: make(chan struct{})})
	floor := 0
	if s.playing {
		floor = 1
	}
	for i := len(s.slots) - 1; i > floor; i-- {
		previous := s.slots[i-1]
		if previous.key.Turn != key.Turn || previous.key.Sequence < key.Sequence {
			break
		}
		s.slots[i-1], s.slots[i] = s.slots[i], s.slots[i-1]
	}

	s.notify()
	return true
}

// Deliver starts loading the audio for key in the background. A key that
// was never reserved is reserved first.
func (s *Scheduler) Deliver(key Key, ref string) bool {
	s.Reserve(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.find(key)
	if s.closed || target == nil || target.delivered || target.settled {
		return false
	}
	target.delivered = true

	s.loads.Add(1)
	go s.load(target, ref)
	return true
}

// Fail marks the slot for key as failed, it is dropped once it reaches the
// head of the queue.
func (s *Scheduler) Fail(key Key, err error) bool {
	s.Reserve(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.find(key)
	if target == nil {
		return false
	}
	return target.settle(Clip{Key: key}, err)
}

// Pending returns the number of clips waiting to be played, including the
// one playing.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

// Run plays clips until ctx is done. Only one Run may be active at a time.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		head, updated := s.head()
		if head == nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-updated:
				continue
			}
		}

		timer := time.NewTimer(max(s.readyTimeout-time.Since(head.headSince), 0))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-updated:
			timer.Stop()
		case <-head.ready:
			timer.Stop()
			s.play(ctx, head)
		case <-timer.C:
			s.fail(head, ErrReadyTimeout)
			s.drop(head)
		}
	}
}

// Close stops accepting clips and waits for running loads.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancelLoads()
	s.loads.Wait()
}

func (s *Scheduler) load(target *slot, ref string) {
	defer s.loads.Done()

	ctx, span := tracer.Start(s.loadContext, "load clip", trace.WithAttributes(
		attribute.String("clip.key", target.key.String()),
	))
	defer span.End()

	var audio []byte
	var err error
	if s.loader == nil {
		err = fmt.Errorf("no loader configured")
	} else {
		audio, err = s.loader.Load(ctx, ref)
	}
	if err == nil && len(audio) == 0 {
		err = fmt.Errorf("clip %s is empty", target.key)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	target.settle(Clip{Key: target.key, Ref: ref, Audio: audio}, err)
}

func (s *Scheduler) play(ctx context.Context, head *slot) {
	if head.err != nil {
		s.fail(head, head.err)
		s.drop(head)
		return
	}

	s.mu.Lock()
	s.playing = true
	s.mu.Unlock()

	ctx, span := tracer.Start(ctx, "play clip", trace.WithAttributes(
		attribute.String("clip.key", head.key.String()),
		attribute.Int("clip.size", len(head.clip.Audio)),
	))
	defer span.End()

	s.talkingStarted(head.key)
	var err error
	if s.player == nil {
		err = fmt.Errorf("no player configured")
	} else {
		err = s.player.Play(ctx, head.clip)
	}
	if err != nil && ctx.Err() == nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.fail(head, err)
	} else {
		s.talkingStopped(head.key)
	}

	s.drop(head)
}

// fail reports a clip that will not be played. Talking is always reported as
// stopped afterwards so listeners never stay in the talking state.
func (s *Scheduler) fail(head *slot, err error) {
	playbackErr := &PlaybackError{Key: head.key, Err: err}
	logger.Warn("dropping clip", "clip", head.key.String(), "error", err)

	if s.onClipFailed != nil {
		s.onClipFailed(playbackErr)
	}
	s.emit(events.NewAssistantPlaybackFailed(head.key.Turn, head.key.Sequence, playbackErr))
	s.talkingStopped(head.key)
}

func (s *Scheduler) talkingStarted(key Key) {
	if s.onTalkingStarted != nil {
		s.onTalkingStarted(key)
	}
	s.emit(events.NewAssistantTalkingStarted(key.Turn, key.Sequence))
}

func (s *Scheduler) talkingStopped(key Key) {
	if s.onTalkingStopped != nil {
		s.onTalkingStopped(key)
	}
	s.emit(events.NewAssistantTalkingStopped(key.Turn, key.Sequence))
}

func (s *Scheduler) emit(event events.Event) {
	if s.onEvent != nil {
		s.onEvent(event)
	}
}

func (s *Scheduler) head() (*slot, chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.slots) == 0 {
		return nil, s.updated
	}
	head := s.slots[0]
	if head.headSince.IsZero() {
		head.headSince = time.Now()
	}
	return head, s.updated
}

func (s *Scheduler) drop(target *slot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, candidate := range s.slots {
		if candidate == target {
			s.slots = append(s.slots[:i], s.slots[i+1:]...)
			break
		}
	}
	s.finished[target.key] = struct{}{}
	s.playing = false
	s.notify()
}

func (s *Scheduler) find(key Key) *slot {
	for _, candidate := range s.slots {
		if candidate.key == key {
			return candidate
		}
	}
	return nil
}

func (s *Scheduler) notify() {
	close(s.updated)
	s.updated = make(chan struct{})
}
