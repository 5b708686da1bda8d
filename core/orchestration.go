// Package orchestration runs a soul's session: every perception the session
// receives starts a turn in which the soul reflects on what changed and
// replies with one or more spoken fragments.
//
// Turns run one at a time. A turn stops at the next fragment boundary when
// newer perceptions are waiting, so the soul always answers the most recent
// state of the room.
package orchestration

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koscakluka/ema-room/core/events"
	"github.com/koscakluka/ema-room/core/memory"
	"github.com/koscakluka/ema-room/core/perceptions"
	"github.com/koscakluka/ema-room/core/planner"
)

const (
	DefaultSoulName         = "Milton"
	DefaultSummarizeAfter   = 10
	DefaultKeepAfterSummary = 8
)

type Orchestrator struct {
	soulName string

	llm          llm
	textToSpeech textToSpeech
	sink         DispatchSink
	wait         waitFunc

	summarizeAfter   int
	keepAfterSummary int

	initialSession *SessionState
	sessionMu      sync.RWMutex
	session        SessionState

	perceptions        *perceptions.Queue
	runtime            *sessionRuntime
	orchestrateOptions atomic.Pointer[OrchestrateOptions]

	// speechContext is cancelled on Close, after the last turn finished.
	speechContext context.Context
	cancelSpeech  context.CancelFunc

	closeOnce   sync.Once
	closeHook   chan struct{}
	closeHookMu sync.Mutex
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		soulName:         DefaultSoulName,
		sink:             DispatchFuncs{},
		wait:             sleep,
		summarizeAfter:   DefaultSummarizeAfter,
		keepAfterSummary: DefaultKeepAfterSummary,
		perceptions:      perceptions.NewQueue(),
		runtime:          newSessionRuntime(),
	}
	o.speechContext, o.cancelSpeech = context.WithCancel(context.Background())

	for _, opt := range opts {
		opt(o)
	}

	if o.initialSession != nil {
		o.session = *o.initialSession
	} else {
		o.session = NewSessionState(o.soulName)
	}
	if o.session.RoomDescription == "" {
		o.session.RoomDescription = DefaultRoomDescription
	}

	return o
}

// Orchestrate starts processing perceptions in the background. It returns
// immediately; the session runs until ctx is done or Close is called.
//
// Contract: call Orchestrate at most once per orchestrator instance.
func (o *Orchestrator) Orchestrate(ctx context.Context, opts ...OrchestrateOption) {
	if o.runtime.isClosed() {
		logger.Warn("orchestrator already closed, skipping Orchestrate")
		return
	}

	options := OrchestrateOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	o.orchestrateOptions.Store(&options)

	if started := o.runtime.start(ctx, o.processNext); started {
		o.closeHookMu.Lock()
		o.closeHook = withContextCancelHook(ctx, o.Close)
		o.closeHookMu.Unlock()
	}
}

// Perceive queues p for processing. It returns false once the orchestrator
// is closed.
func (o *Orchestrator) Perceive(p perceptions.Perception) bool {
	if o.runtime.isClosed() {
		return false
	}
	if p.ReceivedAt.IsZero() {
		p.ReceivedAt = time.Now()
	}

	o.perceptions.Push(p)
	o.emit(events.NewPerceptionReceived(p.ID, p.Action, o.perceptions.Len()))
	return true
}

// PendingPerceptions returns the number of perceptions waiting for a turn.
func (o *Orchestrator) PendingPerceptions() int { return o.perceptions.Len() }

// Session returns a point-in-time snapshot of the session state.
func (o *Orchestrator) Session() SessionState {
	o.sessionMu.RLock()
	defer o.sessionMu.RUnlock()
	return o.session
}

func (o *Orchestrator) SoulName() string { return o.soulName }

// IsSpeaking reports whether dispatched fragments are turned into audio.
func (o *Orchestrator) IsSpeaking() bool { return o.textToSpeech.enabled() }

// Close stops the session. The running turn is cancelled, queued
// perceptions are dropped and Close returns once every background worker
// has finished.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.runtime.end()
		o.runtime.waitUntilEnded()

		o.cancelSpeech()
		o.textToSpeech.close()

		o.closeHookMu.Lock()
		if o.closeHook != nil {
			close(o.closeHook)
		}
		o.closeHookMu.Unlock()
	})
}

func (o *Orchestrator) processNext(ctx context.Context) error {
	p, err := o.perceptions.Pop(ctx)
	if err != nil {
		return err
	}

	report := o.processPerception(ctx, p)
	if options := o.orchestrateOptions.Load(); options != nil && options.onTurnEnd != nil {
		options.onTurnEnd(report)
	}
	return nil
}

// processPerception remembers p and runs the turn it invokes. The session
// state is updated before it returns.
func (o *Orchestrator) processPerception(ctx context.Context, p perceptions.Perception) TurnReport {
	session := o.Session()
	session.Memory = session.Memory.With(memory.Entry{
		Role:     memory.RoleUser,
		Content:  p.String(),
		Metadata: map[string]any{perceptionMetadataKey: p.ID},
	})

	t := &turn{
		id:            newTurnID(),
		perception:    p,
		session:       session,
		llm:           &o.llm,
		planner:       planner.New(o.llm.decider, o.soulName),
		textToSpeech:  &o.textToSpeech,
		sink:          o.sink,
		pending:       o.perceptions,
		wait:          o.wait,
		emit:          o.emit,
		instructions:  newInstructions(o.soulName),
		speechContext: o.speechContext,
	}
	report := t.run(ctx)

	if report.State == TurnStateDone {
		if summarized, err := o.summarize(ctx, report.Session); err == nil {
			report.Session = summarized
		}
	}

	o.sessionMu.Lock()
	o.session = report.Session
	o.sessionMu.Unlock()

	return report
}

func (o *Orchestrator) emit(event events.Event) {
	options := o.orchestrateOptions.Load()
	if options == nil {
		noopEventEmitter(event)
		return
	}
	newCallbackEventEmitter(*options)(event)
}
