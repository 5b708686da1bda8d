package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-room/core/events"
	"github.com/koscakluka/ema-room/core/memory"
	"github.com/koscakluka/ema-room/core/perceptions"
	"github.com/koscakluka/ema-room/core/planner"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// perceptionMetadataKey tags the memory entry recording the perception that
// invoked a turn.
const perceptionMetadataKey = "perception"

// pendingCounter reports how many perceptions arrived and are not yet
// processed.
type pendingCounter interface {
	Len() int
}

// turn is a single reply of the soul to one perception. A turn runs on a
// single goroutine and is never reused.
type turn struct {
	id         string
	perception perceptions.Perception
	session    SessionState

	llm          *llm
	planner      *planner.Planner
	textToSpeech *textToSpeech
	sink         DispatchSink
	pending      pendingCounter
	wait         waitFunc
	emit         eventEmitter
	instructions instructions
	// speechContext outlives the turn so already dispatched fragments are
	// still synthesized after the turn ends.
	speechContext context.Context

	state     TurnState
	states    []TurnState
	fragments []Fragment
}

func (t *turn) run(ctx context.Context) TurnReport {
	ctx, span := tracer.Start(ctx, "process turn", trace.WithAttributes(
		attribute.String("turn.id", t.id),
		attribute.String("perception.id", t.perception.ID),
		attribute.String("perception.action", t.perception.Action),
	))
	defer span.End()

	t.emit(events.NewTurnStarted(t.id, t.perception.ID))
	started := t.session

	t.setState(TurnStateInit)
	if t.hasPending() {
		return t.abort(span, started.Memory, errPendingPerceptions)
	}

	t.setState(TurnStateDescribingInput)
	description, err := t.describeInput(ctx)
	if err != nil {
		return t.fail(span, started, &FatalTurnError{Step: StepDescribeInput, Err: err})
	}
	step := t.withoutInvokingPerception(started.Memory)

	t.setState(TurnStateComputingChange)
	step = t.computeChange(ctx, step, description)

	t.setState(TurnStateMonologuing)
	step = t.monologue(ctx, step)

	t.setState(TurnStateSpeakingFirstFragment)
	text, err := t.llm.generate(ctx, StepGenerateFragment, step, t.instructions.firstFragment())
	if err != nil {
		return t.fail(span, started, &FatalTurnError{Step: StepGenerateFragment, Err: err})
	}
	if step, err = t.deliver(ctx, step, text, ""); err != nil {
		return t.stop(span, started, step, err)
	}

	t.setState(TurnStatePlanningAdditional)
	count, err := t.planner.FragmentCount(ctx, step, t.session.PreviousFragmentCount)
	if err != nil {
		t.recoverStep(ctx, StepPlanFragmentCount, err)
		count = planner.DefaultFragmentCount
	} else {
		t.session.PreviousFragmentCount = count
	}
	span.SetAttributes(attribute.Int("turn.planned_fragments", count))
	if count == 0 {
		return t.complete(span, step, nil)
	}

	previous := text
	for remaining := count; remaining > 1; remaining-- {
		t.setState(TurnStateSpeakingFragment)

		length, err := t.planner.FragmentLength(ctx, step)
		if err != nil {
			t.recoverStep(ctx, StepPlanLength, err)
		}

		if err := t.wait(ctx, length.Wait()); err != nil {
			return t.abort(span, step, err)
		}

		text, err := t.llm.generate(ctx, StepGenerateFragment, step, t.instructions.nextFragment(length, previous))
		if err != nil {
			return t.complete(span, step, t.recoverStep(ctx, StepGenerateFragment, err))
		}
		if step, err = t.deliver(ctx, step, text, length); err != nil {
			return t.stop(span, started, step, err)
		}
		previous = text
	}

	t.setState(TurnStateConcludingCheck)
	conclude, err := t.planner.NeedsConclusion(ctx, step)
	if err != nil {
		t.recoverStep(ctx, StepPlanConclusion, err)
	}
	if conclude {
		text, err := t.llm.generate(ctx, StepGenerateFragment, step, t.instructions.conclusion())
		if err != nil {
			return t.complete(span, step, t.recoverStep(ctx, StepGenerateFragment, err))
		}
		if step, err = t.deliver(ctx, step, text, ""); err != nil {
			return t.stop(span, started, step, err)
		}
	}

	return t.complete(span, step, nil)
}

// describeInput resolves the room description carried by the invoking
// perception. Images always go to the describer. Without one the supplied
// description is used, then the perception's content.
func (t *turn) describeInput(ctx context.Context) (string, error) {
	if t.perception.Kind == perceptions.KindObjectAdded && !t.perception.HasImage() {
		return "", ErrNoImage
	}

	if !t.perception.HasImage() {
		if description := strings.TrimSpace(t.perception.Description); description != "" {
			return description, nil
		}
		if content := strings.TrimSpace(t.perception.Content); content != "" {
			return content, nil
		}
		return "", ErrNoDescription
	}

	description, err := t.llm.describe(ctx, t.perception.Image)
	if err != nil {
		return "", err
	}
	if description == "" {
		return "", ErrNoDescription
	}
	return description, nil
}

// withoutInvokingPerception drops the entry recording the invoking
// perception. Memory that does not end with that entry is kept whole.
func (t *turn) withoutInvokingPerception(mem memory.WorkingMemory) memory.WorkingMemory {
	last, ok := mem.Last()
	if !ok || !last.Tagged(perceptionMetadataKey, t.perception.ID) {
		return mem
	}
	return mem.WithoutLast(1)
}

func (t *turn) computeChange(ctx context.Context, step memory.WorkingMemory, description string) memory.WorkingMemory {
	compared := step.With(
		memory.Entry{Role: memory.RoleUser, Content: t.instructions.roomBefore(t.session.RoomDescription)},
		memory.Entry{Role: memory.RoleUser, Content: t.instructions.roomAfter(description)},
	)
	t.session.RoomDescription = description

	change, err := t.llm.generate(ctx, StepComputeChange, compared, t.instructions.change())
	if err != nil {
		t.recoverStep(ctx, StepComputeChange, err)
		return step
	}

	return step.With(memory.Entry{Role: memory.RoleAssistant, Content: t.instructions.noticed(change)})
}

func (t *turn) monologue(ctx context.Context, step memory.WorkingMemory) memory.WorkingMemory {
	thought, err := t.llm.generate(ctx, StepMonologue, step, t.instructions.monologue())
	if err != nil {
		t.recoverStep(ctx, StepMonologue, err)
		return step
	}

	return step.With(memory.Entry{Role: memory.RoleAssistant, Content: t.instructions.thought(thought)})
}

// deliver commits a generated fragment: it remembers it, hands it to the
// sink and starts its speech. When perceptions are pending nothing happens
// and before is returned with errPendingPerceptions.
func (t *turn) deliver(ctx context.Context, before memory.WorkingMemory, text string, length planner.LengthClass) (memory.WorkingMemory, error) {
	if t.hasPending() {
		return before, errPendingPerceptions
	}

	fragment := Fragment{
		TurnID:   t.id,
		Sequence: len(t.fragments),
		Text:     text,
		Length:   length,
		Spoken:   t.textToSpeech.enabled(),
	}
	after := before.With(memory.Entry{Role: memory.RoleAssistant, Content: t.instructions.said(text)})

	if err := t.sink.EmitText(ctx, fragment); err != nil {
		return before, &DispatchError{Sequence: fragment.Sequence, Err: err}
	}
	t.fragments = append(t.fragments, fragment)
	t.emit(events.NewAssistantFragment(t.id, fragment.Sequence, text))

	if fragment.Spoken {
		t.textToSpeech.speak(t.speechContext, fragment, t.sink, t.emit)
	}

	return after, nil
}

func (t *turn) hasPending() bool {
	return t.pending != nil && t.pending.Len() > 0
}

func (t *turn) setState(state TurnState) {
	t.state = state
	t.states = append(t.states, state)
	t.emit(events.NewTurnStateChanged(t.id, state.String()))
}

// recoverStep records a failed step that the turn continues past.
func (t *turn) recoverStep(ctx context.Context, step Step, err error) error {
	stepErr := &RecoverableStepError{Step: step, Err: err}
	span := trace.SpanFromContext(ctx)
	span.RecordError(stepErr)
	logger.Warn("turn step failed", "turn", t.id, "step", step.String(), "error", err)
	t.emit(events.NewAssistantStepFailed(t.id, step.String(), err))
	return stepErr
}

// stop ends the turn after deliver refused a fragment. A refused first
// fragment hands back the session the turn started with, later ones keep
// the memory of the fragments already dispatched.
func (t *turn) stop(span trace.Span, started SessionState, step memory.WorkingMemory, err error) TurnReport {
	var dispatchErr *DispatchError
	if !errors.As(err, &dispatchErr) {
		return t.abort(span, step, err)
	}
	if dispatchErr.Sequence > 0 {
		started.Memory = step
	}
	return t.fail(span, started, err)
}

func (t *turn) complete(span trace.Span, step memory.WorkingMemory, err error) TurnReport {
	t.setState(TurnStateDone)
	t.session.Memory = step
	t.emit(events.NewTurnCompleted(t.id, len(t.fragments)))
	span.SetAttributes(attribute.Int("turn.fragments", len(t.fragments)))

	return t.report(err, err != nil)
}

func (t *turn) abort(span trace.Span, step memory.WorkingMemory, cause error) TurnReport {
	t.setState(TurnStateAborted)
	t.session.Memory = step
	t.emit(events.NewTurnAborted(t.id, len(t.fragments)))
	span.SetAttributes(
		attribute.Int("turn.fragments", len(t.fragments)),
		attribute.String("turn.abort_cause", cause.Error()),
	)

	var err error
	if !errors.Is(cause, errPendingPerceptions) {
		err = cause
	}
	return t.report(err, true)
}

// fail ends the turn and hands back the given session, except for the room
// description when the change step already ran.
func (t *turn) fail(span trace.Span, started SessionState, err error) TurnReport {
	t.setState(TurnStateFailed)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	logger.Error("turn failed", "turn", t.id, "error", err)
	t.emit(events.NewTurnFailed(t.id, err))

	session := started
	session.RoomDescription = t.session.RoomDescription
	session.PreviousFragmentCount = t.session.PreviousFragmentCount
	t.session = session
	return t.report(err, len(t.fragments) > 0)
}

func (t *turn) report(err error, truncated bool) TurnReport {
	return TurnReport{
		ID:           t.id,
		PerceptionID: t.perception.ID,
		State:        t.state,
		States:       append([]TurnState(nil), t.states...),
		Fragments:    append([]Fragment(nil), t.fragments...),
		Session:      t.session,
		Err:          err,
		Truncated:    truncated,
	}
}

func newTurnID() string {
	return fmt.Sprintf("turn-%s", uuid.NewString())
}
