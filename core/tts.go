package orchestration

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/koscakluka/ema-room/core/events"
	"github.com/koscakluka/ema-room/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// textToSpeech turns dispatched fragments into audio references in the
// background. Synthesis of one fragment never blocks the turn that produced
// it.
type textToSpeech struct {
	synthesizer texttospeech.Synthesizer
	options     []texttospeech.TextToSpeechOption

	workers sync.WaitGroup
	// closeStarted stops new fragments from being synthesized once the
	// session is shutting down.
	closeStarted atomic.Bool
}

func (t *textToSpeech) set(synthesizer texttospeech.Synthesizer, opts ...texttospeech.TextToSpeechOption) {
	if t == nil {
		return
	}
	t.synthesizer = synthesizer
	t.options = append([]texttospeech.TextToSpeechOption(nil), opts...)
}

func (t *textToSpeech) enabled() bool {
	return t != nil && t.synthesizer != nil && !t.closeStarted.Load()
}

// speak starts synthesis of fragment and reports the outcome to sink. It
// returns false when speech is disabled.
func (t *textToSpeech) speak(ctx context.Context, fragment Fragment, sink DispatchSink, emit eventEmitter) bool {
	if !t.enabled() {
		return false
	}

	t.workers.Add(1)
	go func() {
		defer t.workers.Done()

		run := panicSafeNamedWorker("speech", func(ctx context.Context) error {
			return t.synthesize(ctx, fragment, sink, emit)
		})
		if err := run(ctx); err != nil {
			logger.Warn("speech worker stopped", "turn", fragment.TurnID, "sequence", fragment.Sequence, "error", err)
		}
	}()
	return true
}

func (t *textToSpeech) synthesize(ctx context.Context, fragment Fragment, sink DispatchSink, emit eventEmitter) error {
	ctx, span := tracer.Start(ctx, "synthesize fragment")
	defer span.End()
	span.SetAttributes(
		attribute.String("turn.id", fragment.TurnID),
		attribute.Int("fragment.sequence", fragment.Sequence),
	)

	ref, err := t.synthesizer.Synthesize(ctx, fragment.Text, t.options...)
	if err == nil && ref == "" {
		err = fmt.Errorf("synthesizer returned no audio reference")
	}
	if err != nil {
		err = fmt.Errorf("failed to synthesize fragment %d: %w", fragment.Sequence, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		emit(events.NewAssistantSpeechFailed(fragment.TurnID, fragment.Sequence, err))

		if dispatchErr := sink.EmitAudioFailure(ctx, fragment, err); dispatchErr != nil {
			return fmt.Errorf("failed to dispatch audio failure: %w", dispatchErr)
		}
		return nil
	}

	emit(events.NewAssistantSpeechReady(fragment.TurnID, fragment.Sequence, string(ref)))
	if err := sink.EmitAudio(ctx, fragment, ref); err != nil {
		err = fmt.Errorf("failed to dispatch audio: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// close stops accepting fragments and waits for running synthesis.
func (t *textToSpeech) close() {
	if t == nil {
		return
	}
	t.closeStarted.Store(true)
	t.workers.Wait()
}
