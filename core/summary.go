package orchestration

import (
	"context"
	"fmt"

	"github.com/koscakluka/ema-room/core/events"
	"github.com/koscakluka/ema-room/core/memory"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const summaryMetadataKey = "conversationSummary"

// summarize refreshes the session's event notes and compacts its memory
// once the memory grew past the configured size. On failure the session is
// returned unchanged together with the error.
func (o *Orchestrator) summarize(ctx context.Context, session SessionState) (SessionState, error) {
	if o.summarizeAfter <= 0 || session.Memory.Len() <= o.summarizeAfter {
		return session, nil
	}

	ctx, span := tracer.Start(ctx, "summarize memory")
	defer span.End()
	span.SetAttributes(attribute.Int("memory.entries", session.Memory.Len()))

	instructions := newInstructions(o.soulName)
	reflected := session.Memory
	learned, err := o.llm.generate(ctx, StepSummarize, reflected, instructions.learned())
	if err != nil {
		o.summaryStepFailed(span, "failed to reflect before summarizing", err)
	} else {
		reflected = reflected.With(memory.Entry{Role: memory.RoleAssistant, Content: instructions.thought(learned)})
	}

	notes, err := o.llm.generate(ctx, StepSummarize, reflected, instructions.summary(session.EventNotes))
	if err != nil {
		stepErr := o.summaryStepFailed(span, "failed to summarize memory", err)
		span.SetStatus(codes.Error, stepErr.Error())
		return session, stepErr
	}

	session.EventNotes = notes
	session.Memory = session.Memory.Compacted(memory.Entry{
		Role:     memory.RoleAssistant,
		Content:  fmt.Sprintf("## Events so far\n%s", notes),
		Metadata: map[string]any{summaryMetadataKey: true},
	}, o.keepAfterSummary)

	span.SetAttributes(attribute.Int("memory.compacted_entries", session.Memory.Len()))
	o.emit(events.NewMemorySummarized(notes, session.Memory.Len()))
	return session, nil
}

func (o *Orchestrator) summaryStepFailed(span trace.Span, msg string, err error) error {
	stepErr := &RecoverableStepError{Step: StepSummarize, Err: err}
	span.RecordError(stepErr)
	logger.Warn(msg, "error", err)
	o.emit(events.NewAssistantStepFailed("", StepSummarize.String(), stepErr))
	return stepErr
}
