package orchestration

import (
	"context"
	"fmt"
	"strings"

	"github.com/koscakluka/ema-room/core/llms"
	"github.com/koscakluka/ema-room/core/memory"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type llm struct {
	// generator produces every free-form text of a turn.
	generator llms.Generator
	// decider answers the planning questions.
	decider llms.Decider
	// describer turns added objects into room descriptions.
	describer llms.Describer
}

// set wires every capability client implements. Clients implementing none
// of them are ignored.
func (runtime *llm) set(client any) {
	if runtime == nil || client == nil {
		return
	}

	if generator, ok := client.(llms.Generator); ok {
		runtime.generator = generator
	}
	if decider, ok := client.(llms.Decider); ok {
		runtime.decider = decider
	}
	if describer, ok := client.(llms.Describer); ok {
		runtime.describer = describer
	}
}

func (runtime *llm) generate(ctx context.Context, step Step, mem memory.WorkingMemory, instruction string) (string, error) {
	ctx, span := tracer.Start(ctx, "generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("turn.step", step.String()),
		attribute.Int("memory.entries", mem.Len()),
	)

	if runtime == nil || runtime.generator == nil {
		span.RecordError(ErrNoGenerator)
		span.SetStatus(codes.Error, ErrNoGenerator.Error())
		return "", ErrNoGenerator
	}

	text, err := runtime.generator.Generate(ctx, mem, instruction)
	if err != nil {
		err = fmt.Errorf("failed to generate: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		err = fmt.Errorf("language model returned no text")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	return text, nil
}

func (runtime *llm) describe(ctx context.Context, image string) (string, error) {
	ctx, span := tracer.Start(ctx, "describe image")
	defer span.End()
	span.SetAttributes(attribute.Int("image.size", len(image)))

	if runtime == nil || runtime.describer == nil {
		span.RecordError(ErrNoDescriber)
		span.SetStatus(codes.Error, ErrNoDescriber.Error())
		return "", ErrNoDescriber
	}

	description, err := runtime.describer.Describe(ctx, image)
	if err != nil {
		err = fmt.Errorf("failed to describe image: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	return strings.TrimSpace(description), nil
}
