package llms

import (
	"context"

	"github.com/koscakluka/ema-room/core/memory"
)

// Generator produces free-form text given the working memory and an
// instruction describing what to produce next.
type Generator interface {
	Generate(ctx context.Context, memory memory.WorkingMemory, instruction string) (string, error)
}

// Decider picks one of choices given the working memory and a question.
//
// Implementations should try to constrain the model to the choices, but
// callers must still validate the answer.
type Decider interface {
	Decide(ctx context.Context, memory memory.WorkingMemory, prompt string, choices []string) (string, error)
}

// Describer turns an image into a textual description.
type Describer interface {
	Describe(ctx context.Context, image string) (string, error)
}

// Oracle is a language model client that can be used for every step of a
// turn.
type Oracle interface {
	Generator
	Decider
	Describer
}
