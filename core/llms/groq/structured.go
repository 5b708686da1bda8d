package groq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/koscakluka/ema-room/core/memory"
	"go.opentelemetry.io/otel/attribute"
)

type Decision struct {
	Decision string `json:"decision" jsonschema:"title=Decision,description=The chosen option"`
}

type ChatResponseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *JSONSchema `json:"json_schema,omitempty"`
}

type JSONSchema struct {
	// Name is the name of the chat completion response format json
	// schema.
	Name string `json:"name"`
	// Schema is the schema of the chat completion response format
	// json schema.
	Schema jsonschema.Schema `json:"schema"`
	// Strict determines whether to enforce the schema upon the
	// generated content.
	Strict bool `json:"strict"`
}

// decisionSchema reflects Decision and restricts its only property to
// choices.
func decisionSchema(choices []string) (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(&Decision{})

	property, ok := schema.Properties.Get("decision")
	if !ok {
		return nil, fmt.Errorf("decision property missing from schema")
	}
	property.Enum = make([]any, len(choices))
	for i, choice := range choices {
		property.Enum[i] = choice
	}
	return schema, nil
}

// Decide asks the model to pick one of choices using a JSON schema response
// format with the choices as an enum.
func (c *Client) Decide(ctx context.Context, mem memory.WorkingMemory, prompt string, choices []string) (string, error) {
	ctx, span := tracer.Start(ctx, "prompt llm structured")
	defer span.End()

	schema, err := decisionSchema(choices)
	if err != nil {
		return "", fail(span, err)
	}
	schemaString, _ := schema.MarshalJSON()
	span.SetAttributes(attribute.String("request.schema", string(schemaString)))

	messages, err := toMessages(mem, prompt)
	if err != nil {
		return "", fail(span, err)
	}

	content, err := c.complete(ctx, span, requestBody{
		Model:    c.model,
		Messages: messages,
		ResponseFormat: &ChatResponseFormat{
			Type: "json_schema",
			JSONSchema: &JSONSchema{
				Name:   "Decision",
				Schema: *schema,
				Strict: true,
			},
		},
	})
	if err != nil {
		return "", err
	}

	split := strings.Split(content, "```")
	if len(split) > 1 {
		content = strings.TrimPrefix(split[1], "json")
	}

	var decision Decision
	if err := json.Unmarshal([]byte(content), &decision); err != nil {
		return "", fail(span, fmt.Errorf("error unmarshalling decision: %w", err))
	}
	span.SetAttributes(attribute.String("response.decision", decision.Decision))
	return decision.Decision, nil
}
