package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const url = "https://api.openai.com/v1/responses"

type requestBody struct {
	Model  string          `json:"model"`
	Input  []openAIMessage `json:"input"`
	Stream bool            `json:"stream"`
}

type generalResponseBody struct {
	Output []json.RawMessage `json:"output"`
}

type generalResponseBodyOutputType struct {
	// Type is the type of the output item.
	Type generalResponseBodyOutputTypeType `json:"type"`
}

type generalResponseBodyOutputMessage struct {
	// Content is the content of the output message.
	Content []json.RawMessage `json:"content,omitempty"`
}

type generalResponseBodyOutputMessageType struct {
	// Type is the type of the output message. 'output_text' or 'refusal'.
	Type string `json:"type"`
}

type generalResponseBodyOutputMessageContentOutputText struct {
	Text string `json:"text"`
}

type generalResponseBodyOutputMessageContentRefusal struct {
	Refusal string `json:"refusal"`
}

type generalResponseBodyOutputTypeType string

const (
	generalResponseBodyOutputTypeMessage   generalResponseBodyOutputTypeType = "message"
	generalResponseBodyOutputTypeReasoning generalResponseBodyOutputTypeType = "reasoning"
)

// prompt sends input to the responses endpoint and returns the text of the
// assistant's output message.
func (c *Client) prompt(ctx context.Context, model string, input []openAIMessage) (string, error) {
	ctx, span := tracer.Start(ctx, "prompt llm")
	defer span.End()

	span.SetAttributes(
		attribute.String("request.model", model),
		attribute.Int("request.input_messages", len(input)),
	)

	requestBodyBytes, err := json.Marshal(requestBody{Model: model, Input: input})
	if err != nil {
		return "", fail(span, fmt.Errorf("error marshalling JSON: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return "", fail(span, fmt.Errorf("error creating HTTP request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fail(span, fmt.Errorf("error sending request: %w", err))
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fail(span, fmt.Errorf("error reading response body: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		span.SetAttributes(attribute.String("response.error", string(bodyBytes)))
		// TODO: Retry depending on status once rate limits are surfaced
		return "", fail(span, fmt.Errorf("non-OK HTTP status: %s", resp.Status))
	}

	content, err := parseOutputText(bodyBytes)
	if err != nil {
		return "", fail(span, err)
	}
	return content, nil
}

func parseOutputText(bodyBytes []byte) (string, error) {
	var responseBody generalResponseBody
	if err := json.Unmarshal(bodyBytes, &responseBody); err != nil {
		return "", fmt.Errorf("error unmarshalling response body: %w", err)
	}

	var response strings.Builder
	for _, output := range responseBody.Output {
		var outputType generalResponseBodyOutputType
		if err := json.Unmarshal(output, &outputType); err != nil {
			return "", fmt.Errorf("error unmarshalling output type: %w", err)
		}

		switch outputType.Type {
		case generalResponseBodyOutputTypeMessage:
			var outputMessage generalResponseBodyOutputMessage
			if err := json.Unmarshal(output, &outputMessage); err != nil {
				return "", fmt.Errorf("error unmarshalling output message: %w", err)
			}
			for _, content := range outputMessage.Content {
				var contentType generalResponseBodyOutputMessageType
				if err := json.Unmarshal(content, &contentType); err != nil {
					return "", fmt.Errorf("error unmarshalling output message content: %w", err)
				}
				switch contentType.Type {
				case "output_text":
					var outputText generalResponseBodyOutputMessageContentOutputText
					if err := json.Unmarshal(content, &outputText); err != nil {
						return "", fmt.Errorf("error unmarshalling output text: %w", err)
					}
					response.WriteString(outputText.Text)
				case "refusal":
					var outputRefusal generalResponseBodyOutputMessageContentRefusal
					if err := json.Unmarshal(content, &outputRefusal); err != nil {
						return "", fmt.Errorf("error unmarshalling output refusal: %w", err)
					}
					return "", fmt.Errorf("model refused: %s", outputRefusal.Refusal)
				}
			}

		case generalResponseBodyOutputTypeReasoning:
			// Reasoning items are not part of the answer.
		}
	}

	if response.Len() == 0 {
		return "", fmt.Errorf("no output text in response")
	}
	return strings.TrimSpace(response.String()), nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
