package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/koscakluka/ema-room/core/memory"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	url = "https://api.groq.com/openai/v1/chat/completions"

	DefaultModel       = "llama-3.3-70b-versatile"
	DefaultVisionModel = "meta-llama/llama-4-scout-17b-16e-instruct"
)

// DescribeInstruction is the instruction used to describe room snapshots.
const DescribeInstruction = `describe this pixel art image.
- don't say it's pixel art
- ignore the gray floor and the beige wall
- ignore shadows
- there's a human in the image, just say where they are, don't describe them. refer to them like this "the human is..."
- use bulleted list, one item per object`

type Client struct {
	apiKey      string
	model       string
	visionModel string
	url         string

	httpClient *http.Client
}

type ClientOption func(*Client)

func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

func WithVisionModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.visionModel = model
		}
	}
}

func WithURL(url string) ClientOption {
	return func(c *Client) { c.url = url }
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = client }
}

func NewClient(apiKey string, opts ...ClientOption) *Client {
	client := &Client{
		apiKey:      apiKey,
		model:       DefaultModel,
		visionModel: DefaultVisionModel,
		url:         url,
		httpClient:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type requestBody struct {
	Model          string              `json:"model"`
	Messages       any                 `json:"messages"`
	ResponseFormat *ChatResponseFormat `json:"response_format,omitempty"`
}

type responseBody struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role,omitempty"`
			Content string `json:"content,omitempty"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) Generate(ctx context.Context, mem memory.WorkingMemory, instruction string) (string, error) {
	ctx, span := tracer.Start(ctx, "prompt llm")
	defer span.End()

	messages, err := toMessages(mem, instruction)
	if err != nil {
		return "", fail(span, err)
	}

	content, err := c.complete(ctx, span, requestBody{Model: c.model, Messages: messages})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

func (c *Client) Describe(ctx context.Context, image string) (string, error) {
	ctx, span := tracer.Start(ctx, "describe image")
	defer span.End()

	messages := []visionMessage{{
		Role: messageRoleUser,
		Content: []contentPart{
			{Type: "text", Text: DescribeInstruction},
			{Type: "image_url", ImageURL: &imageURL{URL: toDataURL(image)}},
		},
	}}

	content, err := c.complete(ctx, span, requestBody{Model: c.visionModel, Messages: messages})
	if err != nil {
		logger.Warn("failed to describe image", "error", err, "image_bytes", len(image))
		return "", err
	}
	return strings.TrimSpace(content), nil
}

func (c *Client) complete(ctx context.Context, span trace.Span, reqBody requestBody) (string, error) {
	span.SetAttributes(attribute.String("request.model", reqBody.Model))

	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fail(span, fmt.Errorf("error marshalling JSON: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return "", fail(span, fmt.Errorf("error creating HTTP request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	span.SetAttributes(attribute.String("request.url", req.URL.String()))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fail(span, fmt.Errorf("error sending request: %w", err))
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	respBodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fail(span, fmt.Errorf("error reading response body: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		span.SetAttributes(attribute.String("response.error", string(respBodyBytes)))
		// TODO: Retry on 503 once groq rate limit headers are surfaced
		return "", fail(span, fmt.Errorf("non-OK HTTP status: %s", resp.Status))
	}

	var response responseBody
	if err := json.Unmarshal(respBodyBytes, &response); err != nil {
		return "", fail(span, fmt.Errorf("error unmarshalling response: %w", err))
	}
	if len(response.Choices) == 0 {
		return "", fail(span, fmt.Errorf("no choices in response"))
	}
	return response.Choices[0].Message.Content, nil
}

func toDataURL(image string) string {
	if strings.HasPrefix(image, "data:") || strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://") {
		return image
	}
	return "data:image/png;base64," + image
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
