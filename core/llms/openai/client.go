package openai

import (
	"context"
	"net/http"
	"strings"

	"github.com/koscakluka/ema-room/core/memory"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultModel       = "gpt-4.1"
	DefaultVisionModel = "gpt-4.1"
)

// DescribeInstruction is the instruction used to describe room snapshots.
const DescribeInstruction = `describe this pixel art image.
- don't say it's pixel art
- ignore the gray floor and the beige wall
- ignore shadows
- there's a human in the image, just say where they are, don't describe them. refer to them like this "the human is..."
- use bulleted list, one item per object`

// Client is a language model oracle backed by the OpenAI responses API.
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

func (c *Client) Generate(ctx context.Context, mem memory.WorkingMemory, instruction string) (string, error) {
	return c.prompt(ctx, c.model, toOpenAIMessages(mem, instruction))
}

// Decide asks the model to pick one of choices. The answer is returned as
// given, callers map it onto their own domain.
func (c *Client) Decide(ctx context.Context, mem memory.WorkingMemory, prompt string, choices []string) (string, error) {
	answer, err := c.prompt(ctx, c.model, toOpenAIMessages(mem, decisionInstruction(prompt, choices)))
	if err != nil {
		return "", err
	}
	return strings.Trim(answer, "\"'` \n"), nil
}

// Describe describes image using only the vision instruction, the working
// memory is not sent along.
func (c *Client) Describe(ctx context.Context, image string) (string, error) {
	description, err := c.prompt(ctx, c.visionModel, []openAIMessage{toImageMessage(DescribeInstruction, image)})
	if err != nil {
		logger.Warn("failed to describe image", "error", err, "image_bytes", len(image))
		return "", err
	}
	return description, nil
}
