package playht

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/koscakluka/ema-room/core/texttospeech"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	streamURL = "https://api.play.ht/api/v2/tts/stream"

	DefaultVoice       = "s3://voice-cloning-zero-shot/261923bd-a10a-4a90-bced-0ce2b0230398/hooksaad/manifest.json"
	DefaultVoiceEngine = "PlayHT2.0-turbo"
)

type TextToSpeechClient struct {
	apiKey string
	userID string
	voice  string
	url    string

	httpClient *http.Client
	options    texttospeech.TextToSpeechOptions

	// issued holds the hrefs Synthesize returned, oldest first. Open only
	// sends credentials to those.
	issuedMu sync.Mutex
	issued   map[texttospeech.AudioRef]struct{}
	order    []texttospeech.AudioRef
}

type ClientOption func(*TextToSpeechClient)

func WithVoice(voice string) ClientOption {
	return func(c *TextToSpeechClient) {
		if voice != "" {
			c.voice = voice
		}
	}
}

// WithURL overrides the stream endpoint, mostly useful for tests.
func WithURL(url string) ClientOption {
	return func(c *TextToSpeechClient) { c.url = url }
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *TextToSpeechClient) { c.httpClient = client }
}

func WithDefaultOptions(opts ...texttospeech.TextToSpeechOption) ClientOption {
	return func(c *TextToSpeechClient) { c.options = texttospeech.DefaultOptions(opts...) }
}

func NewTextToSpeechClient(apiKey, userID string, opts ...ClientOption) (*TextToSpeechClient, error) {
	if apiKey == "" || userID == "" {
		return nil, fmt.Errorf("playht api key and user id are required")
	}

	client := &TextToSpeechClient{
		apiKey:     apiKey,
		userID:     userID,
		voice:      DefaultVoice,
		url:        streamURL,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		options:    texttospeech.DefaultOptions(),
		issued:     map[texttospeech.AudioRef]struct{}{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type streamRequestBody struct {
	Text          string  `json:"text"`
	Voice         string  `json:"voice"`
	Speed         float64 `json:"speed"`
	SampleRate    int     `json:"sample_rate"`
	OutputFormat  string  `json:"output_format"`
	VoiceEngine   string  `json:"voice_engine"`
	VoiceGuidance float64 `json:"voice_guidance"`
	StyleGuidance float64 `json:"style_guidance"`
}

type streamResponseBody struct {
	Href string `json:"href"`
}

// Synthesize requests a speech stream for text and returns the stream's
// href. The audio itself is fetched later through Open.
func (c *TextToSpeechClient) Synthesize(ctx context.Context, text string, opts ...texttospeech.TextToSpeechOption) (texttospeech.AudioRef, error) {
	ctx, span := tracer.Start(ctx, "synthesize speech")
	defer span.End()

	options := c.options
	for _, opt := range opts {
		opt(&options)
	}
	voice := c.voice
	if options.Voice != "" {
		voice = options.Voice
	}

	reqBody := streamRequestBody{
		Text:          text,
		Voice:         voice,
		Speed:         options.Speed,
		SampleRate:    options.EncodingInfo.SampleRate,
		OutputFormat:  "raw",
		VoiceEngine:   DefaultVoiceEngine,
		VoiceGuidance: 2,
		StyleGuidance: 10,
	}
	span.SetAttributes(
		attribute.String("request.voice", voice),
		attribute.Int("request.text_length", len(text)),
	)

	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", c.fail(span, fmt.Errorf("error marshalling JSON: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return "", c.fail(span, fmt.Errorf("error creating HTTP request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", c.fail(span, fmt.Errorf("error sending request: %w", err))
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if errorBody, err := io.ReadAll(resp.Body); err == nil {
			span.SetAttributes(attribute.String("response.error", string(errorBody)))
		}
		return "", c.fail(span, fmt.Errorf("non-OK HTTP status: %s", resp.Status))
	}

	var responseBody streamResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&responseBody); err != nil {
		return "", c.fail(span, fmt.Errorf("error unmarshalling response body: %w", err))
	}
	if responseBody.Href == "" {
		return "", c.fail(span, fmt.Errorf("no audio href in response"))
	}

	ref := texttospeech.AudioRef(responseBody.Href)
	c.issue(ref)
	return ref, nil
}

// Open fetches the audio stream behind ref. The stream requires the same
// credentials as the synthesis request, so it has to be proxied for
// clients. Refs this client did not issue recently are unknown.
func (c *TextToSpeechClient) Open(ctx context.Context, ref texttospeech.AudioRef) (io.ReadCloser, error) {
	ctx, span := tracer.Start(ctx, "open speech stream")
	defer span.End()

	if !c.wasIssued(ref) {
		return nil, c.fail(span, fmt.Errorf("%w: %s", texttospeech.ErrUnknownAudioRef, ref))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.String(), nil)
	if err != nil {
		return nil, c.fail(span, fmt.Errorf("error creating HTTP request: %w", err))
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.fail(span, fmt.Errorf("error sending request: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, c.fail(span, fmt.Errorf("failed to fetch audio stream: %s", resp.Status))
	}

	return resp.Body, nil
}

func (c *TextToSpeechClient) issue(ref texttospeech.AudioRef) {
	c.issuedMu.Lock()
	defer c.issuedMu.Unlock()

	if _, ok := c.issued[ref]; ok {
		return
	}
	for len(c.order) >= texttospeech.DefaultClipCapacity {
		delete(c.issued, c.order[0])
		c.order = c.order[1:]
	}
	c.issued[ref] = struct{}{}
	c.order = append(c.order, ref)
}

func (c *TextToSpeechClient) wasIssued(ref texttospeech.AudioRef) bool {
	c.issuedMu.Lock()
	defer c.issuedMu.Unlock()
	_, ok := c.issued[ref]
	return ok
}

func (c *TextToSpeechClient) authorize(req *http.Request) {
	req.Header.Set("AUTHORIZATION", c.apiKey)
	req.Header.Set("X-USER-ID", c.userID)
}

func (c *TextToSpeechClient) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	logger.Warn("playht request failed", "error", err)
	return err
}
