package deepgram

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/pkg/api/speak/v1/websocket/interfaces"
	clientinterfaces "github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces/v1"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/speak"
	"github.com/koscakluka/ema-room/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultIdleWindow = 400 * time.Millisecond
	defaultTimeout    = 12 * time.Second
)

// speaker is the part of the SDK websocket client used for synthesis.
type speaker interface {
	Connect() bool
	SpeakWithText(text string) error
	Flush() error
	Stop()
}

type speakerFactory func(ctx context.Context, apiKey string, options *clientinterfaces.WSSpeakOptions, callback msginterfaces.SpeakMessageCallback) (speaker, error)

func newSDKSpeaker(ctx context.Context, apiKey string, options *clientinterfaces.WSSpeakOptions, callback msginterfaces.SpeakMessageCallback) (speaker, error) {
	return speak.NewWSUsingCallback(ctx, apiKey, &clientinterfaces.ClientOptions{}, options, callback)
}

// TextToSpeechClient synthesizes whole clips over the Deepgram speak
// websocket and keeps them in a clip store until they are opened.
type TextToSpeechClient struct {
	apiKey string
	voice  deepgramVoice
	store  *texttospeech.ClipStore

	options    texttospeech.TextToSpeechOptions
	idleWindow time.Duration
	timeout    time.Duration
	newSpeaker speakerFactory
}

type ClientOption func(*TextToSpeechClient)

func WithAPIKey(apiKey string) ClientOption {
	return func(c *TextToSpeechClient) { c.apiKey = apiKey }
}

func WithClipStore(store *texttospeech.ClipStore) ClientOption {
	return func(c *TextToSpeechClient) { c.store = store }
}

func WithDefaultOptions(opts ...texttospeech.TextToSpeechOption) ClientOption {
	return func(c *TextToSpeechClient) { c.options = texttospeech.DefaultOptions(opts...) }
}

// WithTimeout bounds a single synthesis.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *TextToSpeechClient) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

func NewTextToSpeechClient(voice deepgramVoice, opts ...ClientOption) (*TextToSpeechClient, error) {
	if !slices.Contains(GetAvailableVoices(), voice) {
		return nil, fmt.Errorf("invalid voice: %s", voice)
	}

	client := &TextToSpeechClient{
		apiKey:     os.Getenv("DEEPGRAM_API_KEY"),
		voice:      voice,
		options:    texttospeech.DefaultOptions(),
		idleWindow: defaultIdleWindow,
		timeout:    defaultTimeout,
		newSpeaker: newSDKSpeaker,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.store == nil {
		client.store = texttospeech.NewClipStore(texttospeech.DefaultClipCapacity)
	}
	if client.apiKey == "" {
		return nil, fmt.Errorf("deepgram api key not found")
	}

	return client, nil
}

func (c *TextToSpeechClient) Synthesize(ctx context.Context, text string, opts ...texttospeech.TextToSpeechOption) (texttospeech.AudioRef, error) {
	ctx, span := tracer.Start(ctx, "synthesize speech")
	defer span.End()

	options := c.options
	for _, opt := range opts {
		opt(&options)
	}
	voice := c.voice
	if options.Voice != "" {
		voice = deepgramVoice(options.Voice)
	}
	span.SetAttributes(
		attribute.String("request.voice", string(voice)),
		attribute.Int("request.text_length", len(text)),
	)

	audio, err := c.synthesize(ctx, text, voice, options)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	span.SetAttributes(attribute.Int("response.audio_bytes", len(audio)))
	return c.store.Put(audio), nil
}

func (c *TextToSpeechClient) Open(ctx context.Context, ref texttospeech.AudioRef) (io.ReadCloser, error) {
	return c.store.Open(ctx, ref)
}

func (c *TextToSpeechClient) synthesize(ctx context.Context, text string, voice deepgramVoice, options texttospeech.TextToSpeechOptions) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("nothing to synthesize")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	callback := newSpeakCallback()
	dg, err := c.newSpeaker(ctx, c.apiKey, &clientinterfaces.WSSpeakOptions{
		Model:      string(voice),
		Encoding:   options.EncodingInfo.Format.Name(),
		SampleRate: options.EncodingInfo.SampleRate,
	}, callback)
	if err != nil {
		return nil, fmt.Errorf("failed to create speak client: %w", err)
	}
	defer dg.Stop()

	if ok := dg.Connect(); !ok {
		return nil, fmt.Errorf("failed to connect to deepgram")
	}
	if err := dg.SpeakWithText(text); err != nil {
		return nil, fmt.Errorf("failed to speak text: %w", err)
	}
	if err := dg.Flush(); err != nil {
		logger.Warn("failed to flush deepgram speech", "error", err)
	}

	ticker := time.NewTicker(c.idleWindow / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if audio := callback.audio(); len(audio) > 0 {
				logger.Warn("deepgram synthesis timed out, using partial audio", "bytes", len(audio))
				return audio, nil
			}
			return nil, fmt.Errorf("deepgram synthesis did not finish: %w", ctx.Err())
		case err := <-callback.errs:
			return nil, err
		case <-callback.flushed:
			return callback.audio(), nil
		case <-ticker.C:
			if callback.idleFor() > c.idleWindow {
				return callback.audio(), nil
			}
		}
	}
}

type speakCallback struct {
	mu       sync.Mutex
	buffer   bytes.Buffer
	lastRecv time.Time

	flushed   chan struct{}
	flushOnce sync.Once
	errs      chan error
}

func newSpeakCallback() *speakCallback {
	return &speakCallback{flushed: make(chan struct{}), errs: make(chan error, 1)}
}

func (s *speakCallback) audio() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Clone(s.buffer.Bytes())
}

// idleFor reports how long no audio was received, zero until the first
// audio arrives.
func (s *speakCallback) idleFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRecv.IsZero() {
		return 0
	}
	return time.Since(s.lastRecv)
}

func (s *speakCallback) Open(*msginterfaces.OpenResponse) error         { return nil }
func (s *speakCallback) Metadata(*msginterfaces.MetadataResponse) error { return nil }
func (s *speakCallback) Clear(*msginterfaces.ClearedResponse) error     { return nil }
func (s *speakCallback) Close(*msginterfaces.CloseResponse) error       { return nil }
func (s *speakCallback) Warning(*msginterfaces.WarningResponse) error   { return nil }
func (s *speakCallback) UnhandledEvent([]byte) error                    { return nil }

func (s *speakCallback) Flush(*msginterfaces.FlushedResponse) error {
	s.flushOnce.Do(func() { close(s.flushed) })
	return nil
}

func (s *speakCallback) Error(response *msginterfaces.ErrorResponse) error {
	err := fmt.Errorf("deepgram speak error")
	if response != nil {
		err = fmt.Errorf("deepgram speak error: %+v", *response)
	}
	select {
	case s.errs <- err:
	default:
	}
	return nil
}

func (s *speakCallback) Binary(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer.Write(data)
	s.lastRecv = time.Now()
	return nil
}
