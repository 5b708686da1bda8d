// Package deepgram transcribes speech over the Deepgram listen websocket.
package deepgram

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	DefaultURL      = "wss://api.deepgram.com/v1/listen"
	DefaultModel    = "nova-3"
	DefaultLanguage = "en-US"

	closeTimeout = 2 * time.Second
)

var ErrAlreadyTranscribing = errors.New("already transcribing")

type TranscriptionClient struct {
	apiKey   string
	url      string
	model    string
	language string
	dialer   *websocket.Dialer

	connMu    sync.Mutex
	conn      *websocket.Conn
	lastMsgTs time.Time
	done      chan struct{}

	// Owned by the read loop.
	accumulatedTranscript string
	unendedSegment        bool
}

type ClientOption func(*TranscriptionClient)

func WithAPIKey(apiKey string) ClientOption {
	return func(c *TranscriptionClient) { c.apiKey = apiKey }
}

// WithURL overrides the listen endpoint, mostly useful for tests.
func WithURL(url string) ClientOption {
	return func(c *TranscriptionClient) { c.url = url }
}

func WithModel(model string) ClientOption {
	return func(c *TranscriptionClient) {
		if model != "" {
			c.model = model
		}
	}
}

func WithLanguage(language string) ClientOption {
	return func(c *TranscriptionClient) {
		if language != "" {
			c.language = language
		}
	}
}

func NewTranscriptionClient(opts ...ClientOption) (*TranscriptionClient, error) {
	client := &TranscriptionClient{
		apiKey:   os.Getenv("DEEPGRAM_API_KEY"),
		url:      DefaultURL,
		model:    DefaultModel,
		language: DefaultLanguage,
		dialer:   websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.apiKey == "" {
		return nil, fmt.Errorf("deepgram api key not found")
	}

	return client, nil
}

// Close ends the stream and waits for the last transcripts to arrive.
func (s *TranscriptionClient) Close() error {
	s.connMu.Lock()
	conn, done := s.conn, s.done
	s.connMu.Unlock()
	if conn == nil {
		return nil
	}

	err := s.stopStream()
	select {
	case <-done:
	case <-time.After(closeTimeout):
		_ = conn.Close()
		<-done
	}
	return err
}
