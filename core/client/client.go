// Package client is the listening side of a room: it sends perceptions to
// the server, shows the soul's fragments and plays their audio in order.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-room/core/perceptions"
	"github.com/koscakluka/ema-room/core/playback"
	"github.com/koscakluka/ema-room/core/transport"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ErrClosed = errors.New("client closed")

const closeTimeout = time.Second

// Message is a fragment of text the soul said.
type Message struct {
	Turn     string
	Sequence int
	Text     string
}

type ClientOption func(*Client)

// WithScheduler plays the audio of spoken fragments through scheduler.
// Without one audio frames are ignored.
func WithScheduler(scheduler *playback.Scheduler) ClientOption {
	return func(c *Client) { c.scheduler = scheduler }
}

func WithMessageCallback(onMessage func(Message)) ClientOption {
	return func(c *Client) { c.onMessage = onMessage }
}

// WithErrorCallback receives errors reported by the server and the reason
// the connection was lost.
func WithErrorCallback(onError func(error)) ClientOption {
	return func(c *Client) { c.onError = onError }
}

type Client struct {
	ws   *websocket.Conn
	base *url.URL

	scheduler *playback.Scheduler
	onMessage func(Message)
	onError   func(error)

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
	closing   chan struct{}
}

// Dial connects to the room served at serverURL as clientID. Frames are
// handled on a background goroutine until Close is called or the
// connection drops.
func Dial(ctx context.Context, serverURL, clientID string, opts ...ClientOption) (*Client, error) {
	ctx, span := tracer.Start(ctx, "dial room", trace.WithAttributes(
		attribute.String("client.id", clientID),
	))
	defer span.End()

	if strings.TrimSpace(clientID) == "" {
		err := fmt.Errorf("client id is required")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	base, wsURL, err := roomURLs(serverURL, clientID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		err = fmt.Errorf("failed to dial %s: %w", wsURL, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	c := &Client{
		ws:      ws,
		base:    base,
		done:    make(chan struct{}),
		closing: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.readLoop()
	return c, nil
}

// roomURLs derives the http base audio paths are resolved against and the
// websocket url of the room.
func roomURLs(serverURL, clientID string) (*url.URL, string, error) {
	base, err := url.Parse(serverURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid server url %q: %w", serverURL, err)
	}

	ws := *base
	switch base.Scheme {
	case "http":
		ws.Scheme = "ws"
	case "https":
		ws.Scheme = "wss"
	case "ws":
		base.Scheme = "http"
	case "wss":
		base.Scheme = "https"
	default:
		return nil, "", fmt.Errorf("unsupported server url scheme %q", base.Scheme)
	}
	ws.Path = strings.TrimSuffix(ws.Path, "/") + transport.WebSocketPath
	ws.RawQuery = url.Values{transport.ClientIDParam: {clientID}}.Encode()

	return base, ws.String(), nil
}

// SendPerception hands a perception to the soul.
func (c *Client) SendPerception(p perceptions.Perception) error {
	payload, err := json.Marshal(p.Ingress())
	if err != nil {
		return fmt.Errorf("failed to marshal perception: %w", err)
	}

	select {
	case <-c.closing:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("failed to send perception: %w", err)
	}
	return nil
}

func (c *Client) SendMessage(text string) error {
	return c.SendPerception(perceptions.NewTextMessage(text))
}

// AddObject places an object into the room. image is base64 encoded.
func (c *Client) AddObject(image, description string) error {
	p := perceptions.NewObjectAdded(image)
	p.Description = description
	return c.SendPerception(p)
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closing)

		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeTimeout))
		c.writeMu.Unlock()

		select {
		case <-c.done:
		case <-time.After(closeTimeout):
		}
		_ = c.ws.Close()
		<-c.done
	})
}

func (c *Client) readLoop() {
	defer close(c.done)

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.closing:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.reportError(fmt.Errorf("connection lost: %w", err))
				}
			}
			return
		}

		frame, err := transport.ParseFrame(data)
		if err != nil {
			logger.Warn("ignoring malformed frame", "error", err)
			continue
		}
		c.handleFrame(frame)
	}
}

func (c *Client) handleFrame(frame transport.Frame) {
	key := playback.Key{Turn: frame.Turn, Sequence: frame.Sequence}

	switch frame.Kind() {
	case transport.FrameText:
		// Reserve before showing the text so audio arriving right after it
		// already has its place in the queue.
		if frame.Speech && c.scheduler != nil {
			c.scheduler.Reserve(key)
		}
		if c.onMessage != nil {
			c.onMessage(Message{Turn: frame.Turn, Sequence: frame.Sequence, Text: frame.Text})
		}
	case transport.FrameAudio:
		if c.scheduler == nil {
			return
		}
		ref, err := c.resolve(frame.Audio)
		if err != nil {
			c.scheduler.Fail(key, err)
			return
		}
		c.scheduler.Deliver(key, ref)
	case transport.FrameAudioError:
		if c.scheduler != nil {
			c.scheduler.Fail(key, errors.New(frame.AudioError))
		}
	case transport.FrameError:
		c.reportError(errors.New(frame.Error))
	default:
		logger.Debug("ignoring unknown frame", "turn", frame.Turn, "sequence", frame.Sequence)
	}
}

func (c *Client) resolve(audio string) (string, error) {
	ref, err := url.Parse(audio)
	if err != nil {
		return "", fmt.Errorf("invalid audio url %q: %w", audio, err)
	}
	return c.base.ResolveReference(ref).String(), nil
}

func (c *Client) reportError(err error) {
	logger.Warn("room error", "error", err)
	if c.onError != nil {
		c.onError(err)
	}
}
