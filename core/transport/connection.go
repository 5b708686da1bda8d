package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var ErrConnectionClosed = errors.New("connection closed")

const outboundQueueCapacity = 64

type wsConn interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// connection owns a single websocket. Frames are written by one writer
// goroutine in the order they were sent.
type connection struct {
	ws       wsConn
	outbound chan []byte

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
}

func newConnection(ctx context.Context, ws wsConn) *connection {
	ctx, cancel := context.WithCancel(ctx)
	return &connection{
		ws:       ws,
		outbound: make(chan []byte, outboundQueueCapacity),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (c *connection) send(ctx context.Context, frame Frame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.outbound <- payload:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// writeLoop writes queued frames and keeps the connection alive with pings
// until the connection is closed or a write fails.
func (c *connection) writeLoop(pingInterval, writeTimeout time.Duration) error {
	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
			return nil
		case <-pingTicker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeTimeout)); err != nil {
				return err
			}
		case payload := <-c.outbound:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return err
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				return err
			}
		}
	}
}

func (c *connection) close() {
	c.closeOnce.Do(func() {
		c.cancel()
	})
}

func (c *connection) closed() <-chan struct{} { return c.ctx.Done() }
