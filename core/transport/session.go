package transport

import (
	"context"
	"sync"

	orchestration "github.com/koscakluka/ema-room/core"
	"github.com/koscakluka/ema-room/core/texttospeech"
)

// session is the server side of one client id. It outlives connections, a
// client reconnecting with the same id continues the same conversation.
type session struct {
	clientID     string
	orchestrator *orchestration.Orchestrator

	mu   sync.Mutex
	conn *connection
}

// attach makes conn the connection frames are sent to. A previous
// connection is closed.
func (s *session) attach(conn *connection) {
	s.mu.Lock()
	previous := s.conn
	s.conn = conn
	s.mu.Unlock()

	if previous != nil {
		previous.close()
	}
}

func (s *session) detach(conn *connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == conn {
		s.conn = nil
	}
}

func (s *session) send(ctx context.Context, frame Frame) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return ErrConnectionClosed
	}
	return conn.send(ctx, frame)
}

func (s *session) EmitText(ctx context.Context, fragment orchestration.Fragment) error {
	return s.send(ctx, TextFrame(fragment))
}

func (s *session) EmitAudio(ctx context.Context, fragment orchestration.Fragment, ref texttospeech.AudioRef) error {
	return s.send(ctx, AudioFrame(fragment, ref))
}

func (s *session) EmitAudioFailure(ctx context.Context, fragment orchestration.Fragment, err error) error {
	return s.send(ctx, AudioErrorFrame(fragment, err))
}
