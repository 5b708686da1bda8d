// Package transport serves sessions over WebSocket. Each client id owns one
// orchestrator; perceptions arrive as JSON text frames and fragments leave
// as text, audio and audio error frames. Synthesized audio is served over
// plain HTTP so clients can load clips independently of the socket.
package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	orchestration "github.com/koscakluka/ema-room/core"
	"github.com/koscakluka/ema-room/core/perceptions"
	"github.com/koscakluka/ema-room/core/texttospeech"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultPingInterval = 20 * time.Second
	DefaultWriteTimeout = 5 * time.Second
	maxPerceptionSize   = 16 << 20
)

// OrchestratorFactory builds the orchestrator of a new session. Every
// fragment it produces must go to sink.
type OrchestratorFactory func(clientID string, sink orchestration.DispatchSink) *orchestration.Orchestrator

type ServerOption func(*Server)

// WithAudioSource serves synthesized clips from source.
func WithAudioSource(source texttospeech.AudioSource) ServerOption {
	return func(s *Server) { s.audioSource = source }
}

func WithPingInterval(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.pingInterval = d
		}
	}
}

func WithWriteTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

type Server struct {
	newOrchestrator OrchestratorFactory
	audioSource     texttospeech.AudioSource
	upgrader        websocket.Upgrader
	pingInterval    time.Duration
	writeTimeout    time.Duration

	baseContext context.Context
	cancel      context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool
	conns    sync.WaitGroup
}

func NewServer(newOrchestrator OrchestratorFactory, opts ...ServerOption) *Server {
	s := &Server{
		newOrchestrator: newOrchestrator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  65536,
			WriteBufferSize: 65536,
			// Clients are the terminal client and the game front-end served
			// from other origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		pingInterval: DefaultPingInterval,
		writeTimeout: DefaultWriteTimeout,
		sessions:     map[string]*session{},
	}
	s.baseContext, s.cancel = context.WithCancel(context.Background())

	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+WebSocketPath, s.handleWebSocket)
	mux.HandleFunc("GET "+AudioPath, s.handleAudio)
	mux.HandleFunc("GET "+HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return otelhttp.NewHandler(mux, "ema-room")
}

// Sessions returns the number of sessions the server keeps.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close ends every connection and session.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	sessions := s.sessions
	s.sessions = map[string]*session{}
	s.mu.Unlock()

	s.cancel()
	s.conns.Wait()
	for _, sess := range sessions {
		sess.orchestrator.Close()
	}
}

// acquire returns the session of clientID, creating it on first use. The
// caller must call s.conns.Done once the connection ended.
func (s *Server) acquire(clientID string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.New("server closed")
	}
	s.conns.Add(1)
	if sess, ok := s.sessions[clientID]; ok {
		return sess, nil
	}

	sess := &session{clientID: clientID}
	sess.orchestrator = s.newOrchestrator(clientID, sess)
	sess.orchestrator.Orchestrate(s.baseContext)
	s.sessions[clientID] = sess
	logger.Info("session created", "client_id", clientID)
	return sess, nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get(ClientIDParam)
	if clientID == "" {
		http.Error(w, "client_id is required", http.StatusBadRequest)
		return
	}

	sess, err := s.acquire(clientID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer s.conns.Done()

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("failed to upgrade connection", "client_id", clientID, "error", err)
		return
	}
	defer func() { _ = ws.Close() }()

	conn := newConnection(s.baseContext, ws)
	sess.attach(conn)
	defer sess.detach(conn)
	defer conn.close()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		if err := conn.writeLoop(s.pingInterval, s.writeTimeout); err != nil {
			logger.Warn("failed to write frame", "client_id", clientID, "error", err)
		}
		conn.close()
		_ = ws.Close()
	}()

	s.readLoop(sess, conn, ws)
	conn.close()
	<-writerDone
}

func (s *Server) readLoop(sess *session, conn *connection, ws *websocket.Conn) {
	pongWait := 2 * s.pingInterval
	ws.SetReadLimit(maxPerceptionSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Reads block until the socket is closed, closing it on shutdown
	// unblocks them.
	stop := context.AfterFunc(conn.ctx, func() { _ = ws.Close() })
	defer stop()

	for {
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("connection closed", "client_id", sess.clientID, "error", err)
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		if messageType != websocket.TextMessage {
			continue
		}

		p, err := perceptions.Parse(data)
		if err != nil {
			logger.Warn("dropping malformed perception", "client_id", sess.clientID, "error", err)
			_ = conn.send(conn.ctx, ErrorFrame(err))
			continue
		}
		if !sess.orchestrator.Perceive(p) {
			return
		}
	}
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "serve audio")
	defer span.End()

	ref := texttospeech.AudioRef(r.URL.Query().Get(AudioRefParam))
	if ref == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("audio.ref", ref.String()))

	if s.audioSource == nil {
		http.Error(w, "speech is disabled", http.StatusNotFound)
		return
	}

	audio, err := s.audioSource.Open(ctx, ref)
	if err != nil {
		recordError(span, err)
		if errors.Is(err, texttospeech.ErrUnknownAudioRef) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	defer audio.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := io.Copy(w, audio); err != nil {
		recordError(span, err)
		logger.Warn("failed to stream audio", "ref", ref.String(), "error", err)
	}
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
