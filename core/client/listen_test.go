package client

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/koscakluka/ema-room/core/audio"
	"github.com/koscakluka/ema-room/core/speechtotext"
)

type captureStub struct {
	onAudio  func([]byte)
	startErr error
	stopped  bool
}

func (c *captureStub) Start(onAudio func([]byte)) error {
	if c.startErr != nil {
		return c.startErr
	}
	c.onAudio = onAudio
	return nil
}

func (c *captureStub) Stop() error {
	c.stopped = true
	return nil
}

// transcriberStub hears every chunk of audio as one finished utterance.
type transcriberStub struct {
	options speechtotext.TranscriptionOptions
	audio   [][]byte
	closed  bool
}

func (s *transcriberStub) Transcribe(_ context.Context, opts ...speechtotext.TranscriptionOption) error {
	for _, opt := range opts {
		opt(&s.options)
	}
	return nil
}

func (s *transcriberStub) SendAudio(audio []byte) error {
	s.audio = append(s.audio, audio)
	s.options.InterimTranscriptionCallback("hel")
	s.options.TranscriptionCallback(string(audio))
	return nil
}

func (s *transcriberStub) Close() error {
	s.closed = true
	return nil
}

func receive(t *testing.T, feed *Feed) tea.Msg {
	t.Helper()

	received := make(chan tea.Msg, 1)
	go func() { received <- feed.next()() }()
	select {
	case msg := <-received:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the feed")
		return nil
	}
}

func TestListenSendsWhatIsHeard(t *testing.T) {
	capture := &captureStub{}
	transcriber := &transcriberStub{}
	sender := &senderStub{}
	feed := NewFeed()
	defer feed.Stop()

	listening, err := Listen(context.Background(), capture, transcriber, audio.NewEncodingInfo(16000), sender, feed)
	if err != nil {
		t.Fatalf("failed to start listening: %v", err)
	}
	if transcriber.options.EncodingInfo.SampleRate != 16000 {
		t.Fatalf("expected transcriber to get the capture encoding, got %+v", transcriber.options.EncodingInfo)
	}

	spoken := make(chan struct{})
	go func() {
		defer close(spoken)
		capture.onAudio([]byte("hello"))
	}()

	if msg := receive(t, feed); msg != hearingMsg("hel") {
		t.Fatalf("expected interim transcript, got %v", msg)
	}
	if msg := receive(t, feed); msg != heardMsg("hello") {
		t.Fatalf("expected final transcript, got %v", msg)
	}
	<-spoken

	if !slices.Equal(sender.messages, []string{"hello"}) {
		t.Fatalf("expected heard speech to be sent, got %v", sender.messages)
	}

	if err := listening.Stop(); err != nil {
		t.Fatalf("failed to stop listening: %v", err)
	}
	if !capture.stopped || !transcriber.closed {
		t.Fatalf("expected capture and transcriber to be stopped")
	}
}

func TestListenReportsFailedSends(t *testing.T) {
	capture := &captureStub{}
	sender := &senderStub{err: errors.New("room closed")}
	feed := NewFeed()
	defer feed.Stop()

	if _, err := Listen(context.Background(), capture, &transcriberStub{}, audio.NewEncodingInfo(16000), sender, feed); err != nil {
		t.Fatalf("failed to start listening: %v", err)
	}
	go capture.onAudio([]byte("hello"))

	receive(t, feed)
	msg, ok := receive(t, feed).(errorMsg)
	if !ok || !errors.Is(msg.err, sender.err) {
		t.Fatalf("expected failed send to be reported, got %v", msg)
	}
}

func TestListenClosesTranscriberWhenCaptureFails(t *testing.T) {
	capture := &captureStub{startErr: errors.New("no microphone")}
	transcriber := &transcriberStub{}
	feed := NewFeed()
	defer feed.Stop()

	_, err := Listen(context.Background(), capture, transcriber, audio.NewEncodingInfo(16000), &senderStub{}, feed)
	if !errors.Is(err, capture.startErr) {
		t.Fatalf("expected capture error, got %v", err)
	}
	if !transcriber.closed {
		t.Fatalf("expected transcriber to be closed")
	}
}
