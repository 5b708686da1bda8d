package deepgram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-room/core/audio"
	"github.com/koscakluka/ema-room/core/speechtotext"
)

func results(transcript string, speechFinal bool) string {
	msg, _ := json.Marshal(map[string]any{
		"type":         "Results",
		"is_final":     true,
		"speech_final": speechFinal,
		"channel": map[string]any{
			"alternatives": []map[string]any{{"transcript": transcript}},
		},
	})
	return string(msg)
}

type listenRequest struct {
	header http.Header
	query  url.Values
}

// newListenStub answers the first audio it receives with a short
// conversation and flushes one more result when the stream is closed.
func newListenStub(t *testing.T, requests chan<- listenRequest) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests <- listenRequest{header: r.Header.Clone(), query: r.URL.Query()}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		answered := false
		for {
			msgType, msg, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if msgType == websocket.BinaryMessage && !answered {
				answered = true
				for _, reply := range []string{
					`{"type":"SpeechStarted"}`,
					results("hello", false),
					results("there", true),
				} {
					if err := ws.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
						return
					}
				}
			}
			if msgType == websocket.TextMessage && strings.Contains(string(msg), "CloseStream") {
				_ = ws.WriteMessage(websocket.TextMessage, []byte(results("bye", false)))
				_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewTranscriptionClientRequiresAPIKey(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "")
	if _, err := NewTranscriptionClient(); err == nil {
		t.Fatalf("expected missing api key to fail")
	}
}

func TestTranscribeRejectsUnsupportedEncoding(t *testing.T) {
	client, err := NewTranscriptionClient(WithAPIKey("key"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	err = client.Transcribe(context.Background(),
		speechtotext.WithEncodingInfo(audio.EncodingInfo{SampleRate: 16000, Format: audio.EncodingMulaw}))
	if err == nil {
		t.Fatalf("expected mulaw at 16kHz to be rejected")
	}
}

func TestTranscribeReportsUtterances(t *testing.T) {
	requests := make(chan listenRequest, 1)
	server := newListenStub(t, requests)

	client, err := NewTranscriptionClient(
		WithAPIKey("key"),
		WithURL("ws"+strings.TrimPrefix(server.URL, "http")),
	)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	var mu sync.Mutex
	var transcripts []string
	started := 0
	err = client.Transcribe(context.Background(),
		speechtotext.WithEncodingInfo(audio.NewEncodingInfo(16000)),
		speechtotext.WithTranscriptionCallback(func(transcript string) {
			mu.Lock()
			defer mu.Unlock()
			transcripts = append(transcripts, transcript)
		}),
		speechtotext.WithSpeechStartedCallback(func() {
			mu.Lock()
			defer mu.Unlock()
			started++
		}),
	)
	if err != nil {
		t.Fatalf("failed to start transcribing: %v", err)
	}

	request := <-requests
	if request.header.Get("Authorization") != "Token key" {
		t.Fatalf("unexpected authorization %q", request.header.Get("Authorization"))
	}
	query := request.query
	if query.Get("encoding") != "linear16" || query.Get("sample_rate") != "16000" || query.Get("model") != DefaultModel {
		t.Fatalf("unexpected query %v", query)
	}
	if query.Get("vad_events") != "true" || query.Get("utterance_end_ms") != "1000" {
		t.Fatalf("expected speech end detection, got %v", query)
	}

	if err := client.SendAudio(make([]byte, 320)); err != nil {
		t.Fatalf("failed to send audio: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		heard := len(transcripts)
		mu.Unlock()
		if heard == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for the first utterance")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if err := client.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if !slices.Equal(transcripts, []string{"hello there", "bye"}) {
		t.Fatalf("unexpected transcripts %v", transcripts)
	}
	if started != 1 {
		t.Fatalf("expected speech to start once, got %d", started)
	}
	if err := client.SendAudio([]byte{0}); err == nil {
		t.Fatalf("expected sending after close to fail")
	}
}
