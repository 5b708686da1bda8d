package playht

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/koscakluka/ema-room/core/texttospeech"
)

func TestSynthesizeReturnsHref(t *testing.T) {
	var received streamRequestBody
	var authorization, userID string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorization = r.Header.Get("AUTHORIZATION")
		userID = r.Header.Get("X-USER-ID")
		_ = json.NewDecoder(r.Body).Decode(&received)
		_, _ = w.Write([]byte(`{"href":"https://play.ht/stream/1"}`))
	}))
	defer server.Close()

	client, err := NewTextToSpeechClient("key", "user", WithURL(server.URL), WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	ref, err := client.Synthesize(context.Background(), "hello there")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if ref != "https://play.ht/stream/1" {
		t.Fatalf("expected href ref, got %q", ref)
	}
	if authorization != "key" || userID != "user" {
		t.Fatalf("expected credentials to be sent, got %q/%q", authorization, userID)
	}
	if received.Text != "hello there" || received.Voice != DefaultVoice {
		t.Fatalf("unexpected request body %+v", received)
	}
	if received.SampleRate != 24000 {
		t.Fatalf("expected default sample rate 24000, got %d", received.SampleRate)
	}
}

func TestSynthesizeFailsOnErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer server.Close()

	client, _ := NewTextToSpeechClient("key", "user", WithURL(server.URL), WithHTTPClient(server.Client()))
	if _, err := client.Synthesize(context.Background(), "hello"); err == nil {
		t.Fatalf("expected error on unauthorized response")
	}
}

func TestOpenProxiesIssuedAudioWithCredentials(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("AUTHORIZATION") != "key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`{"href":"` + server.URL + `/stream"}`))
			return
		}
		_, _ = w.Write([]byte{1, 2, 3, 4})
	}))
	defer server.Close()

	client, _ := NewTextToSpeechClient("key", "user", WithURL(server.URL), WithHTTPClient(server.Client()))
	ref, err := client.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	reader, err := client.Open(context.Background(), ref)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer reader.Close()

	audio, _ := io.ReadAll(reader)
	if len(audio) != 4 {
		t.Fatalf("expected 4 bytes of audio, got %d", len(audio))
	}
}

func TestOpenRejectsRefsItDidNotIssue(t *testing.T) {
	var requests atomic.Int32
	elsewhere := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer elsewhere.Close()

	client, _ := NewTextToSpeechClient("key", "user", WithHTTPClient(elsewhere.Client()))
	for _, ref := range []texttospeech.AudioRef{"clip:abc", "", texttospeech.AudioRef(elsewhere.URL + "/steal")} {
		if _, err := client.Open(context.Background(), ref); !errors.Is(err, texttospeech.ErrUnknownAudioRef) {
			t.Fatalf("expected unknown ref error for %q, got %v", ref, err)
		}
	}
	if got := requests.Load(); got != 0 {
		t.Fatalf("expected no request with credentials, got %d", got)
	}
}

func TestOpenForgetsOldestIssuedRefs(t *testing.T) {
	client, _ := NewTextToSpeechClient("key", "user")
	for i := range texttospeech.DefaultClipCapacity + 1 {
		client.issue(texttospeech.AudioRef(fmt.Sprintf("https://play.ht/stream/%d", i)))
	}

	if client.wasIssued("https://play.ht/stream/0") {
		t.Fatalf("expected the oldest ref to be forgotten")
	}
	if !client.wasIssued(texttospeech.AudioRef(fmt.Sprintf("https://play.ht/stream/%d", texttospeech.DefaultClipCapacity))) {
		t.Fatalf("expected the newest ref to be kept")
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	if _, err := NewTextToSpeechClient("", "user"); err == nil {
		t.Fatalf("expected error without api key")
	}
}
