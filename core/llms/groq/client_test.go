package groq

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/koscakluka/ema-room/core/memory"
)

type capturedRequest struct {
	Model          string            `json:"model"`
	Messages       []json.RawMessage `json:"messages"`
	ResponseFormat *struct {
		Type       string `json:"type"`
		JSONSchema struct {
			Name   string `json:"name"`
			Schema struct {
				Properties map[string]struct {
					Enum []string `json:"enum"`
				} `json:"properties"`
			} `json:"schema"`
		} `json:"json_schema"`
	} `json:"response_format"`
}

func newTestServer(t *testing.T, reply string, captured *capturedRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			_ = json.NewDecoder(r.Body).Decode(captured)
		}
		body := map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]any{"role": "assistant", "content": reply}},
			},
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
}

func TestToMessagesCopiesRoles(t *testing.T) {
	mem := memory.New("Milton",
		memory.Entry{Role: memory.RoleSystem, Content: "You are Milton."},
		memory.Entry{Role: memory.RoleUser, Content: ""},
		memory.Entry{Role: memory.RoleAssistant, Content: "Milton said: hi"},
	)

	messages, err := toMessages(mem, "speak")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	if messages[0].Role != messageRoleSystem || messages[1].Role != messageRoleAssistant || messages[2].Role != messageRoleUser {
		t.Fatalf("unexpected roles %+v", messages)
	}
	if messages[1].Content != "Milton said: hi" {
		t.Fatalf("unexpected content %q", messages[1].Content)
	}
}

func TestDecideConstrainsChoices(t *testing.T) {
	captured := capturedRequest{}
	server := newTestServer(t, `{"decision":"medium"}`, &captured)
	defer server.Close()

	client := NewClient("key", WithURL(server.URL), WithHTTPClient(server.Client()))
	choices := []string{"very long", "long", "medium", "short"}
	answer, err := client.Decide(context.Background(), memory.New("Milton"), "How long?", choices)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if answer != "medium" {
		t.Fatalf("expected medium, got %q", answer)
	}

	if captured.ResponseFormat == nil || captured.ResponseFormat.Type != "json_schema" {
		t.Fatalf("expected json schema response format")
	}
	enum := captured.ResponseFormat.JSONSchema.Schema.Properties["decision"].Enum
	if !slices.Equal(enum, choices) {
		t.Fatalf("expected enum %v, got %v", choices, enum)
	}
}

func TestDecideUnwrapsFencedJSON(t *testing.T) {
	server := newTestServer(t, "```json\n{\"decision\":\"yes\"}\n```", nil)
	defer server.Close()

	client := NewClient("key", WithURL(server.URL), WithHTTPClient(server.Client()))
	answer, err := client.Decide(context.Background(), memory.New("Milton"), "Conclude?", []string{"yes", "no"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if answer != "yes" {
		t.Fatalf("expected yes, got %q", answer)
	}
}

func TestGenerateReturnsTrimmedContent(t *testing.T) {
	server := newTestServer(t, " The lamp is new. ", nil)
	defer server.Close()

	client := NewClient("key", WithURL(server.URL), WithHTTPClient(server.Client()))
	text, err := client.Generate(context.Background(), memory.New("Milton"), "What changed?")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if text != "The lamp is new." {
		t.Fatalf("unexpected text %q", text)
	}
}
