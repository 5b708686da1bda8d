package client

import (
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/koscakluka/ema-room/core/playback"
)

type senderStub struct {
	messages []string
	images   []string
	notes    []string
	err      error
}

func (s *senderStub) SendMessage(text string) error {
	s.messages = append(s.messages, text)
	return s.err
}

func (s *senderStub) AddObject(image, description string) error {
	s.images = append(s.images, image)
	s.notes = append(s.notes, description)
	return s.err
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()

	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("expected Model, got %T", next)
	}
	return model, cmd
}

func typeInput(t *testing.T, m Model, input string) (Model, tea.Cmd) {
	t.Helper()

	m.textinput.SetValue(input)
	return update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
}

func TestModelShowsEachMessageOnce(t *testing.T) {
	m := NewModel(&senderStub{}, NewFeed(), "Milton")

	m, _ = update(t, m, messageMsg{Turn: "turn-1", Sequence: 0, Text: "A lamp!"})
	m, _ = update(t, m, messageMsg{Turn: "turn-1", Sequence: 1, Text: "How bright."})
	m, _ = update(t, m, messageMsg{Turn: "turn-2", Sequence: 0, Text: "A lamp!"})

	expected := []string{"A lamp!", "How bright."}
	if !slices.Equal(m.Messages(), expected) {
		t.Fatalf("expected %v, got %v", expected, m.Messages())
	}
}

func TestModelTracksTalking(t *testing.T) {
	m := NewModel(&senderStub{}, NewFeed(), "Milton")

	m, _ = update(t, m, talkingMsg(true))
	if !strings.Contains(m.View(), "Milton is talking") {
		t.Fatalf("expected talking indicator in view")
	}

	m, _ = update(t, m, talkingMsg(false))
	if strings.Contains(m.View(), "Milton is talking") {
		t.Fatalf("expected talking indicator to disappear")
	}
}

func TestModelSendsMessages(t *testing.T) {
	sender := &senderStub{}
	m := NewModel(sender, NewFeed(), "Milton")

	m, cmd := typeInput(t, m, "  hello Milton ")
	if cmd == nil {
		t.Fatalf("expected a command sending the message")
	}
	msg := cmd()
	if !slices.Equal(sender.messages, []string{"hello Milton"}) {
		t.Fatalf("unexpected sent messages %v", sender.messages)
	}
	if m.textinput.Value() != "" {
		t.Fatalf("expected input to be cleared")
	}

	m, _ = update(t, m, msg)
	if !strings.Contains(m.View(), "said: hello Milton") {
		t.Fatalf("expected status in view, got %q", m.View())
	}
}

func TestModelAddsObjects(t *testing.T) {
	sender := &senderStub{}
	m := NewModel(sender, NewFeed(), "Milton")
	m.readFile = func(path string) ([]byte, error) {
		if path != "lamp.png" {
			return nil, errors.New("no such file")
		}
		return []byte("png"), nil
	}

	_, cmd := typeInput(t, m, "/add lamp.png a brass lamp")
	cmd()
	if !slices.Equal(sender.images, []string{"data:image/png;base64,cG5n"}) {
		t.Fatalf("unexpected images %v", sender.images)
	}
	if !slices.Equal(sender.notes, []string{"a brass lamp"}) {
		t.Fatalf("unexpected descriptions %v", sender.notes)
	}

	_, cmd = typeInput(t, m, "/add missing.png")
	if _, ok := cmd().(sendFailedMsg); !ok {
		t.Fatalf("expected failure for a missing file")
	}

	_, cmd = typeInput(t, m, "/add")
	if _, ok := cmd().(sendFailedMsg); !ok {
		t.Fatalf("expected usage failure without a path")
	}
	if len(sender.images) != 1 {
		t.Fatalf("expected only one object to be added, got %d", len(sender.images))
	}
}

func TestModelIgnoresEmptyInput(t *testing.T) {
	sender := &senderStub{}
	m := NewModel(sender, NewFeed(), "Milton")

	if _, cmd := typeInput(t, m, "   "); cmd != nil {
		t.Fatalf("expected no command for empty input")
	}
}

func TestFeedDeliversToModel(t *testing.T) {
	feed := NewFeed()
	defer feed.Stop()

	go feed.TalkingStarted(playback.Key{Turn: "turn-1"})

	received := make(chan tea.Msg, 1)
	go func() { received <- feed.next()() }()

	select {
	case msg := <-received:
		if msg != talkingMsg(true) {
			t.Fatalf("unexpected message %v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the feed")
	}
}

func TestStoppedFeedReleasesSenders(t *testing.T) {
	feed := NewFeed()
	feed.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		feed.Message(Message{Text: "nobody listens"})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected a stopped feed not to block")
	}
	if msg := feed.next()(); msg != nil {
		t.Fatalf("expected no message from a stopped feed, got %v", msg)
	}
}

func TestModelShowsWhatIsHeard(t *testing.T) {
	m := NewModel(&senderStub{}, NewFeed(), "Milton")

	m, _ = update(t, m, hearingMsg("a lam"))
	if !strings.Contains(m.View(), "hearing: a lam") {
		t.Fatalf("expected interim transcript in view")
	}

	m, _ = update(t, m, heardMsg("a lamp"))
	if !strings.Contains(m.View(), "said: a lamp") {
		t.Fatalf("expected heard speech in view")
	}
}
