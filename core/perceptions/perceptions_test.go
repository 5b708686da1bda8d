package perceptions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestParseAddObject(t *testing.T) {
	p, err := Parse([]byte(`{"action":"addObject","content":"(image - 4 bytes)","_metadata":{"image":"abcd"}}`))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if p.Kind != KindObjectAdded {
		t.Fatalf("expected object added kind, got %q", p.Kind)
	}
	if !p.HasImage() || p.Image != "abcd" {
		t.Fatalf("expected image abcd, got %q", p.Image)
	}
	if p.ID == "" {
		t.Fatalf("expected perception id to be assigned")
	}
}

func TestParseTextMessageWithDescription(t *testing.T) {
	p, err := Parse([]byte(`{"action":"sendMessage","content":"hi","_metadata":{"description":"- a lamp"}}`))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if p.Kind != KindTextMessage {
		t.Fatalf("expected text message kind, got %q", p.Kind)
	}
	if p.Description != "- a lamp" {
		t.Fatalf("expected description, got %q", p.Description)
	}
}

func TestParseRejectsMissingAction(t *testing.T) {
	if _, err := Parse([]byte(`{"content":"hi"}`)); err == nil {
		t.Fatalf("expected error for missing action")
	}
	if _, err := Parse([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for invalid json")
	}
}

func TestStringUsesImagePlaceholder(t *testing.T) {
	p := New(ActionAddObject, "")
	p.Image = "abcdef"

	if got := p.String(); got != "Interlocutor addObject: (image - 6 bytes)" {
		t.Fatalf("unexpected remembered form %q", got)
	}
}

func TestQueueIsFIFO(t *testing.T) {
	q := NewQueue()
	q.Push(NewTextMessage("one"))
	q.Push(NewTextMessage("two"))

	if q.Len() != 2 {
		t.Fatalf("expected 2 queued perceptions, got %d", q.Len())
	}

	first, _ := q.TryPop()
	second, _ := q.TryPop()
	if first.Content != "one" || second.Content != "two" {
		t.Fatalf("expected FIFO order, got %q then %q", first.Content, second.Content)
	}
	if _, ok := q.TryPop(); ok {
		t.Fatalf("expected empty queue")
	}
	if q.Len() != 0 {
		t.Fatalf("expected length 0, got %d", q.Len())
	}
}

func TestQueuePopWaitsForPush(t *testing.T) {
	q := NewQueue()
	result := make(chan Perception, 1)
	go func() {
		p, err := q.Pop(context.Background())
		if err == nil {
			result <- p
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.Push(NewTextMessage("late"))

	select {
	case p := <-result:
		if p.Content != "late" {
			t.Fatalf("expected late perception, got %q", p.Content)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for pop")
	}
}

func TestQueuePopReturnsOnCancel(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := q.Pop(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancelled, got %v", err)
	}
}

func TestQueueConcurrentPushNeverDrops(t *testing.T) {
	q := NewQueue()
	wg := sync.WaitGroup{}
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Push(NewTextMessage("x"))
		}()
	}
	wg.Wait()

	if q.Len() != 50 {
		t.Fatalf("expected 50 perceptions, got %d", q.Len())
	}
	if len(q.Snapshot()) != 50 {
		t.Fatalf("expected snapshot of 50 perceptions")
	}
}
