package orchestration

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/ema-room/core/events"
	"github.com/koscakluka/ema-room/core/perceptions"
	"go.uber.org/goleak"
)

func TestCloseBeforeOrchestrateMarksClosed(t *testing.T) {
	o := NewOrchestrator()
	o.Close()

	if !o.runtime.isClosed() {
		t.Fatalf("expected orchestrator to be closed")
	}

	o.Orchestrate(context.Background())
	if !o.runtime.isClosed() {
		t.Fatalf("expected orchestrator to stay closed")
	}
	if o.Perceive(objectAdded()) {
		t.Fatalf("expected closed orchestrator to refuse perceptions")
	}
}

func TestPerceptionQueuedBeforeOrchestrateIsProcessed(t *testing.T) {
	defer goleak.VerifyNone(t)

	oracle := newOracleStub()
	sink := newRecordingSink()
	o, _ := newTestOrchestrator(oracle, sink)
	defer o.Close()

	if !o.Perceive(objectAdded()) {
		t.Fatalf("expected perception to be queued")
	}

	reports := make(chan TurnReport, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.Orchestrate(ctx, WithTurnEndCallback(func(report TurnReport) { reports <- report }))

	select {
	case report := <-reports:
		if report.State != TurnStateDone {
			t.Fatalf("expected done, got %s (err %v)", report.State, report.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for turn to finish")
	}

	if got := len(sink.fragments()); got != 1 {
		t.Fatalf("expected one fragment, got %d", got)
	}
}

func TestEveryQueuedPerceptionGetsItsOwnTurn(t *testing.T) {
	defer goleak.VerifyNone(t)

	oracle := newOracleStub()
	o, _ := newTestOrchestrator(oracle, newRecordingSink())
	defer o.Close()

	first := objectAdded()
	second := perceptions.NewTextMessage("hello")
	o.Perceive(first)
	o.Perceive(second)

	var mu sync.Mutex
	var reports []TurnReport
	o.Orchestrate(context.Background(), WithTurnEndCallback(func(report TurnReport) {
		mu.Lock()
		reports = append(reports, report)
		mu.Unlock()
	}))

	waitForCondition(t, 2*time.Second, "both turns", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reports) == 2
	})

	mu.Lock()
	defer mu.Unlock()
	if reports[0].PerceptionID != first.ID || reports[1].PerceptionID != second.ID {
		t.Fatalf("expected turns in arrival order")
	}
	if reports[0].State != TurnStateAborted {
		t.Fatalf("expected superseded turn to abort, got %s", reports[0].State)
	}
	if reports[1].State != TurnStateDone {
		t.Fatalf("expected latest turn to complete, got %s", reports[1].State)
	}

	found := false
	for _, entry := range o.Session().Memory.Entries() {
		if entry.Tagged(perceptionMetadataKey, first.ID) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the superseded perception to stay remembered")
	}
}

func TestOrchestrateEmitsEvents(t *testing.T) {
	defer goleak.VerifyNone(t)

	oracle := newOracleStub()
	o, _ := newTestOrchestrator(oracle, newRecordingSink())
	defer o.Close()

	var mu sync.Mutex
	var kinds []events.Kind
	var fragments []string
	done := make(chan struct{})
	o.Orchestrate(context.Background(),
		WithEventCallback(func(event events.Event) {
			mu.Lock()
			kinds = append(kinds, event.Kind())
			mu.Unlock()
		}),
		WithFragmentCallback(func(_ string, _ int, text string) {
			mu.Lock()
			fragments = append(fragments, text)
			mu.Unlock()
		}),
		WithTurnEndCallback(func(TurnReport) { close(done) }),
	)
	o.Perceive(objectAdded())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for turn to finish")
	}

	mu.Lock()
	defer mu.Unlock()
	for _, kind := range []events.Kind{
		events.KindPerceptionReceived,
		events.KindTurnStarted,
		events.KindTurnStateChanged,
		events.KindAssistantFragment,
		events.KindTurnCompleted,
	} {
		if !slices.Contains(kinds, kind) {
			t.Fatalf("expected %s event, got %v", kind, kinds)
		}
	}
	if !slices.Equal(fragments, []string{"first 0"}) {
		t.Fatalf("unexpected fragment callbacks: %v", fragments)
	}
}

func TestContextCancellationClosesOrchestrator(t *testing.T) {
	defer goleak.VerifyNone(t)

	o := NewOrchestrator(WithOracle(newOracleStub()))
	ctx, cancel := context.WithCancel(context.Background())
	o.Orchestrate(ctx)

	cancel()
	waitForCondition(t, 2*time.Second, "orchestrator to close", o.runtime.isClosed)
	o.Close()
}

func TestCloseStopsWaitingTurn(t *testing.T) {
	defer goleak.VerifyNone(t)

	oracle := newOracleStub()
	oracle.answers[kindCount] = []string{"3"}
	sink := newRecordingSink()
	o := NewOrchestrator(WithOracle(oracle), WithDispatchSink(sink))

	reports := make(chan TurnReport, 1)
	o.Orchestrate(context.Background(), WithTurnEndCallback(func(report TurnReport) { reports <- report }))
	o.Perceive(objectAdded())

	waitForCondition(t, 2*time.Second, "first fragment", func() bool { return len(sink.fragments()) == 1 })
	o.Close()

	select {
	case report := <-reports:
		if report.State != TurnStateAborted {
			t.Fatalf("expected the waiting turn to abort, got %s", report.State)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for turn to stop")
	}
}
