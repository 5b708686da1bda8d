package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/ema-room/core/memory"
	"github.com/koscakluka/ema-room/core/texttospeech"
)

const (
	kindChange     = "change"
	kindMonologue  = "monologue"
	kindFirst      = "first"
	kindNext       = "next"
	kindConclusion = "conclusion"
	kindLearned    = "learned"
	kindSummary    = "summary"

	kindCount  = "count"
	kindLength = "length"
	kindFinish = "finish"
)

func instructionKind(instruction string) string {
	switch {
	case strings.Contains(instruction, "Name the thing that changed"):
		return kindChange
	case strings.Contains(instruction, "thinks about what just happened"):
		return kindMonologue
	case strings.Contains(instruction, "hinting at a larger conversation"):
		return kindFirst
	case strings.Contains(instruction, "shares another thought fragment"):
		return kindNext
	case strings.Contains(instruction, "concludes their last thought"):
		return kindConclusion
	case strings.Contains(instruction, "learned so far"):
		return kindLearned
	case strings.Contains(instruction, "## Existing notes"):
		return kindSummary
	case strings.HasPrefix(instruction, "How many"):
		return kindCount
	case strings.HasPrefix(instruction, "How long"):
		return kindLength
	default:
		return kindFinish
	}
}

type generateCall struct {
	kind        string
	instruction string
	memory      memory.WorkingMemory
}

type oracleStub struct {
	mu sync.Mutex

	description string
	describeErr error
	// generateErrs fails generation of the given instruction kinds.
	generateErrs map[string]error
	decideErrs   map[string]error
	// answers are consumed in order per decision kind. Missing answers
	// are returned as an empty string.
	answers map[string][]string

	// onGenerate runs before a generation call returns.
	onGenerate func(kind string)

	generated     map[string]int
	generateCalls []generateCall
	decideCalls   []string
	describeCalls int
}

func newOracleStub() *oracleStub {
	return &oracleStub{
		description:  "a lamp in the corner",
		generateErrs: map[string]error{},
		decideErrs:   map[string]error{},
		answers:      map[string][]string{},
		generated:    map[string]int{},
	}
}

func (s *oracleStub) Generate(_ context.Context, mem memory.WorkingMemory, instruction string) (string, error) {
	kind := instructionKind(instruction)

	s.mu.Lock()
	s.generateCalls = append(s.generateCalls, generateCall{kind: kind, instruction: instruction, memory: mem})
	n := s.generated[kind]
	s.generated[kind]++
	err := s.generateErrs[kind]
	hook := s.onGenerate
	s.mu.Unlock()

	if hook != nil {
		hook(kind)
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %d", kind, n), nil
}

func (s *oracleStub) Decide(_ context.Context, _ memory.WorkingMemory, prompt string, _ []string) (string, error) {
	kind := instructionKind(prompt)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.decideCalls = append(s.decideCalls, kind)
	if err := s.decideErrs[kind]; err != nil {
		return "", err
	}
	answers := s.answers[kind]
	if len(answers) == 0 {
		return "", nil
	}
	s.answers[kind] = answers[1:]
	return answers[0], nil
}

func (s *oracleStub) Describe(context.Context, string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.describeCalls++
	return s.description, s.describeErr
}

func (s *oracleStub) calls(kind string) []generateCall {
	s.mu.Lock()
	defer s.mu.Unlock()

	var calls []generateCall
	for _, call := range s.generateCalls {
		if call.kind == kind {
			calls = append(calls, call)
		}
	}
	return calls
}

func (s *oracleStub) totalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.generateCalls) + len(s.decideCalls) + s.describeCalls
}

type recordingSink struct {
	mu sync.Mutex

	textErr error
	onText  func(Fragment)

	texts         []Fragment
	audio         map[int]texttospeech.AudioRef
	audioFailures map[int]error
	audioDone     chan int
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		audio:         map[int]texttospeech.AudioRef{},
		audioFailures: map[int]error{},
		audioDone:     make(chan int, 16),
	}
}

func (s *recordingSink) EmitText(_ context.Context, fragment Fragment) error {
	s.mu.Lock()
	if s.textErr != nil {
		s.mu.Unlock()
		return s.textErr
	}
	s.texts = append(s.texts, fragment)
	hook := s.onText
	s.mu.Unlock()

	if hook != nil {
		hook(fragment)
	}
	return nil
}

func (s *recordingSink) EmitAudio(_ context.Context, fragment Fragment, ref texttospeech.AudioRef) error {
	s.mu.Lock()
	s.audio[fragment.Sequence] = ref
	s.mu.Unlock()
	s.audioDone <- fragment.Sequence
	return nil
}

func (s *recordingSink) EmitAudioFailure(_ context.Context, fragment Fragment, err error) error {
	s.mu.Lock()
	s.audioFailures[fragment.Sequence] = err
	s.mu.Unlock()
	s.audioDone <- fragment.Sequence
	return nil
}

func (s *recordingSink) fragments() []Fragment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Fragment(nil), s.texts...)
}

type synthesizerStub struct {
	mu    sync.Mutex
	err   error
	texts []string
}

func (s *synthesizerStub) Synthesize(_ context.Context, text string, _ ...texttospeech.TextToSpeechOption) (texttospeech.AudioRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	if s.err != nil {
		return "", s.err
	}
	return texttospeech.AudioRef(fmt.Sprintf("clip:%d", len(s.texts))), nil
}

type waitRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (w *waitRecorder) wait(ctx context.Context, d time.Duration) error {
	w.mu.Lock()
	w.waits = append(w.waits, d)
	w.mu.Unlock()
	return ctx.Err()
}

func (w *waitRecorder) recorded() []time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]time.Duration(nil), w.waits...)
}

var errOracle = errors.New("oracle unavailable")

func newTestOrchestrator(oracle *oracleStub, sink *recordingSink, opts ...OrchestratorOption) (*Orchestrator, *waitRecorder) {
	o := NewOrchestrator(append([]OrchestratorOption{WithOracle(oracle), WithDispatchSink(sink)}, opts...)...)
	waits := &waitRecorder{}
	o.wait = waits.wait
	return o, waits
}

func waitForCondition(t *testing.T, timeout time.Duration, description string, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %s", description)
}
