package planner

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/koscakluka/ema-room/core/memory"
)

type deciderStub struct {
	answers []string
	err     error

	prompts [][]string
}

func (d *deciderStub) Decide(_ context.Context, _ memory.WorkingMemory, prompt string, choices []string) (string, error) {
	d.prompts = append(d.prompts, append([]string{prompt}, choices...))
	if d.err != nil {
		return "", d.err
	}
	if len(d.answers) == 0 {
		return "", nil
	}
	answer := d.answers[0]
	d.answers = d.answers[1:]
	return answer, nil
}

func TestParseFragmentCount(t *testing.T) {
	cases := map[string]int{
		"0":        0,
		"3":        3,
		"5":        5,
		"7":        5,
		"-1":       0,
		"abc":      0,
		"":         0,
		" 2 ":      2,
		`"4"`:      4,
		"2 pieces": 2,
	}

	for answer, expected := range cases {
		if got := ParseFragmentCount(answer); got != expected {
			t.Fatalf("expected %q to map to %d, got %d", answer, expected, got)
		}
	}

	if got := ParseFragmentCount("99999999999999999999999"); got != MaxFragmentCount {
		t.Fatalf("expected overflowing answer to clamp to %d, got %d", MaxFragmentCount, got)
	}
}

func TestParseLengthClass(t *testing.T) {
	cases := map[string]LengthClass{
		"very long": LengthVeryLong,
		"very_long": LengthVeryLong,
		"Long":      LengthLong,
		"medium.":   LengthMedium,
		"short":     LengthShort,
		"gigantic":  LengthShort,
	}

	for answer, expected := range cases {
		if got := ParseLengthClass(answer); got != expected {
			t.Fatalf("expected %q to map to %q, got %q", answer, expected, got)
		}
	}
}

func TestLengthClassTiming(t *testing.T) {
	cases := []struct {
		class LengthClass
		wait  time.Duration
		words int
	}{
		{LengthShort, time.Second, 10},
		{LengthMedium, 2 * time.Second, 20},
		{LengthLong, 4 * time.Second, 40},
		{LengthVeryLong, 6 * time.Second, 60},
	}

	for _, c := range cases {
		if c.class.Wait() != c.wait {
			t.Fatalf("expected %q to wait %s, got %s", c.class, c.wait, c.class.Wait())
		}
		if c.class.TargetWords() != c.words {
			t.Fatalf("expected %q to target %d words, got %d", c.class, c.words, c.class.TargetWords())
		}
	}
}

func TestFragmentCountClampsOracleAnswer(t *testing.T) {
	decider := &deciderStub{answers: []string{"7"}}
	p := New(decider, "Milton")

	count, err := p.FragmentCount(context.Background(), memory.New("Milton"), 2)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if count != 5 {
		t.Fatalf("expected clamped count 5, got %d", count)
	}

	prompt := decider.prompts[0]
	if !slices.Equal(prompt[1:], countChoices) {
		t.Fatalf("expected count choices, got %v", prompt[1:])
	}
}

func TestFragmentCountDefaultsOnOracleFailure(t *testing.T) {
	oracleErr := errors.New("boom")
	p := New(&deciderStub{err: oracleErr}, "Milton")

	count, err := p.FragmentCount(context.Background(), memory.New("Milton"), 0)
	if !errors.Is(err, oracleErr) {
		t.Fatalf("expected oracle error, got %v", err)
	}
	if count != DefaultFragmentCount {
		t.Fatalf("expected default count, got %d", count)
	}
}

func TestFragmentLengthDefaultsToShort(t *testing.T) {
	p := New(&deciderStub{answers: []string{"enormous"}}, "Milton")

	length, err := p.FragmentLength(context.Background(), memory.New("Milton"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if length != LengthShort {
		t.Fatalf("expected short, got %q", length)
	}
}

func TestNeedsConclusion(t *testing.T) {
	p := New(&deciderStub{answers: []string{"Yes", "maybe"}}, "Milton")

	first, _ := p.NeedsConclusion(context.Background(), memory.New("Milton"))
	second, _ := p.NeedsConclusion(context.Background(), memory.New("Milton"))
	if !first {
		t.Fatalf("expected yes to mean conclusion")
	}
	if second {
		t.Fatalf("expected unknown answer to mean no conclusion")
	}
}

func TestPlannerWithoutDeciderFails(t *testing.T) {
	p := New(nil, "Milton")
	if _, err := p.NeedsConclusion(context.Background(), memory.New("Milton")); err == nil {
		t.Fatalf("expected error without decider")
	}
}
