// Package planner decides the shape of a multi-fragment reply: how many
// additional fragments to speak, how long each one should be and whether the
// last thought needs a conclusion.
//
// Every decision is delegated to a decision oracle and then mapped through a
// total function, so no answer from the oracle can leave the allowed domain.
package planner

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/koscakluka/ema-room/core/llms"
	"github.com/koscakluka/ema-room/core/memory"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	MaxFragmentCount     = 5
	DefaultFragmentCount = 0
)

var (
	countChoices = []string{"5", "4", "3", "2", "1", "0"}
	yesNoChoices = []string{"yes", "no"}
)

type Planner struct {
	decider  llms.Decider
	soulName string
}

func New(decider llms.Decider, soulName string) *Planner {
	return &Planner{decider: decider, soulName: soulName}
}

// FragmentCount asks how many fragments should follow the first one. The
// result is always within [0, MaxFragmentCount]. When the oracle fails the
// default count is returned together with the error.
func (p *Planner) FragmentCount(ctx context.Context, mem memory.WorkingMemory, previous int) (int, error) {
	ctx, span := tracer.Start(ctx, "plan fragment count")
	defer span.End()

	prompt := fmt.Sprintf(""+
		"How many additional conversational pieces will %s want to express next?\n"+
		"Vary the number of pieces for a natural flow.\n"+
		"The last conversation involved %d pieces.\n"+
		"Typically, expect 0. Occasionally, 1 or perhaps 2-5 pieces.",
		p.soulName, previous)

	answer, err := p.decide(ctx, mem, prompt, countChoices)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return DefaultFragmentCount, err
	}

	count := ParseFragmentCount(answer)
	span.SetAttributes(
		attribute.String("planner.answer", answer),
		attribute.Int("planner.fragment_count", count),
	)
	return count, nil
}

// FragmentLength asks how long the next fragment should be. Unknown answers
// and oracle failures yield LengthShort.
func (p *Planner) FragmentLength(ctx context.Context, mem memory.WorkingMemory) (LengthClass, error) {
	ctx, span := tracer.Start(ctx, "plan fragment length")
	defer span.End()

	answer, err := p.decide(ctx, mem, "How long should the next conversational piece be?", lengthChoices())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return LengthShort, err
	}

	length := ParseLengthClass(answer)
	span.SetAttributes(attribute.String("planner.fragment_length", length.String()))
	return length, nil
}

// NeedsConclusion asks whether the last thought needs a concluding fragment.
// Only an explicit yes counts as yes.
func (p *Planner) NeedsConclusion(ctx context.Context, mem memory.WorkingMemory) (bool, error) {
	ctx, span := tracer.Start(ctx, "plan conclusion")
	defer span.End()

	prompt := fmt.Sprintf("Does %s need to add another piece to conclude their last thought?", p.soulName)
	answer, err := p.decide(ctx, mem, prompt, yesNoChoices)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	conclude := ParseYesNo(answer)
	span.SetAttributes(attribute.Bool("planner.needs_conclusion", conclude))
	return conclude, nil
}

func (p *Planner) decide(ctx context.Context, mem memory.WorkingMemory, prompt string, choices []string) (string, error) {
	if p == nil || p.decider == nil {
		return "", fmt.Errorf("no decision oracle configured")
	}

	answer, err := p.decider.Decide(ctx, mem, prompt, choices)
	if err != nil {
		return "", fmt.Errorf("failed to decide: %w", err)
	}
	return answer, nil
}

// ParseFragmentCount maps an oracle answer onto a fragment count. The first
// integer in the answer is used and clamped into [0, MaxFragmentCount];
// answers without a number yield DefaultFragmentCount.
func ParseFragmentCount(answer string) int {
	number := leadingInteger(strings.TrimSpace(answer))
	if number == "" {
		return DefaultFragmentCount
	}

	count, err := strconv.Atoi(number)
	if err != nil {
		// Only overflow gets here, the sign decides which bound applies.
		if strings.HasPrefix(number, "-") {
			return 0
		}
		return MaxFragmentCount
	}

	return min(max(count, 0), MaxFragmentCount)
}

func leadingInteger(s string) string {
	start := strings.IndexFunc(s, func(r rune) bool { return r >= '0' && r <= '9' })
	if start < 0 {
		return ""
	}
	end := start
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if start > 0 && s[start-1] == '-' {
		start--
	}
	return s[start:end]
}

func ParseYesNo(answer string) bool {
	normalised := strings.ToLower(strings.Trim(strings.TrimSpace(answer), `"'.!`))
	return normalised == "yes"
}
