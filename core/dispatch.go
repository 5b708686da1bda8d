package orchestration

import (
	"context"

	"github.com/koscakluka/ema-room/core/planner"
	"github.com/koscakluka/ema-room/core/texttospeech"
)

// Fragment is a single piece of speech produced by a turn. Sequence starts
// at 0 for every turn and grows by one for each dispatched fragment.
type Fragment struct {
	TurnID   string
	Sequence int
	Text     string
	// Length is the planned length class, empty for the first fragment and
	// the conclusion.
	Length planner.LengthClass
	// Spoken is set when audio for the fragment will follow the text.
	Spoken bool
}

// DispatchSink receives everything a session sends to its client.
//
// EmitText is called on the turn's goroutine, in sequence order. The audio
// methods are called from speech workers and may arrive in any order.
type DispatchSink interface {
	EmitText(ctx context.Context, fragment Fragment) error
	EmitAudio(ctx context.Context, fragment Fragment, ref texttospeech.AudioRef) error
	EmitAudioFailure(ctx context.Context, fragment Fragment, err error) error
}

// DispatchFuncs adapts plain functions to a DispatchSink. Nil functions are
// skipped.
type DispatchFuncs struct {
	OnText         func(ctx context.Context, fragment Fragment) error
	OnAudio        func(ctx context.Context, fragment Fragment, ref texttospeech.AudioRef) error
	OnAudioFailure func(ctx context.Context, fragment Fragment, err error) error
}

func (d DispatchFuncs) EmitText(ctx context.Context, fragment Fragment) error {
	if d.OnText == nil {
		return nil
	}
	return d.OnText(ctx, fragment)
}

func (d DispatchFuncs) EmitAudio(ctx context.Context, fragment Fragment, ref texttospeech.AudioRef) error {
	if d.OnAudio == nil {
		return nil
	}
	return d.OnAudio(ctx, fragment, ref)
}

func (d DispatchFuncs) EmitAudioFailure(ctx context.Context, fragment Fragment, err error) error {
	if d.OnAudioFailure == nil {
		return nil
	}
	return d.OnAudioFailure(ctx, fragment, err)
}
