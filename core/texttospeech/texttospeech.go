// Package texttospeech defines how fragments of text are turned into
// playable audio.
//
// A Synthesizer does not hand audio back directly. It returns an AudioRef,
// an opaque reference that an AudioSource can later open as a stream. This
// lets the speaking side dispatch the reference immediately while the
// listening side loads the audio at its own pace.
package texttospeech

import (
	"context"
	"errors"
	"io"
)

// AudioRef references synthesized audio. It is either a provider URL or a
// clip stored in a ClipStore.
type AudioRef string

func (r AudioRef) String() string { return string(r) }

var ErrUnknownAudioRef = errors.New("unknown audio reference")

type Synthesizer interface {
	Synthesize(ctx context.Context, text string, opts ...TextToSpeechOption) (AudioRef, error)
}

type AudioSource interface {
	Open(ctx context.Context, ref AudioRef) (io.ReadCloser, error)
}

// Provider synthesizes audio and serves it back by reference.
type Provider interface {
	Synthesizer
	AudioSource
}
