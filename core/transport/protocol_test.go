package transport

import (
	"errors"
	"testing"

	orchestration "github.com/koscakluka/ema-room/core"
)

func TestFrameKinds(t *testing.T) {
	fragment := orchestration.Fragment{TurnID: "turn-1", Sequence: 2, Text: "hi", Spoken: true}

	cases := map[FrameKind]Frame{
		FrameText:       TextFrame(fragment),
		FrameAudio:      AudioFrame(fragment, "clip:1"),
		FrameAudioError: AudioErrorFrame(fragment, errors.New("boom")),
		FrameError:      ErrorFrame(errors.New("bad")),
		FrameUnknown:    {},
	}
	for kind, frame := range cases {
		if frame.Kind() != kind {
			t.Fatalf("expected %s, got %s", kind, frame.Kind())
		}
	}
}

func TestTextFrameCarriesFragmentIdentity(t *testing.T) {
	frame := TextFrame(orchestration.Fragment{TurnID: "turn-1", Sequence: 3, Text: "hi", Spoken: true})

	if frame.Turn != "turn-1" || frame.Sequence != 3 || !frame.Speech {
		t.Fatalf("unexpected frame %#v", frame)
	}
}

func TestParseFrameRejectsGarbage(t *testing.T) {
	if _, err := ParseFrame([]byte("not json")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestAudioURLEscapesReference(t *testing.T) {
	got := AudioURL("https://example.com/a b?x=1")
	expected := "/audio?url=https%3A%2F%2Fexample.com%2Fa+b%3Fx%3D1"
	if got != expected {
		t.Fatalf("expected %q, got %q", expected, got)
	}
}
