package transport

import (
	"encoding/json"
	"fmt"
	"net/url"

	orchestration "github.com/koscakluka/ema-room/core"
	"github.com/koscakluka/ema-room/core/texttospeech"
)

const (
	WebSocketPath = "/ws"
	AudioPath     = "/audio"
	HealthPath    = "/healthz"

	ClientIDParam = "client_id"
	AudioRefParam = "url"
)

type FrameKind string

const (
	FrameText       FrameKind = "text"
	FrameAudio      FrameKind = "audio"
	FrameAudioError FrameKind = "audioError"
	FrameError      FrameKind = "error"
	FrameUnknown    FrameKind = "unknown"
)

// Frame is everything the server sends to a client. Exactly one of Text,
// Audio, AudioError and Error is set.
type Frame struct {
	Text string `json:"text,omitempty"`
	// Audio is the path, relative to the server, the clip can be loaded
	// from.
	Audio      string `json:"audio,omitempty"`
	AudioError string `json:"audioError,omitempty"`
	Error      string `json:"error,omitempty"`

	Turn     string `json:"turn,omitempty"`
	Sequence int    `json:"sequence"`
	// Speech is set on text frames whose audio will follow.
	Speech bool `json:"speech,omitempty"`
}

func (f Frame) Kind() FrameKind {
	switch {
	case f.Text != "":
		return FrameText
	case f.Audio != "":
		return FrameAudio
	case f.AudioError != "":
		return FrameAudioError
	case f.Error != "":
		return FrameError
	default:
		return FrameUnknown
	}
}

func TextFrame(fragment orchestration.Fragment) Frame {
	return Frame{
		Text:     fragment.Text,
		Turn:     fragment.TurnID,
		Sequence: fragment.Sequence,
		Speech:   fragment.Spoken,
	}
}

func AudioFrame(fragment orchestration.Fragment, ref texttospeech.AudioRef) Frame {
	return Frame{Audio: AudioURL(ref), Turn: fragment.TurnID, Sequence: fragment.Sequence}
}

func AudioErrorFrame(fragment orchestration.Fragment, err error) Frame {
	return Frame{AudioError: err.Error(), Turn: fragment.TurnID, Sequence: fragment.Sequence}
}

func ErrorFrame(err error) Frame {
	return Frame{Error: err.Error()}
}

// AudioURL is the server path a clip is served under.
func AudioURL(ref texttospeech.AudioRef) string {
	return fmt.Sprintf("%s?%s=%s", AudioPath, AudioRefParam, url.QueryEscape(ref.String()))
}

func ParseFrame(data []byte) (Frame, error) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Frame{}, fmt.Errorf("failed to unmarshal frame: %w", err)
	}
	return frame, nil
}
