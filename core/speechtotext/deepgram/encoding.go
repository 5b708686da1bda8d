package deepgram

import (
	"fmt"

	"github.com/koscakluka/ema-room/core/audio"
)

// listenEncoding is the encoding as the listen endpoint names it.
type listenEncoding struct {
	sampleRate int
	name       string
}

func convertEncoding(encoding audio.EncodingInfo) (listenEncoding, error) {
	switch encoding.SampleRate {
	case 8000, 16000, 24000, 32000, 48000:
	default:
		return listenEncoding{}, fmt.Errorf("unsupported sample rate %d", encoding.SampleRate)
	}

	switch encoding.Format {
	case audio.EncodingLinear16:
	case audio.EncodingALaw, audio.EncodingMulaw:
		if encoding.SampleRate != 8000 {
			return listenEncoding{}, fmt.Errorf("unsupported sample rate %d for %s encoding", encoding.SampleRate, encoding.Format.Name())
		}
	default:
		return listenEncoding{}, fmt.Errorf("unsupported encoding %q", encoding.Format.Name())
	}

	return listenEncoding{sampleRate: encoding.SampleRate, name: encoding.Format.Name()}, nil
}
