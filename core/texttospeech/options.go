package texttospeech

import "github.com/koscakluka/ema-room/core/audio"

type TextToSpeechOptions struct {
	// Voice overrides the provider's configured voice for a single request.
	Voice string
	// Speed is the speaking rate, 1 is the provider default.
	Speed float64

	EncodingInfo audio.EncodingInfo
}

type TextToSpeechOption func(*TextToSpeechOptions)

func WithVoice(voice string) TextToSpeechOption {
	return func(o *TextToSpeechOptions) { o.Voice = voice }
}

func WithSpeed(speed float64) TextToSpeechOption {
	return func(o *TextToSpeechOptions) {
		if speed <= 0 {
			return
		}
		o.Speed = speed
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TextToSpeechOption {
	return func(o *TextToSpeechOptions) {
		if encodingInfo.IsZero() {
			// TODO: Issue warning
			return
		}

		o.EncodingInfo = encodingInfo
	}
}

// DefaultOptions returns options with opts applied on top of the defaults.
func DefaultOptions(opts ...TextToSpeechOption) TextToSpeechOptions {
	options := TextToSpeechOptions{
		Speed:        1,
		EncodingInfo: audio.GetDefaultEncodingInfo(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
