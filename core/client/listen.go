package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/koscakluka/ema-room/core/audio"
	"github.com/koscakluka/ema-room/core/speechtotext"
)

// AudioCapture is a source of raw audio, usually a microphone.
type AudioCapture interface {
	Start(onAudio func(chunk []byte)) error
	Stop() error
}

// Listening transcribes speech into the room.
type Listening struct {
	capture     AudioCapture
	transcriber speechtotext.Transcriber
}

// Listen sends every utterance heard through capture to the room as a
// message. Interim transcripts and what was sent are reported to feed.
func Listen(ctx context.Context, capture AudioCapture, transcriber speechtotext.Transcriber, encoding audio.EncodingInfo, sender Sender, feed *Feed) (*Listening, error) {
	err := transcriber.Transcribe(ctx,
		speechtotext.WithEncodingInfo(encoding),
		speechtotext.WithInterimTranscriptionCallback(feed.Hearing),
		speechtotext.WithTranscriptionCallback(func(transcript string) {
			if err := sender.SendMessage(transcript); err != nil {
				feed.Error(fmt.Errorf("failed to send what was heard: %w", err))
				return
			}
			feed.Heard(transcript)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start transcribing: %w", err)
	}

	err = capture.Start(func(chunk []byte) {
		if err := transcriber.SendAudio(chunk); err != nil {
			logger.Debug("dropping captured audio", "error", err)
		}
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to start capturing: %w", err), transcriber.Close())
	}

	return &Listening{capture: capture, transcriber: transcriber}, nil
}

// Stop stops capturing and waits for the last utterance to be sent.
func (l *Listening) Stop() error {
	return errors.Join(l.capture.Stop(), l.transcriber.Close())
}
