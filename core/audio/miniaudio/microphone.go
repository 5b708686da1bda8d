package miniaudio

import (
	"fmt"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-room/core/audio"
)

// Microphone captures mono linear16 audio from the default input device.
type Microphone struct {
	audioContext *malgo.AllocatedContext
	captureClient
	encodingInfo audio.EncodingInfo
}

func NewMicrophone(encodingInfo audio.EncodingInfo) (*Microphone, error) {
	if encodingInfo.IsZero() {
		encodingInfo = audio.NewEncodingInfo(audio.DefaultSampleRate)
	}
	if encodingInfo.Format != audio.EncodingLinear16 {
		return nil, fmt.Errorf("unsupported encoding %q", encodingInfo.Format)
	}

	audioCtx, err := initContext()
	if err != nil {
		return nil, err
	}

	mic := Microphone{
		audioContext: audioCtx,
		encodingInfo: encodingInfo,
	}
	if err := mic.captureClient.Init(audioCtx, encodingInfo.SampleRate); err != nil {
		mic.Close()
		return nil, fmt.Errorf("failed to initialize capture client: %w", err)
	}

	return &mic, nil
}

func (m *Microphone) Close() {
	_ = m.captureClient.Uninit()
	_ = m.audioContext.Uninit()
	m.audioContext.Free()
}

func (m *Microphone) EncodingInfo() audio.EncodingInfo {
	return m.encodingInfo
}
