// Package miniaudio plays clips on the default output device and captures
// the default input device.
package miniaudio

import (
	"context"
	"fmt"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-room/core/audio"
	"github.com/koscakluka/ema-room/core/playback"
)

type Client struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext
	playbackClient
	encodingInfo audio.EncodingInfo
}

func NewClient(encodingInfo audio.EncodingInfo) (*Client, error) {
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

	client := Client{
		audioContext: audioCtx,
		encodingInfo: encodingInfo,
	}

	if err := client.playbackClient.Init(audioCtx, encodingInfo.SampleRate); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize playback client: %w", err)
	}

	if err := client.playbackClient.Start(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to start playback device: %w", err)
	}

	return &client, nil
}

// Play queues the clip on the output device and returns once the device
// played past its end. Cancelling ctx clears whatever is still buffered.
func (c *Client) Play(ctx context.Context, clip playback.Clip) error {
	if err := c.playbackClient.SendAudio(clip.Audio); err != nil {
		return fmt.Errorf("failed to queue clip %s: %w", clip.Key, err)
	}

	played := make(chan struct{})
	if err := c.playbackClient.Mark(clip.Key.String(), func(string) { close(played) }); err != nil {
		return fmt.Errorf("failed to mark clip %s: %w", clip.Key, err)
	}

	select {
	case <-played:
		return nil
	case <-ctx.Done():
		c.playbackClient.ClearBuffer()
		return ctx.Err()
	}
}

func (c *Client) Close() {
	_ = c.playbackClient.Uninit()
	_ = c.audioContext.Uninit()
	c.audioContext.Free()
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return c.encodingInfo
}

func initContext() (*malgo.AllocatedContext, error) {
	audioCtx, err := malgo.InitContext(
		nil,
		malgo.ContextConfig{},
		func(message string) { logger.Debug("malgo", "message", message) },
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}
	return audioCtx, nil
}
