package miniaudio

import (
	"context"
	"fmt"

	"github.com/gen2brain/malgo"

	"github.com/hvoss-dev/calvoice-core/core/audio"
)

// Client owns the shared miniaudio context used by the capture and playback
// devices. One Client per process is enough.
type Client struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext
	captureClient
}

func NewClient() (*Client, error) {
	audioCtx, err := malgo.InitContext(
		nil,
		malgo.ContextConfig{},
		func(message string) {},
	)
	if err != nil {
		return nil, fmt.Errorf("malgo InitContext failed: %w", err)
	}

	client := Client{audioContext: audioCtx}
	client.captureClient.audioContext = audioCtx

	return &client, nil
}

// Stream captures microphone frames until ctx is cancelled.
func (c *Client) Stream(ctx context.Context, onAudio func(audio []byte)) error {
	if err := c.captureClient.Start(onAudio); err != nil {
		return err
	}

	<-ctx.Done()
	return c.captureClient.Stop()
}

// Open starts playing payload on a dedicated playback device and hands back
// the resource owning it.
func (c *Client) Open(payload []byte) (audio.Playback, error) {
	return openPlayback(c.audioContext, payload)
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: audio.DefaultSampleRate,
		Format:     audio.FormatLinear16,
	}
}

func (c *Client) Close() {
	_ = c.captureClient.Uninit()
	_ = c.audioContext.Uninit()
	c.audioContext.Free()
}
