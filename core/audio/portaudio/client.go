package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	"github.com/gordonklaus/portaudio"

	"github.com/hvoss-dev/calvoice-core/core/audio"
)

// Client is a portaudio-backed capture device.
type Client struct {
	bufferSize int
	stream     *portaudio.Stream

	in []int16
}

func NewClient(bufferSize int) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	in := make([]int16, bufferSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, audio.DefaultSampleRate, bufferSize, in)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open portaudio stream: %w", err)
	}

	return &Client{
		bufferSize: bufferSize,
		stream:     stream,
		in:         in,
	}, nil
}

// Stream reads microphone frames until ctx is cancelled, forwarding each
// buffer as little-endian 16-bit PCM.
func (c *Client) Stream(ctx context.Context, onAudio func(audio []byte)) error {
	if err := c.stream.Start(); err != nil {
		return fmt.Errorf("failed to start portaudio stream: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			if err := c.stream.Stop(); err != nil {
				return fmt.Errorf("failed to stop portaudio stream: %w", err)
			}
			return nil
		default:
			if err := c.stream.Read(); err != nil {
				return fmt.Errorf("failed to read from portaudio stream: %w", err)
			}

			audioBuffer := bytes.Buffer{}
			binary.Write(&audioBuffer, binary.LittleEndian, c.in)
			onAudio(audioBuffer.Bytes())
		}
	}
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: audio.DefaultSampleRate,
		Format:     audio.FormatLinear16,
	}
}

func (c *Client) Close() {
	c.stream.Close()
	portaudio.Terminate()
}
