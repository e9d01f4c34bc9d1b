package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/hvoss-dev/calvoice-core/core/audio"
)

// playbackResource plays one fixed payload on its own malgo device. The
// device is released exactly once, on Close, whichever path gets there
// first.
type playbackResource struct {
	device *malgo.Device

	mu      sync.Mutex
	payload []byte
	offset  int

	done      chan struct{}
	doneOnce  sync.Once
	closeOnce sync.Once
}

func openPlayback(audioContext *malgo.AllocatedContext, payload []byte) (audio.Playback, error) {
	resource := &playbackResource{
		payload: payload,
		done:    make(chan struct{}),
	}

	sampleRate := uint32(audio.DefaultSampleRate)
	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.SampleRate = sampleRate
	config.Playback.Format = format
	config.Playback.Channels = uint32(channels)
	config.Alsa.NoMMap = 1
	config.PeriodSizeInFrames = sampleRate / 10 // ~100ms of audio
	config.Periods = 4

	device, err := malgo.InitDevice(audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, frameCount uint32) {
			resource.fill(pOutput, int(frameCount)*bytesPerFrame)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize playback device: %w", err)
	}
	resource.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("failed to start playback device: %w", err)
	}

	return resource, nil
}

func (r *playbackResource) fill(out []byte, n int) {
	r.mu.Lock()
	remaining := len(r.payload) - r.offset
	if remaining > n {
		remaining = n
	}
	if remaining > 0 {
		copy(out, r.payload[r.offset:r.offset+remaining])
		r.offset += remaining
	}
	exhausted := r.offset >= len(r.payload)
	r.mu.Unlock()

	for i := remaining; i < n && i < len(out); i++ {
		out[i] = 0
	}

	if exhausted {
		r.doneOnce.Do(func() { close(r.done) })
	}
}

func (r *playbackResource) Done() <-chan struct{} {
	return r.done
}

func (r *playbackResource) Close() error {
	r.closeOnce.Do(func() {
		r.doneOnce.Do(func() { close(r.done) })
		r.device.Uninit()
	})
	return nil
}
