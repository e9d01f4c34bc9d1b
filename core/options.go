package voiceclient

import (
	"context"
	"time"

	"github.com/hvoss-dev/calvoice-core/core/audio"
	"github.com/hvoss-dev/calvoice-core/core/calendar"
	"github.com/hvoss-dev/calvoice-core/core/speech"
)

type ClientOption func(*Client)

// Recognizer is the capture-side port: a speech recognition capability the
// session controller drives through callbacks.
type Recognizer interface {
	Transcribe(ctx context.Context, opts ...speech.TranscriptionOption) error
	SendAudio(audio []byte) error
}

// CaptureDevice produces raw audio frames from a microphone or equivalent.
type CaptureDevice interface {
	Stream(ctx context.Context, onAudio func(audio []byte)) error
	EncodingInfo() audio.EncodingInfo
}

func WithRecognizer(client Recognizer) ClientOption {
	return func(c *Client) {
		c.recognizer = client
	}
}

func WithCaptureDevice(device CaptureDevice) ClientOption {
	return func(c *Client) {
		c.captureDevice = device
	}
}

func WithAgentClient(client AgentCaller) ClientOption {
	return func(c *Client) {
		c.agent = client
	}
}

func WithSynthesizer(client Synthesizer) ClientOption {
	return func(c *Client) {
		c.synthesizer = client
	}
}

func WithPlaybackEngine(engine PlaybackEngine) ClientOption {
	return func(c *Client) {
		c.playback.setEngine(engine)
	}
}

// WithCalendarEngine wires the sync engine whose cache is refreshed after
// every successful agent exchange.
func WithCalendarEngine(engine *calendar.Engine) ClientOption {
	return func(c *Client) {
		c.refresher = engine
	}
}

func WithDispatchTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.dispatchTimeout = timeout
		}
	}
}

func WithMessageCallback(callback func(message ChatMessage)) ClientOption {
	return func(c *Client) {
		c.log.SetAppendCallback(callback)
	}
}

func WithSessionStateCallback(callback func(state SessionState)) ClientOption {
	return func(c *Client) {
		c.session.setChangeCallback(callback)
	}
}

// WithNoticeCallback receives transient user-visible diagnostics: capture
// errors and synthesis transport failures.
func WithNoticeCallback(callback func(text string)) ClientOption {
	return func(c *Client) {
		c.onNotice = callback
	}
}

func WithPlaybackEndedCallback(callback func()) ClientOption {
	return func(c *Client) {
		c.playback.setPlaybackEndedCallback(callback)
	}
}

func WithInterimTranscriptCallback(callback func(transcript string)) ClientOption {
	return func(c *Client) {
		c.onInterimTranscript = callback
	}
}
