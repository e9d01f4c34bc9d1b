package voiceclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hvoss-dev/calvoice-core/core/speech"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Client coordinates the real-time voice pipeline: speech capture, the agent
// exchange, chunked speech synthesis, playback and the event cache refreshes
// the exchanges imply. Construct one per process and reuse it; session state
// is process-wide.
type Client struct {
	baseContext context.Context
	closeOnce   sync.Once
	cancelBase  context.CancelFunc

	session  *sessionStore
	log      *ConversationLog
	playback *playbackController

	recognizer    Recognizer
	captureDevice CaptureDevice
	deviceOnce    sync.Once

	agent       AgentCaller
	synthesizer Synthesizer
	refresher   Refresher

	dispatchTimeout     time.Duration
	onNotice            func(text string)
	onInterimTranscript func(transcript string)
}

func New(opts ...ClientOption) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		baseContext:         ctx,
		cancelBase:          cancel,
		session:             newSessionStore(),
		log:                 NewConversationLog(),
		playback:            newPlaybackController(),
		dispatchTimeout:     defaultDispatchTimeout,
		onNotice:            func(string) {},
		onInterimTranscript: func(string) {},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Conversation returns a point-in-time copy of the conversation log.
func (c *Client) Conversation() []ChatMessage {
	return c.log.Messages()
}

// Log exposes the conversation log store for collaborators that append
// confirmation messages, such as the calendar engine.
func (c *Client) Log() *ConversationLog {
	return c.log
}

func (c *Client) SessionState() SessionState {
	return c.session.current()
}

// StartSession begins listening. If a session is already listening the call
// is a deliberate no-op: an active session is never preempted.
func (c *Client) StartSession() error {
	if c.recognizer == nil {
		return fmt.Errorf("no recognizer configured")
	}

	session, ok := c.session.begin()
	if !ok {
		return nil
	}

	ctx, span := tracer.Start(c.baseContext, "start capture session")
	defer span.End()

	sttOptions := []speech.TranscriptionOption{
		speech.WithTranscriptionCallback(func(transcript string) {
			c.handleFinalTranscript(session, transcript)
		}),
		speech.WithInterimTranscriptionCallback(c.onInterimTranscript),
		speech.WithErrorCallback(func(err error) {
			c.handleCaptureError(session, err)
		}),
	}
	if c.captureDevice != nil {
		sttOptions = append(sttOptions, speech.WithEncodingInfo(c.captureDevice.EncodingInfo()))
	}

	if err := c.recognizer.Transcribe(ctx, sttOptions...); err != nil {
		recordedErr := fmt.Errorf("failed to start transcribing: %w", err)
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		c.session.fail(session)
		c.notify(fmt.Sprintf("Could not start listening: %v", err))
		return recordedErr
	}

	c.startCaptureDevice()
	return nil
}

// StopSession ends the listening session; with no active session it is a
// no-op. A transcript the recognizer finalizes after the stop still
// dispatches once.
func (c *Client) StopSession() {
	if !c.session.endCurrent() {
		return
	}

	c.stopRecognizerStream()
}

// handleFinalTranscript completes the session and triggers its single agent
// call, with the spoken-reply branch enabled. The recognition stream is only
// stopped when this transcript's own session is the one listening: a late
// transcript from an earlier session must not touch a stream a newer
// session owns.
func (c *Client) handleFinalTranscript(session uint64, transcript string) {
	if c.session.end(session) {
		c.stopRecognizerStream()
	}

	if !c.session.disarm(session) {
		return
	}

	go c.dispatch(c.baseContext, transcript, true)
}

func (c *Client) handleCaptureError(session uint64, err error) {
	c.session.fail(session)
	c.notify(fmt.Sprintf("Voice capture failed: %v", err))
}

// startCaptureDevice begins streaming microphone frames into the recognizer.
// The device runs for the life of the client; frames are only forwarded
// while a session is listening.
func (c *Client) startCaptureDevice() {
	if c.captureDevice == nil {
		return
	}

	c.deviceOnce.Do(func() {
		go func() {
			err := c.captureDevice.Stream(c.baseContext, func(audio []byte) {
				if c.session.current() != SessionListening {
					return
				}
				if err := c.recognizer.SendAudio(audio); err != nil {
					logger.WarnContext(c.baseContext, "failed to forward captured audio", "error", err)
				}
			})
			if err != nil {
				c.handleCaptureError(c.session.currentSession(), fmt.Errorf("capture device stopped: %w", err))
			}
		}()
	})
}

// stopRecognizerStream asks the recognizer to flush and close its live
// stream, when it supports that.
func (c *Client) stopRecognizerStream() {
	if stoppable, ok := c.recognizer.(interface{ StopStream() error }); ok {
		if err := stoppable.StopStream(); err != nil {
			logger.WarnContext(c.baseContext, "failed to stop recognition stream", "error", err)
		}
	}
}

func (c *Client) notify(text string) {
	if c.onNotice != nil {
		c.onNotice(text)
	}
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.session.endCurrent()
		c.playback.Stop()

		if err := c.closeRecognizer(); err != nil {
			recordedErr := fmt.Errorf("failed to close recognizer: %w", err)
			span := trace.SpanFromContext(c.baseContext)
			span.RecordError(recordedErr)
			span.SetStatus(codes.Error, recordedErr.Error())
		}

		c.cancelBase()
	})
}

func (c *Client) closeRecognizer() error {
	switch r := c.recognizer.(type) {
	case interface{ Close(context.Context) error }:
		return r.Close(c.baseContext)
	case interface{ Close(context.Context) }:
		r.Close(c.baseContext)
	case interface{ Close() error }:
		return r.Close()
	case interface{ Close() }:
		r.Close()
	}
	return nil
}
