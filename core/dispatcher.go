package voiceclient

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// AgentCaller performs one request/response exchange with the remote
// language agent.
type AgentCaller interface {
	Send(ctx context.Context, message string) (string, error)
}

// Synthesizer produces a decoded audio payload for a reply string. An empty
// payload with a nil error means there is nothing to play.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Refresher reconciles the local event cache against the remote store.
type Refresher interface {
	Refresh(ctx context.Context) error
}

const defaultDispatchTimeout = 30 * time.Second

// SendPrompt dispatches typed input. The reply is never spoken for typed
// input; that branch is reserved for voice-originated utterances.
func (c *Client) SendPrompt(text string) {
	go c.dispatch(c.baseContext, text, false)
}

// dispatch runs the full exchange for one utterance: append the user
// message, call the agent, append the outcome in completion order, then kick
// off the side effects the reply implies.
func (c *Client) dispatch(ctx context.Context, text string, wantsSpokenReply bool) {
	ctx, span := tracer.Start(ctx, "dispatch utterance")
	defer span.End()
	span.SetAttributes(attribute.Bool("request.wants_spoken_reply", wantsSpokenReply))

	c.log.Append(SenderUser, text)

	if c.agent == nil {
		c.log.Append(SenderError, "No agent is configured.")
		return
	}

	callCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.dispatchTimeout)
		defer cancel()
	}

	reply, err := c.agent.Send(callCtx, text)
	if err != nil {
		err = fmt.Errorf("agent call failed: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.log.Append(SenderError, err.Error())
		return
	}

	c.log.Append(SenderAgent, reply)

	// The agent may have mutated calendar state as a side effect; the only
	// way to find out is to refresh.
	if c.refresher != nil {
		go func() {
			if err := c.refresher.Refresh(c.baseContext); err != nil {
				logger.WarnContext(c.baseContext, "event cache refresh after dispatch failed", "error", err)
			}
		}()
	}

	if wantsSpokenReply {
		c.speakReply(ctx, reply)
	}
}

// speakReply synthesizes and plays a reply. A synthesis transport failure is
// surfaced as a transient notice and playback is never attempted; a stream
// that decodes to nothing is skipped without any user-facing error.
func (c *Client) speakReply(ctx context.Context, reply string) {
	if c.synthesizer == nil {
		return
	}

	callCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.dispatchTimeout)
		defer cancel()
	}

	payload, err := c.synthesizer.Synthesize(callCtx, reply)
	if err != nil {
		c.notify(fmt.Sprintf("Speech synthesis failed: %v", err))
		return
	}
	if len(payload) == 0 {
		return
	}

	c.playback.Play(payload)
}
