package voiceclient

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type fakeSynthesizer struct {
	calls   atomic.Int32
	payload []byte
	err     error
}

func (s *fakeSynthesizer) Synthesize(context.Context, string) ([]byte, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.payload, nil
}

type fakeRefresher struct {
	refreshed chan struct{}
}

func (r *fakeRefresher) Refresh(context.Context) error {
	select {
	case r.refreshed <- struct{}{}:
	default:
	}
	return nil
}

func TestDispatchSuccessAppendsAgentMessageAndRefreshes(t *testing.T) {
	agent := &countingAgent{reply: "Done"}
	refresher := &fakeRefresher{refreshed: make(chan struct{}, 1)}
	c := New(WithAgentClient(agent))
	c.refresher = refresher
	defer c.Close()

	c.dispatch(context.Background(), "Schedule a meeting tomorrow at 3pm", false)

	messages := c.Conversation()
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Sender != SenderUser || messages[1].Sender != SenderAgent {
		t.Fatalf("expected user then agent message, got %s then %s", messages[0].Sender, messages[1].Sender)
	}
	if messages[1].Text != "Done" {
		t.Fatalf("expected agent reply Done, got %q", messages[1].Text)
	}

	select {
	case <-refresher.refreshed:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event cache refresh")
	}
}

func TestDispatchFailureAppendsErrorMessageSkipsRefreshAndSynthesis(t *testing.T) {
	agent := &countingAgent{err: errors.New("agent unreachable")}
	synthesizer := &fakeSynthesizer{payload: []byte("audio")}
	refresher := &fakeRefresher{refreshed: make(chan struct{}, 1)}
	c := New(WithAgentClient(agent), WithSynthesizer(synthesizer))
	c.refresher = refresher
	defer c.Close()

	c.dispatch(context.Background(), "hello", true)

	messages := c.Conversation()
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[1].Sender != SenderError {
		t.Fatalf("expected error message, got %s", messages[1].Sender)
	}
	if !strings.Contains(messages[1].Text, "agent unreachable") {
		t.Fatalf("expected error message to carry the failure description, got %q", messages[1].Text)
	}

	if got := synthesizer.calls.Load(); got != 0 {
		t.Fatalf("synthesis must never run after a dispatch failure, got %d calls", got)
	}
	select {
	case <-refresher.refreshed:
		t.Fatalf("refresh must not run after a dispatch failure")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestVoiceDispatchSynthesizesAndPlaysOnce(t *testing.T) {
	agent := &countingAgent{reply: "Done"}
	synthesizer := &fakeSynthesizer{payload: []byte("AAA")}
	engine := &fakePlaybackEngine{}
	c := New(
		WithAgentClient(agent),
		WithSynthesizer(synthesizer),
		WithPlaybackEngine(engine),
	)
	defer c.Close()

	c.dispatch(context.Background(), "Schedule a meeting tomorrow at 3pm", true)

	messages := c.Conversation()
	if len(messages) != 2 || messages[1].Text != "Done" {
		t.Fatalf("expected one agent message Done, got %+v", messages)
	}

	playbacks := engine.opened()
	if len(playbacks) != 1 {
		t.Fatalf("expected exactly one playback, got %d", len(playbacks))
	}
	if string(playbacks[0].payload) != "AAA" {
		t.Fatalf("expected the decoded payload to be played, got %q", playbacks[0].payload)
	}
}

func TestTypedInputNeverSynthesizes(t *testing.T) {
	agent := &countingAgent{reply: "Done"}
	synthesizer := &fakeSynthesizer{payload: []byte("audio")}
	c := New(WithAgentClient(agent), WithSynthesizer(synthesizer))
	defer c.Close()

	c.dispatch(context.Background(), "typed request", false)

	if got := synthesizer.calls.Load(); got != 0 {
		t.Fatalf("typed input must not be spoken, got %d synthesis calls", got)
	}
}

func TestEmptySynthesisResultSkipsPlaybackSilently(t *testing.T) {
	agent := &countingAgent{reply: "Done"}
	synthesizer := &fakeSynthesizer{payload: nil}
	engine := &fakePlaybackEngine{}

	notices := []string{}
	c := New(
		WithAgentClient(agent),
		WithSynthesizer(synthesizer),
		WithPlaybackEngine(engine),
		WithNoticeCallback(func(text string) { notices = append(notices, text) }),
	)
	defer c.Close()

	c.dispatch(context.Background(), "hello", true)

	if len(engine.opened()) != 0 {
		t.Fatalf("playback must not run for an empty synthesis result")
	}
	if len(notices) != 0 {
		t.Fatalf("empty synthesis must not raise a user-facing error, got %v", notices)
	}
}

func TestSynthesisTransportFailureIsReportedWithoutPlayback(t *testing.T) {
	agent := &countingAgent{reply: "Done"}
	synthesizer := &fakeSynthesizer{err: errors.New("stream reset")}
	engine := &fakePlaybackEngine{}

	notices := []string{}
	c := New(
		WithAgentClient(agent),
		WithSynthesizer(synthesizer),
		WithPlaybackEngine(engine),
		WithNoticeCallback(func(text string) { notices = append(notices, text) }),
	)
	defer c.Close()

	c.dispatch(context.Background(), "hello", true)

	if len(engine.opened()) != 0 {
		t.Fatalf("no partial playback may be attempted after a transport failure")
	}
	if len(notices) != 1 || !strings.Contains(notices[0], "stream reset") {
		t.Fatalf("expected one notice naming the synthesis failure, got %v", notices)
	}
}
