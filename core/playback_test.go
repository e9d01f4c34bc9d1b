package voiceclient

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type fakePlayback struct {
	payload []byte

	mu         sync.Mutex
	closeCalls int

	done     chan struct{}
	doneOnce sync.Once
}

func newFakePlayback(payload []byte) *fakePlayback {
	return &fakePlayback{payload: payload, done: make(chan struct{})}
}

func (p *fakePlayback) Done() <-chan struct{} { return p.done }

func (p *fakePlayback) Close() error {
	p.mu.Lock()
	p.closeCalls++
	p.mu.Unlock()
	p.doneOnce.Do(func() { close(p.done) })
	return nil
}

func (p *fakePlayback) finish() {
	p.doneOnce.Do(func() { close(p.done) })
}

func (p *fakePlayback) closes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeCalls
}

type fakePlaybackEngine struct {
	mu        sync.Mutex
	playbacks []*fakePlayback
	openErr   error
}

func (e *fakePlaybackEngine) Open(payload []byte) (Playback, error) {
	if e.openErr != nil {
		return nil, e.openErr
	}

	playback := newFakePlayback(payload)
	e.mu.Lock()
	e.playbacks = append(e.playbacks, playback)
	e.mu.Unlock()
	return playback, nil
}

func (e *fakePlaybackEngine) opened() []*fakePlayback {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*fakePlayback{}, e.playbacks...)
}

func TestPlaySupersedingReleasesPriorResource(t *testing.T) {
	engine := &fakePlaybackEngine{}
	controller := newPlaybackController()
	controller.setEngine(engine)

	controller.Play([]byte("first"))
	controller.Play([]byte("second"))

	playbacks := engine.opened()
	if len(playbacks) != 2 {
		t.Fatalf("expected 2 playbacks, got %d", len(playbacks))
	}
	if playbacks[0].closes() == 0 {
		t.Fatalf("expected the superseded playback to be released")
	}

	controller.Stop()
	if playbacks[1].closes() == 0 {
		t.Fatalf("expected the current playback to be released on stop")
	}
}

func TestPlaybackReleasedOnNaturalCompletion(t *testing.T) {
	engine := &fakePlaybackEngine{}
	controller := newPlaybackController()
	controller.setEngine(engine)

	ended := make(chan struct{}, 1)
	controller.setPlaybackEndedCallback(func() {
		select {
		case ended <- struct{}{}:
		default:
		}
	})

	controller.Play([]byte("payload"))
	playbacks := engine.opened()
	if len(playbacks) != 1 {
		t.Fatalf("expected 1 playback, got %d", len(playbacks))
	}

	playbacks[0].finish()

	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for playback end")
	}
	if playbacks[0].closes() != 1 {
		t.Fatalf("expected exactly one release, got %d", playbacks[0].closes())
	}
}

func TestPlayEngineErrorIsSwallowed(t *testing.T) {
	engine := &fakePlaybackEngine{openErr: errors.New("device busy")}
	controller := newPlaybackController()
	controller.setEngine(engine)

	controller.Play([]byte("payload"))

	if len(engine.opened()) != 0 {
		t.Fatalf("expected no live playback after an engine error")
	}
}

func TestPlayWithEmptyPayloadIsNoop(t *testing.T) {
	engine := &fakePlaybackEngine{}
	controller := newPlaybackController()
	controller.setEngine(engine)

	controller.Play(nil)

	if len(engine.opened()) != 0 {
		t.Fatalf("expected no playback for an empty payload")
	}
}

// gatedPlaybackEngine parks Open until the gate delivers, letting tests
// overlap two Play calls deliberately.
type gatedPlaybackEngine struct {
	gate chan struct{}

	mu        sync.Mutex
	playbacks []*fakePlayback
}

func (e *gatedPlaybackEngine) Open(payload []byte) (Playback, error) {
	<-e.gate

	playback := newFakePlayback(payload)
	e.mu.Lock()
	e.playbacks = append(e.playbacks, playback)
	e.mu.Unlock()
	return playback, nil
}

func (e *gatedPlaybackEngine) opened() []*fakePlayback {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*fakePlayback{}, e.playbacks...)
}

func TestOverlappingPlaysReleaseDisplacedResource(t *testing.T) {
	engine := &gatedPlaybackEngine{gate: make(chan struct{}, 2)}
	controller := newPlaybackController()
	controller.setEngine(engine)

	engine.gate <- struct{}{}
	engine.gate <- struct{}{}

	done := make(chan struct{}, 2)
	go func() { controller.Play([]byte("first")); done <- struct{}{} }()
	go func() { controller.Play([]byte("second")); done <- struct{}{} }()
	for range 2 {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for the overlapping plays")
		}
	}

	playbacks := engine.opened()
	if len(playbacks) != 2 {
		t.Fatalf("expected two opened playbacks, got %d", len(playbacks))
	}
	if got := playbacks[0].closes() + playbacks[1].closes(); got != 1 {
		t.Fatalf("expected exactly the displaced playback to be released, got %d closes", got)
	}

	for _, playback := range playbacks {
		if playback.closes() == 0 {
			playback.finish()
		}
	}

	deadline := time.After(2 * time.Second)
	for playbacks[0].closes()+playbacks[1].closes() != 2 {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for the surviving playback to be released")
		case <-time.After(10 * time.Millisecond):
		}
	}
	for i, playback := range playbacks {
		if got := playback.closes(); got != 1 {
			t.Fatalf("playback %d released %d times, expected exactly once", i, got)
		}
	}
}
