package voiceclient

import (
	"fmt"
	"sync"

	"github.com/hvoss-dev/calvoice-core/core/audio"
)

// Playback and PlaybackEngine are the ports a playback device implements.
type (
	Playback       = audio.Playback
	PlaybackEngine = audio.PlaybackEngine
)

// playbackController owns the lifecycle of the current playback. Spoken
// output is best effort: engine failures are logged and swallowed, never
// surfaced to the caller. Starting a new playback always stops and releases
// the previous resource first, so a superseded playback cannot leak.
type playbackController struct {
	// startMu serializes claim, open and install across Play and Stop;
	// overlapping calls must never claim the same prior resource, or the
	// loser's playback is stranded unreleased.
	startMu sync.Mutex

	mu      sync.Mutex
	engine  PlaybackEngine
	current Playback

	onPlaybackEnded func()
}

func newPlaybackController() *playbackController {
	return &playbackController{
		onPlaybackEnded: func() {},
	}
}

func (p *playbackController) setEngine(engine PlaybackEngine) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.engine = engine
}

func (p *playbackController) setPlaybackEndedCallback(callback func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if callback != nil {
		p.onPlaybackEnded = callback
	} else {
		p.onPlaybackEnded = func() {}
	}
}

// Play starts payload on the configured engine, superseding any playback
// still in flight.
func (p *playbackController) Play(payload []byte) {
	if len(payload) == 0 {
		return
	}

	p.startMu.Lock()
	defer p.startMu.Unlock()

	p.mu.Lock()
	engine := p.engine
	prior := p.current
	p.current = nil
	p.mu.Unlock()

	if prior != nil {
		if err := prior.Close(); err != nil {
			logger.Warn("failed to release superseded playback", "error", err)
		}
	}
	if engine == nil {
		logger.Warn("dropping audio payload: no playback engine configured")
		return
	}

	playback, err := engine.Open(payload)
	if err != nil {
		logger.Warn("failed to start playback", "error", fmt.Errorf("playback engine rejected payload: %w", err))
		return
	}

	p.mu.Lock()
	p.current = playback
	p.mu.Unlock()

	go p.awaitCompletion(playback)
}

// Stop releases the current playback, if any.
func (p *playbackController) Stop() {
	p.startMu.Lock()
	defer p.startMu.Unlock()

	p.mu.Lock()
	current := p.current
	p.current = nil
	p.mu.Unlock()

	if current != nil {
		if err := current.Close(); err != nil {
			logger.Warn("failed to release playback", "error", err)
		}
	}
}

// awaitCompletion releases the resource on natural completion. A playback
// superseded in the meantime was already released by Play and is skipped.
func (p *playbackController) awaitCompletion(playback Playback) {
	<-playback.Done()

	p.mu.Lock()
	stillCurrent := p.current == playback
	if stillCurrent {
		p.current = nil
	}
	onPlaybackEnded := p.onPlaybackEnded
	p.mu.Unlock()

	if !stillCurrent {
		return
	}

	if err := playback.Close(); err != nil {
		logger.Warn("failed to release completed playback", "error", err)
	}
	onPlaybackEnded()
}
