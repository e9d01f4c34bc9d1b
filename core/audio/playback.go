package audio

// Playback is one live audio resource. Done is closed when playback finishes
// naturally. Close stops playback and releases the underlying resource; it
// must be safe to call more than once and on whichever goroutine observes
// completion first.
type Playback interface {
	Done() <-chan struct{}
	Close() error
}

// PlaybackEngine turns a decoded audio payload into a live playback.
type PlaybackEngine interface {
	Open(payload []byte) (Playback, error)
}
