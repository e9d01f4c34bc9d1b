package voiceclient

import "sync"

// SessionState is the lifecycle of a voice capture session. At most one
// session is listening process-wide at any time.
type SessionState string

const (
	SessionIdle      SessionState = "idle"
	SessionListening SessionState = "listening"
	SessionError     SessionState = "error"
)

// sessionStore is the voice session state machine. Each session is stamped
// with a token on begin; the callbacks registered for a session close over
// its token, so a recognizer reporting late can only ever end or dispatch
// the session it belongs to. A session arms on begin and disarms exactly
// once, which limits a completed session to a single agent call no matter
// how many transcript callbacks the recognizer fires.
type sessionStore struct {
	mu       sync.Mutex
	state    SessionState
	epoch    uint64
	armed    map[uint64]struct{}
	onChange func(state SessionState)
}

func newSessionStore() *sessionStore {
	return &sessionStore{
		state:    SessionIdle,
		armed:    map[uint64]struct{}{},
		onChange: func(SessionState) {},
	}
}

func (s *sessionStore) setChangeCallback(callback func(state SessionState)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if callback != nil {
		s.onChange = callback
	} else {
		s.onChange = func(SessionState) {}
	}
}

// begin transitions idle to listening and returns the new session's token.
// It reports false, and changes nothing, when a session is already
// listening. Only the latest completed session can still flush a late
// transcript; arms older than that are dead and dropped here.
func (s *sessionStore) begin() (uint64, bool) {
	s.mu.Lock()
	if s.state == SessionListening {
		s.mu.Unlock()
		return 0, false
	}
	s.state = SessionListening
	s.epoch++
	s.armed[s.epoch] = struct{}{}
	for session := range s.armed {
		if session+1 < s.epoch {
			delete(s.armed, session)
		}
	}
	session := s.epoch
	onChange := s.onChange
	s.mu.Unlock()

	onChange(SessionListening)
	return session, true
}

// end transitions listening to idle when session is the one listening; a
// token from an earlier session changes nothing. The dispatch arm survives:
// a recognizer that reports its transcript only after the stream stops may
// still trigger the session's one agent call.
func (s *sessionStore) end(session uint64) bool {
	s.mu.Lock()
	if s.state != SessionListening || session != s.epoch {
		s.mu.Unlock()
		return false
	}
	s.state = SessionIdle
	onChange := s.onChange
	s.mu.Unlock()

	onChange(SessionIdle)
	return true
}

// endCurrent ends whichever session is listening.
func (s *sessionStore) endCurrent() bool {
	s.mu.Lock()
	session := s.epoch
	s.mu.Unlock()

	return s.end(session)
}

// fail disarms the given session; it never dispatches after this. The
// visible error-then-idle transition only happens when the failing session
// is the latest one, so a stale failure cannot tear down a live session.
func (s *sessionStore) fail(session uint64) {
	s.mu.Lock()
	delete(s.armed, session)
	if session != s.epoch {
		s.mu.Unlock()
		return
	}
	s.state = SessionError
	onChange := s.onChange
	s.mu.Unlock()

	onChange(SessionError)

	s.mu.Lock()
	s.state = SessionIdle
	s.mu.Unlock()

	onChange(SessionIdle)
}

// disarm claims the session's single dispatch. Only the first call per
// session returns true.
func (s *sessionStore) disarm(session uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.armed[session]; !ok {
		return false
	}
	delete(s.armed, session)
	return true
}

func (s *sessionStore) currentSession() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.epoch
}

func (s *sessionStore) current() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}
