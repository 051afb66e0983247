package session

import (
	"sync"
	"time"

	"voice-relay/internal/domain"
)

const defaultMaxTurns = 40

// Store owns every in-flight call transcript, keyed by call id.
//
// The map is guarded by the store mutex; each session carries its own mutex
// so append and truncate happen as one step per call id while different
// calls never contend on turn mutation.
type Store struct {
	maxTurns int
	idleTTL  time.Duration
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// Option configures a Store.
type Option func(*Store)

// WithIdleTTL enables eviction of sessions with no activity for d by Sweep.
// Zero disables eviction.
func WithIdleTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.idleTTL = d
		}
	}
}

// WithClock overrides the time source used for activity tracking.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates an empty Store keeping at most maxTurns turns per call.
// A non-positive maxTurns falls back to 40.
func New(maxTurns int, opts ...Option) *Store {
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	s := &Store{
		maxTurns: maxTurns,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxTurns reports the truncation limit.
func (s *Store) MaxTurns() int {
	return s.maxTurns
}

// GetOrCreate returns the session for callID, creating an empty one if the
// id has not been seen.
func (s *Store) GetOrCreate(callID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[callID]
	if !ok {
		sess = &Session{callID: callID, lastActive: s.now()}
		s.sessions[callID] = sess
	}
	return sess
}

// AppendUserTurn records a caller utterance and returns the transcript as of
// this append.
func (s *Store) AppendUserTurn(callID, text string) []domain.Turn {
	return s.append(callID, domain.Turn{Role: domain.RoleUser, Content: text})
}

// AppendAssistantTurn records an agent reply and returns the transcript as of
// this append. A reply for a call that has already been removed is dropped
// and reported with ok false; it never recreates the session.
func (s *Store) AppendAssistantTurn(callID, text string) (turns []domain.Turn, ok bool) {
	s.mu.Lock()
	sess, ok := s.sessions[callID]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	return sess.append(domain.Turn{Role: domain.RoleAssistant, Content: text}, s.maxTurns, s.now()), true
}

func (s *Store) append(callID string, turn domain.Turn) []domain.Turn {
	return s.GetOrCreate(callID).append(turn, s.maxTurns, s.now())
}

func (s *Session) append(turn domain.Turn, maxTurns int, now time.Time) []domain.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = append(s.turns, turn)
	if over := len(s.turns) - maxTurns; over > 0 {
		// Copy into a fresh slice so the dropped prefix can be collected.
		kept := make([]domain.Turn, maxTurns)
		copy(kept, s.turns[over:])
		s.turns = kept
	}
	s.lastActive = now
	return s.copyTurns()
}

// Snapshot returns the current transcript for callID, oldest first. Unknown
// ids yield an empty transcript and are not created.
func (s *Store) Snapshot(callID string) []domain.Turn {
	s.mu.Lock()
	sess, ok := s.sessions[callID]
	s.mu.Unlock()
	if !ok {
		return []domain.Turn{}
	}
	return sess.Turns()
}

// Remove discards the session for callID. It reports whether one existed.
func (s *Store) Remove(callID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[callID]; !ok {
		return false
	}
	delete(s.sessions, callID)
	return true
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes sessions idle for longer than the configured TTL and returns
// how many were evicted. It is a no-op when no TTL is configured.
func (s *Store) Sweep(now time.Time) int {
	if s.idleTTL <= 0 {
		return 0
	}
	cutoff := now.Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, sess := range s.sessions {
		sess.mu.Lock()
		idle := sess.lastActive.Before(cutoff)
		sess.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Session is a read-only handle on one call transcript.
type Session struct {
	callID string

	mu         sync.Mutex
	turns      []domain.Turn
	lastActive time.Time
}

// CallID returns the platform-assigned call identifier.
func (s *Session) CallID() string {
	return s.callID
}

// Len returns the number of recorded turns.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// Turns returns a copy of the recorded turns, oldest first.
func (s *Session) Turns() []domain.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyTurns()
}

func (s *Session) copyTurns() []domain.Turn {
	out := make([]domain.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}
