package memory

import (
	"sync"
	"time"

	"quizdesk/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
// With an idle TTL, a session that is not looked up for that long expires
// and is closed.
type SessionStore struct {
	idleTTL time.Duration
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*app.Session
	lastSeen map[string]time.Time
}

// SessionStoreOption configures a SessionStore.
type SessionStoreOption func(*SessionStore)

// WithIdleTTL expires sessions that were not accessed for ttl. Zero disables expiry.
func WithIdleTTL(ttl time.Duration) SessionStoreOption {
	return func(s *SessionStore) { s.idleTTL = ttl }
}

// WithStoreClock overrides the clock used for idle tracking (tests).
func WithStoreClock(now func() time.Time) SessionStoreOption {
	return func(s *SessionStore) { s.now = now }
}

func NewSessionStore(opts ...SessionStoreOption) *SessionStore {
	s := &SessionStore{
		now:      time.Now,
		sessions: make(map[string]*app.Session),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SessionStore) Put(session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID()] = session
	s.lastSeen[session.ID()] = s.now()
}

func (s *SessionStore) Get(sessionID string) (*app.Session, bool) {
	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return nil, false
	}
	now := s.now()
	if s.expiredLocked(sessionID, now) {
		s.removeLocked(sessionID)
		s.mu.Unlock()
		session.Close()
		return nil, false
	}
	s.lastSeen[sessionID] = now
	s.mu.Unlock()
	return session, true
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(sessionID)
}

func (s *SessionStore) All() []*app.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*app.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session)
	}
	return out
}

// Reap closes and forgets every session idle for longer than the TTL.
func (s *SessionStore) Reap() []*app.Session {
	s.mu.Lock()
	now := s.now()
	var reaped []*app.Session
	for id, session := range s.sessions {
		if s.expiredLocked(id, now) {
			s.removeLocked(id)
			reaped = append(reaped, session)
		}
	}
	s.mu.Unlock()

	for _, session := range reaped {
		session.Close()
	}
	return reaped
}

func (s *SessionStore) expiredLocked(sessionID string, now time.Time) bool {
	return s.idleTTL > 0 && now.Sub(s.lastSeen[sessionID]) > s.idleTTL
}

func (s *SessionStore) removeLocked(sessionID string) {
	delete(s.sessions, sessionID)
	delete(s.lastSeen, sessionID)
}
