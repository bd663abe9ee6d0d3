package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"quizdesk/internal/app"
)

const liveMarker = "1"

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Sessions own a running countdown, so they stay in a local map; Redis
// carries a liveness key per session that expires after ttl unless the
// session is looked up. A session whose key is gone is closed and dropped.
// When Redis cannot be reached the local map is trusted.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Put(session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID()] = session
	_ = s.client.Set(context.Background(), s.key(session.ID()), liveMarker, s.ttl).Err()
}

func (s *SessionStore) Get(sessionID string) (*app.Session, bool) {
	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok || s.ttl <= 0 {
		return session, ok
	}

	alive, err := s.client.Expire(context.Background(), s.key(sessionID), s.ttl).Result()
	if err != nil || alive {
		return session, true
	}
	s.drop(sessionID, session)
	return nil, false
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	_ = s.client.Del(context.Background(), s.key(sessionID)).Err()
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

// Reap closes and forgets every session whose liveness key has expired.
func (s *SessionStore) Reap() []*app.Session {
	if s.ttl <= 0 {
		return nil
	}
	ctx := context.Background()
	var reaped []*app.Session
	for _, session := range s.All() {
		n, err := s.client.Exists(ctx, s.key(session.ID())).Result()
		if err != nil || n > 0 {
			continue
		}
		if s.drop(session.ID(), session) {
			reaped = append(reaped, session)
		}
	}
	return reaped
}

// drop removes session if it is still the one registered under sessionID.
func (s *SessionStore) drop(sessionID string, session *app.Session) bool {
	s.mu.Lock()
	current, ok := s.sessions[sessionID]
	if !ok || current != session {
		s.mu.Unlock()
		return false
	}
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	session.Close()
	return true
}

func (s *SessionStore) key(sessionID string) string {
	return "quizdesk:session:" + sessionID
}
