package auth

import (
	"context"
	"sync"
	"time"
)

// MemorySessionStore keeps sessions in process memory. Expired entries are
// removed lazily by Manager.Guard and in bulk by Sweep.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemorySessionStore returns an empty store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*Session)}
}

func (s *MemorySessionStore) Load(ctx context.Context, key string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[key]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess.clone(), nil
}

func (s *MemorySessionStore) Save(ctx context.Context, key string, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key] = sess.clone()
	return nil
}

func (s *MemorySessionStore) Touch(ctx context.Context, key string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	if !ok {
		return ErrSessionNotFound
	}
	if sess.LastActivity == nil || at.After(*sess.LastActivity) {
		sess.LastActivity = &at
	}
	return nil
}

func (s *MemorySessionStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[key]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, key)
	return nil
}

// Len returns the number of stored sessions.
func (s *MemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep deletes the sessions Guard would expire at now and returns how many
// were removed. Sessions without recorded activity only age out by maxAge.
func (s *MemorySessionStore) Sweep(now time.Time, idle, maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, sess := range s.sessions {
		stale := sess.LastActivity != nil && now.Sub(*sess.LastActivity) > idle
		if maxAge > 0 && now.Sub(sess.CreatedAt) > maxAge {
			stale = true
		}
		if stale {
			delete(s.sessions, key)
			removed++
		}
	}
	return removed
}
