package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned by a SessionStore for unknown keys.
var ErrSessionNotFound = errors.New("session not found")

// Status is the authentication state of a request.
type Status string

const (
	StatusAnonymous     Status = "anonymous"
	StatusAuthenticated Status = "authenticated"
)

// Session is the server-side state behind a session token.
// LastActivity is nil until the first guarded request after login.
type Session struct {
	ID           uuid.UUID  `json:"id"`
	Identity     Identity   `json:"identity"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	LastActivity *time.Time `json:"last_activity,omitempty"`
}

// SessionStore persists sessions keyed by HashToken(token).
// Implementations must be safe for concurrent use.
type SessionStore interface {
	Load(ctx context.Context, key string) (*Session, error)
	Save(ctx context.Context, key string, s *Session) error
	// Touch advances LastActivity to at. It never moves it backwards.
	Touch(ctx context.Context, key string, at time.Time) error
	Delete(ctx context.Context, key string) error
}

func (s *Session) clone() *Session {
	c := *s
	c.Identity.Groups = append([]string(nil), s.Identity.Groups...)
	if s.LastActivity != nil {
		at := *s.LastActivity
		c.LastActivity = &at
	}
	return &c
}
