package auth

// manager.go implements login, logout and the activity-timeout state machine.
//
// A request's session is evaluated twice:
//
//  1. Guard runs before the handler. An authenticated session whose last
//     activity is older than the idle timeout (or whose age exceeds the
//     maximum) is deleted and the request continues as anonymous, flagged
//     as expired. A session with no recorded activity gets it stamped now.
//  2. RecordActivity runs after the handler. It refreshes last activity only
//     for authenticated requests that finished with a status below 400.
//
// Paths on the exempt list skip both steps. Paths on the passive list run the
// guard but never refresh activity.

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrUnauthenticated is returned when an operation needs a logged-in caller.
var ErrUnauthenticated = errors.New("authentication required")

// Defaults for a zero ManagerConfig.
const (
	DefaultIdleTimeout = time.Hour
	DefaultMaxAge      = 14 * 24 * time.Hour
)

// SessionObserver receives session lifecycle events. Metrics implement it.
type SessionObserver interface {
	ObserveLogin(success bool)
	ObserveSessionExpired()
}

// ManagerConfig holds Manager settings.
type ManagerConfig struct {
	IdleTimeout   time.Duration
	MaxAge        time.Duration // 0 disables the absolute limit
	TeamLeadGroup string
	ExemptPaths   []string
	PassivePaths  []string
	Now           func() time.Time
	Observer      SessionObserver
}

// Manager owns session state transitions.
type Manager struct {
	store         SessionStore
	users         Authenticator
	idle          time.Duration
	maxAge        time.Duration
	teamLeadGroup string
	exempt        []string
	passive       []string
	now           func() time.Time
	observer      SessionObserver
}

// NewManager creates a Manager over store and users.
func NewManager(store SessionStore, users Authenticator, cfg ManagerConfig) *Manager {
	m := &Manager{
		store:         store,
		users:         users,
		idle:          cfg.IdleTimeout,
		maxAge:        cfg.MaxAge,
		teamLeadGroup: cfg.TeamLeadGroup,
		exempt:        cfg.ExemptPaths,
		passive:       cfg.PassivePaths,
		now:           cfg.Now,
		observer:      cfg.Observer,
	}
	if m.idle <= 0 {
		m.idle = DefaultIdleTimeout
	}
	if m.teamLeadGroup == "" {
		m.teamLeadGroup = DefaultTeamLeadGroup
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// IdleTimeout returns the inactivity threshold.
func (m *Manager) IdleTimeout() time.Duration { return m.idle }

// MaxAge returns the absolute session lifetime, 0 if unlimited.
func (m *Manager) MaxAge() time.Duration { return m.maxAge }

// State is the outcome of evaluating a request's session.
type State struct {
	Status  Status
	Session *Session // nil unless authenticated
	Role    Role
	Expired bool // the session timed out during this evaluation

	key string
}

// Authenticated reports whether the request carries a live session.
func (s State) Authenticated() bool {
	return s.Status == StatusAuthenticated && s.Session != nil
}

// Username returns the session's username or "".
func (s State) Username() string {
	if s.Session == nil {
		return ""
	}
	return s.Session.Identity.Username
}

// Anonymous is the state of a request without a session.
var Anonymous = State{Status: StatusAnonymous}

// Login verifies credentials and starts a new session. A session belonging to
// previousToken is destroyed first so a login never reuses an old token.
func (m *Manager) Login(ctx context.Context, username, password, previousToken string) (string, State, error) {
	if previousToken != "" {
		if err := m.store.Delete(ctx, HashToken(previousToken)); err != nil && !errors.Is(err, ErrSessionNotFound) {
			return "", Anonymous, fmt.Errorf("rotate session: %w", err)
		}
	}

	id, err := m.users.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			m.observeLogin(false)
			return "", Anonymous, ErrInvalidCredentials
		}
		return "", Anonymous, fmt.Errorf("authenticate: %w", err)
	}

	token, err := NewToken()
	if err != nil {
		return "", Anonymous, fmt.Errorf("generate token: %w", err)
	}
	sess := &Session{
		ID:        uuid.New(),
		Identity:  id,
		Status:    StatusAuthenticated,
		CreatedAt: m.now(),
	}
	key := HashToken(token)
	if err := m.store.Save(ctx, key, sess); err != nil {
		return "", Anonymous, fmt.Errorf("save session: %w", err)
	}

	m.observeLogin(true)
	return token, m.authenticated(sess, key), nil
}

// Logout destroys the token's session. It is safe to call with an empty or
// unknown token.
func (m *Manager) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	err := m.store.Delete(ctx, HashToken(token))
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Guard evaluates token before a request is handled.
func (m *Manager) Guard(ctx context.Context, token string) (State, error) {
	if token == "" {
		return Anonymous, nil
	}

	key := HashToken(token)
	sess, err := m.store.Load(ctx, key)
	if errors.Is(err, ErrSessionNotFound) {
		return Anonymous, nil
	}
	if err != nil {
		return Anonymous, fmt.Errorf("load session: %w", err)
	}
	if sess.Status != StatusAuthenticated {
		return Anonymous, nil
	}

	now := m.now()
	if m.expired(sess, now) {
		if err := m.store.Delete(ctx, key); err != nil && !errors.Is(err, ErrSessionNotFound) {
			return Anonymous, fmt.Errorf("expire session: %w", err)
		}
		if m.observer != nil {
			m.observer.ObserveSessionExpired()
		}
		return State{Status: StatusAnonymous, Expired: true}, nil
	}

	if sess.LastActivity == nil {
		if err := m.store.Touch(ctx, key, now); err != nil {
			return Anonymous, fmt.Errorf("stamp activity: %w", err)
		}
		sess.LastActivity = &now
	}
	return m.authenticated(sess, key), nil
}

// expired applies the idle threshold (strictly greater than) and the
// absolute age limit.
func (m *Manager) expired(sess *Session, now time.Time) bool {
	if m.maxAge > 0 && now.Sub(sess.CreatedAt) > m.maxAge {
		return true
	}
	return sess.LastActivity != nil && now.Sub(*sess.LastActivity) > m.idle
}

// RecordActivity is the post-response hook: an authenticated request that
// completed with status < 400 refreshes last activity.
func (m *Manager) RecordActivity(ctx context.Context, state State, status int) error {
	if !state.Authenticated() || status >= 400 {
		return nil
	}
	err := m.store.Touch(ctx, state.key, m.now())
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return fmt.Errorf("record activity: %w", err)
	}
	return nil
}

// AuthStatus is the check-auth view of a State.
type AuthStatus struct {
	Authenticated  bool   `json:"authenticated"`
	Username       string `json:"username,omitempty"`
	UserType       Role   `json:"user_type,omitempty"`
	IsTeamLead     *bool  `json:"is_team_lead,omitempty"`
	SessionExpired bool   `json:"session_expired,omitempty"`
}

// CheckAuth describes state without changing anything.
func (m *Manager) CheckAuth(state State) AuthStatus {
	if !state.Authenticated() {
		return AuthStatus{SessionExpired: state.Expired}
	}
	lead := state.Role.IsTeamLead()
	return AuthStatus{
		Authenticated: true,
		Username:      state.Username(),
		UserType:      state.Role,
		IsTeamLead:    &lead,
	}
}

// IsExempt reports whether path skips session handling entirely.
func (m *Manager) IsExempt(path string) bool { return hasAnyPrefix(path, m.exempt) }

// IsPassive reports whether path must not refresh activity.
func (m *Manager) IsPassive(path string) bool { return hasAnyPrefix(path, m.passive) }

// ResolveRole resolves id with the configured team lead group.
func (m *Manager) ResolveRole(id Identity) Role {
	return ResolveRoleWithGroup(id, m.teamLeadGroup)
}

func (m *Manager) authenticated(sess *Session, key string) State {
	return State{
		Status:  StatusAuthenticated,
		Session: sess,
		Role:    m.ResolveRole(sess.Identity),
		key:     key,
	}
}

func (m *Manager) observeLogin(success bool) {
	if m.observer != nil {
		m.observer.ObserveLogin(success)
	}
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
