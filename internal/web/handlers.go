package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/JonMunkholm/rejectlist/internal/auth"
	"github.com/JonMunkholm/rejectlist/internal/logging"
	mw "github.com/JonMunkholm/rejectlist/internal/web/middleware"
)

// healthCheckTimeout bounds the store ping behind /healthz.
const healthCheckTimeout = 2 * time.Second

// loginRequest accepts both the short and the long credential keys.
type loginRequest struct {
	User     string `json:"user"`
	PW       string `json:"pw"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (req loginRequest) credentials() (string, string) {
	username, password := req.User, req.PW
	if username == "" {
		username = req.Username
	}
	if password == "" {
		password = req.Password
	}
	return username, password
}

// handleLogin verifies credentials and starts a session.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	body, err := readBody(w, r, maxLoginBody)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			// Unreadable credentials are treated as wrong ones.
			logging.FromContext(r.Context()).Debug("login payload not decodable", "error", err)
			req = loginRequest{}
		}
	}

	username, password := req.credentials()
	previous := mw.TokenFromRequest(r, s.cfg.Session.CookieName)
	token, state, err := s.sessions.Login(r.Context(), username, password, previous)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			logging.FromContext(r.Context()).Info("login failed", "username", username)
		}
		s.respondError(w, r, err)
		return
	}

	s.setSessionCookies(w, token)
	logging.FromContext(r.Context()).Info("login succeeded",
		"username", state.Username(),
		"session_id", state.Session.ID.String(),
	)
	writeJSON(w, http.StatusOK, s.sessions.CheckAuth(state))
}

// handleLogout ends the caller's session, if any, and clears cookies.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := mw.TokenFromRequest(r, s.cfg.Session.CookieName)
	if err := s.sessions.Logout(r.Context(), token); err != nil {
		// The client is logged out regardless; the stored session ages out.
		logging.FromContext(r.Context()).Error("logout: delete session failed", "error", err)
	}
	s.clearSessionCookies(w, r)
	logging.FromContext(r.Context()).Info("logout", "had_session", token != "")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

// handleCheckAuth reports the caller's authentication state. It never
// refreshes activity.
func (s *Server) handleCheckAuth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.CheckAuth(mw.StateFrom(r.Context())))
}

// handleHealth reports whether the record store is reachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := s.service.Ping(ctx); err != nil {
		logging.FromContext(ctx).Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"active_imports": s.service.ImportStatus().Active,
	})
}
