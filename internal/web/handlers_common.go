// Package web provides HTTP handlers for the reject list API.
// This file contains shared utilities and helper functions used across handlers.
package web

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/rejectlist/internal/core"
	"github.com/go-chi/chi/v5"
)

// maxLoginBody caps the login payload.
const maxLoginBody = 64 << 10

// readBody reads at most limit bytes of the request body. Oversized bodies
// fail with *http.MaxBytesError.
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// isJSONArray reports whether body's first non-space byte opens an array.
func isJSONArray(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// parseID reads the {id} route parameter. Anything that is not a positive
// integer cannot name a record, so it reports core.ErrNotFound.
func parseID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("record %q: %w", raw, core.ErrNotFound)
	}
	return id, nil
}

// queryFromRequest extracts the list filters from URL query parameters.
func queryFromRequest(r *http.Request) core.Query {
	q := r.URL.Query()
	return core.Query{
		Search: q.Get("search"),
		Status: q.Get("status"),
		Name:   q.Get("name"),
	}
}

// setSessionCookies writes the session cookie and the script-readable
// logged_in marker.
func (s *Server) setSessionCookies(w http.ResponseWriter, token string) {
	sameSite, _ := s.cfg.Session.SameSite()
	maxAge := int(s.cfg.Session.MaxAge.Seconds())

	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Session.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.cfg.Session.CookieSecure,
		SameSite: sameSite,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     loggedInCookie,
		Value:    "true",
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   s.cfg.Session.CookieSecure,
		SameSite: sameSite,
	})
}

// clearSessionCookies expires every cookie the API sets.
func (s *Server) clearSessionCookies(w http.ResponseWriter, _ *http.Request) {
	for _, name := range []string{s.cfg.Session.CookieName, loggedInCookie, csrfCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:   name,
			Value:  "",
			Path:   "/",
			MaxAge: -1,
		})
	}
}
