package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/JonMunkholm/rejectlist/internal/auth"
	"github.com/JonMunkholm/rejectlist/internal/logging"
)

type stateKey struct{}

// WithState stores the request's session state in ctx.
func WithState(ctx context.Context, s auth.State) context.Context {
	return context.WithValue(ctx, stateKey{}, s)
}

// StateFrom returns the session state stored by Sessions, or auth.Anonymous.
func StateFrom(ctx context.Context) auth.State {
	if s, ok := ctx.Value(stateKey{}).(auth.State); ok {
		return s
	}
	return auth.Anonymous
}

// TokenFromRequest returns the session token from the named cookie, falling
// back to an "Authorization: Bearer" header.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	return ""
}

// SessionOptions configures Sessions.
type SessionOptions struct {
	Manager    *auth.Manager
	CookieName string
	// OnExpired runs before the handler when the session timed out on this
	// request; it typically clears cookies.
	OnExpired func(w http.ResponseWriter, r *http.Request)
	// OnError writes the response when the session store fails.
	OnError func(w http.ResponseWriter, r *http.Request, err error)
}

// Sessions wires the activity timeout around a handler: Manager.Guard runs
// before it and Manager.RecordActivity after it. Exempt paths bypass both;
// passive paths skip the activity refresh.
func Sessions(opts SessionOptions) func(http.Handler) http.Handler {
	mgr := opts.Manager
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if mgr.IsExempt(path) {
				next.ServeHTTP(w, r)
				return
			}

			state, err := mgr.Guard(r.Context(), TokenFromRequest(r, opts.CookieName))
			if err != nil {
				if opts.OnError != nil {
					opts.OnError(w, r, err)
					return
				}
				http.Error(w, "session unavailable", http.StatusServiceUnavailable)
				return
			}

			if state.Expired {
				w.Header().Set("X-Session-Expired", "true")
				if opts.OnExpired != nil {
					opts.OnExpired(w, r)
				}
			}

			ctx := WithState(r.Context(), state)
			if state.Authenticated() {
				ctx = logging.WithAttrs(ctx,
					"session_id", state.Session.ID.String(),
					"user", state.Username(),
				)
			}

			ww := WrapResponseWriter(w)
			next.ServeHTTP(ww, r.WithContext(ctx))

			if mgr.IsPassive(path) {
				return
			}
			if err := mgr.RecordActivity(ctx, state, ww.Status()); err != nil {
				logging.FromContext(ctx).Warn("record session activity failed", "error", err)
			}
		})
	}
}

// RequireLogin rejects requests without an authenticated session. When
// enabled is false every request passes.
func RequireLogin(enabled bool, onDenied func(w http.ResponseWriter, r *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if enabled && !StateFrom(r.Context()).Authenticated() {
				onDenied(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
