package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is:
//   - Logged with full technical details, tagged with the request ID
//   - Returned as JSON with a user-friendly message and a support code
//
// Validation failures are the exception: their body is the field-to-messages
// map clients already render next to form inputs.

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/rejectlist/internal/auth"
	"github.com/JonMunkholm/rejectlist/internal/core"
	"github.com/JonMunkholm/rejectlist/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// errBadRequest marks malformed requests that are not field validation errors.
var errBadRequest = errors.New("bad request")

// isBadRequest reports malformed input that has no field to attach to.
func isBadRequest(err error) bool {
	var parseErr *csv.ParseError
	return errors.Is(err, errBadRequest) ||
		errors.Is(err, core.ErrEmptyFile) ||
		errors.Is(err, core.ErrNoRecognizedColumns) ||
		errors.As(err, &parseErr)
}

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	var verrs core.ValidationErrors
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &verrs):
		return http.StatusBadRequest
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case isBadRequest(err):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the matching JSON error response.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := core.MapError(err)

	logger := logging.FromContext(r.Context()).With(
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	)
	if status >= http.StatusInternalServerError && !core.IsUserFacing(err) {
		logger.Error("request error")
	} else {
		logger.Info("request rejected")
	}

	var verrs core.ValidationErrors
	if errors.As(err, &verrs) {
		writeJSON(w, http.StatusBadRequest, verrs)
		return
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(s.cfg.Ingest.MaxWaitTime.Seconds())))
	}
	respondErrorJSON(w, err, userMsg, status)
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, err error, msg core.UserMessage, status int) {
	body := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
	switch {
	case status == http.StatusRequestEntityTooLarge:
		body.Error = "Request body too large"
		body.Message = body.Error
	case isBadRequest(err):
		body.Error = err.Error()
		body.Message = body.Error
	}
	writeJSON(w, status, body)
}

// respondUnauthenticated rejects anonymous callers of protected routes.
func (s *Server) respondUnauthenticated(w http.ResponseWriter, r *http.Request) {
	s.respondError(w, r, auth.ErrUnauthenticated)
}

// respondRateLimited is the rate limiter's rejection handler.
func (s *Server) respondRateLimited(w http.ResponseWriter, r *http.Request) {
	logging.FromContext(r.Context()).Warn("rate limit exceeded", "ip", r.RemoteAddr, "path", r.URL.Path)
	writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
		Error:   "Too many requests",
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	})
}

// writeJSON encodes v as JSON with the given status.
// Logs nothing on encode failure since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func retryAfterSeconds(wait float64) int {
	if wait < 1 {
		return 1
	}
	return int(wait)
}
