package core

// error_messages.go maps technical errors to user-facing messages with codes
// for support reference.
//
// # Error Codes Reference
//
// Records (REC001-REC099):
//
//	REC001 - Record not found
//	         Action: Refresh the list; the record may have been deleted
//
// Authentication (AUTH001-AUTH099):
//
//	AUTH001 - Invalid credentials
//	          Action: Check your username and password
//	          Patterns: "invalid credentials"
//	AUTH002 - Not logged in or session expired
//	          Action: Log in again
//	          Patterns: "authentication required", "session expired"
//
// Ingestion (ING001-ING099):
//
//	ING001 - Too many imports running
//	         Action: Please wait a moment and try again
//
// Database (DB001-DB099):
//
//	DB001 - Duplicate key        Patterns: "duplicate key", "violates unique"
//	DB002 - Connection refused   Patterns: "connection refused"
//	DB003 - Connection reset     Patterns: "connection reset"
//	DB004 - Timeout              Patterns: "timeout"
//	DB005 - Deadlock             Patterns: "deadlock"
//
// Requests (REQ001-REQ099):
//
//	REQ001 - Request cancelled
//	REQ002 - Request timed out
//	RATE001 - Too many requests  Patterns: "rate limit"
//
// Default:
//
//	ERR000 - An unexpected error occurred; check the logs for the request id
//
// Sentinel errors are matched with errors.Is before any pattern. Patterns are
// matched case-insensitively with strings.Contains and the first match wins,
// so specific patterns come before general ones.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgNotFound = UserMessage{
		Message: "Record not found",
		Action:  "Refresh the list; the record may have been deleted",
		Code:    "REC001",
	}
	msgInvalidCredentials = UserMessage{
		Message: "Invalid credentials",
		Action:  "Check your username and password",
		Code:    "AUTH001",
	}
	msgUnauthenticated = UserMessage{
		Message: "Authentication required",
		Action:  "Log in again",
		Code:    "AUTH002",
	}
	msgBusy = UserMessage{
		Message: "System is busy processing other imports",
		Action:  "Please wait a moment and try again",
		Code:    "ING001",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "REQ001",
	}
	msgDeadline = UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller batch or try again later",
		Code:    "REQ002",
	}
)

// sentinels are checked with errors.Is, in order.
var sentinels = []struct {
	err error
	msg UserMessage
}{
	{ErrNotFound, msgNotFound},
	{ErrTooManyImports, msgBusy},
	{context.Canceled, msgCancelled},
	{context.DeadlineExceeded, msgDeadline},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns covers errors from other packages and drivers that core
// cannot name directly.
var errorPatterns = []errorPattern{
	{pattern: "invalid credentials", msg: msgInvalidCredentials},
	{pattern: "authentication required", msg: msgUnauthenticated},
	{pattern: "session expired", msg: msgUnauthenticated},

	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this ID already exists",
			Action:  "Submit the record without an id or choose another one",
			Code:    "DB001",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "A record with this ID already exists",
			Action:  "Submit the record without an id or choose another one",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB002",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB003",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "DB004",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Returns an empty UserMessage for nil.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return s.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action" for CLI output.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
// The HTTP layer logs non-user-facing errors at error level.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
