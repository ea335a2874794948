package core

// validation.go provides field-level validation errors for record writes.
//
// Errors accumulate per field so a client sees every problem at once. The JSON
// form is a map from field name to messages, with errors that belong to no
// single field under "non_field_errors":
//
//	{"name": ["Ensure this field has no more than 225 characters."],
//	 "non_field_errors": ["Invalid data."]}

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// NonFieldErrors is the key used for errors not tied to a field.
const NonFieldErrors = "non_field_errors"

// ValidationError represents a single validation error for a field.
type ValidationError struct {
	Field   string // Field name, empty for non-field errors
	Value   string // The invalid value, if useful for logs
	Message string // Human-readable error message
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidationErrors is the error returned for rejected writes.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add appends an error for field.
func (v *ValidationErrors) Add(field, message string) {
	*v = append(*v, ValidationError{Field: field, Message: message})
}

// Err returns v as an error, or nil when empty.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// Fields groups messages by field in insertion order.
func (v ValidationErrors) Fields() map[string][]string {
	out := make(map[string][]string, len(v))
	for _, e := range v {
		key := e.Field
		if key == "" {
			key = NonFieldErrors
		}
		out[key] = append(out[key], e.Message)
	}
	return out
}

// MarshalJSON renders the field map.
func (v ValidationErrors) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Fields())
}

// NewNonFieldError builds a ValidationErrors holding one non-field message.
func NewNonFieldError(message string) ValidationErrors {
	return ValidationErrors{{Message: message}}
}

// ValidateLengths checks every present text value against its column limit.
// Lengths are counted in characters, not bytes.
func ValidateLengths(f Fields) error {
	var errs ValidationErrors
	for _, spec := range FieldSpecs {
		if spec.MaxLength == 0 || spec.Text == nil {
			continue
		}
		opt := spec.Text(&f)
		if !opt.Set || opt.Value == nil {
			continue
		}
		if utf8.RuneCountInString(*opt.Value) > spec.MaxLength {
			errs = append(errs, ValidationError{
				Field:   spec.Name,
				Value:   *opt.Value,
				Message: fmt.Sprintf("Ensure this field has no more than %d characters.", spec.MaxLength),
			})
		}
	}
	return errs.Err()
}
