package core

// fields.go decodes client write payloads into tri-state Fields.
//
// Every attribute is absent, explicitly null, or carries a value, so a partial
// update can tell "leave unchanged" apart from "clear". Decoding collects all
// type errors before returning. Length limits are not checked here; stores
// call ValidateLengths so the duplicate check sees the submitted values first.

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Messages reported by DecodeFields.
const (
	msgNotAString     = "Not a valid string."
	msgNotAnInteger   = "A valid integer is required."
	msgInvalidPayload = "Invalid data. Expected a dictionary, but got %s."
	msgBadDatetime    = "Datetime has wrong format. Use one of these formats instead: YYYY-MM-DDThh:mm[:ss[.uuuuuu]][+HH:MM|-HH:MM|Z]."
)

// Optional is a tri-state value: unset, set to null (Value == nil), or set.
type Optional[T any] struct {
	Set   bool
	Value *T
}

// Some returns a set Optional holding v.
func Some[T any](v T) Optional[T] { return Optional[T]{Set: true, Value: &v} }

// Null returns a set Optional with no value.
func Null[T any]() Optional[T] { return Optional[T]{Set: true} }

// Fields is a decoded, possibly partial, record write.
type Fields struct {
	ID           Optional[int64]
	Group        Optional[string]
	Name         Optional[string]
	ProposalDate Optional[time.Time]
	Location     Optional[string]
	Follow       Optional[string]
	Proprietor   Optional[string]
	Mediator     Optional[string]
	ContactNo    Optional[string]
	FileSeen     Optional[string]
	Status       Optional[string]
	Reason       Optional[string]
}

// FieldSpec describes one text attribute of a record.
type FieldSpec struct {
	Name      string // JSON key and CSV header
	Column    string // Database column
	MaxLength int    // 0 means unbounded
	Text      func(*Fields) *Optional[string]
	Value     func(*Record) **string
}

// FieldSpecs lists the text attributes in API order.
var FieldSpecs = []FieldSpec{
	{Name: "group", Column: `"group"`, MaxLength: 100,
		Text: func(f *Fields) *Optional[string] { return &f.Group }, Value: func(r *Record) **string { return &r.Group }},
	{Name: "name", Column: "name", MaxLength: 225,
		Text: func(f *Fields) *Optional[string] { return &f.Name }, Value: func(r *Record) **string { return &r.Name }},
	{Name: "location", Column: "location", MaxLength: 100,
		Text: func(f *Fields) *Optional[string] { return &f.Location }, Value: func(r *Record) **string { return &r.Location }},
	{Name: "follow", Column: "follow", MaxLength: 100,
		Text: func(f *Fields) *Optional[string] { return &f.Follow }, Value: func(r *Record) **string { return &r.Follow }},
	{Name: "proprietor", Column: "proprietor", MaxLength: 100,
		Text: func(f *Fields) *Optional[string] { return &f.Proprietor }, Value: func(r *Record) **string { return &r.Proprietor }},
	{Name: "mediator", Column: "mediator", MaxLength: 100,
		Text: func(f *Fields) *Optional[string] { return &f.Mediator }, Value: func(r *Record) **string { return &r.Mediator }},
	{Name: "contact_no", Column: "contact_no", MaxLength: 20,
		Text: func(f *Fields) *Optional[string] { return &f.ContactNo }, Value: func(r *Record) **string { return &r.ContactNo }},
	{Name: "file_seen", Column: "file_seen", MaxLength: 10,
		Text: func(f *Fields) *Optional[string] { return &f.FileSeen }, Value: func(r *Record) **string { return &r.FileSeen }},
	{Name: "status", Column: "status", MaxLength: 50,
		Text: func(f *Fields) *Optional[string] { return &f.Status }, Value: func(r *Record) **string { return &r.Status }},
	{Name: "reason", Column: "reason",
		Text: func(f *Fields) *Optional[string] { return &f.Reason }, Value: func(r *Record) **string { return &r.Reason }},
}

// LookupFieldSpec finds a text attribute by name, case-insensitively.
func LookupFieldSpec(name string) (FieldSpec, bool) {
	for _, spec := range FieldSpecs {
		if strings.EqualFold(spec.Name, name) {
			return spec, true
		}
	}
	return FieldSpec{}, false
}

// MsgIDTooSmall is reported on the id field for ids below 1.
const MsgIDTooSmall = "Ensure this value is greater than or equal to 1."

// DecodeFields parses a JSON object into Fields. Naive proposal dates are
// interpreted in loc. Unknown keys, created_at and updated_at are ignored.
// The returned error, if any, is ValidationErrors.
func DecodeFields(data []byte, loc *time.Location) (Fields, error) {
	var f Fields
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return f, NewNonFieldError(fmt.Sprintf(msgInvalidPayload, jsonTypeName(data)))
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return f, NewNonFieldError("JSON parse error - " + err.Error())
	}
	return decodeObject(raw, loc)
}

func decodeObject(raw map[string]json.RawMessage, loc *time.Location) (Fields, error) {
	var f Fields
	var errs ValidationErrors

	if v, ok := raw["id"]; ok {
		id, err := decodeID(v)
		switch {
		case err != nil:
			errs.Add("id", msgNotAnInteger)
		case id.Value != nil && *id.Value < 1:
			errs.Add("id", MsgIDTooSmall)
		default:
			f.ID = id
		}
	}

	for _, spec := range FieldSpecs {
		v, ok := raw[spec.Name]
		if !ok {
			continue
		}
		text, valid := decodeText(v)
		if !valid {
			errs.Add(spec.Name, msgNotAString)
			continue
		}
		*spec.Text(&f) = text
	}

	if v, ok := raw["proposal_date"]; ok {
		pd, valid := decodeDateTime(v, loc)
		if !valid {
			errs.Add("proposal_date", msgBadDatetime)
		} else {
			f.ProposalDate = pd
		}
	}

	return f, errs.Err()
}

func decodeID(raw json.RawMessage) (Optional[int64], error) {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return Null[int64](), nil
	}
	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return Optional[int64]{}, err
		}
		s = strings.TrimSpace(s)
	} else {
		s = string(raw)
	}
	if s == "" {
		return Null[int64](), nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// JSON numbers such as 7.0 are accepted when integral.
		fl, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || fl != float64(int64(fl)) {
			return Optional[int64]{}, err
		}
		id = int64(fl)
	}
	return Some(id), nil
}

func decodeText(raw json.RawMessage) (Optional[string], bool) {
	raw = bytes.TrimSpace(raw)
	switch {
	case isNull(raw):
		return Null[string](), true
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Optional[string]{}, false
		}
		return Some(strings.TrimSpace(s)), true
	case raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9'):
		return Some(string(raw)), true
	default:
		return Optional[string]{}, false
	}
}

func decodeDateTime(raw json.RawMessage, loc *time.Location) (Optional[time.Time], bool) {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return Null[time.Time](), true
	}
	if raw[0] != '"' {
		return Optional[time.Time]{}, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return Optional[time.Time]{}, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return Null[time.Time](), true
	}
	t, ok := ParseDateTime(s, loc)
	if !ok {
		return Optional[time.Time]{}, false
	}
	return Some(t), true
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseDateTime accepts RFC 3339 and the naive layouts above, interpreting
// naive values in loc. Results are truncated to microseconds.
func ParseDateTime(s string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.Truncate(time.Microsecond), true
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.Truncate(time.Microsecond), true
		}
	}
	return time.Time{}, false
}

func isNull(raw []byte) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func jsonTypeName(data []byte) string {
	if len(data) == 0 {
		return "NoneType"
	}
	switch c := data[0]; {
	case c == '[':
		return "list"
	case c == '"':
		return "str"
	case c == 't' || c == 'f':
		return "bool"
	case c == 'n':
		return "NoneType"
	case bytes.ContainsAny(data, ".eE"):
		return "float"
	default:
		return "int"
	}
}

// ApplyTo merges every set attribute into r. ID is never touched.
func (f *Fields) ApplyTo(r *Record) {
	for _, spec := range FieldSpecs {
		opt := spec.Text(f)
		if opt.Set {
			*spec.Value(r) = clonePtr(opt.Value)
		}
	}
	if f.ProposalDate.Set {
		r.ProposalDate = clonePtr(f.ProposalDate.Value)
	}
}

// Key returns the duplicate key of the submission; unset attributes count as null.
func (f *Fields) Key() DuplicateKey {
	return DuplicateKey{
		Name:         f.Name.Value,
		ContactNo:    f.ContactNo.Value,
		ProposalDate: f.ProposalDate.Value,
	}
}
