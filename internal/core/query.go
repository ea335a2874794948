package core

import (
	"context"
	"strings"
)

// StatusAll disables the status filter. Only this exact spelling does.
const StatusAll = "ALL"

// Query holds the optional list filters. Empty values do not filter.
type Query struct {
	Search string // substring of any searchable attribute
	Status string // case-insensitive exact status, or StatusAll
	Name   string // substring of name
}

// SearchFields are the attributes Query.Search looks at.
var SearchFields = []string{"name", "location", "follow", "status", "reason", "group", "proprietor"}

// HasStatus reports whether the status filter is active.
func (q Query) HasStatus() bool {
	return q.Status != "" && q.Status != StatusAll
}

// IsZero reports whether q filters nothing.
func (q Query) IsZero() bool {
	return q.Search == "" && q.Name == "" && !q.HasStatus()
}

// Matches reports whether r passes every active filter.
func (q Query) Matches(r *Record) bool {
	if q.Search != "" && !q.matchesSearch(r) {
		return false
	}
	if q.HasStatus() && (r.Status == nil || !strings.EqualFold(*r.Status, q.Status)) {
		return false
	}
	if q.Name != "" && !containsFold(r.Name, q.Name) {
		return false
	}
	return true
}

func (q Query) matchesSearch(r *Record) bool {
	for _, name := range SearchFields {
		spec, ok := LookupFieldSpec(name)
		if !ok {
			continue
		}
		if containsFold(*spec.Value(r), q.Search) {
			return true
		}
	}
	return false
}

func containsFold(v *string, sub string) bool {
	if v == nil {
		return false
	}
	return strings.Contains(strings.ToLower(*v), strings.ToLower(sub))
}

// Filter returns the records matching q, preserving order.
func Filter(records []Record, q Query) []Record {
	if q.IsZero() {
		return records
	}
	out := make([]Record, 0, len(records))
	for i := range records {
		if q.Matches(&records[i]) {
			out = append(out, records[i])
		}
	}
	return out
}

// Find evaluates q against s, pushing it down when s implements Searcher.
func Find(ctx context.Context, s Store, q Query) ([]Record, error) {
	if searcher, ok := s.(Searcher); ok && !q.IsZero() {
		return searcher.Search(ctx, q)
	}
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(records, q), nil
}
