package core

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"time"
)

// MsgIDExists is reported on the id field when a caller-supplied id is taken.
const MsgIDExists = "reject list with this id already exists."

// ErrIDsExhausted is returned when no id is left to assign.
var ErrIDsExhausted = errors.New("record ids exhausted")

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time

// MemoryStore is an in-process Store used by tests and STORE_BACKEND=memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[int64]*Record
	maxID   int64
	loc     *time.Location
	now     Clock
}

// NewMemoryStore creates an empty store stamping times in loc.
// A nil clock uses time.Now.
func NewMemoryStore(loc *time.Location, now Clock) *MemoryStore {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		records: make(map[int64]*Record),
		loc:     loc,
		now:     now,
	}
}

func (s *MemoryStore) stamp() time.Time {
	return s.now().In(s.loc).Truncate(time.Microsecond)
}

// Get returns a copy of the record with id.
func (s *MemoryStore) Get(ctx context.Context, id int64) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

// List returns copies of all records by ascending id.
func (s *MemoryStore) List(ctx context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, *rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Create inserts a record. A caller-supplied id must be unused; otherwise the
// next id after the highest one seen is assigned.
func (s *MemoryStore) Create(ctx context.Context, f Fields) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs ValidationErrors
	if err := ValidateLengths(f); err != nil {
		errs = append(errs, err.(ValidationErrors)...)
	}

	var id int64
	if f.ID.Set && f.ID.Value != nil {
		id = *f.ID.Value
		if id < 1 {
			errs = append(errs, ValidationError{Field: "id", Message: MsgIDTooSmall})
		} else if _, exists := s.records[id]; exists {
			errs = append(errs, ValidationError{Field: "id", Message: MsgIDExists})
		}
	} else {
		if s.maxID == math.MaxInt64 {
			return nil, ErrIDsExhausted
		}
		id = s.maxID + 1
	}
	if len(errs) > 0 {
		return nil, errs
	}

	now := s.stamp()
	rec := &Record{ID: id, CreatedAt: now, UpdatedAt: now}
	f.ApplyTo(rec)
	if rec.ProposalDate != nil {
		pd := rec.ProposalDate.Truncate(time.Microsecond)
		rec.ProposalDate = &pd
	}

	s.records[id] = rec
	if id > s.maxID {
		s.maxID = id
	}
	return rec.Clone(), nil
}

// Update merges f into the record. updated_at never moves backwards.
func (s *MemoryStore) Update(ctx context.Context, id int64, f Fields) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := ValidateLengths(f); err != nil {
		return nil, err
	}

	next := rec.Clone()
	f.ApplyTo(next)
	if now := s.stamp(); now.After(next.UpdatedAt) {
		next.UpdatedAt = now
	}
	s.records[id] = next
	return next.Clone(), nil
}

// Delete removes the record with id.
func (s *MemoryStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return ErrNotFound
	}
	delete(s.records, id)
	return nil
}

// HasDuplicate scans for a record matching key.
func (s *MemoryStore) HasDuplicate(ctx context.Context, key DuplicateKey) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records {
		if key.Matches(rec) {
			return true, nil
		}
	}
	return false, nil
}

