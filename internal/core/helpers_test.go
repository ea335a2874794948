package core

import "time"

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func StringPtr(s string) *string { return &s }

func TimePtr(t time.Time) *time.Time { return &t }
