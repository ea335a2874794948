package core

import (
	"strings"
	"time"
)

// Record is one reject list entry.
//
// Optional attributes are pointers; nil renders as JSON null. Field order
// matches the API contract.
type Record struct {
	ID           int64      `json:"id"`
	Group        *string    `json:"group"`
	Name         *string    `json:"name"`
	ProposalDate *time.Time `json:"proposal_date"`
	Location     *string    `json:"location"`
	Follow       *string    `json:"follow"`
	Proprietor   *string    `json:"proprietor"`
	Mediator     *string    `json:"mediator"`
	ContactNo    *string    `json:"contact_no"`
	FileSeen     *string    `json:"file_seen"`
	Status       *string    `json:"status"`
	Reason       *string    `json:"reason"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Clone returns a deep copy so callers never share pointers with a store.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Group = clonePtr(r.Group)
	c.Name = clonePtr(r.Name)
	c.ProposalDate = clonePtr(r.ProposalDate)
	c.Location = clonePtr(r.Location)
	c.Follow = clonePtr(r.Follow)
	c.Proprietor = clonePtr(r.Proprietor)
	c.Mediator = clonePtr(r.Mediator)
	c.ContactNo = clonePtr(r.ContactNo)
	c.FileSeen = clonePtr(r.FileSeen)
	c.Status = clonePtr(r.Status)
	c.Reason = clonePtr(r.Reason)
	return &c
}

// In returns a copy with every timestamp expressed in loc.
func (r *Record) In(loc *time.Location) *Record {
	c := r.Clone()
	if loc == nil {
		return c
	}
	c.CreatedAt = c.CreatedAt.In(loc)
	c.UpdatedAt = c.UpdatedAt.In(loc)
	if c.ProposalDate != nil {
		pd := c.ProposalDate.In(loc)
		c.ProposalDate = &pd
	}
	return c
}

// DuplicateKey identifies a submission for duplicate detection.
// A nil attribute only matches a record where that attribute is also absent.
type DuplicateKey struct {
	Name         *string
	ContactNo    *string
	ProposalDate *time.Time
}

// Matches reports whether r has the same key: name compared case-insensitively,
// contact number exactly, proposal date as an instant.
func (k DuplicateKey) Matches(r *Record) bool {
	switch {
	case (k.Name == nil) != (r.Name == nil):
		return false
	case k.Name != nil && !strings.EqualFold(*k.Name, *r.Name):
		return false
	case (k.ContactNo == nil) != (r.ContactNo == nil):
		return false
	case k.ContactNo != nil && *k.ContactNo != *r.ContactNo:
		return false
	case (k.ProposalDate == nil) != (r.ProposalDate == nil):
		return false
	case k.ProposalDate != nil && !k.ProposalDate.Equal(*r.ProposalDate):
		return false
	}
	return true
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

