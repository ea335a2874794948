// Package core provides the business logic of the reject list service.
// This package has no transport dependencies and can be used by any frontend.
package core

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("record not found")

// Store is the persistence-agnostic accessor over reject list records.
//
// Implementations must be safe for concurrent use and return copies that the
// caller may modify freely. Create and Update return ValidationErrors for
// rejected input and stamp created_at/updated_at themselves.
type Store interface {
	Get(ctx context.Context, id int64) (*Record, error)
	// List returns every record ordered by ascending id.
	List(ctx context.Context) ([]Record, error)
	Create(ctx context.Context, f Fields) (*Record, error)
	// Update merges the set attributes of f into the record. The id is never changed.
	Update(ctx context.Context, id int64, f Fields) (*Record, error)
	Delete(ctx context.Context, id int64) error
	// HasDuplicate reports whether a record matches key.
	HasDuplicate(ctx context.Context, key DuplicateKey) (bool, error)
}

// Searcher is implemented by stores that can evaluate a Query themselves.
// Results must equal Filter(List(), q).
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Record, error)
}

// Pinger is implemented by stores with a remote dependency worth probing.
type Pinger interface {
	Ping(ctx context.Context) error
}
