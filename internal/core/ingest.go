package core

// ingest.go implements duplicate-aware record ingestion.
//
// A submission is a duplicate when a stored record has the same name
// (case-insensitive), contact number and proposal date. Duplicates are skipped
// without touching the store. The check and the insert are separate store
// calls, so two identical submissions racing each other can both persist.

import (
	"context"
	"errors"
	"fmt"
)

// Ingest outcomes reported to an IngestObserver.
const (
	OutcomeCreated   = "created"
	OutcomeDuplicate = "duplicate"
	OutcomeInvalid   = "invalid"
	OutcomeFailed    = "failed"
)

// IngestObserver receives one call per ingested item. Metrics implement it.
type IngestObserver interface {
	ObserveIngest(outcome string)
}

// IngestResult is the outcome of a single ingest: either Record is set or
// Duplicate is true.
type IngestResult struct {
	Record    *Record
	Duplicate bool
}

// BatchItem is one element of a bulk submission. Invalid carries the decode
// error of an element that could not be turned into Fields.
type BatchItem struct {
	Fields  Fields
	Invalid error
}

// BatchResult summarizes a bulk ingest. CreatedCount + SkippedCount always
// equals the number of items processed.
type BatchResult struct {
	CreatedCount int      `json:"created_count"`
	SkippedCount int      `json:"skipped_count"`
	Created      []Record `json:"created"`

	// Skipped holds the input positions that were not created.
	Skipped []int `json:"-"`
}

// Ingester inserts records unless an equivalent one already exists.
type Ingester struct {
	store    Store
	observer IngestObserver
}

// NewIngester creates an Ingester over store. observer may be nil.
func NewIngester(store Store, observer IngestObserver) *Ingester {
	return &Ingester{store: store, observer: observer}
}

// IsDuplicate reports whether a stored record matches the submission.
func (g *Ingester) IsDuplicate(ctx context.Context, f Fields) (bool, error) {
	dup, err := g.store.HasDuplicate(ctx, f.Key())
	if err != nil {
		return false, fmt.Errorf("duplicate check: %w", err)
	}
	return dup, nil
}

// IngestOne creates a record from f unless it duplicates an existing one.
// Validation failures are returned as ValidationErrors.
func (g *Ingester) IngestOne(ctx context.Context, f Fields) (IngestResult, error) {
	dup, err := g.IsDuplicate(ctx, f)
	if err != nil {
		g.observe(OutcomeFailed)
		return IngestResult{}, err
	}
	if dup {
		g.observe(OutcomeDuplicate)
		return IngestResult{Duplicate: true}, nil
	}

	rec, err := g.store.Create(ctx, f)
	if err != nil {
		var verrs ValidationErrors
		if errors.As(err, &verrs) {
			g.observe(OutcomeInvalid)
		} else {
			g.observe(OutcomeFailed)
		}
		return IngestResult{}, err
	}
	g.observe(OutcomeCreated)
	return IngestResult{Record: rec}, nil
}

// IngestBatch ingests items in order. Each item is checked against the store
// as it stands, so an item duplicating an earlier one in the same batch is
// skipped. Invalid items are skipped. Nothing already created is rolled back.
//
// An infrastructure error stops the batch; the partial result is returned
// alongside it.
func (g *Ingester) IngestBatch(ctx context.Context, items []BatchItem) (BatchResult, error) {
	result := BatchResult{Created: make([]Record, 0, len(items))}

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if item.Invalid != nil {
			g.observe(OutcomeInvalid)
			result.skip(i)
			continue
		}

		res, err := g.IngestOne(ctx, item.Fields)
		if err != nil {
			var verrs ValidationErrors
			if errors.As(err, &verrs) {
				result.skip(i)
				continue
			}
			return result, fmt.Errorf("batch item %d: %w", i, err)
		}
		if res.Duplicate {
			result.skip(i)
			continue
		}
		result.CreatedCount++
		result.Created = append(result.Created, *res.Record)
	}

	return result, nil
}

func (r *BatchResult) skip(i int) {
	r.SkippedCount++
	r.Skipped = append(r.Skipped, i)
}

func (g *Ingester) observe(outcome string) {
	if g.observer != nil {
		g.observer.ObserveIngest(outcome)
	}
}
