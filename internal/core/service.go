package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/rejectlist/internal/logging"
)

// DefaultMaxBatchSize caps a bulk submission when ServiceConfig leaves it unset.
const DefaultMaxBatchSize = 5000

// ServiceConfig holds Service settings. Zero values pick defaults.
type ServiceConfig struct {
	Location             *time.Location // zone for rendered timestamps and naive dates
	MaxConcurrentImports int
	ImportWait           time.Duration
	MaxBatchSize         int
	Observer             IngestObserver
}

// Service is the entry point used by the HTTP layer and the CLI.
// It ties a Store to the ingestion engine and the query engine.
type Service struct {
	store    Store
	ingester *Ingester
	limiter  *IngestLimiter
	loc      *time.Location
	maxBatch int
}

// NewService creates a Service over store.
func NewService(store Store, cfg ServiceConfig) *Service {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	maxBatch := cfg.MaxBatchSize
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatchSize
	}
	return &Service{
		store:    store,
		ingester: NewIngester(store, cfg.Observer),
		limiter:  NewIngestLimiter(cfg.MaxConcurrentImports, cfg.ImportWait),
		loc:      loc,
		maxBatch: maxBatch,
	}
}

// Location returns the organizational time zone.
func (s *Service) Location() *time.Location { return s.loc }

// Decode parses one JSON object into Fields.
func (s *Service) Decode(data []byte) (Fields, error) {
	return DecodeFields(data, s.loc)
}

// DecodeBatch parses a JSON array. Elements that fail to decode become
// invalid BatchItems rather than failing the whole batch.
func (s *Service) DecodeBatch(data []byte) ([]BatchItem, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(data), &raws); err != nil {
		return nil, NewNonFieldError("JSON parse error - " + err.Error())
	}
	items := make([]BatchItem, len(raws))
	for i, raw := range raws {
		f, err := DecodeFields(raw, s.loc)
		items[i] = BatchItem{Fields: f, Invalid: err}
	}
	return items, nil
}

// Get returns the record with id.
func (s *Service) Get(ctx context.Context, id int64) (*Record, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get record %d: %w", id, err)
	}
	return rec.In(s.loc), nil
}

// List returns the records matching q by ascending id.
func (s *Service) List(ctx context.Context, q Query) ([]Record, error) {
	records, err := Find(ctx, s.store, q)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	for i := range records {
		records[i] = *records[i].In(s.loc)
	}
	return records, nil
}

// Create ingests a single record, skipping duplicates.
func (s *Service) Create(ctx context.Context, f Fields) (IngestResult, error) {
	res, err := s.ingester.IngestOne(ctx, f)
	if err != nil {
		return res, err
	}
	if res.Duplicate {
		logging.FromContext(ctx).Info("duplicate record ignored")
		return res, nil
	}
	res.Record = res.Record.In(s.loc)
	logging.FromContext(ctx).Info("record created", "id", res.Record.ID)
	return res, nil
}

// CreateBatch ingests items in order while holding an ingest slot.
// Batches over the size limit are rejected before any work happens.
func (s *Service) CreateBatch(ctx context.Context, items []BatchItem) (BatchResult, error) {
	if len(items) > s.maxBatch {
		return BatchResult{}, NewNonFieldError(
			fmt.Sprintf("Ensure this list has no more than %d elements.", s.maxBatch))
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return BatchResult{}, fmt.Errorf("create batch: %w", err)
	}
	defer s.limiter.Release()

	logger := logging.WithFields(ctx, "items", len(items))
	start := time.Now()

	res, err := s.ingester.IngestBatch(ctx, items)
	for i := range res.Created {
		res.Created[i] = *res.Created[i].In(s.loc)
	}
	if err != nil {
		logger.Error("batch ingest aborted",
			"created", res.CreatedCount,
			"skipped", res.SkippedCount,
			"error", err,
		)
		return res, fmt.Errorf("create batch: %w", err)
	}

	logger.Info("batch ingest completed",
		"created", res.CreatedCount,
		"skipped", res.SkippedCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// Update merges f into record id. The id itself is never changed.
func (s *Service) Update(ctx context.Context, id int64, f Fields) (*Record, error) {
	f.ID = Optional[int64]{}
	rec, err := s.store.Update(ctx, id, f)
	if err != nil {
		var verrs ValidationErrors
		if errors.As(err, &verrs) {
			return nil, err
		}
		return nil, fmt.Errorf("update record %d: %w", id, err)
	}
	logging.FromContext(ctx).Info("record updated", "id", id)
	return rec.In(s.loc), nil
}

// Delete removes record id.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete record %d: %w", id, err)
	}
	logging.FromContext(ctx).Info("record deleted", "id", id)
	return nil
}

// Ping checks the store's backing service, if it has one.
func (s *Service) Ping(ctx context.Context) error {
	if p, ok := s.store.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// ImportStatus reports ingest slot usage.
func (s *Service) ImportStatus() IngestLimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until running bulk ingests finish or ctx is done.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
