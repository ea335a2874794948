package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func newTestService(t *testing.T, maxBatch int) *Service {
	t.Helper()
	return NewService(NewMemoryStore(ist, nil), ServiceConfig{
		Location:             ist,
		MaxConcurrentImports: 1,
		ImportWait:           20 * time.Millisecond,
		MaxBatchSize:         maxBatch,
	})
}

func TestService_DecodeBatch(t *testing.T) {
	svc := newTestService(t, 10)

	items, err := svc.DecodeBatch([]byte(`[{"name":"A"}, 42, {"name":true}]`))
	if err != nil {
		t.Fatalf("DecodeBatch error = %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len(items) = %d, want 3", len(items))
	}
	if items[0].Invalid != nil {
		t.Errorf("item 0 should be valid: %v", items[0].Invalid)
	}
	if items[1].Invalid == nil || items[2].Invalid == nil {
		t.Error("items 1 and 2 should be invalid")
	}
}

func TestService_CreateBatchScenario(t *testing.T) {
	svc := newTestService(t, 10)
	ctx := context.Background()

	seed, err := svc.Decode([]byte(`{"name":"Acme","contact_no":"555","proposal_date":"2024-01-01"}`))
	if err != nil {
		t.Fatalf("Decode error = %v", err)
	}
	if _, err := svc.Create(ctx, seed); err != nil {
		t.Fatalf("Create error = %v", err)
	}

	items, err := svc.DecodeBatch([]byte(`[
		{"name":"acme","contact_no":"555","proposal_date":"2024-01-01"},
		{"name":"Zenith","contact_no":"777"},
		{"name":"ZENITH","contact_no":"777"}
	]`))
	if err != nil {
		t.Fatalf("DecodeBatch error = %v", err)
	}

	res, err := svc.CreateBatch(ctx, items)
	if err != nil {
		t.Fatalf("CreateBatch error = %v", err)
	}
	if res.CreatedCount != 1 || res.SkippedCount != 2 {
		t.Errorf("created=%d skipped=%d, want 1 and 2", res.CreatedCount, res.SkippedCount)
	}
}

func TestService_CreateBatchTooLarge(t *testing.T) {
	svc := newTestService(t, 2)

	_, err := svc.CreateBatch(context.Background(), make([]BatchItem, 3))
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("error = %v, want ValidationErrors", err)
	}
	if msgs := verrs.Fields()[NonFieldErrors]; len(msgs) != 1 {
		t.Errorf("non_field_errors = %v", msgs)
	}
}

func TestService_CreateBatchBusy(t *testing.T) {
	svc := newTestService(t, 10)
	if err := svc.limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire error = %v", err)
	}
	defer svc.limiter.Release()

	_, err := svc.CreateBatch(context.Background(), []BatchItem{{Fields: acme()}})
	if !errors.Is(err, ErrTooManyImports) {
		t.Errorf("error = %v, want ErrTooManyImports", err)
	}
	if got := MapError(err).Code; got != "ING001" {
		t.Errorf("MapError code = %q, want ING001", got)
	}
}

func TestService_UpdateIgnoresID(t *testing.T) {
	svc := newTestService(t, 10)
	ctx := context.Background()

	res, err := svc.Create(ctx, acme())
	if err != nil {
		t.Fatalf("Create error = %v", err)
	}
	id := res.Record.ID

	f, err := svc.Decode([]byte(fmt.Sprintf(`{"id":%d,"status":"CLOSED"}`, id+100)))
	if err != nil {
		t.Fatalf("Decode error = %v", err)
	}
	updated, err := svc.Update(ctx, id, f)
	if err != nil {
		t.Fatalf("Update error = %v", err)
	}
	if updated.ID != id {
		t.Errorf("ID = %d, want %d", updated.ID, id)
	}
	if _, err := svc.Get(ctx, id+100); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(id+100) error = %v, want ErrNotFound", err)
	}
}

func TestService_ListRendersInLocation(t *testing.T) {
	svc := newTestService(t, 10)
	ctx := context.Background()

	if _, err := svc.Create(ctx, acme()); err != nil {
		t.Fatalf("Create error = %v", err)
	}
	list, err := svc.List(ctx, Query{Status: StatusAll})
	if err != nil {
		t.Fatalf("List error = %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len(list) = %d, want 1", len(list))
	}
	if list[0].CreatedAt.Location() != ist {
		t.Errorf("CreatedAt zone = %v, want IST", list[0].CreatedAt.Location())
	}
}
