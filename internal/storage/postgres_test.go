package storage

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/rejectlist/internal/auth"
	"github.com/JonMunkholm/rejectlist/internal/core"
)

var ist = time.FixedZone("IST", 19800)

// newTestPool connects to TEST_DATABASE_URL, migrates, and empties the tables.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, MigratePool(ctx, pool))
	_, err = pool.Exec(ctx, "TRUNCATE reject_client_details RESTART IDENTITY")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, "TRUNCATE users CASCADE")
	require.NoError(t, err)
	return pool
}

func TestPostgresStore_CRUD(t *testing.T) {
	pool := newTestPool(t)
	store := NewPostgresStore(pool, ist, nil)
	ctx := context.Background()

	created, err := store.Create(ctx, core.Fields{
		Name:         core.Some("Acme"),
		ContactNo:    core.Some("555"),
		Status:       core.Some("OPEN"),
		ProposalDate: core.Some(time.Date(2024, 1, 1, 0, 0, 0, 0, ist)),
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), created.ID)

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Acme", *got.Name)
	require.True(t, got.CreatedAt.Equal(created.CreatedAt))

	explicit, err := store.Create(ctx, core.Fields{ID: core.Some[int64](10), Name: core.Some("Ten")})
	require.NoError(t, err)
	require.Equal(t, int64(10), explicit.ID)

	next, err := store.Create(ctx, core.Fields{Name: core.Some("Next")})
	require.NoError(t, err)
	require.Equal(t, int64(11), next.ID)

	_, err = store.Create(ctx, core.Fields{ID: core.Some[int64](10)})
	var verrs core.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	require.Equal(t, []string{core.MsgIDExists}, verrs.Fields()["id"])

	updated, err := store.Update(ctx, created.ID, core.Fields{Status: core.Some("CLOSED")})
	require.NoError(t, err)
	require.Equal(t, "CLOSED", *updated.Status)
	require.Equal(t, "555", *updated.ContactNo)
	require.False(t, updated.UpdatedAt.Before(created.UpdatedAt))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, int64(1), list[0].ID)

	require.NoError(t, store.Delete(ctx, explicit.ID))
	require.ErrorIs(t, store.Delete(ctx, explicit.ID), core.ErrNotFound)
	_, err = store.Get(ctx, explicit.ID)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestPostgresStore_HasDuplicate(t *testing.T) {
	pool := newTestPool(t)
	store := NewPostgresStore(pool, ist, nil)
	ctx := context.Background()

	pd := time.Date(2024, 1, 1, 0, 0, 0, 0, ist)
	_, err := store.Create(ctx, core.Fields{Name: core.Some("Acme"), ContactNo: core.Some("555"), ProposalDate: core.Some(pd)})
	require.NoError(t, err)

	utc := pd.UTC()
	dup, err := store.HasDuplicate(ctx, core.DuplicateKey{Name: strPtr("ACME"), ContactNo: strPtr("555"), ProposalDate: &utc})
	require.NoError(t, err)
	require.True(t, dup)

	dup, err = store.HasDuplicate(ctx, core.DuplicateKey{Name: strPtr("Acme"), ContactNo: strPtr("555")})
	require.NoError(t, err)
	require.False(t, dup, "absent date only matches absent date")
}

func TestPostgresStore_SearchMatchesFilter(t *testing.T) {
	pool := newTestPool(t)
	store := NewPostgresStore(pool, ist, nil)
	ctx := context.Background()

	for _, f := range []core.Fields{
		{Name: core.Some("Acme Corp"), Status: core.Some("OPEN"), Location: core.Some("Pune")},
		{Name: core.Some("Zenith"), Status: core.Some("closed"), Reason: core.Some("50% off")},
		{Name: core.Some("acme east"), Status: core.Some("Closed"), Group: core.Some("North")},
	} {
		_, err := store.Create(ctx, f)
		require.NoError(t, err)
	}

	all, err := store.List(ctx)
	require.NoError(t, err)

	for _, q := range []core.Query{
		{Search: "acme"},
		{Search: "%"},
		{Search: "north"},
		{Status: "CLOSED"},
		{Status: core.StatusAll, Name: "ACME"},
		{Search: "pune", Status: "open"},
	} {
		got, err := store.Search(ctx, q)
		require.NoError(t, err)
		want := core.Filter(all, q)
		require.Equal(t, recordIDs(want), recordIDs(got), "query %+v", q)
	}
}

func TestUserDirectory_Postgres(t *testing.T) {
	pool := newTestPool(t)
	db := OpenDB(pool)
	defer db.Close()
	dir := NewUserDirectory(db)
	ctx := context.Background()

	require.NoError(t, dir.PutUser(ctx, auth.UserSpec{Username: "lead", Password: "pw", Groups: []string{"Team Lead"}}))
	require.NoError(t, dir.PutUser(ctx, auth.UserSpec{Username: "lead", Password: "pw2", Groups: []string{"Team Lead"}}))

	id, err := dir.Authenticate(ctx, "lead", "pw2")
	require.NoError(t, err)
	require.Equal(t, []string{"Team Lead"}, id.Groups)

	_, err = dir.Authenticate(ctx, "lead", "pw")
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)

	exists, err := dir.UserExists(ctx, "lead")
	require.NoError(t, err)
	require.True(t, exists)
}

func recordIDs(records []core.Record) []int64 {
	ids := make([]int64, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids
}

func strPtr(s string) *string { return &s }
