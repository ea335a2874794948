// Package storage holds the PostgreSQL implementations of the record store and
// the user directory, plus the embedded schema migrations.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/rejectlist/internal/core"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

const (
	recordsTable      = "reject_client_details"
	pgUniqueViolation = "23505"
)

// recordColumns is the select list, in scan order.
var recordColumns = []string{
	"id", `"group"`, "name", "proposal_date", "location", "follow", "proprietor",
	"mediator", "contact_no", "file_seen", "status", "reason", "created_at", "updated_at",
}

// PostgresStore is a core.Store backed by the reject_client_details table.
type PostgresStore struct {
	pool *pgxpool.Pool
	loc  *time.Location
	now  core.Clock
}

// NewPostgresStore wraps pool. Timestamps are stamped in loc using now,
// which defaults to time.Now.
func NewPostgresStore(pool *pgxpool.Pool, loc *time.Location, now core.Clock) *PostgresStore {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &PostgresStore{pool: pool, loc: loc, now: now}
}

func (s *PostgresStore) stamp() time.Time {
	return s.now().In(s.loc).Truncate(time.Microsecond)
}

func selectRecords() string {
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(recordColumns, ", "), quoteIdentifier(recordsTable))
}

func scanRecord(row pgx.Row) (*core.Record, error) {
	var r core.Record
	err := row.Scan(
		&r.ID, &r.Group, &r.Name, &r.ProposalDate, &r.Location, &r.Follow, &r.Proprietor,
		&r.Mediator, &r.ContactNo, &r.FileSeen, &r.Status, &r.Reason, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *PostgresStore) collect(ctx context.Context, query string, args ...interface{}) ([]core.Record, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []core.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, *rec.In(s.loc))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return records, nil
}

// Get returns the record with id.
func (s *PostgresStore) Get(ctx context.Context, id int64) (*core.Record, error) {
	return s.get(ctx, s.pool, id, "")
}

func (s *PostgresStore) get(ctx context.Context, db DBTX, id int64, suffix string) (*core.Record, error) {
	rec, err := scanRecord(db.QueryRow(ctx, selectRecords()+" WHERE id = $1"+suffix, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec.In(s.loc), nil
}

// List returns every record by ascending id.
func (s *PostgresStore) List(ctx context.Context) ([]core.Record, error) {
	return s.collect(ctx, selectRecords()+" ORDER BY id")
}

// Search evaluates q in SQL.
func (s *PostgresStore) Search(ctx context.Context, q core.Query) ([]core.Record, error) {
	wb := NewWhereBuilder()
	wb.AddQuery(q)
	where, args := wb.Build()
	return s.collect(ctx, selectRecords()+where+" ORDER BY id", args...)
}

// Create inserts a record. A caller-supplied id is inserted as is and the id
// sequence is moved past it.
func (s *PostgresStore) Create(ctx context.Context, f core.Fields) (*core.Record, error) {
	var errs core.ValidationErrors
	if err := core.ValidateLengths(f); err != nil {
		errs = append(errs, err.(core.ValidationErrors)...)
	}

	explicitID := f.ID.Set && f.ID.Value != nil
	if explicitID && *f.ID.Value < 1 {
		errs = append(errs, core.ValidationError{Field: "id", Message: core.MsgIDTooSmall})
	} else if explicitID {
		var exists bool
		err := s.pool.QueryRow(ctx,
			fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1)", quoteIdentifier(recordsTable)),
			*f.ID.Value,
		).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("check id: %w", err)
		}
		if exists {
			errs = append(errs, core.ValidationError{Field: "id", Message: core.MsgIDExists})
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	now := s.stamp()
	rec := &core.Record{CreatedAt: now, UpdatedAt: now}
	f.ApplyTo(rec)

	cols := recordColumns[1:]
	args := recordArgs(rec)
	if explicitID {
		cols = recordColumns
		args = append([]interface{}{*f.ID.Value}, args...)
	}
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		quoteIdentifier(recordsTable), strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.QueryRow(ctx, query, args...).Scan(&rec.ID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, core.ValidationErrors{{Field: "id", Message: core.MsgIDExists}}
		}
		return nil, fmt.Errorf("insert record: %w", err)
	}
	if explicitID {
		_, err := tx.Exec(ctx, fmt.Sprintf(
			"SELECT setval(pg_get_serial_sequence('%s', 'id'), GREATEST((SELECT MAX(id) FROM %s), 1))",
			recordsTable, quoteIdentifier(recordsTable)))
		if err != nil {
			return nil, fmt.Errorf("advance id sequence: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// Update merges f into record id under a row lock. updated_at never moves
// backwards.
func (s *PostgresStore) Update(ctx context.Context, id int64, f core.Fields) (*core.Record, error) {
	if err := core.ValidateLengths(f); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rec, err := s.get(ctx, tx, id, " FOR UPDATE")
	if err != nil {
		return nil, err
	}
	f.ApplyTo(rec)
	if now := s.stamp(); now.After(rec.UpdatedAt) {
		rec.UpdatedAt = now
	}

	sets := make([]string, 0, len(recordColumns)-2)
	for i, col := range recordColumns[1 : len(recordColumns)-2] {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i+1))
	}
	args := recordArgs(rec)
	args = append(args[:len(args)-2], rec.UpdatedAt, id)
	query := fmt.Sprintf("UPDATE %s SET %s, updated_at = $%d WHERE id = $%d",
		quoteIdentifier(recordsTable), strings.Join(sets, ", "), len(args)-1, len(args))

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("update record: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// recordArgs returns the column values of rec in recordColumns order, id excluded.
func recordArgs(rec *core.Record) []interface{} {
	return []interface{}{
		rec.Group, rec.Name, rec.ProposalDate, rec.Location, rec.Follow, rec.Proprietor,
		rec.Mediator, rec.ContactNo, rec.FileSeen, rec.Status, rec.Reason, rec.CreatedAt, rec.UpdatedAt,
	}
}

// Delete removes record id.
func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE id = $1", quoteIdentifier(recordsTable)), id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

// HasDuplicate matches name case-insensitively, contact number exactly and
// proposal date as an instant. NULL matches only NULL.
func (s *PostgresStore) HasDuplicate(ctx context.Context, key core.DuplicateKey) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s
		WHERE lower(name) IS NOT DISTINCT FROM lower($1::text)
		  AND contact_no IS NOT DISTINCT FROM $2::text
		  AND proposal_date IS NOT DISTINCT FROM $3::timestamptz)`, quoteIdentifier(recordsTable))

	var exists bool
	if err := s.pool.QueryRow(ctx, query, key.Name, key.ContactNo, key.ProposalDate).Scan(&exists); err != nil {
		return false, fmt.Errorf("check duplicate: %w", err)
	}
	return exists, nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
