package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/JonMunkholm/rejectlist/internal/auth"
)

// SQLTX is the subset of database/sql used by UserDirectory.
// Both *sql.DB and *sql.Tx satisfy this interface.
type SQLTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn in a transaction, committing on success and rolling back on
// error or panic.
func withTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx SQLTX) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	return fn(ctx, tx)
}

// UserDirectory authenticates against the users and user_groups tables.
type UserDirectory struct {
	db *sql.DB
}

// NewUserDirectory returns a directory over db.
func NewUserDirectory(db *sql.DB) *UserDirectory {
	return &UserDirectory{db: db}
}

// Authenticate checks username and password and loads the user's role facts.
func (d *UserDirectory) Authenticate(ctx context.Context, username, password string) (auth.Identity, error) {
	var (
		userID int64
		hash   string
		id     = auth.Identity{Username: username}
	)
	err := d.db.QueryRowContext(ctx,
		`SELECT id, password_hash, is_superuser, is_staff FROM users WHERE username = $1`,
		username,
	).Scan(&userID, &hash, &id.IsSuperuser, &id.IsStaff)
	if errors.Is(err, sql.ErrNoRows) {
		auth.BurnPasswordCheck(password)
		return auth.Identity{}, auth.ErrInvalidCredentials
	}
	if err != nil {
		return auth.Identity{}, fmt.Errorf("db error: %w", err)
	}

	ok, err := auth.CheckPassword(hash, password)
	if err != nil {
		return auth.Identity{}, fmt.Errorf("check password: %w", err)
	}
	if !ok {
		return auth.Identity{}, auth.ErrInvalidCredentials
	}

	id.Groups, err = userGroups(ctx, d.db, userID)
	if err != nil {
		return auth.Identity{}, err
	}
	return id, nil
}

func userGroups(ctx context.Context, db SQLTX, userID int64) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT group_name FROM user_groups WHERE user_id = $1 ORDER BY group_name`, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	groups := []string{}
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// PutUser creates the user or replaces the password, flags and groups of an
// existing one.
func (d *UserDirectory) PutUser(ctx context.Context, u auth.UserSpec) error {
	if err := u.Validate(); err != nil {
		return err
	}
	hash, err := auth.HashPassword(u.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return withTx(ctx, d.db, func(ctx context.Context, tx SQLTX) error {
		var userID int64
		err := tx.QueryRowContext(ctx,
			`INSERT INTO users (username, password_hash, is_superuser, is_staff)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (username) DO UPDATE
			 SET password_hash = EXCLUDED.password_hash,
			     is_superuser = EXCLUDED.is_superuser,
			     is_staff = EXCLUDED.is_staff
			 RETURNING id`,
			u.Username, hash, u.IsSuperuser, u.IsStaff,
		).Scan(&userID)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM user_groups WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		for _, g := range u.Groups {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO user_groups (user_id, group_name) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				userID, g,
			); err != nil {
				return fmt.Errorf("db error: %w", err)
			}
		}
		return nil
	})
}

// UserExists reports whether username is present.
func (d *UserDirectory) UserExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}
