package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrInvalidCredentials is returned for an unknown user or a wrong password.
// The two cases are indistinguishable to callers.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Authenticator verifies credentials and returns the principal's role facts.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (Identity, error)
}

// UserSpec describes a user to create or reset.
type UserSpec struct {
	Username    string
	Password    string
	IsSuperuser bool
	IsStaff     bool
	Groups      []string
}

// Validate checks the fields every directory requires.
func (u UserSpec) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return errors.New("username is required")
	}
	if u.Password == "" {
		return errors.New("password is required")
	}
	return nil
}

// UserWriter creates a user, replacing the password and role facts of an
// existing one with the same username.
type UserWriter interface {
	PutUser(ctx context.Context, u UserSpec) error
}

type memoryUser struct {
	hash     string
	identity Identity
}

// MemoryDirectory is an in-process user directory with bcrypt hashes.
type MemoryDirectory struct {
	mu    sync.RWMutex
	users map[string]memoryUser
}

// NewMemoryDirectory returns an empty directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{users: make(map[string]memoryUser)}
}

// PutUser adds or replaces a user.
func (d *MemoryDirectory) PutUser(ctx context.Context, u UserSpec) error {
	if err := u.Validate(); err != nil {
		return err
	}
	hash, err := HashPassword(u.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.Username] = memoryUser{
		hash: hash,
		identity: Identity{
			Username:    u.Username,
			IsSuperuser: u.IsSuperuser,
			IsStaff:     u.IsStaff,
			Groups:      append([]string(nil), u.Groups...),
		},
	}
	return nil
}

// Authenticate checks username and password.
func (d *MemoryDirectory) Authenticate(ctx context.Context, username, password string) (Identity, error) {
	d.mu.RLock()
	user, ok := d.users[username]
	d.mu.RUnlock()

	if !ok {
		BurnPasswordCheck(password)
		return Identity{}, ErrInvalidCredentials
	}
	match, err := CheckPassword(user.hash, password)
	if err != nil {
		return Identity{}, fmt.Errorf("check password: %w", err)
	}
	if !match {
		return Identity{}, ErrInvalidCredentials
	}

	id := user.identity
	id.Groups = append([]string(nil), id.Groups...)
	return id, nil
}
