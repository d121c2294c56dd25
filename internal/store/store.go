// Package store is the narrow persistence interface the account services use,
// with a database/sql implementation for SQLite and PostgreSQL.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/isdelr/ender-accounts/internal/models"
)

var (
	ErrNotFound = errors.New("account not found")
	ErrConflict = errors.New("account already exists")
	// ErrStale reports a conditional update whose precondition no longer holds.
	ErrStale = errors.New("account changed concurrently")
)

// Order selects the canonical ordering of ListPage.
type Order int

const (
	OrderByIDAsc Order = iota
)

// Patch is a partial account update. Only the fields listed here can be
// written after creation; id, login name and role have no patch field.
type Patch struct {
	Profile        *models.ProfilePatch
	CredentialHash *string
	// ExpectCredentialHash makes the update conditional on the stored hash.
	ExpectCredentialHash *string
	UpdatedAt            time.Time
}

func (p Patch) empty() bool {
	return (p.Profile == nil || p.Profile.Empty()) && p.CredentialHash == nil
}

// AccountStore reads and writes account records. Every mutation is a single
// atomic call.
type AccountStore interface {
	FindByLogin(ctx context.Context, loginName string) (models.Account, error)
	FindByID(ctx context.Context, id string) (models.Account, error)
	// Insert fails with ErrConflict when the login name or id is taken.
	Insert(ctx context.Context, account models.Account) (models.Account, error)
	UpdateFields(ctx context.Context, id string, patch Patch) (models.Account, error)
	CountAll(ctx context.Context) (int, error)
	ListPage(ctx context.Context, offset, limit int, order Order) ([]models.Account, error)
}
