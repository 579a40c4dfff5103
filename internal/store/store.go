// Package store persists accounts. The core depends only on AccountStore;
// SQLStore backs it with SQLite or PostgreSQL through database/sql.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/isdelr/ender-accounts-be/internal/models"
	"github.com/samber/oops"
)

var (
	// ErrNotFound is returned when the referenced account does not exist.
	ErrNotFound = errors.New("account not found")

	// ErrDuplicateEmail is returned when a write collides with the unique email index.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrStore marks any other persistence failure.
	ErrStore = errors.New("store error")
)

// AccountStore defines the persistence operations the account core requires.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByID(ctx context.Context, id string) (*models.Account, error)
	Insert(ctx context.Context, account *models.Account) (*models.Account, error)
	Save(ctx context.Context, account *models.Account) (*models.Account, error)
	Delete(ctx context.Context, id string) error
	ListAll(ctx context.Context) ([]models.Account, error)
}

// storeErr wraps a driver failure so callers can match ErrStore without seeing driver details.
func storeErr(operation string, err error) error {
	return oops.Code("STORE_ERROR").
		With("operation", operation).
		Wrap(fmt.Errorf("%w: %w", ErrStore, err))
}
