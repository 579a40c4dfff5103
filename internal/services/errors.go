package services

import (
	"errors"
	"fmt"

	"github.com/isdelr/ender-accounts-be/internal/auth"
	"github.com/isdelr/ender-accounts-be/internal/store"
	"github.com/samber/oops"
)

var (
	// ErrValidation marks missing or malformed caller input.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when the email is already taken.
	ErrConflict = errors.New("user already exists")

	// ErrUnauthorized is returned for bad credentials. Unknown email and wrong password are indistinguishable.
	ErrUnauthorized = errors.New("incorrect email or password")

	// ErrForbidden is returned when the caller lacks the privilege for an operation.
	ErrForbidden = errors.New("forbidden")

	// ErrAdminProtected is returned when deleting an admin account.
	ErrAdminProtected = fmt.Errorf("%w: cannot delete an admin", ErrForbidden)

	// ErrNotFound is returned when the referenced account does not exist.
	ErrNotFound = errors.New("user not found")
)

func validationErr(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// storeFailure translates store sentinels into service errors and wraps everything else.
func storeFailure(operation string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrDuplicateEmail):
		return ErrConflict
	default:
		return oops.Code("ACCOUNT_STORE_FAILED").With("operation", operation).Wrap(err)
	}
}

// hashFailure keeps input problems caller-fixable and propagates the rest.
func hashFailure(err error) error {
	if errors.Is(err, auth.ErrEmptyPassword) || errors.Is(err, auth.ErrPasswordTooLong) {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return oops.Code("ACCOUNT_HASH_FAILED").Wrap(err)
}
