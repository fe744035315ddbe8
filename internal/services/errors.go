package services

import (
	"database/sql"
	"errors"
	"fmt"

	"talent/internal/db"
)

var (
	ErrValidation    = errors.New("validation failed")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrConflict      = errors.New("conflict")
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// translateErr maps storage failures onto the service error kinds. Errors
// that already carry a service kind pass through unchanged.
func translateErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, db.ErrRetryLimit):
		return fmt.Errorf("%w: concurrent update, please retry", ErrConflict)
	case db.IsOutOfRange(err):
		return validationError("balance out of range")
	case db.IsUniqueViolation(err):
		return ErrAlreadyExists
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	}
	return err
}
