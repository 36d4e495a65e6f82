// Package runtime executes compiled statements and classifies their errors.
package runtime

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes that get a sentinel.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

var (
	// ErrNotFound is returned when a record is not found. It is a normal
	// outcome, not a failure.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidModel is returned when a destination cannot hold a row.
	ErrInvalidModel = errors.New("invalid model")

	// ErrDuplicateKey is returned when a unique constraint is violated.
	ErrDuplicateKey = errors.New("duplicate key value")

	// ErrForeignKeyViolation is returned when a foreign key constraint is violated.
	ErrForeignKeyViolation = errors.New("foreign key violation")

	// ErrNoConnection is returned when no database connection is available.
	ErrNoConnection = errors.New("no database connection")
)

// StorageError represents a failed statement execution.
type StorageError struct {
	Query string
	Err   error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %v\nQuery: %s", e.Err, e.Query)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Wrap classifies a driver error for query. sql.ErrNoRows becomes
// ErrNotFound; constraint violations keep the driver error but also match
// their sentinel through errors.Is.
func Wrap(query string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			err = errors.Join(ErrDuplicateKey, err)
		case codeForeignKeyViolation:
			err = errors.Join(ErrForeignKeyViolation, err)
		}
	}
	return &StorageError{Query: query, Err: err}
}
