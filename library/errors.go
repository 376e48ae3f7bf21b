package library

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// Error kinds returned by the library. Callers branch with errors.Is; the
// wrapped message carries the operation and the underlying cause.
var (
	// ErrRouting means an identifier carries no recognized type prefix.
	ErrRouting = errors.New("unrecognized identifier prefix")
	// ErrValidation means the input was rejected before touching the store.
	ErrValidation = errors.New("validation failed")
	// ErrPersistence wraps every failure reported by the store.
	ErrPersistence = errors.New("persistence failure")
	// ErrNotFound means the referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConcurrentModification means a row verified inside a transaction
	// disappeared before it could be written.
	ErrConcurrentModification = errors.New("concurrent modification")
	// ErrAbstraction means an operation was invoked on the abstract user kind.
	ErrAbstraction = errors.New("operation not supported on abstract user kind")

	ErrDuplicateKey       = fmt.Errorf("%w: duplicate key", ErrPersistence)
	ErrForeignKey         = fmt.Errorf("%w: foreign key violation", ErrPersistence)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrValidation)
)

// storeError wraps a driver error with the matching persistence kind.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case isDuplicateKey(err):
		return fmt.Errorf("%s: %w: %w", op, ErrDuplicateKey, err)
	case isForeignKey(err):
		return fmt.Errorf("%s: %w: %w", op, ErrForeignKey, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
	}
}

func isDuplicateKey(err error) bool {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKey(err error) bool {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}
