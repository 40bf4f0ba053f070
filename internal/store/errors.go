package store

import (
	"errors"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a unique constraint is violated, e.g. a
// duplicate username, email, or category name.
var ErrConflict = errors.New("already exists")

// ErrReferenced is returned when a delete would break a foreign key,
// e.g. removing a user who still owns articles.
var ErrReferenced = errors.New("still referenced")

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// translateError maps driver-level errors to store sentinels.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return ErrConflict
		case pqForeignKeyViolation:
			return ErrReferenced
		}
	}
	return err
}
