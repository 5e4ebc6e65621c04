package store

import (
	"errors"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert or update violates a unique
// constraint.
var ErrDuplicate = errors.New("duplicate record")

// ErrConflict is returned when a conditional update finds the row in a
// different state than expected (lost optimistic race).
var ErrConflict = errors.New("conflicting concurrent update")

const pqUniqueViolation = "23505"

func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return ErrDuplicate
	}
	return err
}
