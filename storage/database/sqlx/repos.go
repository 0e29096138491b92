// Package sqlxrepos implements the core repositories on PostgreSQL via sqlx.
package sqlxrepos

import (
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"
)

const uniqueViolation = "23505"

// uniqueErr maps a pq unique-constraint violation to the domain error
// registered for its constraint; any other error passes through wrapped.
func uniqueErr(err error, constraints map[string]error, op string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		if domErr, ok := constraints[pqErr.Constraint]; ok {
			return domErr
		}
	}
	return errors.Wrap(err, op)
}

// notFoundErr swaps sql.ErrNoRows for the domain's not-found error.
func notFoundErr(err, domErr error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domErr
	}
	return errors.Wrap(err, op)
}
