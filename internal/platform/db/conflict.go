package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// UniqueViolation is the typed conflict signal for a unique-constraint
// breach. Retry and error-translation logic branches on the constraint name
// carried here instead of sniffing driver error strings.
type UniqueViolation struct {
	Constraint string
	pgErr      *pgconn.PgError
}

func (e *UniqueViolation) Error() string {
	return fmt.Sprintf("unique violation on %s", e.Constraint)
}

func (e *UniqueViolation) Unwrap() error {
	return e.pgErr
}

// TranslateError converts driver unique-violation errors (SQLSTATE 23505)
// into UniqueViolation and leaves everything else untouched.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return &UniqueViolation{Constraint: pgErr.ConstraintName, pgErr: pgErr}
	}
	return err
}

// AsUniqueViolation reports whether err carries a unique violation.
func AsUniqueViolation(err error) (*UniqueViolation, bool) {
	var uv *UniqueViolation
	if errors.As(err, &uv) {
		return uv, true
	}
	return nil, false
}
