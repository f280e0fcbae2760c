package database

import (
	"errors"

	"github.com/lib/pq"
)

// ConstraintKind classifies integrity violations reported by Postgres.
type ConstraintKind string

const (
	ConstraintUnique     ConstraintKind = "unique"
	ConstraintForeignKey ConstraintKind = "foreign_key"
	ConstraintCheck      ConstraintKind = "check"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
)

// ConstraintError is an integrity violation with the name of the offending constraint.
type ConstraintError struct {
	Kind       ConstraintKind
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	return string(e.Kind) + " constraint " + e.Constraint + " violated"
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}

// AsConstraintError converts a driver error into a *ConstraintError when it
// describes an integrity violation.
func AsConstraintError(err error) (*ConstraintError, bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil, false
	}

	var kind ConstraintKind
	switch string(pqErr.Code) {
	case pqUniqueViolation:
		kind = ConstraintUnique
	case pqForeignKeyViolation:
		kind = ConstraintForeignKey
	case pqCheckViolation:
		kind = ConstraintCheck
	default:
		return nil, false
	}

	return &ConstraintError{Kind: kind, Constraint: pqErr.Constraint, Err: err}, true
}
