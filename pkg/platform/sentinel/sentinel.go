package sentinel

import "errors"

// Sentinel errors for persistence facts. Stores and caches return these
// (optionally wrapped with the violated constraint) so services can translate
// them into domain errors:
//   - ErrNotFound: record does not exist
//   - ErrConflict: a uniqueness constraint rejected the write
//   - ErrInvalidState: record is in the wrong state for a conditional write
//   - ErrUnavailable: backing service temporarily unreachable
//
// For validation failures use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)

// ConstraintError carries the name of the constraint behind an ErrConflict so
// services can tell which unique key was hit.
type ConstraintError struct {
	Constraint string
}

func (e *ConstraintError) Error() string {
	return "conflict on " + e.Constraint
}

func (e *ConstraintError) Unwrap() error {
	return ErrConflict
}

// Conflict builds an ErrConflict-wrapping error naming constraint.
func Conflict(constraint string) error {
	return &ConstraintError{Constraint: constraint}
}

// ConflictOn reports whether err is a conflict on the named constraint.
func ConflictOn(err error, constraint string) bool {
	var ce *ConstraintError
	return errors.As(err, &ce) && ce.Constraint == constraint
}
