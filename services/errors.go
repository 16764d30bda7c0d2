package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks input rejected before any mutating call.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks an unknown restaurant, table, order or request.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a state clash: an occupied table, an already resolved
	// request, or a row changed by a concurrent writer.
	ErrConflict = errors.New("conflict")
	// ErrTableUnavailable is the conflict raised when a table is already occupied.
	ErrTableUnavailable = fmt.Errorf("%w: table is not available", ErrConflict)
	// ErrNoTableAvailable is returned when no free table fits a dine-in request.
	ErrNoTableAvailable = errors.New("no table available")
	// ErrInvalidTransition marks a status change that skips or reverses a stage.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrPartialFailure marks an operation whose main write committed but whose
	// follow-up table release failed. The table is flagged for manual correction.
	ErrPartialFailure = errors.New("partial failure")
)

func validationErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFoundErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func conflictErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// CompensationError is returned when a forward step failed and at least one
// compensating step failed too. It unwraps to the original step error, so
// errors.Is/As against the cause keep working.
type CompensationError struct {
	Err      error
	Failures []error
}

func (e *CompensationError) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, f.Error())
	}
	return fmt.Sprintf("%v (compensation failed: %s)", e.Err, strings.Join(msgs, "; "))
}

func (e *CompensationError) Unwrap() error {
	return e.Err
}
