package models

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSeverity    = errors.New("invalid severity")
	ErrNotFound           = errors.New("not found")
	ErrAlreadyHandled     = errors.New("incident already handled")
	ErrConcurrentClaim    = errors.New("unit concurrently claimed")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrDuplicateID        = errors.New("duplicate id")
	ErrNoActiveAssignment = errors.New("no active assignment")
)

// PersistenceError marks a ledger write failure. The allocation decision it
// describes has already been committed in memory and stands.
type PersistenceError struct {
	AssignmentID string
	Err          error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("ledger write for assignment %s: %v", e.AssignmentID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
