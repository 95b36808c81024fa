package inventory

import (
	"errors"
	"fmt"
)

var (
	// ErrMachineNotFound is returned when the requested machine does not exist.
	ErrMachineNotFound = errors.New("machine not found")

	// ErrMachineExists is returned when a machine id is already taken.
	ErrMachineExists = errors.New("machine already exists")

	// ErrDatabaseError is returned when a database operation fails.
	ErrDatabaseError = errors.New("database error")
)

// WriteError reports which write of a machine insert failed. The whole
// insert has been rolled back when it is returned.
type WriteError struct {
	Step string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s: write %s: %v", ErrDatabaseError, e.Step, e.Err)
}

func (e *WriteError) Unwrap() []error {
	return []error{ErrDatabaseError, e.Err}
}
