package engine

import (
	"errors"
	"fmt"
)

// Error represents an execution-engine fault: a malformed compiled
// query or an unavailable store. User-facing as "could not run this
// query"; the engine itself never retries.
type Error struct {
	Op  string // failing operation: query, columns, scan, iterate
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("execution error (%s): %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsExecutionError reports whether err is (or wraps) an engine.Error.
func IsExecutionError(err error) bool {
	var ee *Error
	return errors.As(err, &ee)
}
