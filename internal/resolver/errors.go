package resolver

import (
	"errors"
	"fmt"

	"github.com/cognix/cognix/internal/intent"
)

// UnresolvableError means the question could not be turned into a valid
// intent within the allowed repair rounds. Violations holds the final attempt's
// validation findings when the service answered but the proposal was bad;
// Cause holds the transport error when the service itself failed.
type UnresolvableError struct {
	Question   string
	Attempts   int
	Violations []intent.Violation
	Cause      error
}

func (e *UnresolvableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("intent unresolvable after %d attempt(s): %v", e.Attempts, e.Cause)
	}
	return fmt.Sprintf("intent unresolvable after %d attempt(s): %d validation violation(s)",
		e.Attempts, len(e.Violations))
}

func (e *UnresolvableError) Unwrap() error { return e.Cause }

// IsIntentUnresolvable reports whether err is an UnresolvableError.
func IsIntentUnresolvable(err error) bool {
	var e *UnresolvableError
	return errors.As(err, &e)
}
