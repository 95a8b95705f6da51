package compile

import (
	"errors"
	"fmt"

	"github.com/cognix/cognix/internal/intent"
)

// Error reports an intent that violated invariants upstream validation
// should have guaranteed. It should be unreachable through the normal
// pipeline; log it, do not show it verbatim to end users.
type Error struct {
	Message    string
	Violations []intent.Violation
}

func (e *Error) Error() string {
	if len(e.Violations) > 0 {
		return fmt.Sprintf("compilation error: %s: %s", e.Message, intent.JoinViolations(e.Violations))
	}
	return "compilation error: " + e.Message
}

// IsCompilationError reports whether err is (or wraps) a compile.Error.
func IsCompilationError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}
