package pipeline

import (
	"errors"
	"fmt"
)

// FailureKind classifies a terminal failure for the caller.
type FailureKind string

const (
	// KindIntentUnresolvable is user-facing: the question could not be
	// mapped to a valid intent. Rephrasing may help.
	KindIntentUnresolvable FailureKind = "intent_unresolvable"
	// KindCompilation is developer-facing: validation let something
	// through that the compiler rejected. Logged, not shown verbatim.
	KindCompilation FailureKind = "compilation"
	// KindExecution is a store fault or malformed query. Not retried
	// here; the caller may resubmit the whole request.
	KindExecution FailureKind = "execution"
	// KindCache is storage failing outside the degraded-mode paths.
	KindCache FailureKind = "cache"
)

// Failure is the single terminal error of a pipeline run: which state it
// happened in, its kind, and the step's underlying error.
type Failure struct {
	RequestID string
	At        State
	Kind      FailureKind
	Err       error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("pipeline failed at %s (%s): %v", f.At, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Message renders the user-visible description for the failure kind.
func (f *Failure) Message() string {
	switch f.Kind {
	case KindIntentUnresolvable:
		return "Could not understand the question. Try rephrasing it using the dataset's column names."
	case KindExecution:
		return "Could not run this query."
	case KindCache:
		return "Result storage is unavailable."
	default:
		return "Internal error while preparing the query."
	}
}

// KindOf extracts the failure kind from an error, or "" when err did not
// come from a pipeline run.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}
