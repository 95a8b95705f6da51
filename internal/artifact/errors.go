package artifact

import (
	"errors"
	"fmt"
)

// Error wraps a cache-layer failure. Cache errors are recoverable by
// policy: a failed store degrades to returning the computed bundle
// uncached, and a failed lookup degrades to recomputation.
type Error struct {
	Op          string
	Fingerprint string
	Err         error
}

func (e *Error) Error() string {
	if e.Fingerprint != "" {
		return fmt.Sprintf("artifact cache %s %s: %v", e.Op, e.Fingerprint, e.Err)
	}
	return fmt.Sprintf("artifact cache %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsCacheError reports whether err originated in the artifact cache.
func IsCacheError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}
