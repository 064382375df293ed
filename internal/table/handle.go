package table

import (
	"errors"
	"fmt"
)

// Handle is a generational reference to a Table row. Handles are cheap value
// types and are copied freely; they may outlive the row they name. A Handle
// is valid only while the slot it points at is live and the generations
// match, so a slot that has been freed and reused invalidates every Handle
// minted before the reuse.
//
// Generations are a 64-bit monotonic counter, bumped once per slot reuse.
// Wraparound would need 2^64 reuses of a single slot and is treated as
// unreachable; there is no wrap handling. Live slots always have Gen >= 1,
// so the zero Handle is never valid.
type Handle struct {
	Index int
	Gen   uint64
}

// IsZero reports whether h is the zero Handle. The zero Handle is never
// valid in any Table and is used as a "no row" sentinel.
func (h Handle) IsZero() bool {
	return h == Handle{}
}

// String renders the handle as "index@generation" for logs and errors.
func (h Handle) String() string {
	return fmt.Sprintf("%d@%d", h.Index, h.Gen)
}

// HandleError reports an access through a stale or never-valid Handle.
// It is immediately recoverable: callers that checked Contains first and
// still hit it have a bug, callers racing against removal are expected to
// treat it as "the row is gone".
type HandleError struct {
	Table  string
	Handle Handle
}

func (e *HandleError) Error() string {
	return fmt.Sprintf("stale handle %s in table %q", e.Handle, e.Table)
}

// IsHandleError reports whether err is (or wraps) a HandleError.
func IsHandleError(err error) bool {
	var he *HandleError
	return errors.As(err, &he)
}
