package store

import "fmt"

// ErrorKind partitions store failures into the categories callers dispatch
// on. The engine's human-readable message rides along in Message.
type ErrorKind int

const (
	// KindOpen: the store's backing file could not be opened.
	KindOpen ErrorKind = iota

	// KindCompile: the SQL text failed to compile (syntax error, unknown
	// table or column).
	KindCompile

	// KindExecute: the engine rejected a statement at execution time
	// (constraint violation, type error).
	KindExecute

	// KindTypeMismatch: a typed extraction was requested from a Value
	// holding a different variant.
	KindTypeMismatch

	// KindContract: a statement was used outside its legal lifecycle
	// (fetching a column with no current row, stepping a failed statement).
	KindContract

	// Snapshot install phases. Each phase fails distinctly so the caller
	// knows whether the previous state is still on disk.
	KindSnapshotOpen
	KindSnapshotWrite
	KindSnapshotResize
	KindSnapshotReopen
)

func (k ErrorKind) String() string {
	switch k {
	case KindOpen:
		return "open"
	case KindCompile:
		return "compile"
	case KindExecute:
		return "execute"
	case KindTypeMismatch:
		return "type mismatch"
	case KindContract:
		return "contract"
	case KindSnapshotOpen:
		return "snapshot open"
	case KindSnapshotWrite:
		return "snapshot write"
	case KindSnapshotResize:
		return "snapshot resize"
	case KindSnapshotReopen:
		return "snapshot reopen"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is the store's error type. A nil error means success everywhere.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the ErrorKind from an error returned by this package.
// Returns ok=false for nil or foreign errors.
func KindOf(err error) (ErrorKind, bool) {
	if e, ok := err.(*Error); ok {
		return e.Kind, true
	}
	return 0, false
}
