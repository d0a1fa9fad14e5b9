package pipeline

import (
	"errors"
	"fmt"
)

// Error kinds. Every step failure matches exactly one of these with errors.Is.
var (
	ErrUpstreamUnavailable    = errors.New("upstream unavailable")
	ErrUpstreamSchemaMismatch = errors.New("upstream schema mismatch")
	ErrSourceFileNotFound     = errors.New("source file not found")
	ErrStorageWriteFailed     = errors.New("storage write failed")
	ErrNoArchivedObjects      = errors.New("no archived objects")
	ErrStorageReadFailed      = errors.New("storage read failed")
	ErrDatabaseUnavailable    = errors.New("database unavailable")
	ErrLoadFailed             = errors.New("load failed")
)

// Error is a classified step failure carrying its underlying cause.
type Error struct {
	Kind error  // one of the Err* kinds above
	Op   string // what was being attempted
	Err  error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Kind returns the error kind carried by err, or nil if it has none.
func Kind(err error) error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return nil
}
