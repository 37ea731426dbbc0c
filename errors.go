package magic

import (
	"errors"
	"fmt"

	platformerrors "github.com/jmgilman/go/errors"
)

// Sentinel errors reported by handle operations. They are wrapped in
// *PathError or *EngineError when a concrete path or engine operation is
// involved, so match them with errors.Is.
var (
	// ErrClosed is returned when an operation requires an open handle.
	ErrClosed = errors.New("magic is closed")

	// ErrDatabaseNotLoaded is returned when an identification requires a
	// loaded database.
	ErrDatabaseNotLoaded = errors.New("magic database is not loaded")

	// ErrEmptyPath is returned when an operation receives an empty path.
	ErrEmptyPath = errors.New("path is empty")

	// ErrNilTracker is returned when a batch identification receives an
	// explicitly nil progress tracker.
	ErrNilTracker = errors.New("nil progress tracker")

	// ErrNotExist is returned when a path does not exist.
	ErrNotExist = errors.New("path does not exist")

	// ErrNotRegularFile is returned when a database path exists but is not
	// a regular file.
	ErrNotRegularFile = errors.New("not a regular file")

	// ErrNotDirectory is returned when a directory scan root exists but is
	// not a directory.
	ErrNotDirectory = errors.New("not a directory")
)

// PathError records a path that failed validation and the reason it was
// rejected.
type PathError struct {
	// Path is the path that failed validation.
	Path string

	// Err is the reason the path was rejected, one of the sentinel errors.
	Err error
}

// Error implements the error interface.
func (e *PathError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *PathError) Unwrap() error {
	return e.Err
}

// EngineError records an engine operation that failed. It includes the
// operation name, the path it was acting on, and the error reported by the
// engine.
type EngineError struct {
	// Op is the engine operation that failed, such as "open", "load" or
	// "identify".
	Op string

	// Path is the file the operation was acting on, empty when the
	// operation does not involve one.
	Path string

	// Err is the underlying error reported by the engine.
	Err error
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("magic %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("magic %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// ParameterError records a parameter value the engine rejected.
type ParameterError struct {
	// Parameter is the parameter being set.
	Parameter Parameter

	// Value is the rejected value.
	Value uint64

	// Err is the underlying error reported by the engine.
	Err error
}

// Error implements the error interface.
func (e *ParameterError) Error() string {
	return fmt.Sprintf("magic parameter %s=%d: %v", e.Parameter, e.Value, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParameterError) Unwrap() error {
	return e.Err
}

// FilesystemError records a filesystem operation that failed while scanning
// for files to identify.
type FilesystemError struct {
	// Op is the filesystem operation that failed, such as "lstat" or
	// "read dir".
	Op string

	// Path is the path the operation was acting on.
	Path string

	// Err is the underlying filesystem error.
	Err error
}

// Error implements the error interface.
func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *FilesystemError) Unwrap() error {
	return e.Err
}

// classify maps an identification error to a platform classification.
// Retryable errors are recorded per path and leave the rest of a batch
// running; permanent errors halt it.
func classify(err error) platformerrors.ErrorClassification {
	var pathErr *PathError
	if errors.As(err, &pathErr) {
		return platformerrors.ClassificationRetryable
	}

	var engineErr *EngineError
	if errors.As(err, &engineErr) && engineErr.Op == "identify" {
		return platformerrors.ClassificationRetryable
	}

	return platformerrors.ClassificationPermanent
}
