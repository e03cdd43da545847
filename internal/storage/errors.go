package storage

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure modes callers branch on
var (
	// ErrUnknownStorage indicates a storage id that is not currently registered
	ErrUnknownStorage = errors.New("unknown storage")

	// ErrNoStorage indicates an operation that needs a storage while none is attached
	ErrNoStorage = errors.New("no storage attached")

	// ErrTransport indicates an I/O failure on the removable-media transport
	ErrTransport = errors.New("transport failure")

	// ErrDeviceDetached indicates the backing device vanished mid-operation
	ErrDeviceDetached = errors.New("device detached")
)

// UnknownStorageError reports which id failed to resolve. It unwraps to
// ErrUnknownStorage.
type UnknownStorageError struct {
	ID string
}

func (e *UnknownStorageError) Error() string {
	return fmt.Sprintf("unknown storage %q", e.ID)
}

func (e *UnknownStorageError) Unwrap() error {
	return ErrUnknownStorage
}

// TransportError wraps an I/O failure with the operation and path it hit.
// It unwraps to ErrTransport and to the underlying cause.
type TransportError struct {
	Op   string
	Path string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// NewTransportError classifies err: detach-class failures surface as
// ErrDeviceDetached, everything else as a TransportError.
func NewTransportError(op, path string, err error, detached bool) error {
	if detached {
		return fmt.Errorf("%s %s: %w", op, path, ErrDeviceDetached)
	}
	return &TransportError{Op: op, Path: path, Err: err}
}
