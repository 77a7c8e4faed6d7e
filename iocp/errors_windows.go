//go:build windows
// +build windows

// File: iocp/errors_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Error taxonomy for the completion-port proactor: precondition errors that
// never reach the OS, and the promotion of selected OS error codes into
// named kinds. Mirrors the structured api.Error pattern the rest of
// hioload-ws uses (see api/errors.go), kept local to this package so the
// core does not depend upward on api.

package iocp

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows"
)

// Precondition errors. These never reach the OS; they are raised by this
// package's own bookkeeping.
var (
	ErrAlreadyAttempted      = errors.New("iocp: operation already attempted")
	ErrNotYetAttempted       = errors.New("iocp: operation not yet attempted")
	ErrFailedToStart         = errors.New("iocp: operation failed to start")
	ErrBufferTooLarge        = errors.New("iocp: buffer too large for a single overlapped call")
	ErrInvalidAddressTuple   = errors.New("iocp: expected an address tuple of length 2 or 4")
	ErrExtensionsUnavailable = errors.New("iocp: required winsock extension function unavailable")
	ErrTimeout               = errors.New("iocp: dequeue timed out")
)

// Promoted OS error kinds. Compare with errors.Is.
var (
	ErrConnectionRefused = errors.New("iocp: connection refused")
	ErrConnectionAborted = errors.New("iocp: connection aborted")
	ErrConnectionReset   = errors.New("iocp: connection reset")
)

// ClassifyError promotes a raw OS error observed by the proactor into one
// of the taxonomy's named kinds. A promoted error wraps the named kind, so
// errors.Is matches it, and carries the original error only in its
// message text. Errors with no specific promotion are returned wrapped,
// unchanged in meaning, as a generic OS error whose original error
// errors.Unwrap recovers. A nil input returns nil.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	var errno windows.Errno
	if !errors.As(err, &errno) {
		return fmt.Errorf("iocp: os error: %w", err)
	}
	switch errno {
	case windows.WSAECONNREFUSED:
		return fmt.Errorf("%w: %v", ErrConnectionRefused, err)
	case windows.WSAECONNABORTED, windows.ERROR_NETNAME_DELETED:
		return fmt.Errorf("%w: %v", ErrConnectionAborted, err)
	case windows.WSAECONNRESET:
		return fmt.Errorf("%w: %v", ErrConnectionReset, err)
	default:
		return fmt.Errorf("iocp: os error: %w", err)
	}
}

// isBrokenPipe reports whether err is the OS's "remote end closed" signal.
func isBrokenPipe(err error) bool {
	return errors.Is(err, windows.ERROR_BROKEN_PIPE) || errors.Is(err, windows.ERROR_PIPE_NOT_CONNECTED)
}

// isMoreData reports whether err is the benign "buffer was too small,
// remainder is still available" completion code.
func isMoreData(err error) bool {
	return errors.Is(err, windows.ERROR_MORE_DATA)
}

// isNotFound reports whether err is CancelIoEx's "already completed" code.
func isNotFound(err error) bool {
	return errors.Is(err, windows.ERROR_NOT_FOUND)
}

// isAborted reports whether err is the cancellation-confirmed completion code.
func isAborted(err error) bool {
	return errors.Is(err, windows.ERROR_OPERATION_ABORTED)
}
