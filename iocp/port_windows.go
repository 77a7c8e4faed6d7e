//go:build windows
// +build windows

// File: iocp/port_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Port wraps a single Windows I/O completion port: the rendezvous queue
// the kernel deposits finished overlapped I/O into, and the event loop
// drains on a timed wait.

package iocp

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// Port is a process-wide-unique I/O completion queue.
type Port struct {
	handle windows.Handle
}

// CreateOrAssociate creates a completion port or associates a handle with
// an existing one. When existing is nil, a new port is created whose
// parallelism bound is concurrency (0 lets the OS pick one thread per
// processor). When existing is non-nil, handle is associated with it
// under key and the same *Port is returned rather than a new one. An OS
// refusal, such as a handle that is already associated, is returned as
// an error.
func CreateOrAssociate(handle windows.Handle, existing *Port, key uintptr, concurrency uint32) (*Port, error) {
	var existingHandle windows.Handle
	if existing != nil {
		existingHandle = existing.handle
	}
	h, err := windows.CreateIoCompletionPort(handle, existingHandle, key, concurrency)
	if err != nil {
		return nil, fmt.Errorf("iocp: create-or-associate: %w", err)
	}
	if existing != nil {
		return existing, nil
	}
	return &Port{handle: h}, nil
}

// NewPort creates a brand new completion port with no associated handle,
// equivalent to CreateOrAssociate(InvalidHandle, nil, 0, concurrency).
func NewPort(concurrency uint32) (*Port, error) {
	return CreateOrAssociate(windows.InvalidHandle, nil, 0, concurrency)
}

// Handle returns the underlying OS handle, for interop with code that
// still calls windows.CreateIoCompletionPort/GetQueuedCompletionStatus
// directly (e.g. the reactor package's dispatch loop).
func (p *Port) Handle() windows.Handle { return p.handle }

// Dequeue blocks up to timeoutMs milliseconds for a completion. A timeout
// is reported as ErrTimeout, distinguishable from every other failure: the
// OS signals it with a null overlapped pointer and WAIT_TIMEOUT; any other
// null-pointer result is a real error, and any non-null pointer is always
// a Completion, even when its Err field carries a non-zero OS error.
func (p *Port) Dequeue(timeoutMs uint32) (Completion, error) {
	var bytes uint32
	var key uintptr
	var ov *windows.Overlapped

	osErr := windows.GetQueuedCompletionStatus(p.handle, &bytes, &key, &ov, timeoutMs)

	if ov == nil {
		if osErr == windows.WAIT_TIMEOUT {
			return Completion{}, ErrTimeout
		}
		return Completion{}, fmt.Errorf("iocp: dequeue: %w", osErr)
	}

	return Completion{
		Err:        osErr,
		Bytes:      bytes,
		Key:        key,
		Overlapped: overlappedFromRaw(ov),
	}, nil
}

// Post enqueues a synthetic completion, used by the event loop (or any
// other thread) to wake a thread blocked in Dequeue.
func (p *Port) Post(bytes uint32, key uintptr, ov *Overlapped) error {
	var raw *windows.Overlapped
	if ov != nil {
		raw = &ov.raw
	}
	if err := windows.PostQueuedCompletionStatus(p.handle, bytes, key, raw); err != nil {
		return fmt.Errorf("iocp: post: %w", err)
	}
	return nil
}

// Close destroys the completion port. Any thread blocked in Dequeue is
// released with an error once the last handle to the port is closed.
func (p *Port) Close() error {
	return windows.CloseHandle(p.handle)
}
