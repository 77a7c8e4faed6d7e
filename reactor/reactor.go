// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

// Package reactor provides the core poll-mode event reactor abstraction and
// cross-platform implementations: epoll (Linux) and IOCP (Windows, built on
// the iocp package's completion port and overlapped operation primitives).
package reactor

// FDEventType is a bitmask of the readiness conditions a Reactor reports.
type FDEventType uint32

const (
	EventRead FDEventType = 1 << iota
	EventWrite
	EventError
)

// FDCallback is invoked by a Reactor when fd becomes ready for events.
type FDCallback func(fd uintptr, events FDEventType)

// Reactor registers raw file descriptors or socket handles for readiness
// notification and dispatches callbacks as the underlying OS facility
// reports them ready.
type Reactor interface {
	// Register starts watching fd for events, invoking cb on each
	// readiness notification.
	Register(fd uintptr, events FDEventType, cb FDCallback) error
	// Unregister stops watching fd.
	Unregister(fd uintptr) error
	// Poll drives one iteration of the reactor's wait/dispatch loop.
	// timeoutMs < 0 blocks indefinitely.
	Poll(timeoutMs int) error
	// Close releases the reactor's OS resources.
	Close() error
}
