//go:build windows
// +build windows

// File: iocp/types_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package iocp

import "golang.org/x/sys/windows"

// Kind identifies which submission verb an Overlapped is carrying, and
// therefore how its completion must be interpreted.
type Kind int

const (
	KindNone Kind = iota
	KindNotStarted
	KindRead
	KindWrite
	KindAccept
	KindConnect
	KindDisconnect
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNotStarted:
		return "not-started"
	case KindRead:
		return "read"
	case KindWrite:
		return "write"
	case KindAccept:
		return "accept"
	case KindConnect:
		return "connect"
	case KindDisconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

// Constants re-exported for callers that need them without importing
// golang.org/x/sys/windows directly.
const (
	ErrIOPending                    = windows.ERROR_IO_PENDING
	FlagSkipCompletionPortOnSuccess = windows.FILE_SKIP_COMPLETION_PORT_ON_SUCCESS
	InfiniteTimeout                 = windows.INFINITE
	InvalidHandle                   = windows.InvalidHandle

	// Socket-level option codes used when tearing down accept/connect-style
	// overlapped operations.
	SO_UPDATE_ACCEPT_CONTEXT  = 0x700B
	SO_UPDATE_CONNECT_CONTEXT = 0x7010
	TF_REUSE_SOCKET           = 0x02
)

// AddrV4 is the 2-tuple connect/bind address shape: (host, port).
type AddrV4 struct {
	Host string
	Port uint16
}

// AddrV6 is the 4-tuple connect/bind address shape: (host, port, flowinfo, scopeid).
type AddrV6 struct {
	Host     string
	Port     uint16
	FlowInfo uint32
	ScopeID  uint32
}

// Completion is the record produced by Port.Dequeue: one OS-deposited
// notification. A timeout is reported by Dequeue's ErrTimeout, alongside
// a zero Completion.
type Completion struct {
	Err        error
	Bytes      uint32
	Key        uintptr
	Overlapped *Overlapped
}

// Notification is the public, pointer-typed mirror of Completion exposed to
// callers that only want to cross-reference against Overlapped.Address(),
// without holding a live *Overlapped.
type Notification struct {
	Err        error
	Bytes      uint32
	Key        uintptr
	Overlapped uintptr
}
