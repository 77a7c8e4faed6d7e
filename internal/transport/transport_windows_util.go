// File: internal/transport/transport_windows_util.go
//go:build windows
// +build windows

//
// Utility functions and types for overlapped I/O batching.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"github.com/momentics/hioload-ws/iocp"
	"golang.org/x/sys/windows"
)

// EnsureMaxProcessors checks, что максимальное число процессоров не превышает 320.
func EnsureMaxProcessors() int {
	n := windows.GetMaximumProcessorCount(0)
	if n > 320 {
		return 320
	}
	return int(n)
}

// ZeroBufferPool prepares a fresh overlapped operation for a zero-copy I/O
// call; size and node are accepted for call-site symmetry with the NUMA
// buffer pool but do not influence the operation itself.
func ZeroBufferPool(size int, node int) *iocp.Overlapped {
	return iocp.New(0)
}
