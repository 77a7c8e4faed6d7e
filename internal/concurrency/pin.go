//go:build !windows && !linux
// +build !windows,!linux

// hioload-ws/internal/concurrency/pin.go
// Author: momentics <momentics@gmail.com>
//
// Platform-generic CPU/NUMA pinning entry point, built only on systems
// other than Linux and Windows, which have their own files.

package concurrency

// PinCurrentThread pins the current OS thread to a given NUMA node and CPU core.
// This function is implemented per platform (Linux/Windows). On unsupported systems it is a no-op.
func PinCurrentThread(numaNode int, cpuID int) {}
