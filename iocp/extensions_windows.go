//go:build windows
// +build windows

// File: iocp/extensions_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// AcceptEx, ConnectEx and DisconnectEx are not ordinary exported kernel32
// functions: Winsock only exposes them as per-socket extension function
// pointers, obtained with a WSAIoctl(SIO_GET_EXTENSION_FUNCTION_POINTER)
// query against a throwaway socket. This mirrors the technique CPython's
// own proactor implementation uses to bind the same three verbs, and
// keeps every call on this package's one domain dependency,
// golang.org/x/sys/windows, rather than reaching for a second
// syscall-wrapping library.
//
// The thread-safe CancelIoEx entry point is resolved separately and
// optionally, falling back to the older, per-thread CancelIo when it is
// unavailable.

package iocp

import (
	"fmt"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

const sioGetExtensionFunctionPointer = 0xC8000006

// Well-known, MSDN-documented GUIDs identifying the three extension
// functions this package needs. These values are stable ABI constants,
// not implementation details of any particular library.
var (
	wsaidAcceptEx = windows.GUID{
		Data1: 0xb5367df1, Data2: 0xcbac, Data3: 0x11cf,
		Data4: [8]byte{0x95, 0xca, 0x00, 0x80, 0x5f, 0x48, 0xa1, 0x92},
	}
	wsaidConnectEx = windows.GUID{
		Data1: 0x25a207b9, Data2: 0xddf3, Data3: 0x4660,
		Data4: [8]byte{0x8e, 0xe9, 0x76, 0xe5, 0x8c, 0x74, 0x06, 0x3e},
	}
	wsaidDisconnectEx = windows.GUID{
		Data1: 0x7fda2e11, Data2: 0x8630, Data3: 0x436f,
		Data4: [8]byte{0xa0, 0x31, 0xf5, 0x36, 0xa6, 0xee, 0xc1, 0x57},
	}
)

type extensionFunctions struct {
	acceptEx      uintptr
	connectEx     uintptr
	disconnectEx  uintptr
	cancelIoEx    uintptr
	hasCancelIoEx bool
}

var (
	extOnce sync.Once
	ext     extensionFunctions
	extErr  error
)

// ensureExtensions resolves the extension function pointers exactly once
// per process, using a temporary AF_INET/SOCK_STREAM socket. Subsequent
// calls return the cached result.
func ensureExtensions() error {
	extOnce.Do(func() {
		sock, err := windows.Socket(windows.AF_INET, windows.SOCK_STREAM, windows.IPPROTO_TCP)
		if err != nil {
			extErr = fmt.Errorf("iocp: extension socket: %w", err)
			return
		}
		defer windows.Closesocket(sock)

		if ext.acceptEx, err = queryExtension(sock, wsaidAcceptEx); err != nil {
			extErr = err
			return
		}
		if ext.connectEx, err = queryExtension(sock, wsaidConnectEx); err != nil {
			extErr = err
			return
		}
		if ext.disconnectEx, err = queryExtension(sock, wsaidDisconnectEx); err != nil {
			extErr = err
			return
		}

		if proc := windows.NewLazySystemDLL("kernel32.dll").NewProc("CancelIoEx"); proc.Find() == nil {
			ext.cancelIoEx = proc.Addr()
			ext.hasCancelIoEx = true
		}
	})
	return extErr
}

func queryExtension(sock windows.Handle, guid windows.GUID) (uintptr, error) {
	var fn uintptr
	var bytes uint32
	err := windows.WSAIoctl(
		sock,
		sioGetExtensionFunctionPointer,
		(*byte)(unsafe.Pointer(&guid)),
		uint32(unsafe.Sizeof(guid)),
		(*byte)(unsafe.Pointer(&fn)),
		uint32(unsafe.Sizeof(fn)),
		&bytes,
		nil,
		0,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: WSAIoctl(SIO_GET_EXTENSION_FUNCTION_POINTER): %v", ErrExtensionsUnavailable, err)
	}
	return fn, nil
}

// acceptEx issues AcceptEx on the resolved extension pointer. Its calling
// convention mirrors golang.org/x/sys/windows's own syscalls: nil on
// immediate success, windows.ERROR_IO_PENDING when queued, another error
// otherwise.
func acceptEx(listen, accept windows.Handle, buf *byte, recvLen, localLen, remoteLen uint32, bytesReceived *uint32, ov *windows.Overlapped) error {
	if err := ensureExtensions(); err != nil {
		return err
	}
	r1, _, e1 := syscall.SyscallN(ext.acceptEx,
		uintptr(listen),
		uintptr(accept),
		uintptr(unsafe.Pointer(buf)),
		uintptr(recvLen),
		uintptr(localLen),
		uintptr(remoteLen),
		uintptr(unsafe.Pointer(bytesReceived)),
		uintptr(unsafe.Pointer(ov)),
	)
	return extensionCallResult(r1, e1)
}

// connectEx issues ConnectEx against a socket already bound via BindAny.
func connectEx(sock windows.Handle, name unsafe.Pointer, namelen int32, ov *windows.Overlapped) error {
	if err := ensureExtensions(); err != nil {
		return err
	}
	r1, _, e1 := syscall.SyscallN(ext.connectEx,
		uintptr(sock),
		uintptr(name),
		uintptr(namelen),
		0, // lpSendBuffer
		0, // dwSendDataLength
		0, // lpdwBytesSent (unused for overlapped completion)
		uintptr(unsafe.Pointer(ov)),
	)
	return extensionCallResult(r1, e1)
}

// disconnectEx issues DisconnectEx, optionally reusing the socket handle
// for a subsequent AcceptEx/ConnectEx when flags includes TF_REUSE_SOCKET.
func disconnectEx(sock windows.Handle, ov *windows.Overlapped, flags uint32) error {
	if err := ensureExtensions(); err != nil {
		return err
	}
	r1, _, e1 := syscall.SyscallN(ext.disconnectEx,
		uintptr(sock),
		uintptr(unsafe.Pointer(ov)),
		uintptr(flags),
		0,
	)
	return extensionCallResult(r1, e1)
}

// cancelIoEx cancels pending I/O against handle, using the thread-safe
// CancelIoEx entry point when it resolved at startup, falling back to the
// older per-thread CancelIo otherwise.
func cancelIoEx(handle windows.Handle, ov *windows.Overlapped) error {
	if err := ensureExtensions(); err == nil && ext.hasCancelIoEx {
		return windows.CancelIoEx(handle, ov)
	}
	return windows.CancelIo(handle)
}

// extensionCallResult adapts a raw BOOL-returning Winsock extension call
// (non-zero r1 means TRUE) into the package's usual error convention.
func extensionCallResult(r1 uintptr, callErr error) error {
	if r1 != 0 {
		return nil
	}
	if errno, ok := callErr.(syscall.Errno); ok && errno == windows.ERROR_IO_PENDING {
		return windows.ERROR_IO_PENDING
	}
	return callErr
}
