// File: internal/transport/transport_windows_accept.go
//go:build windows
// +build windows

//
// Windows-specific native AcceptEx and TransmitPackets zero-copy implementation.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"fmt"
	"net"
	"os"
	"unsafe"

	"github.com/momentics/hioload-ws/api"
	"github.com/momentics/hioload-ws/iocp"
	"golang.org/x/sys/windows"
)

// TransmitPackets API constants
const (
	TP_ELEMENT_MEMORY = 0x00000001
	TP_DISCONNECT     = 0x00000001
	TP_REUSE_SOCKET   = 0x00000002
	TP_USE_KERNEL_APC = 0x00000000 // use kernel APC (0)
)

// TRANSMIT_PACKETS_ELEMENT flags:
// dwElFlags == TP_ELEMENT_MEMORY -> Buffer pointer used
type TRANSMIT_PACKETS_ELEMENT struct {
	dwElFlags uint32
	cLength   uint32
	reserved  uint32
	pBuffer   uintptr // pointer to data when TP_ELEMENT_MEMORY
}

var (
	modmswsock          = windows.NewLazySystemDLL("Mswsock.dll")
	procTransmitPackets = modmswsock.NewProc("TransmitPackets")
)

// ListenerEx wraps net.Listener to perform native zero-copy AcceptEx and TransmitPackets.
type ListenerEx struct {
	ln          net.Listener
	acceptSock  windows.Handle
	bufPool     api.BufferPool
	port        *iocp.Port
	channelSize int
}

// NewListenerEx creates a new ListenerEx on the given address.
func NewListenerEx(addr string, bufPool api.BufferPool, channelSize int) (*ListenerEx, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	tcpLn := ln.(*net.TCPListener)
	file, err := tcpLn.File()
	if err != nil {
		ln.Close()
		return nil, err
	}
	acceptSock := windows.Handle(file.Fd())
	port, err := iocp.NewPort(0)
	if err != nil {
		ln.Close()
		return nil, fmt.Errorf("NewPort: %w", err)
	}
	if _, err := iocp.CreateOrAssociate(acceptSock, port, 0, 0); err != nil {
		ln.Close()
		port.Close()
		return nil, fmt.Errorf("CreateOrAssociate: %w", err)
	}
	return &ListenerEx{
		ln:          ln,
		acceptSock:  acceptSock,
		bufPool:     bufPool,
		port:        port,
		channelSize: channelSize,
	}, nil
}

// Accept uses AcceptEx, through the iocp package's Overlapped.Accept verb,
// for asynchronous zero-copy accept. It hands back the raw connection;
// framing it into a higher-level protocol is the caller's concern, not
// the proactor's.
func (l *ListenerEx) Accept() (net.Conn, error) {
	clientSock, err := windows.Socket(windows.AF_INET, windows.SOCK_STREAM, windows.IPPROTO_TCP)
	if err != nil {
		return nil, err
	}

	ov := iocp.New(0)
	defer ov.Close()

	if err := ov.Accept(l.acceptSock, clientSock); err != nil {
		windows.Closesocket(clientSock)
		return nil, fmt.Errorf("AcceptEx: %w", err)
	}
	if _, err := ov.GetResult(true); err != nil {
		windows.Closesocket(clientSock)
		return nil, fmt.Errorf("AcceptEx result: %w", err)
	}

	_ = windows.SetsockoptInt(clientSock, windows.IPPROTO_TCP, windows.TCP_NODELAY, 1)
	file := os.NewFile(uintptr(clientSock), "")
	connNet, err := net.FileConn(file)
	if err != nil {
		windows.Closesocket(clientSock)
		return nil, err
	}
	return connNet, nil
}

// Transmit sends buffers using TransmitPackets for zero-copy.
func (l *ListenerEx) Transmit(conn windows.Handle, bufs [][]byte) error {
	pktCount := uint32(len(bufs))
	elements := make([]TRANSMIT_PACKETS_ELEMENT, pktCount)
	for i, b := range bufs {
		elements[i].dwElFlags = TP_ELEMENT_MEMORY
		elements[i].cLength = uint32(len(b))
		elements[i].pBuffer = uintptr(unsafe.Pointer(&b[0]))
	}
	// TransmitPackets has no equivalent verb on iocp.Overlapped (it carries
	// a kernel element array, not a single buffer), so it stays a raw
	// syscall; only the completion wait goes through the shared port.
	overl := new(windows.Overlapped)
	r1, _, err := procTransmitPackets.Call(
		uintptr(conn),
		uintptr(unsafe.Pointer(&elements[0])),
		uintptr(pktCount),
		0,
		uintptr(unsafe.Pointer(overl)),
		uintptr(TP_USE_KERNEL_APC),
	)
	if r1 == 0 {
		return fmt.Errorf("TransmitPackets failed: %v", err)
	}
	if _, err := l.port.Dequeue(iocp.InfiniteTimeout); err != nil {
		return fmt.Errorf("Dequeue transmit: %w", err)
	}
	return nil
}

// Close releases the completion port and closes the listener.
func (l *ListenerEx) Close() error {
	_ = l.port.Close()
	return l.ln.Close()
}
