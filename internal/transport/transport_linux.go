// File: internal/transport/transport_linux.go
//go:build linux
// +build linux

//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux transport using zero-copy batch I/O via SendmsgBuffers.
// Ensures socket descriptor is properly closed on errors and when replacing implementation.

package transport

import (
	"fmt"
	"net"
	"syscall"

	"github.com/momentics/hioload-ws/api"
	"github.com/momentics/hioload-ws/pool"
	"golang.org/x/sys/unix"
)

// linuxTransport implements api.Transport for Linux.
type linuxTransport struct {
	fd       int
	bufPool  api.BufferPool
	features api.TransportFeatures
	closed   bool
}

func newLinuxTransportFeatures() api.TransportFeatures {
	return api.TransportFeatures{
		ZeroCopy:     true,
		Batch:        true,
		NUMAAware:    false,
		LockFree:     true,
		SharedMemory: false,
		OS:           []string{"linux"},
	}
}

// newTransportInternal creates a non-blocking TCP socket and buffer pool.
func newTransportInternal(ioBufferSize, numaNode int) (api.Transport, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("socket create: %w", err)
	}
	// Ensure fd is closed on any early error
	defer func() {
		if err != nil {
			unix.Close(fd)
		}
	}()

	if err = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
		return nil, fmt.Errorf("setsockopt TCP_NODELAY: %w", err)
	}

	bp := pool.DefaultManager().GetPool(numaNode)
	return &linuxTransport{
		fd:       fd,
		bufPool:  bp,
		features: newLinuxTransportFeatures(),
	}, nil
}

// newTransportFromConnInternal wraps an already-established net.Conn (or
// raw fd) into a linuxTransport, used when upgrading a connection accepted
// through Go's standard net.Listener.
func newTransportFromConnInternal(conn interface{}, ioBufferSize, numaNode int) (api.Transport, error) {
	type fdConn interface{ SyscallConn() (syscall.RawConn, error) }
	fc, ok := conn.(fdConn)
	if !ok {
		return nil, fmt.Errorf("newTransportFromConnInternal: conn does not expose SyscallConn")
	}
	raw, err := fc.SyscallConn()
	if err != nil {
		return nil, fmt.Errorf("SyscallConn: %w", err)
	}
	var fd int
	ctrlErr := raw.Control(func(s uintptr) { fd = int(s) })
	if ctrlErr != nil {
		return nil, fmt.Errorf("raw control: %w", ctrlErr)
	}
	dupFd, err := unix.Dup(fd)
	if err != nil {
		return nil, fmt.Errorf("dup fd: %w", err)
	}
	return &linuxTransport{
		fd:       dupFd,
		bufPool:  pool.DefaultManager().GetPool(numaNode),
		features: newLinuxTransportFeatures(),
	}, nil
}

// newClientTransportInternal dials addr and wraps the resulting socket.
func newClientTransportInternal(addr string, ioBufferSize, numaNode int) (api.Transport, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("socket create: %w", err)
	}
	defer func() {
		if err != nil {
			unix.Close(fd)
		}
	}()

	sa, err := resolveSockaddr(addr)
	if err != nil {
		return nil, fmt.Errorf("resolve addr: %w", err)
	}
	if err = unix.Connect(fd, sa); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err = unix.SetNonblock(fd, true); err != nil {
		return nil, fmt.Errorf("set nonblock: %w", err)
	}

	return &linuxTransport{
		fd:       fd,
		bufPool:  pool.DefaultManager().GetPool(numaNode),
		features: newLinuxTransportFeatures(),
	}, nil
}

// io_uring is out of scope for the completion-port proactor this package
// wires against; these stay as clearly-marked stubs rather than pulling
// in an io_uring dependency nothing here exercises.
func newIoURingTransportInternal(ioBufferSize, numaNode int) (api.Transport, error) {
	return nil, fmt.Errorf("io_uring transport not supported in this build")
}

func newEpollTransportInternal(ioBufferSize, numaNode int) (api.Transport, error) {
	return newTransportInternal(ioBufferSize, numaNode)
}

func newIoURingTransportFromConnInternal(conn interface{}, ioBufferSize, numaNode int) (api.Transport, error) {
	return nil, fmt.Errorf("io_uring transport not supported in this build")
}

func newEpollTransportFromConnInternal(conn interface{}, ioBufferSize, numaNode int) (api.Transport, error) {
	return newTransportFromConnInternal(conn, ioBufferSize, numaNode)
}

func newIoURingClientTransportInternal(addr string, ioBufferSize, numaNode int) (api.Transport, error) {
	return nil, fmt.Errorf("io_uring transport not supported in this build")
}

func newEpollClientTransportInternal(addr string, ioBufferSize, numaNode int) (api.Transport, error) {
	return newClientTransportInternal(addr, ioBufferSize, numaNode)
}

// Send sends all buffers in one atomic batch via SendmsgBuffers.
func (lt *linuxTransport) Send(buffers [][]byte) error {
	if lt.closed {
		return api.ErrTransportClosed
	}
	sent, err := unix.SendmsgBuffers(lt.fd, buffers, nil, nil, 0)
	if err != nil {
		return fmt.Errorf("SendmsgBuffers: %w", err)
	}
	total := 0
	for _, b := range buffers {
		total += len(b)
	}
	if sent != total {
		return fmt.Errorf("partial send: %d/%d bytes", sent, total)
	}
	return nil
}

// Recv reads up to maxBuffers via RecvmsgBuffers and returns slices trimmed to lengths.
func (lt *linuxTransport) Recv() ([][]byte, error) {
	if lt.closed {
		return nil, api.ErrTransportClosed
	}
	const maxBuffers = 16
	bufs := make([][]byte, maxBuffers)
	for i := range bufs {
		buf := lt.bufPool.Get(65536, 0)
		bufs[i] = buf.Bytes()
	}
	n, _, _, _, err := unix.RecvmsgBuffers(lt.fd, bufs, nil, unix.MSG_DONTWAIT)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return nil, nil
		}
		return nil, fmt.Errorf("RecvmsgBuffers: %w", err)
	}
	out := make([][]byte, 0, maxBuffers)
	for _, b := range bufs {
		if n <= 0 {
			break
		}
		chunk := len(b)
		if chunk > n {
			chunk = n
		}
		out = append(out, b[:chunk])
		n -= chunk
	}
	return out, nil
}

// Close closes the socket and prevents further operations.
func (lt *linuxTransport) Close() error {
	if lt.closed {
		return nil
	}
	lt.closed = true
	return unix.Close(lt.fd)
}

// Features returns transport capabilities.
func (lt *linuxTransport) Features() api.TransportFeatures {
	return lt.features
}

// resolveSockaddr resolves a "host:port" string into a raw IPv4 sockaddr
// suitable for unix.Connect.
func resolveSockaddr(addr string) (unix.Sockaddr, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp4", addr)
	if err != nil {
		return nil, err
	}
	sa := &unix.SockaddrInet4{Port: tcpAddr.Port}
	copy(sa.Addr[:], tcpAddr.IP.To4())
	return sa, nil
}
