// File: api/transport.go
// Author: momentics <momentics@gmail.com>
//
// Defines transport socket abstraction (NetConn) for compatibility
// with custom event loops, memory pools, and zero-copy pipelines.

package api


// NetConn abstracts a full-duplex network connection object
// that may or may not be backed by Go's net.Conn
type NetConn interface {
	// Read reads into a preallocated buffer
	Read(p []byte) (n int, err error)

	// Write writes buffer contents into the connection
	Write(p []byte) (n int, err error)

	// Close shuts down the connection and notifies upstream layers
	Close() error

	// RawFD returns the underlying OS-level file descriptor
	RawFD() uintptr
}

// Transport is the platform-agnostic contract every concrete transport
// (Windows IOCP, Linux epoll/io_uring) implements. It carries whole
// messages as slices of byte slices rather than a single []byte so
// scatter-gather sends and zero-copy receives don't force a copy into
// one contiguous buffer.
type Transport interface {
	// Send writes every buffer in order; implementations may batch them
	// into a single syscall when the backend supports it.
	Send(buffers [][]byte) error

	// Recv returns the next batch of received buffers.
	Recv() ([][]byte, error)

	// Close releases the transport's underlying OS resources.
	Close() error

	// Features reports which optimizations this transport instance
	// actually has active, for callers that adapt behavior at runtime.
	Features() TransportFeatures
}

// TransportFeatures advertises which optimizations a Transport instance
// has available so callers can adapt without type-switching on the
// concrete implementation.
type TransportFeatures struct {
	ZeroCopy     bool
	Batch        bool
	NUMAAware    bool
	LockFree     bool
	SharedMemory bool
	TLS          bool
	OS           []string
}
