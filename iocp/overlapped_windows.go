//go:build windows
// +build windows

// File: iocp/overlapped_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Overlapped is the heap-resident, single-use asynchronous I/O request
// object: an OVERLAPPED control block plus the bookkeeping needed to
// submit exactly one of seven verbs against it, retrieve its result once
// the completion port delivers it, cancel it, and tear it down safely
// whether or not it ever completed.
//
// raw is kept as the struct's first field deliberately: the OS only ever
// hands GetQueuedCompletionStatus's caller the address of the embedded
// OVERLAPPED, and Port.Dequeue needs to recover the owning *Overlapped
// from that bare pointer with nothing more than an unsafe cast. Keeping
// raw first makes that cast identity-preserving. See overlappedFromRaw
// below and the completion-routing technique it is grounded on.
package iocp

import (
	"encoding/binary"
	"fmt"
	"net"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/windows"
)

const sockaddrIn6Size = 28 // sizeof(SOCKADDR_IN6): family+port+flowinfo+addr+scopeid

// Overlapped is a single asynchronous I/O request. Every exported method
// is safe to call from any goroutine; GetResult, Cancel and Close may all
// be invoked concurrently with each other and with the completion-port
// dispatch loop that eventually calls back in via overlappedFromRaw.
type Overlapped struct {
	raw windows.Overlapped

	mu           sync.Mutex
	kind         Kind
	handle       windows.Handle
	event        windows.Handle
	ownsEvent    bool
	lastErr      error
	readBuf      []byte
	writeBuf     []byte
	isSocket     bool
	syntheticEOF bool

	completed atomic.Bool
	closed    atomic.Bool
}

// overlappedFromRaw recovers the owning *Overlapped from the bare pointer
// the OS hands back through GetQueuedCompletionStatus. Valid only because
// raw is Overlapped's first field, so the two addresses coincide; the
// technique mirrors the ioOperation/ioCompletionProcessor pairing used to
// route completions back to their request object over a shared port.
func overlappedFromRaw(ov *windows.Overlapped) *Overlapped {
	return (*Overlapped)(unsafe.Pointer(ov))
}

// New allocates an Overlapped bound to event, a manual-reset, initially
// unsignaled event used by callers that wait on the handle directly
// instead of (or in addition to) a completion port. When event is zero, a
// private one is created and owned by this object. A finalizer is
// installed as a last-resort safety net; callers are still expected to
// call Close explicitly.
func New(event windows.Handle) *Overlapped {
	o := &Overlapped{}
	if event == 0 {
		if ev, err := windows.CreateEvent(nil, 1, 0, nil); err == nil {
			o.event = ev
			o.ownsEvent = true
		}
	} else {
		o.event = event
	}
	o.raw.HEvent = o.event
	runtime.SetFinalizer(o, (*Overlapped).finalize)
	return o
}

// begin transitions kind from none to target exactly once, recording the
// handle the operation runs against. Returns ErrAlreadyAttempted on reuse.
func (o *Overlapped) begin(target Kind, handle windows.Handle) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.kind != KindNone {
		return ErrAlreadyAttempted
	}
	o.kind = target
	o.handle = handle
	return nil
}

// downgrade records a genuine start failure: kind falls back to
// not-started and the raw OS error is remembered for Err().
func (o *Overlapped) downgrade(err error) {
	o.mu.Lock()
	o.kind = KindNotStarted
	o.lastErr = err
	o.mu.Unlock()
}

// classifyStart interprets the return of an OS start call. isRead
// distinguishes the read-style broken-pipe carve-out from the write-style
// "surface it as an error" behavior.
func (o *Overlapped) classifyStart(err error, isRead bool) error {
	switch {
	case err == nil, isMoreData(err):
		o.mu.Lock()
		o.lastErr = err
		o.mu.Unlock()
		return nil
	case err == windows.ERROR_IO_PENDING:
		o.mu.Lock()
		o.lastErr = err
		o.mu.Unlock()
		return nil
	case isRead && isBrokenPipe(err):
		o.mu.Lock()
		o.kind = KindNotStarted
		o.lastErr = err
		o.syntheticEOF = true
		o.mu.Unlock()
		return nil
	default:
		o.downgrade(err)
		return ClassifyError(err)
	}
}

// ReadFile submits an overlapped ReadFile against handle, a plain file or
// pipe handle (not a socket). The read buffer is allocated and owned by
// the operation; at least one byte is always requested.
func (o *Overlapped) ReadFile(handle windows.Handle, maxSize int) error {
	if err := o.begin(KindRead, handle); err != nil {
		return err
	}
	if maxSize < 1 {
		maxSize = 1
	}
	buf := make([]byte, maxSize)
	o.mu.Lock()
	o.readBuf = buf
	o.mu.Unlock()

	var n uint32
	err := windows.ReadFile(handle, buf, &n, &o.raw)
	return o.classifyStart(err, true)
}

// RecvSocket submits an overlapped WSARecv against handle, a socket.
func (o *Overlapped) RecvSocket(handle windows.Handle, maxSize int, flags uint32) error {
	if err := o.begin(KindRead, handle); err != nil {
		return err
	}
	if maxSize < 1 {
		maxSize = 1
	}
	buf := make([]byte, maxSize)
	o.mu.Lock()
	o.isSocket = true
	o.readBuf = buf
	o.mu.Unlock()

	wsabuf := windows.WSABuf{Len: uint32(len(buf)), Buf: &buf[0]}
	var n uint32
	f := flags
	err := windows.WSARecv(handle, &wsabuf, 1, &n, &f, &o.raw, nil)
	return o.classifyStart(err, true)
}

// WriteFile submits an overlapped WriteFile against handle, a plain file
// or pipe handle. data is borrowed, not copied: the caller must keep it
// alive and unmodified until GetResult or Close observes completion.
// Buffers longer than a DWORD are rejected with ErrBufferTooLarge before
// any syscall is issued.
func (o *Overlapped) WriteFile(handle windows.Handle, data []byte) error {
	if err := o.begin(KindWrite, handle); err != nil {
		return err
	}
	if uint64(len(data)) > 0xFFFFFFFF {
		o.downgrade(ErrBufferTooLarge)
		return ErrBufferTooLarge
	}
	o.mu.Lock()
	o.writeBuf = data
	o.mu.Unlock()

	var n uint32
	err := windows.WriteFile(handle, data, &n, &o.raw)
	return o.classifyStart(err, false)
}

// SendSocket submits an overlapped WSASend against handle, a socket, with
// the same buffer-borrowing and size-limit contract as WriteFile.
func (o *Overlapped) SendSocket(handle windows.Handle, data []byte, flags uint32) error {
	if err := o.begin(KindWrite, handle); err != nil {
		return err
	}
	if uint64(len(data)) > 0xFFFFFFFF {
		o.downgrade(ErrBufferTooLarge)
		return ErrBufferTooLarge
	}
	o.mu.Lock()
	o.isSocket = true
	o.writeBuf = data
	o.mu.Unlock()

	var wsabuf windows.WSABuf
	var scratch [1]byte
	if len(data) > 0 {
		wsabuf = windows.WSABuf{Len: uint32(len(data)), Buf: &data[0]}
	} else {
		wsabuf = windows.WSABuf{Len: 0, Buf: &scratch[0]}
	}
	var n uint32
	err := windows.WSASend(handle, &wsabuf, 1, &n, flags, &o.raw, nil)
	return o.classifyStart(err, false)
}

// Accept submits an overlapped AcceptEx. listenHandle is a bound,
// listening socket; acceptHandle is a fresh, unbound socket created by the
// caller to receive the incoming connection. The address buffer is sized
// for two sockaddr_in6 structures plus the 16-byte padding AcceptEx
// requires on each side.
func (o *Overlapped) Accept(listenHandle, acceptHandle windows.Handle) error {
	if err := o.begin(KindAccept, listenHandle); err != nil {
		return err
	}
	addrLen := uint32(sockaddrIn6Size + 16)
	buf := make([]byte, 2*addrLen)
	o.mu.Lock()
	o.readBuf = buf
	o.handle = listenHandle
	o.mu.Unlock()

	var bytesReceived uint32
	err := acceptEx(listenHandle, acceptHandle, &buf[0], 0, addrLen, addrLen, &bytesReceived, &o.raw)
	return o.classifyStart(err, false)
}

// Connect submits an overlapped ConnectEx. handle must already be bound,
// typically via BindAny, before Connect is called: ConnectEx refuses
// unbound sockets. addr must be an AddrV4 or AddrV6 value; any other shape
// is rejected with ErrInvalidAddressTuple before any syscall is issued.
func (o *Overlapped) Connect(handle windows.Handle, addr any) error {
	if err := o.begin(KindConnect, handle); err != nil {
		return err
	}
	name, namelen, err := marshalSockaddr(addr)
	if err != nil {
		o.downgrade(err)
		return err
	}
	err = connectEx(handle, unsafe.Pointer(&name[0]), namelen, &o.raw)
	return o.classifyStart(err, false)
}

// Disconnect submits an overlapped DisconnectEx. flags may include
// TF_REUSE_SOCKET to permit the handle to be reused by a later AcceptEx or
// ConnectEx once disconnection completes.
func (o *Overlapped) Disconnect(handle windows.Handle, flags uint32) error {
	if err := o.begin(KindDisconnect, handle); err != nil {
		return err
	}
	err := disconnectEx(handle, &o.raw, flags)
	return o.classifyStart(err, false)
}

// GetResult retrieves the operation's outcome. wait selects whether to
// block until the OS settles a still-pending operation or to return
// immediately with ERROR_IO_INCOMPLETE-shaped failure when it has not.
// The returned value's dynamic type depends on kind: []byte for
// read-style verbs (possibly empty, possibly shorter than
// requested), int for write-style verbs, and struct{} for accept, connect
// and disconnect.
func (o *Overlapped) GetResult(wait bool) (any, error) {
	o.mu.Lock()
	kind := o.kind
	handle := o.handle
	isSocket := o.isSocket
	syntheticEOF := o.syntheticEOF
	o.mu.Unlock()

	switch kind {
	case KindNone:
		return nil, ErrNotYetAttempted
	case KindNotStarted:
		if syntheticEOF {
			return []byte{}, nil
		}
		return nil, ErrFailedToStart
	}

	var transferred uint32
	var osErr error
	if isSocket {
		var flags uint32
		osErr = windows.WSAGetOverlappedResult(handle, &o.raw, &transferred, wait, &flags)
	} else {
		osErr = windows.GetOverlappedResult(handle, &o.raw, &transferred, wait)
	}
	runtime.KeepAlive(o)

	o.mu.Lock()
	o.lastErr = osErr
	o.mu.Unlock()

	switch {
	case osErr == nil, isMoreData(osErr):
		o.completed.Store(true)
	case kind == KindRead && isBrokenPipe(osErr):
		o.completed.Store(true)
		return []byte{}, nil
	case osErr == windows.ERROR_IO_INCOMPLETE:
		// Still in flight: the operation stays pending.
		return nil, ClassifyError(osErr)
	default:
		o.completed.Store(true)
		return nil, ClassifyError(osErr)
	}

	switch kind {
	case KindRead:
		o.mu.Lock()
		buf := o.readBuf[:transferred]
		o.mu.Unlock()
		return buf, nil
	case KindWrite:
		return int(transferred), nil
	case KindAccept, KindConnect, KindDisconnect:
		return struct{}{}, nil
	default:
		return nil, ErrNotYetAttempted
	}
}

// Cancel requests cancellation of a pending operation. It never blocks: a
// successful cancellation still completes asynchronously, observed later
// through GetResult or the completion port. Cancel is a no-op on an
// operation that never started or has already settled,
// and ERROR_NOT_FOUND (already completed by the time the cancel reached
// the kernel) is treated as success rather than an error.
func (o *Overlapped) Cancel() error {
	o.mu.Lock()
	kind := o.kind
	handle := o.handle
	o.mu.Unlock()

	if kind == KindNone || kind == KindNotStarted || o.completed.Load() {
		return nil
	}
	err := cancelIoEx(handle, &o.raw)
	if err != nil && !isNotFound(err) {
		return ClassifyError(err)
	}
	return nil
}

// Err returns the most recently observed OS error, or nil.
func (o *Overlapped) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// Address returns the operation's identity as the completion port reports
// it: the address of this Overlapped, which also happens to be the
// address of its embedded OVERLAPPED (see overlappedFromRaw).
func (o *Overlapped) Address() uintptr {
	return uintptr(unsafe.Pointer(o))
}

// Pending reports whether the operation has been submitted and has not
// yet settled.
func (o *Overlapped) Pending() bool {
	o.mu.Lock()
	kind := o.kind
	o.mu.Unlock()
	return kind != KindNone && kind != KindNotStarted && !o.completed.Load()
}

// Close tears the operation down. If an operation is still pending,
// Close cancels it and then blocks until the OS
// confirms a terminal state, accepting only success, ERROR_NOT_FOUND and
// ERROR_OPERATION_ABORTED as terminal; anything else is logged rather than
// panicked on, since a destructor has no caller to return an error to.
// Close is idempotent and safe to call more than once.
func (o *Overlapped) Close() {
	if !o.closed.CompareAndSwap(false, true) {
		return
	}

	o.mu.Lock()
	kind := o.kind
	handle := o.handle
	isSocket := o.isSocket
	event := o.event
	owns := o.ownsEvent
	o.mu.Unlock()

	if kind != KindNone && kind != KindNotStarted && !o.completed.Load() {
		_ = o.Cancel()
		var transferred uint32
		var osErr error
		if isSocket {
			var flags uint32
			osErr = windows.WSAGetOverlappedResult(handle, &o.raw, &transferred, true, &flags)
		} else {
			osErr = windows.GetOverlappedResult(handle, &o.raw, &transferred, true)
		}
		runtime.KeepAlive(o)
		o.completed.Store(true)
		switch {
		case osErr == nil, isNotFound(osErr), isAborted(osErr):
			// terminal, as expected of a cancelled operation.
		default:
			fmt.Fprintf(os.Stderr, "iocp: overlapped closed with unexpected terminal state: %v\n", osErr)
		}
	}

	if owns && event != 0 {
		windows.CloseHandle(event)
	}

	o.mu.Lock()
	o.readBuf = nil
	o.writeBuf = nil
	o.mu.Unlock()

	runtime.SetFinalizer(o, nil)
}

// finalize is the garbage-collector safety net behind Close. Relying on it
// in steady-state operation is itself a bug: it runs on an arbitrary
// goroutine at an arbitrary time and may block that goroutine waiting on
// GetOverlappedResult.
func (o *Overlapped) finalize() {
	o.Close()
}

// marshalSockaddr renders addr as raw SOCKADDR_IN/SOCKADDR_IN6 bytes
// suitable for ConnectEx, which takes a pointer and length rather than the
// higher-level windows.Sockaddr interface. No name resolution is
// performed: Host must already be a numeric address.
func marshalSockaddr(addr any) (buf []byte, length int32, err error) {
	switch v := addr.(type) {
	case AddrV4:
		ip := net.ParseIP(v.Host)
		if ip == nil {
			return nil, 0, fmt.Errorf("iocp: %q is not a numeric IPv4 address", v.Host)
		}
		ip4 := ip.To4()
		if ip4 == nil {
			return nil, 0, fmt.Errorf("iocp: %q is not an IPv4 address", v.Host)
		}
		b := make([]byte, 16)
		binary.LittleEndian.PutUint16(b[0:2], windows.AF_INET)
		binary.BigEndian.PutUint16(b[2:4], v.Port)
		copy(b[4:8], ip4)
		return b, int32(len(b)), nil
	case AddrV6:
		ip := net.ParseIP(v.Host)
		if ip == nil {
			return nil, 0, fmt.Errorf("iocp: %q is not a numeric IPv6 address", v.Host)
		}
		ip16 := ip.To16()
		if ip16 == nil {
			return nil, 0, fmt.Errorf("iocp: %q is not an IPv6 address", v.Host)
		}
		b := make([]byte, sockaddrIn6Size)
		binary.LittleEndian.PutUint16(b[0:2], windows.AF_INET6)
		binary.BigEndian.PutUint16(b[2:4], v.Port)
		binary.LittleEndian.PutUint32(b[4:8], v.FlowInfo)
		copy(b[8:24], ip16)
		binary.LittleEndian.PutUint32(b[24:28], v.ScopeID)
		return b, int32(len(b)), nil
	default:
		return nil, 0, ErrInvalidAddressTuple
	}
}
