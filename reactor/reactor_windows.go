//go:build windows
// +build windows

// File: reactor/reactor_windows.go
// Author: momentics <momentics@gmail.com>
//
// Windows IOCP (I/O Completion Port) reactor implementation and factory,
// built on the iocp package's Port and Overlapped primitives rather than
// calling windows.CreateIoCompletionPort/GetQueuedCompletionStatus
// directly. Readiness for a registered fd is simulated with a zero-byte
// WSARecv probe: on a stream socket such a receive only completes once
// data is actually available to read, without consuming any of it, which
// gives this otherwise completion-oriented facility the read-readiness
// semantics the Reactor interface expects.

package reactor

import (
	"sync"

	"github.com/eapache/queue"
	"github.com/momentics/hioload-ws/iocp"
	"golang.org/x/sys/windows"
)

// reactorEntry tracks one registered fd's callback and its in-flight
// readiness probe.
type reactorEntry struct {
	events FDEventType
	cb     FDCallback
	recvOv *iocp.Overlapped
}

// windowsReactor is an IOCP-based event reactor.
type windowsReactor struct {
	port *iocp.Port

	mu        sync.Mutex
	callbacks map[uintptr]*reactorEntry

	// ready buffers completions the dispatch loop hasn't drained yet. A
	// single Poll call can observe more completions than it has room to
	// process inline if callbacks themselves re-arm synchronously; the
	// ring buffer keeps Poll non-recursive.
	ready *queue.Queue
}

// NewReactor constructs a new platform-specific Reactor for Windows.
func NewReactor() (Reactor, error) {
	port, err := iocp.NewPort(0)
	if err != nil {
		return nil, err
	}
	return &windowsReactor{
		port:      port,
		callbacks: make(map[uintptr]*reactorEntry),
		ready:     queue.New(),
	}, nil
}

// Register associates fd with the reactor's completion port and, if
// EventRead is requested, arms a zero-byte readiness probe for it.
func (r *windowsReactor) Register(fd uintptr, events FDEventType, cb FDCallback) error {
	handle := windows.Handle(fd)
	if _, err := iocp.CreateOrAssociate(handle, r.port, fd, 0); err != nil {
		return err
	}

	entry := &reactorEntry{events: events, cb: cb}
	r.mu.Lock()
	r.callbacks[fd] = entry
	r.mu.Unlock()

	if events&EventRead != 0 {
		return r.armRead(fd, handle, entry)
	}
	return nil
}

// armRead submits a fresh zero-byte receive, the probe whose completion
// signals readability.
func (r *windowsReactor) armRead(fd uintptr, handle windows.Handle, entry *reactorEntry) error {
	ov := iocp.New(0)
	if err := ov.RecvSocket(handle, 0, 0); err != nil {
		ov.Close()
		return err
	}
	r.mu.Lock()
	entry.recvOv = ov
	r.mu.Unlock()
	return nil
}

// Unregister stops watching fd and cancels its outstanding probe, if any.
func (r *windowsReactor) Unregister(fd uintptr) error {
	r.mu.Lock()
	entry := r.callbacks[fd]
	delete(r.callbacks, fd)
	r.mu.Unlock()

	if entry != nil && entry.recvOv != nil {
		_ = entry.recvOv.Cancel()
		entry.recvOv.Close()
	}
	return nil
}

// Poll blocks for at least one completion (or timeoutMs milliseconds,
// whichever comes first) and dispatches every completion it can drain
// without blocking again.
func (r *windowsReactor) Poll(timeoutMs int) error {
	timeout := uint32(iocp.InfiniteTimeout)
	if timeoutMs >= 0 {
		timeout = uint32(timeoutMs)
	}

	c, err := r.port.Dequeue(timeout)
	if err == iocp.ErrTimeout {
		return nil
	}
	if err != nil {
		return err
	}
	r.ready.Add(c)
	for {
		more, err := r.port.Dequeue(0)
		if err != nil {
			break
		}
		r.ready.Add(more)
	}

	for r.ready.Length() > 0 {
		comp := r.ready.Peek().(iocp.Completion)
		r.ready.Remove()
		r.dispatch(comp)
	}
	return nil
}

func (r *windowsReactor) dispatch(comp iocp.Completion) {
	r.mu.Lock()
	entry := r.callbacks[comp.Key]
	r.mu.Unlock()
	if entry == nil {
		return
	}

	evt := EventRead
	if comp.Err != nil {
		evt = EventError
	}

	func() {
		defer func() { _ = recover() }()
		entry.cb(comp.Key, evt)
	}()

	if evt == EventRead && entry.events&EventRead != 0 {
		_ = r.armRead(comp.Key, windows.Handle(comp.Key), entry)
	}
}

// Close releases every outstanding probe and the underlying IOCP handle.
func (r *windowsReactor) Close() error {
	r.mu.Lock()
	for _, entry := range r.callbacks {
		if entry.recvOv != nil {
			entry.recvOv.Close()
		}
	}
	r.callbacks = nil
	r.mu.Unlock()
	return r.port.Close()
}
