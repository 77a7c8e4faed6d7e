// File: iocp/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package iocp implements the completion-port proactor primitive that
// backs hioload-ws's Windows transport: a process-wide completion queue
// (Port) and a heap-pinned, single-use asynchronous I/O request
// (Overlapped) that participates in it. Everything else in the repository
// — the reactor, the transport factory, the high-level WebSocket server —
// is a collaborator of this package, not part of it.
package iocp
