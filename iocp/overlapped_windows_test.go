//go:build windows
// +build windows

package iocp

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/sys/windows"
)

func TestOverlappedGetResultBeforeSubmission(t *testing.T) {
	o := New(0)
	defer o.Close()
	if _, err := o.GetResult(false); !errors.Is(err, ErrNotYetAttempted) {
		t.Fatalf("GetResult before submission: got %v, want ErrNotYetAttempted", err)
	}
}

func TestOverlappedCloseWithoutSubmissionIsSafe(t *testing.T) {
	o := New(0)
	o.Close()
	o.Close() // idempotent
}

func TestOverlappedDoubleSubmissionRejected(t *testing.T) {
	o := New(0)
	defer o.Close()

	_ = o.ReadFile(windows.Handle(0), 8) // bogus handle: the start call itself may fail, but kind still transitions

	if err := o.ReadFile(windows.Handle(0), 8); !errors.Is(err, ErrAlreadyAttempted) {
		t.Fatalf("second ReadFile on the same Overlapped: got %v, want ErrAlreadyAttempted", err)
	}
}

func TestOverlappedWriteAgainstInvalidHandleFails(t *testing.T) {
	o := New(0)
	defer o.Close()

	if err := o.WriteFile(windows.Handle(0), []byte("x")); err == nil {
		t.Fatalf("WriteFile against an invalid handle should fail")
	}
	if o.Pending() {
		t.Fatalf("a failed start should not leave the operation pending")
	}
}

func TestBindAnyRejectsNonNumericHost(t *testing.T) {
	sock, err := windows.Socket(windows.AF_INET, windows.SOCK_STREAM, windows.IPPROTO_TCP)
	if err != nil {
		t.Fatalf("Socket: %v", err)
	}
	defer windows.Closesocket(sock)

	if err := BindAny(windows.Handle(sock), AddrV4{Host: "localhost", Port: 0}); err == nil {
		t.Fatalf("BindAny should reject a non-numeric host without attempting resolution")
	}
}

func TestBindAnyAcceptsNumericAnyAddress(t *testing.T) {
	sock, err := windows.Socket(windows.AF_INET, windows.SOCK_STREAM, windows.IPPROTO_TCP)
	if err != nil {
		t.Fatalf("Socket: %v", err)
	}
	defer windows.Closesocket(sock)

	if err := BindAnyV4(windows.Handle(sock), 0); err != nil {
		t.Fatalf("BindAnyV4: %v", err)
	}
}

func TestBindAnyRejectsInvalidTupleShape(t *testing.T) {
	sock, err := windows.Socket(windows.AF_INET, windows.SOCK_STREAM, windows.IPPROTO_TCP)
	if err != nil {
		t.Fatalf("Socket: %v", err)
	}
	defer windows.Closesocket(sock)

	if err := BindAny(windows.Handle(sock), "not a tuple"); !errors.Is(err, ErrInvalidAddressTuple) {
		t.Fatalf("BindAny with a non-tuple address: got %v, want ErrInvalidAddressTuple", err)
	}
}

// TestOverlappedEchoOverLoopbackSocket drives a real accept/connect/send/
// recv cycle over 127.0.0.1 through a single completion port, exercising
// the Accept, Connect, SendSocket and RecvSocket verbs end to end in one
// pass.
func TestOverlappedEchoOverLoopbackSocket(t *testing.T) {
	port, err := NewPort(0)
	if err != nil {
		t.Fatalf("NewPort: %v", err)
	}
	defer port.Close()

	listenSock, err := windows.Socket(windows.AF_INET, windows.SOCK_STREAM, windows.IPPROTO_TCP)
	if err != nil {
		t.Fatalf("Socket(listen): %v", err)
	}
	defer windows.Closesocket(listenSock)

	if err := BindAnyV4(windows.Handle(listenSock), 0); err != nil {
		t.Fatalf("BindAnyV4: %v", err)
	}
	if err := windows.Listen(listenSock, 1); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	if _, err := CreateOrAssociate(windows.Handle(listenSock), port, 1, 0); err != nil {
		t.Fatalf("associate listen socket: %v", err)
	}

	acceptSock, err := windows.Socket(windows.AF_INET, windows.SOCK_STREAM, windows.IPPROTO_TCP)
	if err != nil {
		t.Fatalf("Socket(accept): %v", err)
	}
	defer windows.Closesocket(acceptSock)

	clientSock, err := windows.Socket(windows.AF_INET, windows.SOCK_STREAM, windows.IPPROTO_TCP)
	if err != nil {
		t.Fatalf("Socket(client): %v", err)
	}
	defer windows.Closesocket(clientSock)

	if err := BindAnyV4(windows.Handle(clientSock), 0); err != nil {
		t.Fatalf("BindAnyV4(client): %v", err)
	}
	if _, err := CreateOrAssociate(windows.Handle(clientSock), port, 2, 0); err != nil {
		t.Fatalf("associate client socket: %v", err)
	}

	acceptOv := New(0)
	defer acceptOv.Close()
	if err := acceptOv.Accept(windows.Handle(listenSock), windows.Handle(acceptSock)); err != nil && !errors.Is(err, windows.ERROR_IO_PENDING) {
		t.Fatalf("Accept: %v", err)
	}

	sa, err := windows.Getsockname(listenSock)
	if err != nil {
		t.Fatalf("Getsockname: %v", err)
	}
	in4, ok := sa.(*windows.SockaddrInet4)
	if !ok {
		t.Fatalf("Getsockname returned %T, want *SockaddrInet4", sa)
	}

	connectOv := New(0)
	defer connectOv.Close()
	connectAddr := AddrV4{Host: "127.0.0.1", Port: uint16(in4.Port)}
	if err := connectOv.Connect(windows.Handle(clientSock), connectAddr); err != nil && !errors.Is(err, windows.ERROR_IO_PENDING) {
		t.Fatalf("Connect: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	seenAccept, seenConnect := false, false
	for !seenAccept || !seenConnect {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for accept/connect completion")
		}
		c, err := port.Dequeue(250)
		if errors.Is(err, ErrTimeout) {
			continue
		}
		if err != nil {
			t.Fatalf("Dequeue: %v", err)
		}
		switch c.Overlapped.Address() {
		case acceptOv.Address():
			if _, err := acceptOv.GetResult(true); err != nil {
				t.Fatalf("accept GetResult: %v", err)
			}
			seenAccept = true
		case connectOv.Address():
			if _, err := connectOv.GetResult(true); err != nil {
				t.Fatalf("connect GetResult: %v", err)
			}
			seenConnect = true
		}
	}

	payload := []byte("hioload")
	sendOv := New(0)
	defer sendOv.Close()
	if err := sendOv.SendSocket(windows.Handle(clientSock), payload, 0); err != nil && !errors.Is(err, windows.ERROR_IO_PENDING) {
		t.Fatalf("SendSocket: %v", err)
	}

	// The accepted socket needs its own association so its receive
	// completion is delivered to the same port.
	if _, err := CreateOrAssociate(windows.Handle(acceptSock), port, 3, 0); err != nil {
		t.Fatalf("associate accept socket: %v", err)
	}

	recvOv := New(0)
	defer recvOv.Close()
	if err := recvOv.RecvSocket(windows.Handle(acceptSock), 64, 0); err != nil && !errors.Is(err, windows.ERROR_IO_PENDING) {
		t.Fatalf("RecvSocket: %v", err)
	}

	deadline = time.Now().Add(5 * time.Second)
	seenSend, seenRecv := false, false
	var received []byte
	for !seenSend || !seenRecv {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for send/recv completion")
		}
		c, err := port.Dequeue(250)
		if errors.Is(err, ErrTimeout) {
			continue
		}
		if err != nil {
			t.Fatalf("Dequeue: %v", err)
		}
		switch c.Overlapped.Address() {
		case sendOv.Address():
			if _, err := sendOv.GetResult(true); err != nil {
				t.Fatalf("send GetResult: %v", err)
			}
			seenSend = true
		case recvOv.Address():
			res, err := recvOv.GetResult(true)
			if err != nil {
				t.Fatalf("recv GetResult: %v", err)
			}
			received = res.([]byte)
			seenRecv = true
		}
	}

	if string(received) != string(payload) {
		t.Fatalf("echoed payload = %q, want %q", received, payload)
	}
}
