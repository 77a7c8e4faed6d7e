//go:build windows
// +build windows

package iocp

import (
	"errors"
	"testing"

	"golang.org/x/sys/windows"
)

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindNone:       "none",
		KindNotStarted: "not-started",
		KindRead:       "read",
		KindWrite:      "write",
		KindAccept:     "accept",
		KindConnect:    "connect",
		KindDisconnect: "disconnect",
		Kind(99):       "unknown",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}

func TestNewPortCreatesUsableHandle(t *testing.T) {
	p, err := NewPort(0)
	if err != nil {
		t.Fatalf("NewPort: %v", err)
	}
	defer p.Close()
	if p.Handle() == 0 || p.Handle() == windows.InvalidHandle {
		t.Fatalf("NewPort returned an unusable handle: %v", p.Handle())
	}
}

func TestCreateOrAssociateReturnsSamePort(t *testing.T) {
	p, err := NewPort(0)
	if err != nil {
		t.Fatalf("NewPort: %v", err)
	}
	defer p.Close()

	sock, err := windows.Socket(windows.AF_INET, windows.SOCK_STREAM, windows.IPPROTO_TCP)
	if err != nil {
		t.Fatalf("Socket: %v", err)
	}
	defer windows.Closesocket(sock)

	got, err := CreateOrAssociate(windows.Handle(sock), p, 0, 0)
	if err != nil {
		t.Fatalf("CreateOrAssociate: %v", err)
	}
	if got != p {
		t.Fatalf("CreateOrAssociate returned a different *Port than the one supplied")
	}
}

func TestPortDequeueTimesOut(t *testing.T) {
	p, err := NewPort(0)
	if err != nil {
		t.Fatalf("NewPort: %v", err)
	}
	defer p.Close()

	_, err = p.Dequeue(50)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Dequeue on an idle port: got %v, want ErrTimeout", err)
	}
}

func TestPortPostIsObservedByDequeue(t *testing.T) {
	p, err := NewPort(0)
	if err != nil {
		t.Fatalf("NewPort: %v", err)
	}
	defer p.Close()

	ov := New(0)
	defer ov.Close()

	if err := p.Post(7, 42, ov); err != nil {
		t.Fatalf("Post: %v", err)
	}

	c, err := p.Dequeue(1000)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if c.Bytes != 7 || c.Key != 42 {
		t.Fatalf("Dequeue returned %+v, want Bytes=7 Key=42", c)
	}
	if c.Overlapped == nil || c.Overlapped.Address() != ov.Address() {
		t.Fatalf("Dequeue did not return the posted Overlapped")
	}
}

func TestPortDequeueWithNullOverlappedAndNoTimeoutIsAnError(t *testing.T) {
	p, err := NewPort(0)
	if err != nil {
		t.Fatalf("NewPort: %v", err)
	}
	defer p.Close()
	if err := p.Post(0, 0, nil); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if _, err := p.Dequeue(1000); err == nil {
		t.Fatalf("Dequeue with a null overlapped and no timeout should surface an error")
	}
}
