package transport_test

import (
	"runtime"
	"testing"

	"github.com/momentics/hioload-ws/internal/transport"
)

func TestDetectTransportFeatures(t *testing.T) {
	feats := transport.DetectTransportFeatures()
	if !feats.ZeroCopy || !feats.Batch || !feats.NUMAAware {
		t.Errorf("unexpected features: %+v", feats)
	}
	if len(feats.OS) != 1 || feats.OS[0] != runtime.GOOS {
		t.Errorf("expected OS=[%s], got %v", runtime.GOOS, feats.OS)
	}
}

func TestRuntimeTransportSelector(t *testing.T) {
	sel := transport.RuntimeTransportSelector()
	if sel != "io_uring" && sel != "epoll" {
		t.Errorf("unexpected selector result: %q", sel)
	}
	if runtime.GOOS != "linux" && sel != "epoll" {
		t.Errorf("non-linux platforms must select epoll, got %q", sel)
	}
}

func TestTransportFactoryCreate(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "windows" {
		t.Skip("transport factory only implemented for linux and windows")
	}
	f := transport.NewTransportFactory(8192, -1)
	tr, err := f.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer tr.Close()

	feats := tr.Features()
	if !feats.ZeroCopy {
		t.Errorf("expected ZeroCopy transport, got %+v", feats)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("second Close must be idempotent, got %v", err)
	}
}
