package control_test

import (
	"testing"
	"time"

	"github.com/momentics/hioload-ws/control"
)

func TestConfigStoreSnapshotIsIndependentCopy(t *testing.T) {
	cs := control.NewConfigStore()
	cs.SetConfig(map[string]any{"a": 1})
	snap := cs.GetSnapshot()
	snap["a"] = 2
	if cs.GetSnapshot()["a"] != 1 {
		t.Error("mutating a snapshot must not affect the store")
	}
}

func TestConfigStoreIOCPConfigDefaults(t *testing.T) {
	cs := control.NewConfigStore()
	cfg := cs.IOCPConfig()
	if cfg.DequeueTimeout != 500*time.Millisecond {
		t.Errorf("expected default DequeueTimeout of 500ms, got %v", cfg.DequeueTimeout)
	}
	if cfg.MaxBatchSize != 16 {
		t.Errorf("expected default MaxBatchSize of 16, got %d", cfg.MaxBatchSize)
	}
}

func TestConfigStoreSetIOCPConfigFillsPartialDefaults(t *testing.T) {
	cs := control.NewConfigStore()
	cs.SetIOCPConfig(control.IOCPConfig{ConcurrencyHint: 4})
	cfg := cs.IOCPConfig()
	if cfg.ConcurrencyHint != 4 {
		t.Errorf("expected ConcurrencyHint 4, got %d", cfg.ConcurrencyHint)
	}
	if cfg.MaxBatchSize != 16 {
		t.Errorf("expected MaxBatchSize to fall back to default 16, got %d", cfg.MaxBatchSize)
	}
}

func TestConfigStoreSetConfigDispatchesReload(t *testing.T) {
	cs := control.NewConfigStore()
	done := make(chan struct{})
	cs.OnReload(func() { close(done) })
	cs.SetConfig(map[string]any{"x": true})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reload hook was not invoked")
	}
}
