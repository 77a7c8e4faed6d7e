package control_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/momentics/hioload-ws/control"
)

func TestConfigFileWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "iocp.json")
	initial, _ := json.Marshal(control.IOCPConfig{ConcurrencyHint: 1, MaxBatchSize: 8})
	if err := os.WriteFile(path, initial, 0o644); err != nil {
		t.Fatalf("write initial config: %v", err)
	}

	cs := control.NewConfigStore()
	w, err := control.NewConfigFileWatcher(cs, path)
	if err != nil {
		t.Fatalf("NewConfigFileWatcher: %v", err)
	}
	defer w.Close()

	if err := w.Watch(); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	reloaded := make(chan struct{}, 1)
	cs.OnReload(func() {
		select {
		case reloaded <- struct{}{}:
		default:
		}
	})

	updated, _ := json.Marshal(control.IOCPConfig{ConcurrencyHint: 7, MaxBatchSize: 32})
	if err := os.WriteFile(path, updated, 0o644); err != nil {
		t.Fatalf("write updated config: %v", err)
	}

	select {
	case <-reloaded:
	case <-time.After(3 * time.Second):
		t.Fatal("config file change was not observed")
	}

	cfg := cs.IOCPConfig()
	if cfg.ConcurrencyHint != 7 {
		t.Errorf("expected ConcurrencyHint 7 after reload, got %d", cfg.ConcurrencyHint)
	}
	if cfg.MaxBatchSize != 32 {
		t.Errorf("expected MaxBatchSize 32 after reload, got %d", cfg.MaxBatchSize)
	}
}
