// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Thread-safe configuration store with dynamic update and hot-reload propagation.

package control

import (
	"sync"
	"time"
)

// IOCPConfig holds the tunables for the Windows completion-port backend.
// Values are zero-valued by default; ApplyDefaults fills in sensible
// defaults for any field left unset.
type IOCPConfig struct {
	// ConcurrencyHint is passed to CreateIoCompletionPort's
	// NumberOfConcurrentThreads parameter. Zero means "let the OS pick
	// (NumCPU)".
	ConcurrencyHint uint32

	// DequeueTimeout bounds how long Port.Dequeue blocks before returning
	// iocp.ErrTimeout.
	DequeueTimeout time.Duration

	// MaxBatchSize caps the number of scatter-gather buffers passed to a
	// single AcceptEx/WSARecv call.
	MaxBatchSize int
}

// ApplyDefaults fills unset fields with their default values.
func (c IOCPConfig) ApplyDefaults() IOCPConfig {
	if c.DequeueTimeout <= 0 {
		c.DequeueTimeout = 500 * time.Millisecond
	}
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = 16
	}
	return c
}

// ConfigStore is a dynamic key/value map with atomic snapshot and listener support.
type ConfigStore struct {
	mu        sync.RWMutex
	config    map[string]any
	iocp      IOCPConfig
	listeners []func()
}

// NewConfigStore initializes a new config store with empty data.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{
		config:    make(map[string]any),
		iocp:      IOCPConfig{}.ApplyDefaults(),
		listeners: make([]func(), 0),
	}
}

// IOCPConfig returns the current completion-port tunables.
func (cs *ConfigStore) IOCPConfig() IOCPConfig {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.iocp
}

// SetIOCPConfig replaces the completion-port tunables and dispatches reload.
func (cs *ConfigStore) SetIOCPConfig(cfg IOCPConfig) {
	cs.mu.Lock()
	cs.iocp = cfg.ApplyDefaults()
	cs.mu.Unlock()
	cs.dispatchReload()
}

// GetSnapshot returns a copy of all config values.
func (cs *ConfigStore) GetSnapshot() map[string]any {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	copy := make(map[string]any, len(cs.config))
	for k, v := range cs.config {
		copy[k] = v
	}
	return copy
}

// SetConfig merges new values and dispatches reload if needed.
func (cs *ConfigStore) SetConfig(newCfg map[string]any) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for k, v := range newCfg {
		cs.config[k] = v
	}
	cs.dispatchReload()
}

// OnReload registers a listener hook called on config changes.
func (cs *ConfigStore) OnReload(fn func()) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}

// dispatchReload invokes all listeners.
func (cs *ConfigStore) dispatchReload() {
	for _, fn := range cs.listeners {
		go fn()
	}
}
