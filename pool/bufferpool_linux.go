// +build linux

// Package pool
// Author: momentics <momentics@gmail.com>
//
// Linux-specific NUMA-aware, zero-copy buffer pool implementation.

package pool

import (
	"sync"

	"github.com/momentics/hioload-ws/api"
)

// linuxBufferPool implements a lock-free NUMA-aware buffer pool for Linux.
type linuxBufferPool struct {
	pool    sync.Pool
	numaId  int
	bufSize int
	stats   api.BufferPoolStats
}

func (bp *linuxBufferPool) Get(size int, numaPreferred int) api.Buffer {
	var data []byte
	if v := bp.pool.Get(); v != nil {
		data = v.([]byte)
		if cap(data) < size {
			data = make([]byte, size)
		} else {
			data = data[:size]
		}
	} else {
		data = make([]byte, size)
	}
	return api.Buffer{Data: data, NUMA: bp.numaId, Pool: bp}
}

func (bp *linuxBufferPool) Put(b api.Buffer) {
	if b.Data == nil {
		return
	}
	bp.pool.Put(b.Data[:cap(b.Data)])
}

func (bp *linuxBufferPool) Stats() api.BufferPoolStats {
	return bp.stats
}

// newBufferPool (Linux) creates a buffer pool for the specified NUMA node.
// TODO: Advanced hugepage, mmap, or memfd usage for ultra-low-latency buffer blocks.
func newBufferPool(numaNode int) api.BufferPool {
	return &linuxBufferPool{
		numaId:  numaNode,
		bufSize: 65536, // default buffer size
	}
}
