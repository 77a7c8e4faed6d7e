// +build windows

// Package pool
// Author: momentics <momentics@gmail.com>
//
// Windows-specific NUMA-aware, zero-copy buffer pool implementation.

package pool

import (
	"sync"
	"unsafe"

	"github.com/momentics/hioload-ws/api"
	"golang.org/x/sys/windows"
)

type windowsBufferPool struct {
	pool    sync.Pool
	numaId  int
	bufSize int
	stats   api.BufferPoolStats
}

// numaAllocThreshold is the size at or above which a fresh buffer is backed by
// NUMA-pinned pages via VirtualAllocExNuma rather than the Go heap.
const numaAllocThreshold = 1 << 16

// allocBacking returns size bytes of backing storage, preferring memory
// pinned to numaId for allocations large enough that locality matters.
// Falls back to a plain heap slice if the NUMA allocation fails or the
// size doesn't warrant it.
func (bp *windowsBufferPool) allocBacking(size int) []byte {
	if size < numaAllocThreshold || bp.numaId < 0 {
		return make([]byte, size)
	}
	addr, err := virtualAllocExNuma(windows.CurrentProcess(), size, uint32(bp.numaId))
	if err != nil || addr == 0 {
		return make([]byte, size)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
}

func (bp *windowsBufferPool) Get(size int, numaPreferred int) api.Buffer {
	var data []byte
	if v := bp.pool.Get(); v != nil {
		data = v.([]byte)
		if cap(data) < size {
			data = bp.allocBacking(size)
		} else {
			data = data[:size]
		}
	} else {
		data = bp.allocBacking(size)
	}
	return api.Buffer{Data: data, NUMA: bp.numaId, Pool: bp}
}

func (bp *windowsBufferPool) Put(b api.Buffer) {
	if b.Data == nil {
		return
	}
	bp.pool.Put(b.Data[:cap(b.Data)])
}

func (bp *windowsBufferPool) Stats() api.BufferPoolStats {
	return bp.stats
}

// newBufferPool (Windows) creates buffer pool with potential NUMA affinity.
func newBufferPool(numaNode int) api.BufferPool {
	return &windowsBufferPool{
		numaId:  numaNode,
		bufSize: 65536,
	}
}
