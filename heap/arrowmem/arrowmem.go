// Package arrowmem exposes a heap allocator as an Apache Arrow
// memory.Allocator, so Arrow buffers and arrays can live inside a single
// arena.
//
// The Arrow interface has no error returns. Allocation failures (arena
// exhausted, request too large) and frees of foreign slices panic with an
// error wrapping the allocator's sentinel, matching how Arrow's own C-backed
// allocators report out-of-memory.
//
// Payloads are 8-byte aligned rather than the 64-byte alignment of
// memory.GoAllocator.
package arrowmem

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"unsafe"

	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/joshuapare/heapkit/heap/alloc"
)

// ErrForeignSlice indicates a slice that was not handed out by this allocator.
var ErrForeignSlice = errors.New("arrowmem: slice not owned by the heap")

// Allocator adapts an *alloc.Allocator to memory.Allocator. Arrow may call
// it from several goroutines, so every heap call is serialized.
type Allocator struct {
	mu        sync.Mutex
	heap      *alloc.Allocator
	allocated int64
}

// New wraps h.
func New(h *alloc.Allocator) *Allocator {
	return &Allocator{heap: h}
}

// Allocate returns size zeroed bytes.
func (m *Allocator) Allocate(size int) []byte {
	if size < 0 {
		panic("arrowmem: negative size")
	}
	if size == 0 {
		return []byte{}
	}
	n := checkSize(size)

	m.mu.Lock()
	defer m.mu.Unlock()

	_, buf, err := m.heap.Calloc(1, n)
	if err != nil {
		panic(fmt.Errorf("arrowmem: allocate %d bytes: %w", size, err))
	}
	m.allocated += int64(size)
	return buf[:size:size]
}

// Reallocate resizes b, preserving its contents up to the smaller size and
// zeroing any bytes added past len(b).
func (m *Allocator) Reallocate(size int, b []byte) []byte {
	if size < 0 {
		panic("arrowmem: negative size")
	}
	if cap(b) == 0 {
		return m.Allocate(size)
	}
	if size == 0 {
		m.Free(b)
		return []byte{}
	}
	n := checkSize(size)

	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.ptrOf(b)
	_, nb, err := m.heap.Realloc(p, n)
	if err != nil {
		panic(fmt.Errorf("arrowmem: reallocate %d to %d bytes: %w", len(b), size, err))
	}
	if size > len(b) {
		clear(nb[len(b):])
	}
	m.allocated += int64(size - len(b))
	return nb[:size:size]
}

// Free releases b. Empty slices are ignored.
func (m *Allocator) Free(b []byte) {
	if cap(b) == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.heap.Free(m.ptrOf(b)); err != nil {
		panic(fmt.Errorf("arrowmem: free: %w", err))
	}
	m.allocated -= int64(len(b))
}

// AllocatedBytes returns the bytes currently handed out through this adapter.
func (m *Allocator) AllocatedBytes() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allocated
}

// ptrOf maps a slice back to its payload offset. Arena bytes never move, so
// the distance from the arena's first byte is the offset.
func (m *Allocator) ptrOf(b []byte) alloc.Ptr {
	data := m.heap.Arena().Bytes()
	if len(data) == 0 {
		panic(fmt.Errorf("%w: heap is empty", ErrForeignSlice))
	}
	base := uintptr(unsafe.Pointer(unsafe.SliceData(data)))
	p := uintptr(unsafe.Pointer(unsafe.SliceData(b)))
	if p < base || p >= base+uintptr(len(data)) {
		panic(fmt.Errorf("%w: %#x outside arena", ErrForeignSlice, p))
	}
	return alloc.Ptr(p - base)
}

func checkSize(size int) uint32 {
	if uint64(size) > math.MaxUint32 {
		panic(fmt.Errorf("arrowmem: allocate %d bytes: %w", size, alloc.ErrTooLarge))
	}
	return uint32(size)
}

var _ memory.Allocator = (*Allocator)(nil)
