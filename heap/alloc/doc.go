// Package alloc implements a segregated-fit dynamic memory allocator over a
// single growable byte arena.
//
// # Overview
//
// The allocator hands out blocks from an arena.Provider using boundary tags,
// eighteen segregated free lists, first-fit search, and eager coalescing. It is
// a drop-in malloc/free/realloc/calloc replacement for workloads that want all
// of their allocations inside one contiguous region.
//
// # Allocator API
//
//   - Alloc(size): Allocate a block with at least size payload bytes
//   - Free(p): Release a block; adjacent free blocks are merged immediately
//   - Realloc(p, size): Shrink in place or move to a larger block
//   - Calloc(n, size): Allocate and zero n*size bytes
//   - CheckHeap(tag): Cross-validate the block chain and the free lists
//
// Pointers (Ptr) are payload offsets from the arena base. Nil (0) is never a
// valid payload because offset 0 holds the first list head.
//
// # Usage Example
//
//	mem, err := arena.NewMemory(arena.DefaultLimit)
//	if err != nil {
//	    return err
//	}
//	a := alloc.New(mem)
//
//	p, buf, err := a.Alloc(100)
//	if err != nil {
//	    return err
//	}
//	copy(buf, payload)
//
//	p, buf, err = a.Realloc(p, 400)
//	if err != nil {
//	    return err // the original block is still live
//	}
//
//	err = a.Free(p)
//
// # Block Layout
//
// Every block starts with a 4-byte header tag holding the block size and two
// flags (see internal/format.Tag):
//
//	allocated block:  [hdr][payload ..................]
//	free block:       [hdr][pred][succ][ ...... ][ftr]
//
// Allocated blocks have no footer. Coalescing only ever needs to step left
// when the left neighbor is free, so instead each header carries a
// "previous block allocated" bit and only free blocks pay for a footer. Every
// operation that changes a block's state updates that bit on its right
// neighbor.
//
// The minimum block size is 16 bytes: header, two 4-byte links, footer. Links
// are offsets from the arena base, not addresses, which is what keeps them at
// 4 bytes each.
//
// # Size Classes
//
// Free blocks live in one of 18 unordered, LIFO, doubly linked lists keyed by
// size (upper bound inclusive):
//
//	Class  0-4:   24,   48,   72,   96,  120
//	Class  5-9:  240,  480,  960, 1920, 3840
//	Class 10-14: 7680, 15360, 30720, 61440, 122880
//	Class 15-16: 245760, 491520
//	Class 17:    larger
//
// A search starts at the request's own class and walks upward, returning the
// first block that fits.
//
// # Arena Growth
//
// When no free block fits, the arena grows by max(request, chunk size) bytes
// (2048 by default). The new bytes become one free block over the old
// epilogue, a new epilogue is written past it, and the block is coalesced with
// a free block that may have been sitting at the end of the heap. A denied
// growth surfaces as ErrNoSpace and leaves the heap untouched.
//
// # Thread Safety
//
// Allocator instances are not thread-safe. Callers must serialize every
// method, CheckHeap included.
package alloc
