package alloc

import (
	"fmt"
	"math/bits"

	"github.com/joshuapare/heapkit/internal/format"
)

// Realloc resizes the block at p to hold size bytes.
//
//   - p == Nil behaves like Alloc(size).
//   - size == 0 frees p and returns Nil.
//   - If the current block is already large enough it is shrunk in place and
//     p is returned unchanged.
//   - Otherwise a new block is allocated, min(size, old usable size) bytes are
//     copied, and the old block is freed.
//
// If a new block cannot be obtained the error is returned and p stays valid
// with its contents intact.
func (a *Allocator) Realloc(p Ptr, size uint32) (Ptr, []byte, error) {
	if p == Nil {
		return a.Alloc(size)
	}
	if size == 0 {
		return Nil, nil, a.Free(p)
	}

	bp, err := a.allocatedBlock(p)
	if err != nil {
		return Nil, nil, err
	}
	asize, err := adjustSize(size)
	if err != nil {
		return Nil, nil, err
	}

	csize := a.header(bp).Size()
	if csize >= asize {
		a.shrink(bp, asize)
		a.stats.ReallocInPlace++
		return p, a.payload(bp, size), nil
	}

	np, buf, err := a.Alloc(size)
	if err != nil {
		return Nil, nil, err
	}
	// Alloc may have grown the arena; a.data is current and bp has not moved.
	copy(buf, a.data[bp:bp+csize-format.HeaderOverhead])
	if err := a.Free(p); err != nil {
		return Nil, nil, fmt.Errorf("realloc: release %#x: %w", bp, err)
	}
	a.stats.ReallocMoved++
	return np, buf, nil
}

// shrink trims the allocated block bp down to asize bytes when the tail is
// at least a minimum block. The tail is freed and merged with a free right
// neighbor.
func (a *Allocator) shrink(bp, asize uint32) {
	hdr := a.header(bp)
	rem := hdr.Size() - asize
	if rem < format.MinBlockSize {
		return
	}

	a.setHeader(bp, format.MakeTag(asize, true, hdr.PrevAllocated()))
	rest := bp + asize
	a.writeFree(rest, rem, true)
	a.stats.SplitCount++
	a.stats.BytesFreed += int64(rem)
	a.coalesce(rest)
}

// Calloc allocates count*size bytes and zeroes the block's whole usable
// region. A product that does not fit in 32 bits fails with ErrOverflow.
func (a *Allocator) Calloc(count, size uint32) (Ptr, []byte, error) {
	hi, n := bits.Mul32(count, size)
	if hi != 0 {
		return Nil, nil, fmt.Errorf("%w: %d x %d", ErrOverflow, count, size)
	}

	p, buf, err := a.Alloc(n)
	if err != nil || p == Nil {
		return p, buf, err
	}
	clear(buf[:cap(buf)])
	return p, buf, nil
}
