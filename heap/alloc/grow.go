package alloc

import (
	"fmt"
	"math"

	"github.com/joshuapare/heapkit/internal/format"
)

// maxArenaSize bounds the arena so every offset fits in a 4-byte link.
const maxArenaSize = math.MaxUint32 &^ format.BlockAlignmentMask

// extend grows the arena by words (rounded up to an even count) and returns
// the resulting free block after coalescing. On failure the heap is unchanged.
func (a *Allocator) extend(words uint32) (uint32, error) {
	size := uint64(format.EvenWords(words)) * format.WordSize
	if uint64(len(a.data))+size > maxArenaSize {
		return format.NilLink, fmt.Errorf("%w: arena of %d bytes cannot grow by %d", ErrTooLarge, len(a.data), size)
	}

	old, err := a.arena.Grow(int(size))
	if err != nil {
		return format.NilLink, err
	}
	a.data = a.arena.Bytes()

	a.stats.GrowCalls++
	a.stats.GrowBytes += int64(size)

	// The old epilogue header becomes the new block's header, so its
	// previous-allocated bit is still accurate.
	bp := uint32(old)
	prevAllocated := a.header(bp).PrevAllocated()
	a.writeFree(bp, uint32(size), prevAllocated)
	a.setHeader(bp+uint32(size), format.MakeTag(0, true, false))

	if logAlloc {
		a.log.Debug("arena grown",
			"bytes", size,
			"heap", len(a.data),
			"grows", a.stats.GrowCalls,
			"free_blocks", a.freeBlocks)
	}
	if a.onGrow != nil {
		a.onGrow(int(size))
	}

	return a.coalesce(bp), nil
}

// coalesce merges the free block bp with any free neighbors, registers the
// result, and returns it.
func (a *Allocator) coalesce(bp uint32) uint32 {
	hdr := a.header(bp)
	size := hdr.Size()
	prevAllocated := hdr.PrevAllocated()

	next := bp + size
	nextHdr := a.header(next)
	nextAllocated := nextHdr.Allocated()

	switch {
	case prevAllocated && nextAllocated:
		a.setHeader(next, nextHdr.WithPrevAllocated(false))

	case prevAllocated && !nextAllocated:
		a.stats.CoalesceForward++
		a.remove(next)
		size += nextHdr.Size()
		a.writeFree(bp, size, true)

	case !prevAllocated && nextAllocated:
		a.stats.CoalesceBackward++
		// The left footer holds the bit for the block two positions left;
		// read it before the merged header overwrites the left header.
		leftTag := a.leftFooter(bp)
		left := bp - leftTag.Size()
		a.remove(left)
		a.setHeader(next, nextHdr.WithPrevAllocated(false))
		size += leftTag.Size()
		bp = left
		a.writeFree(bp, size, leftTag.PrevAllocated())

	default:
		a.stats.CoalesceBoth++
		leftTag := a.leftFooter(bp)
		left := bp - leftTag.Size()
		a.remove(next)
		a.remove(left)
		size += leftTag.Size() + nextHdr.Size()
		bp = left
		a.writeFree(bp, size, leftTag.PrevAllocated())
	}

	a.insert(bp)
	return bp
}
