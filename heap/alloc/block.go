package alloc

import "github.com/joshuapare/heapkit/internal/format"

// Block accessors. bp is always a payload offset; the header sits one word
// below it. All reads and writes go through a.data, which is re-fetched from
// the provider after every growth.

func (a *Allocator) header(bp uint32) format.Tag {
	return format.ReadTag(a.data, int(bp)-format.WordSize)
}

func (a *Allocator) setHeader(bp uint32, t format.Tag) {
	format.PutTag(a.data, int(bp)-format.WordSize, t)
}

// footerOffset uses the size from t, not from the current header, so a
// footer can be written for a block whose header is about to change.
func footerOffset(bp uint32, t format.Tag) int {
	return int(bp+t.Size()) - format.DoubleWordSize
}

func (a *Allocator) setFooter(bp uint32, t format.Tag) {
	format.PutTag(a.data, footerOffset(bp, t), t)
}

// writeFree stamps matching header and footer for a free block.
func (a *Allocator) writeFree(bp, size uint32, prevAllocated bool) {
	t := format.MakeTag(size, false, prevAllocated)
	a.setHeader(bp, t)
	a.setFooter(bp, t)
}

// setPrevAllocated updates the previous-allocated bit of bp, keeping a free
// block's footer in step with its header.
func (a *Allocator) setPrevAllocated(bp uint32, v bool) {
	t := a.header(bp).WithPrevAllocated(v)
	a.setHeader(bp, t)
	if !t.Allocated() {
		a.setFooter(bp, t)
	}
}

// leftFooter returns the tag just below bp's header. It is only meaningful
// when bp's left neighbor is free.
func (a *Allocator) leftFooter(bp uint32) format.Tag {
	return format.ReadTag(a.data, int(bp)-format.DoubleWordSize)
}

func (a *Allocator) nextBlock(bp uint32) uint32 {
	return bp + a.header(bp).Size()
}

// Free-list links live in the first two payload words of a free block.

func (a *Allocator) pred(bp uint32) uint32 {
	return format.ReadU32(a.data, int(bp))
}

func (a *Allocator) succ(bp uint32) uint32 {
	return format.ReadU32(a.data, int(bp)+format.WordSize)
}

func (a *Allocator) setPred(bp, v uint32) {
	format.PutU32(a.data, int(bp), v)
}

func (a *Allocator) setSucc(bp, v uint32) {
	format.PutU32(a.data, int(bp)+format.WordSize, v)
}

// payload returns n bytes at bp with capacity extending to the end of the
// block's usable space.
func (a *Allocator) payload(bp, n uint32) []byte {
	end := bp + a.header(bp).Size() - format.HeaderOverhead
	return a.data[bp : bp+n : end]
}
