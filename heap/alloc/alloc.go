package alloc

import (
	"fmt"
	"log/slog"

	"github.com/joshuapare/heapkit/heap/arena"
	"github.com/joshuapare/heapkit/internal/format"
)

// Allocator is a segregated-fit allocator over one arena.Provider.
// The zero value is not usable; construct with New.
type Allocator struct {
	arena arena.Provider

	// data aliases arena.Bytes() and is refreshed after every growth.
	data []byte

	chunkSize   uint32
	log         *slog.Logger
	initialized bool

	// Number of blocks currently registered in the free lists
	freeBlocks int

	stats Stats

	// Called after each successful arena growth (nil when unset)
	onGrow func(int)
}

// New returns an allocator over p. The heap is laid out lazily on the first
// call that needs it, or explicitly with Init.
func New(p arena.Provider, opts ...Option) *Allocator {
	a := &Allocator{
		arena:     p,
		chunkSize: format.DefaultChunkSize,
		log:       defaultLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Init writes the list heads, prologue and epilogue into an empty provider
// and grows it by one chunk. It is a no-op once the heap is initialized.
func (a *Allocator) Init() error {
	if a.initialized {
		return nil
	}
	if a.arena.Hi() >= a.arena.Lo() {
		return fmt.Errorf("%w: break at %d", ErrArenaInUse, a.arena.Hi()+1)
	}

	if _, err := a.arena.Grow(format.PrefixSize); err != nil {
		return fmt.Errorf("%w: heap prefix: %w", ErrNoSpace, err)
	}
	a.data = a.arena.Bytes()

	clear(a.data[:format.PrefixSize])
	prologue := format.MakeTag(format.PrologueSize, true, true)
	format.PutTag(a.data, format.PrologueHeaderOffset, prologue)
	format.PutTag(a.data, format.ProloguePayload, prologue)
	format.PutTag(a.data, format.InitialEpilogueOffset, format.MakeTag(0, true, true))
	a.freeBlocks = 0
	a.initialized = true

	if _, err := a.extend(a.chunkSize / format.WordSize); err != nil {
		a.arena.Reset()
		a.data = nil
		a.initialized = false
		return fmt.Errorf("%w: initial chunk: %w", ErrNoSpace, err)
	}
	return nil
}

func (a *Allocator) ensureInit() error {
	if a.initialized {
		return nil
	}
	return a.Init()
}

// Reset discards every block, rewinds the provider, and lays out a fresh
// heap. Pointers and slices handed out earlier must not be used afterwards.
func (a *Allocator) Reset() error {
	a.arena.Reset()
	a.data = nil
	a.initialized = false
	a.freeBlocks = 0
	a.stats = Stats{}
	return a.Init()
}

// adjustSize converts a request into a block size: header overhead added,
// rounded up to 8, at least the minimum block.
func adjustSize(size uint32) (uint32, error) {
	n := format.Align8(uint64(size) + format.HeaderOverhead)
	if n > uint64(format.MaxBlockSize) {
		return 0, fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
	}
	return max(uint32(n), format.MinBlockSize), nil
}

// Alloc returns a block with at least size payload bytes. The slice has
// length size and capacity equal to the block's usable size. A zero size
// yields Nil with no error.
func (a *Allocator) Alloc(size uint32) (Ptr, []byte, error) {
	if size == 0 {
		return Nil, nil, nil
	}
	if err := a.ensureInit(); err != nil {
		return Nil, nil, err
	}
	asize, err := adjustSize(size)
	if err != nil {
		a.stats.AllocFailures++
		return Nil, nil, err
	}
	a.stats.AllocCalls++

	bp := a.findFit(asize)
	if bp != format.NilLink {
		a.stats.AllocFastPath++
	} else {
		bp, err = a.extend(max(asize, a.chunkSize) / format.WordSize)
		if err != nil {
			a.stats.AllocFailures++
			a.log.Warn("allocation failed", "size", size, "block", asize, "heap", len(a.data), "err", err)
			return Nil, nil, fmt.Errorf("%w: %d bytes: %w", ErrNoSpace, size, err)
		}
		a.stats.AllocSlowPath++
	}

	a.place(bp, asize)
	a.stats.BytesAllocated += int64(a.header(bp).Size())
	return Ptr(bp), a.payload(bp, size), nil
}

// place marks asize bytes of the free block bp allocated. A remainder of at
// least one minimum block is split off and registered; otherwise the whole
// block is taken.
func (a *Allocator) place(bp, asize uint32) {
	hdr := a.header(bp)
	csize := hdr.Size()
	a.remove(bp)

	if rem := csize - asize; rem >= format.MinBlockSize {
		a.setHeader(bp, format.MakeTag(asize, true, hdr.PrevAllocated()))
		rest := bp + asize
		a.writeFree(rest, rem, true)
		a.insert(rest)
		a.stats.SplitCount++
		return
	}

	a.setHeader(bp, format.MakeTag(csize, true, hdr.PrevAllocated()))
	a.setPrevAllocated(bp+csize, true)
}

// Free releases the block at p and merges it with free neighbors. Freeing
// Nil is a no-op.
func (a *Allocator) Free(p Ptr) error {
	if p == Nil {
		return nil
	}
	bp, err := a.allocatedBlock(p)
	if err != nil {
		return err
	}

	hdr := a.header(bp)
	a.writeFree(bp, hdr.Size(), hdr.PrevAllocated())
	a.stats.FreeCalls++
	a.stats.BytesFreed += int64(hdr.Size())
	a.coalesce(bp)
	return nil
}

// inHeap reports whether p can be the payload of a real block: past the
// prologue, before the epilogue, and 8-aligned.
func (a *Allocator) inHeap(p Ptr) bool {
	if !a.initialized || !format.IsAligned8(p) {
		return false
	}
	return uint32(p) >= format.FirstPayload && int(p) < len(a.data)
}

// allocatedBlock validates p and returns it as a block offset. It catches
// pointers outside the heap, misaligned pointers, headers that do not describe
// a block inside the heap, and blocks that are already free.
func (a *Allocator) allocatedBlock(p Ptr) (uint32, error) {
	if !a.inHeap(p) {
		return 0, fmt.Errorf("%w: %#x outside heap [%#x, %#x)", ErrBadPtr, uint32(p), format.FirstPayload, len(a.data))
	}
	bp := uint32(p)
	hdr := a.header(bp)
	size := hdr.Size()
	if size < format.MinBlockSize || int(bp)+int(size) > len(a.data) {
		return 0, fmt.Errorf("%w: %#x has no valid header (size %d)", ErrBadPtr, bp, size)
	}
	if !hdr.Allocated() {
		return 0, fmt.Errorf("%w: %#x", ErrNotAllocated, bp)
	}
	return bp, nil
}

// Payload returns the full usable region of the allocated block at p, or nil
// if p is not an allocated block.
func (a *Allocator) Payload(p Ptr) []byte {
	bp, err := a.allocatedBlock(p)
	if err != nil {
		return nil
	}
	return a.payload(bp, a.header(bp).Size()-format.HeaderOverhead)
}

// UsableSize returns how many payload bytes the block at p can hold, or 0 if
// p is not an allocated block.
func (a *Allocator) UsableSize(p Ptr) int {
	bp, err := a.allocatedBlock(p)
	if err != nil {
		return 0
	}
	return int(a.header(bp).Size() - format.HeaderOverhead)
}

// Arena returns the provider the heap lives in.
func (a *Allocator) Arena() arena.Provider {
	return a.arena
}

// HeapSize returns the number of arena bytes in use, prefix included.
func (a *Allocator) HeapSize() int {
	return len(a.data)
}

// Stats returns a snapshot of the allocator counters.
func (a *Allocator) Stats() Stats {
	return a.stats
}

// FreeBlocks returns how many blocks are registered in the free lists.
func (a *Allocator) FreeBlocks() int {
	return a.freeBlocks
}

// Blocks walks the physical chain from the first block to the epilogue.
func (a *Allocator) Blocks() []BlockInfo {
	if !a.initialized {
		return nil
	}
	var out []BlockInfo
	for bp := uint32(format.FirstPayload); int(bp) <= len(a.data); {
		hdr := a.header(bp)
		if hdr.Size() == 0 {
			break
		}
		out = append(out, BlockInfo{
			Ptr:           Ptr(bp),
			Size:          hdr.Size(),
			Allocated:     hdr.Allocated(),
			PrevAllocated: hdr.PrevAllocated(),
		})
		bp += hdr.Size()
	}
	return out
}
