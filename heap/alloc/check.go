package alloc

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/joshuapare/heapkit/internal/format"
)

// Violation categories reported by CheckHeap.
const (
	CheckPrologue = "Prologue"
	CheckEpilogue = "Epilogue"
	CheckBounds   = "Bounds"
	CheckBlock    = "Block"
	CheckFooter   = "Footer"
	CheckPrevBit  = "PrevAllocated"
	CheckCoalesce = "Coalesce"
	CheckFreeList = "FreeList"
	CheckCount    = "FreeCount"
)

// ValidationError describes one broken heap invariant.
type ValidationError struct {
	Type    string
	Message string
	Offset  int // Arena offset where the problem was found (-1 if N/A)
}

func (e *ValidationError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s at offset 0x%X: %s", e.Type, e.Offset, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Report is the result of one CheckHeap pass.
type Report struct {
	Tag        string
	HeapSize   int
	Blocks     int // Real blocks in the physical chain
	FreeBlocks int // Free blocks in the physical chain
	Listed     int // Blocks reached through the free lists
	Violations []*ValidationError
}

// OK reports whether no violations were found.
func (r *Report) OK() bool { return len(r.Violations) == 0 }

// Err returns nil for a clean heap, or the first violation wrapped in
// ErrCorrupt.
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	return fmt.Errorf("%w (%s): %w", ErrCorrupt, r.Tag, r.Violations[0])
}

func (r *Report) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "check %q: heap=%d blocks=%d free=%d listed=%d violations=%d",
		r.Tag, r.HeapSize, r.Blocks, r.FreeBlocks, r.Listed, len(r.Violations))
	for _, v := range r.Violations {
		sb.WriteString("\n  ")
		sb.WriteString(v.Error())
	}
	return sb.String()
}

func (r *Report) add(typ string, off int, msg string, args ...any) {
	r.Violations = append(r.Violations, &ValidationError{
		Type:    typ,
		Message: fmt.Sprintf(msg, args...),
		Offset:  off,
	})
}

// CheckHeap walks the physical block chain and every free list and reports
// each invariant violation it finds. tag labels the report (for example the
// operation that preceded the check). It never modifies the heap.
func (a *Allocator) CheckHeap(tag string) *Report {
	r := &Report{Tag: tag, HeapSize: len(a.data)}
	if !a.initialized {
		return r
	}

	free := a.checkChain(r)
	a.checkLists(r, free)

	if a.freeBlocks != r.Listed {
		r.add(CheckCount, -1, "allocator counts %d free blocks, lists hold %d", a.freeBlocks, r.Listed)
	}

	for _, v := range r.Violations {
		a.log.Warn("heap check failed", "tag", tag, "type", v.Type, "offset", v.Offset, "msg", v.Message)
	}
	if logAlloc {
		a.log.Debug("heap checked", "tag", tag, "blocks", r.Blocks, "free", r.FreeBlocks, "violations", len(r.Violations))
	}
	return r
}

// checkChain validates the prefix and every block from the first payload to
// the epilogue. It returns the free blocks it saw, mapped to false until a
// list walk claims them.
func (a *Allocator) checkChain(r *Report) map[uint32]bool {
	data := a.data
	n := len(data)
	free := make(map[uint32]bool)

	lo, hi := a.arena.Lo(), a.arena.Hi()
	if lo != 0 || hi != n-1 {
		r.add(CheckBounds, -1, "provider reports [%d, %d], allocator holds %d bytes", lo, hi, n)
	}
	if n < format.PrefixSize {
		r.add(CheckBounds, -1, "heap of %d bytes is smaller than the %d-byte prefix", n, format.PrefixSize)
		return free
	}

	prologue := format.MakeTag(format.PrologueSize, true, true)
	if got := format.ReadTag(data, format.PrologueHeaderOffset); got != prologue {
		r.add(CheckPrologue, format.PrologueHeaderOffset, "header 0x%08X, want 0x%08X", uint32(got), uint32(prologue))
	}
	if got := format.ReadTag(data, format.ProloguePayload); got != prologue {
		r.add(CheckPrologue, format.ProloguePayload, "footer 0x%08X, want 0x%08X", uint32(got), uint32(prologue))
	}

	prevAllocated := true
	bp := uint32(format.FirstPayload)
	for {
		off := int(bp) - format.WordSize
		if off+format.WordSize > n {
			r.add(CheckEpilogue, off, "chain runs past the end of the heap (%d bytes)", n)
			return free
		}

		hdr := a.header(bp)
		size := hdr.Size()
		if size == 0 {
			if !hdr.Allocated() {
				r.add(CheckEpilogue, off, "epilogue not marked allocated")
			}
			if hdr.PrevAllocated() != prevAllocated {
				r.add(CheckPrevBit, off, "epilogue prev-allocated=%t, last block allocated=%t", hdr.PrevAllocated(), prevAllocated)
			}
			if off != n-format.WordSize {
				r.add(CheckEpilogue, off, "epilogue found %d bytes before the end of the heap", n-off-format.WordSize)
			}
			return free
		}

		if !format.IsAligned8(bp) {
			r.add(CheckBlock, off, "payload %#x not 8-byte aligned", bp)
		}
		if !format.IsAligned8(size) || size < format.MinBlockSize {
			r.add(CheckBlock, off, "bad block size %d", size)
			return free
		}
		if int(bp)+int(size) > n {
			r.add(CheckBounds, off, "block of %d bytes ends past the heap (%d bytes)", size, n)
			return free
		}
		if hdr.PrevAllocated() != prevAllocated {
			r.add(CheckPrevBit, off, "prev-allocated=%t, left neighbor allocated=%t", hdr.PrevAllocated(), prevAllocated)
		}

		r.Blocks++
		if !hdr.Allocated() {
			r.FreeBlocks++
			free[bp] = false
			if ftr := format.ReadTag(data, footerOffset(bp, hdr)); ftr != hdr {
				r.add(CheckFooter, footerOffset(bp, hdr), "footer 0x%08X, header 0x%08X", uint32(ftr), uint32(hdr))
			}
			if !prevAllocated {
				r.add(CheckCoalesce, off, "free block follows another free block")
			}
		}

		prevAllocated = hdr.Allocated()
		bp += size
	}
}

// checkLists walks every class list and cross-checks membership against the
// free blocks found by checkChain.
func (a *Allocator) checkLists(r *Report, free map[uint32]bool) {
	n := len(a.data)
	if n < format.PrefixSize {
		return
	}

	for class := range format.NumClasses {
		prev := uint32(format.NilLink)
		for bp := a.listHead(class); bp != format.NilLink; bp = a.succ(bp) {
			if bp < format.FirstPayload || !format.IsAligned8(bp) || int(bp)+2*format.WordSize > n {
				r.add(CheckFreeList, int(bp), "class %d links to invalid offset %#x", class, bp)
				break
			}
			claimed, inChain := free[bp]
			if claimed {
				r.add(CheckFreeList, int(bp), "class %d reaches block %#x twice (cycle or duplicate)", class, bp)
				break
			}

			hdr := a.header(bp)
			switch {
			case hdr.Allocated():
				r.add(CheckFreeList, int(bp), "allocated block in class %d list", class)
			case !inChain:
				r.add(CheckFreeList, int(bp), "class %d lists %#x, which is not a block in the chain", class, bp)
			case Classify(hdr.Size()) != class:
				r.add(CheckFreeList, int(bp), "block of %d bytes in class %d, belongs in %d", hdr.Size(), class, Classify(hdr.Size()))
			}
			if got := a.pred(bp); got != prev {
				r.add(CheckFreeList, int(bp), "pred link %#x, want %#x", got, prev)
			}

			free[bp] = true
			r.Listed++
			prev = bp
		}
	}

	for _, bp := range slices.Sorted(maps.Keys(free)) {
		if !free[bp] {
			r.add(CheckFreeList, int(bp), "free block of %d bytes is in no list", a.header(bp).Size())
		}
	}
}
