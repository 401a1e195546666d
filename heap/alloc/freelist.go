package alloc

import "github.com/joshuapare/heapkit/internal/format"

// The registry keeps one doubly linked list per size class. Heads are stored
// in the arena prefix, links in the free blocks themselves, and every value is
// an arena offset with format.NilLink meaning "none".

func headOffset(class int) int {
	return format.ListHeadsOffset + class*format.WordSize
}

func (a *Allocator) listHead(class int) uint32 {
	return format.ReadU32(a.data, headOffset(class))
}

func (a *Allocator) setListHead(class int, bp uint32) {
	format.PutU32(a.data, headOffset(class), bp)
}

// insert pushes a free block onto the head of its class list. The header
// must already carry the block's final size.
func (a *Allocator) insert(bp uint32) {
	class := Classify(a.header(bp).Size())
	head := a.listHead(class)

	a.setPred(bp, format.NilLink)
	a.setSucc(bp, head)
	if head != format.NilLink {
		a.setPred(head, bp)
	}
	a.setListHead(class, bp)
	a.freeBlocks++
}

// remove unlinks a registered free block from the list its current size
// classifies to. Callers must remove before changing the header size.
func (a *Allocator) remove(bp uint32) {
	class := Classify(a.header(bp).Size())
	pred, succ := a.pred(bp), a.succ(bp)

	switch {
	case pred == format.NilLink && succ == format.NilLink:
		// Sole member
		a.setListHead(class, format.NilLink)
	case pred == format.NilLink:
		// Head with a successor
		a.setListHead(class, succ)
		a.setPred(succ, format.NilLink)
	case succ == format.NilLink:
		// Tail with a predecessor
		a.setSucc(pred, format.NilLink)
	default:
		a.setSucc(pred, succ)
		a.setPred(succ, pred)
	}
	a.freeBlocks--
}

// findFit returns the first registered block of at least asize bytes,
// scanning from asize's own class upward and each list from its head.
// Returns format.NilLink on a miss.
func (a *Allocator) findFit(asize uint32) uint32 {
	for class := Classify(asize); class < format.NumClasses; class++ {
		for bp := a.listHead(class); bp != format.NilLink; bp = a.succ(bp) {
			if a.header(bp).Size() >= asize {
				return bp
			}
		}
	}
	return format.NilLink
}
