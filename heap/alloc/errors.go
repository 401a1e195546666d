package alloc

import "errors"

var (
	// ErrNoSpace indicates that no free block fit and the arena could not grow.
	ErrNoSpace = errors.New("alloc: out of memory")

	// ErrTooLarge indicates a request whose block size cannot be encoded in a tag.
	ErrTooLarge = errors.New("alloc: request too large")

	// ErrOverflow indicates that count*size overflowed in Calloc.
	ErrOverflow = errors.New("alloc: size overflow")

	// ErrBadPtr indicates a pointer that is misaligned or outside the heap.
	ErrBadPtr = errors.New("alloc: bad pointer")

	// ErrNotAllocated indicates a pointer whose block is not in use (double free).
	ErrNotAllocated = errors.New("alloc: block not allocated")

	// ErrArenaInUse indicates Init was handed a provider whose break is not zero.
	ErrArenaInUse = errors.New("alloc: arena already in use")

	// ErrCorrupt indicates CheckHeap found at least one invariant violation.
	ErrCorrupt = errors.New("alloc: heap corrupt")
)
