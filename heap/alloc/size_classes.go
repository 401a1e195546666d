package alloc

import (
	"slices"

	"github.com/joshuapare/heapkit/internal/format"
)

// classBounds holds the inclusive upper bound of every class but the last,
// which takes everything larger.
var classBounds = [format.NumClasses - 1]uint32{
	24, 48, 72, 96, 120,
	240, 480, 960, 1920, 3840,
	7680, 15360, 30720, 61440, 122880,
	245760, 491520,
}

// Classify returns the size class for a block of the given size: the smallest
// class whose upper bound is >= size, or the last class.
func Classify(size uint32) int {
	// BinarySearch yields the first bound >= size, or len(classBounds) when
	// size is larger than all of them, which is exactly the last class.
	i, _ := slices.BinarySearch(classBounds[:], size)
	return i
}

// ClassBound returns the inclusive upper bound of class c. The last class is
// unbounded and reports ok=false.
func ClassBound(c int) (upper uint32, ok bool) {
	if c < 0 || c >= len(classBounds) {
		return 0, false
	}
	return classBounds[c], true
}
