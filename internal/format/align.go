package format

import "golang.org/x/exp/constraints"

// Align8 returns n aligned up to the next 8-byte boundary.
//
// Example:
//
//	Align8(1)  = 8
//	Align8(8)  = 8
//	Align8(9)  = 16
//	Align8(16) = 16
func Align8[T constraints.Integer](n T) T {
	return (n + BlockAlignmentMask) &^ BlockAlignmentMask
}

// IsAligned8 reports whether n is a multiple of 8.
func IsAligned8[T constraints.Integer](n T) bool {
	return n&BlockAlignmentMask == 0
}

// EvenWords rounds a word count up to an even number so a growth request
// always preserves double-word alignment.
func EvenWords(words uint32) uint32 {
	if words%2 != 0 {
		words++
	}
	return words
}
