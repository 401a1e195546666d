package format

// Tag is a boundary tag word: block size with two flag bits packed into the
// low bits. Headers and free-block footers are Tags.
//
//	bit 0     allocated
//	bit 1     previous block allocated
//	bit 2     reserved (always 0)
//	bits 3-31 size, a multiple of 8
type Tag uint32

const (
	// AllocatedBit marks the block itself as in use.
	AllocatedBit Tag = 0x1

	// PrevAllocatedBit records that the block immediately to the left is in use.
	PrevAllocatedBit Tag = 0x2

	// FlagMask covers the three low bits reserved for flags.
	FlagMask Tag = 0x7

	// SizeMask extracts the size field.
	SizeMask = ^FlagMask

	// MaxBlockSize is the largest size a Tag can represent.
	MaxBlockSize = uint32(SizeMask)
)

// MakeTag packs size and flags. size must already be a multiple of 8.
func MakeTag(size uint32, allocated, prevAllocated bool) Tag {
	t := Tag(size) & SizeMask
	if allocated {
		t |= AllocatedBit
	}
	if prevAllocated {
		t |= PrevAllocatedBit
	}
	return t
}

// Size returns the block size in bytes.
func (t Tag) Size() uint32 { return uint32(t & SizeMask) }

// Allocated reports whether the block is in use.
func (t Tag) Allocated() bool { return t&AllocatedBit != 0 }

// PrevAllocated reports whether the left neighbor is in use.
func (t Tag) PrevAllocated() bool { return t&PrevAllocatedBit != 0 }

// WithPrevAllocated returns t with the previous-allocated bit set to v.
func (t Tag) WithPrevAllocated(v bool) Tag {
	if v {
		return t | PrevAllocatedBit
	}
	return t &^ PrevAllocatedBit
}

// ReadTag reads the tag stored at off.
func ReadTag(b []byte, off int) Tag {
	return Tag(ReadU32(b, off))
}

// PutTag stores t at off.
func PutTag(b []byte, off int, t Tag) {
	PutU32(b, off, uint32(t))
}
