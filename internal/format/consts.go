// Package format holds the block layout codec for the heap arena: word sizes,
// boundary-tag bit layout, and the fixed layout of the arena prefix. It is
// pure encode/decode with no allocator state so the allocator and its
// checker read the same bytes the same way.
package format

const (
	// WordSize is the size of a header, footer, or free-list link.
	WordSize = 4

	// DoubleWordSize is the payload alignment and the size granularity of blocks.
	DoubleWordSize = 8

	// BlockAlignment is the alignment of every block size and payload offset.
	BlockAlignment = DoubleWordSize

	// BlockAlignmentMask is BlockAlignment - 1.
	BlockAlignmentMask = BlockAlignment - 1

	// HeaderOverhead is the fixed per-block overhead of an allocated block.
	// Allocated blocks carry a header but no footer.
	HeaderOverhead = WordSize

	// MinBlockSize is the smallest legal block: header + two links + footer
	// while free.
	MinBlockSize = 2 * DoubleWordSize

	// DefaultChunkSize is how many bytes the arena grows by when no free block fits.
	DefaultChunkSize = 2048

	// NumClasses is the number of segregated free lists.
	NumClasses = 18
)

// Arena prefix layout. Offsets are from the arena base.
//
//	0x00  list heads     NumClasses x 4 bytes, 0 = empty list
//	0x48  padding        4 bytes
//	0x4C  prologue hdr   Tag(8, allocated, prev allocated)
//	0x50  prologue ftr   Tag(8, allocated, prev allocated)
//	0x54  epilogue hdr   Tag(0, allocated, prev allocated)
//	0x58  first block payload once the arena has grown
const (
	// ListHeadsOffset is where the class list heads start.
	ListHeadsOffset = 0

	// PaddingOffset keeps the prologue payload double-word aligned.
	PaddingOffset = ListHeadsOffset + NumClasses*WordSize

	// PrologueHeaderOffset is the prologue block's header.
	PrologueHeaderOffset = PaddingOffset + WordSize

	// ProloguePayload is the prologue block pointer (never handed out).
	ProloguePayload = PrologueHeaderOffset + WordSize

	// PrologueSize is the size recorded in both prologue tags.
	PrologueSize = DoubleWordSize

	// InitialEpilogueOffset is the epilogue header before the first growth.
	InitialEpilogueOffset = ProloguePayload + WordSize

	// PrefixSize is the number of bytes requested from the arena on init.
	PrefixSize = InitialEpilogueOffset + WordSize

	// FirstPayload is the lowest payload offset a real block can have.
	FirstPayload = PrefixSize

	// NilLink marks an empty list head or a missing neighbor link. Offset 0 is
	// the first list head and can never be a block.
	NilLink = 0
)
