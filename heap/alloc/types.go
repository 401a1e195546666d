package alloc

import (
	"io"
	"log/slog"
	"os"

	"github.com/joshuapare/heapkit/internal/format"
)

// Ptr is a payload offset from the arena base.
type Ptr uint32

// Nil is the null pointer.
const Nil Ptr = 0

// Runtime allocation logging, controlled by the HEAP_LOG_ALLOC env var.
var logAlloc = os.Getenv("HEAP_LOG_ALLOC") != ""

// Option configures an Allocator.
type Option func(*Allocator)

// WithChunkSize sets how many bytes the arena grows by when no free block
// fits. The value is rounded up to a multiple of 8 and to at least the
// minimum block size.
func WithChunkSize(n uint32) Option {
	return func(a *Allocator) {
		n = format.Align8(n)
		if n < format.MinBlockSize {
			n = format.MinBlockSize
		}
		a.chunkSize = n
	}
}

// WithLogger sets the logger used for growth, failure, and checker events.
func WithLogger(l *slog.Logger) Option {
	return func(a *Allocator) {
		if l != nil {
			a.log = l
		}
	}
}

// WithGrowHook registers fn to be called with the byte count of every
// successful arena growth.
func WithGrowHook(fn func(bytes int)) Option {
	return func(a *Allocator) {
		a.onGrow = fn
	}
}

func defaultLogger() *slog.Logger {
	if logAlloc {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// BlockInfo describes one block in the physical chain.
type BlockInfo struct {
	Ptr           Ptr
	Size          uint32
	Allocated     bool
	PrevAllocated bool
}

// Stats holds allocator counters.
type Stats struct {
	GrowCalls        int   // Successful arena growths
	GrowBytes        int64 // Bytes added by arena growth
	AllocCalls       int   // Non-zero Alloc calls, including those made by Realloc/Calloc
	AllocFastPath    int   // Allocations served from a free list
	AllocSlowPath    int   // Allocations that required growth
	AllocFailures    int   // Allocations that failed
	FreeCalls        int   // Non-nil Free calls that released a block
	ReallocInPlace   int   // Realloc calls satisfied by the existing block
	ReallocMoved     int   // Realloc calls that allocated, copied, and freed
	SplitCount       int   // Blocks split on placement or shrink
	CoalesceForward  int   // Merges with the right neighbor only
	CoalesceBackward int   // Merges with the left neighbor only
	CoalesceBoth     int   // Merges with both neighbors
	BytesAllocated   int64 // Block bytes handed out (including headers)
	BytesFreed       int64 // Block bytes released
}
