package alloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/internal/format"
)

// threeSmallFree builds three free 16-byte blocks separated by allocated
// guards and returns them in the order they were freed.
func threeSmallFree(t *testing.T) (*Allocator, [3]uint32) {
	t.Helper()
	a := newTestAllocator(t, 0)

	var blocks [3]uint32
	for i := range blocks {
		p, _, err := a.Alloc(10)
		require.NoError(t, err)
		_, _, err = a.Alloc(10) // guard
		require.NoError(t, err)
		blocks[i] = uint32(p)
	}
	for _, bp := range blocks {
		require.NoError(t, a.Free(Ptr(bp)))
	}
	requireHeapOK(t, a, "setup")
	return a, blocks
}

func Test_FreeList_InsertIsLIFO(t *testing.T) {
	a, b := threeSmallFree(t)

	require.Equal(t, []uint32{b[2], b[1], b[0]}, listMembers(a, 0))
	require.Equal(t, uint32(format.NilLink), a.pred(b[2]), "head has no predecessor")
	require.Equal(t, b[2], a.pred(b[1]))
	require.Equal(t, b[1], a.pred(b[0]))
	require.Equal(t, uint32(format.NilLink), a.succ(b[0]), "tail has no successor")
}

func Test_FreeList_RemoveCases(t *testing.T) {
	t.Run("interior", func(t *testing.T) {
		a, b := threeSmallFree(t)
		a.remove(b[1])
		require.Equal(t, []uint32{b[2], b[0]}, listMembers(a, 0))
		require.Equal(t, b[2], a.pred(b[0]))

		a.insert(b[1])
		requireHeapOK(t, a, "reinsert")
	})

	t.Run("tail", func(t *testing.T) {
		a, b := threeSmallFree(t)
		a.remove(b[0])
		require.Equal(t, []uint32{b[2], b[1]}, listMembers(a, 0))
		require.Equal(t, uint32(format.NilLink), a.succ(b[1]))
		require.Equal(t, b[2], a.listHead(0), "removing the tail leaves the head alone")

		a.insert(b[0])
		requireHeapOK(t, a, "reinsert")
	})

	t.Run("head", func(t *testing.T) {
		a, b := threeSmallFree(t)
		a.remove(b[2])
		require.Equal(t, []uint32{b[1], b[0]}, listMembers(a, 0))
		require.Equal(t, uint32(format.NilLink), a.pred(b[1]))

		a.insert(b[2])
		requireHeapOK(t, a, "reinsert")
	})

	t.Run("sole", func(t *testing.T) {
		a, b := threeSmallFree(t)
		a.remove(b[2])
		a.remove(b[1])
		a.remove(b[0])
		require.Equal(t, uint32(format.NilLink), a.listHead(0))

		for _, bp := range b {
			a.insert(bp)
		}
		requireHeapOK(t, a, "reinsert")
	})
}

func Test_FreeList_FindFitScansUpward(t *testing.T) {
	a := newTestAllocator(t, 0)

	small, _, err := a.Alloc(10) // 16-byte block, class 0
	require.NoError(t, err)
	_, _, err = a.Alloc(10)
	require.NoError(t, err)
	mid, _, err := a.Alloc(100) // 104-byte block, class 4
	require.NoError(t, err)
	_, _, err = a.Alloc(10)
	require.NoError(t, err)

	require.NoError(t, a.Free(small))
	require.NoError(t, a.Free(mid))
	require.Equal(t, 0, classOf(a, uint32(small)))
	require.Equal(t, 4, classOf(a, uint32(mid)))

	tail := a.Blocks()[4]
	require.False(t, tail.Allocated)

	require.Equal(t, uint32(small), a.findFit(16))
	// 24 classifies to class 0, where the only block is too small.
	require.Equal(t, uint32(mid), a.findFit(24))
	require.Equal(t, uint32(tail.Ptr), a.findFit(200))
	require.Equal(t, uint32(format.NilLink), a.findFit(4000))
}

func Test_FreeList_CountTracksRegistry(t *testing.T) {
	a, _ := threeSmallFree(t)
	// Three small blocks plus the tail of the initial chunk.
	require.Equal(t, 4, a.FreeBlocks())

	r := a.CheckHeap("count")
	require.Equal(t, 4, r.Listed)
	require.Equal(t, 4, r.FreeBlocks)
}
