package arrowmem_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/heap/arena"
	"github.com/joshuapare/heapkit/heap/arrowmem"
)

func newHeap(t *testing.T, limit int) *alloc.Allocator {
	t.Helper()
	mem, err := arena.NewMemory(limit)
	require.NoError(t, err)
	h := alloc.New(mem)
	require.NoError(t, h.Init())
	return h
}

func requireHeapOK(t *testing.T, h *alloc.Allocator) {
	t.Helper()
	r := h.CheckHeap(t.Name())
	require.True(t, r.OK(), r.String())
}

func TestAllocate(t *testing.T) {
	sizes := []int{0, 1, 4, 33, 65, 4095, 4096, 8193}
	for _, size := range sizes {
		t.Run(fmt.Sprint(size), func(t *testing.T) {
			h := newHeap(t, 0)
			a := arrowmem.New(h)

			buf := a.Allocate(size)
			assert.Equal(t, size, len(buf))
			assert.Equal(t, size, cap(buf))
			for idx, c := range buf {
				assert.Equal(t, uint8(0), c, "buf not zero-initialized at %d", idx)
			}
			assert.Equal(t, int64(size), a.AllocatedBytes())

			a.Free(buf)
			assert.Zero(t, a.AllocatedBytes())
			requireHeapOK(t, h)
		})
	}
}

func TestAllocate_ReusesZeroed(t *testing.T) {
	h := newHeap(t, 0)
	a := arrowmem.New(h)

	buf := a.Allocate(256)
	for i := range buf {
		buf[i] = 0xFF
	}
	a.Free(buf)

	buf = a.Allocate(256)
	for idx, c := range buf {
		require.Zero(t, c, "stale byte at %d", idx)
	}
	a.Free(buf)
}

func TestReallocate(t *testing.T) {
	sizes := []struct {
		before, after int
	}{
		{0, 1},
		{1, 0},
		{1, 2},
		{1, 33},
		{4, 4},
		{32, 16},
		{32, 1},
		{100, 5000},
		{5000, 100},
	}
	for _, test := range sizes {
		t.Run(fmt.Sprintf("%dTo%d", test.before, test.after), func(t *testing.T) {
			h := newHeap(t, 0)
			a := arrowmem.New(h)

			buf := a.Allocate(test.before)
			for i := range buf {
				buf[i] = byte(i + 1)
			}

			buf = a.Reallocate(test.after, buf)
			assert.Equal(t, test.after, len(buf))
			kept := min(test.before, test.after)
			for i := range kept {
				assert.Equal(t, byte(i+1), buf[i], "byte %d lost", i)
			}
			for i := kept; i < test.after; i++ {
				assert.Zero(t, buf[i], "byte %d not zeroed", i)
			}
			assert.Equal(t, int64(test.after), a.AllocatedBytes())

			a.Free(buf)
			assert.Zero(t, a.AllocatedBytes())
			requireHeapOK(t, h)
		})
	}
}

func TestNegativeSize(t *testing.T) {
	a := arrowmem.New(newHeap(t, 0))
	assert.PanicsWithValue(t, "arrowmem: negative size", func() {
		a.Allocate(-1)
	})

	buf := a.Allocate(1)
	defer a.Free(buf)
	assert.PanicsWithValue(t, "arrowmem: negative size", func() {
		a.Reallocate(-1, buf)
	})
}

func TestOutOfMemoryPanics(t *testing.T) {
	a := arrowmem.New(newHeap(t, 8192))

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		require.ErrorIs(t, err, alloc.ErrNoSpace)
	}()
	a.Allocate(1 << 20)
}

func TestForeignSlicePanics(t *testing.T) {
	a := arrowmem.New(newHeap(t, 0))

	defer func() {
		err, ok := recover().(error)
		require.True(t, ok)
		require.ErrorIs(t, err, arrowmem.ErrForeignSlice)
	}()
	a.Free(make([]byte, 16))
}

func TestDoubleFreePanics(t *testing.T) {
	a := arrowmem.New(newHeap(t, 0))
	buf := a.Allocate(64)
	a.Free(buf)

	defer func() {
		err, ok := recover().(error)
		require.True(t, ok)
		require.ErrorIs(t, err, alloc.ErrNotAllocated)
	}()
	a.Free(buf)
}

func TestResizableBuffer(t *testing.T) {
	h := newHeap(t, 0)
	mem := memory.NewCheckedAllocator(arrowmem.New(h))
	defer mem.AssertSize(t, 0)

	buf := memory.NewResizableBuffer(mem)
	buf.Resize(10)
	assert.Equal(t, 10, buf.Len())
	copy(buf.Bytes(), "0123456789")

	buf.Resize(10000)
	assert.Equal(t, "0123456789", string(buf.Bytes()[:10]))
	assert.Equal(t, 10000, buf.Len())

	buf.Release()
	assert.Nil(t, buf.Bytes())
	requireHeapOK(t, h)
}

func TestArrowArrays(t *testing.T) {
	h := newHeap(t, 0)
	mem := memory.NewCheckedAllocator(arrowmem.New(h))
	defer mem.AssertSize(t, 0)

	ib := array.NewInt64Builder(mem)
	defer ib.Release()
	for i := range 10000 {
		if i%7 == 0 {
			ib.AppendNull()
			continue
		}
		ib.Append(int64(i * i))
	}

	sb := array.NewStringBuilder(mem)
	defer sb.Release()
	for i := range 500 {
		sb.Append(strings.Repeat("x", i%40))
	}

	ints := ib.NewInt64Array()
	defer ints.Release()
	strs := sb.NewStringArray()
	defer strs.Release()

	requireHeapOK(t, h)
	assert.Equal(t, 10000, ints.Len())
	assert.Equal(t, 1429, ints.NullN())
	assert.Equal(t, int64(9999*9999), ints.Value(9999))
	assert.Equal(t, strings.Repeat("x", 39), strs.Value(39))
	assert.Greater(t, h.Stats().ReallocMoved+h.Stats().ReallocInPlace, 0, "builders grow by reallocating")
}
