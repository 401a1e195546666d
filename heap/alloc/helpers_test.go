package alloc

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/heap/arena"
	"github.com/joshuapare/heapkit/internal/format"
)

// ============================================================================
// Allocator Setup
// ============================================================================

// newTestAllocator returns an initialized allocator over a Memory provider
// with the given limit (0 selects arena.DefaultLimit).
func newTestAllocator(t testing.TB, limit int, opts ...Option) *Allocator {
	t.Helper()

	mem, err := arena.NewMemory(limit)
	require.NoError(t, err)
	a := New(mem, opts...)
	require.NoError(t, a.Init())
	requireHeapOK(t, a, "init")
	return a
}

// ============================================================================
// Invariant Checks
// ============================================================================

func requireHeapOK(t testing.TB, a *Allocator, tag string) {
	t.Helper()
	r := a.CheckHeap(tag)
	require.True(t, r.OK(), r.String())
}

// requireViolation asserts that CheckHeap reports at least one violation of
// the given type.
func requireViolation(t testing.TB, a *Allocator, typ string) *Report {
	t.Helper()
	r := a.CheckHeap("corrupt")
	require.False(t, r.OK(), "expected a %s violation", typ)
	for _, v := range r.Violations {
		if v.Type == typ {
			return r
		}
	}
	require.Failf(t, "missing violation", "want type %s in:\n%s", typ, r.String())
	return r
}

// requireDisjoint checks that no two live blocks overlap and that every
// pointer is aligned.
func requireDisjoint(t testing.TB, a *Allocator, live []Ptr) {
	t.Helper()
	ptrs := slices.Clone(live)
	slices.Sort(ptrs)
	for i, p := range ptrs {
		require.True(t, format.IsAligned8(p), "pointer %#x not aligned", p)
		if i == 0 {
			continue
		}
		prev := ptrs[i-1]
		require.LessOrEqual(t, int(prev)+a.UsableSize(prev), int(p),
			"blocks %#x and %#x overlap", prev, p)
	}
}

// fill writes a recognisable pattern derived from seed.
func fill(b []byte, seed byte) {
	for i := range b {
		b[i] = seed + byte(i)
	}
}

func requirePattern(t testing.TB, b []byte, seed byte) {
	t.Helper()
	for i := range b {
		if b[i] != seed+byte(i) {
			require.Failf(t, "pattern mismatch", "byte %d = %#x, want %#x", i, b[i], seed+byte(i))
		}
	}
}

// classOf returns the list a registered block sits in, or -1.
func classOf(a *Allocator, bp uint32) int {
	for c := range format.NumClasses {
		for cur := a.listHead(c); cur != format.NilLink; cur = a.succ(cur) {
			if cur == bp {
				return c
			}
		}
	}
	return -1
}

// listMembers returns a class list from head to tail.
func listMembers(a *Allocator, class int) []uint32 {
	var out []uint32
	for cur := a.listHead(class); cur != format.NilLink; cur = a.succ(cur) {
		out = append(out, cur)
	}
	return out
}
