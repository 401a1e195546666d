//go:build linux || darwin

package arena

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Mapped is a Provider backed by an anonymous memory mapping. The whole limit
// is reserved with PROT_NONE up front; Grow commits pages read-write as the
// break crosses them, so address space is stable and untouched pages cost
// nothing.
type Mapped struct {
	region    []byte
	brk       int
	committed int
	pageSize  int
}

// NewMapped reserves limit bytes (rounded up to the page size).
// A limit of 0 selects DefaultLimit.
func NewMapped(limit int) (*Mapped, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit %d", ErrBadSize, limit)
	}
	if limit == 0 {
		limit = DefaultLimit
	}
	pageSize := unix.Getpagesize()
	limit = roundUp(limit, pageSize)

	region, err := unix.Mmap(-1, 0, limit, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("arena: reserve %d bytes: %w", limit, err)
	}
	return &Mapped{region: region, pageSize: pageSize}, nil
}

// Grow extends the region by n bytes, committing pages as needed.
func (m *Mapped) Grow(n int) (int, error) {
	if m.region == nil {
		return 0, ErrClosed
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: grow %d", ErrBadSize, n)
	}
	old := m.brk
	if n > len(m.region)-old {
		return 0, fmt.Errorf("%w: grow by %d with %d of %d in use", ErrExhausted, n, old, len(m.region))
	}

	need := old + n
	if need > m.committed {
		next := min(roundUp(need, m.pageSize), len(m.region))
		if err := unix.Mprotect(m.region[m.committed:next], unix.PROT_READ|unix.PROT_WRITE); err != nil {
			return 0, fmt.Errorf("%w: commit pages [%d, %d): %w", ErrExhausted, m.committed, next, err)
		}
		m.committed = next
	}
	m.brk = need
	return old, nil
}

// Bytes returns the current region.
func (m *Mapped) Bytes() []byte { return m.region[:m.brk] }

// Lo returns 0.
func (m *Mapped) Lo() int { return 0 }

// Hi returns the offset of the last byte in the region.
func (m *Mapped) Hi() int { return m.brk - 1 }

// Limit returns the size of the reservation.
func (m *Mapped) Limit() int { return len(m.region) }

// Reset moves the break to zero. Committed pages stay committed.
func (m *Mapped) Reset() { m.brk = 0 }

// Close unmaps the reservation.
func (m *Mapped) Close() error {
	if m.region == nil {
		return nil
	}
	err := unix.Munmap(m.region)
	m.region = nil
	m.brk, m.committed = 0, 0
	if errors.Is(err, unix.EINVAL) {
		// Treat double-unmap as no-op for callers.
		return nil
	}
	return err
}

func roundUp(n, to int) int {
	return (n + to - 1) / to * to
}

var _ Provider = (*Mapped)(nil)
