package arena

import "fmt"

// Memory is a Provider backed by a single Go slice allocated at its full
// capacity up front, so growth is a reslice and existing bytes never move.
type Memory struct {
	buf    []byte
	closed bool
}

// NewMemory returns a Memory provider that can grow up to limit bytes.
// A limit of 0 selects DefaultLimit.
func NewMemory(limit int) (*Memory, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit %d", ErrBadSize, limit)
	}
	if limit == 0 {
		limit = DefaultLimit
	}
	return &Memory{buf: make([]byte, 0, limit)}, nil
}

// Grow extends the region by n bytes.
func (m *Memory) Grow(n int) (int, error) {
	if m.closed {
		return 0, ErrClosed
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: grow %d", ErrBadSize, n)
	}
	old := len(m.buf)
	if n > cap(m.buf)-old {
		return 0, fmt.Errorf("%w: grow by %d with %d of %d in use", ErrExhausted, n, old, cap(m.buf))
	}
	m.buf = m.buf[:old+n]
	return old, nil
}

// Bytes returns the current region.
func (m *Memory) Bytes() []byte { return m.buf }

// Lo returns 0.
func (m *Memory) Lo() int { return 0 }

// Hi returns the offset of the last byte in the region.
func (m *Memory) Hi() int { return len(m.buf) - 1 }

// Limit returns the maximum size the region may reach.
func (m *Memory) Limit() int { return cap(m.buf) }

// Reset empties the region. Old contents are left in place and will be
// visible again after the next Grow.
func (m *Memory) Reset() { m.buf = m.buf[:0] }

// Close releases the backing slice.
func (m *Memory) Close() error {
	m.buf = nil
	m.closed = true
	return nil
}

var _ Provider = (*Memory)(nil)
