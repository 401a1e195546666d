// Package arena provides the growable byte regions a heap allocator carves
// blocks out of.
//
// A Provider behaves like sbrk: the region only ever grows at its high end,
// growth is all-or-nothing, and bytes that were already handed out never move.
// That last property is what lets the allocator return payload slices that
// stay valid across later growth.
//
// Two providers are available:
//
//   - Memory: a Go slice with a fixed capacity limit. Cheap, portable, and the
//     default for tests and trace replay.
//   - Mapped: an anonymous mmap reservation whose pages are committed on demand
//     (unix only; other platforms fall back to Memory).
//
// Providers are not safe for concurrent use.
package arena

import (
	"errors"
	"fmt"
	"io"
)

// DefaultLimit is the default maximum arena size (20 MiB).
const DefaultLimit = 20 << 20

var (
	// ErrExhausted indicates the provider cannot grow by the requested amount.
	ErrExhausted = errors.New("arena: out of memory")

	// ErrBadSize indicates a negative growth request or limit.
	ErrBadSize = errors.New("arena: invalid size")

	// ErrClosed indicates use of a provider after Close.
	ErrClosed = errors.New("arena: provider closed")
)

// Provider is a contiguous, growable byte region.
type Provider interface {
	// Grow extends the region by exactly n bytes and returns the offset where
	// the new bytes begin (the previous break). On failure the region is
	// unchanged.
	Grow(n int) (int, error)

	// Bytes returns the current region. The slice aliases the provider's
	// storage; it must be re-fetched after Grow.
	Bytes() []byte

	// Lo returns the offset of the first byte of the region.
	Lo() int

	// Hi returns the offset of the last byte of the region, or -1 when empty.
	Hi() int

	// Reset moves the break back to zero, keeping any reservation.
	Reset()

	io.Closer
}

// Kind names a Provider implementation.
type Kind string

const (
	KindMemory Kind = "memory"
	KindMapped Kind = "mmap"
)

// New returns a provider of the given kind with the given limit.
func New(kind Kind, limit int) (Provider, error) {
	switch kind {
	case KindMemory, "":
		m, err := NewMemory(limit)
		if err != nil {
			return nil, err
		}
		return m, nil
	case KindMapped:
		m, err := NewMapped(limit)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("arena: unknown provider kind %q (must be %s or %s)", kind, KindMemory, KindMapped)
	}
}
