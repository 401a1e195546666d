//go:build !linux && !darwin

package arena

// Mapped falls back to a Memory provider where anonymous mappings are not
// wired up.
type Mapped struct {
	*Memory
}

// NewMapped returns a Memory-backed provider of the given limit.
func NewMapped(limit int) (*Mapped, error) {
	m, err := NewMemory(limit)
	if err != nil {
		return nil, err
	}
	return &Mapped{Memory: m}, nil
}

var _ Provider = (*Mapped)(nil)
