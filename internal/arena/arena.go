// Package arena reserves the backing storage for the simulated physical
// address space. On unix platforms the arena is an anonymous memory mapping
// so large address spaces stay virtual until touched; elsewhere it falls
// back to a heap-allocated byte slice.
package arena

import "fmt"

// Arena is a fixed-size contiguous byte region. Address 0 of the managed
// address space corresponds to index 0 of Bytes().
type Arena struct {
	data    []byte
	cleanup func() error
}

// New reserves an arena of exactly size bytes.
func New(size int) (*Arena, error) {
	if size <= 0 {
		return nil, fmt.Errorf("arena: invalid size %d", size)
	}
	data, cleanup, err := reserve(size)
	if err != nil {
		return nil, fmt.Errorf("arena: reserve %d bytes: %w", size, err)
	}
	return &Arena{data: data, cleanup: cleanup}, nil
}

// Bytes returns the full backing region.
func (a *Arena) Bytes() []byte { return a.data }

// Size returns the arena size in bytes.
func (a *Arena) Size() int { return len(a.data) }

// Close releases the backing region. The arena must not be used afterwards.
func (a *Arena) Close() error {
	if a == nil || a.cleanup == nil {
		return nil
	}
	err := a.cleanup()
	a.data = nil
	a.cleanup = nil
	return err
}
