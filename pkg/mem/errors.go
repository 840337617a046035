package mem

import "errors"

var (
	// ErrNotInitialized indicates use of the package-level entry points
	// before Init.
	ErrNotInitialized = errors.New("mem: allocator not initialized")

	// ErrConsistency indicates a free of a pointer untraceable to any known
	// cache or zone. With the memdebug build tag this is never returned;
	// the allocator panics instead.
	ErrConsistency = errors.New("mem: untraceable free")
)
