package slub

import "errors"

var (
	// ErrNotOwned indicates a free of an address no known page claims.
	ErrNotOwned = errors.New("slub: address not owned by cache")

	// ErrDuplicateName indicates a cache creation collision; the existing
	// cache is untouched.
	ErrDuplicateName = errors.New("slub: cache name already registered")

	// ErrNoFit indicates no registered cache satisfies the requested size
	// and alignment. The registry never promotes oversize requests to a
	// larger tier; that routing belongs to the caller.
	ErrNoFit = errors.New("slub: no cache fits request")

	// ErrUnknownCache indicates a lookup or destroy of an unregistered name.
	ErrUnknownCache = errors.New("slub: unknown cache")

	// ErrInvalidParameters indicates a zero size, a non-power-of-two
	// alignment, or an object too large for one page.
	ErrInvalidParameters = errors.New("slub: invalid parameters")
)
