package buddy

import "errors"

var (
	// ErrOutOfMemory indicates that no eligible zone has a free block of
	// sufficient order.
	ErrOutOfMemory = errors.New("buddy: out of memory")

	// ErrInvalidParameters indicates a misaligned address, an order outside
	// [0, MaxOrder], or a free of a block that is not currently allocated.
	ErrInvalidParameters = errors.New("buddy: invalid parameters")
)
