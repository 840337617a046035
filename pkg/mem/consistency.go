package mem

import (
	"fmt"
	"log/slog"

	"github.com/joshuapare/memkit/mm/buddy"
)

// consistencyError handles a free that no tier can account for: a
// double-free or a corrupted pointer. Crash-fast in debug builds so the
// programming error surfaces early; log and leak in release builds so the
// process stays up.
func (a *Allocator) consistencyError(addr buddy.PhysAddr, size, align uint64, cause error) error {
	if strictConsistency {
		panic(fmt.Sprintf("mem: untraceable free of %#x (size %d align %d): %v",
			addr, size, align, cause))
	}
	a.leakedFrees.Add(1)
	slog.Error("untraceable free, leaking allocation",
		"addr", fmt.Sprintf("%#x", uint64(addr)),
		"size", size,
		"align", align,
		"cause", cause)
	return fmt.Errorf("%w: %#x (size %d align %d): %v", ErrConsistency, addr, size, align, cause)
}
