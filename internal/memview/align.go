package memview

// Alignment utilities for the allocator core. Block and slot addresses must
// sit on power-of-two boundaries; these helpers keep the bit arithmetic in
// one place.

// LinkSize is the size in bytes of an intrusive free-list link word.
const LinkSize = 8

// AlignUp returns n rounded up to the next multiple of align.
// align must be a power of two.
func AlignUp(n, align uint64) uint64 {
	return (n + align - 1) &^ (align - 1)
}

// AlignDown returns n rounded down to a multiple of align.
// align must be a power of two.
func AlignDown(n, align uint64) uint64 {
	return n &^ (align - 1)
}

// IsAligned reports whether n is a multiple of align (a power of two).
func IsAligned(n, align uint64) bool {
	return n&(align-1) == 0
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n uint64) bool {
	return n != 0 && n&(n-1) == 0
}
