package buddy

// AllocatorStats is a derived, read-only snapshot of one zone or of a whole
// allocator.
type AllocatorStats struct {
	// TotalBytes is the number of bytes under management.
	TotalBytes uint64
	// UsedBytes is the number of bytes currently handed out.
	UsedBytes uint64
	// FreeBytes is TotalBytes - UsedBytes.
	FreeBytes uint64
	// TotalPages is the number of page frames under management.
	TotalPages uint64
	// UsedPages is the number of page frames currently handed out.
	UsedPages uint64
	// FragmentationPercent estimates external fragmentation: the share of
	// free pages not reachable through the largest free block (0 = one
	// contiguous free region, 100 = fully fragmented).
	FragmentationPercent int
}

func (s *AllocatorStats) add(o AllocatorStats) {
	s.TotalBytes += o.TotalBytes
	s.UsedBytes += o.UsedBytes
	s.FreeBytes += o.FreeBytes
	s.TotalPages += o.TotalPages
	s.UsedPages += o.UsedPages
}
