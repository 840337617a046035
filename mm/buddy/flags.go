package buddy

// PhysAddr is an absolute address in the managed physical address space.
type PhysAddr uint64

// NullAddr is the reserved null address. Zones never start at address 0 so
// the zero value can serve as the free-list nil sentinel.
const NullAddr PhysAddr = 0

// DefaultPageSize is the page-frame size used unless a zone says otherwise.
const DefaultPageSize = 4096

// NoNumaNode marks a zone with no NUMA affinity.
const NoNumaNode = -1

// ZoneType classifies the allocation semantics of a zone.
type ZoneType uint8

const (
	// ZoneNormal is ordinary RAM.
	ZoneNormal ZoneType = iota
	// ZoneDma is low memory reachable by legacy DMA engines.
	ZoneDma
	// ZoneDma64 is memory reachable by 64-bit-capable DMA engines.
	ZoneDma64
	// ZoneHighMem is high memory outside the kernel's direct map.
	ZoneHighMem
	// ZonePmem is persistent memory.
	ZonePmem
	// ZoneCxl is CXL-attached memory.
	ZoneCxl
)

// String returns the lowercase zone type name.
func (t ZoneType) String() string {
	switch t {
	case ZoneNormal:
		return "normal"
	case ZoneDma:
		return "dma"
	case ZoneDma64:
		return "dma64"
	case ZoneHighMem:
		return "highmem"
	case ZonePmem:
		return "pmem"
	case ZoneCxl:
		return "cxl"
	default:
		return "unknown"
	}
}

// AllocationPriority selects the zone-placement policy for a request.
type AllocationPriority uint8

const (
	// PriorityNormal prefers general-purpose zones before specialized ones.
	PriorityNormal AllocationPriority = iota
	// PrioritySpeed returns the first zone with a hit, even at a higher
	// fragmentation cost.
	PrioritySpeed
	// PriorityEfficiency picks the zone whose available block order is
	// closest to the request, minimizing leftover split fragments.
	PriorityEfficiency
	// PriorityNumaLocal restricts placement to zones on Flags.NumaNode,
	// falling back to any zone when the node has no free block.
	PriorityNumaLocal
)

// PurposeTag is an 8-byte diagnostic label carried by an allocation request.
// Tags have no effect on placement; the allocator only counts them.
type PurposeTag [8]byte

// Tag builds a PurposeTag from s, truncated to 8 bytes.
func Tag(s string) PurposeTag {
	var t PurposeTag
	copy(t[:], s)
	return t
}

// String returns the tag with trailing zero bytes stripped.
func (t PurposeTag) String() string {
	n := len(t)
	for n > 0 && t[n-1] == 0 {
		n--
	}
	return string(t[:n])
}

// IsZero reports whether the tag is unset.
func (t PurposeTag) IsZero() bool { return t == PurposeTag{} }

// AllocationFlags qualify a single allocation request.
type AllocationFlags struct {
	// Priority selects the zone-placement policy.
	Priority AllocationPriority

	// NumaNode is the target node for PriorityNumaLocal; ignored otherwise.
	NumaNode int

	// Contiguous requests one unbroken physical range. Always satisfied by
	// construction: a buddy block is contiguous.
	Contiguous bool

	// Zero requests the returned block be zero-filled.
	Zero bool

	// PurposeTag labels the allocation for diagnostics.
	PurposeTag PurposeTag
}

// DefaultFlags returns flags for an ordinary allocation: normal priority,
// no NUMA affinity, no zero-fill.
func DefaultFlags() AllocationFlags {
	return AllocationFlags{Priority: PriorityNormal, NumaNode: NoNumaNode}
}
