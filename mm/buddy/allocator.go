package buddy

import (
	"fmt"
	"sync"

	"github.com/joshuapare/memkit/internal/memview"
)

// Allocator manages a set of zones over one backing address space and routes
// requests between them according to AllocationFlags.
type Allocator struct {
	view  *memview.View
	zones []*Zone

	// Purpose-tag counters, diagnostics only.
	tagMu     sync.Mutex
	tagCounts map[PurposeTag]uint64
}

// NewAllocator builds the zones described by configs over view. Zones must
// not overlap and must share one page size; they are searched in the order
// given here.
func NewAllocator(view *memview.View, configs []ZoneConfig) (*Allocator, error) {
	if len(configs) == 0 {
		return nil, fmt.Errorf("%w: no zones configured", ErrInvalidParameters)
	}
	pageSize := configs[0].PageSize
	zones := make([]*Zone, 0, len(configs))
	for i := range configs {
		cfg := configs[i]
		if cfg.PageSize != pageSize {
			return nil, fmt.Errorf("%w: zone %q: page size %d differs from %d",
				ErrInvalidParameters, cfg.Name, cfg.PageSize, pageSize)
		}
		for _, prev := range zones {
			if cfg.MinAddr < prev.cfg.MaxAddr && prev.cfg.MinAddr < cfg.MaxAddr {
				return nil, fmt.Errorf("%w: zones %q and %q overlap",
					ErrInvalidParameters, cfg.Name, prev.cfg.Name)
			}
		}
		z, err := NewZone(view, cfg)
		if err != nil {
			return nil, err
		}
		zones = append(zones, z)
	}
	return &Allocator{
		view:      view,
		zones:     zones,
		tagCounts: make(map[PurposeTag]uint64),
	}, nil
}

// PageSize returns the page-frame size shared by all zones.
func (a *Allocator) PageSize() uint64 { return a.zones[0].cfg.PageSize }

// Zones returns the managed zones in search order.
func (a *Allocator) Zones() []*Zone { return a.zones }

// ZoneOf returns the zone containing addr, or nil.
func (a *Allocator) ZoneOf(addr PhysAddr) *Zone {
	for _, z := range a.zones {
		if z.Contains(addr) {
			return z
		}
	}
	return nil
}

// Allocate hands out one order-k block from a zone chosen per flags.
func (a *Allocator) Allocate(order int, flags AllocationFlags) (PhysAddr, error) {
	addr, err := a.allocateIn(a.candidateZones(flags, order), order, flags)
	if err != nil {
		return NullAddr, err
	}
	if !flags.PurposeTag.IsZero() {
		a.tagMu.Lock()
		a.tagCounts[flags.PurposeTag]++
		a.tagMu.Unlock()
	}
	return addr, nil
}

// candidateZones orders the zones for one request according to its priority.
func (a *Allocator) candidateZones(flags AllocationFlags, order int) []*Zone {
	switch flags.Priority {
	case PriorityNumaLocal:
		// Matching node first, everything else as fallback.
		ordered := make([]*Zone, 0, len(a.zones))
		for _, z := range a.zones {
			if z.cfg.NumaNode == flags.NumaNode {
				ordered = append(ordered, z)
			}
		}
		for _, z := range a.zones {
			if z.cfg.NumaNode != flags.NumaNode {
				ordered = append(ordered, z)
			}
		}
		return ordered

	case PriorityEfficiency:
		// Zone whose nearest available order is smallest splits least.
		best, bestOrder := -1, MaxSupportedOrder+1
		for i, z := range a.zones {
			if k := z.lowestAvailableOrder(order); k >= 0 && k < bestOrder {
				best, bestOrder = i, k
			}
		}
		if best < 0 {
			return a.zones
		}
		ordered := make([]*Zone, 0, len(a.zones))
		ordered = append(ordered, a.zones[best])
		for i, z := range a.zones {
			if i != best {
				ordered = append(ordered, z)
			}
		}
		return ordered

	case PriorityNormal:
		// Keep specialized zones (DMA, PMEM, ...) as a last resort.
		ordered := make([]*Zone, 0, len(a.zones))
		for _, z := range a.zones {
			if z.cfg.Type == ZoneNormal {
				ordered = append(ordered, z)
			}
		}
		for _, z := range a.zones {
			if z.cfg.Type != ZoneNormal {
				ordered = append(ordered, z)
			}
		}
		return ordered

	default: // PrioritySpeed: first hit wins, registration order.
		return a.zones
	}
}

func (a *Allocator) allocateIn(zones []*Zone, order int, flags AllocationFlags) (PhysAddr, error) {
	var firstErr error
	for _, z := range zones {
		addr, err := z.Allocate(order, flags)
		if err == nil {
			return addr, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		firstErr = ErrOutOfMemory
	}
	return NullAddr, fmt.Errorf("no eligible zone for order %d: %w", order, firstErr)
}

// Free returns an order-k block to the zone owning addr.
func (a *Allocator) Free(addr PhysAddr, order int) error {
	z := a.ZoneOf(addr)
	if z == nil {
		return fmt.Errorf("%w: address %#x belongs to no zone", ErrInvalidParameters, addr)
	}
	return z.Free(addr, order)
}

// Stats aggregates all zone snapshots. FragmentationPercent is recomputed
// over the combined free space.
func (a *Allocator) Stats() AllocatorStats {
	var agg AllocatorStats
	var worstFrag int
	for _, z := range a.zones {
		s := z.Stats()
		agg.add(s)
		if s.FragmentationPercent > worstFrag {
			worstFrag = s.FragmentationPercent
		}
	}
	agg.FragmentationPercent = worstFrag
	return agg
}

// TagCounts returns a copy of the per-purpose-tag allocation counters.
func (a *Allocator) TagCounts() map[PurposeTag]uint64 {
	a.tagMu.Lock()
	defer a.tagMu.Unlock()
	out := make(map[PurposeTag]uint64, len(a.tagCounts))
	for k, v := range a.tagCounts {
		out[k] = v
	}
	return out
}
