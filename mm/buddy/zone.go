package buddy

import (
	"fmt"
	"math/bits"
	"sync"

	"github.com/joshuapare/memkit/internal/memview"
)

const (
	// MaxSupportedOrder bounds ZoneConfig.MaxOrder. 2^30 pages is far beyond
	// any zone this allocator is asked to manage.
	MaxSupportedOrder = 30

	// minPageSize keeps room for the two intrusive link words plus headroom.
	minPageSize = 64
)

// ZoneConfig describes one contiguous region of the physical address space.
type ZoneConfig struct {
	// Name identifies the zone in stats and logs.
	Name string

	// Type classifies the zone's allocation semantics.
	Type ZoneType

	// MinAddr and MaxAddr bound the zone: [MinAddr, MaxAddr).
	// MinAddr must be nonzero (address 0 is the null sentinel) and both
	// bounds must be PageSize-aligned.
	MinAddr PhysAddr
	MaxAddr PhysAddr

	// PageSize is the frame size, a power of two >= 64.
	PageSize uint64

	// MaxOrder is the largest block order: blocks span PageSize<<MaxOrder
	// bytes at most.
	MaxOrder int

	// NumaNode is the zone's NUMA node, or NoNumaNode.
	NumaNode int
}

func (c *ZoneConfig) validate() error {
	switch {
	case c.PageSize < minPageSize || !memview.IsPowerOfTwo(c.PageSize):
		return fmt.Errorf("%w: zone %q: page size %d", ErrInvalidParameters, c.Name, c.PageSize)
	case c.MaxOrder < 0 || c.MaxOrder > MaxSupportedOrder:
		return fmt.Errorf("%w: zone %q: max order %d", ErrInvalidParameters, c.Name, c.MaxOrder)
	case c.MinAddr == NullAddr:
		return fmt.Errorf("%w: zone %q: zone may not start at address 0", ErrInvalidParameters, c.Name)
	case !memview.IsAligned(uint64(c.MinAddr), c.PageSize) || !memview.IsAligned(uint64(c.MaxAddr), c.PageSize):
		return fmt.Errorf("%w: zone %q: bounds not page-aligned", ErrInvalidParameters, c.Name)
	case c.MaxAddr < c.MinAddr+PhysAddr(c.PageSize):
		return fmt.Errorf("%w: zone %q: zone smaller than one page", ErrInvalidParameters, c.Name)
	}
	return nil
}

// frameState tracks what the head page of a block currently is.
type frameState uint8

const (
	// frameBody marks a page that is the interior of a larger block; it has
	// no standalone identity until a split exposes it.
	frameBody frameState = iota
	// frameFree marks the head page of a block sitting on a free list.
	frameFree
	// frameAllocated marks the head page of a block owned by a caller.
	frameAllocated
)

// frame is per-page metadata. Order is only meaningful for head pages.
type frame struct {
	order int8
	state frameState
}

// Zone manages the page frames of one contiguous address range.
//
// The zone's free lists are intrusive and doubly linked: word 0 of a free
// block holds the next free block's address, word 1 the previous one.
// NullAddr terminates both directions. The frame table mirrors which head
// pages are free so a buddy's state is an O(1) lookup during coalescing.
type Zone struct {
	cfg  ZoneConfig
	view *memview.View

	mu     sync.Mutex
	heads  []PhysAddr // free-list head per order
	counts []uint64   // free blocks per order
	frames []frame

	totalPages uint64
	freePages  uint64

	allocCalls uint64
	freeCalls  uint64
	allocFails uint64
}

// NewZone validates cfg and carves the zone's range into maximal free blocks.
func NewZone(view *memview.View, cfg ZoneConfig) (*Zone, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if !view.Contains(uint64(cfg.MinAddr), uint64(cfg.MaxAddr-cfg.MinAddr)) {
		return nil, fmt.Errorf("%w: zone %q: [%#x, %#x) outside backing space",
			ErrInvalidParameters, cfg.Name, cfg.MinAddr, cfg.MaxAddr)
	}

	totalPages := uint64(cfg.MaxAddr-cfg.MinAddr) / cfg.PageSize
	z := &Zone{
		cfg:    cfg,
		view:   view,
		heads:  make([]PhysAddr, cfg.MaxOrder+1),
		counts: make([]uint64, cfg.MaxOrder+1),
		frames: make([]frame, totalPages),

		totalPages: totalPages,
	}

	// Seed the free lists with the largest aligned blocks that fit, exactly
	// the way a boot memory map region is absorbed: block order is limited
	// by both the remaining span and the block's own alignment.
	addr := cfg.MinAddr
	for addr < cfg.MaxAddr {
		order := z.maxCarveOrder(addr, uint64(cfg.MaxAddr-addr))
		z.setFrame(addr, frame{order: int8(order), state: frameFree})
		z.pushFree(addr, order)
		z.freePages += 1 << order
		addr += PhysAddr(cfg.PageSize << order)
	}
	return z, nil
}

// maxCarveOrder returns the largest order usable for a block at addr given
// span bytes of remaining room. The block must be size-aligned relative to
// the zone base for the XOR buddy relation to hold.
func (z *Zone) maxCarveOrder(addr PhysAddr, span uint64) int {
	pageIdx := uint64(addr-z.cfg.MinAddr) / z.cfg.PageSize
	pages := span / z.cfg.PageSize

	order := 0
	blockPages := uint64(1)
	for order < z.cfg.MaxOrder && blockPages*2 <= pages && pageIdx&(blockPages<<1-1) == 0 {
		blockPages <<= 1
		order++
	}
	return order
}

// Config returns the zone's configuration.
func (z *Zone) Config() ZoneConfig { return z.cfg }

// PageSize returns the zone's page-frame size in bytes.
func (z *Zone) PageSize() uint64 { return z.cfg.PageSize }

// Contains reports whether addr lies inside the zone.
func (z *Zone) Contains(addr PhysAddr) bool {
	return addr >= z.cfg.MinAddr && addr < z.cfg.MaxAddr
}

// blockBytes returns the size in bytes of an order-k block.
func (z *Zone) blockBytes(order int) uint64 {
	return z.cfg.PageSize << order
}

func (z *Zone) frameIndex(addr PhysAddr) uint64 {
	return uint64(addr-z.cfg.MinAddr) / z.cfg.PageSize
}

func (z *Zone) frameAt(addr PhysAddr) frame {
	return z.frames[z.frameIndex(addr)]
}

func (z *Zone) setFrame(addr PhysAddr, f frame) {
	z.frames[z.frameIndex(addr)] = f
}

// Intrusive free-list plumbing. Callers hold z.mu. Link words live in the
// block's own first 16 bytes and are only valid while the block is free.

func (z *Zone) pushFree(addr PhysAddr, order int) {
	head := z.heads[order]
	z.view.SetWord(uint64(addr), uint64(head))
	z.view.SetWord(uint64(addr)+memview.LinkSize, uint64(NullAddr))
	if head != NullAddr {
		z.view.SetWord(uint64(head)+memview.LinkSize, uint64(addr))
	}
	z.heads[order] = addr
	z.counts[order]++
}

func (z *Zone) popFree(order int) PhysAddr {
	head := z.heads[order]
	if head == NullAddr {
		return NullAddr
	}
	next := PhysAddr(z.view.Word(uint64(head)))
	z.heads[order] = next
	if next != NullAddr {
		z.view.SetWord(uint64(next)+memview.LinkSize, uint64(NullAddr))
	}
	z.counts[order]--
	return head
}

func (z *Zone) unlinkFree(addr PhysAddr, order int) {
	next := PhysAddr(z.view.Word(uint64(addr)))
	prev := PhysAddr(z.view.Word(uint64(addr) + memview.LinkSize))
	if prev != NullAddr {
		z.view.SetWord(uint64(prev), uint64(next))
	} else {
		z.heads[order] = next
	}
	if next != NullAddr {
		z.view.SetWord(uint64(next)+memview.LinkSize, uint64(prev))
	}
	z.counts[order]--
}

// Allocate hands out one order-k block. On a miss at the requested order it
// splits the nearest larger block top-down, pushing each unused half onto
// its own free list.
func (z *Zone) Allocate(order int, flags AllocationFlags) (PhysAddr, error) {
	if order < 0 || order > z.cfg.MaxOrder {
		return NullAddr, fmt.Errorf("%w: order %d outside [0, %d]",
			ErrInvalidParameters, order, z.cfg.MaxOrder)
	}

	z.mu.Lock()
	z.allocCalls++

	k := order
	for k <= z.cfg.MaxOrder && z.heads[k] == NullAddr {
		k++
	}
	if k > z.cfg.MaxOrder {
		z.allocFails++
		z.mu.Unlock()
		if logAlloc {
			debugLogf("zone %q: OOM at order %d (free pages %d)", z.cfg.Name, order, z.freePages)
		}
		return NullAddr, fmt.Errorf("%w: zone %q has no block of order >= %d",
			ErrOutOfMemory, z.cfg.Name, order)
	}

	addr := z.popFree(k)
	for ; k > order; k-- {
		half := addr + PhysAddr(z.blockBytes(k-1))
		z.setFrame(half, frame{order: int8(k - 1), state: frameFree})
		z.pushFree(half, k-1)
	}
	z.setFrame(addr, frame{order: int8(order), state: frameAllocated})
	z.freePages -= 1 << order
	z.mu.Unlock()

	// The block is caller-owned now; zero-fill needs no lock.
	if flags.Zero {
		z.view.Zero(uint64(addr), z.blockBytes(order))
	}
	return addr, nil
}

// Free returns an order-k block to the zone, coalescing with its buddy
// recursively while the buddy is itself a fully free block of the same order.
func (z *Zone) Free(addr PhysAddr, order int) error {
	if order < 0 || order > z.cfg.MaxOrder {
		return fmt.Errorf("%w: order %d outside [0, %d]",
			ErrInvalidParameters, order, z.cfg.MaxOrder)
	}
	size := z.blockBytes(order)
	if !z.Contains(addr) || uint64(addr)+size > uint64(z.cfg.MaxAddr) {
		return fmt.Errorf("%w: block [%#x, %#x) outside zone %q",
			ErrInvalidParameters, addr, uint64(addr)+size, z.cfg.Name)
	}
	if !memview.IsAligned(uint64(addr-z.cfg.MinAddr), size) {
		return fmt.Errorf("%w: address %#x not aligned to order-%d block",
			ErrInvalidParameters, addr, order)
	}

	z.mu.Lock()
	defer z.mu.Unlock()
	z.freeCalls++

	f := z.frameAt(addr)
	if f.state != frameAllocated || int(f.order) != order {
		return fmt.Errorf("%w: free of %#x order %d, frame is (order %d, state %d)",
			ErrInvalidParameters, addr, order, f.order, f.state)
	}

	cur := addr
	k := order
	for k < z.cfg.MaxOrder {
		buddyAddr := z.cfg.MinAddr + PhysAddr(uint64(cur-z.cfg.MinAddr)^z.blockBytes(k))
		if buddyAddr < z.cfg.MinAddr || uint64(buddyAddr)+z.blockBytes(k) > uint64(z.cfg.MaxAddr) {
			break
		}
		bf := z.frameAt(buddyAddr)
		if bf.state != frameFree || int(bf.order) != k {
			break
		}
		z.unlinkFree(buddyAddr, k)
		if buddyAddr < cur {
			z.setFrame(cur, frame{state: frameBody})
			cur = buddyAddr
		} else {
			z.setFrame(buddyAddr, frame{state: frameBody})
		}
		k++
	}

	z.setFrame(cur, frame{order: int8(k), state: frameFree})
	z.pushFree(cur, k)
	z.freePages += 1 << order
	return nil
}

// FreeBlocks returns the number of free blocks currently on the order-k list.
func (z *Zone) FreeBlocks(order int) int {
	if order < 0 || order > z.cfg.MaxOrder {
		return 0
	}
	z.mu.Lock()
	defer z.mu.Unlock()
	return int(z.counts[order])
}

// lowestAvailableOrder returns the smallest order >= want with a free block,
// or -1 when the zone cannot satisfy an order-want request.
func (z *Zone) lowestAvailableOrder(want int) int {
	if want < 0 || want > z.cfg.MaxOrder {
		return -1
	}
	z.mu.Lock()
	defer z.mu.Unlock()
	for k := want; k <= z.cfg.MaxOrder; k++ {
		if z.heads[k] != NullAddr {
			return k
		}
	}
	return -1
}

// Stats returns a point-in-time snapshot of the zone.
func (z *Zone) Stats() AllocatorStats {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.statsLocked()
}

func (z *Zone) statsLocked() AllocatorStats {
	s := AllocatorStats{
		TotalPages: z.totalPages,
		UsedPages:  z.totalPages - z.freePages,
		TotalBytes: z.totalPages * z.cfg.PageSize,
	}
	s.UsedBytes = s.UsedPages * z.cfg.PageSize
	s.FreeBytes = s.TotalBytes - s.UsedBytes

	var largest uint64
	for k := z.cfg.MaxOrder; k >= 0; k-- {
		if z.heads[k] != NullAddr {
			largest = 1 << k
			break
		}
	}
	if z.freePages > 0 {
		s.FragmentationPercent = int(100 * (z.freePages - largest) / z.freePages)
	}
	return s
}

// freeSnapshot captures every free-list chain, outermost slice indexed by
// order. Test hook for round-trip and coalescing properties.
func (z *Zone) freeSnapshot() [][]PhysAddr {
	z.mu.Lock()
	defer z.mu.Unlock()
	snap := make([][]PhysAddr, z.cfg.MaxOrder+1)
	for k := 0; k <= z.cfg.MaxOrder; k++ {
		for a := z.heads[k]; a != NullAddr; a = PhysAddr(z.view.Word(uint64(a))) {
			snap[k] = append(snap[k], a)
		}
	}
	return snap
}

// OrderFor returns the smallest order whose block holds size bytes.
func OrderFor(size, pageSize uint64) int {
	if size <= pageSize {
		return 0
	}
	pages := memview.AlignUp(size, pageSize) / pageSize
	return bits.Len64(pages - 1)
}
