// Package buddy implements the physical page-frame allocator: a classic
// buddy system carving each memory zone into power-of-two blocks of pages.
//
// # Overview
//
// A Zone owns a contiguous address range and manages it through one free
// list per order, where order k holds blocks of PageSize<<k bytes aligned to
// their own size. Allocation splits larger blocks top-down on a miss; freeing
// coalesces a block with its buddy (address XOR block size) recursively while
// the buddy is itself fully free.
//
// Free blocks are linked intrusively: the first two link words of a free
// block store the next and previous block addresses. Those bytes become
// caller payload the moment the block is allocated, so they are only ever
// touched through the memview accessors while the block sits on a free list.
//
//	zone, _ := buddy.NewZone(view, buddy.ZoneConfig{
//	    Name:     "normal",
//	    Type:     buddy.ZoneNormal,
//	    MinAddr:  0x1000,
//	    MaxAddr:  0x1000 + 64*buddy.DefaultPageSize,
//	    PageSize: buddy.DefaultPageSize,
//	    MaxOrder: 6,
//	    NumaNode: buddy.NoNumaNode,
//	})
//
//	addr, err := zone.Allocate(0, buddy.DefaultFlags())
//	// ...
//	err = zone.Free(addr, 0)
//
// An Allocator groups zones and routes requests between them according to
// AllocationFlags: NUMA-local placement with fallback, first-hit for
// speed-priority requests, or minimal-split placement for efficiency-priority
// requests.
//
// # Thread Safety
//
// All operations are safe for concurrent use. Each zone serializes free-list
// and frame-table mutation behind one short-duration mutex; no lock is held
// across anything but pointer and counter bookkeeping, and no operation
// blocks on I/O, sleeps, or retries. Every call either completes or returns
// a definite error.
//
// # Related Packages
//
//   - github.com/joshuapare/memkit/mm/slub: object caches built on zone pages
//   - github.com/joshuapare/memkit/pkg/mem: the generic allocation entry point
package buddy
