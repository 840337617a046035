package slub

import (
	"fmt"
	"sync/atomic"

	"github.com/joshuapare/memkit/internal/memview"
	"github.com/joshuapare/memkit/mm/buddy"
)

// PageState is the fill state of one slub page.
type PageState uint8

const (
	// PageFreeState means no object on the page is allocated.
	PageFreeState PageState = iota
	// PagePartial means at least one object is allocated and capacity remains.
	PagePartial
	// PageFull means every slot is allocated.
	PageFull
)

func (s PageState) String() string {
	switch s {
	case PageFreeState:
		return "free"
	case PagePartial:
		return "partial"
	case PageFull:
		return "full"
	default:
		return "unknown"
	}
}

// Page is one buddy-allocated page subdivided into fixed-size slots.
//
// The free list is embedded: the first link word of each free slot holds the
// next free slot's address, 0 terminates the chain. The Go-side head is an
// atomic updated with compare-and-swap retry loops. The owning cache
// serializes allocations (single popper), while frees may push lock-free
// from any goroutine; under that discipline the CAS head is race-free.
type Page struct {
	cacheID     uint64
	base        buddy.PhysAddr
	pageSize    uint64
	objectSize  uint64 // slot stride, link word included in the overlap sense
	objectsPer  int
	colorOffset uint64

	view     *memview.View
	freeHead atomic.Uint64
	used     atomic.Int64
}

// newPage carves a fresh buddy page into slots and threads the free list.
// Every slot's link word is pointed at the next slot, the last at 0.
func newPage(view *memview.View, base buddy.PhysAddr, pageSize, objectSize uint64,
	objectsPer int, colorOffset uint64, cacheID uint64, zero bool) *Page {
	p := &Page{
		cacheID:     cacheID,
		base:        base,
		pageSize:    pageSize,
		objectSize:  objectSize,
		objectsPer:  objectsPer,
		colorOffset: colorOffset,
		view:        view,
	}

	if zero {
		view.Zero(uint64(base), pageSize)
	}

	first := uint64(base) + colorOffset
	for i := 0; i < objectsPer-1; i++ {
		slot := first + uint64(i)*objectSize
		view.SetWord(slot, slot+objectSize)
	}
	view.SetWord(first+uint64(objectsPer-1)*objectSize, 0)
	p.freeHead.Store(first)
	return p
}

// Base returns the page's base address.
func (p *Page) Base() buddy.PhysAddr { return p.base }

// CacheID returns the owning cache's id.
func (p *Page) CacheID() uint64 { return p.cacheID }

// ColorOffset returns the page's first-slot stagger.
func (p *Page) ColorOffset() uint64 { return p.colorOffset }

// ObjectsPerSlab returns the page's slot capacity.
func (p *Page) ObjectsPerSlab() int { return p.objectsPer }

// UsedObjects returns the number of currently allocated slots.
func (p *Page) UsedObjects() int { return int(p.used.Load()) }

// State classifies the page by its used count.
func (p *Page) State() PageState {
	switch used := p.used.Load(); {
	case used == 0:
		return PageFreeState
	case used >= int64(p.objectsPer):
		return PageFull
	default:
		return PagePartial
	}
}

// Owns reports whether addr is a slot address on this page.
func (p *Page) Owns(addr buddy.PhysAddr) bool {
	first := uint64(p.base) + p.colorOffset
	a := uint64(addr)
	if a < first || a >= uint64(p.base)+p.pageSize {
		return false
	}
	idx := (a - first) / p.objectSize
	return (a-first)%p.objectSize == 0 && idx < uint64(p.objectsPer)
}

// allocObject detaches the free-list head. Returns false when the page has
// no capacity left; the caller must pick another page.
func (p *Page) allocObject() (buddy.PhysAddr, bool) {
	for {
		head := p.freeHead.Load()
		if head == 0 {
			return buddy.NullAddr, false
		}
		next := p.view.Word(head)
		if p.freeHead.CompareAndSwap(head, next) {
			p.used.Add(1)
			return buddy.PhysAddr(head), true
		}
	}
}

// freeObject pushes a slot back onto the free list. The slot's link word is
// rewritten over what was, until this call, live payload.
func (p *Page) freeObject(addr buddy.PhysAddr) error {
	if !p.Owns(addr) {
		return fmt.Errorf("%w: %#x not a slot of page %#x", ErrNotOwned, addr, p.base)
	}
	for {
		head := p.freeHead.Load()
		p.view.SetWord(uint64(addr), head)
		if p.freeHead.CompareAndSwap(head, uint64(addr)) {
			p.used.Add(-1)
			return nil
		}
	}
}
