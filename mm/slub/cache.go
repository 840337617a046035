package slub

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/joshuapare/memkit/internal/memview"
	"github.com/joshuapare/memkit/mm/buddy"
)

// maxColors caps the color rotation so staggering stays bounded even on
// pages with a lot of leftover space.
const maxColors = 16

// PageSource provides whole pages to a cache and takes them back. The buddy
// tier satisfies this interface.
type PageSource interface {
	// Allocate hands out one order-k block.
	Allocate(order int, flags buddy.AllocationFlags) (buddy.PhysAddr, error)
	// Free returns an order-k block.
	Free(addr buddy.PhysAddr, order int) error
	// PageSize returns the page-frame size in bytes.
	PageSize() uint64
}

// cacheIDs hands out process-unique cache ids.
var cacheIDs atomic.Uint64

// CacheUsage is one row of a usage report.
type CacheUsage struct {
	Name             string
	ObjectSize       uint64
	Alignment        uint64
	AllocatedObjects int
	TotalObjects     int
	Pages            int
	PartialPages     int
	FullPages        int
	FreePages        int
	Grows            int
	Shrinks          int
}

// Cache is a fixed-size object allocator over pages from a PageSource.
type Cache struct {
	id         uint64
	name       string
	objectSize uint64 // requested object size
	alignment  uint64
	stride     uint64 // slot size: objectSize raised to link and alignment
	objectsPer int
	colorSpace uint64 // page bytes left over after objectsPer slots
	zeroFill   bool

	src  PageSource
	view *memview.View

	mu       sync.Mutex
	pages    map[buddy.PhysAddr]*Page // every owned page, by base address
	partial  []*Page
	full     []*Page
	idle     []*Page // fully free, retained until Shrink
	colorSeq uint64

	grows   int
	shrinks int
}

// CacheOption tweaks cache construction.
type CacheOption func(*Cache)

// WithZeroFill makes the cache zero every freshly carved page.
func WithZeroFill() CacheOption {
	return func(c *Cache) { c.zeroFill = true }
}

// NewCache builds a cache for objects of size bytes at the given alignment.
// Alignment must be a power of two dividing the page size; the effective
// slot size is raised to hold at least one link word.
func NewCache(view *memview.View, src PageSource, name string, size, align uint64, opts ...CacheOption) (*Cache, error) {
	pageSize := src.PageSize()
	if size == 0 {
		return nil, fmt.Errorf("%w: zero object size", ErrInvalidParameters)
	}
	if align == 0 || !memview.IsPowerOfTwo(align) || !memview.IsAligned(pageSize, align) {
		return nil, fmt.Errorf("%w: alignment %d must be a power of two dividing the page size",
			ErrInvalidParameters, align)
	}

	stride := size
	if stride < memview.LinkSize {
		stride = memview.LinkSize
	}
	stride = memview.AlignUp(stride, align)
	objectsPer := int(pageSize / stride)
	if objectsPer == 0 {
		return nil, fmt.Errorf("%w: object size %d exceeds page size %d",
			ErrInvalidParameters, size, pageSize)
	}

	c := &Cache{
		id:         cacheIDs.Add(1),
		name:       name,
		objectSize: size,
		alignment:  align,
		stride:     stride,
		objectsPer: objectsPer,
		colorSpace: pageSize - uint64(objectsPer)*stride,
		src:        src,
		view:       view,
		pages:      make(map[buddy.PhysAddr]*Page),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name returns the cache's unique name.
func (c *Cache) Name() string { return c.name }

// ObjectSize returns the requested object size in bytes.
func (c *Cache) ObjectSize() uint64 { return c.objectSize }

// Alignment returns the cache's object alignment.
func (c *Cache) Alignment() uint64 { return c.alignment }

// Stride returns the effective slot size.
func (c *Cache) Stride() uint64 { return c.stride }

// nextColor picks the stagger for a fresh page. Colors advance through the
// leftover space in alignment steps so consecutive pages of the same cache
// start their slots on different cache lines.
func (c *Cache) nextColor() uint64 {
	colors := c.colorSpace/c.alignment + 1
	if colors > maxColors {
		colors = maxColors
	}
	color := (c.colorSeq % colors) * c.alignment
	c.colorSeq++
	return color
}

// Allocate hands out one object slot. It prefers a Partial page, falls back
// to a retained idle page, and finally grows by one buddy page.
func (c *Cache) Allocate(flags buddy.AllocationFlags) (buddy.PhysAddr, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		var pg *Page
		switch {
		case len(c.partial) > 0:
			pg = c.partial[len(c.partial)-1]
		case len(c.idle) > 0:
			pg = c.idle[len(c.idle)-1]
			c.idle = c.idle[:len(c.idle)-1]
			c.partial = append(c.partial, pg)
		default:
			grown, err := c.grow(flags)
			if err != nil {
				return buddy.NullAddr, err
			}
			pg = grown
		}

		addr, ok := pg.allocObject()
		if !ok {
			// Saturated out from under its classification; reclassify
			// and pick another page.
			c.partial = removePage(c.partial, pg)
			c.full = append(c.full, pg)
			continue
		}
		if pg.State() == PageFull {
			c.partial = removePage(c.partial, pg)
			c.full = append(c.full, pg)
		}
		return addr, nil
	}
}

// grow requests one page from the source and threads its free list.
// Caller holds c.mu.
func (c *Cache) grow(flags buddy.AllocationFlags) (*Page, error) {
	base, err := c.src.Allocate(0, flags)
	if err != nil {
		return nil, fmt.Errorf("cache %q: grow: %w", c.name, err)
	}
	pg := newPage(c.view, base, c.src.PageSize(), c.stride, c.objectsPer,
		c.nextColor(), c.id, flags.Zero || c.zeroFill)
	c.pages[base] = pg
	c.partial = append(c.partial, pg)
	c.grows++
	return pg, nil
}

// Free returns one object slot to its page. Draining a page to zero used
// objects marks it idle but does not return it to the buddy tier; that is
// deferred to Shrink.
func (c *Cache) Free(addr buddy.PhysAddr) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pg := c.pageOf(addr)
	if pg == nil {
		return fmt.Errorf("%w: %#x in cache %q", ErrNotOwned, addr, c.name)
	}
	wasFull := pg.State() == PageFull
	if err := pg.freeObject(addr); err != nil {
		return err
	}
	switch {
	case pg.State() == PageFreeState:
		c.partial = removePage(c.partial, pg)
		c.full = removePage(c.full, pg)
		c.idle = append(c.idle, pg)
	case wasFull:
		c.full = removePage(c.full, pg)
		c.partial = append(c.partial, pg)
	}
	return nil
}

// pageOf resolves the owning page by masking addr down to its page base.
// Caller holds c.mu.
func (c *Cache) pageOf(addr buddy.PhysAddr) *Page {
	base := buddy.PhysAddr(memview.AlignDown(uint64(addr), c.src.PageSize()))
	pg, ok := c.pages[base]
	if !ok || !pg.Owns(addr) {
		return nil
	}
	return pg
}

// Owns reports whether addr is an object slot of this cache.
func (c *Cache) Owns(addr buddy.PhysAddr) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pageOf(addr) != nil
}

// Shrink releases every fully free page back to the page source and reports
// how many were returned.
func (c *Cache) Shrink() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	released := 0
	for _, pg := range c.idle {
		if err := c.src.Free(pg.base, 0); err != nil {
			c.idle = c.idle[:copy(c.idle, c.idle[released:])]
			return released, fmt.Errorf("cache %q: shrink: %w", c.name, err)
		}
		delete(c.pages, pg.base)
		released++
		c.shrinks++
	}
	c.idle = c.idle[:0]
	return released, nil
}

// releaseAll returns every owned page to the source, live objects included.
// Only the registry calls this, on destroy, after the caller has guaranteed
// no objects remain in use.
func (c *Cache) releaseAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	released := 0
	for base := range c.pages {
		if err := c.src.Free(base, 0); err == nil {
			released++
		}
		delete(c.pages, base)
	}
	c.partial = c.partial[:0]
	c.full = c.full[:0]
	c.idle = c.idle[:0]
	return released
}

// Usage returns the cache's report row.
func (c *Cache) Usage() CacheUsage {
	c.mu.Lock()
	defer c.mu.Unlock()

	u := CacheUsage{
		Name:         c.name,
		ObjectSize:   c.objectSize,
		Alignment:    c.alignment,
		Pages:        len(c.pages),
		PartialPages: len(c.partial),
		FullPages:    len(c.full),
		FreePages:    len(c.idle),
		Grows:        c.grows,
		Shrinks:      c.shrinks,
	}
	for _, pg := range c.pages {
		u.AllocatedObjects += pg.UsedObjects()
		u.TotalObjects += pg.ObjectsPerSlab()
	}
	return u
}

func removePage(pages []*Page, pg *Page) []*Page {
	for i, p := range pages {
		if p == pg {
			pages[i] = pages[len(pages)-1]
			return pages[:len(pages)-1]
		}
	}
	return pages
}
