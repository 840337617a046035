package slub

import (
	"fmt"
	"sort"
	"sync"

	"github.com/joshuapare/memkit/internal/memview"
	"github.com/joshuapare/memkit/mm/buddy"
)

// ladderSizes is the standard size-class ladder pre-registered in every
// registry, each class at its natural alignment.
var ladderSizes = []uint64{8, 16, 32, 64, 128, 256, 512, 1024, 2048, 4096}

// LadderMax is the largest object size served by the default ladder.
// Requests above it miss the registry and belong to the buddy tier.
const LadderMax = 4096

// Registry is the process-wide name->cache directory. One registry exists
// per allocator instance; the pkg/mem adapter constructs it exactly once.
type Registry struct {
	view *memview.View
	src  PageSource

	mu     sync.Mutex
	byName map[string]*Cache
	bySize []*Cache // ascending effective slot size, for best-fit routing
}

// NewRegistry builds a registry over src and pre-populates the standard
// size-class ladder.
func NewRegistry(view *memview.View, src PageSource) (*Registry, error) {
	r := &Registry{
		view:   view,
		src:    src,
		byName: make(map[string]*Cache),
	}
	for _, size := range ladderSizes {
		if size > src.PageSize() {
			break
		}
		name := fmt.Sprintf("alloc-%d", size)
		if _, err := r.CreateCache(name, size, size); err != nil {
			return nil, fmt.Errorf("registry: ladder class %d: %w", size, err)
		}
	}
	return r, nil
}

// CreateCache registers a new cache under a unique name. A name collision
// leaves the registry unchanged.
func (r *Registry) CreateCache(name string, size, align uint64, opts ...CacheOption) (*Cache, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty cache name", ErrInvalidParameters)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	c, err := NewCache(r.view, r.src, name, size, align, opts...)
	if err != nil {
		return nil, err
	}
	r.byName[name] = c
	r.bySize = append(r.bySize, c)
	sort.SliceStable(r.bySize, func(i, j int) bool {
		return r.bySize[i].objectSize < r.bySize[j].objectSize
	})
	return c, nil
}

// MaxObjectSize returns the largest object size any registered cache
// serves, the upper bound of the byte-size routing path.
func (r *Registry) MaxObjectSize() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.bySize) == 0 {
		return 0
	}
	return r.bySize[len(r.bySize)-1].objectSize
}

// Lookup returns the cache registered under name.
func (r *Registry) Lookup(name string) (*Cache, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCache, name)
	}
	return c, nil
}

// AllocateBySize routes a byte-size request to the cache with the smallest
// object size >= size among those with alignment >= align. A request no
// cache satisfies returns ErrNoFit; it is never promoted to a larger tier
// on this path.
func (r *Registry) AllocateBySize(size, align uint64, flags buddy.AllocationFlags) (buddy.PhysAddr, error) {
	if size == 0 {
		return buddy.NullAddr, fmt.Errorf("%w: zero-size request", ErrInvalidParameters)
	}
	if align == 0 {
		align = 1
	}

	r.mu.Lock()
	var target *Cache
	for _, c := range r.bySize {
		if c.objectSize >= size && c.alignment >= align {
			target = c
			break
		}
	}
	r.mu.Unlock()

	if target == nil {
		return buddy.NullAddr, fmt.Errorf("%w: size %d align %d", ErrNoFit, size, align)
	}
	return target.Allocate(flags)
}

// FreeByAddr dispatches a free to the first cache whose ownership predicate
// claims the address.
func (r *Registry) FreeByAddr(addr buddy.PhysAddr) error {
	for _, c := range r.snapshot() {
		if c.Owns(addr) {
			return c.Free(addr)
		}
	}
	return fmt.Errorf("%w: %#x claimed by no cache", ErrNotOwned, addr)
}

// Owns reports whether any registered cache claims addr.
func (r *Registry) Owns(addr buddy.PhysAddr) bool {
	for _, c := range r.snapshot() {
		if c.Owns(addr) {
			return true
		}
	}
	return false
}

// DestroyCache removes a cache and returns its pages to the buddy tier.
// The caller must guarantee no live objects remain; that is not verified.
func (r *Registry) DestroyCache(name string) error {
	r.mu.Lock()
	c, ok := r.byName[name]
	if ok {
		delete(r.byName, name)
		for i, rc := range r.bySize {
			if rc == c {
				r.bySize = append(r.bySize[:i], r.bySize[i+1:]...)
				break
			}
		}
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCache, name)
	}
	c.releaseAll()
	return nil
}

// ShrinkAll releases every fully free page in every cache back to the buddy
// tier, reporting freed-page counts per cache (zero-count caches omitted).
func (r *Registry) ShrinkAll() map[string]int {
	freed := make(map[string]int)
	for _, c := range r.snapshot() {
		n, err := c.Shrink()
		if n > 0 {
			freed[c.name] = n
		}
		if err != nil && logAlloc {
			debugLogf("shrink %q: %v", c.name, err)
		}
	}
	return freed
}

// Report enumerates every cache's usage row, smallest object size first.
func (r *Registry) Report() []CacheUsage {
	caches := r.snapshot()
	rows := make([]CacheUsage, 0, len(caches))
	for _, c := range caches {
		rows = append(rows, c.Usage())
	}
	return rows
}

// snapshot copies the routing order under the lock so walks run unlocked.
func (r *Registry) snapshot() []*Cache {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Cache, len(r.bySize))
	copy(out, r.bySize)
	return out
}
