package mem

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/joshuapare/memkit/internal/arena"
	"github.com/joshuapare/memkit/internal/memview"
	"github.com/joshuapare/memkit/mm/buddy"
	"github.com/joshuapare/memkit/mm/slub"
)

// Config describes the managed address space, normally translated from the
// boot memory map by the virtual-memory layer.
type Config struct {
	// Zones are the buddy zones to build, in search order.
	Zones []buddy.ZoneConfig

	// ArenaSize overrides the backing arena size. Zero means "end of the
	// highest zone".
	ArenaSize uint64
}

// Allocator bundles one arena, its buddy zones, and the cache registry into
// the general-purpose allocation engine.
type Allocator struct {
	arena *arena.Arena
	view  *memview.View
	buddy *buddy.Allocator
	reg   *slub.Registry

	// ladderMax is the largest request the cache tier serves. Anything
	// bigger goes straight to the buddy tier.
	ladderMax uint64

	leakedFrees atomic.Uint64
}

// New builds a standalone allocator. Most callers want Init instead; New
// exists for tests and for embedding several independent address spaces in
// one process.
func New(cfg Config) (*Allocator, error) {
	if len(cfg.Zones) == 0 {
		return nil, fmt.Errorf("%w: no zones configured", buddy.ErrInvalidParameters)
	}

	size := cfg.ArenaSize
	for _, z := range cfg.Zones {
		if uint64(z.MaxAddr) > size {
			size = uint64(z.MaxAddr)
		}
	}
	ar, err := arena.New(int(size))
	if err != nil {
		return nil, err
	}
	view := memview.New(ar.Bytes())

	bd, err := buddy.NewAllocator(view, cfg.Zones)
	if err != nil {
		ar.Close()
		return nil, err
	}
	reg, err := slub.NewRegistry(view, bd)
	if err != nil {
		ar.Close()
		return nil, err
	}
	return &Allocator{arena: ar, view: view, buddy: bd, reg: reg, ladderMax: reg.MaxObjectSize()}, nil
}

// Close releases the backing arena. The allocator must not be used after.
func (a *Allocator) Close() error { return a.arena.Close() }

// Buddy exposes the physical tier, used by the virtual-memory layer for
// raw frame acquisition and release.
func (a *Allocator) Buddy() *buddy.Allocator { return a.buddy }

// Registry exposes the cache directory, used to register purpose-built
// object caches.
func (a *Allocator) Registry() *slub.Registry { return a.reg }

// effectiveSize folds alignment into the class choice: serving the request
// from a class of at least align bytes makes its natural alignment hold.
func effectiveSize(size, align uint64) uint64 {
	if align > size {
		return align
	}
	return size
}

// Alloc obtains size bytes at the given alignment with default flags.
func (a *Allocator) Alloc(size, align uint64) (buddy.PhysAddr, []byte, error) {
	return a.AllocWithFlags(size, align, buddy.DefaultFlags())
}

// AllocWithFlags obtains size bytes at the given alignment. Requests within
// the size-class ladder come from the best-fit cache; anything larger falls
// back to a direct buddy block. Failures are returned, never fatal.
func (a *Allocator) AllocWithFlags(size, align uint64, flags buddy.AllocationFlags) (buddy.PhysAddr, []byte, error) {
	if size == 0 {
		return buddy.NullAddr, nil, fmt.Errorf("%w: zero-size request", slub.ErrInvalidParameters)
	}
	eff := effectiveSize(size, align)

	var (
		addr buddy.PhysAddr
		err  error
	)
	if eff <= a.ladderMax {
		addr, err = a.reg.AllocateBySize(eff, align, flags)
	} else {
		order := buddy.OrderFor(eff, a.buddy.PageSize())
		addr, err = a.buddy.Allocate(order, flags)
	}
	if err != nil {
		return buddy.NullAddr, nil, err
	}
	return addr, a.view.Slice(uint64(addr), size), nil
}

// Free returns an allocation obtained with the same size and align. The
// effective size decides the owning tier exactly as in Alloc. A pointer
// neither tier can account for is handled per the build profile: panic
// under memdebug, logged leak otherwise.
func (a *Allocator) Free(addr buddy.PhysAddr, size, align uint64) error {
	if size == 0 {
		return fmt.Errorf("%w: zero-size free", slub.ErrInvalidParameters)
	}
	eff := effectiveSize(size, align)

	var err error
	if eff <= a.ladderMax {
		err = a.reg.FreeByAddr(addr)
	} else {
		err = a.buddy.Free(addr, buddy.OrderFor(eff, a.buddy.PageSize()))
	}
	if err != nil {
		return a.consistencyError(addr, size, align, err)
	}
	return nil
}

// LeakedFrees returns how many untraceable frees were absorbed since start.
// Always zero under the memdebug build profile.
func (a *Allocator) LeakedFrees() uint64 { return a.leakedFrees.Load() }

// Stats snapshots the physical tier.
func (a *Allocator) Stats() buddy.AllocatorStats { return a.buddy.Stats() }

// ShrinkAll releases retained fully-free cache pages back to the buddy tier.
func (a *Allocator) ShrinkAll() map[string]int { return a.reg.ShrinkAll() }

// Process-wide default allocator. Constructed exactly once by Init, then
// reached through Default or the package-level helpers.
var (
	defaultOnce  sync.Once
	defaultAlloc *Allocator
	defaultErr   error
)

// Init builds the process-wide allocator. The first call wins; subsequent
// calls are no-ops regardless of their config.
func Init(cfg Config) error {
	defaultOnce.Do(func() {
		defaultAlloc, defaultErr = New(cfg)
	})
	return defaultErr
}

// Default returns the process-wide allocator, or nil before Init.
func Default() *Allocator { return defaultAlloc }

// Alloc allocates from the process-wide allocator.
func Alloc(size, align uint64) (buddy.PhysAddr, []byte, error) {
	if defaultAlloc == nil {
		return buddy.NullAddr, nil, ErrNotInitialized
	}
	return defaultAlloc.Alloc(size, align)
}

// Free releases through the process-wide allocator.
func Free(addr buddy.PhysAddr, size, align uint64) error {
	if defaultAlloc == nil {
		return ErrNotInitialized
	}
	return defaultAlloc.Free(addr, size, align)
}

// Stats snapshots the process-wide allocator's physical tier.
func Stats() (buddy.AllocatorStats, error) {
	if defaultAlloc == nil {
		return buddy.AllocatorStats{}, ErrNotInitialized
	}
	return defaultAlloc.Stats(), nil
}
