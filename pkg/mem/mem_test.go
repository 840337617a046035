package mem

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/memkit/mm/buddy"
	"github.com/joshuapare/memkit/mm/slub"
)

const testPageSize = 4096

// newTestAllocator builds an allocator over one 64-page normal zone starting
// one page into the arena.
func newTestAllocator(t *testing.T) *Allocator {
	t.Helper()
	a, err := New(Config{
		Zones: []buddy.ZoneConfig{{
			Name:     "normal",
			Type:     buddy.ZoneNormal,
			MinAddr:  testPageSize,
			MaxAddr:  65 * testPageSize,
			PageSize: testPageSize,
			MaxOrder: 6,
			NumaNode: buddy.NoNumaNode,
		}},
	})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNewRejectsEmptyConfig(t *testing.T) {
	_, err := New(Config{})
	require.ErrorIs(t, err, buddy.ErrInvalidParameters)
}

func TestAllocRoutesSmallToCaches(t *testing.T) {
	a := newTestAllocator(t)

	addr, buf, err := a.Alloc(40, 8)
	require.NoError(t, err)
	require.NotEqual(t, buddy.NullAddr, addr)
	require.Len(t, buf, 40)

	// 40 bytes at alignment 8 belongs to the 64-byte ladder class.
	for _, row := range a.Report().Caches {
		want := 0
		if row.Name == "alloc-64" {
			want = 1
		}
		require.Equalf(t, want, row.AllocatedObjects, "cache %s", row.Name)
	}
	require.NoError(t, a.Free(addr, 40, 8))
}

func TestAllocAlignmentRaisesEffectiveSize(t *testing.T) {
	a := newTestAllocator(t)

	// 8 bytes at alignment 512: the request is served as if it were 512
	// bytes so the class's natural alignment covers it.
	addr, _, err := a.Alloc(8, 512)
	require.NoError(t, err)
	require.Zero(t, uint64(addr)%512, "returned address must honor the alignment")

	c := findCache(t, a, "alloc-512")
	require.Equal(t, 1, c.AllocatedObjects)
	require.NoError(t, a.Free(addr, 8, 512))
}

func TestAllocOversizeFallsBackToBuddy(t *testing.T) {
	a := newTestAllocator(t)

	const size = 3 * testPageSize
	addr, buf, err := a.Alloc(size, 8)
	require.NoError(t, err)
	require.Len(t, buf, size)

	// No cache row grew; the buddy tier carries the block (order 2, so 4
	// pages) plus nothing else.
	for _, row := range a.Report().Caches {
		require.Zerof(t, row.Pages, "cache %s", row.Name)
	}
	require.Equal(t, uint64(4), a.Stats().UsedPages)

	require.NoError(t, a.Free(addr, size, 8))
	require.Equal(t, uint64(0), a.Stats().UsedPages)
}

func TestAllocZeroSize(t *testing.T) {
	a := newTestAllocator(t)
	_, _, err := a.Alloc(0, 8)
	require.ErrorIs(t, err, slub.ErrInvalidParameters)
	require.ErrorIs(t, a.Free(0x1000, 0, 8), slub.ErrInvalidParameters)
}

func TestAllocZeroFlag(t *testing.T) {
	a := newTestAllocator(t)

	flags := buddy.DefaultFlags()
	flags.Zero = true
	_, buf, err := a.AllocWithFlags(2*testPageSize, 8, flags)
	require.NoError(t, err)
	for i, b := range buf {
		require.Zerof(t, b, "byte %d", i)
	}
}

func TestFreeUntraceableLeaksInRelease(t *testing.T) {
	a := newTestAllocator(t)

	// An address no tier handed out: absorbed as a leak, never a crash,
	// in the default build profile.
	err := a.Free(31*testPageSize+8, 16, 8)
	require.ErrorIs(t, err, ErrConsistency)
	require.Equal(t, uint64(1), a.LeakedFrees())

	err = a.Free(33*testPageSize, 16, 8)
	require.ErrorIs(t, err, ErrConsistency)
	require.Equal(t, uint64(2), a.LeakedFrees())
}

func TestShrinkAllReturnsCachePages(t *testing.T) {
	a := newTestAllocator(t)

	addr, _, err := a.Alloc(100, 8)
	require.NoError(t, err)
	require.NoError(t, a.Free(addr, 100, 8))
	require.Equal(t, uint64(1), a.Stats().UsedPages, "drained cache pages are retained")

	freed := a.ShrinkAll()
	require.Equal(t, map[string]int{"alloc-128": 1}, freed)
	require.Equal(t, uint64(0), a.Stats().UsedPages)
}

func TestDefaultAllocatorLifecycle(t *testing.T) {
	// Package-level entry points fail closed before Init.
	_, _, err := Alloc(16, 8)
	require.ErrorIs(t, err, ErrNotInitialized)
	require.ErrorIs(t, Free(0x1000, 16, 8), ErrNotInitialized)
	_, err = Stats()
	require.ErrorIs(t, err, ErrNotInitialized)
	_, err = Report()
	require.ErrorIs(t, err, ErrNotInitialized)

	cfg := Config{
		Zones: []buddy.ZoneConfig{{
			Name:     "boot",
			Type:     buddy.ZoneNormal,
			MinAddr:  testPageSize,
			MaxAddr:  33 * testPageSize,
			PageSize: testPageSize,
			MaxOrder: 5,
			NumaNode: buddy.NoNumaNode,
		}},
	}
	require.NoError(t, Init(cfg))
	require.NotNil(t, Default())

	// Init is first-call-wins; a second call must not rebuild.
	first := Default()
	require.NoError(t, Init(Config{}))
	require.Same(t, first, Default())

	addr, buf, err := Alloc(64, 8)
	require.NoError(t, err)
	require.Len(t, buf, 64)
	require.NoError(t, Free(addr, 64, 8))

	s, err := Stats()
	require.NoError(t, err)
	require.Equal(t, uint64(32), s.TotalPages)
}

func findCache(t *testing.T, a *Allocator, name string) slub.CacheUsage {
	t.Helper()
	for _, row := range a.Report().Caches {
		if row.Name == name {
			return row
		}
	}
	t.Fatalf("cache %q not in report", name)
	return slub.CacheUsage{}
}
