package buddy

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/memkit/internal/memview"
)

const testPageSize = 4096

// newTestZone builds a zone of 2^maxOrder pages starting one page into the
// backing space, so address 0 stays the null sentinel.
func newTestZone(t testing.TB, maxOrder int) *Zone {
	t.Helper()
	pages := uint64(1) << maxOrder
	data := make([]byte, testPageSize*(pages+1))
	z, err := NewZone(memview.New(data), ZoneConfig{
		Name:     "test",
		Type:     ZoneNormal,
		MinAddr:  testPageSize,
		MaxAddr:  PhysAddr(testPageSize * (pages + 1)),
		PageSize: testPageSize,
		MaxOrder: maxOrder,
		NumaNode: NoNumaNode,
	})
	require.NoError(t, err)
	return z
}

func TestZoneConfigValidation(t *testing.T) {
	data := make([]byte, testPageSize*8)
	view := memview.New(data)

	tests := []struct {
		name string
		cfg  ZoneConfig
	}{
		{
			name: "starts at null address",
			cfg:  ZoneConfig{Name: "z", MinAddr: 0, MaxAddr: testPageSize * 4, PageSize: testPageSize, MaxOrder: 2},
		},
		{
			name: "page size not a power of two",
			cfg:  ZoneConfig{Name: "z", MinAddr: testPageSize, MaxAddr: testPageSize * 4, PageSize: 3000, MaxOrder: 2},
		},
		{
			name: "page size below minimum",
			cfg:  ZoneConfig{Name: "z", MinAddr: testPageSize, MaxAddr: testPageSize * 4, PageSize: 32, MaxOrder: 2},
		},
		{
			name: "bounds not page aligned",
			cfg:  ZoneConfig{Name: "z", MinAddr: testPageSize + 8, MaxAddr: testPageSize * 4, PageSize: testPageSize, MaxOrder: 2},
		},
		{
			name: "negative max order",
			cfg:  ZoneConfig{Name: "z", MinAddr: testPageSize, MaxAddr: testPageSize * 4, PageSize: testPageSize, MaxOrder: -1},
		},
		{
			name: "smaller than one page",
			cfg:  ZoneConfig{Name: "z", MinAddr: testPageSize, MaxAddr: testPageSize, PageSize: testPageSize, MaxOrder: 2},
		},
		{
			name: "outside backing space",
			cfg:  ZoneConfig{Name: "z", MinAddr: testPageSize, MaxAddr: testPageSize * 64, PageSize: testPageSize, MaxOrder: 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewZone(view, tt.cfg)
			require.ErrorIs(t, err, ErrInvalidParameters)
		})
	}
}

func TestZoneSeedsSingleTopBlock(t *testing.T) {
	z := newTestZone(t, 4)
	for k := 0; k < 4; k++ {
		require.Equal(t, 0, z.FreeBlocks(k), "order %d", k)
	}
	require.Equal(t, 1, z.FreeBlocks(4))

	s := z.Stats()
	require.Equal(t, uint64(16), s.TotalPages)
	require.Equal(t, uint64(0), s.UsedPages)
	require.Equal(t, 0, s.FragmentationPercent)
}

func TestZoneSplitsTopDown(t *testing.T) {
	z := newTestZone(t, 4)

	addr, err := z.Allocate(0, DefaultFlags())
	require.NoError(t, err)
	require.Equal(t, PhysAddr(testPageSize), addr)

	// One split per level: each order below the top holds exactly one half.
	for k := 0; k < 4; k++ {
		require.Equal(t, 1, z.FreeBlocks(k), "order %d", k)
	}
	require.Equal(t, 0, z.FreeBlocks(4))
	require.Equal(t, uint64(1), z.Stats().UsedPages)
}

func TestZoneAllocFreeRoundTrip(t *testing.T) {
	z := newTestZone(t, 5)
	before := z.freeSnapshot()

	for order := 0; order <= 5; order++ {
		addr, err := z.Allocate(order, DefaultFlags())
		require.NoError(t, err, "order %d", order)
		require.NoError(t, z.Free(addr, order), "order %d", order)
		require.Equal(t, before, z.freeSnapshot(), "free lists changed after order-%d round trip", order)
	}
}

func TestZoneCoalesceAnyFreeOrder(t *testing.T) {
	const maxOrder = 4
	for _, seed := range []int64{1, 7, 42, 1729} {
		z := newTestZone(t, maxOrder)

		addrs := make([]PhysAddr, 0, 16)
		for i := 0; i < 16; i++ {
			addr, err := z.Allocate(0, DefaultFlags())
			require.NoError(t, err)
			addrs = append(addrs, addr)
		}
		_, err := z.Allocate(0, DefaultFlags())
		require.ErrorIs(t, err, ErrOutOfMemory)

		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(len(addrs), func(i, j int) { addrs[i], addrs[j] = addrs[j], addrs[i] })
		for _, addr := range addrs {
			require.NoError(t, z.Free(addr, 0))
		}

		// Every permutation must collapse back to the single top block.
		require.Equal(t, 1, z.FreeBlocks(maxOrder), "seed %d", seed)
		for k := 0; k < maxOrder; k++ {
			require.Equal(t, 0, z.FreeBlocks(k), "seed %d order %d", seed, k)
		}
		require.Equal(t, uint64(0), z.Stats().UsedPages, "seed %d", seed)
	}
}

func TestZoneOutOfMemory(t *testing.T) {
	z := newTestZone(t, 3)

	addr, err := z.Allocate(3, DefaultFlags())
	require.NoError(t, err)

	_, err = z.Allocate(0, DefaultFlags())
	require.ErrorIs(t, err, ErrOutOfMemory)

	require.NoError(t, z.Free(addr, 3))
	_, err = z.Allocate(0, DefaultFlags())
	require.NoError(t, err)
}

func TestZoneAllocateRejectsBadOrder(t *testing.T) {
	z := newTestZone(t, 3)
	_, err := z.Allocate(4, DefaultFlags())
	require.ErrorIs(t, err, ErrInvalidParameters)
	_, err = z.Allocate(-1, DefaultFlags())
	require.ErrorIs(t, err, ErrInvalidParameters)
}

func TestZoneFreeValidation(t *testing.T) {
	z := newTestZone(t, 4)
	addr, err := z.Allocate(1, DefaultFlags())
	require.NoError(t, err)

	t.Run("misaligned address", func(t *testing.T) {
		require.ErrorIs(t, z.Free(addr+8, 1), ErrInvalidParameters)
	})
	t.Run("wrong order", func(t *testing.T) {
		require.ErrorIs(t, z.Free(addr, 2), ErrInvalidParameters)
	})
	t.Run("outside zone", func(t *testing.T) {
		require.ErrorIs(t, z.Free(z.cfg.MaxAddr+testPageSize, 0), ErrInvalidParameters)
	})
	t.Run("double free", func(t *testing.T) {
		require.NoError(t, z.Free(addr, 1))
		require.ErrorIs(t, z.Free(addr, 1), ErrInvalidParameters)
	})
	t.Run("free of never-allocated block", func(t *testing.T) {
		require.ErrorIs(t, z.Free(testPageSize, 0), ErrInvalidParameters)
	})
}

func TestZoneZeroFill(t *testing.T) {
	z := newTestZone(t, 2)

	addr, err := z.Allocate(1, DefaultFlags())
	require.NoError(t, err)
	blk := z.view.Slice(uint64(addr), z.blockBytes(1))
	for i := range blk {
		blk[i] = 0xAB
	}
	require.NoError(t, z.Free(addr, 1))

	flags := DefaultFlags()
	flags.Zero = true
	addr, err = z.Allocate(1, flags)
	require.NoError(t, err)
	blk = z.view.Slice(uint64(addr), z.blockBytes(1))
	for i, b := range blk {
		require.Zerof(t, b, "byte %d not zeroed", i)
	}
}

func TestZoneStatsFragmentation(t *testing.T) {
	z := newTestZone(t, 4)

	// Pin one page out of every order-1 pair: nothing can coalesce beyond
	// order 0, so all remaining free space is single pages.
	held := make([]PhysAddr, 0, 8)
	var scratch []PhysAddr
	for i := 0; i < 16; i++ {
		addr, err := z.Allocate(0, DefaultFlags())
		require.NoError(t, err)
		if i%2 == 0 {
			held = append(held, addr)
		} else {
			scratch = append(scratch, addr)
		}
	}
	for _, addr := range scratch {
		require.NoError(t, z.Free(addr, 0))
	}

	s := z.Stats()
	require.Equal(t, uint64(8), s.UsedPages)
	require.Equal(t, 8, z.FreeBlocks(0))
	// 8 free pages, largest block 1 page: (8-1)/8 of free space is stranded.
	require.Equal(t, 87, s.FragmentationPercent)

	for _, addr := range held {
		require.NoError(t, z.Free(addr, 0))
	}
	require.Equal(t, 0, z.Stats().FragmentationPercent)
}

func TestZoneCarvesUnevenSpan(t *testing.T) {
	// 11 pages cannot form one block: expect 8 + 2 + 1 carved in order.
	data := make([]byte, testPageSize*12)
	z, err := NewZone(memview.New(data), ZoneConfig{
		Name:     "uneven",
		Type:     ZoneNormal,
		MinAddr:  testPageSize,
		MaxAddr:  testPageSize * 12,
		PageSize: testPageSize,
		MaxOrder: 4,
		NumaNode: NoNumaNode,
	})
	require.NoError(t, err)

	require.Equal(t, 1, z.FreeBlocks(3))
	require.Equal(t, 1, z.FreeBlocks(1))
	require.Equal(t, 1, z.FreeBlocks(0))
	require.Equal(t, 0, z.FreeBlocks(2))
	require.Equal(t, 0, z.FreeBlocks(4))
	require.Equal(t, uint64(11), z.Stats().TotalPages)
}

func TestZoneConcurrentChurn(t *testing.T) {
	if testing.Short() {
		t.Skip("churn test")
	}
	z := newTestZone(t, 6)

	const workers = 8
	done := make(chan struct{})
	for w := 0; w < workers; w++ {
		go func(seed int64) {
			defer func() { done <- struct{}{} }()
			rng := rand.New(rand.NewSource(seed))
			held := make(map[PhysAddr]int)
			for i := 0; i < 2000; i++ {
				if len(held) > 0 && rng.Intn(2) == 0 {
					for addr, order := range held {
						if err := z.Free(addr, order); err != nil {
							t.Error(err)
							return
						}
						delete(held, addr)
						break
					}
					continue
				}
				order := rng.Intn(3)
				addr, err := z.Allocate(order, DefaultFlags())
				if err != nil {
					continue // other workers hold the space
				}
				held[addr] = order
			}
			for addr, order := range held {
				if err := z.Free(addr, order); err != nil {
					t.Error(err)
				}
			}
		}(int64(w + 1))
	}
	for w := 0; w < workers; w++ {
		<-done
	}

	// All workers drained: the zone must be fully coalesced again.
	require.Equal(t, uint64(0), z.Stats().UsedPages)
	require.Equal(t, 1, z.FreeBlocks(6))
}

func TestOrderFor(t *testing.T) {
	tests := []struct {
		size uint64
		want int
	}{
		{1, 0},
		{testPageSize, 0},
		{testPageSize + 1, 1},
		{2 * testPageSize, 1},
		{3 * testPageSize, 2},
		{4 * testPageSize, 2},
		{16 * testPageSize, 4},
		{17 * testPageSize, 5},
	}
	for _, tt := range tests {
		require.Equalf(t, tt.want, OrderFor(tt.size, testPageSize), "size %d", tt.size)
	}
}

func BenchmarkZoneAllocFreeOrder0(b *testing.B) {
	z := newTestZone(b, 10)
	flags := DefaultFlags()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		addr, err := z.Allocate(0, flags)
		if err != nil {
			b.Fatal(err)
		}
		if err := z.Free(addr, 0); err != nil {
			b.Fatal(err)
		}
	}
}
