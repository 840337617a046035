package main

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/joshuapare/memkit/mm/buddy"
	"github.com/spf13/cobra"
)

var (
	stressOps     int
	stressWorkers int
	stressSeed    int64
	stressMaxSize uint64
	stressShrink  bool
)

func init() {
	cmd := newStressCmd()
	cmd.Flags().IntVar(&stressOps, "ops", 100000, "Operations per worker")
	cmd.Flags().IntVar(&stressWorkers, "workers", 4, "Concurrent workers")
	cmd.Flags().Int64Var(&stressSeed, "seed", 0, "Random seed (0 = time-based)")
	cmd.Flags().Uint64Var(&stressMaxSize, "max-size", 8192, "Largest request size in bytes")
	cmd.Flags().BoolVar(&stressShrink, "shrink", true, "Shrink caches after the run")
	rootCmd.AddCommand(cmd)
}

func newStressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stress",
		Short: "Run a randomized allocation workload",
		Long: `The stress command runs concurrent workers that allocate and free
random sizes through the full engine: cache-routed small requests and direct
buddy blocks alike. At the end every surviving allocation is freed and the
engine must report zero used pages.

Example:
  memctl stress --workers 8 --ops 500000
  memctl stress --pages 4096 --max-size 65536 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStress()
		},
	}
}

type stressResult struct {
	Ops         int                  `json:"ops"`
	Workers     int                  `json:"workers"`
	Failures    uint64               `json:"alloc_failures"`
	Elapsed     string               `json:"elapsed"`
	OpsPerSec   float64              `json:"ops_per_sec"`
	Stats       buddy.AllocatorStats `json:"stats"`
	Shrunk      map[string]int       `json:"shrunk,omitempty"`
	LeakedFrees uint64               `json:"leaked_frees"`
}

func runStress() error {
	a, err := newAllocator()
	if err != nil {
		return err
	}
	defer a.Close()

	seed := stressSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	printVerbose("seed %d\n", seed)

	type held struct {
		addr  buddy.PhysAddr
		size  uint64
		align uint64
	}
	aligns := []uint64{1, 8, 16, 64, 256}

	var failures sync.Map
	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < stressWorkers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed + int64(id)))
			var fails uint64
			live := make([]held, 0, 128)
			for i := 0; i < stressOps; i++ {
				if len(live) > 0 && rng.Intn(2) == 0 {
					j := rng.Intn(len(live))
					h := live[j]
					if err := a.Free(h.addr, h.size, h.align); err != nil {
						fails++
					}
					live[j] = live[len(live)-1]
					live = live[:len(live)-1]
					continue
				}
				size := 1 + uint64(rng.Int63n(int64(stressMaxSize)))
				align := aligns[rng.Intn(len(aligns))]
				addr, _, err := a.Alloc(size, align)
				if err != nil {
					fails++
					continue
				}
				live = append(live, held{addr: addr, size: size, align: align})
			}
			for _, h := range live {
				if err := a.Free(h.addr, h.size, h.align); err != nil {
					fails++
				}
			}
			failures.Store(id, fails)
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	res := stressResult{
		Ops:         stressOps * stressWorkers,
		Workers:     stressWorkers,
		Elapsed:     elapsed.String(),
		OpsPerSec:   float64(stressOps*stressWorkers) / elapsed.Seconds(),
		LeakedFrees: a.LeakedFrees(),
	}
	failures.Range(func(_, v interface{}) bool {
		res.Failures += v.(uint64)
		return true
	})
	if stressShrink {
		res.Shrunk = a.ShrinkAll()
	}
	res.Stats = a.Stats()

	if jsonOut {
		return printJSON(res)
	}
	fmt.Printf("%d ops across %d workers in %s (%.0f ops/s)\n",
		res.Ops, res.Workers, res.Elapsed, res.OpsPerSec)
	fmt.Printf("alloc failures: %d, leaked frees: %d\n", res.Failures, res.LeakedFrees)
	fmt.Printf("pages used after drain: %d / %d\n", res.Stats.UsedPages, res.Stats.TotalPages)
	if len(res.Shrunk) > 0 {
		fmt.Printf("shrunk: %v\n", res.Shrunk)
	}
	return nil
}
