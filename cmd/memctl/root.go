package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joshuapare/memkit/mm/buddy"
	"github.com/joshuapare/memkit/pkg/mem"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
	jsonOut bool

	// Address-space shape shared by every command.
	zonePages uint64
	pageSize  uint64
)

var rootCmd = &cobra.Command{
	Use:   "memctl",
	Short: "Exercise and inspect the memkit allocation engine",
	Long: `memctl builds a standalone memkit allocator over a simulated physical
address space and runs workloads against it: allocation stress, size-class
routing inspection, and usage reporting. It is a development and debugging
tool; the engine itself is consumed as a library.`,
	Version: "0.1.0",
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().
		Uint64Var(&zonePages, "pages", 1024, "Pages per zone in the simulated address space")
	rootCmd.PersistentFlags().Uint64Var(&pageSize, "page-size", 4096, "Page frame size in bytes")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newAllocator builds the standard two-zone test topology: a small DMA zone
// followed by a normal zone, back to back, starting one page in so address
// 0 stays the null sentinel.
func newAllocator() (*mem.Allocator, error) {
	dmaPages := zonePages / 8
	if dmaPages == 0 {
		dmaPages = 1
	}
	dmaStart := buddy.PhysAddr(pageSize)
	dmaEnd := dmaStart + buddy.PhysAddr(dmaPages*pageSize)
	normalEnd := dmaEnd + buddy.PhysAddr(zonePages*pageSize)

	return mem.New(mem.Config{
		Zones: []buddy.ZoneConfig{
			{
				Name:     "dma",
				Type:     buddy.ZoneDma,
				MinAddr:  dmaStart,
				MaxAddr:  dmaEnd,
				PageSize: pageSize,
				MaxOrder: 5,
				NumaNode: 0,
			},
			{
				Name:     "normal",
				Type:     buddy.ZoneNormal,
				MinAddr:  dmaEnd,
				MaxAddr:  normalEnd,
				PageSize: pageSize,
				MaxOrder: 10,
				NumaNode: 0,
			},
		},
	})
}

// printVerbose prints a message only in verbose mode.
func printVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON.
func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
