package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/joshuapare/memkit/mm/buddy"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newLadderCmd())
}

func newLadderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ladder [size...]",
		Short: "Show size-class routing for request sizes",
		Long: `The ladder command shows which size class (or buddy order) serves each
given request size at alignment 8. With no arguments it prints the standard
ladder.

Example:
  memctl ladder
  memctl ladder 1 40 100 5000 100000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLadder(args)
		},
	}
}

type ladderRow struct {
	Size  uint64 `json:"size"`
	Class string `json:"class"`
	Slot  uint64 `json:"slot_bytes"`
}

func runLadder(args []string) error {
	a, err := newAllocator()
	if err != nil {
		return err
	}
	defer a.Close()

	sizes := make([]uint64, 0, len(args))
	if len(args) == 0 {
		sizes = append(sizes, 1, 8, 9, 40, 64, 100, 500, 1024, 3000, 4096, 4097, 10*pageSize)
	}
	for _, arg := range args {
		var n uint64
		if _, err := fmt.Sscanf(arg, "%d", &n); err != nil || n == 0 {
			return fmt.Errorf("invalid size %q", arg)
		}
		sizes = append(sizes, n)
	}

	rows := make([]ladderRow, 0, len(sizes))
	for _, size := range sizes {
		rows = append(rows, classify(a.Registry().MaxObjectSize(), size))
	}

	if jsonOut {
		return printJSON(rows)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "REQUEST\tSERVED BY\tSLOT BYTES")
	for _, row := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%d\n", row.Size, row.Class, row.Slot)
	}
	return tw.Flush()
}

// classify names the tier an 8-aligned request of the given size lands in.
func classify(ladderMax, size uint64) ladderRow {
	if size <= ladderMax {
		slot := uint64(8)
		for slot < size {
			slot <<= 1
		}
		return ladderRow{Size: size, Class: fmt.Sprintf("alloc-%d", slot), Slot: slot}
	}
	order := buddy.OrderFor(size, pageSize)
	return ladderRow{Size: size, Class: fmt.Sprintf("buddy order %d", order), Slot: pageSize << order}
}
