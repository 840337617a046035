package mem

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/memkit/mm/buddy"
	"github.com/joshuapare/memkit/mm/slub"
)

// UsageReport is the operator-facing diagnostic snapshot: one row per cache
// plus the physical tier's stats and the purpose-tag counters.
type UsageReport struct {
	Caches      []slub.CacheUsage
	Buddy       buddy.AllocatorStats
	Tags        map[buddy.PurposeTag]uint64
	LeakedFrees uint64
}

// Report snapshots the allocator for diagnostics or log output.
func (a *Allocator) Report() UsageReport {
	return UsageReport{
		Caches:      a.reg.Report(),
		Buddy:       a.buddy.Stats(),
		Tags:        a.buddy.TagCounts(),
		LeakedFrees: a.leakedFrees.Load(),
	}
}

// Report snapshots the process-wide allocator.
func Report() (UsageReport, error) {
	if defaultAlloc == nil {
		return UsageReport{}, ErrNotInitialized
	}
	return defaultAlloc.Report(), nil
}

// String renders the report as an aligned table with grouped integers.
func (r UsageReport) String() string {
	p := message.NewPrinter(language.English)
	var sb strings.Builder

	tw := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CACHE\tOBJ SIZE\tALIGN\tALLOCATED\tTOTAL\tPAGES\tPARTIAL\tFULL\tFREE")
	for _, c := range r.Caches {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%d\t%d\t%d\t%d\n",
			c.Name,
			p.Sprintf("%d", c.ObjectSize),
			c.Alignment,
			p.Sprintf("%d", c.AllocatedObjects),
			p.Sprintf("%d", c.TotalObjects),
			c.Pages, c.PartialPages, c.FullPages, c.FreePages)
	}
	tw.Flush()

	p.Fprintf(&sb, "\npages: %d used / %d total, bytes: %d used / %d total, fragmentation: %d%%\n",
		r.Buddy.UsedPages, r.Buddy.TotalPages,
		r.Buddy.UsedBytes, r.Buddy.TotalBytes,
		r.Buddy.FragmentationPercent)

	if len(r.Tags) > 0 {
		tags := make([]buddy.PurposeTag, 0, len(r.Tags))
		for t := range r.Tags {
			tags = append(tags, t)
		}
		sort.Slice(tags, func(i, j int) bool { return tags[i].String() < tags[j].String() })
		sb.WriteString("tags:")
		for _, t := range tags {
			p.Fprintf(&sb, " %s=%d", t, r.Tags[t])
		}
		sb.WriteByte('\n')
	}
	if r.LeakedFrees > 0 {
		p.Fprintf(&sb, "leaked frees: %d\n", r.LeakedFrees)
	}
	return sb.String()
}
