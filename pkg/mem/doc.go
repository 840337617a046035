// Package mem is the single generic allocation entry point over the buddy
// and slub tiers: every subsystem that needs dynamic storage in the managed
// address space goes through Alloc and Free here.
//
// # Overview
//
// An Allocator owns the backing arena, the buddy zones built from a memory
// map, and the cache registry with its size-class ladder. Byte requests are
// routed by effective size max(size, align): ladder-sized requests go to the
// registry's best-fit cache, larger ones fall back to a direct buddy block.
//
//	err := mem.Init(mem.Config{Zones: zones})
//	addr, buf, err := mem.Alloc(40, 8) // served by the 64-byte class
//	// ...
//	err = mem.Free(addr, 40, 8)
//
// Init runs exactly once; later calls are no-ops. The process-wide default
// allocator is reachable through Default and the package-level functions,
// playing the role of the default dynamic-memory hook.
//
// # Failure policy
//
// Allocation failures are returned, never retried or fabricated. A free
// whose pointer no cache or zone can account for is a consistency error:
// with the memdebug build tag it panics immediately (double-free and
// corrupted-pointer bugs should crash in development), without it the free
// is logged and counted as a leak so production keeps running.
package mem
