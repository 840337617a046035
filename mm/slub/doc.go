// Package slub implements fixed-size object caches carved out of buddy
// pages, in the slub style: per-page embedded free lists and minimal
// per-object metadata.
//
// # Overview
//
// A Cache owns whole pages obtained from a PageSource (normally the buddy
// allocator) and subdivides each into equal slots. The first link word of
// every free slot stores the address of the next free slot; once a slot is
// allocated those same bytes become caller payload. Pages are partitioned by
// fill state (Free, Partial, Full), allocation prefers Partial pages, and
// fully drained pages are retained until an explicit Shrink releases them
// back to the buddy tier.
//
// The Registry is the process-wide name->cache directory. It is pre-populated
// with a power-of-two size-class ladder (8 bytes through one page) and routes
// byte-size requests to the smallest cache that satisfies both size and
// alignment.
//
//	reg, _ := slub.NewRegistry(view, alloc)
//	addr, _ := reg.AllocateBySize(40, 8, buddy.DefaultFlags()) // 64-byte class
//	_ = reg.FreeByAddr(addr)
//
// Typed caches wrap a Cache for one record type; see ObjectCache.
//
// # Thread Safety
//
// All operations are safe for concurrent use and none of them blocks: each
// cache serializes page-set management behind one mutex, the registry guards
// the name map with another, and per-page free-list heads are updated with
// compare-and-swap retry loops so a lock-free Free can run against the
// serialized allocation path on the same page.
package slub
