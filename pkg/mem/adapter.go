package mem

import (
	"unsafe"

	"github.com/joshuapare/memkit/mm/buddy"
)

// bufAlign is the alignment handed to every byte-slice allocation, matching
// the link-word granularity of the object caches.
const bufAlign = 8

// BufAllocator adapts an Allocator to the conventional
// Allocate/Reallocate/Free byte-slice triple, the interface shape most Go
// buffer consumers are written against. Installing it as a component's
// allocator routes that component's dynamic memory through this engine
// transparently.
type BufAllocator struct {
	a *Allocator
}

// Buffers returns the allocator's byte-slice adapter.
func (a *Allocator) Buffers() *BufAllocator { return &BufAllocator{a: a} }

// Allocate obtains a slice of exactly size bytes, or nil when the engine
// cannot satisfy the request.
func (b *BufAllocator) Allocate(size int) []byte {
	if size <= 0 {
		return nil
	}
	_, buf, err := b.a.Alloc(uint64(size), bufAlign)
	if err != nil {
		return nil
	}
	return buf
}

// Reallocate grows or shrinks buf to size bytes, copying the overlapping
// prefix. A nil result means the engine could not satisfy the request and
// buf is still live.
func (b *BufAllocator) Reallocate(size int, buf []byte) []byte {
	if size <= 0 {
		b.Free(buf)
		return nil
	}
	if buf == nil {
		return b.Allocate(size)
	}
	out := b.Allocate(size)
	if out == nil {
		return nil
	}
	copy(out, buf)
	b.Free(buf)
	return out
}

// Free returns a slice obtained from Allocate or Reallocate.
func (b *BufAllocator) Free(buf []byte) {
	if len(buf) == 0 {
		return
	}
	_ = b.a.Free(b.addrOf(buf), uint64(len(buf)), bufAlign)
}

// addrOf recovers the managed address of buf from its position inside the
// backing arena.
func (b *BufAllocator) addrOf(buf []byte) buddy.PhysAddr {
	base := uintptr(unsafe.Pointer(unsafe.SliceData(b.a.arena.Bytes())))
	return buddy.PhysAddr(uintptr(unsafe.Pointer(unsafe.SliceData(buf))) - base)
}
