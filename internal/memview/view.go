// Package memview provides raw word access into the managed address space.
//
// Intrusive allocator structures (buddy free-list links, slub object free
// lists) are stored inside the managed bytes themselves, overlapping storage
// that becomes caller payload once allocated. Reinterpreting those bytes as
// link words is only valid while the containing block or slot is free; every
// accessor in this package is called under that invariant, and nothing else
// in the module touches link bytes directly.
package memview

import "encoding/binary"

// View exposes word-granular access to a region of the address space.
// Addresses are absolute offsets from the start of the region. Link words
// are little-endian.
type View struct {
	data []byte
}

// New wraps data in a View. The slice is shared, not copied.
func New(data []byte) *View {
	return &View{data: data}
}

// Word reads the pointer-sized link word at addr.
func (v *View) Word(addr uint64) uint64 {
	return binary.LittleEndian.Uint64(v.data[addr : addr+8])
}

// SetWord writes the pointer-sized link word at addr.
func (v *View) SetWord(addr uint64, val uint64) {
	binary.LittleEndian.PutUint64(v.data[addr:addr+8], val)
}

// Zero clears n bytes starting at addr.
func (v *View) Zero(addr, n uint64) {
	clear(v.data[addr : addr+n])
}

// Slice returns the n bytes starting at addr. The slice aliases the managed
// region; it is valid only while the caller owns that range.
func (v *View) Slice(addr, n uint64) []byte {
	return v.data[addr : addr+n : addr+n]
}

// Contains reports whether [addr, addr+n) lies inside the region.
func (v *View) Contains(addr, n uint64) bool {
	return addr <= uint64(len(v.data)) && n <= uint64(len(v.data))-addr
}

// Len returns the region size in bytes.
func (v *View) Len() uint64 { return uint64(len(v.data)) }
