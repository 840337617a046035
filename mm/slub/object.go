package slub

import (
	"fmt"
	"unsafe"

	"github.com/joshuapare/memkit/mm/buddy"
)

// ObjectCache is a cache specialized to one record type. The records live
// inside the managed address space, so T must be a plain-data type: fixed
// size, no Go pointers, maps, slices, channels, or interfaces. The garbage
// collector never scans arena memory.
type ObjectCache[T any] struct {
	cache   *Cache
	release func(*T)
}

// ObjectOption tweaks typed cache construction.
type ObjectOption[T any] func(*ObjectCache[T])

// WithRelease installs a teardown run in place on every record just before
// its storage returns to the cache.
func WithRelease[T any](fn func(*T)) ObjectOption[T] {
	return func(oc *ObjectCache[T]) { oc.release = fn }
}

// NewObjectCache registers a cache sized and aligned for T under name.
func NewObjectCache[T any](r *Registry, name string, opts ...ObjectOption[T]) (*ObjectCache[T], error) {
	var probe T
	size := uint64(unsafe.Sizeof(probe))
	align := uint64(unsafe.Alignof(probe))
	if size == 0 {
		return nil, fmt.Errorf("%w: zero-size record type", ErrInvalidParameters)
	}
	c, err := r.CreateCache(name, size, align)
	if err != nil {
		return nil, err
	}
	oc := &ObjectCache[T]{cache: c}
	for _, opt := range opts {
		opt(oc)
	}
	return oc, nil
}

// Cache returns the underlying byte cache.
func (oc *ObjectCache[T]) Cache() *Cache { return oc.cache }

// Get allocates one zeroed record and returns its owning handle. The caller
// must Release the handle (normally via defer) on every exit path.
func (oc *ObjectCache[T]) Get() (*Object[T], error) {
	addr, err := oc.cache.Allocate(buddy.DefaultFlags())
	if err != nil {
		return nil, err
	}
	// The slot may carry a stale free-list link or a previous record;
	// hand every caller a zeroed T.
	oc.cache.view.Zero(uint64(addr), oc.cache.stride)
	ptr := (*T)(unsafe.Pointer(&oc.cache.view.Slice(uint64(addr), oc.cache.stride)[0]))
	return &Object[T]{cache: oc, addr: addr, ptr: ptr}, nil
}

// Do allocates a record, runs fn on it, and releases the record on every
// exit path: normal return, error return, or panic.
func (oc *ObjectCache[T]) Do(fn func(*T) error) (err error) {
	obj, err := oc.Get()
	if err != nil {
		return err
	}
	defer func() {
		if rerr := obj.Release(); err == nil {
			err = rerr
		}
	}()
	return fn(obj.Value())
}

// Object owns exactly one allocated record. Releasing it tears the record
// down in place and returns the storage to the owning cache.
type Object[T any] struct {
	cache    *ObjectCache[T]
	addr     buddy.PhysAddr
	ptr      *T
	released bool
}

// Value returns the record. Valid only until Release.
func (o *Object[T]) Value() *T { return o.ptr }

// Addr returns the record's address in the managed space.
func (o *Object[T]) Addr() buddy.PhysAddr { return o.addr }

// Release tears the record down and returns its storage. Safe to call more
// than once; only the first call does anything.
func (o *Object[T]) Release() error {
	if o == nil || o.released {
		return nil
	}
	o.released = true
	if o.cache.release != nil {
		o.cache.release(o.ptr)
	}
	o.ptr = nil
	return o.cache.cache.Free(o.addr)
}
