// Package pagebox implements scoped ownership of physical page frames.
// Go has no destructors, so PageSlice and Box require an explicit
// Release — callers pair every successful allocation with
// `defer slice.Release()`, or Leak the handle when the pages are
// permanent.
package pagebox

import "unsafe"

// PageSize is the kernel's fixed page size. BoldOS targets one page
// size only; there is no huge-page path.
const PageSize = 4096

// poisonByte overwrites a released PageSlice's bytes before the frames
// return to the allocator, so use-after-free reads surface as a
// recognizable pattern. Unconditional; BoldOS has no separate release
// build.
const poisonByte = 0xa1

// FrameSource frees page frames previously handed out by it. pmm.PageAlloc
// is the only implementation; this package accepts the interface rather
// than importing pmm directly to avoid a cycle (pmm constructs PageSlice
// values and so must import this package, not the reverse).
type FrameSource interface {
	Free(addr uintptr, pages int)
}

// PageSlice owns a physically contiguous run of whole pages.
type PageSlice struct {
	source   FrameSource
	addr     uintptr
	pages    int
	released bool
}

// New wraps an already-allocated, already-marked run of pages. Callers
// are source implementations, not ordinary kernel code: pmm.Alloc is
// the normal way to obtain one.
func New(source FrameSource, addr uintptr, pages int) *PageSlice {
	return &PageSlice{source: source, addr: addr, pages: pages}
}

// Addr returns the slice's base physical address.
func (s *PageSlice) Addr() uintptr { return s.addr }

// Len returns the slice's length in bytes.
func (s *PageSlice) Len() int { return s.pages * PageSize }

// Pages returns the slice's length in pages.
func (s *PageSlice) Pages() int { return s.pages }

// Ptr returns the kernel-virtual pointer toVirt maps this slice's base
// to (the kernel passes internal/addr's high-half view); PageSlice
// itself only tracks physical ranges.
func (s *PageSlice) Ptr(toVirt func(uintptr) unsafe.Pointer) unsafe.Pointer {
	return toVirt(s.addr)
}

// Release poisons the slice's bytes, then returns its frames to the
// source allocator. It is a no-op if called more than once.
func (s *PageSlice) Release(toVirt func(uintptr) unsafe.Pointer) {
	if s.released {
		return
	}
	s.released = true
	p := (*[1 << 30]byte)(toVirt(s.addr))[:s.Len():s.Len()]
	for i := range p {
		p[i] = poisonByte
	}
	s.source.Free(s.addr, s.pages)
}

// Leak detaches this slice without poisoning or freeing it, returning
// its address for permanent use. Used through Box.Leak for allocations
// that are never released: internal/vmm's intermediate page tables and
// internal/usermode's Thread.
func (s *PageSlice) Leak() uintptr {
	s.released = true
	return s.addr
}

// Box is the scoped owner of exactly one T, placed at the start of a
// PageSlice sized to ceil(sizeof(T)/PageSize) pages.
type Box[T any] struct {
	slice *PageSlice
	ptr   *T
}

// NewBox wraps slice (already sized for T) as a Box[T]. NewBox itself
// does not zero anything — whether *ptr reads back as T's zero value
// depends entirely on how slice was allocated. pmm.AllocBox hands back
// whatever the backing frames last held; pmm.AllocBoxZeroed is what
// actually guarantees a zeroed T, and is what every caller in this
// kernel uses.
func NewBox[T any](slice *PageSlice, ptr *T) *Box[T] {
	return &Box[T]{slice: slice, ptr: ptr}
}

// Get returns the boxed value's pointer.
func (b *Box[T]) Get() *T { return b.ptr }

// Release poisons and frees the box's backing frames. Every boxed type
// in this kernel (Thread, page tables) is plain data, so there is no
// per-type teardown step before the PageSlice release.
func (b *Box[T]) Release(toVirt func(uintptr) unsafe.Pointer) {
	b.slice.Release(toVirt)
}

// Leak detaches the box, returning a pointer with program lifetime.
func (b *Box[T]) Leak() *T {
	b.slice.Leak()
	return b.ptr
}
