// Package pmm implements the physical page-frame allocator: a
// bitmap-backed free list of 4 KiB frames over a window of RAM that
// starts as the early boot heap and grows once the device tree says
// how much memory actually exists. Every method locks through
// internal/irqmutex.
package pmm

import (
	"unsafe"

	"github.com/Wazzaps/boldos/internal/bitmap"
	"github.com/Wazzaps/boldos/internal/irqmutex"
	"github.com/Wazzaps/boldos/internal/klog"
	"github.com/Wazzaps/boldos/internal/pagebox"
)

const pageSize = pagebox.PageSize

// BitmapStoragePages is the allocator's own bookkeeping footprint in
// pages: a Bitmap is NumCells 64-bit words, rounded up to whole pages.
// The boot path keeps this many pages at the front of the early heap
// reserved when it carves the rest out as free.
const BitmapStoragePages = (bitmap.NumCells*8 + pageSize - 1) / pageSize

type state struct {
	bits    bitmap.Bitmap
	ramBase uintptr
	// ramLen bounds the meaningful window in bytes: the bitmap's backing
	// capacity is a build-time ceiling (4 GiB), but the RAM that actually
	// exists behind it starts as the early heap and only grows when
	// DownloadMoreRam adopts the DTB-discovered region. Frames past
	// ramLen are never handed out.
	ramLen uintptr
}

func (s *state) windowPages() int {
	return int(s.ramLen / pageSize)
}

// PageAlloc is a bitmap-backed physical frame allocator over a window
// of RAM starting at ramBase. The zero value is not usable; construct
// with New.
type PageAlloc struct {
	guarded *irqmutex.Mutex[state]
}

// New returns an allocator whose frame 0 is ramBase. ramBase must be
// page-aligned. The window starts at the bitmap's full capacity, the
// original's semantics where capacity and RAM size coincide; the boot
// path narrows it with SetWindowLen once it knows how much RAM actually
// backs the early heap.
func New(ramBase uintptr) *PageAlloc {
	if ramBase%pageSize != 0 {
		panic("pmm: ram_base must be page-aligned")
	}
	return &PageAlloc{guarded: irqmutex.New(state{
		ramBase: ramBase,
		ramLen:  uintptr(bitmap.BitCapacity) * pageSize,
	})}
}

// Alloc returns a newly-owned, physically-contiguous PageSlice of
// pages*PageSize bytes, or false on fragmentation.
func (a *PageAlloc) Alloc(pages int) (*pagebox.PageSlice, bool) {
	g := a.guarded.Lock()
	defer g.Release()
	s := g.Ptr()
	idx, ok := s.bits.FindHoleWithin(pages, s.windowPages())
	if !ok {
		return nil, false
	}
	s.bits.MarkAllocated(idx, pages)
	frameAddr := s.ramBase + uintptr(idx)*pageSize
	return pagebox.New(a, frameAddr, pages), true
}

// AllocBox allocates ceil(sizeof(T)/PageSize) pages and returns them as
// a pagebox.Box[T]. It does not zero the pages first — callers that read
// any field before writing it (every caller in this kernel today) must
// use AllocBoxZeroed instead; this is the un-zeroed primitive the
// zeroed variants layer on.
func AllocBox[T any](a *PageAlloc, toVirt func(uintptr) unsafe.Pointer) (*pagebox.Box[T], bool) {
	slice, ok := a.Alloc(boxPages[T]())
	if !ok {
		return nil, false
	}
	ptr := (*T)(slice.Ptr(toVirt))
	return pagebox.NewBox[T](slice, ptr), true
}

// AllocZeroed returns a newly-owned, physically-contiguous PageSlice of
// pages*PageSize bytes with every byte zero. pmm.Alloc alone does not
// guarantee this: frames come
// from find_hole over the bitmap with no write-back, and a freed
// PageSlice poisons its bytes with 0xa1 (pagebox.Release) rather than
// zeroing them, so a freed-then-reallocated frame would otherwise carry
// the poison pattern, or an older tenant's data, into the new owner.
func (a *PageAlloc) AllocZeroed(pages int, toVirt func(uintptr) unsafe.Pointer) (*pagebox.PageSlice, bool) {
	slice, ok := a.Alloc(pages)
	if !ok {
		return nil, false
	}
	zeroBytes(slice, toVirt)
	return slice, true
}

// AllocBoxZeroed is AllocBox's zeroed counterpart. internal/vmm.getOrAlloc
// relies on a fresh page-table's entries reading back as 0 (= not yet
// populated); internal/thread's Thread
// box needs its Gprs/Stack/L0 fields to start zero since nothing else
// initializes them. AllocBox would hand back whatever the backing frames
// last held, so every current caller uses this instead.
func AllocBoxZeroed[T any](a *PageAlloc, toVirt func(uintptr) unsafe.Pointer) (*pagebox.Box[T], bool) {
	slice, ok := a.AllocZeroed(boxPages[T](), toVirt)
	if !ok {
		return nil, false
	}
	ptr := (*T)(slice.Ptr(toVirt))
	return pagebox.NewBox[T](slice, ptr), true
}

func boxPages[T any]() int {
	var zero T
	size := unsafe.Sizeof(zero)
	pages := int((uintptr(size) + pageSize - 1) / pageSize)
	if pages == 0 {
		pages = 1
	}
	return pages
}

func zeroBytes(slice *pagebox.PageSlice, toVirt func(uintptr) unsafe.Pointer) {
	p := (*[1 << 30]byte)(toVirt(slice.Addr()))[:slice.Len():slice.Len()]
	for i := range p {
		p[i] = 0
	}
}

// MarkAllocated marks [addr, addr+pages*PageSize) allocated without
// handing out a PageSlice — used once at boot to claim the kernel image
// and the early heap before any tracking existed.
func (a *PageAlloc) MarkAllocated(at uintptr, pages int) {
	g := a.guarded.Lock()
	defer g.Release()
	s := g.Ptr()
	requireInWindow(s, at, pages)
	s.bits.MarkAllocated(int((at-s.ramBase)/pageSize), pages)
}

// Free returns [addr, addr+pages*PageSize) to the pool. It implements
// pagebox.FrameSource, so a released PageSlice calls back into here.
func (a *PageAlloc) Free(at uintptr, pages int) {
	g := a.guarded.Lock()
	defer g.Release()
	s := g.Ptr()
	requireInWindow(s, at, pages)
	s.bits.Free(int((at-s.ramBase)/pageSize), pages)
}

// RamBase returns the allocator's current frame-0 address.
func (a *PageAlloc) RamBase() uintptr {
	g := a.guarded.Lock()
	defer g.Release()
	return g.Get().ramBase
}

// Capacity returns the number of pages this allocator can track at its
// current base.
func (a *PageAlloc) Capacity() int {
	g := a.guarded.Lock()
	defer g.Release()
	return g.Ptr().bits.BitCapacity()
}

// Rebase reinterprets frame 0 as newBase without touching any bit. The
// boot path calls it once, after the early heap is installed;
// DownloadMoreRam goes through ExpandTo instead, even when the new base
// needs no bit movement.
func (a *PageAlloc) Rebase(newBase uintptr) {
	g := a.guarded.Lock()
	defer g.Release()
	g.Ptr().ramBase = newBase
}

// WindowLen returns the length in bytes of the currently tracked RAM
// window — the prev_len a subsequent ExpandTo wants.
func (a *PageAlloc) WindowLen() uintptr {
	g := a.guarded.Lock()
	defer g.Release()
	return g.Ptr().ramLen
}

// SetWindowLen narrows (or widens) the tracked window without moving
// any bit. The boot path calls it right after the early-heap Rebase:
// the bitmap can track 4 GiB, but until DownloadMoreRam runs the only
// RAM that exists behind it is the heap itself.
func (a *PageAlloc) SetWindowLen(n uintptr) {
	if n%pageSize != 0 {
		panic("pmm: window length must be a page multiple")
	}
	g := a.guarded.Lock()
	defer g.Release()
	s := g.Ptr()
	if n > uintptr(s.bits.BitCapacity())*pageSize {
		panic("pmm: window larger than bitmap capacity")
	}
	s.ramLen = n
}

// ExpandTo adopts a larger physical window. newBase must be <= the
// current ram_base and newBase+newLen must be >= ram_base+prevLen.
// Existing bits shift forward by (ram_base-newBase)/PageSize; the new
// prefix and any suffix beyond prevLen are left clear. The caller is
// responsible for re-marking any region (kernel image, early heap) that
// falls outside [ram_base, ram_base+prevLen) under the old base.
func (a *PageAlloc) ExpandTo(newBase, newLen, prevLen uintptr) {
	g := a.guarded.Lock()
	defer g.Release()
	s := g.Ptr()
	if newBase > s.ramBase {
		panic("pmm: ExpandTo requires newBase <= ram_base")
	}
	if newBase+newLen < s.ramBase+prevLen {
		panic("pmm: ExpandTo requires newBase+newLen >= ram_base+prevLen")
	}
	shiftPages := int((s.ramBase - newBase) / pageSize)
	prevPages := int(prevLen / pageSize)
	newCapPages := int(newLen / pageSize)
	if newCapPages > s.bits.BitCapacity() {
		// More RAM than the bitmap can track; adopt what fits. The
		// window stops at the bitmap's ceiling, not at the DTB's.
		newCapPages = s.bits.BitCapacity()
	}
	if shiftPages+prevPages > s.bits.BitCapacity() {
		panic("pmm: ExpandTo shift would push tracked bits past capacity")
	}

	if shiftPages > 0 {
		s.bits.MoveBitRangeForward(0, shiftPages, prevPages)
		s.bits.ZeroBitRange(0, shiftPages)
	}
	prevEnd := shiftPages + prevPages
	if newCapPages > prevEnd {
		s.bits.ZeroBitRange(prevEnd, newCapPages-prevEnd)
	}
	s.ramBase = newBase
	s.ramLen = uintptr(newCapPages) * pageSize
}

// OverwriteFreePages fills every currently-free page with a debug
// pattern so stray reads of unallocated memory surface as a
// recognizable byte — a boot diagnostic, never called on the hot path.
func (a *PageAlloc) OverwriteFreePages(toVirt func(uintptr) unsafe.Pointer) {
	g := a.guarded.Lock()
	defer g.Release()
	s := g.Ptr()
	klog.Boot("Cleaning RAM: ")
	cleaned := 0
	for i := 0; i < s.windowPages(); i++ {
		if !s.bits.IsSet(i) {
			frameAddr := s.ramBase + uintptr(i)*pageSize
			p := (*[pageSize]byte)(toVirt(frameAddr))
			for j := range p {
				p[j] = 0xb4
			}
			cleaned++
			if cleaned%2048 == 0 {
				klog.Boot(".")
			}
		}
	}
	klog.Boot("\n")
}

func requireInWindow(s *state, at uintptr, pages int) {
	if at%pageSize != 0 {
		panic("pmm: addr must be page-aligned")
	}
	if at < s.ramBase {
		panic("pmm: addr before ram_base")
	}
	end := at + uintptr(pages)*pageSize
	if end > s.ramBase+s.ramLen {
		panic("pmm: (addr + pages) after ram window")
	}
}
