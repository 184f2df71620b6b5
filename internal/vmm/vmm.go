// Package vmm implements the four-level AArch64 page table: walking,
// mapping and unmapping 4 KiB pages in the low 39-bit user region, plus
// the free-window search (FindHole/MeasureContiguousRegion) the
// PhyMap/VirtMap syscalls pick fresh virtual addresses with.
package vmm

import (
	"unsafe"

	"github.com/Wazzaps/boldos/internal/bitfield"
	"github.com/Wazzaps/boldos/internal/pagebox"
	"github.com/Wazzaps/boldos/internal/pmm"
)

// Descriptor attribute bits for the 4 KiB-granule translation format.
const (
	PagePresent = 0b11 // PT_PAGE
	Block       = 0b01 // PT_BLOCK
	AF          = 1 << 10
	RwEL1       = 0b00 << 6
	RwEL0       = 0b01 << 6
	RoEL1       = 0b10 << 6
	RoEL0       = 0b11 << 6
	InnerShare  = 0b11 << 8
	Mem         = 0 << 2
	Dev         = 1 << 2

	tableFlags = PagePresent | AF | InnerShare | Mem
	commonFlags = PagePresent | AF

	entriesPerTable = 512
	l3Shift         = 12
	l2Shift         = 21
	l1Shift         = 30
	l0Shift         = 39

	// MaxUserVaddr is the exclusive upper bound VmapAt enforces — the
	// low 39-bit TTBR0 region.
	MaxUserVaddr = 1 << 39
)

const pageSize = pagebox.PageSize

// PageSize returns the kernel's fixed page size, for callers outside
// this package (internal/syscall) that need to round a user-supplied
// length without reaching into pagebox directly.
func PageSize() uintptr { return pageSize }

// PhyMapFlags is the user-facing attribute set for PhyMap: ReadWrite
// and DeviceMem each occupy one bit, packed/unpacked via
// internal/bitfield.
type PhyMapFlags struct {
	ReadWrite bool `bitfield:",1"`
	DeviceMem bool `bitfield:",1"`
}

// VirtMapFlags is VirtMap's attribute set: RAM allocated fresh by the
// kernel is never device memory, so only ReadWrite applies.
type VirtMapFlags struct {
	ReadWrite bool `bitfield:",1"`
}

// Attrs packs user PhyMapFlags into L3 attribute bits: always inner
// shareable, EL0 read-write or read-only, normal or device memory.
func (f PhyMapFlags) Attrs() uint64 {
	packed, err := bitfield.Pack(&f, &bitfield.Config{NumBits: 2})
	if err != nil {
		panic(err)
	}
	attrs := uint64(InnerShare)
	if packed&0b01 != 0 { // ReadWrite
		attrs |= RwEL0
	} else {
		attrs |= RoEL0
	}
	if packed&0b10 != 0 { // DeviceMem
		attrs |= Dev
	} else {
		attrs |= Mem
	}
	return attrs
}

// Attrs packs VirtMapFlags into L3 attribute bits; RAM pages are always
// normal memory.
func (f VirtMapFlags) Attrs() uint64 {
	packed, err := bitfield.Pack(&f, &bitfield.Config{NumBits: 1})
	if err != nil {
		panic(err)
	}
	attrs := uint64(InnerShare | Mem)
	if packed&0b1 != 0 { // ReadWrite
		attrs |= RwEL0
	} else {
		attrs |= RoEL0
	}
	return attrs
}

// Table is one level of the translation hierarchy: 512 64-bit
// descriptors, 4 KiB aligned by construction (it is always placed at
// the start of a page-sized allocation).
type Table struct {
	entries [entriesPerTable]uint64
}

// Env threads the two collaborators every vmm operation needs: an
// allocator to source intermediate tables from, and the physical<->
// virtual translation the kernel is currently using to touch them.
// Passed explicitly rather than reached through globals so table walks
// are testable on a host without the MMU.
type Env struct {
	Alloc  *pmm.PageAlloc
	ToVirt func(uintptr) unsafe.Pointer // phys -> pointer this code can dereference
	ToPhys func(unsafe.Pointer) uintptr
}

func (e *Env) tableAt(phys uintptr) *Table {
	return (*Table)(e.ToVirt(phys))
}

// getOrAlloc returns the table at entries[idx], allocating,
// zero-filling and leaking one out of its box if the slot is empty —
// an intermediate table lives as long as the address space that
// references it.
func (e *Env) getOrAlloc(t *Table, idx int, flags uint64) *Table {
	raw := t.entries[idx]
	if raw == 0 {
		box, ok := pmm.AllocBoxZeroed[Table](e.Alloc, e.ToVirt)
		if !ok {
			panic("vmm: out of memory allocating a page table")
		}
		child := box.Leak()
		phys := e.ToPhys(unsafe.Pointer(child))
		t.entries[idx] = uint64(phys) | flags
		return child
	}
	phys := uintptr(raw & 0x0000_007F_FFFF_F000)
	return e.tableAt(phys)
}

// VmapAt installs a single page descriptor at vaddr, creating L1/L2/L3
// intermediate tables as needed. l0 must be an L0 table. Panics if
// vaddr is misaligned, out of the low 39-bit region, or already mapped.
func (e *Env) VmapAt(l0 *Table, vaddr uintptr, paddr uintptr, attrs uint64) {
	if vaddr%pageSize != 0 {
		panic("vmm: vaddr must be page-aligned")
	}
	if vaddr >= MaxUserVaddr {
		panic("vmm: vaddr out of the 39-bit user region")
	}
	l1 := e.getOrAlloc(l0, int(vaddr>>l0Shift), tableFlags)
	l2 := e.getOrAlloc(l1, int(vaddr>>l1Shift)%entriesPerTable, tableFlags)
	l3 := e.getOrAlloc(l2, int(vaddr>>l2Shift)%entriesPerTable, tableFlags)
	entry := &l3.entries[(vaddr>>l3Shift)%entriesPerTable]
	if *entry != 0 {
		panic("vmm: vaddr already mapped")
	}
	*entry = uint64(paddr) | commonFlags | attrs
}

// Vunmap clears the L3 entries covering [vaddr, vaddr+size).
// Intermediate tables are left in place — acceptable for a single
// short-lived process. TODO: track child-populated counts per table
// and free intermediates when they reach zero.
func (e *Env) Vunmap(l0 *Table, vaddr uintptr, size uintptr) {
	for off := uintptr(0); off < size; off += pageSize {
		va := vaddr + off
		l1raw := l0.entries[va>>l0Shift]
		if l1raw == 0 {
			continue
		}
		l1 := e.tableAt(uintptr(l1raw & 0x0000_007F_FFFF_F000))
		l2raw := l1.entries[(va>>l1Shift)%entriesPerTable]
		if l2raw == 0 {
			continue
		}
		l2 := e.tableAt(uintptr(l2raw & 0x0000_007F_FFFF_F000))
		l3raw := l2.entries[(va>>l2Shift)%entriesPerTable]
		if l3raw == 0 {
			continue
		}
		l3 := e.tableAt(uintptr(l3raw & 0x0000_007F_FFFF_F000))
		l3.entries[(va>>l3Shift)%entriesPerTable] = 0
	}
}

// regionKind distinguishes a contiguous run of allocated VA from a run
// of free VA, the two variants measure_contiguous_region can report.
type regionKind int

const (
	KindFree regionKind = iota
	KindAllocated
)

// Region is one homogeneous run reported by MeasureContiguousRegion.
type Region struct {
	Kind regionKind
	Len  uintptr
}

// MeasureContiguousRegion descends the tree lazily starting at start,
// stopping as soon as the run reaches whichever of maxAlloc/maxFree
// applies to its kind, or at the first kind transition. An empty L1/L2
// slot contributes a full 1 GiB/2 MiB of free space without descending
// further.
func (e *Env) MeasureContiguousRegion(l0 *Table, start uintptr, maxAlloc, maxFree uintptr) Region {
	var region Region
	va := start
	first := true

	for {
		l1idx := int(va >> l0Shift)
		if l1idx >= entriesPerTable {
			break
		}
		l1raw := l0.entries[l1idx]
		if l1raw == 0 {
			if !accumulate(&region, &first, KindFree, 1<<l0Shift) {
				break
			}
			va = (va &^ ((1 << l0Shift) - 1)) + (1 << l0Shift)
			if exceeds(region, maxAlloc, maxFree) {
				break
			}
			continue
		}
		l1 := e.tableAt(uintptr(l1raw & 0x0000_007F_FFFF_F000))

		l2idx := int(va>>l1Shift) % entriesPerTable
		l2raw := l1.entries[l2idx]
		if l2raw == 0 {
			if !accumulate(&region, &first, KindFree, 1<<l1Shift) {
				break
			}
			va = (va &^ ((1 << l1Shift) - 1)) + (1 << l1Shift)
			if exceeds(region, maxAlloc, maxFree) {
				break
			}
			continue
		}
		l2 := e.tableAt(uintptr(l2raw & 0x0000_007F_FFFF_F000))

		l3idx := int(va>>l2Shift) % entriesPerTable
		l3raw := l2.entries[l3idx]
		if l3raw == 0 {
			if !accumulate(&region, &first, KindFree, 1<<l2Shift) {
				break
			}
			va = (va &^ ((1 << l2Shift) - 1)) + (1 << l2Shift)
			if exceeds(region, maxAlloc, maxFree) {
				break
			}
			continue
		}
		l3 := e.tableAt(uintptr(l3raw & 0x0000_007F_FFFF_F000))

		entry := l3.entries[(va>>l3Shift)%entriesPerTable]
		kind := KindFree
		if entry != 0 {
			kind = KindAllocated
		}
		if !accumulate(&region, &first, kind, pageSize) {
			break
		}
		va += pageSize
		if exceeds(region, maxAlloc, maxFree) {
			break
		}
	}
	return region
}

func accumulate(region *Region, first *bool, kind regionKind, n uintptr) bool {
	if *first {
		region.Kind = kind
		*first = false
	} else if region.Kind != kind {
		return false
	}
	region.Len += n
	return true
}

func exceeds(r Region, maxAlloc, maxFree uintptr) bool {
	if r.Kind == KindAllocated {
		return r.Len >= maxAlloc
	}
	return r.Len >= maxFree
}

// FindHole scans forward from startVaddr for the first free window of
// at least size bytes, skipping allocated runs via
// MeasureContiguousRegion rather than probing page by page.
func (e *Env) FindHole(l0 *Table, startVaddr uintptr, size uintptr) (uintptr, bool) {
	va := startVaddr
	for va+size <= MaxUserVaddr {
		region := e.MeasureContiguousRegion(l0, va, size, size)
		if region.Kind == KindFree && region.Len >= size {
			return va, true
		}
		if region.Len == 0 {
			return 0, false
		}
		va += region.Len
	}
	return 0, false
}

// Vmap finds a free window of size bytes starting at the fixed
// PhyMap/VirtMap search base and maps [paddr, paddr+size) into it page
// by page, first-fit, lowest address. size must be a page multiple.
func (e *Env) Vmap(l0 *Table, paddr uintptr, size uintptr, attrs uint64) (uintptr, bool) {
	const searchBase = 0x5000_0000
	if size%pageSize != 0 {
		panic("vmm: Vmap size must be a page multiple")
	}
	vaddr, ok := e.FindHole(l0, searchBase, size)
	if !ok {
		return 0, false
	}
	for off := uintptr(0); off < size; off += pageSize {
		e.VmapAt(l0, vaddr+off, paddr+off, attrs)
	}
	return vaddr, true
}
