package vmm

import (
	"testing"
	"unsafe"

	"github.com/Wazzaps/boldos/internal/pmm"
)

// newTestEnv backs the page tables with a plain Go byte slice, treating
// offsets into it as "physical" addresses — this exercises the
// walk/map/unmap logic without any real MMU, the same host-testable
// seam Env's doc comment calls out. Offsets rather than raw host
// pointers: a table entry keeps its pointer in bits [38:12], and a Go
// heap address doesn't fit there.
func newTestEnv(t *testing.T) (*Env, *Table) {
	t.Helper()
	const arenaPages = 64
	arena := make([]byte, (arenaPages+1)*pageSize)
	base := (uintptr(unsafe.Pointer(&arena[0])) + pageSize - 1) &^ (pageSize - 1)

	alloc := pmm.New(0)
	alloc.SetWindowLen(arenaPages * pageSize)
	env := &Env{
		Alloc: alloc,
		ToVirt: func(p uintptr) unsafe.Pointer { return unsafe.Pointer(base + p) },
		ToPhys: func(p unsafe.Pointer) uintptr { return uintptr(p) - base },
	}

	box, ok := pmm.AllocBoxZeroed[Table](alloc, env.ToVirt)
	if !ok {
		t.Fatalf("failed to allocate L0 table")
	}
	return env, box.Get()
}

func TestVmapAtRoundTrip(t *testing.T) {
	env, l0 := newTestEnv(t)
	const vaddr = 0x10_0000
	const paddr = 0x40_0000
	attrs := (PhyMapFlags{ReadWrite: true}).Attrs()

	env.VmapAt(l0, vaddr, paddr, attrs)

	l1 := env.tableAt(uintptr(l0.entries[vaddr>>l0Shift] & 0x0000_007F_FFFF_F000))
	l2 := env.tableAt(uintptr(l1.entries[(vaddr>>l1Shift)%entriesPerTable] & 0x0000_007F_FFFF_F000))
	l3 := env.tableAt(uintptr(l2.entries[(vaddr>>l2Shift)%entriesPerTable] & 0x0000_007F_FFFF_F000))
	entry := l3.entries[(vaddr>>l3Shift)%entriesPerTable]

	gotPaddr := uintptr(entry & 0x0000_007F_FFFF_F000)
	if gotPaddr != paddr {
		t.Fatalf("walked paddr = %#x, want %#x", gotPaddr, paddr)
	}
	if entry&attrs != attrs {
		t.Fatalf("walked entry %#x missing attrs %#x", entry, attrs)
	}
}

func TestVmapAtDoubleMapPanics(t *testing.T) {
	env, l0 := newTestEnv(t)
	env.VmapAt(l0, 0x10_0000, 0x40_0000, 0)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic mapping an already-mapped vaddr")
		}
	}()
	env.VmapAt(l0, 0x10_0000, 0x41_0000, 0)
}

func TestVmapAtMisalignedVaddrPanics(t *testing.T) {
	env, l0 := newTestEnv(t)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for a misaligned vaddr")
		}
	}()
	env.VmapAt(l0, 0x10_0001, 0x40_0000, 0)
}

func TestVmapMultiPageThenVunmapClearsEntries(t *testing.T) {
	env, l0 := newTestEnv(t)
	const paddr = 0x40_0000
	const size = 4 * pageSize
	attrs := (VirtMapFlags{ReadWrite: true}).Attrs()

	vaddr, ok := env.Vmap(l0, paddr, size, attrs)
	if !ok {
		t.Fatalf("Vmap failed")
	}
	if vaddr%pageSize != 0 {
		t.Fatalf("Vmap returned unaligned vaddr %#x", vaddr)
	}

	region := env.MeasureContiguousRegion(l0, vaddr, size, size)
	if region.Kind != KindAllocated || region.Len < size {
		t.Fatalf("region after Vmap = %+v, want allocated run >= %d", region, size)
	}

	env.Vunmap(l0, vaddr, size)
	region = env.MeasureContiguousRegion(l0, vaddr, size, size)
	if region.Kind != KindFree {
		t.Fatalf("region after Vunmap = %+v, want free", region)
	}
}

func TestFindHoleSkipsAllocatedRegionAndMatchesMeasureContiguousRegion(t *testing.T) {
	env, l0 := newTestEnv(t)
	const searchBase = 0x5000_0000
	const firstSize = 3 * pageSize

	firstVaddr, ok := env.FindHole(l0, searchBase, firstSize)
	if !ok {
		t.Fatalf("FindHole(first) failed")
	}
	for off := uintptr(0); off < firstSize; off += pageSize {
		env.VmapAt(l0, firstVaddr+off, 0x80_0000+off, 0)
	}

	secondVaddr, ok := env.FindHole(l0, searchBase, pageSize)
	if !ok {
		t.Fatalf("FindHole(second) failed")
	}
	if secondVaddr < firstVaddr+firstSize {
		t.Fatalf("FindHole returned %#x, which overlaps the allocated run [%#x, %#x)",
			secondVaddr, firstVaddr, firstVaddr+firstSize)
	}

	region := env.MeasureContiguousRegion(l0, secondVaddr, pageSize, pageSize)
	if region.Kind != KindFree {
		t.Fatalf("MeasureContiguousRegion at FindHole's result reports %v, want KindFree", region.Kind)
	}
}
