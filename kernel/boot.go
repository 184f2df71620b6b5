package kernel

import (
	"unsafe"

	"github.com/Wazzaps/boldos/asm"
	"github.com/Wazzaps/boldos/internal/addr"
	"github.com/Wazzaps/boldos/internal/klog"
	"github.com/Wazzaps/boldos/internal/layout"
	"github.com/Wazzaps/boldos/internal/mmu"
	"github.com/Wazzaps/boldos/internal/pmm"
	"github.com/Wazzaps/boldos/internal/syscall"
	"github.com/Wazzaps/boldos/internal/usermode"
)

// pageAlloc is the kernel's one physical frame allocator. ram_base
// starts at 0 and is corrected by the early-heap rebase below, then
// again whenever init's DownloadMoreRam syscall runs.
var pageAlloc = pmm.New(0)

// KmainNommu is the Go-level call _start makes right after
// bootstrapRuntime, running with the MMU off
// and every pointer a physical address. Do not print in this function:
// nothing about the console path is settled until EjectLowmem has run.
//
//go:nosplit
func KmainNommu() {
	if el := (asm.ReadCurrentEL() >> 2) & 0x3; el != 1 {
		asm.WFILoop()
	}
	mmu.Init()
	kmain()
}

// kmain runs with the MMU on, still executing through the low-half
// identity alias: the slot-0 identity mapping is never torn down, so
// low-half code stays executable permanently and no high-half
// function-pointer conversion is needed before calling in here.
// EjectLowmem still moves the vector base and stack pointer high.
func kmain() {
	mmu.EjectLowmem()
	klog.Boot("--- BoldOS ---\n")
	klog.Boot("alloc: Initializing early allocator\n")

	heapBase := earlyHeapBase()
	pageAlloc.Rebase(heapBase)
	pageAlloc.SetWindowLen(earlyHeapSize)

	// The whole heap starts reserved, then everything past the
	// allocator's own footprint is carved out free. Ordered this way
	// so no Free ever clears a bit that was never set — the
	// double-free panic in bitmap.Free is always on.
	pageAlloc.MarkAllocated(heapBase, earlyHeapPages)
	pageAlloc.Free(heapBase+pmm.BitmapStoragePages*pageSize, earlyHeapPages-pmm.BitmapStoragePages)

	pageAlloc.OverwriteFreePages(func(p uintptr) unsafe.Pointer {
		return addr.PhysAddr(p).VirtPtr()
	})

	usermode.Start(pageAlloc, ramRegions(heapBase), initBinary)

	klog.Boot("Sleeping forever\n")
	asm.WFILoop()
}

// ramRegions describes the kernel image's physical extent for
// DownloadMoreRam's re-marking: from the QEMU `virt` load address to
// the end of BSS (everything go build places lies below _ebss), with
// the early heap called out so its already-tracked bits are skipped.
func ramRegions(heapBase uintptr) syscall.RamRegions {
	imageEnd := (asm.EBSSAddr() + pageSize - 1) &^ (pageSize - 1)
	return syscall.RamRegions{
		KernelStart: layout.KernelLoadAddr,
		KernelEnd:   imageEnd,
		HeapBase:    heapBase,
		HeapEnd:     heapBase + earlyHeapSize,
	}
}
