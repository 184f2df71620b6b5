// Package usermode builds the one user process this kernel ever runs
// and launches it into EL0: copy the embedded init image into fresh
// frames, build the thread's own translation table, map code and
// stack, and eret.
package usermode

import (
	"unsafe"

	"github.com/Wazzaps/boldos/asm"
	"github.com/Wazzaps/boldos/internal/addr"
	"github.com/Wazzaps/boldos/internal/klog"
	"github.com/Wazzaps/boldos/internal/layout"
	"github.com/Wazzaps/boldos/internal/pmm"
	"github.com/Wazzaps/boldos/internal/syscall"
	"github.com/Wazzaps/boldos/internal/thread"
	"github.com/Wazzaps/boldos/internal/vmm"
)

func toVirt(p uintptr) unsafe.Pointer { return addr.PhysAddr(p).VirtPtr() }
func toPhys(p unsafe.Pointer) uintptr { return uintptr(addr.FromVirtPtr(p)) }

// pageFlags: non-privileged, inner shareable, normal memory. Both the
// code and stack mappings use it — this kernel has no NX policy, so
// code pages are mapped writable the same as data.
const pageFlags = vmm.RwEL0 | vmm.InnerShare | vmm.Mem

// Start builds the Thread for initBin, maps its code and stack, wires
// internal/syscall to the new thread, and launches it. It never
// returns. ram carries the physical layout facts only the boot path
// knows (image extent, early heap extent), passed through to the
// syscall layer for DownloadMoreRam's re-marking.
func Start(alloc *pmm.PageAlloc, ram syscall.RamRegions, initBin []byte) {
	klog.Info(" user: Starting usermode")

	codePages := (len(initBin) + int(vmm.PageSize()) - 1) / int(vmm.PageSize())
	codeSlice, ok := alloc.AllocZeroed(codePages, toVirt)
	if !ok {
		klog.Fatalf("usermode: OOM allocating init's code pages")
	}
	codeBytes := (*[1 << 30]byte)(toVirt(codeSlice.Addr()))[:len(initBin):len(initBin)]
	copy(codeBytes, initBin)

	box, ok := pmm.AllocBoxZeroed[thread.Thread](alloc, toVirt)
	if !ok {
		klog.Fatalf("usermode: OOM allocating the Thread")
	}
	t := box.Leak()
	t.Pc = layout.InitPC
	t.Sp = layout.InitSP
	t.Spsr = layout.InitSPSR

	env := &vmm.Env{Alloc: alloc, ToVirt: toVirt, ToPhys: toPhys}

	for page := 0; page < codePages; page++ {
		vaddr := uintptr(layout.InitPC + page*int(vmm.PageSize()))
		paddr := codeSlice.Addr() + uintptr(page)*vmm.PageSize()
		env.VmapAt(&t.L0, vaddr, paddr, pageFlags)
	}

	stackBase := toPhys(unsafe.Pointer(&t.Stack[0]))
	for off := uintptr(0); off < layout.InitStackSize; off += vmm.PageSize() {
		vaddr := uintptr(layout.InitSP-layout.InitStackSize) + off
		env.VmapAt(&t.L0, vaddr, stackBase+off, pageFlags)
	}

	syscall.Init(t, env, alloc, ram)

	l0Phys := uint64(toPhys(unsafe.Pointer(&t.L0)))
	asm.EnterUser(l0Phys, t.Spsr, t.Sp, t.Pc)
}
