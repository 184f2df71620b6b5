// Package syscall implements the kernel service dispatch:
// Exit/Log/PhyMap/VirtMap/VirtUnmap/DownloadMoreRam, decoded from the
// saved register frame (x8 = number, x0..x2 = arguments) and answered
// through x0.
package syscall

import (
	"github.com/Wazzaps/boldos/asm"
	"github.com/Wazzaps/boldos/internal/kerror"
	"github.com/Wazzaps/boldos/internal/klog"
	"github.com/Wazzaps/boldos/internal/pmm"
	"github.com/Wazzaps/boldos/internal/thread"
	"github.com/Wazzaps/boldos/internal/vmm"
)

// Args is the decoded register convention (x8 = number, x0..x2 = the
// arguments every syscall in this set needs — none takes more than
// three).
type Args struct {
	Num  uint64
	Arg0 uint64
	Arg1 uint64
	Arg2 uint64
}

// RamRegions describes the physical ranges DownloadMoreRam must re-mark
// allocated once the allocator's window grows past them. The kernel
// image was never tracked at all — the pre-expand window is just the
// early heap — so after the expand its frames would otherwise read as
// free RAM. The heap range itself is excluded: its bits were in-window
// and moved with the shift.
type RamRegions struct {
	KernelStart uintptr // physical base the boot image was loaded at
	KernelEnd   uintptr // first byte past the image (page-aligned up)
	HeapBase    uintptr // early heap within the image, already tracked
	HeapEnd     uintptr
}

// env holds the collaborators Dispatch needs once the single user
// thread is running: its own page table, the allocator backing
// PhyMap/VirtMap/DownloadMoreRam, and the physical layout facts the
// expand path re-marks. Set once by Init, called from
// internal/usermode right after the thread is built — there is no
// dispatch before that point.
var env struct {
	thread *thread.Thread
	vmm    *vmm.Env
	alloc  *pmm.PageAlloc
	ram    RamRegions
}

// Init wires the running thread and its memory-management
// collaborators. Must be called exactly once, before the first trap
// from EL0.
func Init(t *thread.Thread, e *vmm.Env, a *pmm.PageAlloc, ram RamRegions) {
	env.thread = t
	env.vmm = e
	env.alloc = a
	env.ram = ram
}

// Dispatch decodes and runs one syscall, returning the raw x0 value:
// a non-negative result, or a KError's errno sign-extended into the
// full 64 bits so userland sees a negative i64.
func Dispatch(a Args) uint64 {
	switch a.Num {
	case Exit:
		return asErr(exit(a.Arg0))
	case Log:
		return asErr(doLog(a.Arg0, a.Arg1))
	case PhyMap:
		return doPhyMap(a.Arg0, a.Arg1, a.Arg2)
	case VirtMap:
		return doVirtMap(a.Arg0, a.Arg1)
	case VirtUnmap:
		return asErr(doVirtUnmap(a.Arg0, a.Arg1))
	case DownloadMoreRam:
		return asErr(doDownloadMoreRam(a.Arg0, a.Arg1))
	default:
		klog.Info("Unknown syscall: %d", a.Num)
		return asErr(kerror.NewUnknown(-1))
	}
}

// asErr turns a nil-or-KError result into the raw x0 encoding: 0 for
// success, otherwise the error's errno sign-extended to 64 bits.
func asErr(err error) uint64 {
	if err == nil {
		return 0
	}
	ke, ok := err.(kerror.KError)
	if !ok {
		unknown := int64(-1)
		return uint64(unknown)
	}
	return uint64(int64(ke.Errno()))
}

// exit terminates the one user thread and parks the core in the idle
// loop — there is no scheduler to hand control back to, so "terminate
// and idle" collapse into the same wfi loop kmain's tail would run.
func exit(code uint64) error {
	klog.Info(" user: exited with code %d", code)
	asm.WFILoop()
	return nil // unreachable: the core never leaves the idle loop
}

// doLog copies up to layout.LogMaxBytes user bytes and writes them
// verbatim to the UART, no newline added.
func doLog(userPtr, userLen uint64) error {
	var buf [256]byte
	n := clampLogLen(userLen)
	copyFromUser(uintptr(userPtr), buf[:n])
	klog.BootBytes(buf[:n])
	return nil
}

// doPhyMap maps an existing physical range into the thread's address
// space and returns the chosen vaddr, or a sign-extended KError.
func doPhyMap(paddr, length, rawFlags uint64) uint64 {
	if uintptr(length)%vmm.PageSize() != 0 {
		return asErr(kerror.NewUnknown(-1))
	}
	if rawFlags&^0b11 != 0 {
		return asErr(kerror.NewUnknown(-1))
	}
	var flags vmm.PhyMapFlags
	flags.ReadWrite = rawFlags&0b01 != 0
	flags.DeviceMem = rawFlags&0b10 != 0
	vaddr, ok := env.vmm.Vmap(&env.thread.L0, uintptr(paddr), uintptr(length), flags.Attrs())
	if !ok {
		return asErr(kerror.New(kerror.OOM))
	}
	return uint64(vaddr)
}

// doVirtMap allocates ceil(len/PageSize) fresh RAM pages and maps them
// into a free window for the calling thread.
func doVirtMap(length, rawFlags uint64) uint64 {
	if rawFlags&^0b01 != 0 {
		return asErr(kerror.NewUnknown(-1))
	}
	ps := uint64(vmm.PageSize())
	pages := int((length + ps - 1) / ps)
	slice, ok := env.alloc.Alloc(pages)
	if !ok {
		return asErr(kerror.New(kerror.OOM))
	}
	var flags vmm.VirtMapFlags
	flags.ReadWrite = rawFlags&0b01 != 0
	vaddr, ok := env.vmm.Vmap(&env.thread.L0, slice.Addr(), uintptr(slice.Len()), flags.Attrs())
	if !ok {
		slice.Release(env.vmm.ToVirt)
		return asErr(kerror.New(kerror.OOM))
	}
	return uint64(vaddr)
}

// doVirtUnmap clears the L3 entries covering [vaddr, vaddr+len). It
// never frees backing frames — they may have been phy-mapped, not
// owned.
func doVirtUnmap(vaddr, length uint64) error {
	env.vmm.Vunmap(&env.thread.L0, uintptr(vaddr), uintptr(length))
	return nil
}

// doDownloadMoreRam grows the physical allocator's tracked window,
// called exactly once by init after it parses the DTB.
// After the expand it re-marks the kernel image's frames: the
// pre-expand window was just the early heap, so everything else the
// image occupies was never tracked and would otherwise be vended as
// free RAM. The heap's own bits moved with the expand's shift and are
// skipped.
func doDownloadMoreRam(paddr, length uint64) error {
	base := uintptr(paddr)
	size := uintptr(length)
	if base%vmm.PageSize() != 0 || size%vmm.PageSize() != 0 {
		return kerror.NewUnknown(-1)
	}
	if base > env.alloc.RamBase() {
		// The discovered region starts above the heap the allocator
		// already tracks; nothing this kernel boots on looks like that.
		return kerror.NewUnknown(-1)
	}
	prevLen := env.alloc.WindowLen()
	env.alloc.ExpandTo(base, size, prevLen)
	remarkRange(env.ram.KernelStart, env.ram.HeapBase)
	remarkRange(env.ram.HeapEnd, env.ram.KernelEnd)
	return nil
}

// remarkRange marks [start, end) allocated, clamped to the allocator's
// window. Ranges the expand didn't reach are skipped, not split.
func remarkRange(start, end uintptr) {
	ps := vmm.PageSize()
	lo := env.alloc.RamBase()
	hi := lo + env.alloc.WindowLen()
	if start < lo {
		start = lo
	}
	if end > hi {
		end = hi
	}
	if start >= end {
		return
	}
	env.alloc.MarkAllocated(start, int((end-start)/ps))
}
