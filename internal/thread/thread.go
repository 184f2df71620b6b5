// Package thread defines the single user thread this kernel ever runs.
// BoldOS is a single-process kernel — there is no scheduler, no thread
// list, just one Thread the usermode launcher builds once and hands to
// EnterUser; every subsequent trap is handled on the kernel stack via
// internal/trap.ExceptionContext and returns with the same register
// file, so Thread's Gprs/Lr/Pc/Sp/Spsr only ever hold the one launch
// state, never a resumed mid-trap snapshot.
package thread

import "github.com/Wazzaps/boldos/internal/vmm"

// Thread is the launch state of the one user process plus its own
// top-level page table. L0 is the struct's first field so that a
// page-aligned allocation of Thread (internal/pmm.AllocBoxZeroed
// guarantees this, and zeroes it besides) doubles as a page-aligned L0,
// installable straight into TTBR0.
type Thread struct {
	L0 vmm.Table

	// Stack backs the user process's own stack: internal/usermode maps
	// layout.InitStackSize (0x4000) worth of pages starting at this
	// array's address into [layout.InitSP-layout.InitStackSize,
	// layout.InitSP), so there is no separate allocation for it. The
	// array itself is only 8 KiB (1024 uint64s) — half of
	// InitStackSize — so the mapping walks one page past the end of
	// the page-rounded Thread box into whatever physical page follows
	// it. See DESIGN.md for why the mismatch stands.
	Stack [1024]uint64

	// Gprs holds x0..x30 (31 registers). The launcher sets only Pc, Sp
	// and Spsr; Gprs and Lr stay zero.
	Gprs [31]uint64
	Lr   uint64
	Pc   uint64
	Sp   uint64
	Spsr uint64
}
