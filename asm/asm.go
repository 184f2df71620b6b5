// Package asm declares the small set of AArch64 primitives the kernel
// cannot express in Go: system-register access, cache/TLB maintenance, the
// unprivileged load used by copy-from-user, and the eret that launches a
// thread. Each function is implemented in the sibling .s file and forward
// declared here with no body. This kernel owns every symbol below
// outright; only the two linker-symbol accessors at the bottom reach
// for something defined elsewhere.
package asm

import "unsafe"

// ReadDAIF reads the DAIF interrupt-mask register.
func ReadDAIF() uint64

// WriteDAIF restores a previously read DAIF value.
func WriteDAIF(v uint64)

// DisableIRQs sets the IRQ mask bit in DAIF and returns the prior value,
// for internal/irqmutex's scoped guard.
func DisableIRQs() (prev uint64)

// MmioRead8/32/64 perform a single volatile load from a device
// register. Go's compiler is free to reorder or elide plain loads through
// an unsafe.Pointer; these are real `ldr` instructions with no such
// freedom.
func MmioRead8(addr uintptr) uint8
func MmioRead32(addr uintptr) uint32
func MmioRead64(addr uintptr) uint64

// MmioWrite8/32/64 perform a single volatile store to a device register.
func MmioWrite8(addr uintptr, v uint8)
func MmioWrite32(addr uintptr, v uint32)
func MmioWrite64(addr uintptr, v uint64)

// LoadUnprivilegedByte issues `ldtrb` against a userspace virtual address
// while executing at EL1. It loads using the EL0 translation regime
// (TTBR0_EL1 of the currently installed thread), so it faults exactly
// as a real EL0 access would rather than silently reading through a
// kernel-privileged mapping.
func LoadUnprivilegedByte(userVaddr uintptr) uint8

// WriteMAIR/WriteTCR/WriteTTBR0/WriteTTBR1/WriteSCTLR/ReadSCTLR/WriteVBAR
// set up the translation registers for internal/mmu.Init.
func WriteMAIREL1(v uint64)
func WriteTCREL1(v uint64)
func WriteTTBR0EL1(v uint64)
func WriteTTBR1EL1(v uint64)
func WriteSCTLREL1(v uint64)
func ReadSCTLREL1() uint64
func WriteVBAREL1(v uint64)
func ReadCurrentEL() uint64

// FlushTLBAndSync runs `dsb ish; tlbi vmalle1; dsb ish; isb`, the barrier
// sequence required after any mapping change.
func FlushTLBAndSync()

// ISB issues an instruction synchronization barrier alone (used right
// after SCTLR_EL1 is written to enable the MMU).
func ISB()

// RelocateSP ORs the current stack pointer with mask and installs the
// result — the "eject low memory" SP move into the high half.
func RelocateSP(mask uint64)

// WFILoop parks the core in `wfi` forever; used by the fatal-exception
// path and the post-launch kernel idle loop.
func WFILoop()

// EnterUser installs ttbr0, SPSR_EL1/SP_EL0/ELR_EL1 and issues `eret`,
// launching the thread described by the three values. It never returns.
func EnterUser(ttbr0, spsr, sp, pc uint64)

// VectorsAddr returns the (low-half) address of the linker-provided
// `_vectors` exception vector table. It reaches into a linker symbol
// rather than being a self-contained primitive.
func VectorsAddr() unsafe.Pointer

// BSSClear zeroes [start, end), eight bytes at a time. _start
// (kernel/entry_arm64.s) clears BSS with its own inline loop and does
// not call this.
func BSSClear(start, end uintptr)

// EBSSAddr returns the linker-provided `_ebss` address — the first byte
// past the kernel image. Like VectorsAddr it reaches into a linker
// symbol rather than being a self-contained primitive; the boot path
// uses it to tell DownloadMoreRam where the image's physical extent
// ends.
func EBSSAddr() uintptr
