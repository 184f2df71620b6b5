// Package mmu brings up the AArch64 MMU: three static identity tables
// covering low memory and the two high-half aliases, the
// MAIR/TCR/TTBR/SCTLR programming sequence, and the post-enable
// handover that moves the vector base and stack pointer into the high
// half. internal/vmm supplies the Table type and attribute constants
// both this package and the syscall-facing mapping operations share.
package mmu

import (
	"unsafe"

	"github.com/Wazzaps/boldos/asm"
	"github.com/Wazzaps/boldos/internal/addr"
	"github.com/Wazzaps/boldos/internal/layout"
	"github.com/Wazzaps/boldos/internal/uart"
	"github.com/Wazzaps/boldos/internal/vmm"
)

// Static kernel page tables, each L1 identity-mapping 512 GiB of
// physical memory as 512 one-GiB blocks: at VA 0 (so code running before
// TTBR1 matters keeps working) and at the high-half normal/device
// aliases internal/addr describes.
var (
	tableL0    vmm.Table
	tableL1Mem vmm.Table
	tableL1Dev vmm.Table
)

func physOf(t *vmm.Table) uintptr {
	return uintptr(addr.FromVirtPtr(unsafe.Pointer(t)))
}

func makeL0() {
	l1MemPhys := uint64(physOf(&tableL1Mem))
	l1DevPhys := uint64(physOf(&tableL1Dev))
	entries := l0Entries(&tableL0)
	entries[0] = l1MemPhys | vmm.PagePresent
	entries[510] = l1MemPhys | vmm.PagePresent
	entries[511] = l1DevPhys | vmm.PagePresent
}

func makeL1(t *vmm.Table, memOrDevAttr uint64) {
	entries := l0Entries(t)
	const oneGiB = 1 << 30
	for i := 0; i < 512; i++ {
		entries[i] = uint64(i)*oneGiB | vmm.Block | vmm.AF | vmm.RwEL1 | vmm.InnerShare | memOrDevAttr
	}
}

// l0Entries reaches into vmm.Table's unexported backing array. Both
// types live in this kernel's own module, so this is an internal
// convenience, not a layering violation the way reflection-based access
// would be; vmm exposes no setter because ordinary callers only ever
// populate tables through VmapAt.
func l0Entries(t *vmm.Table) *[512]uint64 {
	return (*[512]uint64)(unsafe.Pointer(t))
}

// Translation control register field positions (Arm ARM D19.2.148).
const (
	tcrT0SZShift  = 0
	tcrIRGN0Shift = 8
	tcrORGN0Shift = 10
	tcrSH0Shift   = 12
	tcrTG0Shift   = 14
	tcrT1SZShift  = 16
	tcrIRGN1Shift = 24
	tcrORGN1Shift = 26
	tcrSH1Shift   = 28
	tcrTG1Shift   = 30
	tcrIPSShift   = 32

	tcrWriteBackRWA = 0b01 // IRGN/ORGN: Write-Back Read/Write-Allocate Cacheable
	tcrInnerShare   = 0b11
	tcrTG0_4KiB     = 0b00
	tcrTG1_4KiB     = 0b10
	tcrIPS_40bit    = 0b010
)

// sctlrM, sctlrC, sctlrI enable the MMU, data cache, and instruction
// cache respectively. sctlrSPAN/sctlrEPAN are cleared so
// LoadUnprivilegedByte's ldtrb can still reach user pages from EL1.
const (
	sctlrM    = 1 << 0
	sctlrC    = 1 << 2
	sctlrI    = 1 << 12
	sctlrSPAN = 1 << 23
	sctlrEPAN = 1 << 57
)

// Init performs the kernel MMU bring-up sequence. It must run exactly
// once, before any high-half pointer is dereferenced.
func Init() {
	makeL0()
	makeL1(&tableL1Mem, vmm.Mem)
	makeL1(&tableL1Dev, vmm.Dev)

	// Attr0 = normal write-back non-transient read/write allocate.
	// Attr1 = device-nGnRnE.
	const mair = uint64(0xFF) | uint64(0x00)<<8
	asm.WriteMAIREL1(mair)

	tcr := uint64(16)<<tcrT0SZShift |
		uint64(16)<<tcrT1SZShift |
		uint64(tcrWriteBackRWA)<<tcrIRGN0Shift |
		uint64(tcrWriteBackRWA)<<tcrORGN0Shift |
		uint64(tcrInnerShare)<<tcrSH0Shift |
		uint64(tcrTG0_4KiB)<<tcrTG0Shift |
		uint64(tcrWriteBackRWA)<<tcrIRGN1Shift |
		uint64(tcrWriteBackRWA)<<tcrORGN1Shift |
		uint64(tcrInnerShare)<<tcrSH1Shift |
		uint64(tcrTG1_4KiB)<<tcrTG1Shift |
		uint64(tcrIPS_40bit)<<tcrIPSShift
	asm.WriteTCREL1(tcr)

	l0Phys := uint64(physOf(&tableL0))
	// CnP (bit0) left clear: this kernel never runs more than one core.
	asm.WriteTTBR0EL1(l0Phys)
	asm.WriteTTBR1EL1(l0Phys)

	asm.FlushTLBAndSync()

	sctlr := asm.ReadSCTLREL1()
	sctlr |= sctlrM | sctlrC | sctlrI
	sctlr &^= sctlrSPAN | sctlrEPAN
	asm.WriteSCTLREL1(sctlr)
	asm.ISB()
}

// EjectLowmem installs the high-half exception vector base and moves
// the stack pointer to its high-half alias, handing control off from
// the low-memory identity view to the normal post-boot view. Must run
// once, immediately after Init.
func EjectLowmem() {
	asm.WriteVBAREL1(uint64(uintptr(asm.VectorsAddr())) | layout.NormalHighMask)
	asm.RelocateSP(layout.NormalHighMask)
	uart.EjectLowmem(func(phys uintptr) uintptr {
		return phys | layout.DeviceHighMask
	})
}
