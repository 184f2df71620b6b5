// Package uart is a minimal PL011 console port: a single write-only
// byte register, nothing else. No ring buffer, no interrupts — this
// kernel has no IRQ consumer for UART input and no concurrent writers
// to buffer against.
package uart

import "github.com/Wazzaps/boldos/asm"

// physAddr0 is QEMU virt's PL011 data register.
const physAddr0 = 0x0900_0000

// addr0 is the byte port's address as actually accessed: the low
// physical address before the kernel's MMU comes up, then
// eject_lowmem's high device-half alias afterward.
var addr0 uintptr = physAddr0

// PutByte writes a single byte to the UART's data register.
func PutByte(b byte) {
	asm.MmioWrite8(addr0, b)
}

// PutString writes s verbatim, byte by byte, with no newline appended.
func PutString(s string) {
	for i := 0; i < len(s); i++ {
		PutByte(s[i])
	}
}

// PutBytes writes b verbatim.
func PutBytes(b []byte) {
	for _, c := range b {
		PutByte(c)
	}
}

// EjectLowmem repoints the UART port at its device high-half virtual
// alias, called once from internal/mmu.EjectLowmem after the MMU is
// live — MMIO wants the device-attribute view, not the cacheable
// identity alias boot code used.
func EjectLowmem(deviceVirt func(phys uintptr) uintptr) {
	addr0 = deviceVirt(physAddr0)
}
