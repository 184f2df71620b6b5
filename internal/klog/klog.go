// Package klog is the kernel's logging surface. There are two levels
// rather than a full leveled-logging library: Boot, safe to call before
// the heap exists (no allocation, no formatting machinery), and
// Info/Fatalf for everything after kmain has a working allocator.
package klog

import (
	"fmt"

	"github.com/Wazzaps/boldos/asm"
	"github.com/Wazzaps/boldos/internal/uart"
)

func haltForever() {
	asm.WFILoop()
}

// Boot writes s verbatim to the UART. Safe to call from the earliest
// boot code, before BSS is even guaranteed zeroed on some ports — it
// touches no package-level state of its own.
func Boot(s string) {
	uart.PutString(s)
}

// BootBytes writes b verbatim to the UART, allocation-free — the Log
// syscall's sink, where the bytes are already in a kernel buffer and
// a string conversion would be a copy for nothing.
func BootBytes(b []byte) {
	uart.PutBytes(b)
}

// Bootf formats with fmt.Sprintf and writes the result. Unlike Boot it
// allocates, so it is not safe before the heap exists.
func Bootf(format string, args ...any) {
	uart.PutString(fmt.Sprintf(format, args...))
}

// Info logs a line. Subsystem-prefix indentation ("  mmu: ...") is a
// call-site convention, not applied here.
func Info(format string, args ...any) {
	uart.PutString(fmt.Sprintf(format, args...))
	uart.PutByte('\n')
}

// Fatalf logs a line prefixed "[PANIC]: " and halts the core forever.
func Fatalf(format string, args ...any) {
	uart.PutString("[PANIC]: ")
	uart.PutString(fmt.Sprintf(format, args...))
	uart.PutByte('\n')
	haltForever()
}

// DumpHex prints b as hex, 4 bytes per group and 32 per line. Not
// wired to anything today; a ready-made tool for the next debugging
// session.
func DumpHex(b []byte) {
	for i, by := range b {
		uart.PutString(fmt.Sprintf("%02x", by))
		if i%4 == 3 {
			uart.PutByte(' ')
		}
		if i%32 == 31 {
			uart.PutByte('\n')
		}
	}
	uart.PutByte('\n')
}
