package kernel

import (
	"unsafe"

	"github.com/Wazzaps/boldos/internal/trap"
)

// dispatchSync and dispatchIRQ are _vectors's Go-level landing pads
// (entry_arm64.s's sync_entry/irq_entry), called with the
// freshly-built trap.ExceptionContext still live on the kernel stack.
// They live in this package rather than internal/trap itself only
// because _start/_vectors need a same-package `·name(SB)` reference to
// call into Go; the actual dispatch logic is internal/trap's.

//go:nosplit
func dispatchSync(ctx unsafe.Pointer, esr, far uint64) {
	trap.HandleSynchronous(esr, (*trap.ExceptionContext)(ctx), far)
}

//go:nosplit
func dispatchIRQ(ctx unsafe.Pointer) {
	trap.HandleIRQ((*trap.ExceptionContext)(ctx))
}
