// Package trap implements the exception-vector dispatch: deciding
// synchronous-SVC from everything else, and handing a synchronous SVC
// off to internal/syscall. The vector table and entry stubs themselves
// are architecture-specific trampolines (kernel/entry_arm64.s) — the
// contract this package owns is the ExceptionContext layout and that
// dispatch restores every GPR observable to user code.
package trap

import (
	"github.com/Wazzaps/boldos/internal/klog"
	"github.com/Wazzaps/boldos/internal/syscall"
)

// ExceptionContext is the fixed register-save layout the vector stubs
// write to the kernel stack before calling into Go, and read back
// before eret. The assembly trampoline addresses fields by fixed
// offset; field order here is the layout contract.
type ExceptionContext struct {
	Gpr  [30]uint64 // x0..x29
	Lr   uint64     // x30
	Pc   uint64     // ELR_EL1 at entry
	Spsr uint64     // SPSR_EL1 at entry
	Sp   uint64     // SP_EL0 at entry
}

// svcEsr is ESR_EL1's value for a synchronous exception caused by
// `svc #0` from EL0.
const svcEsr = 0x5600_0000

// HandleSynchronous is called by the entry stub for every synchronous
// exception, with esr the value ESR_EL1 held at entry and e the saved
// context. An SVC from EL0 dispatches to internal/syscall; anything
// else is fatal.
//
//go:nosplit
func HandleSynchronous(esr uint64, e *ExceptionContext, far uint64) {
	if esr == svcEsr {
		result := syscall.Dispatch(syscall.Args{
			Num:  e.Gpr[8],
			Arg0: e.Gpr[0],
			Arg1: e.Gpr[1],
			Arg2: e.Gpr[2],
		})
		e.Gpr[0] = result
		return
	}
	fatal("synchronous exception", esr, e, far)
}

// HandleIRQ exists only to give the vector table a symbol to jump to;
// IRQs stay masked and unhandled in this design.
//
//go:nosplit
func HandleIRQ(e *ExceptionContext) {
	fatal("unexpected IRQ", 0, e, 0)
}

func fatal(reason string, esr uint64, e *ExceptionContext, far uint64) {
	klog.Fatalf("%s: esr=0x%x elr=0x%x spsr=0x%x far=0x%x sp=0x%x",
		reason, esr, e.Pc, e.Spsr, far, e.Sp)
}
