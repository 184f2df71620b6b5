// rtboot gives _start (entry_arm64.s) something to set the arm64 Go
// ABI's "g" register (R28) to before the first ordinary — non-NOSPLIT,
// allocating, generics- and defer-using — Go call on the boot path.
// Without it, R28 holds whatever garbage is in the register at reset,
// and the first such call (KmainNommu's own call to mmu.Init) faults
// immediately on its morestack preamble's read of g.stackguard0.
//
// A kernel with no host OS underneath still links the real Go runtime,
// and the real runtime still expects getg() (R28) to point at a valid
// g linked to a valid m, even for code that never spawns a second
// goroutine. This bootstrap links directly onto the real
// runtime.g0/runtime.m0 storage via go:linkname — the same pair rt0_go
// wires up on a hosted target — rather than building shadow structs at
// addresses of its own choosing. No TPIDR-based g save/restore is
// needed: this kernel never calls into C, so save_g/load_g — the only
// compiled code that ever reads the TLS register for g — are never
// invoked.
//
// What this does NOT do: build a P, an mcache, or the write-barrier
// buffer, which is what makes the real mallocgc path succeed —
// internal/klog's fmt.Sprintf and every generic container ultimately
// need it. Wiring those means poking byte offsets into unexported
// runtime structs that shift between Go point releases, and there is
// no way to state them here without a pinned toolchain to verify
// against. Left undone and tracked as a known gap (see DESIGN.md)
// rather than faked.

package kernel

import "unsafe"

// runtimeStack/runtimeG/runtimeM mirror only the leading fields of the
// real runtime's g/m structs (runtime/runtime2.go) that bootstrapRuntime
// touches: stack bounds, the two stack guards the morestack preamble
// checks, and the g<->m back-pointers. This prefix has been stable since
// arm64 got a register-based g; fields after it are the point-release-
// specific part deliberately not mirrored, for the reason noted above.
type runtimeStack struct {
	lo uintptr
	hi uintptr
}

type runtimeG struct {
	stack       runtimeStack
	stackguard0 uintptr
	stackguard1 uintptr
	_panic      unsafe.Pointer
	_defer      unsafe.Pointer
	m           *runtimeM
}

type runtimeM struct {
	g0 *runtimeG
}

// rtG0/rtM0 are linknamed onto the real runtime's own g0/m0 (not a
// shadow copy parked at some address this kernel picked): every ordinary
// Go function compiled into this kernel was compiled against the real
// runtime and reads its current g through R28, so the only g that makes
// its code self-consistent is the runtime's own.
//
//go:linkname rtG0 runtime.g0
var rtG0 runtimeG

//go:linkname rtM0 runtime.m0
var rtM0 runtimeM

// bootStack is this kernel's g0 stack. A linker-script `_stack_top`
// symbol would work for _start alone, but g0's stack bounds need a
// size this code can state, so the boot stack is carved out of BSS
// instead — the same way earlyheap.go's earlyHeapBacking carves the
// early heap out of BSS rather than assuming a linker-provided extent.
const bootStackSize = 64 * 1024

var bootStack [bootStackSize]byte

// bootstrapRuntime wires rtG0/rtM0 into a self-consistent pair: stack
// bounds covering bootStack, a guard leaving headroom below the lowest
// address morestack's preamble should ever let SP reach, and the g<->m
// back-pointers getg().m (and anything walking back from m to g0)
// assumes exist. It runs with g (R28) still unset — every field it
// touches is plain package-level memory, not goroutine-relative — and
// _start sets R28 immediately after this call returns.
//
//go:nosplit
func bootstrapRuntime() {
	lo := uintptr(unsafe.Pointer(&bootStack[0]))
	hi := lo + bootStackSize
	rtG0.stack.lo = lo
	rtG0.stack.hi = hi
	rtG0.stackguard0 = lo + 1024
	rtG0.stackguard1 = lo + 1024
	rtG0.m = &rtM0
	rtM0.g0 = &rtG0
}
