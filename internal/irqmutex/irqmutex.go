// Package irqmutex provides a lock that also masks IRQs for its
// duration. It protects data that both thread code and the exception
// vector's IRQ path can touch — the physical allocator is the one
// user in this kernel; page tables are not guarded by it.
//
// Restoring DAIF happens in Release, which callers must invoke
// explicitly; Lock returns a *Guard specifically so `defer g.Release()`
// reads the same way a scope guard would.
package irqmutex

import "github.com/Wazzaps/boldos/asm"

// Mutex guards a value of type T behind an IRQ-masked critical section.
// There is no true multi-core contention on this single-core target;
// the mutex exists to make a thread and the IRQ handler mutually
// exclusive, not to arbitrate between cores.
type Mutex[T any] struct {
	value T
}

// New wraps value in a Mutex.
func New[T any](value T) *Mutex[T] {
	return &Mutex[T]{value: value}
}

// Guard is the scoped handle returned by Lock. Deref via Get/Set, or
// take Ptr for in-place mutation; release it exactly once via Release.
type Guard[T any] struct {
	m         *Mutex[T]
	prevState uint64
	released  bool
}

// Lock masks IRQs and returns a guard giving exclusive access to the
// wrapped value. The caller must call Release on every exit path,
// typically via defer immediately after Lock returns.
func (m *Mutex[T]) Lock() *Guard[T] {
	prev := asm.DisableIRQs()
	return &Guard[T]{m: m, prevState: prev}
}

// Get returns the current value.
func (g *Guard[T]) Get() T { return g.m.value }

// Set stores a new value.
func (g *Guard[T]) Set(v T) { g.m.value = v }

// Ptr returns a pointer to the guarded value, for callers that need to
// mutate it in place (the physical allocator's bitmap, for one).
func (g *Guard[T]) Ptr() *T { return &g.m.value }

// Release restores the DAIF state Lock captured. Calling it more than
// once is a no-op.
func (g *Guard[T]) Release() {
	if g.released {
		return
	}
	g.released = true
	asm.WriteDAIF(g.prevState)
}
