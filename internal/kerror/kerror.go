// Package kerror defines the kernel's allocation-free error values.
//
// A kernel has no heap before the page allocator exists and, even after, a
// syscall return path has no business allocating to report a failure. Every
// value here is either a constant or a plain struct.
package kerror

import "fmt"

// Kind identifies a class of kernel error.
type Kind int32

const (
	// AlreadyExists is returned when a mapping or resource collides with
	// one that already exists. Reserved per spec: most call sites still
	// assert instead of returning it (see internal/vmm).
	AlreadyExists Kind = -1
	// OOM is returned when the page allocator or a virtual window search
	// cannot satisfy a request.
	OOM Kind = -2
)

// KError is the kernel's error value. It carries a Kind plus, for the
// Unknown case, the raw code that produced it.
type KError struct {
	Kind    Kind
	Unknown int32 // valid only when Kind is neither AlreadyExists nor OOM
}

// New wraps a Kind into a KError.
func New(k Kind) KError { return KError{Kind: k} }

// NewUnknown wraps an arbitrary negative code into a KError.
func NewUnknown(code int32) KError { return KError{Kind: Kind(code), Unknown: code} }

func (e KError) Error() string {
	switch e.Kind {
	case AlreadyExists:
		return "already exists"
	case OOM:
		return "out of memory"
	default:
		return fmt.Sprintf("unknown kernel error (%d)", int32(e.Kind))
	}
}

// Errno encodes e as the negative i32 a syscall places in the low 32
// bits of x0.
func (e KError) Errno() int32 {
	if e.Kind == AlreadyExists || e.Kind == OOM {
		return int32(e.Kind)
	}
	return e.Unknown
}
