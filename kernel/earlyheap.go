// Package kernel wires together every internal/ package into the boot
// handover pipeline: _start → clear BSS → KmainNommu → MMU on → kmain
// → launch the first user process → service traps. kmain is not entered
// through a high-half alias: it keeps executing through the low-half
// identity mapping, and only the vector base and stack pointer move to
// the high half.
package kernel

import (
	"unsafe"

	"github.com/Wazzaps/boldos/internal/pagebox"
)

const pageSize = pagebox.PageSize

// earlyHeapSize is 1 MiB: enough to bootstrap page tables and the
// first thread before DownloadMoreRam ever runs.
const earlyHeapSize = 1024 * 1024
const earlyHeapPages = earlyHeapSize / pageSize

// earlyHeapBacking is oversized by one page so earlyHeapBase can round
// up to a page boundary at runtime; Go has no alignment attribute for
// a plain package-level array.
var earlyHeapBacking [earlyHeapSize + pageSize]byte

// earlyHeapBase returns the page-aligned start of the early heap.
func earlyHeapBase() uintptr {
	raw := uintptr(unsafe.Pointer(&earlyHeapBacking[0]))
	return (raw + pageSize - 1) &^ (pageSize - 1)
}
