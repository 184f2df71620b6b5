// Command init is BoldOS's one userland process: greet over Log,
// phy-map the device tree and hand the memory region it declares to
// the kernel via DownloadMoreRam, then run a VirtMap/VirtUnmap
// self-check before exiting.
package main

import (
	"unsafe"

	"github.com/Wazzaps/boldos/internal/dtb"
)

// Syscall numbers, matching internal/syscall.numbers.go exactly — the
// two sides of this ABI are compiled as entirely separate binaries
// (kernel and init), so there is no single Go package both can import
// without init pulling in kernel-only types (pmm, vmm, thread); the
// two small copies must stay in step. internal/dtb is different: it
// depends on nothing but unsafe, and reading the device tree is init's
// job here (the kernel only ever learns the memory region through
// DownloadMoreRam).
const (
	sysExit            = 0
	sysLog             = 1
	sysPhyMap          = 2
	sysVirtMap         = 3
	sysVirtUnmap       = 4
	sysDownloadMoreRam = 5
)

const flagReadWrite = 0b01

// dtbMapLen covers QEMU virt's DTB reservation: the tree sits at the
// start of RAM with the kernel loaded 512 KiB later, so 256 KiB is
// comfortably past any tree QEMU generates without reaching the image.
const dtbMapLen = 0x4_0000

// svc issues the raw `svc #0` trampoline (svc_arm64.s). Negative
// results are a sign-extended kernel errno.
func svc(num, arg0, arg1, arg2 uint64) int64

func logString(s string) {
	if len(s) == 0 {
		return
	}
	p := unsafe.Pointer(unsafe.StringData(s))
	svc(sysLog, uint64(uintptr(p)), uint64(len(s)), 0)
}

func writeByteAt(addr uintptr, v byte) {
	*(*byte)(unsafe.Pointer(addr)) = v
}

func readByteAt(addr uintptr) byte {
	return *(*byte)(unsafe.Pointer(addr))
}

func main() {
	for i := 0; i < 3; i++ {
		logString("Hello from usermode!\n")
	}

	downloadMoreRam()
	virtMapSelfCheck()
	virtUnmapRoundTrip()

	svc(sysExit, 0, 0, 0)
	for {
	}
}

// downloadMoreRam maps the device tree read-only, parses out the
// memory@ node, and hands the discovered region to the kernel.
func downloadMoreRam() {
	mapped := svc(sysPhyMap, dtb.BaseAddr, dtbMapLen, 0)
	if mapped < 0 {
		logString("init: PhyMap of the device tree failed\n")
		return
	}
	info, ok := dtb.Parse(uintptr(mapped))
	if !ok {
		logString("init: no device tree at the expected address\n")
		return
	}
	if info.Bootargs != "" {
		logString("init: bootargs: ")
		logString(info.Bootargs)
		logString("\n")
	}
	if !info.HasMemory {
		logString("init: device tree has no memory node\n")
		return
	}
	if svc(sysDownloadMoreRam, uint64(info.MemoryBase), uint64(info.MemorySize), 0) < 0 {
		logString("init: DownloadMoreRam failed\n")
		return
	}
	logString("init: downloaded more RAM\n")
}

// virtMapSelfCheck maps 10 MiB of fresh RAM and write/read-verifies its
// first and last byte.
func virtMapSelfCheck() {
	const checkSize = 10 * 1024 * 1024
	result := svc(sysVirtMap, checkSize, flagReadWrite, 0)
	if result < 0 {
		logString("init: VirtMap failed\n")
		return
	}
	base := uintptr(result)

	writeByteAt(base, 0xaa)
	writeByteAt(base+checkSize-1, 0xbb)

	if readByteAt(base) != 0xaa || readByteAt(base+checkSize-1) != 0xbb {
		logString("init: VirtMap self-check FAILED\n")
	} else {
		logString("init: VirtMap self-check ok\n")
	}
}

// virtUnmapRoundTrip maps a small window, unmaps it, and checks a
// fresh equal-sized VirtMap reuses the freed virtual window.
func virtUnmapRoundTrip() {
	const size = 0x2000
	first := svc(sysVirtMap, size, flagReadWrite, 0)
	if first < 0 {
		logString("init: VirtUnmap round-trip: first map failed\n")
		return
	}
	if svc(sysVirtUnmap, uint64(first), size, 0) < 0 {
		logString("init: VirtUnmap failed\n")
		return
	}
	second := svc(sysVirtMap, size, flagReadWrite, 0)
	if second != first {
		logString("init: VirtUnmap round-trip FAILED: window not reused\n")
		return
	}
	logString("init: VirtUnmap round-trip ok\n")
}
