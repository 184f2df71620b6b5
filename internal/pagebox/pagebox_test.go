package pagebox

import (
	"testing"
	"unsafe"
)

type fakeSource struct {
	freed []struct {
		addr  uintptr
		pages int
	}
}

func (f *fakeSource) Free(addr uintptr, pages int) {
	f.freed = append(f.freed, struct {
		addr  uintptr
		pages int
	}{addr, pages})
}

func identityToVirt(p uintptr) unsafe.Pointer { return unsafe.Pointer(p) }

func backing(pages int) uintptr {
	buf := make([]byte, (pages+1)*PageSize)
	raw := uintptr(unsafe.Pointer(&buf[0]))
	return (raw + PageSize - 1) &^ (PageSize - 1)
}

func TestReleaseFreesOnceAndIsIdempotent(t *testing.T) {
	src := &fakeSource{}
	addr := backing(2)
	slice := New(src, addr, 2)

	slice.Release(identityToVirt)
	slice.Release(identityToVirt) // must be a no-op the second time

	if len(src.freed) != 1 {
		t.Fatalf("Free called %d times, want 1", len(src.freed))
	}
	if src.freed[0].addr != addr || src.freed[0].pages != 2 {
		t.Fatalf("Free(%#x, %d), want Free(%#x, 2)", src.freed[0].addr, src.freed[0].pages, addr)
	}
}

func TestReleasePoisonsBytesBeforeFreeing(t *testing.T) {
	src := &fakeSource{}
	addr := backing(1)
	slice := New(src, addr, 1)

	slice.Release(identityToVirt)

	p := (*[PageSize]byte)(identityToVirt(addr))
	for i, b := range p {
		if b != poisonByte {
			t.Fatalf("byte %d = %#x after Release, want poison byte %#x", i, b, poisonByte)
		}
	}
}

func TestLeakDetachesWithoutFreeingOrPoisoning(t *testing.T) {
	src := &fakeSource{}
	addr := backing(1)
	slice := New(src, addr, 1)
	p := (*[PageSize]byte)(identityToVirt(addr))
	p[0] = 0x42

	got := slice.Leak()
	if got != addr {
		t.Fatalf("Leak() = %#x, want %#x", got, addr)
	}
	if len(src.freed) != 0 {
		t.Fatalf("Leak must not call Free, but Free was called %d times", len(src.freed))
	}
	if p[0] != 0x42 {
		t.Fatalf("Leak must not poison backing bytes")
	}

	slice.Release(identityToVirt) // a release after Leak must also be a no-op
	if len(src.freed) != 0 {
		t.Fatalf("Release after Leak must not call Free")
	}
}
