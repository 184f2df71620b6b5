package bitmap

import "testing"

func TestAllocMarksAndFindHoleSkipsIt(t *testing.T) {
	var b Bitmap
	idx, ok := b.Alloc(3)
	if !ok || idx != 0 {
		t.Fatalf("Alloc(3) = (%d, %v), want (0, true)", idx, ok)
	}
	next, ok := b.FindHole(1)
	if !ok || next < idx+3 {
		t.Fatalf("FindHole(1) = (%d, %v), want index >= %d", next, ok, idx+3)
	}
}

func TestMarkAllocatedThenFreeRestoresBitmap(t *testing.T) {
	var b Bitmap
	b.MarkAllocated(10, 5)
	b.Free(10, 5)
	var want Bitmap
	if b != want {
		t.Fatalf("bitmap not restored to zero value after mark+free")
	}
}

func TestMarkAllocatedDoubleAllocPanics(t *testing.T) {
	var b Bitmap
	b.MarkAllocated(0, 4)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on double alloc")
		}
	}()
	b.MarkAllocated(2, 4)
}

func TestFreeDoubleFreePanics(t *testing.T) {
	var b Bitmap
	b.MarkAllocated(0, 4)
	b.Free(0, 4)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on double free")
		}
	}()
	b.Free(0, 4)
}

func TestMoveBitRangeForwardPreservesValuesAndLeavesRestUntouched(t *testing.T) {
	var b Bitmap
	b.MarkAllocated(5, 10) // bits [5,15) set
	b.MarkAllocated(100, 1)
	b.MoveBitRangeForward(5, 20, 10)
	for i := 20; i < 30; i++ {
		if !b.bit(i) {
			t.Fatalf("bit %d should be set after move", i)
		}
	}
	if !b.bit(100) {
		t.Fatalf("unrelated bit 100 should be untouched")
	}
}

func TestMoveBitRangeForwardOverlapping(t *testing.T) {
	var b Bitmap
	b.MarkAllocated(0, 8) // 11111111
	b.MoveBitRangeForward(0, 4, 8)
	for i := 4; i < 12; i++ {
		if !b.bit(i) {
			t.Fatalf("bit %d should be set after overlapping move", i)
		}
	}
}

func TestZeroBitRangeClearsOnlyTargetRange(t *testing.T) {
	var b Bitmap
	b.MarkAllocated(0, 200)
	b.ZeroBitRange(60, 10) // spans a 64-bit cell boundary
	for i := 60; i < 70; i++ {
		if b.bit(i) {
			t.Fatalf("bit %d should be cleared", i)
		}
	}
	if !b.bit(59) || !b.bit(70) {
		t.Fatalf("bits adjacent to the cleared range should be untouched")
	}
}

func TestZeroBitRangeNoOpOnZeroLength(t *testing.T) {
	var b Bitmap
	b.MarkAllocated(0, 64)
	b.ZeroBitRange(10, 0)
	for i := 0; i < 64; i++ {
		if !b.bit(i) {
			t.Fatalf("bit %d should remain set after a zero-length ZeroBitRange", i)
		}
	}
}

func TestZeroBitRangeFullCellAligned(t *testing.T) {
	var b Bitmap
	b.MarkAllocated(0, 128)
	b.ZeroBitRange(64, 64)
	for i := 64; i < 128; i++ {
		if b.bit(i) {
			t.Fatalf("bit %d should be cleared", i)
		}
	}
	for i := 0; i < 64; i++ {
		if !b.bit(i) {
			t.Fatalf("bit %d should remain set", i)
		}
	}
}
