// Package bitmap implements a packed bit-vector with the hole-search,
// mark/free, range-move and range-zero primitives the physical page
// allocator (internal/pmm) is built on.
//
// The cell count is a package constant rather than a type parameter:
// the bitmap lives in BSS before any allocator exists, so its size has
// to be a compile-time constant either way.
package bitmap

// NumCells is the number of 64-bit words backing a Bitmap, giving
// NumCells*64 trackable page slots. 16384 cells track 2^20 pages, i.e.
// 4 GiB of RAM at the kernel's 4 KiB page size — comfortably above the
// default QEMU `virt` RAM size. This is a build-time ceiling on what
// the bitmap can track, not an assumption about how much RAM exists;
// the allocator discovers that at runtime.
const NumCells = 16384

// BitCapacity is the number of slots a Bitmap can track.
const BitCapacity = NumCells * 64

// Bitmap is a fixed-capacity bit-vector. The zero value is a bitmap with
// every bit clear.
type Bitmap struct {
	cells [NumCells]uint64
}

// BitCapacity returns the number of slots this bitmap can track.
func (b *Bitmap) BitCapacity() int { return BitCapacity }

// FindHole returns the lowest index i such that bits [i, i+n) are all
// clear, or false if no such run exists. n == 0 always finds index 0.
func (b *Bitmap) FindHole(n int) (int, bool) {
	return b.FindHoleWithin(n, BitCapacity)
}

// FindHoleWithin is FindHole restricted to bits [0, limit). The page
// allocator tracks a RAM window that is usually smaller than the
// bitmap's full backing capacity; a hole past the window would be a run
// of frames that don't physically exist.
func (b *Bitmap) FindHoleWithin(n, limit int) (int, bool) {
	if n == 0 {
		return 0, true
	}
	if limit > BitCapacity {
		limit = BitCapacity
	}
	holeStart := 0
	holeLen := 0
	for i := 0; i < limit; i++ {
		if b.bit(i) {
			holeLen = 0
			continue
		}
		if holeLen == 0 {
			holeStart = i
		}
		holeLen++
		if holeLen == n {
			return holeStart, true
		}
	}
	return 0, false
}

// Alloc finds a hole of n clear bits and marks it allocated, returning its
// index. It returns false if no hole of that size exists.
func (b *Bitmap) Alloc(n int) (int, bool) {
	idx, ok := b.FindHole(n)
	if !ok {
		return 0, false
	}
	b.MarkAllocated(idx, n)
	return idx, true
}

// MarkAllocated sets bits [i, i+n). It panics if any bit in the range is
// already set — a double-allocation is a programmer error, not a
// recoverable condition.
func (b *Bitmap) MarkAllocated(i, n int) {
	for k := 0; k < n; k++ {
		idx := i + k
		if b.bit(idx) {
			panic("bitmap: double alloc")
		}
		b.setBit(idx)
	}
}

// Free clears bits [i, i+n). It panics if any bit in the range is already
// clear (double-free).
func (b *Bitmap) Free(i, n int) {
	for k := 0; k < n; k++ {
		idx := i + k
		if !b.bit(idx) {
			panic("bitmap: double free")
		}
		b.clearBit(idx)
	}
}

// MoveBitRangeForward copies bits [src, src+n) to [dst, dst+n), preserving
// values. Only src <= dst is supported; the copy runs in reverse order so
// overlapping ranges (dst < src+n) are safe.
func (b *Bitmap) MoveBitRangeForward(src, dst, n int) {
	if src > dst {
		panic("bitmap: MoveBitRangeForward requires src <= dst")
	}
	for k := n - 1; k >= 0; k-- {
		if b.bit(src + k) {
			b.setBit(dst + k)
		} else {
			b.clearBit(dst + k)
		}
	}
}

// ZeroBitRange clears bits [i, i+n) without disturbing any bit outside
// that range, including bits sharing a cell with the range's edges.
func (b *Bitmap) ZeroBitRange(i, n int) {
	if n == 0 {
		return
	}
	end := i + n
	startCell := i / 64
	endCell := (end - 1) / 64

	if startCell == endCell {
		b.cells[startCell] &^= rangeMask(i%64, (end-1)%64+1)
		return
	}

	// Prefix: clear from i to the end of startCell.
	b.cells[startCell] &^= rangeMask(i%64, 64)
	// Whole cells in the middle.
	for c := startCell + 1; c < endCell; c++ {
		b.cells[c] = 0
	}
	// Suffix: clear from the start of endCell up to end.
	suffixBits := end % 64
	if suffixBits == 0 {
		b.cells[endCell] = 0
	} else {
		b.cells[endCell] &^= rangeMask(0, suffixBits)
	}
}

// rangeMask returns a mask with bits [lo, hi) set within a 64-bit word.
func rangeMask(lo, hi int) uint64 {
	if lo >= hi {
		return 0
	}
	var mask uint64 = ^uint64(0)
	mask >>= uint(64 - (hi - lo))
	mask <<= uint(lo)
	return mask
}

// IsSet reports whether bit i is allocated. Used by callers that need to
// walk the whole bitmap (pmm's free-page diagnostic sweep), not by the
// allocation/free paths themselves.
func (b *Bitmap) IsSet(i int) bool {
	return b.bit(i)
}

func (b *Bitmap) bit(i int) bool {
	return b.cells[i/64]&(1<<uint(i%64)) != 0
}

func (b *Bitmap) setBit(i int) {
	b.cells[i/64] |= 1 << uint(i%64)
}

func (b *Bitmap) clearBit(i int) {
	b.cells[i/64] &^= 1 << uint(i%64)
}
