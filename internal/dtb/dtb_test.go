package dtb

import (
	"encoding/binary"
	"testing"
	"unsafe"
)

// fdtBuilder assembles a minimal flattened device tree by hand, just
// enough structure for Parse to exercise: a memory node's reg property
// and a chosen/bootargs string, matching the shape QEMU's `virt`
// machine emits.
type fdtBuilder struct {
	strings []byte
	strOff  map[string]uint32
	structs []byte
}

func newFDTBuilder() *fdtBuilder {
	return &fdtBuilder{strOff: map[string]uint32{}}
}

func (b *fdtBuilder) putU32(v uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	b.structs = append(b.structs, buf[:]...)
}

func (b *fdtBuilder) align4() {
	for len(b.structs)%4 != 0 {
		b.structs = append(b.structs, 0)
	}
}

func (b *fdtBuilder) beginNode(name string) {
	b.putU32(fdtBeginNode)
	b.structs = append(b.structs, name...)
	b.structs = append(b.structs, 0)
	b.align4()
}

func (b *fdtBuilder) endNode() {
	b.putU32(fdtEndNode)
}

func (b *fdtBuilder) nameOffset(name string) uint32 {
	if off, ok := b.strOff[name]; ok {
		return off
	}
	off := uint32(len(b.strings))
	b.strings = append(b.strings, name...)
	b.strings = append(b.strings, 0)
	b.strOff[name] = off
	return off
}

func (b *fdtBuilder) prop(name string, value []byte) {
	b.putU32(fdtProp)
	b.putU32(uint32(len(value)))
	b.putU32(b.nameOffset(name))
	b.structs = append(b.structs, value...)
	b.align4()
}

// build lays out: header | struct block | strings block, and returns
// the whole image plus the struct/strings offsets baked into the
// header.
func (b *fdtBuilder) build() []byte {
	b.putU32(fdtEnd)

	const headerSize = 40
	structOff := uint32(headerSize)
	stringsOff := structOff + uint32(len(b.structs))

	img := make([]byte, stringsOff+uint32(len(b.strings)))
	binary.BigEndian.PutUint32(img[0:4], fdtMagic)
	binary.BigEndian.PutUint32(img[4:8], uint32(len(img)))
	binary.BigEndian.PutUint32(img[8:12], structOff)
	binary.BigEndian.PutUint32(img[12:16], stringsOff)
	copy(img[structOff:], b.structs)
	copy(img[stringsOff:], b.strings)
	return img
}

func beU64(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return buf[:]
}

func fakeTree() []byte {
	b := newFDTBuilder()
	b.beginNode("")
	b.beginNode("memory@40000000")
	reg := append(beU64(0x4000_0000), beU64(0x4000_0000)...) // base, size
	b.prop("reg", reg)
	b.endNode()
	b.beginNode("chosen")
	b.prop("bootargs", append([]byte("console=ttyAMA0"), 0))
	b.endNode()
	b.endNode()
	return b.build()
}

func imgPhysAddr(img []byte) uintptr {
	return uintptr(unsafe.Pointer(&img[0]))
}

func TestParseExtractsMemoryAndBootargs(t *testing.T) {
	img := fakeTree()
	info, ok := Parse(imgPhysAddr(img))
	if !ok {
		t.Fatalf("Parse reported !ok for a well-formed tree")
	}
	if !info.HasMemory {
		t.Fatalf("HasMemory = false, want true")
	}
	if info.MemoryBase != 0x4000_0000 {
		t.Fatalf("MemoryBase = %#x, want %#x", info.MemoryBase, 0x4000_0000)
	}
	if info.MemorySize != 0x4000_0000 {
		t.Fatalf("MemorySize = %#x, want %#x", info.MemorySize, 0x4000_0000)
	}
	if info.Bootargs != "console=ttyAMA0" {
		t.Fatalf("Bootargs = %q, want %q", info.Bootargs, "console=ttyAMA0")
	}
}

func TestParseRejectsBadMagic(t *testing.T) {
	img := fakeTree()
	img[0] = 0 // corrupt the magic
	_, ok := Parse(imgPhysAddr(img))
	if ok {
		t.Fatalf("Parse reported ok for a tree with a corrupted magic")
	}
}

func TestParseWithoutMemoryNodeLeavesHasMemoryFalse(t *testing.T) {
	b := newFDTBuilder()
	b.beginNode("")
	b.beginNode("chosen")
	b.prop("bootargs", append([]byte("quiet"), 0))
	b.endNode()
	b.endNode()
	img := b.build()

	info, ok := Parse(imgPhysAddr(img))
	if !ok {
		t.Fatalf("Parse reported !ok for a well-formed tree with no memory node")
	}
	if info.HasMemory {
		t.Fatalf("HasMemory = true, want false when no memory@ node is present")
	}
	if info.Bootargs != "quiet" {
		t.Fatalf("Bootargs = %q, want %q", info.Bootargs, "quiet")
	}
}
