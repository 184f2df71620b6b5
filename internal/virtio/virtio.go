// Package virtio probes VirtIO MMIO transport windows: signature and
// version check, device/vendor identification, and the first two steps
// of the status handshake. Nothing in this kernel calls Probe yet —
// there is no PCI/MMIO bus walk — so this package exists to give a
// future device-discovery pass its entry point.
package virtio

import "github.com/Wazzaps/boldos/asm"

const (
	regMagic        = 0x000
	regVersion      = 0x004
	regDeviceID     = 0x008
	regVendorID     = 0x00C
	regStatus       = 0x070

	magicValue    = 0x74726976 // "virt"
	supportedVers = 0x1

	statusAcknowledge = 0x1
	statusDriver      = 0x2
)

// Dev is a single VirtIO MMIO transport window.
type Dev struct {
	base uintptr
}

// Info reports the identifiers read out of the device's device-id and
// vendor-id registers.
type Info struct {
	DeviceID uint32
	VendorID uint32
}

// Probe validates the VirtIO MMIO signature at base and reads its
// device/vendor IDs. ok is false if the signature or version doesn't
// match the one transport version this kernel was written against.
func Probe(base uintptr) (Dev, Info, bool) {
	d := Dev{base: base}
	if d.readU32(regMagic) != magicValue {
		return Dev{}, Info{}, false
	}
	if d.readU32(regVersion) != supportedVers {
		return Dev{}, Info{}, false
	}
	info := Info{
		DeviceID: d.readU32(regDeviceID),
		VendorID: d.readU32(regVendorID),
	}
	return d, info, true
}

func (d Dev) readU32(offset uintptr) uint32 {
	return asm.MmioRead32(d.base + offset)
}

func (d Dev) writeU32(offset uintptr, v uint32) {
	asm.MmioWrite32(d.base+offset, v)
}

// NinePDriver is the 9p-transport driver stub — it acknowledges the
// device and claims it, then goes no further. There is no filesystem
// behind it to serve.
type NinePDriver struct {
	dev Dev
}

// NewNinePDriver wraps an already-probed Dev.
func NewNinePDriver(dev Dev) NinePDriver {
	return NinePDriver{dev: dev}
}

// Init writes the acknowledge/driver status bits, the first two steps
// of the VirtIO device status negotiation. It never proceeds to
// feature negotiation — there's no queue implementation behind it.
func (n NinePDriver) Init() {
	n.dev.writeU32(regStatus, statusAcknowledge)
	n.dev.writeU32(regStatus, statusAcknowledge|statusDriver)
}
