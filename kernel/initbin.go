package kernel

import _ "embed"

// initBinary is the userland init process image, loaded verbatim at
// layout.InitPC by internal/usermode.Start. initbin/init.bin is
// produced from cmd/init by a separate build step (cross-compiled for
// GOARCH=arm64 with cgo disabled, then objcopy'd to a flat binary)
// that is not part of this module's own build — go:embed only ever
// sees the already-built artifact.
//
//go:embed initbin/init.bin
var initBinary []byte
