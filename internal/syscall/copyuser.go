package syscall

import (
	"github.com/Wazzaps/boldos/asm"
	"github.com/Wazzaps/boldos/internal/layout"
)

// copyFromUser fills dst[0:len(dst)] with bytes read from userVaddr,
// one unprivileged load (ldtrb) at a time, so the access goes through
// the user translation regime rather than the kernel's. The length is
// truncated to the kernel-side buffer before this is called; this
// function trusts its caller's bound.
func copyFromUser(userVaddr uintptr, dst []byte) {
	for i := range dst {
		dst[i] = asm.LoadUnprivilegedByte(userVaddr + uintptr(i))
	}
}

// clampLogLen truncates a user-supplied length to the fixed kernel-side
// Log buffer; longer buffers are truncated, not rejected.
func clampLogLen(n uint64) int {
	if n > layout.LogMaxBytes {
		return layout.LogMaxBytes
	}
	return int(n)
}
