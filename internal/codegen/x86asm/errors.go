package x86asm

import "jitcore/internal/jitrt"

func errUnboundLabel(l label) error {
	return jitrt.NewInternal("x86asm: jump to unbound label %d", l)
}
