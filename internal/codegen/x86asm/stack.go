package x86asm

import "jitcore/internal/ir"

// frame tracks the abstract, growing-downward stack this code generator
// spills every JIT-IR value to: slot assignment is a simple bump allocator,
// one 8-byte-aligned slot per defined SSA value, with no attempt at reuse
// or register allocation (see the "spill everywhere" note in regs.go).
type frame struct {
	slots map[ir.InstIdx]int32
	size  int32
}

func newFrame() *frame {
	return &frame{slots: make(map[ir.InstIdx]int32)}
}

// slotFor returns the RBP-relative offset assigned to idx, allocating one
// on first use.
func (f *frame) slotFor(idx ir.InstIdx) int32 {
	if off, ok := f.slots[idx]; ok {
		return off
	}
	f.size += 8
	off := -f.size
	f.slots[idx] = off
	return off
}

// offsetOf returns idx's slot offset if one has already been allocated.
func (f *frame) offsetOf(idx ir.InstIdx) (int32, bool) {
	off, ok := f.slots[idx]
	return off, ok
}

// reserve bumps the frame by one slot not tied to any SSA value, for
// fixed, well-known spills like the trace-inputs struct pointer.
func (f *frame) reserve() int32 {
	f.size += 8
	return -f.size
}

// alignedSize rounds the frame up to a multiple of 16 bytes, matching the
// System V requirement that RSP be 16-byte aligned immediately before a
// call instruction: on entry the return address leaves RSP at 8 mod 16,
// the prologue's `push rbp` brings it back to 0 mod 16, and subtracting a
// multiple of 16 keeps it there.
func alignedSize(size int32) int32 {
	return (size + 15) &^ 15
}
