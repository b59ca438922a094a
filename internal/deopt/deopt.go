// Package deopt implements the runtime routine a failing Guard calls to
// unwind a compiled trace back into the AOT-compiled interpreter: it reads
// the saved register file and the still-live JIT stack frame, reconstructs
// one or more AOT frames on a heap buffer, and hands off to a small
// assembly trampoline that splices that buffer onto the real stack and
// resumes AOT execution.
package deopt

import (
	"encoding/binary"
	"unsafe"

	"jitcore/internal/jitrt"
	"jitcore/internal/stackmap"
)

// regFileBytes is the size, in bytes, of the saved general-purpose and
// floating-point register files the guard stub pushes before calling in:
// 16 64-bit GP registers followed by 16 64-bit-wide FP register slots.
const regFileBytes = 16*8 + 16*8

// DeoptInfo is the per-guard record the code generator emits: enough to
// find every AOT frame a guard failure must reconstruct, and the physical
// location (a stack slot in the still-live JIT frame) of every JIT value
// those frames' stackmaps need.
type DeoptInfo struct {
	GuardID uint64

	// StackmapIDs is the active AOT call stack at the guard point, bottom
	// frame (index 0, already resident on the real machine stack at
	// frame_addr) first, innermost (most recently inlined) last.
	StackmapIDs []uint64

	// LiveSlots holds, for each live value named by the concatenation of
	// every frame's stackmap live-variable list (in that order), the
	// RBP-relative byte offset in the JIT frame where code generation
	// spilled it.
	LiveSlots []int32

	// SideTrace is the entry address of a compiled side-trace registered
	// against this guard, or 0 if none. GuardCheck consults this before
	// Deopt is ever invoked.
	SideTrace uintptr
}

// Table indexes a compiled trace's DeoptInfo records by guard id.
type Table struct {
	byID map[uint64]*DeoptInfo
}

// NewTable builds a Table from infos, as internal/compiledtrace does when
// taking ownership of a freshly generated trace.
func NewTable(infos []DeoptInfo) *Table {
	t := &Table{byID: make(map[uint64]*DeoptInfo, len(infos))}
	for i := range infos {
		t.byID[infos[i].GuardID] = &infos[i]
	}
	return t
}

// Lookup returns the DeoptInfo registered for guardID, if any. Used both by
// Reconstruct and by internal/compiledtrace/cmd/jitdump to inspect a
// compiled trace's guard table.
func (t *Table) Lookup(guardID uint64) (*DeoptInfo, bool) {
	di, ok := t.byID[guardID]
	return di, ok
}

// Plan is the fully computed result of the reconstruction procedure: a
// heap buffer ready to be spliced onto the stack, the register file to
// restore, and the address execution must resume at. Finish hands this to
// the assembly trampoline; splitting the two lets the pure-Go
// reconstruction logic be tested without ever transferring control.
type Plan struct {
	Buf       []byte
	NewSP     uintptr
	GPRegs    [16]uint64
	FPRegs    [16]uint64
	ResumePC  uintptr
}

// Reconstruct implements §4.5 steps 1-5: it locates guardID's DeoptInfo,
// walks the inlined AOT frames bottom-up consulting stackmaps, computes and
// fills a heap buffer with the reconstructed frames (writing frame-index-0
// values directly to the real stack at frameAddr, per the contract), and
// assembles the restored register file.
//
// jitFrameAddr is the base (RBP value) of the still-intact JIT frame the
// guard failed in; live values not yet written anywhere else are read from
// there.
func Reconstruct(table *Table, guardID uint64, frameAddr, jitFrameAddr uintptr, gpRegs, fpRegs *[16]uint64, stackmaps *stackmap.Table) (*Plan, error) {
	di, ok := table.Lookup(guardID)
	if !ok {
		return nil, jitrt.NewInternal("deopt: no DeoptInfo for guard %d", guardID)
	}

	records := make([]*stackmap.Record, len(di.StackmapIDs))
	for i, id := range di.StackmapIDs {
		rec, ok := stackmaps.Lookup(stackmap.ID(id))
		if !ok {
			return nil, jitrt.NewInternal("deopt: no stackmap record for id %d (guard %d)", id, guardID)
		}
		records[i] = rec
	}

	// Frame 0 is already resident on the real stack at frameAddr; only
	// frames 1..N-1 (the inlined callees) need heap space, plus one return
	// address per synthesized frame. The register file is restored directly
	// from gpRegs/fpRegs by the trampoline, not copied through this buffer.
	total := 0
	for i := 1; i < len(records); i++ {
		total += int(records[i].Size) + 8
	}
	buf := make([]byte, total)

	liveIdx := 0
	cursor := len(buf)
	for i, rec := range records {
		frameLive := rec.Live
		if i == 0 {
			if err := writeLiveVars(frameLive, di.LiveSlots[liveIdx:], jitFrameAddr, gpRegs, func(off int32, v uint64) {
				pokeU64(frameAddr+uintptr(off), v)
			}); err != nil {
				return nil, err
			}
			liveIdx += len(frameLive)
			continue
		}

		cursor -= int(rec.Size) + 8
		frameBase := cursor
		for _, csr := range rec.CalleeSaved {
			reg := regFromGPRegs(gpRegs, csr.DwarfReg)
			binary.LittleEndian.PutUint64(buf[frameBase+int(csr.Offset):], reg)
		}
		if err := writeLiveVars(frameLive, di.LiveSlots[liveIdx:], jitFrameAddr, gpRegs, func(off int32, v uint64) {
			binary.LittleEndian.PutUint64(buf[frameBase+int(off):], v)
		}); err != nil {
			return nil, err
		}
		liveIdx += len(frameLive)
		binary.LittleEndian.PutUint64(buf[frameBase+int(rec.Size):], rec.ResumePC)
	}

	return &Plan{
		Buf:      buf[cursor:],
		NewSP:    frameAddr - uintptr(records[0].Size),
		GPRegs:   *gpRegs,
		FPRegs:   *fpRegs,
		ResumePC: uintptr(records[len(records)-1].ResumePC),
	}, nil
}

// writeLiveVars reads each frame's live values from their JIT stack slot and
// dispatches them per the stackmap's location kind: a register-kind live var
// goes into gpRegs (so it ends up in the AOT-named register once the
// trampoline restores the register file), everything else goes through
// write into the frame being built.
func writeLiveVars(live []stackmap.LiveVar, slots []int32, jitFrameAddr uintptr, gpRegs *[16]uint64, write func(off int32, v uint64)) error {
	for i, lv := range live {
		if i >= len(slots) {
			return jitrt.NewInternal("deopt: DeoptInfo has fewer live slots than its stackmap needs")
		}
		v := peekU64(jitFrameAddr + uintptr(slots[i]))
		v = maskConstWidth(lv.Loc, v)
		switch lv.Loc.Kind {
		case stackmap.LocDirectStack, stackmap.LocIndirectRBP:
			write(lv.Loc.Offset, v)
		case stackmap.LocRegister:
			if int(lv.Loc.Register) < len(gpRegs) {
				gpRegs[lv.Loc.Register] = v
			}
		case stackmap.LocConstant:
			write(lv.Loc.Offset, maskConstWidth(lv.Loc, lv.Loc.ConstBits))
		}
	}
	return nil
}

// maskConstWidth applies the sign/zero-mask correction of §4.5 "Constant
// semantics": a stackmap-recorded integer constant narrower than 32 bits is
// sign-extended on disk, and must have its high bits masked off per its
// declared width before use.
func maskConstWidth(loc stackmap.Loc, v uint64) uint64 {
	if loc.Kind != stackmap.LocConstant || loc.ConstWidth == 0 || loc.ConstWidth >= 32 {
		return v
	}
	mask := uint64(1)<<loc.ConstWidth - 1
	return v & mask
}

func regFromGPRegs(gpRegs *[16]uint64, dwarfReg uint8) uint64 {
	if int(dwarfReg) >= len(gpRegs) {
		return 0
	}
	return gpRegs[dwarfReg]
}

func peekU64(addr uintptr) uint64 {
	return *(*uint64)(unsafe.Pointer(addr))
}

func pokeU64(addr uintptr, v uint64) {
	*(*uint64)(unsafe.Pointer(addr)) = v
}
