// Package x86asm is this back end's code generator: it walks a compiled
// trace's JIT IR and streams x86-64 machine code for it directly, the way
// the teacher's cmd/compile backends walk a lowered SSA/Prog stream and
// emit bytes per opcode — except this package has no amd64 obj.Prog
// package available to build on (see DESIGN.md), so Assembler owns byte
// emission itself instead of building an intermediate Prog list.
package x86asm

import "encoding/binary"

// Assembler accumulates machine code for one compiled trace into a single
// growing byte buffer, along with the forward-reference fixups an
// unconditional or conditional jump to a not-yet-emitted label needs.
type Assembler struct {
	buf    []byte
	labels map[label]int
	fixups []fixup
	next   label // last label handed out by NewLabel
}

// label identifies a jump target defined somewhere in the instruction
// stream (TraceLoopStart, or a Guard's fallthrough/side-exit point).
type label int

type fixup struct {
	pos    int // offset of the rel32 field to patch
	target label
}

// NewAssembler returns an empty Assembler.
func NewAssembler() *Assembler {
	return &Assembler{labels: make(map[label]int)}
}

// Pos returns the current length of the emitted byte stream, i.e. where the
// next emitted byte will land.
func (a *Assembler) Pos() int { return len(a.buf) }

// Bytes returns the assembled machine code. Finish must be called first to
// resolve pending jump fixups.
func (a *Assembler) Bytes() []byte { return a.buf }

func (a *Assembler) emit(bs ...byte) { a.buf = append(a.buf, bs...) }

func (a *Assembler) emitU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	a.emit(b[:]...)
}

func (a *Assembler) emitU64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	a.emit(b[:]...)
}

// NewLabel allocates a fresh, as-yet-undefined label.
func (a *Assembler) NewLabel() label {
	a.next++
	return a.next
}

// BindLabel records l's target as the current position.
func (a *Assembler) BindLabel(l label) { a.labels[l] = a.Pos() }

// rex builds a REX prefix. w selects 64-bit operand size; r/x/b extend the
// ModRM.reg, SIB.index and ModRM.rm/SIB.base fields respectively.
func rex(w bool, r, x, b bool) byte {
	v := byte(0x40)
	if w {
		v |= 0x08
	}
	if r {
		v |= 0x04
	}
	if x {
		v |= 0x02
	}
	if b {
		v |= 0x01
	}
	return v
}

func modRM(mod, reg, rm uint8) byte {
	return mod<<6 | (reg&7)<<3 | (rm & 7)
}

// emitRegReg emits a two-register ModRM byte with mod=11 (register-direct).
func (a *Assembler) emitRegReg(opc byte, w bool, regField, rmField Reg) {
	a.emit(rex(w, regField.needsRexBit(), false, rmField.needsRexBit()))
	a.emit(opc)
	a.emit(modRM(3, regField.lowBits(), rmField.lowBits()))
}

// emitRegMem emits a ModRM+disp32 addressing regField against [base+disp],
// the only addressing mode this back end's loads/stores need (every
// pointer this code generator sees is already materialised in a register;
// there is no base+index*scale+disp addressing in the JIT IR).
func (a *Assembler) emitRegMem(opc byte, w bool, regField, base Reg, disp int32) {
	a.emit(rex(w, regField.needsRexBit(), false, base.needsRexBit()))
	a.emit(opc)
	if base.lowBits() == RSP.lowBits() {
		// RSP/R12 in the rm field requires a SIB byte with no index.
		a.emit(modRM(2, regField.lowBits(), 4))
		a.emit(0x24)
	} else {
		a.emit(modRM(2, regField.lowBits(), base.lowBits()))
	}
	a.emitU32(uint32(disp))
}

// MovRegReg emits `mov dst, src` (64-bit).
func (a *Assembler) MovRegReg(dst, src Reg) {
	a.emitRegReg(0x89, true, src, dst)
}

// MovRegImm64 emits a 64-bit immediate load, `movabs dst, imm`.
func (a *Assembler) MovRegImm64(dst Reg, imm uint64) {
	a.emit(rex(true, false, false, dst.needsRexBit()))
	a.emit(0xB8 + dst.lowBits())
	a.emitU64(imm)
}

// MovRegImm32 emits a zero-extended 32-bit immediate load into a
// sub-register, used for narrow (<=32 bit) constants and offsets.
func (a *Assembler) MovRegImm32(dst Reg, imm uint32) {
	a.emit(rex(false, false, false, dst.needsRexBit()))
	a.emit(0xB8 + dst.lowBits())
	a.emitU32(imm)
}

// LoadMem emits `mov dst, [base+disp]` sized by byteWidth (1, 2, 4 or 8).
func (a *Assembler) LoadMem(dst, base Reg, disp int32, byteWidth int) {
	switch byteWidth {
	case 1:
		a.emit(rex(false, dst.needsRexBit(), false, base.needsRexBit()))
		a.emit(0x0F, 0xB6)
		a.emitModRMMem(dst, base, disp)
	case 2:
		a.emit(0x66)
		a.emit(rex(false, dst.needsRexBit(), false, base.needsRexBit()))
		a.emit(0x0F, 0xB7)
		a.emitModRMMem(dst, base, disp)
	case 4:
		a.emitRegMem(0x8B, false, dst, base, disp)
	default:
		a.emitRegMem(0x8B, true, dst, base, disp)
	}
}

// LoadMemSext emits a sign-extending load from [base+disp] into dst, sized
// by byteWidth (1, 2 or 4): `movsx`/`movsxd dst, [base+disp]`. byteWidth 8
// needs no extension and falls back to a plain LoadMem.
func (a *Assembler) LoadMemSext(dst, base Reg, disp int32, byteWidth int) {
	switch byteWidth {
	case 1:
		a.emit(rex(true, dst.needsRexBit(), false, base.needsRexBit()))
		a.emit(0x0F, 0xBE)
		a.emitModRMMem(dst, base, disp)
	case 2:
		a.emit(rex(true, dst.needsRexBit(), false, base.needsRexBit()))
		a.emit(0x0F, 0xBF)
		a.emitModRMMem(dst, base, disp)
	case 4:
		a.emit(rex(true, dst.needsRexBit(), false, base.needsRexBit()))
		a.emit(0x63)
		a.emitModRMMem(dst, base, disp)
	default:
		a.LoadMem(dst, base, disp, 8)
	}
}

// StoreMem emits `mov [base+disp], src` sized by byteWidth.
func (a *Assembler) StoreMem(base Reg, disp int32, src Reg, byteWidth int) {
	switch byteWidth {
	case 1:
		a.emit(rex(false, src.needsRexBit(), false, base.needsRexBit()))
		a.emit(0x88)
		a.emitModRMMem(src, base, disp)
	case 2:
		a.emit(0x66)
		a.emit(rex(false, src.needsRexBit(), false, base.needsRexBit()))
		a.emit(0x89)
		a.emitModRMMem(src, base, disp)
	case 4:
		a.emitRegMem(0x89, false, src, base, disp)
	default:
		a.emitRegMem(0x89, true, src, base, disp)
	}
}

func (a *Assembler) emitModRMMem(regField, base Reg, disp int32) {
	if base.lowBits() == RSP.lowBits() {
		a.emit(modRM(2, regField.lowBits(), 4))
		a.emit(0x24)
	} else {
		a.emit(modRM(2, regField.lowBits(), base.lowBits()))
	}
	a.emitU32(uint32(disp))
}

// Lea emits `lea dst, [base+disp]`.
func (a *Assembler) Lea(dst, base Reg, disp int32) {
	a.emit(rex(true, dst.needsRexBit(), false, base.needsRexBit()))
	a.emit(0x8D)
	a.emitModRMMem(dst, base, disp)
}

// AluRegReg emits one of the ModRM ALU ops: `op dst, src`. opc is the
// opcode byte for the 64-bit register-register form (e.g. 0x01 for add,
// 0x29 for sub, 0x21 for and, 0x09 for or, 0x31 for xor, 0x39 for cmp).
func (a *Assembler) AluRegReg(opc byte, dst, src Reg) {
	a.emitRegReg(opc, true, src, dst)
}

// Imul emits `imul dst, src` (two-operand signed multiply).
func (a *Assembler) Imul(dst, src Reg) {
	a.emit(rex(true, dst.needsRexBit(), false, src.needsRexBit()))
	a.emit(0x0F, 0xAF)
	a.emit(modRM(3, dst.lowBits(), src.lowBits()))
}

// ShiftRegCL emits a shift/rotate of dst by the count in CL. op selects
// shl(4)/shr(5)/sar(7) via the /digit ModRM extension.
func (a *Assembler) ShiftRegCL(op uint8, dst Reg) {
	a.emit(rex(true, false, false, dst.needsRexBit()))
	a.emit(0xD3)
	a.emit(modRM(3, op, dst.lowBits()))
}

// Cqo emits `cqo`, sign-extending RAX into RDX:RAX ahead of a signed idiv.
func (a *Assembler) Cqo() { a.emit(0x48, 0x99) }

// XorRegReg emits `xor dst, dst` as a fast register zeroer ahead of an
// unsigned div, clearing RDX.
func (a *Assembler) XorRegReg(dst Reg) { a.AluRegReg(0x31, dst, dst) }

// IDiv emits `idiv src` (signed) — RDX:RAX / src -> RAX quotient, RDX
// remainder. lowerBinOp uses it for unsigned division as well; there
// BinOp.IsSigned only decides whether a cqo sign-extends RAX into RDX first.
func (a *Assembler) IDiv(src Reg) {
	a.emit(rex(true, false, false, src.needsRexBit()))
	a.emit(0xF7)
	a.emit(modRM(3, 7, src.lowBits()))
}

// CmpRegReg emits `cmp lhs, rhs`.
func (a *Assembler) CmpRegReg(lhs, rhs Reg) { a.AluRegReg(0x39, lhs, rhs) }

// TestRegReg emits `test a, a` (equivalently `test a, b`), setting ZF when
// the AND of the two operands is zero — used to branch on a bare register
// value without disturbing it.
func (a *Assembler) TestRegReg(lhs, rhs Reg) { a.emitRegReg(0x85, true, rhs, lhs) }

// SetccReg emits `setCC dst8` (byte-sized) per the given condition code,
// then zero-extends it into the full register.
func (a *Assembler) SetccReg(cc uint8, dst Reg) {
	a.emit(rex(false, false, false, dst.needsRexBit()))
	a.emit(0x0F, 0x90+cc)
	a.emit(modRM(3, 0, dst.lowBits()))
	a.emit(rex(true, dst.needsRexBit(), false, dst.needsRexBit()))
	a.emit(0x0F, 0xB6)
	a.emit(modRM(3, dst.lowBits(), dst.lowBits()))
}

// Push/Pop emit single-register stack push/pop.
func (a *Assembler) Push(r Reg) {
	if r.needsRexBit() {
		a.emit(rex(false, false, false, true))
	}
	a.emit(0x50 + r.lowBits())
}
func (a *Assembler) Pop(r Reg) {
	if r.needsRexBit() {
		a.emit(rex(false, false, false, true))
	}
	a.emit(0x58 + r.lowBits())
}

// SubRegImm32 emits `sub dst, imm32`.
func (a *Assembler) SubRegImm32(dst Reg, imm uint32) {
	a.emit(rex(true, false, false, dst.needsRexBit()))
	a.emit(0x81)
	a.emit(modRM(3, 5, dst.lowBits()))
	a.emitU32(imm)
}

// AddRegImm32 emits `add dst, imm32`.
func (a *Assembler) AddRegImm32(dst Reg, imm uint32) {
	a.emit(rex(true, false, false, dst.needsRexBit()))
	a.emit(0x81)
	a.emit(modRM(3, 0, dst.lowBits()))
	a.emitU32(imm)
}

// PatchImm32At overwrites the 4 bytes at byte offset pos (as previously
// reserved by a marker this package's own callers track) with imm — used
// to back-patch the prologue's `sub rsp, 0` once the frame size is known.
func (a *Assembler) PatchImm32At(pos int, imm uint32) {
	binary.LittleEndian.PutUint32(a.buf[pos:pos+4], imm)
}

// CallReg emits `call dst`.
func (a *Assembler) CallReg(dst Reg) {
	if dst.needsRexBit() {
		a.emit(rex(false, false, false, true))
	}
	a.emit(0xFF)
	a.emit(modRM(3, 2, dst.lowBits()))
}

// Ret emits `ret`.
func (a *Assembler) Ret() { a.emit(0xC3) }

// JmpLabel emits a near unconditional jump to l, recording a fixup if l is
// not yet bound.
func (a *Assembler) JmpLabel(l label) {
	a.emit(0xE9)
	a.reserveRel32(l)
}

// JccLabel emits a near conditional jump (0x0F 0x8x cc) to l.
func (a *Assembler) JccLabel(cc uint8, l label) {
	a.emit(0x0F, 0x80+cc)
	a.reserveRel32(l)
}

func (a *Assembler) reserveRel32(l label) {
	pos := a.Pos()
	a.emitU32(0)
	a.fixups = append(a.fixups, fixup{pos: pos, target: l})
}

// Finish resolves every recorded jump fixup against the now-fully-bound
// label table and returns the final byte stream.
func (a *Assembler) Finish() ([]byte, error) {
	for _, fx := range a.fixups {
		target, ok := a.labels[fx.target]
		if !ok {
			return nil, errUnboundLabel(fx.target)
		}
		rel := int32(target - (fx.pos + 4))
		binary.LittleEndian.PutUint32(a.buf[fx.pos:fx.pos+4], uint32(rel))
	}
	return a.buf, nil
}
