package x86asm

import (
	"jitcore/internal/deopt"
	"jitcore/internal/ir"
	"jitcore/internal/jitrt"
	"jitcore/internal/stackmap"
	"jitcore/internal/symbol"
)

// Result is everything a compiled trace needs besides the raw bytes:
// internal/compiledtrace wraps Code in an executable mapping and keeps
// DeoptInfos alongside it so a failing guard can be reconstructed.
type Result struct {
	Code       []byte
	DeoptInfos []deopt.DeoptInfo
	// PrologueFrameSize is the 16-byte-aligned byte count the prologue
	// reserves; exposed for disassembly annotation and tests.
	PrologueFrameSize int32
}

// gen holds the state threaded through one Generate call.
type gen struct {
	mod        *ir.Module
	resolver   symbol.Resolver
	stackmaps  *stackmap.Table
	globalsPtr uintptr

	asm   *Assembler
	frame *frame

	loopStart   label
	guardStubs  []guardStub
	deoptInfos  []deopt.DeoptInfo

	prologueSizeFixup int

	// tiSlot holds the trace-inputs struct pointer, spilled from RDI (this
	// trace function's own sole native argument) in the prologue.
	// LoadTraceInput is the only JIT-IR instruction that reads it; it
	// carries no explicit pointer operand of its own (see DESIGN.md's Open
	// Question decisions), so the code generator must thread it through out
	// of band.
	tiSlot int32
}

type guardStub struct {
	label   label
	guardID uint64
}

// Generate lowers mod, a single trace's JIT IR, into position-independent
// x86-64 machine code. globalsArrayAddr is the runtime address of the
// AOT-generated array of global-variable addresses that LookupGlobal
// indexes into.
func Generate(mod *ir.Module, resolver symbol.Resolver, stackmaps *stackmap.Table, globalsArrayAddr uintptr) (*Result, error) {
	g := &gen{
		mod:        mod,
		resolver:   resolver,
		stackmaps:  stackmaps,
		globalsPtr: globalsArrayAddr,
		asm:        NewAssembler(),
		frame:      newFrame(),
	}
	g.loopStart = g.asm.NewLabel()

	g.emitPrologue()

	for i := 0; i < mod.NumInsts(); i++ {
		if err := g.lower(ir.InstIdx(i), mod.Inst(ir.InstIdx(i))); err != nil {
			return nil, err
		}
	}

	// Close the loop: jump back to the recorded back-edge target.
	g.asm.JmpLabel(g.loopStart)

	for _, st := range g.guardStubs {
		g.emitGuardStub(st)
	}

	code, err := g.asm.Finish()
	if err != nil {
		return nil, err
	}
	g.asm.PatchImm32At(g.prologueSizeFixup, uint32(alignedSize(g.frame.size)))

	return &Result{
		Code:              code,
		DeoptInfos:        g.deoptInfos,
		PrologueFrameSize: alignedSize(g.frame.size),
	}, nil
}

// emitPrologue pushes RBP, establishes a new frame pointer, and reserves
// stack space for this trace's spill slots. The reserved size is a
// placeholder patched in once every instruction has been lowered and the
// frame's final size is known (mirroring how a real assembler backpatches
// a function's frame size after a first pass over its body).
func (g *gen) emitPrologue() {
	g.asm.Push(RBP)
	g.asm.MovRegReg(RBP, RSP)
	g.asm.SubRegImm32(RSP, 0)
	g.prologueSizeFixup = g.asm.Pos() - 4

	g.tiSlot = g.frame.reserve()
	g.asm.StoreMem(RBP, g.tiSlot, RDI, 8)

	g.asm.BindLabel(g.loopStart)
}

func (g *gen) lower(idx ir.InstIdx, inst ir.Inst) error {
	switch v := inst.(type) {
	case ir.LoadTraceInputInst:
		return g.lowerLoadTraceInput(idx, v)
	case ir.LoadInst:
		return g.lowerLoad(idx, v)
	case ir.StoreInst:
		return g.lowerStore(v)
	case ir.PtrAddInst:
		return g.lowerPtrAdd(idx, v)
	case ir.DynPtrAddInst:
		return g.lowerDynPtrAdd(idx, v)
	case ir.BinOpInst:
		return g.lowerBinOp(idx, v)
	case ir.IcmpInst:
		return g.lowerIcmp(idx, v)
	case ir.SelectInst:
		return g.lowerSelect(idx, v)
	case ir.SExtInst:
		return g.lowerExt(idx, v.Val, v.DestTy, true)
	case ir.ZExtInst:
		return g.lowerExt(idx, v.Val, v.DestTy, false)
	case ir.TruncInst:
		return g.lowerTrunc(idx, v)
	case ir.CallInst:
		return g.lowerCall(idx, v)
	case ir.IndirectCallInst:
		return g.lowerIndirectCall(idx, v)
	case ir.LookupGlobalInst:
		return g.lowerLookupGlobal(idx, v)
	case ir.GuardInst:
		return g.lowerGuard(v)
	case ir.TraceLoopStartInst:
		return nil // the label is bound by emitPrologue
	case ir.ArgInst:
		return g.lowerArg(idx, v)
	default:
		return jitrt.NewInternal("x86asm: no lowering for instruction kind %v", inst.Kind())
	}
}

// materialize loads op's value into dst: an immediate move for a constant,
// a stack-slot reload for a local.
func (g *gen) materialize(op ir.Operand, dst Reg) {
	if op.Kind() == ir.OpKindConst {
		c := g.mod.Const(op.Const())
		g.asm.MovRegImm64(dst, c.Bits)
		return
	}
	off := g.frame.slotFor(op.Local())
	g.asm.LoadMem(dst, RBP, off, 8)
}

// define spills dst to idx's stack slot, committing a just-produced value
// under the spill-everywhere discipline.
func (g *gen) define(idx ir.InstIdx, src Reg) {
	off := g.frame.slotFor(idx)
	g.asm.StoreMem(RBP, off, src, 8)
}

// materializeSext loads op's value into dst sign-extended from width bytes
// to the full 64-bit slot: a local is reloaded with a sign-extending load at
// its narrow width, a constant is sign-extended in Go before the move.
func (g *gen) materializeSext(op ir.Operand, width int, dst Reg) {
	if op.Kind() == ir.OpKindConst {
		c := g.mod.Const(op.Const())
		g.asm.MovRegImm64(dst, signExtend(c.Bits, width))
		return
	}
	off := g.frame.slotFor(op.Local())
	g.asm.LoadMemSext(dst, RBP, off, width)
}

// signExtend sign-extends the low width*8 bits of v to 64 bits.
func signExtend(v uint64, width int) uint64 {
	if width >= 8 {
		return v
	}
	bits := uint(width) * 8
	mask := uint64(1)<<bits - 1
	v &= mask
	sign := uint64(1) << (bits - 1)
	if v&sign != 0 {
		v |= ^mask
	}
	return v
}

func (g *gen) lowerLoadTraceInput(idx ir.InstIdx, v ir.LoadTraceInputInst) error {
	g.asm.LoadMem(RAX, RBP, g.tiSlot, 8)
	g.asm.LoadMem(RAX, RAX, int32(v.Off), byteWidthOf(g.mod, v.Ty))
	g.define(idx, RAX)
	return nil
}

func (g *gen) lowerLoad(idx ir.InstIdx, v ir.LoadInst) error {
	g.materialize(v.Ptr, RAX)
	g.asm.LoadMem(RAX, RAX, 0, byteWidthOf(g.mod, v.Ty))
	g.define(idx, RAX)
	return nil
}

func (g *gen) lowerStore(v ir.StoreInst) error {
	g.materialize(v.Tgt, RAX)
	g.materialize(v.Val, RCX)
	g.asm.StoreMem(RAX, 0, RCX, byteWidthOf(g.mod, typeOf(g.mod, v.Val)))
	return nil
}

func (g *gen) lowerPtrAdd(idx ir.InstIdx, v ir.PtrAddInst) error {
	g.materialize(v.Ptr, RAX)
	g.asm.Lea(RAX, RAX, v.Off)
	g.define(idx, RAX)
	return nil
}

func (g *gen) lowerDynPtrAdd(idx ir.InstIdx, v ir.DynPtrAddInst) error {
	g.materialize(v.Ptr, RAX)
	g.materialize(v.NumElems, RCX)
	g.asm.MovRegImm32(RDX, uint32(v.ElemSize))
	g.asm.Imul(RCX, RDX)
	g.asm.AluRegReg(0x01, RAX, RCX) // add rax, rcx
	g.define(idx, RAX)
	return nil
}

var binOpReg = map[ir.BinOp]byte{
	ir.BinOpAdd: 0x01,
	ir.BinOpSub: 0x29,
	ir.BinOpAnd: 0x21,
	ir.BinOpOr:  0x09,
	ir.BinOpXor: 0x31,
}

func (g *gen) lowerBinOp(idx ir.InstIdx, v ir.BinOpInst) error {
	g.materialize(v.Lhs, RAX)
	g.materialize(v.Rhs, RCX)

	switch {
	case v.Op.IsDiv():
		g.asm.XorRegReg(RDX)
		if v.Op.IsSigned() {
			g.asm.Cqo()
		}
		g.asm.IDiv(RCX)
		if v.Op == ir.BinOpSRem || v.Op == ir.BinOpURem {
			g.define(idx, RDX)
		} else {
			g.define(idx, RAX)
		}
	case v.Op == ir.BinOpMul:
		g.asm.Imul(RAX, RCX)
		g.define(idx, RAX)
	case v.Op == ir.BinOpShl:
		g.asm.ShiftRegCL(4, RAX)
		g.define(idx, RAX)
	case v.Op == ir.BinOpAShr:
		g.asm.ShiftRegCL(7, RAX)
		g.define(idx, RAX)
	case v.Op == ir.BinOpLShr:
		g.asm.ShiftRegCL(5, RAX)
		g.define(idx, RAX)
	default:
		opc, ok := binOpReg[v.Op]
		if !ok {
			return jitrt.NewInternal("x86asm: no lowering for binop %v", v.Op)
		}
		g.asm.AluRegReg(opc, RAX, RCX)
		g.define(idx, RAX)
	}
	return nil
}

func ccForPredicate(p ir.Predicate) uint8 {
	switch p {
	case ir.PredEq:
		return 0x4
	case ir.PredNe:
		return 0x5
	case ir.PredSGt:
		return 0xF
	case ir.PredSGe:
		return 0xD
	case ir.PredSLt:
		return 0xC
	case ir.PredSLe:
		return 0xE
	case ir.PredUGt:
		return 0x7
	case ir.PredUGe:
		return 0x3
	case ir.PredULt:
		return 0x2
	case ir.PredULe:
		return 0x6
	default:
		return 0x4
	}
}

func (g *gen) lowerIcmp(idx ir.InstIdx, v ir.IcmpInst) error {
	g.materialize(v.Lhs, RAX)
	g.materialize(v.Rhs, RCX)
	g.asm.CmpRegReg(RAX, RCX)
	g.asm.SetccReg(ccForPredicate(v.Pred), RAX)
	g.define(idx, RAX)
	return nil
}

func (g *gen) lowerSelect(idx ir.InstIdx, v ir.SelectInst) error {
	g.materialize(v.Cond, RAX)
	g.asm.TestRegReg(RAX, RAX)
	elseLabel := g.asm.NewLabel()
	doneLabel := g.asm.NewLabel()
	g.asm.JccLabel(0x4, elseLabel) // jz
	g.materialize(v.TrueVal, RAX)
	g.asm.JmpLabel(doneLabel)
	g.asm.BindLabel(elseLabel)
	g.materialize(v.FalseVal, RAX)
	g.asm.BindLabel(doneLabel)
	g.define(idx, RAX)
	return nil
}

// lowerExt handles both SExt and ZExt. ZExt's source is already
// zero-extended into its full 64-bit slot by the load/op that produced it,
// so reloading it needs no extra code. SExt reloads the source at its own
// width with a sign-extending load, since the spilled slot does not carry
// sign information past its narrow width.
func (g *gen) lowerExt(idx ir.InstIdx, val ir.Operand, destTy ir.TyIdx, signed bool) error {
	if signed {
		width := byteWidthOf(g.mod, typeOf(g.mod, val))
		g.materializeSext(val, width, RAX)
	} else {
		g.materialize(val, RAX)
	}
	g.define(idx, RAX)
	return nil
}

func (g *gen) lowerTrunc(idx ir.InstIdx, v ir.TruncInst) error {
	g.materialize(v.Val, RAX)
	width := byteWidthOf(g.mod, v.DestTy)
	mask := uint64(1)<<(uint(width)*8) - 1
	if width >= 8 {
		mask = ^uint64(0)
	}
	g.asm.MovRegImm64(RCX, mask)
	g.asm.AluRegReg(0x21, RAX, RCX) // and rax, rcx
	g.define(idx, RAX)
	return nil
}

func (g *gen) lowerArg(idx ir.InstIdx, v ir.ArgInst) error {
	// The trace function's own native argument 0 (RDI) is reserved for the
	// trace-inputs struct pointer (see tiSlot); ArgInst indices are this
	// trace's OWN extra parameters, if any, so they're offset by one.
	regIdx := int(v.Idx) + 1
	if regIdx >= len(sysVArgRegs) {
		return jitrt.NewGeneral("x86asm: argument index %d exceeds the %d System V integer registers this back end supports", v.Idx, len(sysVArgRegs)-1)
	}
	g.define(idx, sysVArgRegs[regIdx])
	return nil
}

func (g *gen) lowerCall(idx ir.InstIdx, v ir.CallInst) error {
	fd := g.mod.FuncDecl(v.Target)
	addr, err := g.resolver.Resolve(fd.Name)
	if err != nil {
		return err
	}
	args := g.mod.Args(v.ArgsStart, v.NumArgs)
	if err := g.emitArgs(args); err != nil {
		return err
	}
	g.asm.MovRegImm64(R11, uint64(addr))
	if g.mod.Type(fd.Ty).Func.IsVararg {
		g.asm.XorRegReg(RAX) // AL = number of vector registers used: none
	}
	g.asm.CallReg(R11)
	if !ir.IsVoid(g.mod, v) {
		g.define(idx, RAX)
	}
	return nil
}

func (g *gen) lowerIndirectCall(idx ir.InstIdx, v ir.IndirectCallInst) error {
	ic := g.mod.IndirectCall(v.Idx)
	args := g.mod.Args(ic.ArgsStart, ic.NumArgs)
	if err := g.emitArgs(args); err != nil {
		return err
	}
	g.materialize(ic.Target, R11)
	if g.mod.Type(ic.FuncTy).Func.IsVararg {
		g.asm.XorRegReg(RAX)
	}
	g.asm.CallReg(R11)
	if !ir.IsVoid(g.mod, v) {
		g.define(idx, RAX)
	}
	return nil
}

func (g *gen) emitArgs(args []ir.Operand) error {
	if len(args) > MaxCallArgs {
		return jitrt.NewGeneral("x86asm: call with %d arguments exceeds the %d this back end supports", len(args), MaxCallArgs)
	}
	for i, op := range args {
		g.materialize(op, sysVArgRegs[i])
	}
	return nil
}

func (g *gen) lowerLookupGlobal(idx ir.InstIdx, v ir.LookupGlobalInst) error {
	gd := g.mod.GlobalDecl(v.Decl)
	g.asm.MovRegImm64(RAX, uint64(g.globalsPtr))
	g.asm.LoadMem(RAX, RAX, int32(gd.PtrIdx)*8, 8)
	g.define(idx, RAX)
	return nil
}

func (g *gen) lowerGuard(v ir.GuardInst) error {
	g.materialize(v.Cond, RAX)
	g.asm.TestRegReg(RAX, RAX)

	failLabel := g.asm.NewLabel()
	if v.Expect {
		g.asm.JccLabel(0x4, failLabel) // jz: continue only while cond == true
	} else {
		g.asm.JccLabel(0x5, failLabel) // jnz: continue only while cond == false
	}

	guardID := uint64(v.Info)
	gi := g.mod.GuardInfo(v.Info)
	for _, id := range gi.StackmapIDs {
		if _, ok := g.stackmaps.Lookup(stackmap.ID(id)); !ok {
			return jitrt.NewInternal("x86asm: guard %d references unknown stackmap id %d", guardID, id)
		}
	}
	slots := make([]int32, len(gi.Live))
	for i, live := range gi.Live {
		slots[i] = g.spillForDeopt(live)
	}
	g.deoptInfos = append(g.deoptInfos, deopt.DeoptInfo{
		GuardID:     guardID,
		StackmapIDs: gi.StackmapIDs,
		LiveSlots:   slots,
	})
	g.guardStubs = append(g.guardStubs, guardStub{label: failLabel, guardID: guardID})
	return nil
}

// spillForDeopt returns op's frame slot offset, spilling it to a fresh slot
// first if it's a constant (every local is already spilled under this
// back end's discipline).
func (g *gen) spillForDeopt(op ir.Operand) int32 {
	if op.Kind() == ir.OpKindLocal {
		return g.frame.slotFor(op.Local())
	}
	g.materialize(op, RAX)
	off := g.frame.reserve()
	g.asm.StoreMem(RBP, off, RAX, 8)
	return off
}

// emitGuardStub emits the out-of-line failure path for one guard: call the
// runtime guard-check trampoline with the guard id, and either call into a
// registered side-trace or fall into deoptimisation.
func (g *gen) emitGuardStub(st guardStub) {
	g.asm.BindLabel(st.label)
	g.asm.MovRegImm64(RDI, st.guardID)
	if addr, err := g.resolver.Resolve("__yk_guardcheck"); err == nil {
		g.asm.MovRegImm64(RAX, uint64(addr))
		g.asm.CallReg(RAX)
		g.asm.TestRegReg(RAX, RAX)
		sideTrace := g.asm.NewLabel()
		g.asm.JccLabel(0x5, sideTrace) // jnz: a side-trace was returned
		g.emitDeoptCall(st.guardID)
		g.asm.BindLabel(sideTrace)
		g.asm.CallReg(RAX)
		return
	}
	g.emitDeoptCall(st.guardID)
}

func (g *gen) emitDeoptCall(guardID uint64) {
	g.asm.MovRegImm64(RDI, guardID)
	if addr, err := g.resolver.Resolve("__yk_deopt"); err == nil {
		g.asm.MovRegImm64(RAX, uint64(addr))
		g.asm.CallReg(RAX)
	}
}

// byteWidthOf returns the smallest byte count (1, 2, 4 or 8) that can hold
// ty, the width Load/Store/LoadTraceInput use to pick a sign-correct memory
// access size. Pointer-typed loads use the full 8 bytes.
func byteWidthOf(m *ir.Module, ty ir.TyIdx) int {
	t := m.Type(ty)
	if !t.IsInteger() {
		return 8
	}
	switch {
	case t.Bits <= 8:
		return 1
	case t.Bits <= 16:
		return 2
	case t.Bits <= 32:
		return 4
	default:
		return 8
	}
}

// typeOf resolves the type an operand's value was defined with: a local's
// producing instruction, or a constant's own declared type.
func typeOf(m *ir.Module, op ir.Operand) ir.TyIdx {
	if op.Kind() == ir.OpKindConst {
		return m.Const(op.Const()).Ty
	}
	return m.Inst(op.Local()).DefTy(m)
}
