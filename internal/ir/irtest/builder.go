// Package irtest provides a terse, test-only way to build jit_ir Modules by
// hand, mirroring the original implementation's test-only IR parser
// (jit_ir::parser, built only under cfg(test)) without pulling a textual
// grammar into the production binary. Tests read more like the disassembly
// patterns in the spec's scenario list than like raw struct literals.
package irtest

import "jitcore/internal/ir"

// Builder accumulates instructions into a fresh Module, panicking on error
// (as test helpers in the teacher's own test files do, e.g. via t.Fatal
// wrappers) so call sites stay a flat sequence of statements.
type Builder struct {
	M *ir.Module
}

// New creates a Builder around a fresh, empty Module.
func New() *Builder {
	m, err := ir.NewModule(0)
	if err != nil {
		panic(err)
	}
	return &Builder{M: m}
}

func (b *Builder) must(idx ir.InstIdx, err error) ir.InstIdx {
	if err != nil {
		panic(err)
	}
	return idx
}

// LoadTI appends a LoadTraceInput reading an integer of the given bit width
// at byte offset off.
func (b *Builder) LoadTI(off uint32, bits uint32) ir.InstIdx {
	ty, err := b.M.InsertTy(ir.IntegerTy(bits))
	if err != nil {
		panic(err)
	}
	return b.must(b.M.PushInst(ir.LoadTraceInputInst{Off: off, Ty: ty}))
}

// LoadTIPtr is the Ptr-typed analogue of LoadTI.
func (b *Builder) LoadTIPtr(off uint32) ir.InstIdx {
	return b.must(b.M.PushInst(ir.LoadTraceInputInst{Off: off, Ty: b.M.PtrTyIdx()}))
}

// Local wraps idx as an Operand referring to that local.
func (b *Builder) Local(idx ir.InstIdx) ir.Operand { return ir.LocalOperand(idx) }

// ConstI inserts an integer constant of the given const kind and appends
// nothing to the instruction stream; it returns an Operand ready to use as
// an instruction argument.
func (b *Builder) ConstI(kind ir.ConstKind, ty ir.TyIdx, bits uint64) ir.Operand {
	idx, err := b.M.InsertConst(ir.Const{Ty: ty, Kind: kind, Bits: bits})
	if err != nil {
		panic(err)
	}
	return ir.ConstOperand(idx)
}

// Load appends a Load of ptr.
func (b *Builder) Load(ptr ir.Operand, ty ir.TyIdx) ir.InstIdx {
	return b.must(b.M.PushInst(ir.LoadInst{Ptr: ptr, Ty: ty}))
}

// PtrAdd appends a constant-offset PtrAdd.
func (b *Builder) PtrAdd(ptr ir.Operand, off int32) ir.InstIdx {
	return b.must(b.M.PushInst(ir.PtrAddInst{Ptr: ptr, Off: off}))
}

// BinOp appends a BinOp of the given operator between two operands of type
// ty.
func (b *Builder) BinOp(lhs ir.Operand, op ir.BinOp, rhs ir.Operand, ty ir.TyIdx) ir.InstIdx {
	return b.must(b.M.PushInst(ir.BinOpInst{Lhs: lhs, Op: op, Rhs: rhs, Ty: ty}))
}

// Icmp appends an integer comparison.
func (b *Builder) Icmp(lhs ir.Operand, pred ir.Predicate, rhs ir.Operand) ir.InstIdx {
	return b.must(b.M.PushInst(ir.IcmpInst{Lhs: lhs, Pred: pred, Rhs: rhs}))
}

// TraceLoopStart appends the back-edge label.
func (b *Builder) TraceLoopStart() ir.InstIdx {
	return b.must(b.M.PushInst(ir.TraceLoopStartInst{}))
}

// Guard appends a guard with a freshly pushed GuardInfo carrying
// stackmapIDs and live, then returns the inst index.
func (b *Builder) Guard(cond ir.Operand, expect bool, stackmapIDs []uint64, live []ir.Operand) ir.InstIdx {
	gi, err := b.M.PushGuardInfo(ir.GuardInfo{StackmapIDs: stackmapIDs, Live: live})
	if err != nil {
		panic(err)
	}
	return b.must(b.M.PushInst(ir.GuardInst{Cond: cond, Expect: expect, Info: gi}))
}
