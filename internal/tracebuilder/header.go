package tracebuilder

import (
	"jitcore/internal/aotir"
	"jitcore/internal/ir"
	"jitcore/internal/jitrt"
)

// synthesizeHeader walks the header block (which contains the
// interpreter's control-point call) in reverse, recovering the AOT locals
// that were stored into the trace-inputs struct just before the call and
// emitting one LoadTraceInput per distinct offset.
func (b *Builder) synthesizeHeader(headerAction TraceAction) error {
	fidx, err := b.aotMod.RequireFunc(headerAction.FuncName)
	if err != nil {
		return err
	}
	block := b.aotMod.Block(fidx, headerAction.Block)

	cpIdx := -1
	for i, inst := range block.Instrs {
		if b.isControlPointCall(inst) {
			cpIdx = i
			break
		}
	}
	if cpIdx < 0 {
		return jitrt.NewGeneral("no control-point call in header block")
	}
	cp := block.Instrs[cpIdx]
	if len(cp.Operands) < 2 {
		return jitrt.NewGeneral("control-point call has no trace-inputs argument")
	}
	root := cp.Operand(1)
	if root.Kind != aotir.OperandLocal && root.Kind != aotir.OperandArg {
		return jitrt.NewGeneral("control-point trace-inputs argument is neither a local nor a function argument")
	}

	seen := make(map[int32]bool)
	for i := cpIdx - 1; i >= 0; i-- {
		inst := block.Instrs[i]
		if inst.Opcode != aotir.OpStore {
			continue
		}
		off, ok := b.resolveTraceInputOffset(inst.Operand(1), root)
		if !ok || seen[off] {
			continue
		}
		seen[off] = true

		valOp := inst.Operand(0)
		jitTy, err := b.handleType(b.aotMod.DefType(valOp))
		if err != nil {
			return err
		}
		idx, err := b.jit.PushInst(ir.LoadTraceInputInst{Off: uint32(off), Ty: jitTy})
		if err != nil {
			return err
		}
		if valOp.Kind == aotir.OperandLocal {
			b.localMap[valOp.Local] = ir.LocalOperand(idx)
		}
	}
	return nil
}

func (b *Builder) isControlPointCall(inst aotir.Instruction) bool {
	if !inst.IsCall() {
		return false
	}
	fidx, ok := inst.Callee()
	if !ok {
		return false
	}
	return b.aotMod.Func(fidx).Name == aotir.ControlPointName
}

// resolveTraceInputOffset walks a chain of constant-offset PtrAdds
// backward from storePtr, checking whether it is ultimately rooted at
// root (the control point's trace-inputs operand). Any non-constant hop,
// or a chain that bottoms out somewhere other than root, fails the match
// (the store just isn't populating the trace-input struct).
func (b *Builder) resolveTraceInputOffset(storePtr, root aotir.Operand) (int32, bool) {
	var total int64
	cur := storePtr
	for {
		if operandsEqual(cur, root) {
			return int32(total), true
		}
		if cur.Kind != aotir.OperandLocal {
			return 0, false
		}
		inst := b.aotMod.Inst(cur.Local)
		if inst.Opcode != aotir.OpPtrAdd {
			return 0, false
		}
		offOp := inst.Operand(1)
		if offOp.Kind != aotir.OperandConst {
			return 0, false
		}
		total += int64(decodeConstUint(b.aotMod.Const(offOp.Const).Bytes))
		cur = inst.Operand(0)
	}
}

func operandsEqual(a, b aotir.Operand) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case aotir.OperandLocal:
		return a.Local == b.Local
	case aotir.OperandArg:
		return a.Arg == b.Arg
	case aotir.OperandConst:
		return a.Const == b.Const
	case aotir.OperandGlobal:
		return a.Global == b.Global
	default:
		return false
	}
}
