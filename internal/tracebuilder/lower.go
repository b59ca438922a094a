package tracebuilder

import (
	"jitcore/internal/aotir"
	"jitcore/internal/ir"
	"jitcore/internal/jitrt"
	"jitcore/internal/stackmap"
)

// processBlock lowers every instruction of the mapped block named by
// actions[ai] in order.
func (b *Builder) processBlock(actions []TraceAction, ai int) error {
	a := actions[ai]
	fidx, err := b.aotMod.RequireFunc(a.FuncName)
	if err != nil {
		return err
	}
	block := b.aotMod.Block(fidx, a.Block)

	for ii, inst := range block.Instrs {
		iid := aotir.InstructionID{FuncIdx: fidx, BBlockIdx: a.Block, InstrIdx: aotir.InstrIdx(ii)}

		switch inst.Opcode {
		case aotir.OpNop, aotir.OpBr:
			// Unconditional branches carry no information the JIT IR
			// needs; they're simply elided.
		case aotir.OpCall:
			err = b.handleCall(iid, inst)
		case aotir.OpLoad:
			err = b.handleLoad(iid, inst)
		case aotir.OpStore:
			err = b.handleStore(inst)
		case aotir.OpPtrAdd:
			err = b.handlePtrAdd(iid, inst)
		case aotir.OpIcmp:
			err = b.handleIcmp(iid, inst)
		case aotir.OpCondBr:
			err = b.handleCondBr(actions, ai, inst)
		case aotir.OpRet:
			err = b.handleRet(inst)
		default:
			if binOp, ok := inst.Opcode.BinOp(); ok {
				err = b.handleBinOp(iid, inst, binOp)
			} else {
				err = jitrt.NewGeneral("no lowering for AOT opcode %s at %+v", inst.Opcode, iid)
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) handleLoad(iid aotir.InstructionID, inst aotir.Instruction) error {
	ptrAotOp := inst.Operand(0)
	ty, err := b.handleType(inst.Ty)
	if err != nil {
		return err
	}
	var ptr ir.Operand
	if ptrAotOp.Kind == aotir.OperandGlobal {
		gidx, err := b.handleGlobal(ptrAotOp.Global)
		if err != nil {
			return err
		}
		lgIdx, err := b.jit.PushInst(ir.LookupGlobalInst{Decl: gidx})
		if err != nil {
			return err
		}
		ptr = ir.LocalOperand(lgIdx)
	} else {
		if ptr, err = b.handleOperand(ptrAotOp); err != nil {
			return err
		}
	}
	idx, err := b.jit.PushInst(ir.LoadInst{Ptr: ptr, Ty: ty})
	if err != nil {
		return err
	}
	b.localMap[iid] = ir.LocalOperand(idx)
	return nil
}

func (b *Builder) handleStore(inst aotir.Instruction) error {
	val, err := b.handleOperand(inst.Operand(0))
	if err != nil {
		return err
	}
	tgtAotOp := inst.Operand(1)
	var tgt ir.Operand
	if tgtAotOp.Kind == aotir.OperandGlobal {
		gidx, err := b.handleGlobal(tgtAotOp.Global)
		if err != nil {
			return err
		}
		lgIdx, err := b.jit.PushInst(ir.LookupGlobalInst{Decl: gidx})
		if err != nil {
			return err
		}
		tgt = ir.LocalOperand(lgIdx)
	} else {
		if tgt, err = b.handleOperand(tgtAotOp); err != nil {
			return err
		}
	}
	_, err = b.jit.PushInst(ir.StoreInst{Tgt: tgt, Val: val})
	return err
}

// handlePtrAdd lowers a constant-offset PtrAdd by folding it into an
// already-lowered PtrAdd feeding the same chain (via ReplaceInst) rather
// than emitting a new instruction per hop, so a multi-GEP AOT pointer
// chain collapses to one JIT PtrAdd. A non-constant offset lowers to
// DynPtrAdd instead; by convention its element size is carried as a third,
// constant operand.
func (b *Builder) handlePtrAdd(iid aotir.InstructionID, inst aotir.Instruction) error {
	ptr, err := b.handleOperand(inst.Operand(0))
	if err != nil {
		return err
	}
	offAotOp := inst.Operand(1)

	if offAotOp.Kind != aotir.OperandConst {
		if len(inst.Operands) < 3 {
			return jitrt.NewGeneral("dynamic ptr_add missing element-size operand")
		}
		numElems, err := b.handleOperand(offAotOp)
		if err != nil {
			return err
		}
		elemSizeOp := inst.Operand(2)
		if elemSizeOp.Kind != aotir.OperandConst {
			return jitrt.NewGeneral("ptr_add element size is not a constant")
		}
		elemSize := decodeConstUint(b.aotMod.Const(elemSizeOp.Const).Bytes)
		idx, err := b.jit.PushInst(ir.DynPtrAddInst{Ptr: ptr, NumElems: numElems, ElemSize: uint16(elemSize)})
		if err != nil {
			return err
		}
		b.localMap[iid] = ir.LocalOperand(idx)
		return nil
	}

	off := int32(decodeConstUint(b.aotMod.Const(offAotOp.Const).Bytes))
	if ptr.Kind() == ir.OpKindLocal {
		prevIdx := ptr.Local()
		if prev, ok := b.jit.Inst(prevIdx).(ir.PtrAddInst); ok {
			b.jit.ReplaceInst(prevIdx, ir.PtrAddInst{Ptr: prev.Ptr, Off: prev.Off + off})
			b.localMap[iid] = ir.LocalOperand(prevIdx)
			return nil
		}
	}
	idx, err := b.jit.PushInst(ir.PtrAddInst{Ptr: ptr, Off: off})
	if err != nil {
		return err
	}
	b.localMap[iid] = ir.LocalOperand(idx)
	return nil
}

func (b *Builder) handleBinOp(iid aotir.InstructionID, inst aotir.Instruction, op ir.BinOp) error {
	lhs, err := b.handleOperand(inst.Operand(0))
	if err != nil {
		return err
	}
	rhs, err := b.handleOperand(inst.Operand(1))
	if err != nil {
		return err
	}
	ty, err := b.handleType(inst.Ty)
	if err != nil {
		return err
	}
	idx, err := b.jit.PushInst(ir.BinOpInst{Lhs: lhs, Op: op, Rhs: rhs, Ty: ty})
	if err != nil {
		return err
	}
	b.localMap[iid] = ir.LocalOperand(idx)
	return nil
}

func (b *Builder) handleIcmp(iid aotir.InstructionID, inst aotir.Instruction) error {
	lhs, err := b.handleOperand(inst.Operand(0))
	if err != nil {
		return err
	}
	rhs, err := b.handleOperand(inst.Operand(1))
	if err != nil {
		return err
	}
	idx, err := b.jit.PushInst(ir.IcmpInst{Lhs: lhs, Pred: inst.Pred, Rhs: rhs})
	if err != nil {
		return err
	}
	b.localMap[iid] = ir.LocalOperand(idx)
	return nil
}

// handleCondBr turns a conditional branch into a Guard whose expect flag
// is derived from comparing the next trace action against the branch's
// true/false targets: whichever one the recorder actually followed is the
// direction the guard must keep holding for the rest of this trace to
// stay valid.
func (b *Builder) handleCondBr(actions []TraceAction, ai int, inst aotir.Instruction) error {
	cond, err := b.handleOperand(inst.Operand(0))
	if err != nil {
		return err
	}
	trueOp := inst.Operand(1)
	falseOp := inst.Operand(2)
	if trueOp.Kind != aotir.OperandBlock || falseOp.Kind != aotir.OperandBlock {
		return jitrt.NewGeneral("condbr targets are not blocks")
	}
	if ai+1 >= len(actions) || actions[ai+1].Unmapped {
		return jitrt.NewGeneral("condbr is not followed by a mapped trace action")
	}
	next := actions[ai+1].Block

	var expect bool
	switch next {
	case trueOp.Block:
		expect = true
	case falseOp.Block:
		expect = false
	default:
		return jitrt.NewGeneral("next trace action matches neither condbr target")
	}

	gi, err := b.buildGuardInfo()
	if err != nil {
		return err
	}
	giIdx, err := b.jit.PushGuardInfo(gi)
	if err != nil {
		return err
	}
	_, err = b.jit.PushInst(ir.GuardInst{Cond: cond, Expect: expect, Info: giIdx})
	return err
}

// handleRet pops the innermost inlined call frame (if any) and binds the
// call site's AOT local to whatever this function returned, so later
// references to the call's result resolve correctly.
func (b *Builder) handleRet(inst aotir.Instruction) error {
	if len(b.frames) == 0 {
		return nil
	}
	top := b.frames[len(b.frames)-1]
	b.frames = b.frames[:len(b.frames)-1]
	if len(inst.Operands) == 0 {
		return nil
	}
	retOp, err := b.handleOperand(inst.Operand(0))
	if err != nil {
		return err
	}
	b.localMap[top.callSite] = retOp
	return nil
}

// handleCall elides control-point, stackmap and debug-intrinsic calls,
// pushes a new inlined-call frame for a direct call into a function with
// a body (its result is bound later, by handleRet), and otherwise lowers
// to a direct or indirect native Call.
func (b *Builder) handleCall(iid aotir.InstructionID, inst aotir.Instruction) error {
	calleeOp := inst.Operand(0)

	if calleeOp.Kind == aotir.OperandFunc {
		callee := b.aotMod.Func(calleeOp.Func)
		switch callee.Name {
		case aotir.ControlPointName, aotir.LLVMDebugCallName:
			return nil
		case aotir.StackmapCallName:
			return b.recordStackmapCall(inst)
		}
		if !callee.IsDeclaration() {
			b.frames = append(b.frames, &frame{callSite: iid, stackmapID: b.currentStackmapID()})
			return nil
		}

		args, err := b.lowerArgs(inst)
		if err != nil {
			return err
		}
		fdIdx, err := b.handleFunc(calleeOp.Func)
		if err != nil {
			return err
		}
		argsStart, err := b.jit.PushArgs(args)
		if err != nil {
			return err
		}
		idx, err := b.jit.PushInst(ir.CallInst{Target: fdIdx, ArgsStart: argsStart, NumArgs: uint16(len(args))})
		if err != nil {
			return err
		}
		b.localMap[iid] = ir.LocalOperand(idx)
		return nil
	}

	target, err := b.handleOperand(calleeOp)
	if err != nil {
		return err
	}
	funcTyAot := b.aotMod.DefType(calleeOp)
	if b.aotMod.Type(funcTyAot).Kind != aotir.TyFunc {
		return jitrt.NewGeneral("indirect call target is not function-typed")
	}
	funcTy, err := b.handleType(funcTyAot)
	if err != nil {
		return err
	}
	args, err := b.lowerArgs(inst)
	if err != nil {
		return err
	}
	argsStart, err := b.jit.PushArgs(args)
	if err != nil {
		return err
	}
	icIdx, err := b.jit.PushIndirectCall(ir.IndirectCallData{Target: target, FuncTy: funcTy, ArgsStart: argsStart, NumArgs: uint16(len(args))})
	if err != nil {
		return err
	}
	idx, err := b.jit.PushInst(ir.IndirectCallInst{Idx: icIdx})
	if err != nil {
		return err
	}
	b.localMap[iid] = ir.LocalOperand(idx)
	return nil
}

func (b *Builder) lowerArgs(inst aotir.Instruction) ([]ir.Operand, error) {
	rest := inst.RemainingOperands(1)
	args := make([]ir.Operand, len(rest))
	for i, a := range rest {
		op, err := b.handleOperand(a)
		if err != nil {
			return nil, err
		}
		args[i] = op
	}
	return args, nil
}

func (b *Builder) recordStackmapCall(inst aotir.Instruction) error {
	if len(inst.Operands) < 2 {
		return jitrt.NewGeneral("stackmap call is missing its id argument")
	}
	idOp := inst.Operand(1)
	if idOp.Kind != aotir.OperandConst {
		return jitrt.NewGeneral("stackmap call id is not a constant")
	}
	id := stackmap.ID(decodeConstUint(b.aotMod.Const(idOp.Const).Bytes))
	if len(b.frames) == 0 {
		b.rootStackmapID = id
	} else {
		b.frames[len(b.frames)-1].stackmapID = id
	}
	return nil
}

// buildGuardInfo snapshots the AOT stackmap IDs active on the inlined
// call stack (root frame first) and, for each, the JIT operands its
// stackmap's live-variable list names, in stackmap order, concatenated.
func (b *Builder) buildGuardInfo() (ir.GuardInfo, error) {
	ids := make([]uint64, 0, len(b.frames)+1)
	ids = append(ids, uint64(b.rootStackmapID))
	for _, f := range b.frames {
		ids = append(ids, uint64(f.stackmapID))
	}

	var live []ir.Operand
	for _, id := range ids {
		rec, ok := b.stackmaps.Lookup(stackmap.ID(id))
		if !ok {
			return ir.GuardInfo{}, jitrt.NewGeneral("no stackmap record for id %d", id)
		}
		for _, lv := range rec.Live {
			op, ok := b.localMap[lv.AotLocal]
			if !ok {
				return ir.GuardInfo{}, jitrt.NewGeneral("stackmap %d references unmapped AOT local %+v", id, lv.AotLocal)
			}
			live = append(live, op)
		}
	}
	return ir.GuardInfo{StackmapIDs: ids, Live: live}, nil
}

// --- operand / type / decl translation ---

func (b *Builder) handleOperand(op aotir.Operand) (ir.Operand, error) {
	switch op.Kind {
	case aotir.OperandLocal:
		v, ok := b.localMap[op.Local]
		if !ok {
			return ir.Operand{}, jitrt.NewGeneral("unmapped or forward-referenced AOT local %+v", op.Local)
		}
		return v, nil
	case aotir.OperandConst:
		jc, err := b.handleConst(*b.aotMod.Const(op.Const))
		if err != nil {
			return ir.Operand{}, err
		}
		idx, err := b.jit.InsertConst(jc)
		if err != nil {
			return ir.Operand{}, err
		}
		return ir.ConstOperand(idx), nil
	case aotir.OperandGlobal:
		gidx, err := b.handleGlobal(op.Global)
		if err != nil {
			return ir.Operand{}, err
		}
		idx, err := b.jit.PushInst(ir.LookupGlobalInst{Decl: gidx})
		if err != nil {
			return ir.Operand{}, err
		}
		return ir.LocalOperand(idx), nil
	default:
		return ir.Operand{}, jitrt.NewGeneral("no lowering for AOT operand kind %v", op.Kind)
	}
}

func (b *Builder) handleType(aotIdx aotir.TypeIdx) (ir.TyIdx, error) {
	t := b.aotMod.Type(aotIdx)
	switch t.Kind {
	case aotir.TyVoid:
		return b.jit.VoidTyIdx(), nil
	case aotir.TyPtr:
		return b.jit.PtrTyIdx(), nil
	case aotir.TyInteger:
		return b.jit.InsertTy(ir.IntegerTy(t.Bits))
	case aotir.TyFunc:
		params := make([]ir.TyIdx, len(t.Func.ParamTys))
		for i, p := range t.Func.ParamTys {
			pt, err := b.handleType(p)
			if err != nil {
				return 0, err
			}
			params[i] = pt
		}
		ret, err := b.handleType(t.Func.RetTy)
		if err != nil {
			return 0, err
		}
		return b.jit.InsertTy(ir.FuncTy(ir.FuncType{ParamTys: params, RetTy: ret, IsVararg: t.Func.IsVararg}))
	case aotir.TyUnimplemented:
		return b.jit.InsertTy(ir.UnimplementedTy(t.Reason))
	default:
		return 0, jitrt.NewGeneral("cannot lower AOT type kind %d", t.Kind)
	}
}

func (b *Builder) handleFunc(idx aotir.FuncIdx) (ir.FuncDeclIdx, error) {
	f := b.aotMod.Func(idx)
	ty, err := b.handleType(f.Ty)
	if err != nil {
		return 0, err
	}
	return b.jit.InsertFuncDecl(ir.FuncDecl{Name: f.Name, Ty: ty})
}

func (b *Builder) handleGlobal(idx aotir.GlobalDeclIdx) (ir.GlobalDeclIdx, error) {
	gd := b.aotMod.GlobalDecl(idx)
	return b.jit.InsertGlobalDecl(ir.GlobalDecl{Name: gd.Name, ThreadLocal: gd.ThreadLocal, PtrIdx: uint32(idx)})
}

// handleConst re-derives a narrower ConstKind from the AOT type's bit
// width, since aotir.Constant stores only raw bytes, not a tagged kind.
func (b *Builder) handleConst(c aotir.Constant) (ir.Const, error) {
	ty, err := b.handleType(c.Ty)
	if err != nil {
		return ir.Const{}, err
	}
	t := b.aotMod.Type(c.Ty)
	bits := decodeConstUint(c.Bytes)

	var kind ir.ConstKind
	switch {
	case t.Kind == aotir.TyPtr:
		kind = ir.ConstPtr
	case t.Kind == aotir.TyInteger && t.Bits <= 1:
		kind = ir.ConstI1
	case t.Kind == aotir.TyInteger && t.Bits <= 8:
		kind = ir.ConstI8
	case t.Kind == aotir.TyInteger && t.Bits <= 16:
		kind = ir.ConstI16
	case t.Kind == aotir.TyInteger && t.Bits <= 32:
		kind = ir.ConstI32
	case t.Kind == aotir.TyInteger:
		kind = ir.ConstI64
	default:
		return ir.Const{}, jitrt.NewGeneral("constant has unsupported AOT type kind %d", t.Kind)
	}
	return ir.Const{Ty: ty, Kind: kind, Bits: bits}, nil
}
