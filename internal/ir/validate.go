package ir

import "jitcore/internal/jitrt"

// Validate checks every well-formedness invariant in the data model:
//   - operands referring to locals only reference previously defined
//     instructions (no forward references)
//   - BinOp/Icmp operands share a type index, and that type is integer
//   - Guard.Cond has type i1
//   - SExt/ZExt require a strictly wider dest type; Trunc a strictly
//     narrower one (ZExt additionally tolerates a Ptr source, to
//     accommodate ptrtoint lowering per the design notes)
//   - Call passes exactly num_params args (plus any extra only if vararg),
//     each argument's type matching the corresponding parameter's
//   - every LoadTraceInput is contiguous at the start of the module, and no
//     two of them share a byte offset
//   - no guard's live-variable list names the same local twice
//
// It returns the first violation found, wrapped as a GeneralError.
// tracebuilder.Build runs it on every module it builds.
func Validate(m *Module) error {
	seenNonLTI := false
	seenOffsets := make(map[uint32]bool)

	for i := 0; i < m.NumInsts(); i++ {
		idx, _ := NewInstIdx(i)
		inst := m.Inst(idx)

		if lti, ok := inst.(LoadTraceInputInst); ok {
			if seenNonLTI {
				return jitrt.NewGeneral("load_ti at inst %d is not contiguous with the leading run", i)
			}
			if seenOffsets[lti.Off] {
				return jitrt.NewGeneral("duplicate load_ti offset %d at inst %d", lti.Off, i)
			}
			seenOffsets[lti.Off] = true
			continue
		}
		seenNonLTI = true

		if err := validateOperandsDefined(m, idx, inst); err != nil {
			return err
		}
		if err := validateInst(m, idx, inst); err != nil {
			return err
		}
	}
	return nil
}

// checkDefined verifies that a local operand refers to an instruction
// strictly before idx (forward references are illegal) and that the
// referenced instruction actually defines a value.
func checkDefined(m *Module, idx InstIdx, op Operand) error {
	if op.Kind() != OpKindLocal {
		return nil
	}
	if op.Local() >= idx {
		return jitrt.NewGeneral("inst %d references undefined/forward local %d", idx, op.Local())
	}
	if IsVoid(m, m.Inst(op.Local())) {
		return jitrt.NewGeneral("inst %d references void-defining local %d", idx, op.Local())
	}
	return nil
}

func validateOperandsDefined(m *Module, idx InstIdx, inst Inst) error {
	for _, op := range operandsOf(m, inst) {
		if err := checkDefined(m, idx, op); err != nil {
			return err
		}
	}
	return nil
}

// operandsOf returns every Operand directly embedded in inst (not
// including side-table-resident operands covered elsewhere, e.g. guard
// live-var lists, which are validated separately).
func operandsOf(m *Module, inst Inst) []Operand {
	switch i := inst.(type) {
	case LoadInst:
		return []Operand{i.Ptr}
	case StoreInst:
		return []Operand{i.Tgt, i.Val}
	case PtrAddInst:
		return []Operand{i.Ptr}
	case DynPtrAddInst:
		return []Operand{i.Ptr, i.NumElems}
	case BinOpInst:
		return []Operand{i.Lhs, i.Rhs}
	case IcmpInst:
		return []Operand{i.Lhs, i.Rhs}
	case SelectInst:
		return []Operand{i.Cond, i.TrueVal, i.FalseVal}
	case SExtInst:
		return []Operand{i.Val}
	case ZExtInst:
		return []Operand{i.Val}
	case TruncInst:
		return []Operand{i.Val}
	case CallInst:
		return m.Args(i.ArgsStart, i.NumArgs)
	case IndirectCallInst:
		ic := m.IndirectCall(i.Idx)
		ops := make([]Operand, 0, 1+ic.NumArgs)
		ops = append(ops, ic.Target)
		ops = append(ops, m.Args(ic.ArgsStart, ic.NumArgs)...)
		return ops
	case GuardInst:
		return []Operand{i.Cond}
	default:
		return nil
	}
}

func typeOf(m *Module, op Operand) TyIdx {
	if op.Kind() == OpKindConst {
		return m.Const(op.Const()).Ty
	}
	return m.Inst(op.Local()).DefTy(m)
}

func validateInst(m *Module, idx InstIdx, inst Inst) error {
	switch i := inst.(type) {
	case BinOpInst:
		lt, rt := typeOf(m, i.Lhs), typeOf(m, i.Rhs)
		if lt != rt {
			return jitrt.NewGeneral("inst %d: binop operand types differ (%s vs %s)", idx, m.Type(lt), m.Type(rt))
		}
		if !m.Type(lt).IsInteger() {
			return jitrt.NewGeneral("inst %d: binop on non-integer type %s", idx, m.Type(lt))
		}
		if lt != i.Ty {
			return jitrt.NewGeneral("inst %d: binop result type does not match operand type", idx)
		}
	case IcmpInst:
		lt, rt := typeOf(m, i.Lhs), typeOf(m, i.Rhs)
		if lt != rt {
			return jitrt.NewGeneral("inst %d: icmp operand types differ (%s vs %s)", idx, m.Type(lt), m.Type(rt))
		}
		if !m.Type(lt).IsInteger() {
			return jitrt.NewGeneral("inst %d: icmp on non-integer type %s", idx, m.Type(lt))
		}
	case GuardInst:
		ct := typeOf(m, i.Cond)
		if ct != m.int1TyIdx {
			return jitrt.NewGeneral("inst %d: guard condition has type %s, want i1", idx, m.Type(ct))
		}
		gi := m.GuardInfo(i.Info)
		seen := make(map[InstIdx]bool, len(gi.Live))
		for _, op := range gi.Live {
			if op.Kind() != OpKindLocal {
				continue
			}
			if seen[op.Local()] {
				return jitrt.NewGeneral("inst %d: guard live-list has duplicate local %d", idx, op.Local())
			}
			seen[op.Local()] = true
		}
	case SExtInst:
		srcTy := m.Type(typeOf(m, i.Val))
		dstTy := m.Type(i.DestTy)
		if !(srcTy.IsInteger() && dstTy.IsInteger() && dstTy.Bits > srcTy.Bits) {
			return jitrt.NewGeneral("inst %d: sext dest type %s must be strictly wider than source %s", idx, dstTy, srcTy)
		}
	case ZExtInst:
		srcTy := m.Type(typeOf(m, i.Val))
		dstTy := m.Type(i.DestTy)
		srcOK := srcTy.IsInteger() || srcTy.Kind == TyPtr
		if !(srcOK && dstTy.IsInteger()) {
			return jitrt.NewGeneral("inst %d: zext requires an integer (or pointer) source and integer dest", idx)
		}
		if srcTy.IsInteger() && dstTy.Bits <= srcTy.Bits {
			return jitrt.NewGeneral("inst %d: zext dest type %s must be strictly wider than source %s", idx, dstTy, srcTy)
		}
	case TruncInst:
		srcTy := m.Type(typeOf(m, i.Val))
		dstTy := m.Type(i.DestTy)
		if !(srcTy.IsInteger() && dstTy.IsInteger() && dstTy.Bits < srcTy.Bits) {
			return jitrt.NewGeneral("inst %d: trunc dest type %s must be strictly narrower than source %s", idx, dstTy, srcTy)
		}
	case CallInst:
		fd := m.FuncDecl(i.Target)
		ft := m.Type(fd.Ty).Func
		args := m.Args(i.ArgsStart, i.NumArgs)
		if len(args) < len(ft.ParamTys) || (!ft.IsVararg && len(args) != len(ft.ParamTys)) {
			return jitrt.NewGeneral("inst %d: call to %q passed %d args, want %d", idx, fd.Name, len(args), len(ft.ParamTys))
		}
		for pi, pty := range ft.ParamTys {
			if at := typeOf(m, args[pi]); at != pty {
				return jitrt.NewGeneral("inst %d: call to %q arg %d has type %s, want %s", idx, fd.Name, pi, m.Type(at), m.Type(pty))
			}
		}
	}
	return nil
}
