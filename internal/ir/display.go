package ir

import (
	"fmt"
	"strings"
)

// Display renders m as a human-readable listing, one instruction per line
// in the `%N: ty = op args` style the teacher's SSA dumper uses (see
// cmd/compile's `-d=ssa/.../dump` textual form). It exists for tests and
// debugging, never for anything on the compilation hot path.
func Display(m *Module) string {
	var b strings.Builder
	for i := 0; i < m.NumInsts(); i++ {
		idx, _ := NewInstIdx(i)
		inst := m.Inst(idx)
		defTy := inst.DefTy(m)
		if defTy == m.voidTyIdx {
			fmt.Fprintf(&b, "%s\n", displayInst(m, inst))
		} else {
			fmt.Fprintf(&b, "%%%d: %s = %s\n", i, m.Type(defTy), displayInst(m, inst))
		}
	}
	return b.String()
}

func displayOperand(m *Module, op Operand) string {
	if op.Kind() == OpKindConst {
		return m.Const(op.Const()).String()
	}
	return fmt.Sprintf("%%%d", op.Local())
}

func displayInst(m *Module, inst Inst) string {
	switch i := inst.(type) {
	case LoadTraceInputInst:
		return fmt.Sprintf("load_ti %d", i.Off)
	case LoadInst:
		return fmt.Sprintf("load %s", displayOperand(m, i.Ptr))
	case StoreInst:
		return fmt.Sprintf("*%s = %s", displayOperand(m, i.Tgt), displayOperand(m, i.Val))
	case PtrAddInst:
		return fmt.Sprintf("ptr_add %s, %d", displayOperand(m, i.Ptr), i.Off)
	case DynPtrAddInst:
		return fmt.Sprintf("dyn_ptr_add %s, %s * %d", displayOperand(m, i.Ptr), displayOperand(m, i.NumElems), i.ElemSize)
	case BinOpInst:
		return fmt.Sprintf("%s %s, %s", i.Op, displayOperand(m, i.Lhs), displayOperand(m, i.Rhs))
	case IcmpInst:
		return fmt.Sprintf("icmp %s %s, %s", i.Pred, displayOperand(m, i.Lhs), displayOperand(m, i.Rhs))
	case SelectInst:
		return fmt.Sprintf("%s ? %s : %s", displayOperand(m, i.Cond), displayOperand(m, i.TrueVal), displayOperand(m, i.FalseVal))
	case SExtInst:
		return fmt.Sprintf("sext %s", displayOperand(m, i.Val))
	case ZExtInst:
		return fmt.Sprintf("zext %s", displayOperand(m, i.Val))
	case TruncInst:
		return fmt.Sprintf("trunc %s", displayOperand(m, i.Val))
	case CallInst:
		fd := m.FuncDecl(i.Target)
		return fmt.Sprintf("call @%s(%s)", fd.Name, displayArgs(m, m.Args(i.ArgsStart, i.NumArgs)))
	case IndirectCallInst:
		ic := m.IndirectCall(i.Idx)
		return fmt.Sprintf("icall %s(%s)", displayOperand(m, ic.Target), displayArgs(m, m.Args(ic.ArgsStart, ic.NumArgs)))
	case LookupGlobalInst:
		return fmt.Sprintf("lookup_global @%s", m.GlobalDecl(i.Decl).Name)
	case GuardInst:
		return fmt.Sprintf("guard %s, %t", displayOperand(m, i.Cond), i.Expect)
	case TraceLoopStartInst:
		return "tloop_start"
	case ArgInst:
		return fmt.Sprintf("arg(%d)", i.Idx)
	case UnimplementedInst:
		return fmt.Sprintf("unimplemented<%s>", i.Reason)
	default:
		return "?"
	}
}

func displayArgs(m *Module, ops []Operand) string {
	parts := make([]string, len(ops))
	for i, op := range ops {
		parts[i] = displayOperand(m, op)
	}
	return strings.Join(parts, ", ")
}
