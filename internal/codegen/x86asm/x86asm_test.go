package x86asm_test

import (
	"testing"

	"jitcore/internal/codegen/x86asm"
	"jitcore/internal/ir"
	"jitcore/internal/stackmap"
	"jitcore/internal/symbol"
)

func TestAssemblerEmitsNonEmptyPrologueAndPatchesJump(t *testing.T) {
	a := x86asm.NewAssembler()
	a.Push(x86asm.RBP)
	a.MovRegReg(x86asm.RBP, x86asm.RSP)
	l := a.NewLabel()
	a.JmpLabel(l)
	a.BindLabel(l)
	a.Ret()

	code, err := a.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if len(code) == 0 {
		t.Fatal("expected non-empty assembled code")
	}
}

func TestAssemblerRejectsUnboundLabel(t *testing.T) {
	a := x86asm.NewAssembler()
	l := a.NewLabel()
	a.JmpLabel(l)
	if _, err := a.Finish(); err == nil {
		t.Fatal("expected an error for an unbound jump target")
	}
}

func TestGenerateSimpleAddTrace(t *testing.T) {
	m, err := ir.NewModule(1)
	if err != nil {
		t.Fatalf("NewModule: %v", err)
	}
	five, _ := m.InsertConst(ir.Const{Ty: m.Int64TyIdx(), Kind: ir.ConstI64, Bits: 5})
	seven, _ := m.InsertConst(ir.Const{Ty: m.Int64TyIdx(), Kind: ir.ConstI64, Bits: 7})

	m.PushInst(ir.TraceLoopStartInst{})
	sum, _ := m.PushInst(ir.BinOpInst{
		Lhs: ir.ConstOperand(five),
		Op:  ir.BinOpAdd,
		Rhs: ir.ConstOperand(seven),
		Ty:  m.Int64TyIdx(),
	})

	gi, _ := m.PushGuardInfo(ir.GuardInfo{StackmapIDs: []uint64{0}, Live: []ir.Operand{ir.LocalOperand(sum)}})
	cmp, _ := m.PushInst(ir.IcmpInst{Lhs: ir.LocalOperand(sum), Pred: ir.PredEq, Rhs: ir.ConstOperand(five)})
	m.PushInst(ir.GuardInst{Cond: ir.LocalOperand(cmp), Expect: true, Info: gi})

	resolver := symbol.Map{
		"__yk_guardcheck": 0x1000,
		"__yk_deopt":      0x2000,
	}
	smt := stackmap.NewTable([]*stackmap.Record{{ID: 0, Size: 16, ResumePC: 0x3000}})

	res, err := x86asm.Generate(m, resolver, smt, 0x4000)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(res.Code) == 0 {
		t.Fatal("expected non-empty generated code")
	}
	if len(res.DeoptInfos) != 1 {
		t.Fatalf("DeoptInfos = %d, want 1", len(res.DeoptInfos))
	}
	if res.DeoptInfos[0].GuardID != uint64(gi) {
		t.Fatalf("DeoptInfo.GuardID = %d, want %d", res.DeoptInfos[0].GuardID, gi)
	}
	if res.PrologueFrameSize <= 0 || res.PrologueFrameSize%16 != 0 {
		t.Fatalf("PrologueFrameSize = %d, want a positive multiple of 16", res.PrologueFrameSize)
	}

	if _, err := x86asm.DisassembleBytes(res.Code); err != nil {
		t.Fatalf("DisassembleBytes: %v", err)
	}
}

func TestGenerateRejectsTooManyCallArgs(t *testing.T) {
	m, _ := ir.NewModule(2)
	m.PushInst(ir.TraceLoopStartInst{})

	ft := ir.FuncTy(ir.FuncType{RetTy: m.VoidTyIdx()})
	fty, _ := m.InsertTy(ft)
	fd, _ := m.InsertFuncDecl(ir.FuncDecl{Name: "f", Ty: fty})

	var args []ir.Operand
	for i := 0; i < x86asm.MaxCallArgs+1; i++ {
		c, _ := m.InsertConst(ir.Const{Ty: m.Int64TyIdx(), Kind: ir.ConstI64, Bits: uint64(i)})
		args = append(args, ir.ConstOperand(c))
	}
	argsStart, _ := m.PushArgs(args)
	m.PushInst(ir.CallInst{Target: fd, ArgsStart: argsStart, NumArgs: uint16(len(args))})

	resolver := symbol.Map{"f": 0x9000}
	if _, err := x86asm.Generate(m, resolver, stackmap.NewTable(nil), 0); err == nil {
		t.Fatal("expected an error for a call with too many arguments")
	}
}
