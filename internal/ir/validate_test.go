package ir

import "testing"

func TestValidateRejectsCrossTypeBinOp(t *testing.T) {
	m, _ := NewModule(0)
	a, _ := m.PushInst(LoadTraceInputInst{Off: 0, Ty: m.Int8TyIdx()})
	b, _ := m.PushInst(LoadTraceInputInst{Off: 1, Ty: m.Int16TyIdx()})
	m.PushInst(BinOpInst{Lhs: LocalOperand(a), Op: BinOpAdd, Rhs: LocalOperand(b), Ty: m.Int8TyIdx()})
	if err := Validate(m); err == nil {
		t.Fatal("expected cross-type binop to be rejected")
	}
}

func TestValidateRejectsNonI1Guard(t *testing.T) {
	m, _ := NewModule(0)
	a, _ := m.PushInst(LoadTraceInputInst{Off: 0, Ty: m.Int8TyIdx()})
	gi, _ := m.PushGuardInfo(GuardInfo{})
	m.PushInst(GuardInst{Cond: LocalOperand(a), Expect: true, Info: gi})
	if err := Validate(m); err == nil {
		t.Fatal("expected non-i1 guard condition to be rejected")
	}
}

func TestValidateRejectsNarrowingSExt(t *testing.T) {
	m, _ := NewModule(0)
	a, _ := m.PushInst(LoadTraceInputInst{Off: 0, Ty: m.Int32TyIdx()})
	m.PushInst(SExtInst{Val: LocalOperand(a), DestTy: m.Int8TyIdx()})
	if err := Validate(m); err == nil {
		t.Fatal("expected sext to a narrower type to be rejected")
	}
}

func TestValidateRejectsWideningZExtToSmaller(t *testing.T) {
	m, _ := NewModule(0)
	a, _ := m.PushInst(LoadTraceInputInst{Off: 0, Ty: m.Int32TyIdx()})
	m.PushInst(ZExtInst{Val: LocalOperand(a), DestTy: m.Int16TyIdx()})
	if err := Validate(m); err == nil {
		t.Fatal("expected zext to a narrower-or-equal type to be rejected")
	}
}

func TestValidateAllowsZExtFromPtr(t *testing.T) {
	m, _ := NewModule(0)
	a, _ := m.PushInst(LoadTraceInputInst{Off: 0, Ty: m.PtrTyIdx()})
	m.PushInst(ZExtInst{Val: LocalOperand(a), DestTy: m.Int64TyIdx()})
	if err := Validate(m); err != nil {
		t.Fatalf("zext from ptr should be allowed as a pragmatic relaxation: %v", err)
	}
}

func TestValidateRejectsWideningTruncToLarger(t *testing.T) {
	m, _ := NewModule(0)
	a, _ := m.PushInst(LoadTraceInputInst{Off: 0, Ty: m.Int8TyIdx()})
	m.PushInst(TruncInst{Val: LocalOperand(a), DestTy: m.Int32TyIdx()})
	if err := Validate(m); err == nil {
		t.Fatal("expected trunc to a wider-or-equal type to be rejected")
	}
}

func TestValidateRejectsWrongCallArity(t *testing.T) {
	m, _ := NewModule(0)
	paramTy := m.Int32TyIdx()
	fty, _ := m.InsertTy(FuncTy(FuncType{ParamTys: []TyIdx{paramTy}, RetTy: m.VoidTyIdx()}))
	fd, _ := m.InsertFuncDecl(FuncDecl{Name: "f", Ty: fty})
	m.PushInst(CallInst{Target: fd, ArgsStart: 0, NumArgs: 0})
	if err := Validate(m); err == nil {
		t.Fatal("expected wrong-arity call to be rejected")
	}
}

func TestValidateRejectsNonLeadingLoadTraceInput(t *testing.T) {
	m, _ := NewModule(0)
	a, _ := m.PushInst(LoadTraceInputInst{Off: 0, Ty: m.Int8TyIdx()})
	m.PushInst(TruncInst{Val: LocalOperand(a), DestTy: m.Int1TyIdx()})
	m.PushInst(LoadTraceInputInst{Off: 8, Ty: m.Int8TyIdx()})
	if err := Validate(m); err == nil {
		t.Fatal("expected a non-leading load_ti to be rejected")
	}
}

func TestValidateRejectsDuplicateLoadTraceInputOffset(t *testing.T) {
	m, _ := NewModule(0)
	m.PushInst(LoadTraceInputInst{Off: 0, Ty: m.Int8TyIdx()})
	m.PushInst(LoadTraceInputInst{Off: 0, Ty: m.Int16TyIdx()})
	if err := Validate(m); err == nil {
		t.Fatal("expected duplicate load_ti offsets to be rejected")
	}
}

func TestValidateRejectsDuplicateGuardLiveLocal(t *testing.T) {
	m, _ := NewModule(0)
	a, _ := m.PushInst(LoadTraceInputInst{Off: 0, Ty: m.Int1TyIdx()})
	gi, _ := m.PushGuardInfo(GuardInfo{Live: []Operand{LocalOperand(a), LocalOperand(a)}})
	m.PushInst(GuardInst{Cond: LocalOperand(a), Expect: true, Info: gi})
	if err := Validate(m); err == nil {
		t.Fatal("expected duplicate guard live locals to be rejected")
	}
}

func TestValidateAcceptsWellFormedTrace(t *testing.T) {
	m, _ := NewModule(0)
	a, _ := m.PushInst(LoadTraceInputInst{Off: 0, Ty: m.Int8TyIdx()})
	b, _ := m.PushInst(LoadTraceInputInst{Off: 1, Ty: m.Int8TyIdx()})
	sum, _ := m.PushInst(BinOpInst{Lhs: LocalOperand(a), Op: BinOpAdd, Rhs: LocalOperand(b), Ty: m.Int8TyIdx()})
	cmp, _ := m.PushInst(IcmpInst{Lhs: LocalOperand(sum), Pred: PredEq, Rhs: LocalOperand(b)})
	gi, _ := m.PushGuardInfo(GuardInfo{StackmapIDs: []uint64{1}, Live: []Operand{LocalOperand(sum)}})
	m.PushInst(GuardInst{Cond: LocalOperand(cmp), Expect: true, Info: gi})
	m.PushInst(TraceLoopStartInst{})
	if err := Validate(m); err != nil {
		t.Fatalf("expected a well-formed trace to validate cleanly: %v", err)
	}
}
