package ir

import (
	"reflect"
	"testing"
)

func TestTypeIdempotence(t *testing.T) {
	m, err := NewModule(0)
	if err != nil {
		t.Fatal(err)
	}
	i1, err := m.InsertTy(IntegerTy(37))
	if err != nil {
		t.Fatal(err)
	}
	i2, err := m.InsertTy(IntegerTy(37))
	if err != nil {
		t.Fatal(err)
	}
	if i1 != i2 {
		t.Fatalf("two inserts of an equal type returned different indices: %d vs %d", i1, i2)
	}
	if got := m.Type(i1); !reflect.DeepEqual(got, IntegerTy(37)) {
		t.Fatalf("Type(insert_ty(t)) != t: got %+v", got)
	}
}

func TestConstFuncDeclGlobalDeclIdempotence(t *testing.T) {
	m, err := NewModule(0)
	if err != nil {
		t.Fatal(err)
	}
	c := Const{Ty: m.Int32TyIdx(), Kind: ConstI32, Bits: 42}
	c1, _ := m.InsertConst(c)
	c2, _ := m.InsertConst(c)
	if c1 != c2 {
		t.Fatalf("const insert not idempotent")
	}

	ft, _ := m.InsertTy(FuncTy(FuncType{RetTy: m.VoidTyIdx()}))
	fd := FuncDecl{Name: "foo", Ty: ft}
	f1, _ := m.InsertFuncDecl(fd)
	f2, _ := m.InsertFuncDecl(fd)
	if f1 != f2 {
		t.Fatalf("func decl insert not idempotent")
	}

	gd := GlobalDecl{Name: "bar", PtrIdx: 3}
	g1, _ := m.InsertGlobalDecl(gd)
	g2, _ := m.InsertGlobalDecl(gd)
	if g1 != g2 {
		t.Fatalf("global decl insert not idempotent")
	}
}

func TestIndexStabilityAcrossReplace(t *testing.T) {
	m, err := NewModule(0)
	if err != nil {
		t.Fatal(err)
	}
	i0, _ := m.PushInst(LoadTraceInputInst{Off: 0, Ty: m.Int8TyIdx()})
	i1, _ := m.PushInst(LoadTraceInputInst{Off: 1, Ty: m.Int8TyIdx()})

	m.ReplaceInst(i0, LoadTraceInputInst{Off: 0, Ty: m.Int16TyIdx()})

	if got := m.Inst(i0).DefTy(m); got != m.Int16TyIdx() {
		t.Fatalf("replace did not take effect")
	}
	if got := m.Inst(i1).DefTy(m); got != m.Int8TyIdx() {
		t.Fatalf("replacing i0 disturbed i1")
	}
	if m.NumInsts() != 2 {
		t.Fatalf("replace must not change the instruction count, got %d", m.NumInsts())
	}
}

func TestLimitExceededOnPoolExhaustion(t *testing.T) {
	m, err := NewModule(0)
	if err != nil {
		t.Fatal(err)
	}
	// Exhaust a 16-bit pool quickly by inserting distinct constants.
	ty := m.Int32TyIdx()
	var lastErr error
	for i := 0; i <= 1<<16; i++ {
		_, lastErr = m.InsertConst(Const{Ty: ty, Kind: ConstI32, Bits: uint64(i)})
		if lastErr != nil {
			break
		}
	}
	if lastErr == nil {
		t.Fatalf("expected LimitExceeded once the const pool overflows 16 bits")
	}
	if _, ok := lastErr.(interface{ Error() string }); !ok {
		t.Fatalf("expected an error value")
	}
}
