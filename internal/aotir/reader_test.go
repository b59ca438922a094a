package aotir

import (
	"testing"

	"jitcore/internal/ir"
)

func sampleModule() *Module {
	return &Module{
		Types: []Type{
			{Kind: TyVoid},
			{Kind: TyPtr},
			{Kind: TyInteger, Bits: 32},
			{Kind: TyFunc, Func: FuncType{ParamTys: []TypeIdx{2}, RetTy: 0}},
		},
		Consts: []Constant{
			{Ty: 2, Bytes: []byte{42, 0, 0, 0}},
		},
		GlobalDecls: []GlobalDecl{
			{Name: "counter", ThreadLocal: false},
		},
		Funcs: []Func{
			{
				Name: ControlPointName,
				Ty:   3,
				Blocks: []BBlock{
					{
						Instrs: []Instruction{
							{Opcode: OpLoad, Ty: 2, Operands: []Operand{{Kind: OperandConst, Const: 0}}},
							{
								Opcode: OpAdd,
								Ty:     2,
								Operands: []Operand{
									{Kind: OperandLocal, Local: InstructionID{BBlockIdx: 0, InstrIdx: 0}},
									{Kind: OperandConst, Const: 0},
								},
							},
							{Opcode: OpIcmp, Ty: 2, Pred: ir.PredEq, Operands: []Operand{
								{Kind: OperandLocal, Local: InstructionID{BBlockIdx: 0, InstrIdx: 1}},
								{Kind: OperandConst, Const: 0},
							}},
						},
					},
				},
			},
		},
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	want := sampleModule()
	raw := Write(want)

	got, err := Read(raw)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if len(got.Funcs) != len(want.Funcs) || len(got.Types) != len(want.Types) {
		t.Fatalf("shape mismatch after round trip: %+v", got)
	}
	if _, ok := got.FuncByName(ControlPointName); !ok {
		t.Fatalf("control point function missing after round trip")
	}
	// The on-disk form omits FuncIdx on local-variable operands; confirm
	// the post-parse rewrite pass filled it back in.
	addInst := got.Funcs[0].Blocks[0].Instrs[1]
	lhs := addInst.Operands[0]
	if lhs.Kind != OperandLocal || lhs.Local.FuncIdx != 0 {
		t.Fatalf("rewriteLocalVariables did not set FuncIdx: %+v", lhs)
	}
}

func TestReadRejectsBadMagic(t *testing.T) {
	raw := Write(sampleModule())
	raw[0] ^= 0xff
	if _, err := Read(raw); err == nil {
		t.Fatal("expected a bad-magic error")
	}
}

func TestReadRejectsBadVersion(t *testing.T) {
	raw := Write(sampleModule())
	// Version is the second 32-bit word.
	raw[4] = 0xff
	if _, err := Read(raw); err == nil {
		t.Fatal("expected a bad-version error")
	}
}
