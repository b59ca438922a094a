package tracebuilder_test

import (
	"strings"
	"testing"

	"jitcore/internal/aotir"
	"jitcore/internal/ir"
	"jitcore/internal/stackmap"
	"jitcore/internal/tracebuilder"
)

func leBytes(v uint64, n int) []byte {
	b := make([]byte, n)
	for i := 0; i < n; i++ {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

// buildSample constructs a tiny AOT module representing one function,
// interp_loop, with a header block that stores a live variable into the
// trace-inputs struct and calls the control point, followed by a block
// that compares it against a constant and a final block reached on the
// taken side of the guard.
func buildSample() *aotir.Module {
	m := &aotir.Module{
		Types: []aotir.Type{
			{Kind: aotir.TyVoid},
			{Kind: aotir.TyPtr},
			{Kind: aotir.TyInteger, Bits: 64},
			{Kind: aotir.TyInteger, Bits: 32},
			{Kind: aotir.TyFunc, Func: aotir.FuncType{ParamTys: []aotir.TypeIdx{1}, RetTy: 0}},
		},
		Consts: []aotir.Constant{
			{Ty: 2, Bytes: leBytes(5, 8)},      // 0: addend
			{Ty: 2, Bytes: leBytes(7, 8)},      // 1: addend
			{Ty: 3, Bytes: leBytes(0, 4)},      // 2: trace-input offset 0
			{Ty: 2, Bytes: leBytes(0xdead, 8)}, // 3: frame addr placeholder
			{Ty: 2, Bytes: leBytes(12, 8)},     // 4: comparand (5+7)
		},
		Funcs: []aotir.Func{
			{
				Name: aotir.ControlPointName,
				Ty:   4,
			},
			{
				Name: "interp_loop",
				Ty:   4,
				Blocks: []aotir.BBlock{
					{ // block 0: header
						Instrs: []aotir.Instruction{
							{ // 0: x := 5 + 7
								Opcode: aotir.OpAdd,
								Ty:     2,
								Operands: []aotir.Operand{
									{Kind: aotir.OperandConst, Const: 0},
									{Kind: aotir.OperandConst, Const: 1},
								},
							},
							{ // 1: ptr0 := trace_inputs + 0
								Opcode: aotir.OpPtrAdd,
								Ty:     1,
								Operands: []aotir.Operand{
									{Kind: aotir.OperandArg, Arg: 0},
									{Kind: aotir.OperandConst, Const: 2},
								},
							},
							{ // 2: store x -> ptr0
								Opcode: aotir.OpStore,
								Ty:     0,
								Operands: []aotir.Operand{
									{Kind: aotir.OperandLocal, Local: aotir.InstructionID{BBlockIdx: 0, InstrIdx: 0}},
									{Kind: aotir.OperandLocal, Local: aotir.InstructionID{BBlockIdx: 0, InstrIdx: 1}},
								},
							},
							{ // 3: call control_point(trace_inputs, frame_addr)
								Opcode: aotir.OpCall,
								Ty:     0,
								Operands: []aotir.Operand{
									{Kind: aotir.OperandFunc, Func: 0},
									{Kind: aotir.OperandArg, Arg: 0},
									{Kind: aotir.OperandConst, Const: 3},
								},
							},
						},
					},
					{ // block 1: compare x against 12
						Instrs: []aotir.Instruction{
							{ // 0: cmp := x == 12
								Opcode: aotir.OpIcmp,
								Ty:     2,
								Pred:   ir.PredEq,
								Operands: []aotir.Operand{
									{Kind: aotir.OperandLocal, Local: aotir.InstructionID{BBlockIdx: 0, InstrIdx: 0}},
									{Kind: aotir.OperandConst, Const: 4},
								},
							},
							{ // 1: condbr cmp, block2, block3
								Opcode: aotir.OpCondBr,
								Ty:     0,
								Operands: []aotir.Operand{
									{Kind: aotir.OperandLocal, Local: aotir.InstructionID{BBlockIdx: 1, InstrIdx: 0}},
									{Kind: aotir.OperandBlock, Block: 2},
									{Kind: aotir.OperandBlock, Block: 3},
								},
							},
						},
					},
					{ // block 2: taken side
						Instrs: []aotir.Instruction{
							{Opcode: aotir.OpRet, Ty: 0},
						},
					},
					{ // block 3: not taken, unreached by this trace
						Instrs: []aotir.Instruction{
							{Opcode: aotir.OpRet, Ty: 0},
						},
					},
				},
			},
		},
	}
	raw := aotir.Write(m)
	got, err := aotir.Read(raw)
	if err != nil {
		panic(err)
	}
	return got
}

func sampleStackmaps() *stackmap.Table {
	return stackmap.NewTable([]*stackmap.Record{
		{
			ID:   0,
			Size: 32,
			Live: []stackmap.LiveVar{
				{AotLocal: aotir.InstructionID{FuncIdx: 1, BBlockIdx: 0, InstrIdx: 0}},
			},
			ResumePC: 0x1000,
		},
	})
}

func TestBuildLowersHeaderAndGuard(t *testing.T) {
	aotMod := buildSample()
	actions := []tracebuilder.TraceAction{
		tracebuilder.Mapped("interp_loop", 0),
		tracebuilder.Mapped("interp_loop", 1),
		tracebuilder.Mapped("interp_loop", 2),
	}

	jitMod, err := tracebuilder.Build("test", 1, aotMod, actions, sampleStackmaps())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if jitMod.NumInsts() == 0 {
		t.Fatal("expected a non-empty JIT module")
	}
	if jitMod.NumGuards() != 1 {
		t.Fatalf("NumGuards() = %d, want 1", jitMod.NumGuards())
	}
	gi := jitMod.GuardInfo(0)
	if len(gi.StackmapIDs) != 1 || gi.StackmapIDs[0] != 0 {
		t.Fatalf("unexpected guard stackmap ids: %+v", gi.StackmapIDs)
	}
	if len(gi.Live) != 1 {
		t.Fatalf("expected one live operand, got %d", len(gi.Live))
	}

	dump := ir.Display(jitMod)
	if !strings.Contains(dump, "load_ti") && !strings.Contains(dump, "loadtraceinput") {
		// Either label is acceptable; just confirm a header instruction made it in.
		if !strings.Contains(strings.ToLower(dump), "trace_input") {
			t.Errorf("no header instruction in display output:\n%s", dump)
		}
	}
}

func TestBuildFailsOnUnmappedHeader(t *testing.T) {
	aotMod := buildSample()
	actions := []tracebuilder.TraceAction{tracebuilder.UnmappedRegion()}
	if _, err := tracebuilder.Build("test", 1, aotMod, actions, sampleStackmaps()); err == nil {
		t.Fatal("expected an error when the trace has no mapped blocks")
	}
}

func TestBuildFailsOnMissingStackmap(t *testing.T) {
	aotMod := buildSample()
	actions := []tracebuilder.TraceAction{
		tracebuilder.Mapped("interp_loop", 0),
		tracebuilder.Mapped("interp_loop", 1),
		tracebuilder.Mapped("interp_loop", 2),
	}
	empty := stackmap.NewTable(nil)
	if _, err := tracebuilder.Build("test", 1, aotMod, actions, empty); err == nil {
		t.Fatal("expected an error when the active stackmap id has no record")
	}
}
