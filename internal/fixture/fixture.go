// Package fixture builds small, self-contained AOT-IR-plus-trace samples
// for jitdump's -demo mode and for cmd/jitdump's own tests: the same
// hand-built-module-plus-round-trip-through-Write/Read idiom
// internal/tracebuilder's own tests use, collected here so both the CLI and
// its tests can share one definition instead of drifting apart.
package fixture

import (
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

// Interp builds a tiny AOT module with one function, interp_loop: a header
// block that stores a live variable into the trace-inputs struct and calls
// the control point, a block that compares it against a constant, and the
// taken/not-taken successors of that comparison's guard.
func Interp() *aotir.Module {
	m := &aotir.Module{
		Types: []aotir.Type{
			{Kind: aotir.TyVoid},
			{Kind: aotir.TyPtr},
			{Kind: aotir.TyInteger, Bits: 64},
			{Kind: aotir.TyInteger, Bits: 32},
			{Kind: aotir.TyFunc, Func: aotir.FuncType{ParamTys: []aotir.TypeIdx{1}, RetTy: 0}},
		},
		Consts: []aotir.Constant{
			{Ty: 2, Bytes: leBytes(5, 8)},
			{Ty: 2, Bytes: leBytes(7, 8)},
			{Ty: 3, Bytes: leBytes(0, 4)},
			{Ty: 2, Bytes: leBytes(0xdead, 8)},
			{Ty: 2, Bytes: leBytes(12, 8)},
		},
		Funcs: []aotir.Func{
			{Name: aotir.ControlPointName, Ty: 4},
			{
				Name: "interp_loop",
				Ty:   4,
				Blocks: []aotir.BBlock{
					{
						Instrs: []aotir.Instruction{
							{
								Opcode: aotir.OpAdd,
								Ty:     2,
								Operands: []aotir.Operand{
									{Kind: aotir.OperandConst, Const: 0},
									{Kind: aotir.OperandConst, Const: 1},
								},
							},
							{
								Opcode: aotir.OpPtrAdd,
								Ty:     1,
								Operands: []aotir.Operand{
									{Kind: aotir.OperandArg, Arg: 0},
									{Kind: aotir.OperandConst, Const: 2},
								},
							},
							{
								Opcode: aotir.OpStore,
								Ty:     0,
								Operands: []aotir.Operand{
									{Kind: aotir.OperandLocal, Local: aotir.InstructionID{BBlockIdx: 0, InstrIdx: 0}},
									{Kind: aotir.OperandLocal, Local: aotir.InstructionID{BBlockIdx: 0, InstrIdx: 1}},
								},
							},
							{
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
					{
						Instrs: []aotir.Instruction{
							{
								Opcode: aotir.OpIcmp,
								Ty:     2,
								Pred:   ir.PredEq,
								Operands: []aotir.Operand{
									{Kind: aotir.OperandLocal, Local: aotir.InstructionID{BBlockIdx: 0, InstrIdx: 0}},
									{Kind: aotir.OperandConst, Const: 4},
								},
							},
							{
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
					{Instrs: []aotir.Instruction{{Opcode: aotir.OpRet, Ty: 0}}},
					{Instrs: []aotir.Instruction{{Opcode: aotir.OpRet, Ty: 0}}},
				},
			},
		},
	}
	raw := aotir.Write(m)
	got, err := aotir.Read(raw)
	if err != nil {
		// Write/Read are this package's own round trip of a well-formed
		// literal; a failure here is a bug in Interp, not bad input.
		panic(err)
	}
	return got
}

// InterpTrace is the recorded trace Interp's guard takes.
func InterpTrace() []tracebuilder.TraceAction {
	return []tracebuilder.TraceAction{
		tracebuilder.Mapped("interp_loop", 0),
		tracebuilder.Mapped("interp_loop", 1),
		tracebuilder.Mapped("interp_loop", 2),
	}
}

// InterpStackmaps is the one stackmap record Interp's control-point call
// site needs.
func InterpStackmaps() *stackmap.Table {
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
