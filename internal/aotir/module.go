package aotir

import "jitcore/internal/jitrt"

// Well-known symbol names the trace builder elides rather than lowering
// into calls.
const (
	ControlPointName  = "__ykrt_control_point"
	StackmapCallName  = "llvm.experimental.stackmap"
	LLVMDebugCallName = "llvm.dbg.value"
)

// Module is an immutable, purely descriptive view of one AOT-compiled
// interpreter binary's IR. It performs no constant folding and no semantic
// validation beyond the magic/version check in Read; the trace builder is
// responsible for rejecting IR it cannot lower.
type Module struct {
	Funcs       []Func
	Types       []Type
	Consts      []Constant
	GlobalDecls []GlobalDecl

	funcIdxByName map[string]FuncIdx
}

// FuncByName looks up a function (definition or declaration) by its linker
// symbol name.
func (m *Module) FuncByName(name string) (FuncIdx, bool) {
	idx, ok := m.funcIdxByName[name]
	return idx, ok
}

// Func returns the function at idx.
func (m *Module) Func(idx FuncIdx) *Func { return &m.Funcs[idx] }

// Type returns the type at idx.
func (m *Module) Type(idx TypeIdx) *Type { return &m.Types[idx] }

// Const returns the constant at idx.
func (m *Module) Const(idx ConstIdx) *Constant { return &m.Consts[idx] }

// GlobalDecl returns the global declaration at idx.
func (m *Module) GlobalDecl(idx GlobalDeclIdx) *GlobalDecl { return &m.GlobalDecls[idx] }

// Block returns the basic block identified by (fidx, bidx).
func (m *Module) Block(fidx FuncIdx, bidx BBlockIdx) *BBlock {
	return &m.Funcs[fidx].Blocks[bidx]
}

// Inst returns the instruction identified by iid.
func (m *Module) Inst(iid InstructionID) *Instruction {
	return &m.Funcs[iid.FuncIdx].Blocks[iid.BBlockIdx].Instrs[iid.InstrIdx]
}

// DefType returns the type of the local variable an operand names. Panics
// for operand kinds that don't define a value, which is a caller bug, not
// a malformed-input condition.
func (m *Module) DefType(op Operand) TypeIdx {
	switch op.Kind {
	case OperandLocal:
		return m.Inst(op.Local).Ty
	case OperandConst:
		return m.Const(op.Const).Ty
	case OperandType:
		return op.Type
	default:
		panic("aotir: operand kind has no def type")
	}
}

// buildFuncIndex populates funcIdxByName after a Module has been read.
func (m *Module) buildFuncIndex() {
	m.funcIdxByName = make(map[string]FuncIdx, len(m.Funcs))
	for i, f := range m.Funcs {
		m.funcIdxByName[f.Name] = FuncIdx(i)
	}
}

// rewriteLocalVariables walks every instruction and fills in the FuncIdx
// component of LocalVariable operands, which the on-disk form omits to
// save space (see Read).
func (m *Module) rewriteLocalVariables() {
	for fi := range m.Funcs {
		f := &m.Funcs[fi]
		for bi := range f.Blocks {
			b := &f.Blocks[bi]
			for ii := range b.Instrs {
				inst := &b.Instrs[ii]
				for oi := range inst.Operands {
					op := &inst.Operands[oi]
					if op.Kind == OperandLocal {
						op.Local.FuncIdx = FuncIdx(fi)
					}
				}
			}
		}
	}
}

// requireFunc is a small helper used by the trace builder to convert a
// "missing AOT function" condition into the taxonomy's General error.
func (m *Module) requireFunc(name string) (FuncIdx, error) {
	idx, ok := m.FuncByName(name)
	if !ok {
		return 0, jitrt.NewGeneral("aot module has no function named %q", name)
	}
	return idx, nil
}

// RequireFunc is the exported form of requireFunc, used by tracebuilder.
func (m *Module) RequireFunc(name string) (FuncIdx, error) { return m.requireFunc(name) }
