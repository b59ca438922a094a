package ir

import "jitcore/internal/jitrt"

// Module is the top-level container for one trace's JIT IR: the
// instruction stream plus the interning pools and side-tables every
// instruction refers to by index. It is append-only during trace building
// and code generation (instructions may be pushed or replaced in place, but
// never removed), so every InstIdx ever handed out stays valid for the
// module's lifetime.
type Module struct {
	// CtrID semi-uniquely identifies the compiled trace this module will
	// become; meaningless beyond debugging/the profile writer.
	CtrID uint64

	insts          []Inst
	args           []Operand
	consts         []Const
	constIdx       map[Const]ConstIdx
	types          []Ty
	typeIdx        map[string]TyIdx
	funcDecls      []FuncDecl
	funcDeclIdx    map[FuncDecl]FuncDeclIdx
	globalDecls    []GlobalDecl
	globalDeclIdx  map[GlobalDecl]GlobalDeclIdx
	guardInfos     []GuardInfo
	indirectCalls  []IndirectCallData

	voidTyIdx  TyIdx
	ptrTyIdx   TyIdx
	int1TyIdx  TyIdx
	int8TyIdx  TyIdx
	int16TyIdx TyIdx
	int32TyIdx TyIdx
	int64TyIdx TyIdx
}

// NewModule creates an empty Module with the common scalar types
// pre-interned, so their indices are known without a fallible insert call
// (mirrors the teacher's habit of caching frequently used symbols/types
// on first use, see compile/internal/types).
func NewModule(ctrID uint64) (*Module, error) {
	m := &Module{
		CtrID:         ctrID,
		constIdx:      make(map[Const]ConstIdx),
		typeIdx:       make(map[string]TyIdx),
		funcDeclIdx:   make(map[FuncDecl]FuncDeclIdx),
		globalDeclIdx: make(map[GlobalDecl]GlobalDeclIdx),
	}
	var err error
	if m.voidTyIdx, err = m.InsertTy(VoidTy()); err != nil {
		return nil, err
	}
	if m.ptrTyIdx, err = m.InsertTy(PtrTy()); err != nil {
		return nil, err
	}
	if m.int1TyIdx, err = m.InsertTy(IntegerTy(1)); err != nil {
		return nil, err
	}
	if m.int8TyIdx, err = m.InsertTy(IntegerTy(8)); err != nil {
		return nil, err
	}
	if m.int16TyIdx, err = m.InsertTy(IntegerTy(16)); err != nil {
		return nil, err
	}
	if m.int32TyIdx, err = m.InsertTy(IntegerTy(32)); err != nil {
		return nil, err
	}
	if m.int64TyIdx, err = m.InsertTy(IntegerTy(64)); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Module) VoidTyIdx() TyIdx  { return m.voidTyIdx }
func (m *Module) PtrTyIdx() TyIdx   { return m.ptrTyIdx }
func (m *Module) Int1TyIdx() TyIdx  { return m.int1TyIdx }
func (m *Module) Int8TyIdx() TyIdx  { return m.int8TyIdx }
func (m *Module) Int16TyIdx() TyIdx { return m.int16TyIdx }
func (m *Module) Int32TyIdx() TyIdx { return m.int32TyIdx }
func (m *Module) Int64TyIdx() TyIdx { return m.int64TyIdx }

// --- interning pools ---

// InsertTy interns ty, returning its (possibly pre-existing) index.
func (m *Module) InsertTy(ty Ty) (TyIdx, error) {
	k := ty.key()
	if idx, ok := m.typeIdx[k]; ok {
		return idx, nil
	}
	idx, ok := NewTyIdx(len(m.types))
	if !ok {
		return 0, &jitrt.LimitExceededError{Kind: jitrt.LimitTypes}
	}
	m.types = append(m.types, ty)
	m.typeIdx[k] = idx
	return idx, nil
}

// Type returns the type stored at idx.
func (m *Module) Type(idx TyIdx) Ty { return m.types[idx.ToUsize()] }

// InsertConst interns c.
func (m *Module) InsertConst(c Const) (ConstIdx, error) {
	if idx, ok := m.constIdx[c]; ok {
		return idx, nil
	}
	idx, ok := NewConstIdx(len(m.consts))
	if !ok {
		return 0, &jitrt.LimitExceededError{Kind: jitrt.LimitConsts}
	}
	m.consts = append(m.consts, c)
	m.constIdx[c] = idx
	return idx, nil
}

// Const returns the constant stored at idx.
func (m *Module) Const(idx ConstIdx) Const { return m.consts[idx.ToUsize()] }

// InsertFuncDecl interns fd.
func (m *Module) InsertFuncDecl(fd FuncDecl) (FuncDeclIdx, error) {
	if idx, ok := m.funcDeclIdx[fd]; ok {
		return idx, nil
	}
	idx, ok := NewFuncDeclIdx(len(m.funcDecls))
	if !ok {
		return 0, &jitrt.LimitExceededError{Kind: jitrt.LimitFuncDecls}
	}
	m.funcDecls = append(m.funcDecls, fd)
	m.funcDeclIdx[fd] = idx
	return idx, nil
}

// FuncDecl returns the function declaration stored at idx.
func (m *Module) FuncDecl(idx FuncDeclIdx) FuncDecl { return m.funcDecls[idx.ToUsize()] }

// InsertGlobalDecl interns gd.
func (m *Module) InsertGlobalDecl(gd GlobalDecl) (GlobalDeclIdx, error) {
	if idx, ok := m.globalDeclIdx[gd]; ok {
		return idx, nil
	}
	idx, ok := NewGlobalDeclIdx(len(m.globalDecls))
	if !ok {
		return 0, &jitrt.LimitExceededError{Kind: jitrt.LimitGlobalDecls}
	}
	m.globalDecls = append(m.globalDecls, gd)
	m.globalDeclIdx[gd] = idx
	return idx, nil
}

// GlobalDecl returns the global declaration stored at idx.
func (m *Module) GlobalDecl(idx GlobalDeclIdx) GlobalDecl { return m.globalDecls[idx.ToUsize()] }

// --- instruction stream ---

// PushInst appends inst to the trace body, returning its (newly stable)
// index.
func (m *Module) PushInst(inst Inst) (InstIdx, error) {
	idx, ok := NewInstIdx(len(m.insts))
	if !ok {
		return 0, &jitrt.LimitExceededError{Kind: jitrt.LimitInsts}
	}
	m.insts = append(m.insts, inst)
	return idx, nil
}

// ReplaceInst overwrites the instruction at idx in place. idx must already
// have been returned by PushInst; the slot is never removed, only
// rewritten, so every previously handed-out InstIdx stays valid.
func (m *Module) ReplaceInst(idx InstIdx, inst Inst) {
	m.insts[idx.ToUsize()] = inst
}

// Inst returns the instruction currently stored at idx.
func (m *Module) Inst(idx InstIdx) Inst { return m.insts[idx.ToUsize()] }

// NumInsts returns the length of the instruction stream.
func (m *Module) NumInsts() int { return len(m.insts) }

// --- variadic call-argument pool ---

// PushArgs appends ops to the argument pool (used by Call/IndirectCall to
// store a variable-length argument list compactly), returning the start
// index of the run just appended.
func (m *Module) PushArgs(ops []Operand) (ArgsIdx, error) {
	start, ok := NewArgsIdx(len(m.args))
	if !ok {
		return 0, &jitrt.LimitExceededError{Kind: jitrt.LimitArgs}
	}
	m.args = append(m.args, ops...)
	return start, nil
}

// Args returns the NumArgs operands starting at start.
func (m *Module) Args(start ArgsIdx, numArgs uint16) []Operand {
	s := start.ToUsize()
	return m.args[s : s+int(numArgs)]
}

// --- guard-info side table ---

// PushGuardInfo appends gi, returning its index.
func (m *Module) PushGuardInfo(gi GuardInfo) (GuardInfoIdx, error) {
	idx, ok := NewGuardInfoIdx(len(m.guardInfos))
	if !ok {
		return 0, &jitrt.LimitExceededError{Kind: jitrt.LimitGuardInfo}
	}
	m.guardInfos = append(m.guardInfos, gi)
	return idx, nil
}

// GuardInfo returns the guard-info record stored at idx.
func (m *Module) GuardInfo(idx GuardInfoIdx) GuardInfo { return m.guardInfos[idx.ToUsize()] }

// NumGuards returns the number of guard-info records recorded so far.
func (m *Module) NumGuards() int { return len(m.guardInfos) }

// --- indirect-call side table ---

// PushIndirectCall appends ic, returning its index.
func (m *Module) PushIndirectCall(ic IndirectCallData) (IndirectCallIdx, error) {
	idx, ok := NewIndirectCallIdx(len(m.indirectCalls))
	if !ok {
		return 0, &jitrt.LimitExceededError{Kind: jitrt.LimitIndirectCalls}
	}
	m.indirectCalls = append(m.indirectCalls, ic)
	return idx, nil
}

// IndirectCall returns the indirect-call record stored at idx.
func (m *Module) IndirectCall(idx IndirectCallIdx) IndirectCallData {
	return m.indirectCalls[idx.ToUsize()]
}
