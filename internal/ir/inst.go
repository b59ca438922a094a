package ir

// InstKind tags the variant of an Inst for switch dispatch in the code
// generator, validator and display routines.
type InstKind uint8

const (
	KindLoadTraceInput InstKind = iota
	KindLoad
	KindStore
	KindPtrAdd
	KindDynPtrAdd
	KindBinOp
	KindIcmp
	KindSelect
	KindSExt
	KindZExt
	KindTrunc
	KindCall
	KindIndirectCall
	KindLookupGlobal
	KindGuard
	KindTraceLoopStart
	KindArg
	KindUnimplemented
)

// Inst is the common interface of every JIT-IR instruction variant. Each
// variant defines at most one SSA value; DefTy reports that value's type
// (the module's cached void type for variants that define nothing).
type Inst interface {
	Kind() InstKind
	DefTy(m *Module) TyIdx
}

// IsVoid reports whether inst defines no SSA value.
func IsVoid(m *Module, inst Inst) bool {
	return inst.DefTy(m) == m.voidTyIdx
}

// LoadTraceInputInst reads a live variable from the interpreter's
// trace-input struct at a fixed byte offset. All instances of this
// instruction are contiguous at the start of the trace (checked by the
// validator).
type LoadTraceInputInst struct {
	Off uint32
	Ty  TyIdx
}

func (LoadTraceInputInst) Kind() InstKind         { return KindLoadTraceInput }
func (i LoadTraceInputInst) DefTy(m *Module) TyIdx { return i.Ty }

// LoadInst dereferences Ptr.
type LoadInst struct {
	Ptr      Operand
	Ty       TyIdx
	Volatile bool
}

func (LoadInst) Kind() InstKind         { return KindLoad }
func (i LoadInst) DefTy(m *Module) TyIdx { return i.Ty }

// StoreInst writes Val to the address Tgt. Defines no value.
type StoreInst struct {
	Tgt      Operand
	Val      Operand
	Volatile bool
}

func (StoreInst) Kind() InstKind          { return KindStore }
func (StoreInst) DefTy(m *Module) TyIdx    { return m.voidTyIdx }

// PtrAddInst adds a compile-time-constant byte offset to a pointer.
type PtrAddInst struct {
	Ptr Operand
	Off int32
}

func (PtrAddInst) Kind() InstKind          { return KindPtrAdd }
func (PtrAddInst) DefTy(m *Module) TyIdx    { return m.ptrTyIdx }

// DynPtrAddInst adds a runtime-computed `n_elems * elem_size` byte offset to
// a pointer; used when the offset isn't known until the trace runs.
type DynPtrAddInst struct {
	Ptr      Operand
	NumElems Operand
	ElemSize uint16
}

func (DynPtrAddInst) Kind() InstKind       { return KindDynPtrAdd }
func (DynPtrAddInst) DefTy(m *Module) TyIdx { return m.ptrTyIdx }

// BinOpInst is an integer binary operator. Both operands must share Ty
// (checked by the validator); division lowers to idiv regardless of
// signedness (see BinOp.IsSigned and the design-notes open question).
type BinOpInst struct {
	Lhs Operand
	Op  BinOp
	Rhs Operand
	Ty  TyIdx
}

func (BinOpInst) Kind() InstKind         { return KindBinOp }
func (i BinOpInst) DefTy(m *Module) TyIdx { return i.Ty }

// IcmpInst compares two integers of identical type and yields an i1.
type IcmpInst struct {
	Lhs  Operand
	Pred Predicate
	Rhs  Operand
}

func (IcmpInst) Kind() InstKind          { return KindIcmp }
func (IcmpInst) DefTy(m *Module) TyIdx     { return m.int1TyIdx }

// SelectInst picks TrueVal or FalseVal based on Cond (an i1).
type SelectInst struct {
	Cond     Operand
	TrueVal  Operand
	FalseVal Operand
	Ty       TyIdx
}

func (SelectInst) Kind() InstKind         { return KindSelect }
func (i SelectInst) DefTy(m *Module) TyIdx { return i.Ty }

// SExtInst sign-extends Val to DestTy (which must be strictly wider).
type SExtInst struct {
	Val    Operand
	DestTy TyIdx
}

func (SExtInst) Kind() InstKind          { return KindSExt }
func (i SExtInst) DefTy(m *Module) TyIdx  { return i.DestTy }

// ZExtInst zero-extends Val to DestTy (which must be strictly wider). The
// validator pragmatically allows a Ptr source to accommodate ptrtoint
// lowering (see the design-notes open question).
type ZExtInst struct {
	Val    Operand
	DestTy TyIdx
}

func (ZExtInst) Kind() InstKind          { return KindZExt }
func (i ZExtInst) DefTy(m *Module) TyIdx  { return i.DestTy }

// TruncInst truncates Val to DestTy (which must be strictly narrower).
type TruncInst struct {
	Val    Operand
	DestTy TyIdx
}

func (TruncInst) Kind() InstKind         { return KindTrunc }
func (i TruncInst) DefTy(m *Module) TyIdx { return i.DestTy }

// CallInst calls a statically known function. Args is the slice
// [ArgsStart, ArgsStart+NumArgs) of the module's argument pool.
type CallInst struct {
	Target    FuncDeclIdx
	ArgsStart ArgsIdx
	NumArgs   uint16
}

func (CallInst) Kind() InstKind { return KindCall }
func (i CallInst) DefTy(m *Module) TyIdx {
	fd := m.FuncDecl(i.Target)
	ft := m.Type(fd.Ty)
	return ft.Func.RetTy
}

// IndirectCallInst calls through a runtime-computed function pointer. The
// bulk of its fields live in the module's indirect-call side table (mirrors
// GuardInfo: keeps the fixed-width instruction record small).
type IndirectCallInst struct {
	Idx IndirectCallIdx
}

func (IndirectCallInst) Kind() InstKind { return KindIndirectCall }
func (i IndirectCallInst) DefTy(m *Module) TyIdx {
	ic := m.IndirectCall(i.Idx)
	ft := m.Type(ic.FuncTy)
	return ft.Func.RetTy
}

// IndirectCallData is the side-table entry an IndirectCallInst points at.
type IndirectCallData struct {
	Target    Operand // the callee, a local holding a function pointer
	FuncTy    TyIdx   // a TyFunc
	ArgsStart ArgsIdx
	NumArgs   uint16
}

// LookupGlobalInst materialises the runtime address of a declared global.
type LookupGlobalInst struct {
	Decl GlobalDeclIdx
}

func (LookupGlobalInst) Kind() InstKind      { return KindLookupGlobal }
func (LookupGlobalInst) DefTy(m *Module) TyIdx { return m.ptrTyIdx }

// GuardInst is a speculation check: if Cond doesn't evaluate to Expect,
// control transfers to the deoptimiser using the live-variable lists
// recorded in Info.
type GuardInst struct {
	Cond   Operand // must be i1
	Expect bool
	Info   GuardInfoIdx
}

func (GuardInst) Kind() InstKind          { return KindGuard }
func (GuardInst) DefTy(m *Module) TyIdx     { return m.voidTyIdx }

// TraceLoopStartInst labels the back-edge target; the code generator closes
// the loop with an unconditional jump here at the end of generation.
type TraceLoopStartInst struct{}

func (TraceLoopStartInst) Kind() InstKind      { return KindTraceLoopStart }
func (TraceLoopStartInst) DefTy(m *Module) TyIdx { return m.voidTyIdx }

// ArgInst is a placeholder for the Idx'th argument of the JITted function
// itself (distinct from LoadTraceInput, which reads the interpreter's
// live-variable struct).
type ArgInst struct {
	Idx uint16
	Ty  TyIdx
}

func (ArgInst) Kind() InstKind          { return KindArg }
func (i ArgInst) DefTy(m *Module) TyIdx  { return i.Ty }

// UnimplementedInst is a sentinel the trace builder may emit, at
// implementer discretion, in place of failing outright on an opcode it
// doesn't know how to lower. Reaching one in codegen is always an error.
type UnimplementedInst struct {
	Reason string
}

func (UnimplementedInst) Kind() InstKind        { return KindUnimplemented }
func (UnimplementedInst) DefTy(m *Module) TyIdx   { return m.voidTyIdx }

// GuardInfo records, for one Guard, the AOT call stack active at that point
// (one stackmap ID per currently inlined frame) and the JIT-IR operands
// corresponding to those stackmaps' live-variable lists, in the exact order
// the stackmaps expect.
type GuardInfo struct {
	StackmapIDs []uint64
	Live        []Operand
}
