package ir

// U24 is a 24-bit unsigned index, used by pools whose width is 24 bits
// (types, function decls, global decls) per the packed-IR data model.
type U24 uint32

const u24Max = 1<<24 - 1

// NewU24 converts n into a U24, reporting false if n doesn't fit in 24 bits.
func NewU24(n int) (U24, bool) {
	if n < 0 || n > u24Max {
		return 0, false
	}
	return U24(n), true
}

// ToUsize returns u as a plain int index.
func (u U24) ToUsize() int { return int(u) }

const u16Max = 1<<16 - 1

// newU16 is the 16-bit-pool counterpart of NewU24, used by the index
// newtypes below that back onto a uint16.
func newU16(n int) (uint16, bool) {
	if n < 0 || n > u16Max {
		return 0, false
	}
	return uint16(n), true
}

// TyIdx indexes Module.types. 24 bits wide.
type TyIdx U24

// NewTyIdx validates and wraps n as a TyIdx.
func NewTyIdx(n int) (TyIdx, bool) {
	u, ok := NewU24(n)
	return TyIdx(u), ok
}
func (i TyIdx) ToUsize() int { return U24(i).ToUsize() }

// FuncDeclIdx indexes Module.funcDecls. 24 bits wide.
type FuncDeclIdx U24

func NewFuncDeclIdx(n int) (FuncDeclIdx, bool) {
	u, ok := NewU24(n)
	return FuncDeclIdx(u), ok
}
func (i FuncDeclIdx) ToUsize() int { return U24(i).ToUsize() }

// GlobalDeclIdx indexes Module.globalDecls. 24 bits wide.
type GlobalDeclIdx U24

func NewGlobalDeclIdx(n int) (GlobalDeclIdx, bool) {
	u, ok := NewU24(n)
	return GlobalDeclIdx(u), ok
}
func (i GlobalDeclIdx) ToUsize() int { return U24(i).ToUsize() }

// InstIdx indexes Module.insts, i.e. it names a local variable (the value
// defined by the instruction at that index). 16 bits wide.
type InstIdx uint16

func NewInstIdx(n int) (InstIdx, bool) {
	u, ok := newU16(n)
	return InstIdx(u), ok
}
func (i InstIdx) ToUsize() int { return int(i) }

// ConstIdx indexes Module.consts. 16 bits wide.
type ConstIdx uint16

func NewConstIdx(n int) (ConstIdx, bool) {
	u, ok := newU16(n)
	return ConstIdx(u), ok
}
func (i ConstIdx) ToUsize() int { return int(i) }

// ArgsIdx indexes the first operand of a run in Module.args. 16 bits wide.
type ArgsIdx uint16

func NewArgsIdx(n int) (ArgsIdx, bool) {
	u, ok := newU16(n)
	return ArgsIdx(u), ok
}
func (i ArgsIdx) ToUsize() int { return int(i) }

// GuardInfoIdx indexes Module.guardInfos. 16 bits wide.
type GuardInfoIdx uint16

func NewGuardInfoIdx(n int) (GuardInfoIdx, bool) {
	u, ok := newU16(n)
	return GuardInfoIdx(u), ok
}
func (i GuardInfoIdx) ToUsize() int { return int(i) }

// IndirectCallIdx indexes Module.indirectCalls. 16 bits wide.
type IndirectCallIdx uint16

func NewIndirectCallIdx(n int) (IndirectCallIdx, bool) {
	u, ok := newU16(n)
	return IndirectCallIdx(u), ok
}
func (i IndirectCallIdx) ToUsize() int { return int(i) }
