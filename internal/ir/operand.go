package ir

import "jitcore/internal/jitrt"

// OperandKind distinguishes the two things a packed operand can name.
type OperandKind uint8

const (
	OpKindLocal OperandKind = iota
	OpKindConst
)

// Operand is the unpacked form of an instruction argument: either a
// reference to a previously defined local (an InstIdx) or a reference into
// the constant pool (a ConstIdx).
type Operand struct {
	kind  OperandKind
	index uint16
}

// LocalOperand builds an Operand referring to the local defined by i.
func LocalOperand(i InstIdx) Operand { return Operand{kind: OpKindLocal, index: uint16(i)} }

// ConstOperand builds an Operand referring to the constant at i.
func ConstOperand(i ConstIdx) Operand { return Operand{kind: OpKindConst, index: uint16(i)} }

func (o Operand) Kind() OperandKind { return o.kind }

// Local returns the InstIdx this operand names. Only valid if Kind() == OpKindLocal.
func (o Operand) Local() InstIdx { return InstIdx(o.index) }

// Const returns the ConstIdx this operand names. Only valid if Kind() == OpKindConst.
func (o Operand) Const() ConstIdx { return ConstIdx(o.index) }

// the packed-operand bit layout: bit 15 is kind, bits 0..14 are the index.
const (
	packedKindBit   = uint16(1) << 15
	packedIndexMask = packedKindBit - 1
)

// PackedOperand is the 16-bit on-heap encoding of an Operand: high bit
// selects local-vs-constant, low 15 bits hold the index. This keeps every
// instruction's operand list a fixed, cache-friendly width.
type PackedOperand uint16

// NewPackedOperand packs o, failing with LimitExceeded if its index does
// not fit in 15 bits.
func NewPackedOperand(o Operand) (PackedOperand, error) {
	if o.index > packedIndexMask {
		kind := jitrt.LimitInsts
		if o.kind == OpKindConst {
			kind = jitrt.LimitConsts
		}
		return 0, &jitrt.LimitExceededError{Kind: kind}
	}
	p := PackedOperand(o.index)
	if o.kind == OpKindConst {
		p |= PackedOperand(packedKindBit)
	}
	return p, nil
}

// Unpack recovers the Operand this PackedOperand encodes.
func (p PackedOperand) Unpack() Operand {
	kind := OpKindLocal
	if uint16(p)&packedKindBit != 0 {
		kind = OpKindConst
	}
	return Operand{kind: kind, index: uint16(p) & packedIndexMask}
}
