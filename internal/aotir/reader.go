package aotir

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/mod/semver"

	"jitcore/internal/ir"
	"jitcore/internal/jitrt"
)

// Magic is the 32-bit value every AOT IR blob must begin with.
const Magic uint32 = 0xedd5f00d

// FormatVersion is the on-disk format version this reader understands.
const FormatVersion uint32 = 0

// operand kind tags, matching aotir.OperandKind's on-disk encoding.
const (
	diskOpConst uint8 = iota
	diskOpLocal
	diskOpType
	diskOpFunc
	diskOpBlock
	diskOpArg
	diskOpGlobal
	diskOpPredicate
	diskOpUnimplemented
)

// type kind tags, matching aotir.TypeKind's on-disk encoding.
const (
	diskTyVoid uint8 = iota
	diskTyInteger
	diskTyPtr
	diskTyFunc
	diskTyStruct
	diskTyUnimplemented
)

// Read deserialises raw, the bytes of the AOT IR section, into a Module.
// The format is: a 32-bit magic, a 32-bit format version, then
// count-prefixed arrays of functions, constants, global declarations and
// types (in that order); strings are null-terminated; counts and indices
// are 64-bit (the "host-word-sized" width of a 64-bit host). A magic or
// version mismatch is fatal, as the spec requires; nothing else here is
// validated — that's the trace builder's job.
func Read(raw []byte) (*Module, error) {
	r := &reader{br: bytes.NewReader(raw)}

	magic, err := r.u32()
	if err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, jitrt.NewGeneral("aot ir: bad magic 0x%08x, want 0x%08x", magic, Magic)
	}
	version, err := r.u32()
	if err != nil {
		return nil, err
	}
	// A synthetic "vX.0.0" lets us use a real semver comparison instead of
	// a bare inequality, so a future reader that understands a range of
	// versions only has to change this one comparison.
	got := fmt.Sprintf("v%d.0.0", version)
	want := fmt.Sprintf("v%d.0.0", FormatVersion)
	if semver.Compare(got, want) != 0 {
		return nil, jitrt.NewGeneral("aot ir: unsupported format version %d, want %d", version, FormatVersion)
	}

	m := &Module{}
	if m.Funcs, err = r.funcs(); err != nil {
		return nil, err
	}
	if m.Consts, err = r.consts(); err != nil {
		return nil, err
	}
	if m.GlobalDecls, err = r.globalDecls(); err != nil {
		return nil, err
	}
	if m.Types, err = r.types(); err != nil {
		return nil, err
	}

	m.rewriteLocalVariables()
	m.buildFuncIndex()
	return m, nil
}

type reader struct {
	br *bytes.Reader
}

func (r *reader) u8() (uint8, error) {
	b, err := r.br.ReadByte()
	if err != nil {
		return 0, jitrt.NewGeneral("aot ir: %v", err)
	}
	return b, nil
}

func (r *reader) u32() (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r.br, buf[:]); err != nil {
		return 0, jitrt.NewGeneral("aot ir: %v", err)
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (r *reader) u64() (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r.br, buf[:]); err != nil {
		return 0, jitrt.NewGeneral("aot ir: %v", err)
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// usize reads a host-word-sized (here: 64-bit) count or index.
func (r *reader) usize() (int, error) {
	v, err := r.u64()
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

func (r *reader) str() (string, error) {
	var buf bytes.Buffer
	for {
		b, err := r.u8()
		if err != nil {
			return "", err
		}
		if b == 0 {
			return buf.String(), nil
		}
		buf.WriteByte(b)
	}
}

func (r *reader) bytesN(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.br, buf); err != nil {
		return nil, jitrt.NewGeneral("aot ir: %v", err)
	}
	return buf, nil
}

func (r *reader) funcs() ([]Func, error) {
	n, err := r.usize()
	if err != nil {
		return nil, err
	}
	out := make([]Func, n)
	for i := range out {
		name, err := r.str()
		if err != nil {
			return nil, err
		}
		tyIdx, err := r.usize()
		if err != nil {
			return nil, err
		}
		nblocks, err := r.usize()
		if err != nil {
			return nil, err
		}
		blocks := make([]BBlock, nblocks)
		for bi := range blocks {
			instrs, err := r.instrs()
			if err != nil {
				return nil, err
			}
			blocks[bi] = BBlock{Instrs: instrs}
		}
		out[i] = Func{Name: name, Ty: TypeIdx(tyIdx), Blocks: blocks}
	}
	return out, nil
}

func (r *reader) instrs() ([]Instruction, error) {
	n, err := r.usize()
	if err != nil {
		return nil, err
	}
	out := make([]Instruction, n)
	for i := range out {
		op, err := r.u8()
		if err != nil {
			return nil, err
		}
		tyIdx, err := r.usize()
		if err != nil {
			return nil, err
		}
		pred, err := r.u8()
		if err != nil {
			return nil, err
		}
		nops, err := r.usize()
		if err != nil {
			return nil, err
		}
		ops := make([]Operand, nops)
		for oi := range ops {
			operand, err := r.operand()
			if err != nil {
				return nil, err
			}
			ops[oi] = operand
		}
		out[i] = Instruction{
			Opcode:   Opcode(op),
			Operands: ops,
			Ty:       TypeIdx(tyIdx),
			Pred:     ir.Predicate(pred),
		}
	}
	return out, nil
}

func (r *reader) operand() (Operand, error) {
	kind, err := r.u8()
	if err != nil {
		return Operand{}, err
	}
	switch kind {
	case diskOpConst:
		v, err := r.usize()
		if err != nil {
			return Operand{}, err
		}
		return Operand{Kind: OperandConst, Const: ConstIdx(v)}, nil
	case diskOpLocal:
		// func_idx is omitted on disk; filled in by rewriteLocalVariables.
		bb, err := r.usize()
		if err != nil {
			return Operand{}, err
		}
		ii, err := r.usize()
		if err != nil {
			return Operand{}, err
		}
		return Operand{Kind: OperandLocal, Local: InstructionID{BBlockIdx: BBlockIdx(bb), InstrIdx: InstrIdx(ii)}}, nil
	case diskOpType:
		v, err := r.usize()
		if err != nil {
			return Operand{}, err
		}
		return Operand{Kind: OperandType, Type: TypeIdx(v)}, nil
	case diskOpFunc:
		v, err := r.usize()
		if err != nil {
			return Operand{}, err
		}
		return Operand{Kind: OperandFunc, Func: FuncIdx(v)}, nil
	case diskOpBlock:
		v, err := r.usize()
		if err != nil {
			return Operand{}, err
		}
		return Operand{Kind: OperandBlock, Block: BBlockIdx(v)}, nil
	case diskOpArg:
		v, err := r.usize()
		if err != nil {
			return Operand{}, err
		}
		return Operand{Kind: OperandArg, Arg: uint32(v)}, nil
	case diskOpGlobal:
		v, err := r.usize()
		if err != nil {
			return Operand{}, err
		}
		return Operand{Kind: OperandGlobal, Global: GlobalDeclIdx(v)}, nil
	case diskOpPredicate:
		p, err := r.u8()
		if err != nil {
			return Operand{}, err
		}
		return Operand{Kind: OperandPredicate, Pred: ir.Predicate(p)}, nil
	case diskOpUnimplemented:
		s, err := r.str()
		if err != nil {
			return Operand{}, err
		}
		return Operand{Kind: OperandUnimplemented, Unimplemented: s}, nil
	default:
		return Operand{}, jitrt.NewGeneral("aot ir: unknown operand kind %d", kind)
	}
}

func (r *reader) consts() ([]Constant, error) {
	n, err := r.usize()
	if err != nil {
		return nil, err
	}
	out := make([]Constant, n)
	for i := range out {
		tyIdx, err := r.usize()
		if err != nil {
			return nil, err
		}
		blen, err := r.usize()
		if err != nil {
			return nil, err
		}
		data, err := r.bytesN(blen)
		if err != nil {
			return nil, err
		}
		out[i] = Constant{Ty: TypeIdx(tyIdx), Bytes: data}
	}
	return out, nil
}

func (r *reader) globalDecls() ([]GlobalDecl, error) {
	n, err := r.usize()
	if err != nil {
		return nil, err
	}
	out := make([]GlobalDecl, n)
	for i := range out {
		name, err := r.str()
		if err != nil {
			return nil, err
		}
		tl, err := r.u8()
		if err != nil {
			return nil, err
		}
		out[i] = GlobalDecl{Name: name, ThreadLocal: tl != 0}
	}
	return out, nil
}

func (r *reader) types() ([]Type, error) {
	n, err := r.usize()
	if err != nil {
		return nil, err
	}
	out := make([]Type, n)
	for i := range out {
		kind, err := r.u8()
		if err != nil {
			return nil, err
		}
		switch kind {
		case diskTyVoid:
			out[i] = Type{Kind: TyVoid}
		case diskTyInteger:
			bits, err := r.u32()
			if err != nil {
				return nil, err
			}
			out[i] = Type{Kind: TyInteger, Bits: bits}
		case diskTyPtr:
			out[i] = Type{Kind: TyPtr}
		case diskTyFunc:
			nparams, err := r.usize()
			if err != nil {
				return nil, err
			}
			params := make([]TypeIdx, nparams)
			for pi := range params {
				v, err := r.usize()
				if err != nil {
					return nil, err
				}
				params[pi] = TypeIdx(v)
			}
			retTy, err := r.usize()
			if err != nil {
				return nil, err
			}
			vararg, err := r.u8()
			if err != nil {
				return nil, err
			}
			out[i] = Type{Kind: TyFunc, Func: FuncType{ParamTys: params, RetTy: TypeIdx(retTy), IsVararg: vararg != 0}}
		case diskTyStruct:
			nfields, err := r.usize()
			if err != nil {
				return nil, err
			}
			fields := make([]StructField, nfields)
			for fi := range fields {
				tyIdx, err := r.usize()
				if err != nil {
					return nil, err
				}
				off, err := r.u32()
				if err != nil {
					return nil, err
				}
				fields[fi] = StructField{Ty: TypeIdx(tyIdx), BitOffset: off}
			}
			out[i] = Type{Kind: TyStruct, Fields: fields}
		case diskTyUnimplemented:
			reason, err := r.str()
			if err != nil {
				return nil, err
			}
			out[i] = Type{Kind: TyUnimplemented, Reason: reason}
		default:
			return nil, jitrt.NewGeneral("aot ir: unknown type kind %d", kind)
		}
	}
	return out, nil
}
