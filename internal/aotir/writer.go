package aotir

import (
	"bytes"
	"encoding/binary"
)

// Write serialises m back into the binary format Read understands. It
// exists so tests (and offline fixture generation under testdata/) can
// build a Module with Go struct literals and round-trip it through the
// real on-disk format, instead of hand-writing byte streams.
func Write(m *Module) []byte {
	w := &writer{}
	w.u32(Magic)
	w.u32(FormatVersion)
	w.funcs(m.Funcs)
	w.consts(m.Consts)
	w.globalDecls(m.GlobalDecls)
	w.types(m.Types)
	return w.buf.Bytes()
}

type writer struct {
	buf bytes.Buffer
}

func (w *writer) u8(v uint8)   { w.buf.WriteByte(v) }
func (w *writer) u32(v uint32) { var b [4]byte; binary.LittleEndian.PutUint32(b[:], v); w.buf.Write(b[:]) }
func (w *writer) u64(v uint64) { var b [8]byte; binary.LittleEndian.PutUint64(b[:], v); w.buf.Write(b[:]) }
func (w *writer) usize(v int)  { w.u64(uint64(v)) }
func (w *writer) str(s string) { w.buf.WriteString(s); w.buf.WriteByte(0) }
func (w *writer) bytesRaw(b []byte) { w.buf.Write(b) }

func (w *writer) funcs(fs []Func) {
	w.usize(len(fs))
	for _, f := range fs {
		w.str(f.Name)
		w.usize(int(f.Ty))
		w.usize(len(f.Blocks))
		for _, b := range f.Blocks {
			w.instrs(b.Instrs)
		}
	}
}

func (w *writer) instrs(is []Instruction) {
	w.usize(len(is))
	for _, inst := range is {
		w.u8(uint8(inst.Opcode))
		w.usize(int(inst.Ty))
		w.u8(uint8(inst.Pred))
		w.usize(len(inst.Operands))
		for _, op := range inst.Operands {
			w.operand(op)
		}
	}
}

func (w *writer) operand(op Operand) {
	switch op.Kind {
	case OperandConst:
		w.u8(diskOpConst)
		w.usize(int(op.Const))
	case OperandLocal:
		w.u8(diskOpLocal)
		w.usize(int(op.Local.BBlockIdx))
		w.usize(int(op.Local.InstrIdx))
	case OperandType:
		w.u8(diskOpType)
		w.usize(int(op.Type))
	case OperandFunc:
		w.u8(diskOpFunc)
		w.usize(int(op.Func))
	case OperandBlock:
		w.u8(diskOpBlock)
		w.usize(int(op.Block))
	case OperandArg:
		w.u8(diskOpArg)
		w.usize(int(op.Arg))
	case OperandGlobal:
		w.u8(diskOpGlobal)
		w.usize(int(op.Global))
	case OperandPredicate:
		w.u8(diskOpPredicate)
		w.u8(uint8(op.Pred))
	case OperandUnimplemented:
		w.u8(diskOpUnimplemented)
		w.str(op.Unimplemented)
	}
}

func (w *writer) consts(cs []Constant) {
	w.usize(len(cs))
	for _, c := range cs {
		w.usize(int(c.Ty))
		w.usize(len(c.Bytes))
		w.bytesRaw(c.Bytes)
	}
}

func (w *writer) globalDecls(gs []GlobalDecl) {
	w.usize(len(gs))
	for _, g := range gs {
		w.str(g.Name)
		if g.ThreadLocal {
			w.u8(1)
		} else {
			w.u8(0)
		}
	}
}

func (w *writer) types(ts []Type) {
	w.usize(len(ts))
	for _, t := range ts {
		switch t.Kind {
		case TyVoid:
			w.u8(diskTyVoid)
		case TyInteger:
			w.u8(diskTyInteger)
			w.u32(t.Bits)
		case TyPtr:
			w.u8(diskTyPtr)
		case TyFunc:
			w.u8(diskTyFunc)
			w.usize(len(t.Func.ParamTys))
			for _, p := range t.Func.ParamTys {
				w.usize(int(p))
			}
			w.usize(int(t.Func.RetTy))
			if t.Func.IsVararg {
				w.u8(1)
			} else {
				w.u8(0)
			}
		case TyStruct:
			w.u8(diskTyStruct)
			w.usize(len(t.Fields))
			for _, f := range t.Fields {
				w.usize(int(f.Ty))
				w.u32(f.BitOffset)
			}
		case TyUnimplemented:
			w.u8(diskTyUnimplemented)
			w.str(t.Reason)
		}
	}
}
