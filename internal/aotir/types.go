// Package aotir implements the read-only view of a pre-serialised,
// ahead-of-time-compiled IR module: the interpreter's own compiled form,
// produced by a collaborator outside this repo's scope and consumed here
// only to be walked by the trace builder.
package aotir

import "jitcore/internal/ir"

// FuncIdx indexes Module.Funcs.
type FuncIdx uint32

// TypeIdx indexes Module.Types.
type TypeIdx uint32

// BBlockIdx indexes Func.Blocks.
type BBlockIdx uint32

// InstrIdx indexes BBlock.Instrs.
type InstrIdx uint32

// ConstIdx indexes Module.Consts.
type ConstIdx uint32

// GlobalDeclIdx indexes Module.GlobalDecls.
type GlobalDeclIdx uint32

// TypeKind discriminates the variants of Type.
type TypeKind uint8

const (
	TyVoid TypeKind = iota
	TyInteger
	TyPtr
	TyFunc
	TyStruct
	TyUnimplemented
)

// StructField is one field of a StructType: its type and its bit offset
// within the struct (explicit, because the AOT compiler may have packed
// fields at non-byte-aligned offsets).
type StructField struct {
	Ty        TypeIdx
	BitOffset uint32
}

// FuncType is a function signature: parameter types, by index, a return
// type, and whether it additionally accepts arguments beyond those listed.
type FuncType struct {
	ParamTys []TypeIdx
	RetTy    TypeIdx
	IsVararg bool
}

// Type is one AOT IR type.
type Type struct {
	Kind   TypeKind
	Bits   uint32        // TyInteger
	Func   FuncType       // TyFunc
	Fields []StructField  // TyStruct
	Reason string         // TyUnimplemented
}

func (t Type) IsInteger() bool { return t.Kind == TyInteger }

// Constant is a literal value together with its type. It's stored as raw
// little-endian bytes rather than an interpreted Go value, since AOT
// constants may be wider or more structured (e.g. padding bytes of a
// struct constant) than the JIT IR's own Const type needs to represent.
type Constant struct {
	Ty    TypeIdx
	Bytes []byte
}

// GlobalDecl names an externally defined global variable in the AOT
// module. Its runtime address is recovered via the globals pointer array
// at GlobalDeclIdx (see internal/codegen/x86asm's LookupGlobal lowering).
type GlobalDecl struct {
	Name        string
	ThreadLocal bool
}

// Opcode enumerates AOT instruction opcodes. The trace builder lowers a
// subset of these; the rest either don't appear in traces or are elided
// (Br/Ret handling, debug intrinsics).
type Opcode uint8

const (
	OpNop Opcode = iota
	OpLoad
	OpStore
	OpAlloca
	OpCall
	OpBr
	OpCondBr
	OpIcmp
	OpBinaryOperator
	OpRet
	OpInsertValue
	OpPtrAdd
	OpAdd
	OpSub
	OpMul
	OpOr
	OpAnd
	OpXor
	OpShl
	OpAShr
	OpLShr
	OpSDiv
	OpSRem
	OpUDiv
	OpURem
	OpUnimplemented Opcode = 255
)

func (o Opcode) String() string {
	names := [...]string{
		"nop", "load", "store", "alloca", "call", "br", "condbr", "icmp",
		"binaryoperator", "ret", "insertvalue", "ptradd", "add", "sub",
		"mul", "or", "and", "xor", "shl", "ashr", "lshr", "sdiv", "srem",
		"udiv", "urem",
	}
	if int(o) < len(names) {
		return names[o]
	}
	if o == OpUnimplemented {
		return "unimplemented"
	}
	return "unknown_opcode"
}

// arithOpcodes maps an arithmetic/bitwise Opcode to the shared BinOp enum
// used by both IRs.
var arithOpcodes = map[Opcode]ir.BinOp{
	OpAdd:  ir.BinOpAdd,
	OpSub:  ir.BinOpSub,
	OpMul:  ir.BinOpMul,
	OpAnd:  ir.BinOpAnd,
	OpOr:   ir.BinOpOr,
	OpXor:  ir.BinOpXor,
	OpShl:  ir.BinOpShl,
	OpAShr: ir.BinOpAShr,
	OpLShr: ir.BinOpLShr,
	OpSDiv: ir.BinOpSDiv,
	OpUDiv: ir.BinOpUDiv,
	OpSRem: ir.BinOpSRem,
	OpURem: ir.BinOpURem,
}

// BinOp reports the shared BinOp this opcode corresponds to, and whether it
// is in fact an arithmetic/bitwise opcode at all.
func (o Opcode) BinOp() (ir.BinOp, bool) {
	b, ok := arithOpcodes[o]
	return b, ok
}

// OperandKind discriminates the variants of Operand.
type OperandKind uint8

const (
	OperandConst OperandKind = iota
	OperandLocal
	OperandType
	OperandFunc
	OperandBlock
	OperandArg
	OperandGlobal
	OperandPredicate
	OperandUnimplemented
)

// InstructionID uniquely identifies an instruction within a Module. FuncIdx
// is absent from the on-disk form (to save space) and is filled in by a
// post-deserialisation rewrite pass; see Module.rewriteLocalVariables.
type InstructionID struct {
	FuncIdx   FuncIdx
	BBlockIdx BBlockIdx
	InstrIdx  InstrIdx
}

// Operand is an AOT instruction operand. Exactly one field is meaningful,
// selected by Kind.
type Operand struct {
	Kind          OperandKind
	Const         ConstIdx
	Local         InstructionID
	Type          TypeIdx
	Func          FuncIdx
	Block         BBlockIdx
	Arg           uint32
	Global        GlobalDeclIdx
	Pred          ir.Predicate
	Unimplemented string
}

// Instruction is a single AOT IR instruction: an opcode, its operand list,
// the type of the value it defines (void-typed if it defines none), and —
// for Icmp — the comparison predicate.
type Instruction struct {
	Opcode   Opcode
	Operands []Operand
	Ty       TypeIdx
	Pred     ir.Predicate
}

// Operand returns the operand at idx, panicking if out of range (mirrors
// the original's panicking accessor: out-of-range access here is always an
// aotir-package bug, not a malformed-input condition).
func (i Instruction) Operand(idx int) Operand { return i.Operands[idx] }

// RemainingOperands returns the operands from idx onward.
func (i Instruction) RemainingOperands(idx int) []Operand { return i.Operands[idx:] }

// IsCall reports whether i is a call instruction.
func (i Instruction) IsCall() bool { return i.Opcode == OpCall }

// Callee returns the FuncIdx a call instruction calls, or false if the
// callee isn't statically known (an indirect call through a local/arg).
func (i Instruction) Callee() (FuncIdx, bool) {
	if !i.IsCall() || len(i.Operands) == 0 {
		return 0, false
	}
	op := i.Operands[0]
	if op.Kind != OperandFunc {
		return 0, false
	}
	return op.Func, true
}

// BBlock is a basic block: a straight-line list of instructions.
type BBlock struct {
	Instrs []Instruction
}

// Func is a function: either a definition (len(Blocks) > 0) or a
// declaration of an externally linked symbol (no blocks).
type Func struct {
	Name   string
	Ty     TypeIdx // a TyFunc
	Blocks []BBlock
}

func (f Func) IsDeclaration() bool { return len(f.Blocks) == 0 }
