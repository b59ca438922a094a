package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// TyKind discriminates the variants of Ty.
type TyKind uint8

const (
	TyVoid TyKind = iota
	TyInteger
	TyPtr
	TyFunc
	TyUnimplemented
)

// FuncType is the signature of a function: its parameter types, its return
// type, and whether it accepts extra variadic arguments beyond those
// listed.
type FuncType struct {
	ParamTys  []TyIdx
	RetTy     TyIdx
	IsVararg  bool
}

func (f FuncType) key() string {
	var b strings.Builder
	b.WriteString("func(")
	for i, p := range f.ParamTys {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%d", p)
	}
	b.WriteString(")->")
	fmt.Fprintf(&b, "%d", f.RetTy)
	if f.IsVararg {
		b.WriteString(",...")
	}
	return b.String()
}

func (f FuncType) NumParams() int { return len(f.ParamTys) }

// Ty is one JIT-IR type. Integer bit-widths are bit-granular (1..2^23,
// following LLVM); byte size is ceil(bits/8). Ptr is pointer-sized and
// assumed consistent with the host ABI.
type Ty struct {
	Kind   TyKind
	Bits   uint32   // valid when Kind == TyInteger
	Func   FuncType // valid when Kind == TyFunc
	Reason string   // valid when Kind == TyUnimplemented
}

// VoidTy, PtrTy and IntegerTy are constructors for the non-aggregate kinds.
func VoidTy() Ty        { return Ty{Kind: TyVoid} }
func PtrTy() Ty         { return Ty{Kind: TyPtr} }
func IntegerTy(bits uint32) Ty {
	return Ty{Kind: TyInteger, Bits: bits}
}
func FuncTy(ft FuncType) Ty { return Ty{Kind: TyFunc, Func: ft} }
func UnimplementedTy(reason string) Ty {
	return Ty{Kind: TyUnimplemented, Reason: reason}
}

// ByteSize returns ceil(Bits/8) for an integer type; it's meaningless (and
// unused) for the other kinds.
func (t Ty) ByteSize() uint32 {
	return (t.Bits + 7) / 8
}

// key is the canonical string used to deduplicate entries in the type pool;
// Go doesn't let a struct containing a slice (FuncType.ParamTys) be used
// directly as a map key, so interning is done via this string form instead.
func (t Ty) key() string {
	switch t.Kind {
	case TyVoid:
		return "void"
	case TyPtr:
		return "ptr"
	case TyInteger:
		return "i" + strconv.FormatUint(uint64(t.Bits), 10)
	case TyFunc:
		return t.Func.key()
	case TyUnimplemented:
		return "unimplemented:" + t.Reason
	default:
		return "?"
	}
}

func (t Ty) String() string {
	switch t.Kind {
	case TyVoid:
		return "void"
	case TyPtr:
		return "ptr"
	case TyInteger:
		return fmt.Sprintf("i%d", t.Bits)
	case TyFunc:
		parts := make([]string, len(t.Func.ParamTys))
		for i, p := range t.Func.ParamTys {
			parts[i] = fmt.Sprintf("%%ty%d", p)
		}
		vararg := ""
		if t.Func.IsVararg {
			vararg = ", ..."
		}
		return fmt.Sprintf("func(%s%s) -> %%ty%d", strings.Join(parts, ", "), vararg, t.Func.RetTy)
	case TyUnimplemented:
		return fmt.Sprintf("unimplemented<%s>", t.Reason)
	default:
		return "?"
	}
}

// IsInteger reports whether t is an integer type.
func (t Ty) IsInteger() bool { return t.Kind == TyInteger }
