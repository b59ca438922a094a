package x86asm

// Reg names one of the 16 general-purpose x86-64 registers using the
// encoding the instruction-encoding tables in this package key off: the low
// 3 bits go in ModRM/SIB/opcode, the high bit is carried in REX.
type Reg uint8

const (
	RAX Reg = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

func (r Reg) String() string {
	names := [...]string{"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
		"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15"}
	return names[r&0xf]
}

// lowBits and needsRexBit split a Reg into the 3-bit field an instruction's
// ModRM/opcode byte carries and the extension bit REX.R/REX.X/REX.B carries.
func (r Reg) lowBits() uint8   { return uint8(r) & 0x7 }
func (r Reg) needsRexBit() bool { return uint8(r)&0x8 != 0 }

// sysVArgRegs is the System V AMD64 ABI's integer argument-register order.
// A call with more than len(sysVArgRegs) arguments is rejected by this back
// end (SPEC_FULL.md §3.4: stack-passed arguments are not supported).
var sysVArgRegs = [...]Reg{RDI, RSI, RDX, RCX, R8, R9}

// MaxCallArgs is the largest argument count Call/IndirectCall lowering
// accepts.
const MaxCallArgs = len(sysVArgRegs)

// workRegs names the three callee-saved registers set aside as this back
// end's work registers. Generate's lowering does not use them: every
// instruction works in RAX, RCX and RDX (plus the argument registers and
// R11 around calls), and every JIT-IR value is written to its stack slot
// immediately after being produced and reloaded on each use (the "spill
// everywhere" discipline). No value is kept in a register across an
// instruction boundary.
var workRegs = [...]Reg{R12, R13, R14}

// CalleeSaved reports whether r is preserved across a System V call, and so
// must itself be saved/restored by this trace's own prologue/epilogue if
// used as a work register.
func (r Reg) CalleeSaved() bool {
	switch r {
	case RBX, RBP, RSP, R12, R13, R14, R15:
		return true
	default:
		return false
	}
}

// DwarfNum returns r's DWARF register number, the numbering stackmap
// records and the deoptimiser's saved register file use.
func (r Reg) DwarfNum() uint8 {
	// DWARF's x86-64 numbering doesn't match the ModRM encoding order for
	// the first few registers.
	dwarf := [...]uint8{0, 2, 1, 3, 7, 6, 4, 5, 8, 9, 10, 11, 12, 13, 14, 15}
	return dwarf[r&0xf]
}
