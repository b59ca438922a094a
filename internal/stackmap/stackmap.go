// Package stackmap models the parsed form of LLVM's .llvm_stackmaps
// section: per-call-site metadata recording frame size, the callee-saved
// registers in use, where each live AOT value can be found, and the
// address execution should resume at. Parsing the raw ELF/DWARF section is
// an external collaborator's job (out of scope, per spec.md §1); this
// package only represents its output and a lookup table over it, the way
// both the trace builder (to find a guard's live-variable list) and the
// deoptimiser (to reconstruct frames) need to consume it.
package stackmap

import "jitcore/internal/aotir"

// ID identifies one stackmap record; it's the value an elided
// llvm.experimental.stackmap call in the AOT IR carries as its constant
// argument.
type ID uint64

// LocKind discriminates where a stackmap-recorded live value lives.
type LocKind uint8

const (
	LocRegister LocKind = iota
	LocDirectStack
	LocIndirectRBP
	LocConstant
)

// Loc is one live-variable location as the AOT side expects to find (or,
// for a Store, be given) it.
type Loc struct {
	Kind LocKind

	// Register: a DWARF register number (LocRegister), or the DWARF
	// register number a stack-relative offset is taken from
	// (LocIndirectRBP, where it is always RBP's DWARF number, 6).
	Register uint8

	// Offset: byte offset from the frame base (LocDirectStack,
	// LocIndirectRBP).
	Offset int32

	// ConstBits / ConstWidth: a sign-extended-on-disk integer constant
	// narrower than 32 bits (LocConstant); the deoptimiser must mask off
	// the high bits per ConstWidth before use.
	ConstBits  uint64
	ConstWidth uint8
}

// LiveVar pairs an AOT-IR-identified value with the location the stackmap
// says it must be written to (deopt) or can be read from (side-trace entry
// — not used by this core, but kept symmetric).
type LiveVar struct {
	AotLocal aotir.InstructionID
	Loc      Loc
}

// CalleeSavedReg is one callee-saved register this frame preserves, and the
// byte offset (from the frame's RBP) at which the deoptimiser must write
// its restored value.
type CalleeSavedReg struct {
	DwarfReg uint8
	Offset   int32
}

// Record is one parsed stackmap entry: everything the deoptimiser needs to
// reconstruct one AOT frame, and everything the trace builder needs to
// assemble one guard's live-variable list.
type Record struct {
	ID          ID
	Size        uint32
	HasFP       bool
	CalleeSaved []CalleeSavedReg
	Live        []LiveVar
	ResumePC    uint64
}

// Table is a read-only lookup table over a set of parsed Records, indexed
// by ID. Multiple guards (and multiple frames within one guard's inlined
// call stack) share the same underlying Table.
type Table struct {
	byID map[ID]*Record
}

// NewTable builds a Table from records, the way an external collaborator's
// ELF/DWARF stackmap parser would hand them to the core.
func NewTable(records []*Record) *Table {
	t := &Table{byID: make(map[ID]*Record, len(records))}
	for _, r := range records {
		t.byID[r.ID] = r
	}
	return t
}

// Lookup returns the record for id, or false if this table has none.
func (t *Table) Lookup(id ID) (*Record, bool) {
	r, ok := t.byID[id]
	return r, ok
}
