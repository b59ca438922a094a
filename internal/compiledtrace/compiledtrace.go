// Package compiledtrace owns a compiled trace's executable memory and the
// side tables a failing guard needs: the W^X mapping the code generator's
// bytes are copied into, the deoptimisation table, and optional
// disassembly/debug metadata for cmd/jitdump.
package compiledtrace

import (
	"golang.org/x/crypto/blake2b"

	"jitcore/internal/codegen/x86asm"
	"jitcore/internal/deopt"
	"jitcore/internal/jitrt"
)

// CompiledTrace is a finished, runnable trace: an executable mapping plus
// everything needed to deoptimise out of it.
type CompiledTrace struct {
	mapping *mapping
	deopt   *deopt.Table
	ctrID   uint64

	// disasm, when non-nil, holds one rendered instruction per entry,
	// captured at compile time for cmd/jitdump; nil in the common path
	// where nobody asked for it (avoids decoding the trace twice).
	disasm []string
}

// Options controls what New keeps around besides the bare executable
// mapping.
type Options struct {
	// KeepDisassembly renders and stores the trace's disassembly eagerly,
	// from the generated bytes, so Disassembly never needs to decode the
	// W^X mapping after New returns.
	KeepDisassembly bool
}

// New takes ownership of res (a code generator Result) and produces a
// runnable CompiledTrace: it maps res.Code into W^X executable memory and
// builds the guard lookup table.
func New(ctrID uint64, res *x86asm.Result, opts Options) (*CompiledTrace, error) {
	m, err := newMapping(res.Code)
	if err != nil {
		return nil, jitrt.NewResourceExhausted(err)
	}

	ct := &CompiledTrace{
		mapping: m,
		deopt:   deopt.NewTable(res.DeoptInfos),
		ctrID:   ctrID,
	}

	if opts.KeepDisassembly {
		lines, err := x86asm.DisassembleBytes(res.Code)
		if err != nil {
			// Disassembly failure doesn't invalidate a trace that's
			// otherwise fine to execute; keep going without it.
			ct.disasm = nil
		} else {
			ct.disasm = lines
		}
	}

	return ct, nil
}

// Entry returns the trace's entry point: the address to jump to (or call,
// with the trace-inputs struct pointer in RDI) to begin execution.
func (ct *CompiledTrace) Entry() uintptr { return ct.mapping.addr() }

// DeoptTable returns the guard lookup table __yk_guardcheck/__yk_deopt
// consult for this trace.
func (ct *CompiledTrace) DeoptTable() *deopt.Table { return ct.deopt }

// CtrID returns the semi-unique id this trace was compiled under.
func (ct *CompiledTrace) CtrID() uint64 { return ct.ctrID }

// Disassembly returns the cached disassembly lines, or nil if
// Options.KeepDisassembly wasn't set.
func (ct *CompiledTrace) Disassembly() []string { return ct.disasm }

// Checksum returns a blake2b-256 digest of the trace's executable bytes,
// for cmd/jitdump to label a dump and for tests to assert two compilations
// of the same trace produced byte-identical code.
func (ct *CompiledTrace) Checksum() [32]byte {
	return blake2b.Sum256(ct.mapping.bytes())
}

// Close releases the trace's executable mapping. The CompiledTrace must
// not be entered again afterwards.
func (ct *CompiledTrace) Close() error {
	return ct.mapping.close()
}
