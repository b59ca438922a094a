package x86asm

import (
	"fmt"

	disasm "golang.org/x/arch/x86/x86asm"
)

// DisassembleBytes decodes code as a sequence of x86-64 instructions and
// renders each in AT&T/GNU syntax, one string per instruction, the way
// objdump's own GNU-mode output reads. It's purely diagnostic: used by
// cmd/jitdump and by tests that want to sanity-check what Generate
// produced without re-deriving the encoding by hand.
func DisassembleBytes(code []byte) ([]string, error) {
	var out []string
	for pc := 0; pc < len(code); {
		inst, err := disasm.Decode(code[pc:], 64)
		if err != nil {
			return out, fmt.Errorf("x86asm: decode at offset %d: %w", pc, err)
		}
		out = append(out, disasm.GNUSyntax(inst, uint64(pc), nil))
		if inst.Len == 0 {
			break
		}
		pc += inst.Len
	}
	return out, nil
}
