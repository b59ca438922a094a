package compiledtrace

import (
	"testing"

	"jitcore/internal/codegen/x86asm"
	"jitcore/internal/deopt"
)

func TestNewMapsCodeAndReportsEntry(t *testing.T) {
	// ret; nop-ish filler, just needs to be valid, non-empty machine code.
	res := &x86asm.Result{Code: []byte{0xC3}}
	ct, err := New(1, res, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ct.Close()

	if ct.Entry() == 0 {
		t.Fatal("expected a non-zero entry address")
	}
	if ct.CtrID() != 1 {
		t.Fatalf("CtrID = %d, want 1", ct.CtrID())
	}
}

func TestNewBuildsDeoptTable(t *testing.T) {
	res := &x86asm.Result{
		Code: []byte{0xC3},
		DeoptInfos: []deopt.DeoptInfo{
			{GuardID: 7, StackmapIDs: []uint64{0}},
		},
	}
	ct, err := New(2, res, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ct.Close()

	if _, ok := ct.DeoptTable().Lookup(7); !ok {
		t.Fatal("expected guard 7's DeoptInfo to be registered")
	}
}

func TestChecksumIsStableForIdenticalCode(t *testing.T) {
	res := &x86asm.Result{Code: []byte{0xC3, 0x90, 0x90}}
	a, err := New(3, res, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()
	b, err := New(3, res, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	if a.Checksum() != b.Checksum() {
		t.Fatal("expected identical code to produce identical checksums")
	}
}

func TestKeepDisassemblyCachesLines(t *testing.T) {
	res := &x86asm.Result{Code: []byte{0xC3}}
	ct, err := New(4, res, Options{KeepDisassembly: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ct.Close()

	if len(ct.Disassembly()) == 0 {
		t.Fatal("expected at least one disassembled instruction")
	}
}
