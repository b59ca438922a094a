package tracefixture

import (
	"testing"

	"jitcore/internal/fixture"
	"jitcore/internal/tracebuilder"
)

func TestLoadParsesTraceAndStackmaps(t *testing.T) {
	b, err := Load("../../testdata/interp_loop.txtar")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(b.Trace) != 3 {
		t.Fatalf("len(Trace) = %d, want 3", len(b.Trace))
	}
	if _, ok := b.Stackmaps.Lookup(0); !ok {
		t.Fatal("expected stackmap record 0")
	}
}

func TestLoadedBundleDrivesTraceBuilder(t *testing.T) {
	b, err := Load("../../testdata/interp_loop.txtar")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	jitMod, err := tracebuilder.Build("fixture-test", 1, fixture.Interp(), b.Trace, b.Stackmaps)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if jitMod.NumGuards() != 1 {
		t.Fatalf("NumGuards() = %d, want 1", jitMod.NumGuards())
	}
}

func TestLoadBytesRejectsMissingSection(t *testing.T) {
	if _, err := LoadBytes([]byte("-- trace.txt --\nmapped f 0\n")); err == nil {
		t.Fatal("expected an error for a missing stackmaps.txt section")
	}
}

func TestLoadBytesRejectsMalformedLine(t *testing.T) {
	data := []byte("-- trace.txt --\nmapped f\n-- stackmaps.txt --\n0 32 4096 1 0 0\n")
	if _, err := LoadBytes(data); err == nil {
		t.Fatal("expected an error for a malformed mapped line")
	}
}
