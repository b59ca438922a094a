package main

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"jitcore/internal/fixture"
)

func TestRunProducesDisassemblyAndGuardTable(t *testing.T) {
	var buf bytes.Buffer
	out := bufio.NewWriter(&buf)
	if err := run(out, fixture.InterpTrace(), fixture.InterpStackmaps()); err != nil {
		t.Fatalf("run: %v", err)
	}
	out.Flush()

	got := buf.String()
	for _, want := range []string{"ctr_id:", "entry:", "checksum:", "disassembly:", "guard table:", "guard 0:"} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}
}

func TestRunPrintsIRWhenRequested(t *testing.T) {
	old := *traceIR
	*traceIR = true
	defer func() { *traceIR = old }()

	var buf bytes.Buffer
	out := bufio.NewWriter(&buf)
	if err := run(out, fixture.InterpTrace(), fixture.InterpStackmaps()); err != nil {
		t.Fatalf("run: %v", err)
	}
	out.Flush()

	if buf.Len() == 0 {
		t.Fatal("expected non-empty output")
	}
}

func TestLoadInputRequiresDemoOrFixture(t *testing.T) {
	*demo = false
	*fixtureArg = ""
	if _, _, err := loadInput(); err == nil {
		t.Fatal("expected an error when neither -demo nor -fixture is set")
	}
}

func TestLoadInputFixtureLoadsTxtar(t *testing.T) {
	old := *fixtureArg
	*fixtureArg = "../../testdata/interp_loop.txtar"
	defer func() { *fixtureArg = old }()

	actions, stackmaps, err := loadInput()
	if err != nil {
		t.Fatalf("loadInput: %v", err)
	}
	if len(actions) != 3 {
		t.Fatalf("len(actions) = %d, want 3", len(actions))
	}
	if _, ok := stackmaps.Lookup(0); !ok {
		t.Fatal("expected stackmap record 0")
	}
}
