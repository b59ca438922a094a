// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// jitdump compiles one recorded trace and prints its disassembly and guard
// table, the way objdump prints a section of a binary: a debugging aid for
// looking at what the code generator produced without wiring up a whole
// interpreter and runtime.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"

	"jitcore/internal/codegen/x86asm"
	"jitcore/internal/compiledtrace"
	"jitcore/internal/fixture"
	"jitcore/internal/ir"
	"jitcore/internal/stackmap"
	"jitcore/internal/symbol"
	"jitcore/internal/tracebuilder"
	"jitcore/internal/tracefixture"
)

var (
	demo       = flag.Bool("demo", false, "compile the built-in interp_loop sample trace instead of reading one")
	fixtureArg = flag.String("fixture", "", "path to a txtar trace fixture (see testdata/, internal/tracefixture); walks the built-in interp_loop AOT module")
	ctrID      = flag.Uint64("ctr-id", 1, "compiled-trace id to report")
	traceIR    = flag.Bool("print-ir", false, "also print the lowered JIT IR before compiling it")
	globalsAt  = flag.Uint64("globals-addr", 0, "runtime address of the AOT globals-address array")
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("jitdump: ")
	flag.Parse()

	actions, stackmaps, err := loadInput()
	if err != nil {
		log.Fatalf("%v", err)
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	if err := run(out, actions, stackmaps); err != nil {
		log.Fatalf("%v", err)
	}
}

// loadInput resolves -fixture or -demo into a trace recording and its
// stackmap table. Both walk the same built-in interp_loop AOT module (see
// internal/fixture's doc comment) since aotir's on-disk format is binary
// and not something -fixture's txtar archives carry.
func loadInput() ([]tracebuilder.TraceAction, *stackmap.Table, error) {
	switch {
	case *fixtureArg != "":
		b, err := tracefixture.Load(*fixtureArg)
		if err != nil {
			return nil, nil, err
		}
		return b.Trace, b.Stackmaps, nil
	case *demo:
		return fixture.InterpTrace(), fixture.InterpStackmaps(), nil
	default:
		return nil, nil, fmt.Errorf("no input selected; pass -demo or -fixture <path>")
	}
}

// run lowers actions to JIT IR, generates machine code for it, and prints
// the result: the same tracebuilder -> x86asm -> compiledtrace pipeline a
// real meta-tracer embedding this module would drive.
func run(out *bufio.Writer, actions []tracebuilder.TraceAction, stackmaps *stackmap.Table) error {
	aotMod := fixture.Interp()

	jitMod, err := tracebuilder.Build("jitdump", *ctrID, aotMod, actions, stackmaps)
	if err != nil {
		return fmt.Errorf("building trace: %w", err)
	}

	if *traceIR {
		fmt.Fprintln(out, ir.Display(jitMod))
		fmt.Fprintln(out)
	}

	resolver := symbol.Chain{
		symbol.Map{
			"__yk_deopt":      0x1,
			"__yk_guardcheck": 0x2,
		},
		symbol.ProcessImage{},
	}

	res, err := x86asm.Generate(jitMod, resolver, stackmaps, uintptr(*globalsAt))
	if err != nil {
		return fmt.Errorf("generating code: %w", err)
	}

	ct, err := compiledtrace.New(*ctrID, res, compiledtrace.Options{KeepDisassembly: true})
	if err != nil {
		return fmt.Errorf("mapping compiled trace: %w", err)
	}
	defer ct.Close()

	fmt.Fprintf(out, "ctr_id: %d\n", ct.CtrID())
	fmt.Fprintf(out, "entry: 0x%x\n", ct.Entry())
	fmt.Fprintf(out, "checksum: %x\n", ct.Checksum())
	fmt.Fprintf(out, "prologue frame size: %d\n", res.PrologueFrameSize)

	fmt.Fprintln(out, "\ndisassembly:")
	for _, line := range ct.Disassembly() {
		fmt.Fprintf(out, "  %s\n", line)
	}

	fmt.Fprintln(out, "\nguard table:")
	for _, di := range res.DeoptInfos {
		fmt.Fprintf(out, "  guard %d: stackmaps=%v live_slots=%v\n", di.GuardID, di.StackmapIDs, di.LiveSlots)
	}

	return nil
}
