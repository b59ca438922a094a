package jitrt

import (
	"log"
	"os"
)

// Package-scoped loggers, one per pipeline stage, following the same
// "no-timestamp, component-prefixed" convention cmd/compile's main.go sets
// up for its own diagnostics.
var (
	TraceLog   = log.New(os.Stderr, "tracebuilder: ", 0)
	CodegenLog = log.New(os.Stderr, "codegen: ", 0)
	DeoptLog   = log.New(os.Stderr, "deopt: ", 0)
	AotLog     = log.New(os.Stderr, "aotir: ", 0)
)
