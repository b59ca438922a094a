// Package tracebuilder turns a recorded trace — a flat sequence of AOT
// basic blocks a meta-tracer collaborator walked at runtime — into a JIT
// IR module ready for code generation. It owns the AOT-local-to-JIT-local
// mapping and the bookkeeping needed to assemble each guard's
// live-variable list.
package tracebuilder

import (
	"jitcore/internal/aotir"
	"jitcore/internal/ir"
	"jitcore/internal/jitrt"
	"jitcore/internal/stackmap"
)

// TraceAction is one step of a recorded trace: either a block the recorder
// was able to attribute to a specific AOT function (a "mapped" block), or
// a stretch of execution it could not map to any AOT block (an
// "unmappable region", skipped entirely by the builder).
type TraceAction struct {
	FuncName string
	Block    aotir.BBlockIdx
	Unmapped bool
}

// Mapped builds a TraceAction for a recorded AOT block.
func Mapped(funcName string, block aotir.BBlockIdx) TraceAction {
	return TraceAction{FuncName: funcName, Block: block}
}

// UnmappedRegion builds a TraceAction for a region the recorder could not
// attribute to any AOT block.
func UnmappedRegion() TraceAction { return TraceAction{Unmapped: true} }

// Builder holds the state accumulated while lowering one trace.
type Builder struct {
	aotMod    *aotir.Module
	jit       *ir.Module
	stackmaps *stackmap.Table

	// localMap maps an AOT local (the value an AOT instruction defines) to
	// the JIT-IR operand it has been lowered to. A header-synthesised
	// trace input and a regularly lowered instruction both end up here;
	// the values aren't required to be distinct InstIdxs, since an
	// inlined call's Ret may alias a call site onto an already-existing
	// operand.
	localMap map[aotir.InstructionID]ir.Operand

	// frames is the stack of currently inlined call frames, innermost
	// last. Popped on Ret, pushed when a non-elided direct call into a
	// function with a body is encountered.
	frames []*frame

	// rootStackmapID is the most recently seen stackmap ID at the
	// outermost (uninlined) call depth.
	rootStackmapID stackmap.ID
}

type frame struct {
	callSite   aotir.InstructionID
	stackmapID stackmap.ID
}

// Build lowers actions into a JIT IR module. traceName is used only to
// annotate error messages.
func Build(traceName string, ctrID uint64, aotMod *aotir.Module, actions []TraceAction, stackmaps *stackmap.Table) (*ir.Module, error) {
	jit, err := ir.NewModule(ctrID)
	if err != nil {
		return nil, err
	}
	b := &Builder{
		aotMod:    aotMod,
		jit:       jit,
		stackmaps: stackmaps,
		localMap:  make(map[aotir.InstructionID]ir.Operand),
	}

	headerIdx := firstMapped(actions)
	if headerIdx < 0 {
		return nil, jitrt.NewGeneral("trace builder: %s: trace has no mapped blocks", traceName)
	}
	if err := b.synthesizeHeader(actions[headerIdx]); err != nil {
		return nil, jitrt.NewGeneral("trace builder: %s: header synthesis: %v", traceName, err)
	}
	if _, err := b.jit.PushInst(ir.TraceLoopStartInst{}); err != nil {
		return nil, jitrt.NewGeneral("trace builder: %s: %v", traceName, err)
	}

	for ai := headerIdx + 1; ai < len(actions); ai++ {
		if actions[ai].Unmapped {
			continue
		}
		if err := b.processBlock(actions, ai); err != nil {
			return nil, jitrt.NewGeneral("trace builder: %s: %v", traceName, err)
		}
	}

	if err := ir.Validate(b.jit); err != nil {
		return nil, jitrt.NewGeneral("trace builder: %s: built an invalid module: %v", traceName, err)
	}
	return b.jit, nil
}

func firstMapped(actions []TraceAction) int {
	for i, a := range actions {
		if !a.Unmapped {
			return i
		}
	}
	return -1
}

func (b *Builder) currentStackmapID() stackmap.ID {
	if len(b.frames) == 0 {
		return b.rootStackmapID
	}
	return b.frames[len(b.frames)-1].stackmapID
}
