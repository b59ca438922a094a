package deopt

import (
	"encoding/binary"
	"testing"
	"unsafe"

	"jitcore/internal/stackmap"
)

func TestReconstructSingleFrameWritesDirectlyToRealStack(t *testing.T) {
	// One AOT frame, already resident on the real stack: reconstruction
	// must not allocate any heap frame and must poke the live value
	// straight into frameAddr+offset.
	jitFrame := make([]byte, 64)
	binary.LittleEndian.PutUint64(jitFrame[8:], 0xABCD)

	realFrame := make([]byte, 64)

	rec := &stackmap.Record{
		ID:   0,
		Size: 64,
		Live: []stackmap.LiveVar{
			{Loc: stackmap.Loc{Kind: stackmap.LocDirectStack, Offset: 16}},
		},
		ResumePC: 0xdead,
	}
	smt := stackmap.NewTable([]*stackmap.Record{rec})

	table := NewTable([]DeoptInfo{{
		GuardID:     1,
		StackmapIDs: []uint64{0},
		LiveSlots:   []int32{8},
	}})

	var gp, fp [16]uint64
	frameAddr := uintptr(unsafe.Pointer(&realFrame[0]))
	jitFrameAddr := uintptr(unsafe.Pointer(&jitFrame[0]))

	plan, err := Reconstruct(table, 1, frameAddr, jitFrameAddr, &gp, &fp, smt)
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	if len(plan.Buf) != 0 {
		t.Fatalf("expected no synthesized heap frame for a single already-resident frame, got %d bytes", len(plan.Buf))
	}
	if got := binary.LittleEndian.Uint64(realFrame[16:]); got != 0xABCD {
		t.Fatalf("real frame slot = %#x, want 0xabcd", got)
	}
	if plan.ResumePC != 0xdead {
		t.Fatalf("ResumePC = %#x, want 0xdead", plan.ResumePC)
	}
}

func TestReconstructInlinedFrameAllocatesHeapBuffer(t *testing.T) {
	jitFrame := make([]byte, 64)
	binary.LittleEndian.PutUint64(jitFrame[0:], 111)
	binary.LittleEndian.PutUint64(jitFrame[8:], 222)

	realFrame := make([]byte, 64)

	outer := &stackmap.Record{ID: 0, Size: 32, ResumePC: 0x1111}
	inner := &stackmap.Record{
		ID:   1,
		Size: 24,
		Live: []stackmap.LiveVar{
			{Loc: stackmap.Loc{Kind: stackmap.LocDirectStack, Offset: 0}},
		},
		ResumePC: 0x2222,
	}
	smt := stackmap.NewTable([]*stackmap.Record{outer, inner})

	table := NewTable([]DeoptInfo{{
		GuardID:     7,
		StackmapIDs: []uint64{0, 1},
		LiveSlots:   []int32{8},
	}})

	var gp, fp [16]uint64
	frameAddr := uintptr(unsafe.Pointer(&realFrame[0]))
	jitFrameAddr := uintptr(unsafe.Pointer(&jitFrame[0]))

	plan, err := Reconstruct(table, 7, frameAddr, jitFrameAddr, &gp, &fp, smt)
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	// one synthesized frame: 24 bytes of frame + 8 bytes return address
	if len(plan.Buf) != 32 {
		t.Fatalf("Buf len = %d, want 32", len(plan.Buf))
	}
	if got := binary.LittleEndian.Uint64(plan.Buf[0:]); got != 222 {
		t.Fatalf("synthesized frame live slot = %d, want 222", got)
	}
	if got := binary.LittleEndian.Uint64(plan.Buf[24:]); got != 0x2222 {
		t.Fatalf("synthesized frame return address = %#x, want 0x2222", got)
	}
	if plan.NewSP != frameAddr-32 {
		t.Fatalf("NewSP = %#x, want %#x", plan.NewSP, frameAddr-32)
	}
}

func TestReconstructUnknownGuardErrors(t *testing.T) {
	table := NewTable(nil)
	var gp, fp [16]uint64
	if _, err := Reconstruct(table, 99, 0, 0, &gp, &fp, stackmap.NewTable(nil)); err == nil {
		t.Fatal("expected an error for an unknown guard id")
	}
}

func TestMaskConstWidth(t *testing.T) {
	loc := stackmap.Loc{Kind: stackmap.LocConstant, ConstWidth: 8}
	if got := maskConstWidth(loc, 0xFFFFFFFFFFFFFF80); got != 0x80 {
		t.Fatalf("maskConstWidth = %#x, want 0x80", got)
	}
	wide := stackmap.Loc{Kind: stackmap.LocConstant, ConstWidth: 32}
	if got := maskConstWidth(wide, 0x1234); got != 0x1234 {
		t.Fatalf("maskConstWidth (32-bit) = %#x, want unchanged 0x1234", got)
	}
}

func TestBreadcrumbsTracksFailuresAndSideTraces(t *testing.T) {
	b := NewBreadcrumbs()
	if addr := GuardCheck(b, 42); addr != 0 {
		t.Fatalf("GuardCheck before registration = %#x, want 0", addr)
	}
	if n := b.RecordFailure(42); n != 2 {
		t.Fatalf("failure count = %d, want 2 (one from GuardCheck, one explicit)", n)
	}
	b.RegisterSideTrace(42, 0xfeed)
	if addr := GuardCheck(b, 42); addr != 0xfeed {
		t.Fatalf("GuardCheck after registration = %#x, want 0xfeed", addr)
	}
}
