//go:build amd64

package deopt

import "unsafe"

// Finish hands plan to the assembly trampoline in thunk_amd64.s. It never
// returns: the trampoline copies plan.Buf onto the real stack at plan.NewSP,
// restores plan.GPRegs/plan.FPRegs, and jumps to plan.ResumePC, resuming
// execution as the AOT-compiled interpreter as if the JIT trace had never
// run.
//
// The calling convention here is this module's go 1.16 stack-based Go
// assembly ABI (ABI0): every argument and the (never-taken) return address
// live at fixed offsets from the frame pointer, exactly the contract
// stackReplace's TEXT declaration in thunk_amd64.s encodes.
func (p *Plan) Finish() {
	var bufPtr unsafe.Pointer
	if len(p.Buf) > 0 {
		bufPtr = unsafe.Pointer(&p.Buf[0])
	}
	stackReplace(p.NewSP, bufPtr, uintptr(len(p.Buf)), &p.GPRegs, &p.FPRegs, p.ResumePC)
}

// stackReplace is implemented in thunk_amd64.s. It is declared //go:noescape
// because its last real action is an indirect jump, not a return: the Go
// compiler must not assume anything about the state of the stack or
// registers after this call, and must not try to track buf/gpRegs/fpRegs as
// escaping through a normal return path.
//
//go:noescape
func stackReplace(newSP uintptr, buf unsafe.Pointer, bufLen uintptr, gpRegs *[16]uint64, fpRegs *[16]uint64, resumePC uintptr)
