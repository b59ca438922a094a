package deopt

import "sync"

// Breadcrumbs records, per guard, how many times that guard has failed and
// the side-trace (if any) compiled against it. Every guard stub the code
// generator emits calls the __yk_guardcheck symbol, when it resolves,
// before any deopt call, so that once a side-trace has been registered
// for a guard, future failures call straight into it instead of falling
// all the way back to the interpreter.
type Breadcrumbs struct {
	mu      sync.Mutex
	counts  map[uint64]uint32
	traces  map[uint64]uintptr
}

// NewBreadcrumbs returns an empty Breadcrumbs tracker.
func NewBreadcrumbs() *Breadcrumbs {
	return &Breadcrumbs{
		counts: make(map[uint64]uint32),
		traces: make(map[uint64]uintptr),
	}
}

// RecordFailure increments guardID's failure count and returns the new
// total.
func (b *Breadcrumbs) RecordFailure(guardID uint64) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counts[guardID]++
	return b.counts[guardID]
}

// SideTrace returns the compiled side-trace entry point registered against
// guardID, or 0 if none has been recorded yet.
func (b *Breadcrumbs) SideTrace(guardID uint64) uintptr {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.traces[guardID]
}

// RegisterSideTrace records entry as the compiled side-trace to jump to the
// next time guardID fails.
func (b *Breadcrumbs) RegisterSideTrace(guardID uint64, entry uintptr) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.traces[guardID] = entry
}

// GuardCheck is the entry point the generated guard stub calls on failure.
// It consults crumbs for a previously compiled side-trace and, if one
// exists, returns its address so the stub can call directly into it
// instead of deoptimising; otherwise it returns 0, telling the stub to fall
// through to Reconstruct/the deopt trampoline.
func GuardCheck(crumbs *Breadcrumbs, guardID uint64) uintptr {
	if crumbs == nil {
		return 0
	}
	crumbs.RecordFailure(guardID)
	return crumbs.SideTrace(guardID)
}
