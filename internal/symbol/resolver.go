// Package symbol implements the host symbol-resolution primitive the code
// generator needs to turn a Call's callee name into a runtime address: a
// search of the running process image and its loaded shared objects.
package symbol

import "jitcore/internal/jitrt"

// Resolver maps an externally linked symbol name to its runtime address.
// Call lowering in internal/codegen/x86asm calls Resolve once for every
// direct Call it emits (IndirectCall takes its target from an operand and
// does not resolve anything); guard stubs resolve __yk_guardcheck and
// __yk_deopt the same way.
type Resolver interface {
	Resolve(name string) (uintptr, error)
}

// Map is a Resolver backed by a fixed table, for tests and for embedding
// addresses (e.g. of the deoptimiser's own entry points, __yk_deopt and
// __yk_guardcheck) that don't come from process-image lookup.
type Map map[string]uintptr

// Resolve implements Resolver.
func (m Map) Resolve(name string) (uintptr, error) {
	addr, ok := m[name]
	if !ok {
		return 0, jitrt.NewGeneral("symbol: undefined reference to %q", name)
	}
	return addr, nil
}

// Chain tries each Resolver in order, returning the first successful
// lookup. Used to layer a small Map of well-known runtime symbols
// (__yk_deopt, __yk_guardcheck) over the process-image resolver.
type Chain []Resolver

// Resolve implements Resolver.
func (c Chain) Resolve(name string) (uintptr, error) {
	var lastErr error
	for _, r := range c {
		addr, err := r.Resolve(name)
		if err == nil {
			return addr, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = jitrt.NewGeneral("symbol: undefined reference to %q", name)
	}
	return 0, lastErr
}
