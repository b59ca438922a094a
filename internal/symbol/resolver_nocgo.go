//go:build !unix || !cgo

package symbol

import "jitcore/internal/jitrt"

// ProcessImage is the no-cgo stand-in: resolving against the live process
// image genuinely requires dlsym (there is no portable ELF/Mach-O-reading
// equivalent in the standard library), so without cgo there is nothing to
// do but fail clearly, the same way net falls back to its pure-Go resolver
// with reduced capability when cgo is unavailable.
type ProcessImage struct{}

// Resolve implements Resolver.
func (ProcessImage) Resolve(name string) (uintptr, error) {
	return 0, jitrt.NewGeneral("symbol: process-image resolution of %q requires cgo", name)
}
