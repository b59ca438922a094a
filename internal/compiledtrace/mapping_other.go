//go:build !unix

package compiledtrace

import "jitcore/internal/jitrt"

// mapping is the non-unix stand-in: this back end's W^X executable memory
// management is built directly on mmap/mprotect (golang.org/x/sys/unix),
// which has no portable non-unix equivalent, so outside unix there is
// nothing to do but fail clearly at trace-creation time.
type mapping struct{}

func newMapping(code []byte) (*mapping, error) {
	return nil, jitrt.NewGeneral("compiledtrace: executable trace memory requires a unix target")
}

func (m *mapping) addr() uintptr { return 0 }
func (m *mapping) bytes() []byte { return nil }
func (m *mapping) close() error  { return nil }
