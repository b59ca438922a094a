//go:build unix

package compiledtrace

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// mapping is a W^X executable memory region: allocated read-write, filled
// with machine code, then mprotect'd to read-execute so the page holding a
// compiled trace is never simultaneously writable and executable.
type mapping struct {
	region []byte
}

func newMapping(code []byte) (*mapping, error) {
	size := len(code)
	if size == 0 {
		size = 1
	}
	region, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, err
	}
	copy(region, code)
	if err := unix.Mprotect(region, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		unix.Munmap(region)
		return nil, err
	}
	return &mapping{region: region}, nil
}

func (m *mapping) addr() uintptr {
	if len(m.region) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&m.region[0]))
}
func (m *mapping) bytes() []byte { return m.region }

func (m *mapping) close() error {
	return unix.Munmap(m.region)
}
