//go:build unix

package symbol

/*
#cgo LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdlib.h>
*/
import "C"

import "unsafe"

// ProcessImage resolves symbol names against the running process image and
// every shared object it has loaded, via dlsym(RTLD_DEFAULT, ...). This is
// the only portable way to do this from Go without shipping a
// platform-specific ELF/Mach-O symbol-table reader, and mirrors what a
// dynamic linker itself does at load time.
type ProcessImage struct{}

// Resolve implements Resolver.
func (ProcessImage) Resolve(name string) (uintptr, error) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	addr := C.dlsym(C.RTLD_DEFAULT, cname)
	if addr == nil {
		return Map{}.Resolve(name) // produces the standard "undefined reference" error
	}
	return uintptr(addr), nil
}
