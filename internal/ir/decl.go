package ir

// FuncDecl names a function defined outside this trace: either in the AOT
// module or in some other externally linked object. Calls resolve it via
// the host symbol-resolution primitive at codegen time.
type FuncDecl struct {
	Name string
	Ty   TyIdx // a TyFunc
}

// GlobalDecl names an externally defined global variable. PtrIdx indexes
// the AOT-generated __yk_globalvar_ptrs array (see the codegen package's
// LookupGlobal lowering).
type GlobalDecl struct {
	Name        string
	ThreadLocal bool
	PtrIdx      uint32
}
