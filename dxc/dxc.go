// Package dxc exposes the statically linked mach-dxcompiler library.
//
// The library is only linked when building with cgo and the dxcompiler build
// tag, and after `machdxc fetch --format cgo --out dxc/zlink.go` has written
// the link directives for the target. Other builds get a stub whose calls
// report E_NOTIMPL.
package dxc

import (
	"fmt"
	"sync"
	"unsafe"
)

// GUID is the Windows GUID layout used for class and interface ids.
type GUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

func (g GUID) String() string {
	return fmt.Sprintf("{%08x-%04x-%04x-%02x%02x-%02x%02x%02x%02x%02x%02x}",
		g.Data1, g.Data2, g.Data3,
		g.Data4[0], g.Data4[1], g.Data4[2], g.Data4[3],
		g.Data4[4], g.Data4[5], g.Data4[6], g.Data4[7])
}

// Class ids accepted by CreateInstance
var (
	CLSIDDxcCompiler     = GUID{0x73e22d93, 0xe6ce, 0x47f3, [8]byte{0xb5, 0xbf, 0xf0, 0x66, 0x4f, 0x39, 0xc1, 0xb0}}
	CLSIDDxcLibrary      = GUID{0x6245d6af, 0x66e0, 0x48fd, [8]byte{0x80, 0xb4, 0x4d, 0x27, 0x17, 0x96, 0x74, 0x8c}}
	CLSIDDxcUtils        = CLSIDDxcLibrary
	CLSIDDxcValidator    = GUID{0x8ca3e215, 0xf728, 0x4cf3, [8]byte{0x8c, 0xdd, 0x88, 0xaf, 0x91, 0x75, 0x87, 0xa1}}
	CLSIDDxcCompilerArgs = GUID{0x3e56ae82, 0x224d, 0x470f, [8]byte{0xa1, 0xa1, 0xfe, 0x30, 0x16, 0xee, 0x9f, 0x9d}}
)

// Interface ids
var (
	IIDIDxcCompiler3 = GUID{0x228b4687, 0x5a6a, 0x4730, [8]byte{0x90, 0x0c, 0x97, 0x02, 0xb2, 0x20, 0x3f, 0x54}}
	IIDIDxcUtils     = GUID{0x4605c4cb, 0x2019, 0x492a, [8]byte{0xad, 0xa4, 0x65, 0xf2, 0x0b, 0xb7, 0xd6, 0x7f}}
)

// HRESULT is a COM status code.
type HRESULT int32

const (
	S_OK      HRESULT = 0
	E_NOTIMPL HRESULT = -0x7fffbfff // 0x80004001
	E_POINTER HRESULT = -0x7fffbffd // 0x80004003
)

// Failed reports whether h is an error code
func (h HRESULT) Failed() bool {
	return h < 0
}

func (h HRESULT) String() string {
	return fmt.Sprintf("0x%08x", uint32(h))
}

// Native is the native library entry points.
type Native interface {
	// InvokeDllMain runs the library's process attach initialization.
	InvokeDllMain()

	// CreateInstance is the native DxcCreateInstance.
	CreateInstance(clsid, iid *GUID, out *unsafe.Pointer) HRESULT
}

// Runtime forwards CreateInstance calls to a Native library, initializing it
// exactly once first. Concurrent callers block until initialization is done.
type Runtime struct {
	native Native
	once   sync.Once
}

// NewRuntime creates a runtime over n
func NewRuntime(n Native) *Runtime {
	return &Runtime{native: n}
}

// CreateInstance creates an uninitialized object of class clsid and stores
// the iid interface pointer in out.
func (r *Runtime) CreateInstance(clsid, iid *GUID, out *unsafe.Pointer) HRESULT {
	if clsid == nil || iid == nil || out == nil {
		return E_POINTER
	}

	r.once.Do(r.native.InvokeDllMain)

	return r.native.CreateInstance(clsid, iid, out)
}

var process = NewRuntime(native)

// CreateInstance calls DxcCreateInstance on the linked library, running its
// initializer on the first call in the process.
func CreateInstance(clsid, iid *GUID, out *unsafe.Pointer) HRESULT {
	return process.CreateInstance(clsid, iid, out)
}

// Linked reports whether the native library is linked into this binary
func Linked() bool {
	return linked
}
