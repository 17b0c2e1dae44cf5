//go:build cgo && dxcompiler

package dxc

/*
#include <stdint.h>

extern void MachDxcompilerInvokeDllMain(void);
extern int32_t DxcCreateInstance(const void *rclsid, const void *riid, void **ppv);
*/
import "C"

import "unsafe"

const linked = true

var native Native = machNative{}

type machNative struct{}

func (machNative) InvokeDllMain() {
	C.MachDxcompilerInvokeDllMain()
}

func (machNative) CreateInstance(clsid, iid *GUID, out *unsafe.Pointer) HRESULT {
	return HRESULT(C.DxcCreateInstance(unsafe.Pointer(clsid), unsafe.Pointer(iid), out))
}
