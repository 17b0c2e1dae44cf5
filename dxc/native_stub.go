//go:build !(cgo && dxcompiler)

package dxc

import "unsafe"

const linked = false

var native Native = unlinked{}

type unlinked struct{}

func (unlinked) InvokeDllMain() {}

func (unlinked) CreateInstance(clsid, iid *GUID, out *unsafe.Pointer) HRESULT {
	return E_NOTIMPL
}

func newBackend() (backend, error) {
	return nil, ErrNotLinked
}
