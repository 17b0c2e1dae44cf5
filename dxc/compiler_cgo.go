//go:build cgo && dxcompiler

package dxc

/*
#include <stdint.h>
#include <stdlib.h>

typedef struct MachDxcCompilerImpl* MachDxcCompiler;
typedef struct MachDxcCompileResultImpl* MachDxcCompileResult;
typedef struct MachDxcCompileErrorImpl* MachDxcCompileError;
typedef struct MachDxcCompileObjectImpl* MachDxcCompileObject;

typedef struct MachDxcCompileOptions {
	char const* code;
	size_t code_len;
	char const* const* args;
	size_t args_len;
	void* include_callbacks;
} MachDxcCompileOptions;

extern MachDxcCompiler machDxcInit(void);
extern MachDxcCompileResult machDxcCompile(MachDxcCompiler compiler, MachDxcCompileOptions* options);
extern MachDxcCompileError machDxcCompileResultGetError(MachDxcCompileResult result);
extern MachDxcCompileObject machDxcCompileResultGetObject(MachDxcCompileResult result);
extern void machDxcCompileResultDeinit(MachDxcCompileResult result);
extern char const* machDxcCompileErrorGetString(MachDxcCompileError err);
extern size_t machDxcCompileErrorGetStringLength(MachDxcCompileError err);
extern void machDxcCompileErrorDeinit(MachDxcCompileError err);
extern uint8_t const* machDxcCompileObjectGetBytes(MachDxcCompileObject object);
extern size_t machDxcCompileObjectGetBytesLength(MachDxcCompileObject object);
extern void machDxcCompileObjectDeinit(MachDxcCompileObject object);
extern void machDxcDeinit(MachDxcCompiler compiler);
*/
import "C"

import "unsafe"

type machBackend struct {
	handle C.MachDxcCompiler
}

func newBackend() (backend, error) {
	return &machBackend{handle: C.machDxcInit()}, nil
}

func (b *machBackend) compile(code []byte, args []string) ([]byte, string, bool) {
	cCode := C.CBytes(code)
	defer C.free(cCode)

	// Option pointers must reference C memory
	ptrSize := unsafe.Sizeof((*C.char)(nil))
	cArgs := (**C.char)(C.malloc(C.size_t(uintptr(len(args)+1) * ptrSize)))
	defer C.free(unsafe.Pointer(cArgs))

	argv := unsafe.Slice(cArgs, len(args)+1)
	for i, a := range args {
		argv[i] = C.CString(a)
		defer C.free(unsafe.Pointer(argv[i]))
	}
	argv[len(args)] = nil

	options := (*C.MachDxcCompileOptions)(C.malloc(C.size_t(unsafe.Sizeof(C.MachDxcCompileOptions{}))))
	defer C.free(unsafe.Pointer(options))
	options.code = (*C.char)(cCode)
	options.code_len = C.size_t(len(code))
	options.args = cArgs
	options.args_len = C.size_t(len(args))
	options.include_callbacks = nil

	result := C.machDxcCompile(b.handle, options)
	defer C.machDxcCompileResultDeinit(result)

	if cErr := C.machDxcCompileResultGetError(result); cErr != nil {
		defer C.machDxcCompileErrorDeinit(cErr)
		msg := C.GoStringN(C.machDxcCompileErrorGetString(cErr), C.int(C.machDxcCompileErrorGetStringLength(cErr)))
		return nil, msg, true
	}

	object := C.machDxcCompileResultGetObject(result)
	defer C.machDxcCompileObjectDeinit(object)

	n := C.machDxcCompileObjectGetBytesLength(object)
	return C.GoBytes(unsafe.Pointer(C.machDxcCompileObjectGetBytes(object)), C.int(n)), "", false
}

func (b *machBackend) close() {
	C.machDxcDeinit(b.handle)
}
