package dxc

import (
	"errors"
	"sync"
)

// ErrNotLinked is returned when the binary was built without the native library.
var ErrNotLinked = errors.New("mach-dxcompiler is not linked (build with cgo and -tags dxcompiler)")

// ErrClosed is returned by a Compiler after Close.
var ErrClosed = errors.New("compiler is closed")

// backend is the flat C API of the library: machDxcInit, machDxcCompile and
// machDxcDeinit together with the result accessors.
type backend interface {
	compile(code []byte, args []string) (object []byte, diagnostics string, failed bool)
	close()
}

// Compiler compiles HLSL source with the library's flat C API.
type Compiler struct {
	mu      sync.Mutex
	backend backend
}

// NewCompiler initializes a compiler instance
func NewCompiler() (*Compiler, error) {
	b, err := newBackend()
	if err != nil {
		return nil, err
	}

	return &Compiler{backend: b}, nil
}

// Compile compiles code with dxc command line args, for example
// "-E", "main", "-T", "cs_6_0". A shader that fails to compile is not an
// error here; check Result.Err.
func (c *Compiler) Compile(code []byte, args ...string) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.backend == nil {
		return nil, ErrClosed
	}

	object, diagnostics, failed := c.backend.compile(code, args)
	if failed {
		return &Result{err: &CompileError{Message: diagnostics}}, nil
	}

	return &Result{object: object}, nil
}

// Close releases the compiler. It is safe to call more than once.
func (c *Compiler) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.backend != nil {
		c.backend.close()
		c.backend = nil
	}

	return nil
}

// Result is the outcome of one compilation.
type Result struct {
	object []byte
	err    *CompileError
}

// Err returns the compile diagnostics, or nil when compilation succeeded
func (r *Result) Err() error {
	if r.err == nil {
		return nil
	}

	return r.err
}

// Object returns the compiled DXIL container, or nil when compilation failed
func (r *Result) Object() []byte {
	return r.object
}

// CompileError carries the compiler's diagnostics for a failed compilation.
type CompileError struct {
	Message string
}

func (e *CompileError) Error() string {
	return "shader compilation failed: " + e.Message
}
