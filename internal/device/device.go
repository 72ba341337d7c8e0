package device

import "errors"

var (
	// ErrUnknownKernel indicates a kernel name missing from a compiled program.
	ErrUnknownKernel = errors.New("device: unknown kernel")

	// ErrBackendUnavailable indicates the requested backend cannot run here.
	ErrBackendUnavailable = errors.New("device: backend not available")

	// ErrArgCount indicates a launch with the wrong number of arguments.
	ErrArgCount = errors.New("device: kernel argument count mismatch")
)

// Precision is the scalar precision of a runtime context. It is fixed for
// the lifetime of the context; all scalar kernel arguments pass through it.
type Precision int

const (
	Single Precision = iota
	Double
)

// CType returns the OpenCL C scalar type for the precision.
func (p Precision) CType() string {
	if p == Single {
		return "float"
	}
	return "double"
}

// Cast rounds v to the precision. Double is the identity.
func (p Precision) Cast(v float64) float64 {
	if p == Single {
		return float64(float32(v))
	}
	return v
}

func (p Precision) String() string {
	if p == Single {
		return "single"
	}
	return "double"
}

// DType is the element type of a device buffer, fixed at allocation time.
type DType int

const (
	Float32 DType = iota
	Float64
)

func (d DType) CType() string {
	if d == Float32 {
		return "float"
	}
	return "double"
}

func (d DType) Size() int {
	if d == Float32 {
		return 4
	}
	return 8
}

// Buffer is a device-resident field array. Get/Set may cross a host/device
// synchronization boundary on non-host backends.
type Buffer interface {
	Len() int
	DType() DType
	Get(i int) float64
	Set(i int, v float64)
}

// Queue orders kernel launches. Launches enqueued on the same queue execute
// in program order.
type Queue interface {
	Finish() error
}

// Kernel is a compiled, launchable device kernel.
type Kernel interface {
	Name() string
	ArgCount() int
	// Launch enqueues the kernel over n work items. args are Buffers
	// followed by float64 scalars, in the kernel's signature order.
	Launch(q Queue, n int, args ...any) error
}

// Program holds the kernels of one compiled source module.
type Program interface {
	Kernel(name string) (Kernel, error)
}

// HostKernelFunc executes a kernel body on the host, one call per launch.
type HostKernelFunc func(n int, args []any) error

// Source is a compilable kernel module: generated device source plus host
// fallbacks so backends without a device compiler can still execute it.
type Source interface {
	Text() string
	EntryPoints() []string
	HostKernel(name string) (fn HostKernelFunc, argc int, ok bool)
}

// Backend compiles kernel modules and owns buffers and the command queue.
type Backend interface {
	Name() string
	Available() bool
	Compile(src Source) (Program, error)
	NewBuffer(dt DType, n int) (Buffer, error)
	Queue() Queue
	Cleanup()
}

// Auto selects the best available backend: OpenCL when compiled in and a
// device is present, otherwise the host backend.
func Auto(p Precision) Backend {
	ocl := NewOpenCL(p)
	if ocl.Available() {
		return ocl
	}
	return NewHost()
}

// Pick returns the named backend, or an error if it cannot run here.
func Pick(name string, p Precision) (Backend, error) {
	switch name {
	case "", "auto":
		return Auto(p), nil
	case "host":
		return NewHost(), nil
	case "opencl":
		ocl := NewOpenCL(p)
		if !ocl.Available() {
			return nil, ErrBackendUnavailable
		}
		return ocl, nil
	}
	return nil, errors.New("device: unknown backend: " + name)
}
