package device

import "fmt"

// HostBuffer is an in-process field buffer. Float32 buffers round every
// store through float32 so host results match single-precision devices.
type HostBuffer struct {
	dtype DType
	f32   []float32
	f64   []float64
}

func NewHostBuffer(dt DType, n int) *HostBuffer {
	b := &HostBuffer{dtype: dt}
	if dt == Float32 {
		b.f32 = make([]float32, n)
	} else {
		b.f64 = make([]float64, n)
	}
	return b
}

func (b *HostBuffer) Len() int {
	if b.dtype == Float32 {
		return len(b.f32)
	}
	return len(b.f64)
}

func (b *HostBuffer) DType() DType { return b.dtype }

func (b *HostBuffer) Get(i int) float64 {
	if b.dtype == Float32 {
		return float64(b.f32[i])
	}
	return b.f64[i]
}

func (b *HostBuffer) Set(i int, v float64) {
	if b.dtype == Float32 {
		b.f32[i] = float32(v)
		return
	}
	b.f64[i] = v
}

// Host executes kernel modules in-process using their host fallbacks.
type Host struct {
	queue hostQueue
}

func NewHost() *Host { return &Host{} }

func (h *Host) Name() string    { return "host" }
func (h *Host) Available() bool { return true }
func (h *Host) Cleanup()        {}
func (h *Host) Queue() Queue    { return h.queue }

func (h *Host) NewBuffer(dt DType, n int) (Buffer, error) {
	return NewHostBuffer(dt, n), nil
}

func (h *Host) Compile(src Source) (Program, error) {
	prog := &hostProgram{kernels: make(map[string]*hostKernel)}
	for _, name := range src.EntryPoints() {
		fn, argc, ok := src.HostKernel(name)
		if !ok {
			return nil, fmt.Errorf("device: source has no host kernel for %q", name)
		}
		prog.kernels[name] = &hostKernel{name: name, argc: argc, fn: fn}
	}
	return prog, nil
}

type hostProgram struct {
	kernels map[string]*hostKernel
}

func (p *hostProgram) Kernel(name string) (Kernel, error) {
	k, ok := p.kernels[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKernel, name)
	}
	return k, nil
}

type hostKernel struct {
	name string
	argc int
	fn   HostKernelFunc
}

func (k *hostKernel) Name() string  { return k.name }
func (k *hostKernel) ArgCount() int { return k.argc }

func (k *hostKernel) Launch(q Queue, n int, args ...any) error {
	if len(args) != k.argc {
		return fmt.Errorf("%w: %s wants %d args, got %d", ErrArgCount, k.name, k.argc, len(args))
	}
	return k.fn(n, args)
}

// hostQueue is synchronous; launches complete before Launch returns.
type hostQueue struct{}

func (hostQueue) Finish() error { return nil }
