//go:build opencl

package device

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/jgillich/go-opencl/cl"
)

// OpenCL compiles generated source with the device driver and launches
// kernels on a real command queue.
type OpenCL struct {
	precision Precision
	device    *cl.Device
	context   *cl.Context
	queue     *cl.CommandQueue
	programs  []*cl.Program
	err       error
}

func NewOpenCL(p Precision) *OpenCL {
	b := &OpenCL{precision: p}
	b.err = b.init()
	return b
}

func (b *OpenCL) init() error {
	platforms, err := cl.GetPlatforms()
	if err != nil {
		return fmt.Errorf("querying OpenCL platforms: %w", err)
	}
	for _, p := range platforms {
		devices, derr := p.GetDevices(cl.DeviceTypeGPU)
		if derr != nil && derr != cl.ErrDeviceNotFound {
			continue
		}
		if len(devices) > 0 {
			b.device = devices[0]
			break
		}
	}
	if b.device == nil {
		for _, p := range platforms {
			devices, derr := p.GetDevices(cl.DeviceTypeCPU)
			if derr != nil && derr != cl.ErrDeviceNotFound {
				continue
			}
			if len(devices) > 0 {
				b.device = devices[0]
				break
			}
		}
	}
	if b.device == nil {
		return errors.New("no OpenCL devices found")
	}
	context, err := cl.CreateContext([]*cl.Device{b.device})
	if err != nil {
		return fmt.Errorf("creating OpenCL context: %w", err)
	}
	queue, err := context.CreateCommandQueue(b.device, 0)
	if err != nil {
		context.Release()
		return fmt.Errorf("creating OpenCL command queue: %w", err)
	}
	b.context = context
	b.queue = queue
	return nil
}

func (b *OpenCL) Name() string {
	if b.device != nil {
		return "opencl (" + b.device.Name() + ")"
	}
	return "opencl (not available)"
}

func (b *OpenCL) Available() bool { return b.err == nil }

func (b *OpenCL) Cleanup() {
	for _, p := range b.programs {
		p.Release()
	}
	if b.queue != nil {
		b.queue.Release()
	}
	if b.context != nil {
		b.context.Release()
	}
}

func (b *OpenCL) Queue() Queue { return &clQueue{queue: b.queue} }

func (b *OpenCL) Compile(src Source) (Program, error) {
	if b.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, b.err)
	}
	program, err := b.context.CreateProgramWithSource([]string{src.Text()})
	if err != nil {
		return nil, fmt.Errorf("creating OpenCL program: %w", err)
	}
	if err := program.BuildProgram([]*cl.Device{b.device}, ""); err != nil {
		program.Release()
		if buildErr, ok := err.(cl.BuildError); ok {
			return nil, fmt.Errorf("building OpenCL program: %s", string(buildErr))
		}
		return nil, fmt.Errorf("building OpenCL program: %w", err)
	}
	b.programs = append(b.programs, program)
	prog := &clProgram{kernels: make(map[string]*clKernel)}
	for _, name := range src.EntryPoints() {
		k, err := program.CreateKernel(name)
		if err != nil {
			return nil, fmt.Errorf("creating kernel %s: %w", name, err)
		}
		// The arity comes from the generated signature; the host fallback
		// carries the same count.
		_, argc, ok := src.HostKernel(name)
		if !ok {
			return nil, fmt.Errorf("device: source has no signature for %q", name)
		}
		prog.kernels[name] = &clKernel{name: name, argc: argc, kernel: k, precision: b.precision}
	}
	return prog, nil
}

func (b *OpenCL) NewBuffer(dt DType, n int) (Buffer, error) {
	if b.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, b.err)
	}
	mem, err := b.context.CreateEmptyBuffer(cl.MemReadWrite, n*dt.Size())
	if err != nil {
		return nil, fmt.Errorf("allocating device buffer: %w", err)
	}
	return &clBuffer{dtype: dt, n: n, mem: mem, queue: b.queue}, nil
}

type clQueue struct {
	queue *cl.CommandQueue
}

func (q *clQueue) Finish() error { return q.queue.Finish() }

type clProgram struct {
	kernels map[string]*clKernel
}

func (p *clProgram) Kernel(name string) (Kernel, error) {
	k, ok := p.kernels[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKernel, name)
	}
	return k, nil
}

type clKernel struct {
	name      string
	argc      int
	kernel    *cl.Kernel
	precision Precision
}

func (k *clKernel) Name() string  { return k.name }
func (k *clKernel) ArgCount() int { return k.argc }

func (k *clKernel) Launch(q Queue, n int, args ...any) error {
	if len(args) != k.argc {
		return fmt.Errorf("%w: %s wants %d args, got %d", ErrArgCount, k.name, k.argc, len(args))
	}
	for i, arg := range args {
		switch a := arg.(type) {
		case *clBuffer:
			if err := k.kernel.SetArgBuffer(i, a.mem); err != nil {
				return fmt.Errorf("binding arg %d of %s: %w", i, k.name, err)
			}
		case float64:
			if k.precision == Single {
				f := float32(a)
				if err := k.kernel.SetArgFloat32(i, f); err != nil {
					return fmt.Errorf("binding arg %d of %s: %w", i, k.name, err)
				}
			} else {
				v := a
				if err := k.kernel.SetArgUnsafe(i, int(unsafe.Sizeof(v)), unsafe.Pointer(&v)); err != nil {
					return fmt.Errorf("binding arg %d of %s: %w", i, k.name, err)
				}
			}
		default:
			return fmt.Errorf("device: unsupported argument type %T for %s", arg, k.name)
		}
	}
	cq := q.(*clQueue)
	if _, err := cq.queue.EnqueueNDRangeKernel(k.kernel, nil, []int{n}, nil, nil); err != nil {
		return fmt.Errorf("dispatching %s: %w", k.name, err)
	}
	return nil
}

// clBuffer mirrors no host copy; Get/Set go through the queue one element at
// a time. Bulk transfers belong to the array manager, not this core.
type clBuffer struct {
	dtype DType
	n     int
	mem   *cl.MemObject
	queue *cl.CommandQueue
}

func (b *clBuffer) Len() int     { return b.n }
func (b *clBuffer) DType() DType { return b.dtype }

func (b *clBuffer) Get(i int) float64 {
	if b.dtype == Float32 {
		var v float32
		b.queue.EnqueueReadBuffer(b.mem, true, i*4, 4, unsafe.Pointer(&v), nil)
		return float64(v)
	}
	var v float64
	b.queue.EnqueueReadBuffer(b.mem, true, i*8, 8, unsafe.Pointer(&v), nil)
	return v
}

func (b *clBuffer) Set(i int, v float64) {
	if b.dtype == Float32 {
		f := float32(v)
		b.queue.EnqueueWriteBuffer(b.mem, true, i*4, 4, unsafe.Pointer(&f), nil)
		return
	}
	b.queue.EnqueueWriteBuffer(b.mem, true, i*8, 8, unsafe.Pointer(&v), nil)
}
