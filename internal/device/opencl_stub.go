//go:build !opencl

package device

// OpenCL is unavailable without the opencl build tag.
type OpenCL struct{}

func NewOpenCL(p Precision) *OpenCL { return &OpenCL{} }

func (b *OpenCL) Name() string    { return "opencl (not available)" }
func (b *OpenCL) Available() bool { return false }
func (b *OpenCL) Cleanup()        {}
func (b *OpenCL) Queue() Queue    { return nil }

func (b *OpenCL) Compile(src Source) (Program, error) {
	return nil, ErrBackendUnavailable
}

func (b *OpenCL) NewBuffer(dt DType, n int) (Buffer, error) {
	return nil, ErrBackendUnavailable
}
