// Package device abstracts the compute device that executes generated
// particle kernels.
//
// A [Backend] compiles generated kernel source into launchable kernels and
// allocates field buffers:
//
//	backend := device.Auto(device.Double)
//	prog, err := backend.Compile(mod)
//	k, err := prog.Kernel("stage1_fluid")
//	err = k.Launch(backend.Queue(), n, args...)
//
// Two backends exist: the host backend (pure Go, always available) and an
// OpenCL backend compiled in with the "opencl" build tag. Without the tag the
// OpenCL backend reports unavailable and Auto falls back to the host.
package device
