// Package integrator connects generated kernels to destination arrays and
// drives their staged execution, one timestep at a time.
package integrator

import (
	"fmt"

	"github.com/san-kum/sphstep/internal/codegen"
	"github.com/san-kum/sphstep/internal/device"
	"github.com/san-kum/sphstep/internal/particles"
	"github.com/san-kum/sphstep/internal/steppers"
)

// Call connects one compiled kernel to its destination. Fields are the late
// accessors: they resolve against the destination's current buffer set at
// every launch, because buffers may be reallocated between stages.
type Call struct {
	Kernel device.Kernel
	Dest   *particles.Array
	Fields []string
}

// CallTable holds the per-stage call descriptors and host pre-stage hooks.
// Built once after compilation; only argument resolution happens per step.
type CallTable struct {
	stages map[string][]*Call                    // calls in destination-name order
	hooks  map[string]map[string]steppers.HookFunc // stage → destination → hook
}

// HasStage reports whether any destination defines the stage.
func (ct *CallTable) HasStage(name string) bool {
	return len(ct.stages[name]) > 0
}

// Stages returns the calls for a stage in destination-name order.
func (ct *CallTable) Stages(name string) []*Call {
	return ct.stages[name]
}

func (ct *CallTable) hook(stage, dest string) steppers.HookFunc {
	return ct.hooks[stage][dest]
}

// Build constructs the call and hook tables from a compiled module. It runs
// exactly once per compilation; every failure is fatal.
func Build(mod *codegen.Module, prog device.Program, reg *particles.Registry, dests map[string]steppers.Stepper) (*CallTable, error) {
	ct := &CallTable{
		stages: make(map[string][]*Call),
		hooks:  make(map[string]map[string]steppers.HookFunc),
	}
	// Module entries are destination-major and destinations are sorted, so
	// per-stage call order is deterministic by construction.
	for _, entry := range mod.Entries() {
		dest, err := reg.Resolve(entry.Dest)
		if err != nil {
			return nil, &BindingError{Kernel: entry.Kernel, Dest: entry.Dest, Detail: err.Error()}
		}
		kernel, err := prog.Kernel(entry.Kernel)
		if err != nil {
			return nil, &BindingError{Kernel: entry.Kernel, Dest: entry.Dest, Detail: err.Error()}
		}
		want := len(entry.Fields) + 2 // buffers, then t, dt
		if kernel.ArgCount() != want {
			return nil, &BindingError{
				Kernel: entry.Kernel,
				Dest:   entry.Dest,
				Detail: fmt.Sprintf("kernel takes %d args, call list has %d", kernel.ArgCount(), want),
			}
		}
		ct.stages[entry.Stage] = append(ct.stages[entry.Stage], &Call{
			Kernel: kernel,
			Dest:   dest,
			Fields: entry.Fields,
		})
	}

	for destName, stepper := range dests {
		hooker, ok := stepper.(steppers.Hooker)
		if !ok {
			continue
		}
		for _, stage := range stepper.Stages() {
			fn := hooker.StageHook(stage.Name)
			if fn == nil {
				continue
			}
			if ct.hooks[stage.Name] == nil {
				ct.hooks[stage.Name] = make(map[string]steppers.HookFunc)
			}
			ct.hooks[stage.Name][destName] = fn
		}
	}
	return ct, nil
}
