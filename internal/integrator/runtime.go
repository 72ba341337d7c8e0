package integrator

import (
	"errors"

	"github.com/san-kum/sphstep/internal/device"
)

// SpatialIndex is the external neighbor-search structure, refreshed whenever
// accelerations are recomputed.
type SpatialIndex interface {
	Update() error
}

// DomainManager redistributes particles across domains before the spatial
// index refresh. Optional.
type DomainManager interface {
	Update() error
}

// AccelEvaluator computes forces/accelerations for the current particle
// configuration.
type AccelEvaluator interface {
	Compute(t, dt float64) error
}

// PostStageFunc observes stage completion with the stage-local time.
type PostStageFunc func(t, dt float64, stage int)

var (
	errNoEvaluator = errors.New("integrator: no acceleration evaluator configured")
	errNoProgram   = errors.New("integrator: no timestep program set")
)

// Runtime executes a captured timestep program against the call table. A
// single control thread drives it; kernels are enqueued in the same
// deterministic per-stage, per-destination order every step.
type Runtime struct {
	calls     *CallTable
	queue     device.Queue
	precision device.Precision
	program   *Program

	spatial   SpatialIndex
	domain    DomainManager
	accel     AccelEvaluator
	postStage PostStageFunc

	t     float64
	origT float64
	dt    float64
}

func NewRuntime(calls *CallTable, accel AccelEvaluator, queue device.Queue, p device.Precision) *Runtime {
	return &Runtime{
		calls:     calls,
		accel:     accel,
		queue:     queue,
		precision: p,
	}
}

func (r *Runtime) SetProgram(p *Program)             { r.program = p }
func (r *Runtime) SetSpatialIndex(s SpatialIndex)    { r.spatial = s }
func (r *Runtime) SetDomainManager(d DomainManager)  { r.domain = d }
func (r *Runtime) SetPostStageCallback(fn PostStageFunc) { r.postStage = fn }

// Time returns the runtime's current stage-local time.
func (r *Runtime) Time() float64 { return r.t }

// Step advances the simulation by one timestep: it executes the captured
// program in order. A failure aborts the step and leaves the simulation in
// an undefined state; there is no partial recovery.
func (r *Runtime) Step(t, dt float64) error {
	if r.program == nil {
		return errNoProgram
	}
	r.origT = t
	r.t = t
	r.dt = dt
	for _, op := range r.program.Ops() {
		switch op.Kind {
		case OpRunStage:
			if err := r.runStage(op.Stage); err != nil {
				return err
			}
		case OpRecompute:
			if err := r.ComputeAccelerations(); err != nil {
				return err
			}
		case OpPostStage:
			r.doPostStage(op.DtFrac*r.dt, op.StageIndex)
		}
	}
	return nil
}

// runStage launches one stage's kernels, destination by destination in name
// order. Per destination: host hook, fresh particle count, fresh buffer
// resolution, launch. Counts and buffers are never cached across stages.
func (r *Runtime) runStage(name string) error {
	t := r.precision.Cast(r.t)
	dt := r.precision.Cast(r.dt)
	for _, call := range r.calls.Stages(name) {
		// The count and buffer reads below may depend on a prior stage's
		// device work; synchronize first.
		if err := r.queue.Finish(); err != nil {
			return &LaunchError{Stage: name, Dest: call.Dest.Name(), Err: err}
		}
		if hook := r.calls.hook(name, call.Dest.Name()); hook != nil {
			hook(call.Dest, t, dt)
		}
		n := call.Dest.Count(true)
		args := make([]any, 0, len(call.Fields)+2)
		for _, field := range call.Fields {
			buf, err := call.Dest.Buffer(field)
			if err != nil {
				return &LaunchError{Stage: name, Dest: call.Dest.Name(), Err: err}
			}
			args = append(args, buf)
		}
		args = append(args, t, dt)
		if err := call.Kernel.Launch(r.queue, n, args...); err != nil {
			return &LaunchError{Stage: name, Dest: call.Dest.Name(), Err: err}
		}
	}
	return nil
}

// ComputeAccelerations refreshes global neighbor information and re-evaluates
// accelerations. Exposed standalone for the initial force evaluation before
// the first step; during a step it runs only at explicit program points.
func (r *Runtime) ComputeAccelerations() error {
	if r.accel == nil {
		return errNoEvaluator
	}
	// Positions read below depend on any in-flight stage kernels.
	if err := r.queue.Finish(); err != nil {
		return err
	}
	if r.domain != nil {
		if err := r.domain.Update(); err != nil {
			return err
		}
	}
	if r.spatial != nil {
		if err := r.spatial.Update(); err != nil {
			return err
		}
	}
	return r.accel.Compute(r.t, r.dt)
}

// doPostStage advances stage-local time and reports stage completion. Called
// only at explicit PostStageMark points: programs may batch several stage
// runs before reporting.
func (r *Runtime) doPostStage(stageDt float64, stage int) {
	r.t = r.origT + stageDt
	if r.postStage != nil {
		r.postStage(r.t, r.dt, stage)
	}
}
