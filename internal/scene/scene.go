// Package scene assembles a runnable simulation from a config: particle
// arrays, steppers, translated kernels, forces, and the staged runtime.
package scene

import (
	"fmt"
	"math"

	"github.com/san-kum/sphstep/internal/codegen"
	"github.com/san-kum/sphstep/internal/config"
	"github.com/san-kum/sphstep/internal/device"
	"github.com/san-kum/sphstep/internal/forces"
	"github.com/san-kum/sphstep/internal/integrator"
	"github.com/san-kum/sphstep/internal/particles"
	"github.com/san-kum/sphstep/internal/steppers"
)

// baseFields are carried by every destination. Steppers with shadow state
// add their own on top.
var baseFields = []string{"x", "y", "u", "v", "au", "av", "m"}

// Scene is a fully wired simulation, ready to step.
type Scene struct {
	Registry *particles.Registry
	Backend  device.Backend
	Module   *codegen.Module
	Runtime  *integrator.Runtime
	Dests    []string

	Dt    float64
	Steps int
}

// Build wires a scene from a config. The returned scene owns the backend;
// call Close when done.
func Build(cfg *config.Config) (*Scene, error) {
	precision, err := cfg.GetPrecision()
	if err != nil {
		return nil, err
	}
	backend, err := device.Pick(cfg.Backend, precision)
	if err != nil {
		return nil, err
	}

	dtype := device.Float64
	if precision == device.Single {
		dtype = device.Float32
	}

	reg := particles.NewRegistry()
	dests := make(map[string]steppers.Stepper)
	destNames := make([]string, 0, len(cfg.Arrays))
	for _, ac := range cfg.Arrays {
		stepper, err := steppers.Get(ac.Stepper)
		if err != nil {
			backend.Cleanup()
			return nil, err
		}
		arr, err := buildArray(backend, dtype, ac)
		if err != nil {
			backend.Cleanup()
			return nil, err
		}
		if err := reg.Add(arr); err != nil {
			backend.Cleanup()
			return nil, err
		}
		dests[ac.Name] = stepper
		destNames = append(destNames, ac.Name)
	}

	tr := codegen.NewTranslator(reg, precision)
	mod, err := tr.Translate(dests)
	if err != nil {
		backend.Cleanup()
		return nil, err
	}
	prog, err := backend.Compile(mod)
	if err != nil {
		backend.Cleanup()
		return nil, err
	}
	calls, err := integrator.Build(mod, prog, reg, dests)
	if err != nil {
		backend.Cleanup()
		return nil, err
	}

	gravity := forces.NewGravity(reg, destNames, cfg.Forces.G, cfg.Forces.Softening)
	var grid *forces.Grid
	if cfg.Forces.Cutoff > 0 {
		grid = forces.NewGrid(reg, destNames, cfg.Forces.Cutoff)
		gravity.SetCutoff(cfg.Forces.Cutoff, grid)
	}

	rt := integrator.NewRuntime(calls, gravity, backend.Queue(), precision)
	if grid != nil {
		rt.SetSpatialIndex(grid)
	}

	ops, err := cfg.GetProgram()
	if err != nil {
		backend.Cleanup()
		return nil, err
	}
	if ops == nil {
		ops = DefaultProgram(dests)
	}
	program, err := integrator.Capture(ops, calls)
	if err != nil {
		backend.Cleanup()
		return nil, err
	}
	rt.SetProgram(program)

	return &Scene{
		Registry: reg,
		Backend:  backend,
		Module:   mod,
		Runtime:  rt,
		Dests:    destNames,
		Dt:       cfg.Dt,
		Steps:    cfg.Steps,
	}, nil
}

func (s *Scene) Close() { s.Backend.Cleanup() }

// DefaultProgram derives the op sequence from the steppers' stage lists:
// an optional initialize pass, then each numbered stage with accelerations
// recomputed between stages and a post-stage mark after each.
func DefaultProgram(dests map[string]steppers.Stepper) []integrator.Op {
	hasInit := false
	maxStages := 0
	for _, s := range dests {
		n := 0
		for _, stage := range s.Stages() {
			if stage.Name == "initialize" {
				hasInit = true
				continue
			}
			n++
		}
		if n > maxStages {
			maxStages = n
		}
	}

	var ops []integrator.Op
	if hasInit {
		ops = append(ops, integrator.RunStage("initialize"))
	}
	for i := 1; i <= maxStages; i++ {
		if i > 1 {
			ops = append(ops, integrator.Recompute())
		}
		ops = append(ops, integrator.RunStage(fmt.Sprintf("stage%d", i)))
		frac := float64(i) / float64(maxStages)
		ops = append(ops, integrator.PostStageMark(i, frac))
	}
	return ops
}

func buildArray(backend device.Backend, dtype device.DType, ac config.ArrayConfig) (*particles.Array, error) {
	fields := baseFields
	if ac.Stepper == "rk2" {
		fields = append(append([]string{}, baseFields...), "x0", "y0", "u0", "v0")
	}

	arr := particles.NewArray(ac.Name, ac.Count)
	for _, field := range fields {
		buf, err := backend.NewBuffer(dtype, ac.Count)
		if err != nil {
			return nil, err
		}
		arr.AddField(field, buf)
	}
	if err := initParticles(arr, ac); err != nil {
		return nil, err
	}
	return arr, nil
}

// initParticles lays out positions and velocities. circle places particles
// on a ring with optional tangential spin; lattice fills a centered square
// grid at rest.
func initParticles(arr *particles.Array, ac config.ArrayConfig) error {
	x, err := arr.Buffer("x")
	if err != nil {
		return err
	}
	y, err := arr.Buffer("y")
	if err != nil {
		return err
	}
	u, err := arr.Buffer("u")
	if err != nil {
		return err
	}
	v, err := arr.Buffer("v")
	if err != nil {
		return err
	}
	m, err := arr.Buffer("m")
	if err != nil {
		return err
	}

	radius := ac.Radius
	if radius <= 0 {
		radius = 1.0
	}
	mass := ac.Mass
	if mass <= 0 {
		mass = 1.0
	}

	switch ac.Layout {
	case "lattice":
		side := int(math.Ceil(math.Sqrt(float64(ac.Count))))
		step := 2 * radius / float64(side)
		for i := 0; i < ac.Count; i++ {
			row, col := i/side, i%side
			x.Set(i, -radius+step*(float64(col)+0.5))
			y.Set(i, -radius+step*(float64(row)+0.5))
			u.Set(i, 0)
			v.Set(i, 0)
			m.Set(i, mass)
		}
	case "circle", "":
		for i := 0; i < ac.Count; i++ {
			theta := 2 * math.Pi * float64(i) / float64(ac.Count)
			x.Set(i, radius*math.Cos(theta))
			y.Set(i, radius*math.Sin(theta))
			u.Set(i, -ac.Spin*math.Sin(theta))
			v.Set(i, ac.Spin*math.Cos(theta))
			m.Set(i, mass)
		}
	default:
		return fmt.Errorf("scene: unknown layout %q for %s", ac.Layout, ac.Name)
	}
	return nil
}
