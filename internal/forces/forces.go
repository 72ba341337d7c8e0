// Package forces evaluates particle accelerations between timestep stages.
//
// Gravity is the built-in acceleration evaluator: pairwise softened
// attraction over every registered destination, brute force by default, with
// an optional interaction cutoff served by the uniform-bin Grid. The grid
// doubles as the runtime's spatial index so both refresh together.
package forces

import (
	"fmt"
	"math"

	"github.com/san-kum/sphstep/internal/device"
	"github.com/san-kum/sphstep/internal/particles"
)

type body struct {
	x, y, m float64
	dest    string
	idx     int
}

// Gravity computes softened pairwise gravitational accelerations. It reads
// the x, y, m fields of every destination and overwrites au, av. Positions
// are re-read from the buffers on every Compute call; nothing is cached
// across calls.
type Gravity struct {
	reg   *particles.Registry
	dests []string

	G         float64
	Softening float64

	cutoff float64
	grid   *Grid
}

func NewGravity(reg *particles.Registry, dests []string, g, softening float64) *Gravity {
	return &Gravity{
		reg:       reg,
		dests:     dests,
		G:         g,
		Softening: softening,
	}
}

// SetCutoff limits interactions to pairs within radius, found through the
// grid. A radius <= 0 restores the brute-force path.
func (gr *Gravity) SetCutoff(radius float64, grid *Grid) {
	gr.cutoff = radius
	gr.grid = grid
}

// Compute re-evaluates accelerations for the current particle positions.
// Sources include ghost particles; targets are real particles only.
func (gr *Gravity) Compute(t, dt float64) error {
	sources, err := gr.gather()
	if err != nil {
		return err
	}
	for _, name := range gr.dests {
		dest, err := gr.reg.Resolve(name)
		if err != nil {
			return err
		}
		if err := gr.accumulate(dest, sources); err != nil {
			return err
		}
	}
	return nil
}

// gather snapshots source positions and masses. The snapshot lives only for
// the duration of one Compute call.
func (gr *Gravity) gather() ([]body, error) {
	var sources []body
	for _, name := range gr.dests {
		dest, err := gr.reg.Resolve(name)
		if err != nil {
			return nil, err
		}
		x, y, m, err := positionBuffers(dest)
		if err != nil {
			return nil, err
		}
		n := dest.Count(false)
		for i := 0; i < n; i++ {
			sources = append(sources, body{
				x: x.Get(i), y: y.Get(i), m: m.Get(i),
				dest: name, idx: i,
			})
		}
	}
	return sources, nil
}

func (gr *Gravity) accumulate(dest *particles.Array, sources []body) error {
	x, y, _, err := positionBuffers(dest)
	if err != nil {
		return err
	}
	au, err := dest.Buffer("au")
	if err != nil {
		return err
	}
	av, err := dest.Buffer("av")
	if err != nil {
		return err
	}

	eps2 := gr.Softening * gr.Softening
	n := dest.Count(true)
	for i := 0; i < n; i++ {
		xi, yi := x.Get(i), y.Get(i)
		var ax, ay float64

		add := func(src body) {
			if src.dest == dest.Name() && src.idx == i {
				return
			}
			rx := src.x - xi
			ry := src.y - yi
			r2 := rx*rx + ry*ry + eps2
			rInv := 1.0 / math.Sqrt(r2)
			f := gr.G * src.m * rInv * rInv * rInv
			ax += f * rx
			ay += f * ry
		}

		if gr.cutoff > 0 && gr.grid != nil {
			gr.grid.forEachNear(xi, yi, gr.cutoff, sources, add)
		} else {
			for _, src := range sources {
				add(src)
			}
		}
		au.Set(i, ax)
		av.Set(i, ay)
	}
	return nil
}

func positionBuffers(dest *particles.Array) (x, y, m device.Buffer, err error) {
	xb, err := dest.Buffer("x")
	if err != nil {
		return nil, nil, nil, fmt.Errorf("forces: %s: %w", dest.Name(), err)
	}
	yb, err := dest.Buffer("y")
	if err != nil {
		return nil, nil, nil, fmt.Errorf("forces: %s: %w", dest.Name(), err)
	}
	mb, err := dest.Buffer("m")
	if err != nil {
		return nil, nil, nil, fmt.Errorf("forces: %s: %w", dest.Name(), err)
	}
	return xb, yb, mb, nil
}

// KineticEnergy sums 0.5*m*(u^2 + v^2) over the real particles of the named
// destinations. Used by the CLI and live view as a cheap integration probe.
func KineticEnergy(reg *particles.Registry, dests []string) (float64, error) {
	var total float64
	for _, name := range dests {
		dest, err := reg.Resolve(name)
		if err != nil {
			return 0, err
		}
		u, err := dest.Buffer("u")
		if err != nil {
			return 0, err
		}
		v, err := dest.Buffer("v")
		if err != nil {
			return 0, err
		}
		m, err := dest.Buffer("m")
		if err != nil {
			return 0, err
		}
		n := dest.Count(true)
		for i := 0; i < n; i++ {
			ui, vi := u.Get(i), v.Get(i)
			total += 0.5 * m.Get(i) * (ui*ui + vi*vi)
		}
	}
	return total, nil
}
