package forces

import (
	"math"

	"github.com/san-kum/sphstep/internal/particles"
)

type cellKey struct{ cx, cy int }

// Grid is a uniform-bin spatial index over all destination positions. The
// runtime refreshes it at every acceleration recompute point, so queries
// between recomputes see a consistent snapshot.
type Grid struct {
	reg   *particles.Registry
	dests []string
	cell  float64
	bins  map[cellKey][]body
}

func NewGrid(reg *particles.Registry, dests []string, cellSize float64) *Grid {
	return &Grid{
		reg:   reg,
		dests: dests,
		cell:  cellSize,
		bins:  make(map[cellKey][]body),
	}
}

// Update rebuilds the bins from the current buffer contents. Ghost particles
// are binned too; they act as sources but never as targets.
func (g *Grid) Update() error {
	g.bins = make(map[cellKey][]body)
	for _, name := range g.dests {
		dest, err := g.reg.Resolve(name)
		if err != nil {
			return err
		}
		x, y, m, err := positionBuffers(dest)
		if err != nil {
			return err
		}
		n := dest.Count(false)
		for i := 0; i < n; i++ {
			b := body{x: x.Get(i), y: y.Get(i), m: m.Get(i), dest: name, idx: i}
			key := g.key(b.x, b.y)
			g.bins[key] = append(g.bins[key], b)
		}
	}
	return nil
}

func (g *Grid) key(x, y float64) cellKey {
	return cellKey{
		cx: int(math.Floor(x / g.cell)),
		cy: int(math.Floor(y / g.cell)),
	}
}

// forEachNear visits every binned body within radius of (x, y). The sources
// argument is unused here but keeps the call shape uniform with the
// brute-force path in Gravity.
func (g *Grid) forEachNear(x, y, radius float64, _ []body, fn func(body)) {
	r2 := radius * radius
	span := int(math.Ceil(radius / g.cell))
	center := g.key(x, y)
	for cx := center.cx - span; cx <= center.cx+span; cx++ {
		for cy := center.cy - span; cy <= center.cy+span; cy++ {
			for _, b := range g.bins[cellKey{cx, cy}] {
				dx := b.x - x
				dy := b.y - y
				if dx*dx+dy*dy <= r2 {
					fn(b)
				}
			}
		}
	}
}
