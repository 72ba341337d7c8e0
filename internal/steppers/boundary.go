package steppers

// Boundary pins wall particles in place: velocities are zeroed each step so
// force evaluation sees them as sources but they never move. Boundary
// destinations only define stage1; multi-stage programs skip them for the
// remaining stages.
type Boundary struct{}

func NewBoundary() *Boundary { return &Boundary{} }

func (b *Boundary) Variant() string { return "BoundaryStep" }

func (b *Boundary) Stages() []Stage {
	return []Stage{
		{Name: "stage1", Body: `
d_u[d_idx] = 0.0
d_v[d_idx] = 0.0
`},
	}
}
