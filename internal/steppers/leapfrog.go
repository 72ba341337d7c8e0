package steppers

// Leapfrog is a kick-drift-kick scheme: stage1 half-kicks the velocity and
// drifts the position, accelerations are recomputed, stage2 completes the
// kick. Symplectic, so energy drift stays bounded.
type Leapfrog struct{}

func NewLeapfrog() *Leapfrog { return &Leapfrog{} }

func (l *Leapfrog) Variant() string { return "LeapfrogStep" }

func (l *Leapfrog) Stages() []Stage {
	return []Stage{
		{Name: "stage1", Body: `
d_u[d_idx] += 0.5 * dt * d_au[d_idx]
d_v[d_idx] += 0.5 * dt * d_av[d_idx]
d_x[d_idx] += dt * d_u[d_idx]
d_y[d_idx] += dt * d_v[d_idx]
`},
		{Name: "stage2", Body: `
d_u[d_idx] += 0.5 * dt * d_au[d_idx]
d_v[d_idx] += 0.5 * dt * d_av[d_idx]
`},
	}
}
