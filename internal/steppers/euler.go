package steppers

// Euler advances positions and velocities in a single forward step.
type Euler struct{}

func NewEuler() *Euler { return &Euler{} }

func (e *Euler) Variant() string { return "EulerStep" }

func (e *Euler) Stages() []Stage {
	return []Stage{
		{Name: "stage1", Body: `
d_u[d_idx] += dt * d_au[d_idx]
d_v[d_idx] += dt * d_av[d_idx]
d_x[d_idx] += dt * d_u[d_idx]
d_y[d_idx] += dt * d_v[d_idx]
`},
	}
}
