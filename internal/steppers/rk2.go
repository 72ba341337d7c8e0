package steppers

// RK2 is the midpoint method. initialize shadows the state into *0 fields,
// stage1 steps to the midpoint, stage2 takes the full step from the shadow
// using midpoint accelerations. Destinations using RK2 must carry the shadow
// fields x0, y0, u0, v0.
type RK2 struct{}

func NewRK2() *RK2 { return &RK2{} }

func (r *RK2) Variant() string { return "RK2Step" }

func (r *RK2) Stages() []Stage {
	return []Stage{
		{Name: "initialize", Body: `
d_x0[d_idx] = d_x[d_idx]
d_y0[d_idx] = d_y[d_idx]
d_u0[d_idx] = d_u[d_idx]
d_v0[d_idx] = d_v[d_idx]
`},
		{Name: "stage1", Body: `
d_u[d_idx] = d_u0[d_idx] + 0.5 * dt * d_au[d_idx]
d_v[d_idx] = d_v0[d_idx] + 0.5 * dt * d_av[d_idx]
d_x[d_idx] = d_x0[d_idx] + 0.5 * dt * d_u[d_idx]
d_y[d_idx] = d_y0[d_idx] + 0.5 * dt * d_v[d_idx]
`},
		{Name: "stage2", Body: `
d_u[d_idx] = d_u0[d_idx] + dt * d_au[d_idx]
d_v[d_idx] = d_v0[d_idx] + dt * d_av[d_idx]
d_x[d_idx] = d_x0[d_idx] + dt * d_u[d_idx]
d_y[d_idx] = d_y0[d_idx] + dt * d_v[d_idx]
`},
	}
}
