// Package steppers defines the per-particle update rules applied during each
// integration stage. A stepper is stateless: its stages are pure per-particle
// transformations written in a small Go subset over destination fields
// (d_<field>[d_idx]) and the scalars t and dt. The translator turns stage
// bodies into device kernels, one per (stage, destination).
package steppers

import (
	"fmt"

	"github.com/san-kum/sphstep/internal/particles"
)

// Stage is one named phase of a multi-stage integrator.
type Stage struct {
	Name string
	Body string
}

// Stepper is a per-particle update rule variant. Variant names key the
// generated device functions, so two steppers sharing a variant name share
// translated stage bodies.
type Stepper interface {
	Variant() string
	Stages() []Stage
}

// HookFunc runs synchronously on the host immediately before a stage's
// device kernels for one destination. t and dt arrive already cast to the
// runtime's precision.
type HookFunc func(dest *particles.Array, t, dt float64)

// Hooker is implemented by steppers that attach host pre-stage hooks.
// StageHook returns nil for stages without a hook.
type Hooker interface {
	StageHook(stage string) HookFunc
}

// WithHook attaches a host pre-stage hook to a stepper.
func WithHook(s Stepper, stage string, fn HookFunc) Stepper {
	return &hooked{Stepper: s, stage: stage, fn: fn}
}

type hooked struct {
	Stepper
	stage string
	fn    HookFunc
}

func (h *hooked) StageHook(stage string) HookFunc {
	if stage == h.stage {
		return h.fn
	}
	if inner, ok := h.Stepper.(Hooker); ok {
		return inner.StageHook(stage)
	}
	return nil
}

// Get returns a stepper by registry name.
func Get(name string) (Stepper, error) {
	switch name {
	case "euler":
		return NewEuler(), nil
	case "leapfrog":
		return NewLeapfrog(), nil
	case "rk2":
		return NewRK2(), nil
	case "boundary":
		return NewBoundary(), nil
	}
	return nil, fmt.Errorf("steppers: unknown stepper: %s", name)
}
