package codegen

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/san-kum/sphstep/internal/device"
	"github.com/san-kum/sphstep/internal/steppers"
)

// fakeTypes binds every field of every destination to one dtype.
type fakeTypes struct {
	dtype   device.DType
	missing map[string]bool
}

func (f *fakeTypes) FieldType(dest, field string) (device.DType, error) {
	if f.missing[field] {
		return 0, errors.New("no such field")
	}
	return f.dtype, nil
}

func allDouble() *fakeTypes { return &fakeTypes{dtype: device.Float64} }

type fakeStepper struct {
	variant string
	stages  []steppers.Stage
}

func (f *fakeStepper) Variant() string          { return f.variant }
func (f *fakeStepper) Stages() []steppers.Stage { return f.stages }

func TestTranslateEntries(t *testing.T) {
	tr := NewTranslator(allDouble(), device.Double)
	mod, err := tr.Translate(map[string]steppers.Stepper{
		"fluid": steppers.NewLeapfrog(),
	})
	if err != nil {
		t.Fatal(err)
	}

	entries := mod.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Kernel != "stage1_fluid" || entries[1].Kernel != "stage2_fluid" {
		t.Errorf("unexpected kernel names: %s, %s", entries[0].Kernel, entries[1].Kernel)
	}
	if entries[0].Stage != "stage1" || entries[0].Dest != "fluid" {
		t.Errorf("unexpected entry key: %s/%s", entries[0].Stage, entries[0].Dest)
	}
}

func TestTranslateFieldOrder(t *testing.T) {
	tr := NewTranslator(allDouble(), device.Double)
	mod, err := tr.Translate(map[string]steppers.Stepper{
		"fluid": steppers.NewEuler(),
	})
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"u", "au", "v", "av", "x", "y"}
	got := mod.Entries()[0].Fields
	if len(got) != len(want) {
		t.Fatalf("expected %d fields, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("field %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestTranslateSharedVariant(t *testing.T) {
	tr := NewTranslator(allDouble(), device.Double)
	mod, err := tr.Translate(map[string]steppers.Stepper{
		"fluid": steppers.NewLeapfrog(),
		"dust":  steppers.NewLeapfrog(),
	})
	if err != nil {
		t.Fatal(err)
	}

	// One device function per variant stage, one kernel per destination.
	if n := strings.Count(mod.Text(), "void LeapfrogStep_stage1(int self"); n != 1 {
		t.Errorf("expected 1 variant function, found %d", n)
	}
	if n := strings.Count(mod.Text(), "__kernel void stage1_"); n != 2 {
		t.Errorf("expected 2 stage1 kernels, found %d", n)
	}
	if len(mod.Entries()) != 4 {
		t.Errorf("expected 4 entries, got %d", len(mod.Entries()))
	}
	// Destinations in name order: dust before fluid.
	if mod.Entries()[0].Dest != "dust" {
		t.Errorf("expected dust first, got %s", mod.Entries()[0].Dest)
	}
}

func TestTranslateDeterministic(t *testing.T) {
	dests := map[string]steppers.Stepper{
		"fluid":    steppers.NewLeapfrog(),
		"boundary": steppers.NewBoundary(),
	}

	first, err := NewTranslator(allDouble(), device.Double).Translate(dests)
	if err != nil {
		t.Fatal(err)
	}
	second, err := NewTranslator(allDouble(), device.Double).Translate(dests)
	if err != nil {
		t.Fatal(err)
	}
	if first.Text() != second.Text() {
		t.Error("regenerated source differs")
	}

	// Repeated translation through the same translator hits the variant
	// cache and must also match.
	tr := NewTranslator(allDouble(), device.Double)
	a, err := tr.Translate(dests)
	if err != nil {
		t.Fatal(err)
	}
	b, err := tr.Translate(dests)
	if err != nil {
		t.Fatal(err)
	}
	if a.Text() != b.Text() {
		t.Error("cached translation differs")
	}
}

func TestTranslateKernelShape(t *testing.T) {
	tr := NewTranslator(allDouble(), device.Double)
	mod, err := tr.Translate(map[string]steppers.Stepper{
		"fluid": steppers.NewEuler(),
	})
	if err != nil {
		t.Fatal(err)
	}

	text := mod.Text()
	for _, want := range []string{
		"__kernel void stage1_fluid(__global double* d_u, __global double* d_au, __global double* d_v, __global double* d_av, __global double* d_x, __global double* d_y, double t, double dt)",
		"int d_idx = get_global_id(0);",
		"EulerStep_stage1(0, d_u, d_au, d_v, d_av, d_x, d_y, d_idx, t, dt);",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("generated source missing %q\n%s", want, text)
		}
	}
}

func TestTranslateSinglePrecision(t *testing.T) {
	tr := NewTranslator(&fakeTypes{dtype: device.Float32}, device.Single)
	mod, err := tr.Translate(map[string]steppers.Stepper{
		"fluid": steppers.NewEuler(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(mod.Text(), "__global float* d_u") {
		t.Error("expected float buffer params")
	}
	if !strings.Contains(mod.Text(), "float t, float dt)") {
		t.Error("expected float scalar params")
	}
}

func TestTranslateUnsupportedBody(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"loop", "for i := 0; i < 3; i = i + 1 {\nd_x[d_idx] = 1.0\n}"},
		{"assign dt", "dt = 0.5"},
		{"unknown builtin", "d_x[d_idx] = tan(t)"},
		{"unindexed field", "d_x = 1.0"},
		{"multi assign", "a, b := 1.0, 2.0"},
		{"unknown identifier", "d_x[d_idx] = q"},
		{"undeclared local", "a = 1.0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := NewTranslator(allDouble(), device.Double)
			_, err := tr.Translate(map[string]steppers.Stepper{
				"fluid": &fakeStepper{
					variant: "BadStep",
					stages:  []steppers.Stage{{Name: "stage1", Body: tc.body}},
				},
			})
			var cerr *CompileError
			if !errors.As(err, &cerr) {
				t.Fatalf("expected CompileError, got %v", err)
			}
			if cerr.Variant != "BadStep" {
				t.Errorf("expected variant BadStep, got %s", cerr.Variant)
			}
		})
	}
}

func TestTranslateMissingFieldType(t *testing.T) {
	types := &fakeTypes{dtype: device.Float64, missing: map[string]bool{"au": true}}
	tr := NewTranslator(types, device.Double)
	_, err := tr.Translate(map[string]steppers.Stepper{
		"fluid": steppers.NewEuler(),
	})
	var cerr *CompileError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected CompileError, got %v", err)
	}
	if cerr.Dest != "fluid" {
		t.Errorf("expected destination fluid, got %q", cerr.Dest)
	}
}

func TestHostKernelEuler(t *testing.T) {
	tr := NewTranslator(allDouble(), device.Double)
	mod, err := tr.Translate(map[string]steppers.Stepper{
		"fluid": steppers.NewEuler(),
	})
	if err != nil {
		t.Fatal(err)
	}
	fn, argc, ok := mod.HostKernel("stage1_fluid")
	if !ok {
		t.Fatal("no host kernel for stage1_fluid")
	}
	if argc != 8 {
		t.Fatalf("expected 8 args, got %d", argc)
	}

	n := 3
	mk := func(vals ...float64) device.Buffer {
		b := device.NewHostBuffer(device.Float64, n)
		for i, v := range vals {
			b.Set(i, v)
		}
		return b
	}
	u := mk(1, 0, -1)
	au := mk(2, 2, 2)
	v := mk(0, 0, 0)
	av := mk(0, 1, 0)
	x := mk(0, 10, 20)
	y := mk(0, 0, 0)

	dt := 0.5
	if err := fn(n, []any{u, au, v, av, x, y, 0.0, dt}); err != nil {
		t.Fatal(err)
	}

	// u += dt*au, then x += dt*u with the updated u.
	if got := u.Get(0); got != 2.0 {
		t.Errorf("u[0]: expected 2, got %g", got)
	}
	if got := x.Get(0); got != 1.0 {
		t.Errorf("x[0]: expected 1, got %g", got)
	}
	if got := x.Get(1); got != 10.5 {
		t.Errorf("x[1]: expected 10.5, got %g", got)
	}
}

func TestHostKernelConditional(t *testing.T) {
	tr := NewTranslator(allDouble(), device.Double)
	mod, err := tr.Translate(map[string]steppers.Stepper{
		"fluid": &fakeStepper{
			variant: "ClampStep",
			stages: []steppers.Stage{{Name: "stage1", Body: `
speed := abs(d_u[d_idx])
if speed > 1.0 {
	d_u[d_idx] = d_u[d_idx] / speed
} else {
	d_u[d_idx] = d_u[d_idx] * 2.0
}
`}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	fn, _, ok := mod.HostKernel("stage1_fluid")
	if !ok {
		t.Fatal("no host kernel")
	}

	u := device.NewHostBuffer(device.Float64, 2)
	u.Set(0, -4.0)
	u.Set(1, 0.25)
	if err := fn(2, []any{u, 0.0, 0.1}); err != nil {
		t.Fatal(err)
	}
	if got := u.Get(0); got != -1.0 {
		t.Errorf("u[0]: expected -1, got %g", got)
	}
	if got := u.Get(1); got != 0.5 {
		t.Errorf("u[1]: expected 0.5, got %g", got)
	}
}

func TestHostKernelBuiltins(t *testing.T) {
	tr := NewTranslator(allDouble(), device.Double)
	mod, err := tr.Translate(map[string]steppers.Stepper{
		"fluid": &fakeStepper{
			variant: "MathStep",
			stages: []steppers.Stage{{Name: "stage1", Body: `
d_x[d_idx] = sqrt(d_x[d_idx]) + pow(2.0, 3.0) + min(t, dt)
`}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	fn, _, _ := mod.HostKernel("stage1_fluid")
	x := device.NewHostBuffer(device.Float64, 1)
	x.Set(0, 9.0)
	if err := fn(1, []any{x, 2.0, 0.5}); err != nil {
		t.Fatal(err)
	}
	if got, want := x.Get(0), 3.0+8.0+0.5; math.Abs(got-want) > 1e-12 {
		t.Errorf("expected %g, got %g", want, got)
	}
}

func TestHostKernelArgCount(t *testing.T) {
	tr := NewTranslator(allDouble(), device.Double)
	mod, err := tr.Translate(map[string]steppers.Stepper{
		"fluid": steppers.NewBoundary(),
	})
	if err != nil {
		t.Fatal(err)
	}
	fn, _, _ := mod.HostKernel("stage1_fluid")
	if err := fn(1, []any{0.0, 0.1}); !errors.Is(err, device.ErrArgCount) {
		t.Errorf("expected ErrArgCount, got %v", err)
	}
}

func TestNestedUnaryMinus(t *testing.T) {
	tr := NewTranslator(allDouble(), device.Double)
	mod, err := tr.Translate(map[string]steppers.Stepper{
		"fluid": &fakeStepper{
			variant: "NegStep",
			stages: []steppers.Stage{{Name: "stage1", Body: `
d_x[d_idx] = - -d_x[d_idx]
`}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(mod.Text(), "--") {
		t.Errorf("nested minus must not emit the C -- operator:\n%s", mod.Text())
	}
	if !strings.Contains(mod.Text(), "-(-d_x[d_idx])") {
		t.Errorf("expected parenthesized inner minus:\n%s", mod.Text())
	}

	fn, _, _ := mod.HostKernel("stage1_fluid")
	x := device.NewHostBuffer(device.Float64, 1)
	x.Set(0, 7.0)
	if err := fn(1, []any{x, 0.0, 0.1}); err != nil {
		t.Fatal(err)
	}
	if got := x.Get(0); got != 7.0 {
		t.Errorf("double negation must be identity, got %g", got)
	}
}

func TestPrecedencePreserved(t *testing.T) {
	tr := NewTranslator(allDouble(), device.Double)
	mod, err := tr.Translate(map[string]steppers.Stepper{
		"fluid": &fakeStepper{
			variant: "PrecStep",
			stages: []steppers.Stage{{Name: "stage1", Body: `
d_x[d_idx] = (d_x[d_idx] + 1.0) * dt
`}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(mod.Text(), "(d_x[d_idx] + 1.0) * dt") {
		t.Errorf("parenthesization lost:\n%s", mod.Text())
	}

	fn, _, _ := mod.HostKernel("stage1_fluid")
	x := device.NewHostBuffer(device.Float64, 1)
	x.Set(0, 3.0)
	if err := fn(1, []any{x, 0.0, 0.5}); err != nil {
		t.Fatal(err)
	}
	if got := x.Get(0); got != 2.0 {
		t.Errorf("expected 2, got %g", got)
	}
}
