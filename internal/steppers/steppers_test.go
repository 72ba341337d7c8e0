package steppers_test

import (
	"testing"

	"github.com/san-kum/sphstep/internal/codegen"
	"github.com/san-kum/sphstep/internal/device"
	"github.com/san-kum/sphstep/internal/particles"
	"github.com/san-kum/sphstep/internal/steppers"
)

func TestGet(t *testing.T) {
	for _, name := range []string{"euler", "leapfrog", "rk2", "boundary"} {
		s, err := steppers.Get(name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if s.Variant() == "" {
			t.Errorf("%s: empty variant", name)
		}
		if len(s.Stages()) == 0 {
			t.Errorf("%s: no stages", name)
		}
	}
	if _, err := steppers.Get("verlet"); err == nil {
		t.Error("expected error for unknown stepper")
	}
}

// Every registered stepper's stage bodies must pass translation against a
// destination carrying the fields it touches.
func TestAllSteppersTranslate(t *testing.T) {
	fields := []string{"x", "y", "u", "v", "au", "av", "x0", "y0", "u0", "v0"}
	reg := particles.NewRegistry()
	arr := particles.NewArray("fluid", 1)
	for _, f := range fields {
		arr.AddField(f, device.NewHostBuffer(device.Float64, 1))
	}
	if err := reg.Add(arr); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"euler", "leapfrog", "rk2", "boundary"} {
		t.Run(name, func(t *testing.T) {
			s, err := steppers.Get(name)
			if err != nil {
				t.Fatal(err)
			}
			tr := codegen.NewTranslator(reg, device.Double)
			mod, err := tr.Translate(map[string]steppers.Stepper{"fluid": s})
			if err != nil {
				t.Fatal(err)
			}
			if len(mod.Entries()) != len(s.Stages()) {
				t.Errorf("expected %d kernels, got %d", len(s.Stages()), len(mod.Entries()))
			}
		})
	}
}

func TestWithHook(t *testing.T) {
	base := steppers.NewLeapfrog()
	called := ""
	s := steppers.WithHook(base, "stage1", func(dest *particles.Array, ht, hdt float64) {
		called = dest.Name()
	})

	if s.Variant() != base.Variant() {
		t.Error("hook wrapper must not change the variant")
	}

	hooker, ok := s.(steppers.Hooker)
	if !ok {
		t.Fatal("wrapper must implement Hooker")
	}
	if hooker.StageHook("stage2") != nil {
		t.Error("no hook registered for stage2")
	}
	fn := hooker.StageHook("stage1")
	if fn == nil {
		t.Fatal("missing stage1 hook")
	}
	fn(particles.NewArray("fluid", 1), 0, 0.1)
	if called != "fluid" {
		t.Errorf("hook not invoked, called=%q", called)
	}
}

func TestWithHookStacks(t *testing.T) {
	var order []string
	s := steppers.WithHook(steppers.NewLeapfrog(), "stage1",
		func(dest *particles.Array, ht, hdt float64) { order = append(order, "stage1") })
	s = steppers.WithHook(s, "stage2",
		func(dest *particles.Array, ht, hdt float64) { order = append(order, "stage2") })

	hooker := s.(steppers.Hooker)
	for _, stage := range []string{"stage1", "stage2"} {
		fn := hooker.StageHook(stage)
		if fn == nil {
			t.Fatalf("missing %s hook", stage)
		}
		fn(particles.NewArray("fluid", 1), 0, 0.1)
	}
	if len(order) != 2 || order[0] != "stage1" || order[1] != "stage2" {
		t.Errorf("unexpected hook dispatch: %v", order)
	}
}
