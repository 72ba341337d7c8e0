package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/sphstep/internal/device"
	"github.com/san-kum/sphstep/internal/integrator"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Dt <= 0 {
		t.Error("dt should be positive")
	}
	if cfg.Steps <= 0 {
		t.Error("steps should be positive")
	}
	if len(cfg.Arrays) == 0 {
		t.Fatal("expected a default array")
	}
	if cfg.Arrays[0].Stepper != "leapfrog" {
		t.Errorf("expected leapfrog, got %s", cfg.Arrays[0].Stepper)
	}
}

func TestGetPrecision(t *testing.T) {
	cfg := DefaultConfig()

	cfg.Precision = "single"
	p, err := cfg.GetPrecision()
	if err != nil {
		t.Fatal(err)
	}
	if p != device.Single {
		t.Errorf("expected single, got %v", p)
	}

	cfg.Precision = ""
	if p, _ = cfg.GetPrecision(); p != device.Double {
		t.Error("empty precision must default to double")
	}

	cfg.Precision = "half"
	if _, err := cfg.GetPrecision(); err == nil {
		t.Error("expected error for unknown precision")
	}
}

func TestGetProgram(t *testing.T) {
	cfg := DefaultConfig()
	if ops, err := cfg.GetProgram(); err != nil || ops != nil {
		t.Errorf("empty program section must return nil, got %v, %v", ops, err)
	}

	cfg.Program = []OpConfig{
		{Run: "stage1"},
		{PostStage: &PostStageConfig{Stage: 1, DtFrac: 0.5}},
		{Recompute: true},
		{Run: "stage2"},
		{PostStage: &PostStageConfig{Stage: 2}},
	}
	ops, err := cfg.GetProgram()
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 5 {
		t.Fatalf("expected 5 ops, got %d", len(ops))
	}
	if ops[0].Kind != integrator.OpRunStage || ops[0].Stage != "stage1" {
		t.Errorf("unexpected op 0: %+v", ops[0])
	}
	if ops[1].Kind != integrator.OpPostStage || ops[1].DtFrac != 0.5 {
		t.Errorf("unexpected op 1: %+v", ops[1])
	}
	if ops[2].Kind != integrator.OpRecompute {
		t.Errorf("unexpected op 2: %+v", ops[2])
	}
	// Unset dt_frac means a full dt.
	if ops[4].DtFrac != 1.0 {
		t.Errorf("expected dt_frac 1.0, got %g", ops[4].DtFrac)
	}

	cfg.Program = []OpConfig{{}}
	if _, err := cfg.GetProgram(); err == nil {
		t.Error("expected error for empty program entry")
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.yaml")

	cfg := DefaultConfig()
	cfg.Precision = "single"
	cfg.Backend = "host"
	cfg.Arrays = append(cfg.Arrays, ArrayConfig{
		Name: "wall", Count: 16, Stepper: "boundary", Layout: "lattice", Radius: 2.0, Mass: 1.0,
	})
	cfg.Program = []OpConfig{
		{Run: "stage1"},
		{PostStage: &PostStageConfig{Stage: 1, DtFrac: 1.0}},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Precision != "single" || loaded.Backend != "host" {
		t.Errorf("unexpected ambient fields: %s, %s", loaded.Precision, loaded.Backend)
	}
	if len(loaded.Arrays) != 2 || loaded.Arrays[1].Name != "wall" {
		t.Fatalf("arrays not preserved: %+v", loaded.Arrays)
	}
	if len(loaded.Program) != 2 || loaded.Program[1].PostStage == nil {
		t.Fatalf("program not preserved: %+v", loaded.Program)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(os.TempDir(), "does-not-exist.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
