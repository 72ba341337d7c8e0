package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/sphstep/internal/device"
	"github.com/san-kum/sphstep/internal/integrator"
)

const (
	DefaultDt        = 0.001
	DefaultSteps     = 200
	DefaultG         = 1.0
	DefaultSoftening = 0.05
	DefaultCount     = 64
)

type Config struct {
	Precision string        `yaml:"precision"`
	Backend   string        `yaml:"backend"`
	Dt        float64       `yaml:"dt"`
	Steps     int           `yaml:"steps"`
	Arrays    []ArrayConfig `yaml:"arrays"`
	Program   []OpConfig    `yaml:"program"`
	Forces    ForcesConfig  `yaml:"forces"`
}

type ArrayConfig struct {
	Name    string  `yaml:"name"`
	Count   int     `yaml:"count"`
	Stepper string  `yaml:"stepper"`
	Layout  string  `yaml:"layout"`
	Radius  float64 `yaml:"radius"`
	Mass    float64 `yaml:"mass"`
	Spin    float64 `yaml:"spin"`
}

// OpConfig is one timestep program operation. Exactly one of Run, Recompute,
// or PostStage is set per entry.
type OpConfig struct {
	Run       string           `yaml:"run,omitempty"`
	Recompute bool             `yaml:"recompute,omitempty"`
	PostStage *PostStageConfig `yaml:"post_stage,omitempty"`
}

type PostStageConfig struct {
	Stage  int     `yaml:"stage"`
	DtFrac float64 `yaml:"dt_frac"`
}

type ForcesConfig struct {
	G         float64 `yaml:"g"`
	Softening float64 `yaml:"softening"`
	Cutoff    float64 `yaml:"cutoff"`
}

func DefaultConfig() *Config {
	return &Config{
		Precision: "double",
		Backend:   "auto",
		Dt:        DefaultDt,
		Steps:     DefaultSteps,
		Arrays: []ArrayConfig{
			{
				Name:    "fluid",
				Count:   DefaultCount,
				Stepper: "leapfrog",
				Layout:  "circle",
				Radius:  1.0,
				Mass:    1.0,
				Spin:    0.5,
			},
		},
		Forces: ForcesConfig{
			G:         DefaultG,
			Softening: DefaultSoftening,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// GetPrecision maps the precision field to a device precision.
func (c *Config) GetPrecision() (device.Precision, error) {
	switch c.Precision {
	case "single":
		return device.Single, nil
	case "double", "":
		return device.Double, nil
	default:
		return 0, fmt.Errorf("config: unknown precision %q", c.Precision)
	}
}

// GetProgram lowers the program section to integrator ops. An empty section
// returns nil; callers fall back to the steppers' default program.
func (c *Config) GetProgram() ([]integrator.Op, error) {
	if len(c.Program) == 0 {
		return nil, nil
	}
	ops := make([]integrator.Op, 0, len(c.Program))
	for i, op := range c.Program {
		switch {
		case op.Run != "":
			ops = append(ops, integrator.RunStage(op.Run))
		case op.Recompute:
			ops = append(ops, integrator.Recompute())
		case op.PostStage != nil:
			ops = append(ops, integrator.PostStageMark(op.PostStage.Stage, op.PostStage.DtFrac))
		default:
			return nil, fmt.Errorf("config: program entry %d sets none of run, recompute, post_stage", i)
		}
	}
	return ops, nil
}
