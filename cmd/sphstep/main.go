package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/sphstep/internal/config"
	"github.com/san-kum/sphstep/internal/forces"
	"github.com/san-kum/sphstep/internal/scene"
	"github.com/san-kum/sphstep/internal/tui"
)

var (
	configFile string
	backend    string
	precision  string
	dt         float64
	steps      int
	stepper    string
	count      int
	scale      float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sphstep",
		Short: "staged particle timestep runtime with generated device kernels",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a simulation",
		RunE:  runSimulation,
	}
	addSceneFlags(runCmd)

	kernelsCmd := &cobra.Command{
		Use:   "kernels",
		Short: "print the generated kernel source",
		RunE:  dumpKernels,
	}
	addSceneFlags(kernelsCmd)

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run with live terminal visualization",
		RunE:  runLive,
	}
	addSceneFlags(liveCmd)
	liveCmd.Flags().Float64Var(&scale, "scale", 2.0, "view half-width in simulation units")

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "write a default config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Save(args[0], config.DefaultConfig())
		},
	}

	rootCmd.AddCommand(runCmd, kernelsCmd, liveCmd, initCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addSceneFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&backend, "backend", "", "device backend (auto, host, opencl)")
	cmd.Flags().StringVar(&precision, "precision", "", "floating point precision (single, double)")
	cmd.Flags().Float64Var(&dt, "dt", 0, "timestep")
	cmd.Flags().IntVar(&steps, "steps", 0, "number of timesteps")
	cmd.Flags().StringVar(&stepper, "stepper", "", "stepper for the default array")
	cmd.Flags().IntVar(&count, "count", 0, "particle count for the default array")
}

// loadConfig resolves the effective config: file values first, then any flag
// the user set on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if cmd.Flags().Changed("backend") {
		cfg.Backend = backend
	}
	if cmd.Flags().Changed("precision") {
		cfg.Precision = precision
	}
	if cmd.Flags().Changed("dt") {
		cfg.Dt = dt
	}
	if cmd.Flags().Changed("steps") {
		cfg.Steps = steps
	}
	if cmd.Flags().Changed("stepper") && len(cfg.Arrays) > 0 {
		cfg.Arrays[0].Stepper = stepper
	}
	if cmd.Flags().Changed("count") && len(cfg.Arrays) > 0 {
		cfg.Arrays[0].Count = count
	}
	return cfg, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	sc, err := scene.Build(cfg)
	if err != nil {
		return err
	}
	defer sc.Close()

	fmt.Printf("backend: %s\n", sc.Backend.Name())
	fmt.Printf("running %d steps (dt=%g)...\n", sc.Steps, sc.Dt)

	if err := sc.Runtime.ComputeAccelerations(); err != nil {
		return err
	}

	energyHistory := make([]float64, 0, sc.Steps)
	start := time.Now()
	t := 0.0
	for i := 0; i < sc.Steps; i++ {
		if err := sc.Runtime.Step(t, sc.Dt); err != nil {
			return err
		}
		t += sc.Dt
		e, err := forces.KineticEnergy(sc.Registry, sc.Dests)
		if err != nil {
			return err
		}
		energyHistory = append(energyHistory, e)
	}
	elapsed := time.Since(start)

	fmt.Printf("completed in %v (%.0f steps/sec)\n\n", elapsed, float64(sc.Steps)/elapsed.Seconds())
	if len(energyHistory) > 1 {
		graph := asciigraph.Plot(energyHistory,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption("kinetic energy"),
		)
		fmt.Println(graph)
	}
	return nil
}

func dumpKernels(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	sc, err := scene.Build(cfg)
	if err != nil {
		return err
	}
	defer sc.Close()
	fmt.Print(sc.Module.Text())
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	sc, err := scene.Build(cfg)
	if err != nil {
		return err
	}
	defer sc.Close()

	if err := sc.Runtime.ComputeAccelerations(); err != nil {
		return err
	}

	p := tea.NewProgram(tui.NewModel(sc, scale))
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}
