package main

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/notargets/FVOcean/config"
	"github.com/notargets/FVOcean/field"
	"github.com/notargets/FVOcean/freesurface"
	"github.com/notargets/FVOcean/model"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	steps  int
	dt     float64
	output string
)

func init() {
	runCmd.Flags().IntVarP(&steps, "steps", "n", 0, "number of time steps; overrides run.steps")
	runCmd.Flags().Float64Var(&dt, "dt", 0, "time step in seconds; overrides run.dt")
	runCmd.Flags().StringVarP(&output, "output", "o", "", "diagnostics CSV file; overrides run.output")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scenario",
	Long: `Build the model described by the scenario, set its initial state and
step it, logging diagnostics every run.interval steps and writing them to the
CSV output with a gnuplot script alongside.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("steps") {
			Config.Run.Steps = steps
		}
		if cmd.Flags().Changed("dt") {
			Config.Run.Dt = dt
		}
		if cmd.Flags().Changed("output") {
			Config.Run.Output = output
		}
		return Run(cmd.Context(), Config)
	},
}

// tracerBounds records the initial range of each tracer; a bounded scheme
// keeps the tracers inside it
func tracerBounds(m *model.Model) map[string][2]float64 {
	b := make(map[string][2]float64, len(m.Tracers))
	for name, c := range m.Tracers {
		b[name] = [2]float64{field.Minimum(c), field.Maximum(c)}
	}
	return b
}

// Run builds and steps the scenario c
func Run(ctx context.Context, c *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log, err := c.Logger()
	if err != nil {
		return err
	}
	sc, err := c.Build(log)
	if err != nil {
		return err
	}
	defer sc.Close()
	m := sc.Model
	log.WithField("model", m.String()).Info("built scenario")
	if err := sc.Initialize(ctx); err != nil {
		return err
	}

	adv, gw := m.CFL(c.Run.Dt, c.FreeSurface.Gravity)
	entry := log.WithFields(logrus.Fields{"advective": adv, "gravity_wave": gw})
	_, explicit := m.FreeSurface.(*freesurface.ExplicitFreeSurface)
	if adv > 1 || (explicit && gw > 1) {
		entry.Warn("time step exceeds the CFL limit")
	} else {
		entry.Info("courant numbers")
	}

	bounds := tracerBounds(m)
	var out *diagnosticsWriter
	if c.Run.Output != "" {
		if out, err = newDiagnosticsWriter(c.Run.Output, m.TracerNames()); err != nil {
			return err
		}
		defer out.Close()
	}
	record := func(m *model.Model) error {
		d, err := m.Diagnose(bounds)
		if err != nil {
			return err
		}
		if math.IsNaN(d.KineticEnergy) || math.IsNaN(d.MaxEta) {
			return fmt.Errorf("solution diverged at iteration %d", d.Iteration)
		}
		log.Info(d.String())
		if out != nil {
			return out.Write(d)
		}
		return nil
	}
	if err := record(m); err != nil {
		return err
	}
	err = m.Run(ctx, c.Run.Dt, c.Run.Steps, func(m *model.Model) error {
		it := m.Clock.Iteration
		if it == c.Run.Steps || (c.Run.Interval > 0 && it%c.Run.Interval == 0) {
			return record(m)
		}
		return nil
	})
	if errors.Is(err, freesurface.ErrNotConverged) {
		log.WithError(err).Error("free surface solver did not converge")
	}
	if err != nil {
		return err
	}
	if out != nil {
		script, err := writeGnuplotScript(c.Run.Output, m.TracerNames())
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{"csv": c.Run.Output, "gnuplot": script}).Info("diagnostics written")
	}
	return nil
}
