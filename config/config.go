// Package config decodes a TOML scenario description and builds the grid,
// schemes, free-surface solver and model it describes. Every name is
// validated when the component is built, so a bad file fails before the first
// time step.
package config

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// GridConfig describes the rectilinear grid. Faces, when given for an axis,
// override Extent on that axis.
type GridConfig struct {
	Size     [3]int     `toml:"size"`
	Extent   [3]float64 `toml:"extent"`
	Origin   [3]float64 `toml:"origin"`
	Topology [3]string  `toml:"topology"`
	Halo     int        `toml:"halo"`
	FacesX   []float64  `toml:"faces_x,omitempty"`
	FacesY   []float64  `toml:"faces_y,omitempty"`
	FacesZ   []float64  `toml:"faces_z,omitempty"`
}

// ArchitectureConfig selects where kernels run: "serial", "cpu" or "device"
type ArchitectureConfig struct {
	Kind    string `toml:"kind"`
	Workers int    `toml:"workers"`
	// Mode is the OCCA backend of a device architecture, e.g. "Serial" or "OpenMP"
	Mode string `toml:"mode"`
}

// VectorInvariantConfig names the schemes of the vector-invariant terms
type VectorInvariantConfig struct {
	Vorticity        string `toml:"vorticity"`
	Vertical         string `toml:"vertical"`
	Divergence       string `toml:"divergence"`
	KineticEnergy    string `toml:"kinetic_energy"`
	Upwinding        string `toml:"upwinding"`
	VelocityStencil  bool   `toml:"velocity_stencil"`
	MultiDimensional bool   `toml:"multi_dimensional"`
}

// AdvectionConfig selects the momentum formulation ("vector_invariant",
// "flux_form" or "none") and the tracer reconstruction
type AdvectionConfig struct {
	Momentum        string                `toml:"momentum"`
	Scheme          string                `toml:"scheme"`
	Tracer          string                `toml:"tracer"`
	Tracers         []string              `toml:"tracers,omitempty"`
	VectorInvariant VectorInvariantConfig `toml:"vector_invariant"`
}

// FreeSurfaceConfig selects the barotropic solver. Solver, Preconditioner and
// Matrix apply to the implicit kind; Substeps and Averaging to split_explicit.
type FreeSurfaceConfig struct {
	Kind           string  `toml:"kind"`
	Gravity        float64 `toml:"gravity"`
	Solver         string  `toml:"solver"`
	Preconditioner string  `toml:"preconditioner"`
	Matrix         string  `toml:"matrix"`
	Tolerance      float64 `toml:"tolerance"`
	MaxIterations  int     `toml:"max_iterations"`
	Substeps       int     `toml:"substeps"`
	Averaging      string  `toml:"averaging"`
	// Device is the OCCA backend applying the PCG operator; empty uses the host
	Device string `toml:"device"`
}

// RunConfig holds the time stepping and output settings
type RunConfig struct {
	Dt                  float64 `toml:"dt"`
	Steps               int     `toml:"steps"`
	Timestepper         string  `toml:"timestepper"`
	Coriolis            float64 `toml:"coriolis"`
	VerticalIntegration string  `toml:"vertical_integration"`
	// Output is the CSV diagnostics file; empty disables it
	Output   string `toml:"output"`
	Interval int    `toml:"interval"`
	LogLevel string `toml:"log_level"`
}

// InitialConfig describes the initial state: a Gaussian surface bump at
// (X, Y), a uniform flow and uniform tracer values
type InitialConfig struct {
	Amplitude float64            `toml:"amplitude"`
	Width     float64            `toml:"width"`
	X         float64            `toml:"x"`
	Y         float64            `toml:"y"`
	U         float64            `toml:"u"`
	V         float64            `toml:"v"`
	Tracers   map[string]float64 `toml:"tracers,omitempty"`
}

// Config is the root of a scenario file
type Config struct {
	Grid         GridConfig         `toml:"grid"`
	Architecture ArchitectureConfig `toml:"architecture"`
	Advection    AdvectionConfig    `toml:"advection"`
	FreeSurface  FreeSurfaceConfig  `toml:"free_surface"`
	Run          RunConfig          `toml:"run"`
	Initial      InitialConfig      `toml:"initial"`
}

// Default is a closed 32 x 32 x 4 basin, 100 km wide and 100 m deep, with
// WENO5 vector-invariant momentum, a split-explicit free surface and a
// Gaussian surface bump at its center
func Default() *Config {
	return &Config{
		Grid: GridConfig{
			Size:     [3]int{32, 32, 4},
			Extent:   [3]float64{1e5, 1e5, 100},
			Origin:   [3]float64{0, 0, -100},
			Topology: [3]string{"Bounded", "Bounded", "Bounded"},
			Halo:     4,
		},
		Architecture: ArchitectureConfig{Kind: "cpu"},
		Advection: AdvectionConfig{
			Momentum: "vector_invariant",
			Scheme:   "WENO5",
			Tracer:   "WENO5",
			VectorInvariant: VectorInvariantConfig{
				Vorticity:     "WENO5",
				Vertical:      "EnergyConserving",
				KineticEnergy: "EnergyConserving",
			},
		},
		FreeSurface: FreeSurfaceConfig{
			Kind:      "split_explicit",
			Gravity:   9.81,
			Solver:    "fft",
			Matrix:    "iterative",
			Substeps:  30,
			Averaging: "minimal_dispersion",
		},
		Run: RunConfig{
			Dt:          60,
			Steps:       100,
			Timestepper: "ab2",
			Interval:    10,
			LogLevel:    "info",
		},
		Initial: InitialConfig{
			Amplitude: 1,
			Width:     1e4,
			X:         5e4,
			Y:         5e4,
		},
	}
}

// Load decodes a TOML file over Default
func Load(path string) (*Config, error) {
	c := Default()
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := undecoded(md); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes TOML text over Default
func Parse(data string) (*Config, error) {
	c := Default()
	md, err := toml.Decode(data, c)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := undecoded(md); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return c, nil
}

// undecoded rejects keys that match no field
func undecoded(md toml.MetaData) error {
	keys := md.Undecoded()
	if len(keys) == 0 {
		return nil
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}
	sort.Strings(names)
	return fmt.Errorf("unknown keys: %s", strings.Join(names, ", "))
}

// Encode writes c as TOML
func (c *Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}
