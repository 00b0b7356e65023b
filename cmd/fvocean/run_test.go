package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/notargets/FVOcean/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const scenario = `
[grid]
size = [10, 8, 2]
extent = [1e5, 8e4, 50.0]
origin = [0.0, 0.0, -50.0]
topology = ["Periodic", "Bounded", "Bounded"]

[architecture]
kind = "cpu"
workers = 2

[advection]
tracers = ["T"]

[free_surface]
kind = "implicit"
solver = "pcg"
preconditioner = "fft"

[run]
dt = 60.0
steps = 4
interval = 2
coriolis = 1e-4
log_level = "error"

[initial]
amplitude = 0.1
width = 1.5e4
x = 5e4
y = 4e4

[initial.tracers]
T = 8.0
`

func writeScenario(t *testing.T, dir, text string) string {
	t.Helper()
	path := filepath.Join(dir, "scenario.toml")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestRun_WritesDiagnostics(t *testing.T) {
	dir := t.TempDir()
	c, err := config.Load(writeScenario(t, dir, scenario))
	require.NoError(t, err)
	c.Run.Output = filepath.Join(dir, "out", "diagnostics.csv")

	require.NoError(t, Run(context.Background(), c))

	data, err := os.ReadFile(c.Run.Output)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	// header, the initial state and iterations 2 and 4
	require.Len(t, lines, 4)
	assert.Equal(t, "iteration,time,max_speed,max_w,kinetic_energy,volume,max_eta,T_content,T_extrema", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "0,"))
	assert.True(t, strings.HasPrefix(lines[3], "4,2.400000e+02,"))

	script, err := os.ReadFile(filepath.Join(dir, "out", "diagnostics.gnu"))
	require.NoError(t, err)
	assert.Contains(t, string(script), "'diagnostics.csv' using 2:8")
}

func TestRun_Errors(t *testing.T) {
	c := config.Default()
	c.Run.LogLevel = "chatty"
	assert.Error(t, Run(context.Background(), c))

	c = config.Default()
	c.Run.LogLevel = "error"
	c.FreeSurface.Kind = "rigid_lid"
	assert.Error(t, Run(context.Background(), c))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c = config.Default()
	c.Architecture.Kind = "serial"
	c.Run.LogLevel = "error"
	assert.ErrorIs(t, Run(ctx, c), context.Canceled)
}

func TestStartup(t *testing.T) {
	defer func() { Config = nil }()
	require.NoError(t, Startup(""))
	assert.Equal(t, config.Default(), Config)

	path := writeScenario(t, t.TempDir(), scenario)
	require.NoError(t, Startup(path))
	assert.Equal(t, "implicit", Config.FreeSurface.Kind)

	assert.Error(t, Startup(writeScenario(t, t.TempDir(), "[grid]\nwidth = 3\n")))
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var buf bytes.Buffer
	RootCmd.SetOut(&buf)
	RootCmd.SetArgs(args)
	defer func() {
		RootCmd.SetOut(nil)
		RootCmd.SetArgs(nil)
		configFile = ""
	}()
	require.NoError(t, RootCmd.Execute())
	return buf.String()
}

func TestRootCmd(t *testing.T) {
	assert.Equal(t, "fvocean v"+Version+"\n", execute(t, "version"))

	out := execute(t, "config")
	c, err := config.Parse(out)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), c)

	path := writeScenario(t, t.TempDir(), scenario)
	c, err = config.Parse(execute(t, "--config", path, "config"))
	require.NoError(t, err)
	assert.Equal(t, "pcg", c.FreeSurface.Solver)
}

func TestRunCmd(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, scenario)
	csv := filepath.Join(dir, "run.csv")
	execute(t, "--config", path, "run", "--steps", "2", "--output", csv)
	data, err := os.ReadFile(csv)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 3)
	assert.Equal(t, 2, Config.Run.Steps)
}
