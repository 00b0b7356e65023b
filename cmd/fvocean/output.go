package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/notargets/FVOcean/model"
)

// diagnosticsWriter appends one CSV row of model diagnostics per call
type diagnosticsWriter struct {
	file    *os.File
	w       *bufio.Writer
	tracers []string
}

func newDiagnosticsWriter(filename string, tracers []string) (*diagnosticsWriter, error) {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", filename, err)
	}
	dw := &diagnosticsWriter{file: file, w: bufio.NewWriter(file), tracers: tracers}
	fmt.Fprintf(dw.w, "iteration,time,max_speed,max_w,kinetic_energy,volume,max_eta")
	for _, name := range tracers {
		fmt.Fprintf(dw.w, ",%s_content,%s_extrema", name, name)
	}
	fmt.Fprintln(dw.w)
	return dw, nil
}

func (dw *diagnosticsWriter) Write(d model.Diagnostics) error {
	fmt.Fprintf(dw.w, "%d,%.6e,%.6e,%.6e,%.6e,%.6e,%.6e",
		d.Iteration, d.Time, d.MaxSpeed, d.MaxW, d.KineticEnergy, d.Volume, d.MaxEta)
	for _, name := range dw.tracers {
		fmt.Fprintf(dw.w, ",%.10e,%d", d.Tracers[name], d.Extrema[name])
	}
	_, err := fmt.Fprintln(dw.w)
	return err
}

func (dw *diagnosticsWriter) Close() error {
	if err := dw.w.Flush(); err != nil {
		dw.file.Close()
		return err
	}
	return dw.file.Close()
}

// writeGnuplotScript writes a script plotting the diagnostics CSV next to it
// and returns its path
func writeGnuplotScript(csvFile string, tracers []string) (string, error) {
	script := strings.TrimSuffix(csvFile, filepath.Ext(csvFile)) + ".gnu"
	file, err := os.Create(script)
	if err != nil {
		return "", fmt.Errorf("failed to write gnuplot script: %w", err)
	}
	defer file.Close()

	data := filepath.Base(csvFile)
	fmt.Fprintf(file, `#!/usr/bin/gnuplot
set datafile separator ','
set key autotitle columnhead
set xlabel 'time (s)'
set grid

set terminal png size 1000,700
set output 'energy.png'
set ylabel 'kinetic energy (m^5/s^2)'
plot '%[1]s' using 2:5 with lines linewidth 2

set output 'surface.png'
set ylabel 'max |eta| (m)'
plot '%[1]s' using 2:7 with lines linewidth 2
`, data)
	for n, name := range tracers {
		fmt.Fprintf(file, `
set output '%[2]s.png'
set ylabel '%[2]s content'
plot '%[1]s' using 2:%[3]d with lines linewidth 2
`, data, name, 8+2*n)
	}
	return script, nil
}
