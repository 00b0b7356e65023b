package stencil

import (
	"fmt"

	"github.com/notargets/FVOcean/runner"
	"github.com/notargets/FVOcean/runner/builder"
)

// symmetricBody reconstructs the x face of column (i, j) from the static
// coefficient table; x wraps periodically
const symmetricBody = `
real_t s = REAL_ZERO;
for (int m = 0; m < 2*%[2]d; ++m) {
	s += %[1]s[0][m]*st_psi[(i + m - %[2]d + NX) %% NX + NX*j];
}
st_face[i + NX*j] = s;
`

// DeviceInterpolation evaluates Centered.Symmetric along a periodic x axis of
// a single-layer device grid with a compiled kernel reading the scheme's
// static coefficient table
type DeviceInterpolation struct {
	Scheme *Centered

	device     *runner.Device
	kernel     string
	psi, faces *builder.ParamBuilder
}

// NewDeviceInterpolation relocates the scheme tables to d and compiles the
// kernel
func NewDeviceInterpolation(d *runner.Device, c *Centered) (*DeviceInterpolation, error) {
	if d.Nx < c.RequiredHalo() {
		return nil, fmt.Errorf("device interpolation: %s needs %d points, grid has %d", c, c.RequiredHalo(), d.Nx)
	}
	c.OnArchitecture(d)
	di := &DeviceInterpolation{
		Scheme: c,
		device: d,
		kernel: fmt.Sprintf("interpolate%s", c),
		psi:    builder.Input("st_psi"),
		faces:  builder.Output("st_face"),
	}
	var table string
	for name := range c.StaticTables() {
		table = name
	}
	params := []*builder.ParamBuilder{di.psi, di.faces}
	src := d.GenerateKernelTemplate(di.kernel, params, fmt.Sprintf(symmetricBody, table, c.order/2))
	if _, err := d.BuildKernel(src, di.kernel); err != nil {
		return nil, err
	}
	return di, nil
}

// Interpolate fills faces[i + NX*j] with the estimate at the face between
// columns i-1 and i of psi
func (di *DeviceInterpolation) Interpolate(psi, faces []float64) error {
	n := di.device.Nx * di.device.Ny
	if len(psi) != n || len(faces) != n {
		return fmt.Errorf("device interpolation: grid has %d columns, got %d and %d", n, len(psi), len(faces))
	}
	di.psi.Bind(psi).CopyTo()
	di.faces.Bind(faces).CopyBack()
	return di.device.Execute(di.kernel, di.psi, di.faces)
}
