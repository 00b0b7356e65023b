package freesurface

import (
	"context"
	"fmt"

	"github.com/notargets/FVOcean/runner"
	"github.com/notargets/FVOcean/runner/builder"
)

// helmholtzBody is the per-column body of the Helmholtz kernel. Neighbours
// wrap; on Bounded axes the wrapped neighbour sits behind a zero coefficient.
const helmholtzBody = `
const int c = i + NX*j;
const int w = (i + NX - 1) % NX + NX*j;
const int e = (i + 1) % NX + NX*j;
const int s = i + NX*((j + NY - 1) % NY);
const int n = i + NX*((j + 1) % NY);
const real_t lap = fs_cx[i + (NX + 1)*j]*(fs_x[w] - fs_x[c])
                 + fs_cx[i + 1 + (NX + 1)*j]*(fs_x[e] - fs_x[c])
                 + fs_cy[i + NX*j]*(fs_x[s] - fs_x[c])
                 + fs_cy[i + NX*(j + 1)]*(fs_x[n] - fs_x[c]);
fs_y[c] = fs_area[c]*fs_x[c] - fs_scale*lap;
`

// DeviceOperator applies a HelmholtzOperator through a compiled device kernel.
// The device's builder must describe the surface grid (NX, NY).
type DeviceOperator struct {
	*HelmholtzOperator
	device *runner.Device
	x, y   *builder.ParamBuilder
	scale  *builder.ParamBuilder
	params []*builder.ParamBuilder
}

// NewDeviceOperator compiles the Helmholtz kernel and relocates the operator
// coefficients
func NewDeviceOperator(device *runner.Device, op *HelmholtzOperator) (*DeviceOperator, error) {
	if device.Nx != op.Nx || device.Ny != op.Ny {
		return nil, fmt.Errorf("device grid %dx%d does not match operator %dx%d",
			device.Nx, device.Ny, op.Nx, op.Ny)
	}
	d := &DeviceOperator{
		HelmholtzOperator: op,
		device:            device,
		x:                 builder.Input("fs_x").Bind(make([]float64, op.Size())),
		y:                 builder.Output("fs_y").Bind(make([]float64, op.Size())),
		scale:             builder.Scalar("fs_scale"),
	}
	coefficients := []*builder.ParamBuilder{
		builder.Input("fs_area").Bind(op.Area),
		builder.Input("fs_cx").Bind(op.Cx),
		builder.Input("fs_cy").Bind(op.Cy),
	}
	d.params = append([]*builder.ParamBuilder{d.x, d.y}, coefficients...)
	d.params = append(d.params, d.scale)

	if _, ok := device.Kernels["helmholtz"]; !ok {
		src := device.GenerateKernelTemplate("helmholtz", d.params, helmholtzBody)
		if _, err := device.BuildKernel(src, "helmholtz"); err != nil {
			return nil, err
		}
	}
	// coefficients stay on the device; Apply moves only x and y
	for _, p := range coefficients {
		if err := device.Relocate(p.Spec.Name, p.Spec.Array); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *DeviceOperator) Apply(ctx context.Context, x, y []float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.x.Bind(x).CopyTo()
	d.y.Bind(y).CopyBack()
	d.scale.Set(d.Scale)
	return d.device.Execute("helmholtz", d.params...)
}
