package builder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamBuilder(t *testing.T) {
	x := []float64{1, 2, 3}
	in := Input("x").Bind(x).CopyTo()
	assert.True(t, in.Spec.IsConst())
	assert.True(t, in.Spec.NeedsCopyTo())
	assert.False(t, in.Spec.NeedsCopyBack())
	assert.Equal(t, "const real_t* x", in.Spec.Declaration())
	require.NoError(t, in.Spec.Validate())

	out := Output("y").Bind(make([]float64, 3)).CopyBack()
	assert.False(t, out.Spec.IsConst())
	assert.Equal(t, "real_t* y", out.Spec.Declaration())
	require.NoError(t, out.Spec.Validate())

	io := InOut("q").Bind(x).Copy()
	assert.True(t, io.Spec.NeedsCopyTo() && io.Spec.NeedsCopyBack())
	io.NoCopy()
	assert.False(t, io.Spec.NeedsCopyTo() || io.Spec.NeedsCopyBack())

	a := Scalar("a").Set(2.5)
	assert.Equal(t, 2.5, a.Spec.Value)
	assert.Equal(t, "const real_t a", a.Spec.Declaration())
	require.NoError(t, a.Spec.Validate())
}

func TestParamSpec_Validate(t *testing.T) {
	for name, p := range map[string]*ParamBuilder{
		"unnamed":        Input("").Bind([]float64{1}),
		"unbound":        Output("y"),
		"scalar array":   Scalar("a").Bind([]float64{1}),
		"input copyback": Input("x").Bind([]float64{1}).CopyBack(),
	} {
		assert.Error(t, p.Spec.Validate(), name)
	}
}

func TestGenerateKernelTemplate(t *testing.T) {
	kb := NewBuilder(Config{Nx: 4, Ny: 3, Nz: 1})
	params := []*ParamBuilder{
		Input("x").Bind([]float64{0}),
		Output("y").Bind([]float64{0}),
		Scalar("a"),
	}
	assert.Equal(t, "const real_t* x,\n\treal_t* y,\n\tconst real_t a", GenerateKernelSignature(params))

	src := kb.GenerateKernelTemplate("scale", params, "\n  y[i + NX*j] = a*x[i + NX*j];\n")
	assert.True(t, strings.HasPrefix(src, "@kernel void scale(\n\tconst real_t* x,"))
	assert.Contains(t, src, "for (int j = 0; j < NY; ++j; @outer) {")
	assert.Contains(t, src, "for (int i = 0; i < NX; ++i; @inner) {")
	assert.Contains(t, src, "\t\t\ty[i + NX*j] = a*x[i + NX*j];\n")
	assert.Equal(t, strings.Count(src, "{"), strings.Count(src, "}"))
}
