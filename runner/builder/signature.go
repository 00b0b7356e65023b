package builder

import (
	"fmt"
	"strings"
)

// GenerateKernelSignature generates the parameter list of a kernel from its
// parameters, in argument order
func GenerateKernelSignature(params []*ParamBuilder) string {
	decl := make([]string, len(params))
	for n, p := range params {
		decl[n] = p.Spec.Declaration()
	}
	return strings.Join(decl, ",\n\t")
}

// GenerateKernelDeclaration generates a complete kernel function declaration
func GenerateKernelDeclaration(kernelName string, params []*ParamBuilder) string {
	return fmt.Sprintf("@kernel void %s(\n\t%s\n)", kernelName, GenerateKernelSignature(params))
}

// GenerateKernelTemplate wraps body in a kernel that visits every interior
// column (i, j) of the grid, rows outer and points inner. The body sees i and
// j and loops over k itself when it needs to.
func (kb *Builder) GenerateKernelTemplate(kernelName string, params []*ParamBuilder, body string) string {
	var sb strings.Builder

	sb.WriteString(GenerateKernelDeclaration(kernelName, params))
	sb.WriteString(" {\n")
	sb.WriteString("\tfor (int j = 0; j < NY; ++j; @outer) {\n")
	sb.WriteString("\t\tfor (int i = 0; i < NX; ++i; @inner) {\n")
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		sb.WriteString("\t\t\t")
		sb.WriteString(strings.TrimSpace(line))
		sb.WriteString("\n")
	}
	sb.WriteString("\t\t}\n")
	sb.WriteString("\t}\n")
	sb.WriteString("}\n")
	return sb.String()
}
