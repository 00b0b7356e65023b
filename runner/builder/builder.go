package builder

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// DataType represents the precision of numerical data
type DataType int

const (
	Float32 DataType = iota + 1
	Float64
	INT32
	INT64
)

// Builder generates the kernel preamble shared by every device kernel of a grid
type Builder struct {
	// Interior grid size and halo width
	Nx, Ny, Nz int
	Halo       int

	// Type configuration
	FloatType DataType
	IntType   DataType

	// Static data to embed
	StaticMatrices map[string]mat.Matrix

	// Generated code
	KernelPreamble string
}

// Config holds configuration for creating a Builder
type Config struct {
	Nx, Ny, Nz int
	Halo       int
	FloatType  DataType
	IntType    DataType
}

// NewBuilder creates a new Builder instance
func NewBuilder(cfg Config) *Builder {
	if cfg.Nx < 1 || cfg.Ny < 1 || cfg.Nz < 1 {
		panic(fmt.Sprintf("grid dimensions must be positive, got %dx%dx%d",
			cfg.Nx, cfg.Ny, cfg.Nz))
	}
	if cfg.Halo < 0 {
		panic(fmt.Sprintf("halo width must be non-negative, got %d", cfg.Halo))
	}
	// Set defaults
	floatType := cfg.FloatType
	if floatType == 0 {
		floatType = Float64
	}
	intType := cfg.IntType
	if intType == 0 {
		intType = INT64
	}
	return &Builder{
		Nx:             cfg.Nx,
		Ny:             cfg.Ny,
		Nz:             cfg.Nz,
		Halo:           cfg.Halo,
		FloatType:      floatType,
		IntType:        intType,
		StaticMatrices: make(map[string]mat.Matrix),
	}
}

// AddStaticMatrix adds a matrix to be embedded as static const in kernels
func (kb *Builder) AddStaticMatrix(name string, m mat.Matrix) {
	kb.StaticMatrices[name] = m
}

// TotalSize returns the padded storage extent along each axis
func (kb *Builder) TotalSize() (tx, ty, tz int) {
	return kb.Nx + 2*kb.Halo, kb.Ny + 2*kb.Halo, kb.Nz + 2*kb.Halo
}

// GeneratePreamble builds type definitions, grid constants, static tables and
// index macros
func (kb *Builder) GeneratePreamble() string {
	var sb strings.Builder

	// 1. Type definitions and constants
	sb.WriteString(kb.generateTypeDefinitions())

	// 2. Static matrix declarations
	sb.WriteString(kb.generateStaticMatrices())

	// 3. Halo-aware index macros
	sb.WriteString(kb.generateIndexMacros())

	kb.KernelPreamble = sb.String()
	return kb.KernelPreamble
}

// generateTypeDefinitions creates type definitions based on precision settings
func (kb *Builder) generateTypeDefinitions() string {
	var sb strings.Builder

	floatTypeStr := "double"
	floatSuffix := ""
	if kb.FloatType == Float32 {
		floatTypeStr = "float"
		floatSuffix = "f"
	}

	intTypeStr := "long"
	if kb.IntType == INT32 {
		intTypeStr = "int"
	}

	sb.WriteString(fmt.Sprintf("typedef %s real_t;\n", floatTypeStr))
	sb.WriteString(fmt.Sprintf("typedef %s int_t;\n", intTypeStr))
	sb.WriteString(fmt.Sprintf("#define REAL_ZERO 0.0%s\n", floatSuffix))
	sb.WriteString(fmt.Sprintf("#define REAL_ONE 1.0%s\n", floatSuffix))
	sb.WriteString("\n")

	tx, ty, tz := kb.TotalSize()
	sb.WriteString(fmt.Sprintf("#define NX %d\n", kb.Nx))
	sb.WriteString(fmt.Sprintf("#define NY %d\n", kb.Ny))
	sb.WriteString(fmt.Sprintf("#define NZ %d\n", kb.Nz))
	sb.WriteString(fmt.Sprintf("#define HALO %d\n", kb.Halo))
	sb.WriteString(fmt.Sprintf("#define TX %d\n", tx))
	sb.WriteString(fmt.Sprintf("#define TY %d\n", ty))
	sb.WriteString(fmt.Sprintf("#define TZ %d\n", tz))
	sb.WriteString("\n")

	return sb.String()
}

// generateStaticMatrices converts matrices to static array initializations,
// sorted by name so the preamble is reproducible
func (kb *Builder) generateStaticMatrices() string {
	var sb strings.Builder

	if len(kb.StaticMatrices) > 0 {
		names := make([]string, 0, len(kb.StaticMatrices))
		for name := range kb.StaticMatrices {
			names = append(names, name)
		}
		sort.Strings(names)

		sb.WriteString("// Static matrices\n")
		for _, name := range names {
			sb.WriteString(kb.formatStaticMatrix(name, kb.StaticMatrices[name]))
		}
	}

	return sb.String()
}

// formatStaticMatrix formats a single matrix as a static row-major C array.
// Stencil tables are read as name[r][m]: candidate r, stencil point m.
func (kb *Builder) formatStaticMatrix(name string, m mat.Matrix) string {
	rows, cols := m.Dims()
	var sb strings.Builder

	typeStr := "double"
	if kb.FloatType == Float32 {
		typeStr = "float"
	}

	sb.WriteString(fmt.Sprintf("const %s %s[%d][%d] = {\n", typeStr, name, rows, cols))
	for i := 0; i < rows; i++ {
		sb.WriteString("    {")
		for j := 0; j < cols; j++ {
			if j > 0 {
				sb.WriteString(", ")
			}
			val := m.At(i, j)
			if kb.FloatType == Float32 {
				sb.WriteString(fmt.Sprintf("%.7ef", val))
			} else {
				sb.WriteString(fmt.Sprintf("%.15e", val))
			}
		}
		sb.WriteString("}")
		if i < rows-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("};\n\n")

	return sb.String()
}

// generateIndexMacros creates the storage index macro matching field layout:
// i fastest, halo offset applied on every axis
func (kb *Builder) generateIndexMacros() string {
	var sb strings.Builder

	sb.WriteString("// Halo-aware storage index\n")
	sb.WriteString("#define IDX(i, j, k) ((((k) + HALO) * TY + ((j) + HALO)) * TX + ((i) + HALO))\n")
	sb.WriteString("#define IDX2(i, j) IDX(i, j, 0)\n")
	sb.WriteString("\n")

	return sb.String()
}

// GetIntSize returns the size of the integer type in bytes
func (kb *Builder) GetIntSize() int {
	if kb.IntType == INT32 {
		return 4
	}
	return 8
}

// SizeOfType returns the size in bytes of a data type
func SizeOfType(dt DataType) int64 {
	switch dt {
	case Float32, INT32:
		return 4
	default:
		return 8
	}
}
