package field

import (
	"context"
	"fmt"

	"github.com/notargets/FVOcean/grid"
	"github.com/notargets/FVOcean/runner"
)

// SizeMismatchError reports a mask or destination whose shape differs from the
// operand's
type SizeMismatchError struct {
	Expected [3]int
	Got      [3]int
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("size mismatch: expected %dx%dx%d, got %dx%dx%d",
		e.Expected[0], e.Expected[1], e.Expected[2], e.Got[0], e.Got[1], e.Got[2])
}

// Condition decides whether the operand value at an interior index is kept
type Condition func(i, j, k int, value float64) bool

// ConditionalOperation is a lazy view of an operand: where the condition holds
// it yields transform(operand), elsewhere the mask value. It owns no storage.
type ConditionalOperation struct {
	operand   AbstractField
	transform func(float64) float64
	condition Condition
	mask      float64

	// Boolean mask indexed relative to the operand interior, kept for shape
	// reporting
	maskArray [][][]bool
}

// ConditionalOption configures a ConditionalOperation
type ConditionalOption func(c *ConditionalOperation)

// WithTransform sets the function applied to kept values
func WithTransform(fn func(float64) float64) ConditionalOption {
	return func(c *ConditionalOperation) { c.transform = fn }
}

// WithCondition sets a predicate on index and operand value
func WithCondition(cond Condition) ConditionalOption {
	return func(c *ConditionalOperation) { c.condition = cond }
}

// WithMask sets a boolean array condition indexed [i][j][k] over the operand
// interior. Its shape must match the interior exactly.
func WithMask(mask [][][]bool) ConditionalOption {
	return func(c *ConditionalOperation) { c.maskArray = mask }
}

// WithMaskValue sets the value returned where the condition fails
func WithMaskValue(v float64) ConditionalOption {
	return func(c *ConditionalOperation) { c.mask = v }
}

// NewConditionalOperation builds a conditional view of operand. A boolean mask
// whose shape differs from the operand interior yields *SizeMismatchError.
func NewConditionalOperation(operand AbstractField, opts ...ConditionalOption) (*ConditionalOperation, error) {
	c := &ConditionalOperation{operand: operand}
	for _, opt := range opts {
		opt(c)
	}
	if c.maskArray != nil {
		if c.condition != nil {
			return nil, fmt.Errorf("conditional operation: both a condition and a mask array given")
		}
		cond, err := maskCondition(operand.Interior(), c.maskArray)
		if err != nil {
			return nil, err
		}
		c.condition = cond
	}
	return c, nil
}

func maskCondition(r runner.IndexRange, mask [][][]bool) (Condition, error) {
	ni, nj, nk := r.Extent()
	expected := [3]int{ni, nj, nk}
	got := [3]int{len(mask), 0, 0}
	if len(mask) > 0 {
		got[1] = len(mask[0])
		if len(mask[0]) > 0 {
			got[2] = len(mask[0][0])
		}
	}
	mismatch := got != expected
	for _, plane := range mask {
		if len(plane) != nj {
			mismatch = true
		}
		for _, row := range plane {
			if len(row) != nk {
				mismatch = true
			}
		}
	}
	if mismatch {
		return nil, &SizeMismatchError{Expected: expected, Got: got}
	}
	return func(i, j, k int, _ float64) bool {
		i, j, k = i-r.Imin, j-r.Jmin, k-r.Kmin
		if i < 0 || i >= ni || j < 0 || j >= nj || k < 0 || k >= nk {
			return false
		}
		return mask[i][j][k]
	}, nil
}

// At evaluates the view at (i,j,k)
func (c *ConditionalOperation) At(i, j, k int) float64 {
	v := c.operand.At(i, j, k)
	if c.condition != nil && !c.condition(i, j, k, v) {
		return c.mask
	}
	if c.transform != nil {
		return c.transform(v)
	}
	return v
}

func (c *ConditionalOperation) Location() grid.Location { return c.operand.Location() }

func (c *ConditionalOperation) Grid() grid.Grid { return c.operand.Grid() }

func (c *ConditionalOperation) Interior() runner.IndexRange { return c.operand.Interior() }

// MaskValue is the value produced where the condition fails
func (c *ConditionalOperation) MaskValue() float64 { return c.mask }

// Compose applies f to the view. Without a condition the transforms compose
// directly; otherwise the result wraps c, so f also sees the mask value.
func (c *ConditionalOperation) Compose(f func(float64) float64) *ConditionalOperation {
	if c.condition == nil {
		inner := c.transform
		composed := f
		if inner != nil {
			composed = func(v float64) float64 { return f(inner(v)) }
		}
		return &ConditionalOperation{operand: c.operand, transform: composed, mask: c.mask}
	}
	return &ConditionalOperation{operand: c, transform: f, mask: f(c.mask)}
}

// Materialize evaluates the view over the operand interior into dst, which
// must share the operand's grid size and location
func (c *ConditionalOperation) Materialize(ctx context.Context, arch runner.Architecture, dst *Field) error {
	if dst.Location() != c.Location() {
		return fmt.Errorf("materialize into %s: location %s, operand at %s", dst.Name, dst.Location(), c.Location())
	}
	r := c.Interior()
	dr := dst.Interior()
	if r != dr {
		ni, nj, nk := r.Extent()
		di, dj, dk := dr.Extent()
		return &SizeMismatchError{Expected: [3]int{ni, nj, nk}, Got: [3]int{di, dj, dk}}
	}
	return arch.Launch(ctx, r, func(i, j, k int) {
		dst.Set(i, j, k, c.At(i, j, k))
	})
}

// holds reports whether the condition of c and of every conditional view it
// wraps is met at (i,j,k)
func (c *ConditionalOperation) holds(i, j, k int) bool {
	if inner, ok := c.operand.(*ConditionalOperation); ok && !inner.holds(i, j, k) {
		return false
	}
	return c.condition == nil || c.condition(i, j, k, c.operand.At(i, j, k))
}

// Count is the number of interior points where the condition holds, including
// the conditions of wrapped views
func (c *ConditionalOperation) Count() int {
	ones := &ConditionalOperation{
		operand:   c.operand,
		transform: func(float64) float64 { return 1 },
		condition: func(i, j, k int, _ float64) bool { return c.holds(i, j, k) },
		mask:      0,
	}
	return int(Sum(ones) + 0.5)
}
