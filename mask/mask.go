// Package mask provides masks which partition the sites of a sample
// into active and frozen sites.
package mask

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// ErrShape is returned when a tensor does not match the shape of a mask
var ErrShape = errors.New("mask: shape mismatch")

// Channels of a Pattern
const (
	Active = 0
	Frozen = 1
)

// Pattern is a fixed partition of the sites of a sample. Dimension 0
// of every tensor given to a Pattern is the batch dimension, the
// remaining dimensions must equal the shape of the Pattern.
type Pattern struct {
	shape  tensor.Shape
	active []bool
	fill   float64
}

// Opt configures a Pattern
type Opt func(*Pattern)

// WithFill sets the value placed in the frozen sites of the active part
// of a split. It should lie in the domain of the module the active part
// is given to. The default is 0.
func WithFill(v float64) Opt {
	return func(p *Pattern) { p.fill = v }
}

// New returns a new Pattern of the given site shape. Site i (in
// row-major order) is active if active[i] is true.
func New(shape []int, active []bool, opts ...Opt) (*Pattern, error) {
	s := tensor.Shape(shape).Clone()
	if len(s) == 0 || s.TotalSize() != len(active) {
		return nil, fmt.Errorf("new: shape %v does not hold %v sites", s,
			len(active))
	}

	p := &Pattern{
		shape:  s,
		active: append([]bool(nil), active...),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// NewCheckerboard returns a new Pattern in which a site is active if
// the sum of its coordinates plus parity is even
func NewCheckerboard(parity int, shape []int, opts ...Opt) (*Pattern,
	error) {
	s := tensor.Shape(shape)
	if len(s) == 0 || s.TotalSize() <= 0 {
		return nil, fmt.Errorf("newCheckerboard: invalid shape %v", s)
	}

	active := make([]bool, s.TotalSize())
	for i := range active {
		sum := parity
		for _, c := range coords(i, s) {
			sum += c
		}
		active[i] = sum%2 == 0
	}

	return New(shape, active, opts...)
}

// coords returns the row-major coordinates of flat index i in shape
func coords(i int, shape tensor.Shape) []int {
	c := make([]int, len(shape))
	for d := len(shape) - 1; d >= 0; d-- {
		c[d] = i % shape[d]
		i /= shape[d]
	}
	return c
}

// Shape returns the site shape of the receiver
func (p *Pattern) Shape() tensor.Shape { return p.shape.Clone() }

// IsActive returns whether site i is active
func (p *Pattern) IsActive(i int) bool { return p.active[i] }

// Invert returns the complementary Pattern, in which active and frozen
// sites are swapped
func (p *Pattern) Invert() *Pattern {
	active := make([]bool, len(p.active))
	for i, a := range p.active {
		active[i] = !a
	}
	return &Pattern{shape: p.shape.Clone(), active: active, fill: p.fill}
}

// Split separates x into its active and frozen parts, both of the
// shape of x. Frozen sites of the active part hold the fill value,
// active sites of the frozen part hold 0.
func (p *Pattern) Split(x *tensor.Dense) (*tensor.Dense, *tensor.Dense,
	error) {
	if err := p.check(x); err != nil {
		return nil, nil, errors.Wrap(err, "split")
	}

	switch data := x.Data().(type) {
	case []float64:
		a, f := split(p, data, data, p.fill)
		return wrap(x.Shape(), a), wrap(x.Shape(), f), nil
	case []float32:
		a, f := split(p, data, data, float32(p.fill))
		return wrap(x.Shape(), a), wrap(x.Shape(), f), nil
	}
	return nil, nil, fmt.Errorf("split: unsupported dtype %v", x.Dtype())
}

// Purify zeroes every site of values which is not in channel
func (p *Pattern) Purify(values *tensor.Dense, channel int) (*tensor.Dense,
	error) {
	if err := p.check(values); err != nil {
		return nil, errors.Wrap(err, "purify")
	}
	if channel != Active && channel != Frozen {
		return nil, fmt.Errorf("purify: unknown channel %v", channel)
	}

	switch data := values.Data().(type) {
	case []float64:
		a, f := split(p, data, data, 0)
		return wrap(values.Shape(), pick(channel, a, f)), nil
	case []float32:
		a, f := split(p, data, data, 0)
		return wrap(values.Shape(), pick(channel, a, f)), nil
	}
	return nil, fmt.Errorf("purify: unsupported dtype %v", values.Dtype())
}

// Cat merges the active sites of active and the frozen sites of frozen
func (p *Pattern) Cat(active, frozen *tensor.Dense) (*tensor.Dense, error) {
	if err := p.check(active); err != nil {
		return nil, errors.Wrap(err, "cat")
	}
	if err := p.check(frozen); err != nil {
		return nil, errors.Wrap(err, "cat")
	}
	if !active.Shape().Eq(frozen.Shape()) {
		return nil, errors.Wrapf(ErrShape, "cat: active shape %v and "+
			"frozen shape %v", active.Shape(), frozen.Shape())
	}

	switch a := active.Data().(type) {
	case []float64:
		if f, ok := frozen.Data().([]float64); ok {
			return wrap(active.Shape(), merge(p, a, f)), nil
		}
	case []float32:
		if f, ok := frozen.Data().([]float32); ok {
			return wrap(active.Shape(), merge(p, a, f)), nil
		}
	}
	return nil, fmt.Errorf("cat: unsupported dtypes %v and %v",
		active.Dtype(), frozen.Dtype())
}

func (p *Pattern) check(x *tensor.Dense) error {
	if x == nil {
		return errors.Wrap(ErrShape, "nil tensor")
	}
	if x.Dims() != len(p.shape)+1 ||
		!tensor.Shape(x.Shape()[1:]).Eq(p.shape) {
		return errors.Wrapf(ErrShape, "expected sites of shape %v but "+
			"got tensor of shape %v", p.shape, x.Shape())
	}
	return nil
}

// split returns a copy of the active sites of a with frozen sites set to
// fill, and a copy of the frozen sites of f with active sites set to 0
func split[T float32 | float64](p *Pattern, a, f []T, fill T) ([]T, []T) {
	active := make([]T, len(a))
	frozen := make([]T, len(f))
	n := len(p.active)

	for i := range a {
		if p.active[i%n] {
			active[i] = a[i]
		} else {
			active[i] = fill
			frozen[i] = f[i]
		}
	}
	return active, frozen
}

// merge takes active sites from a and frozen sites from f
func merge[T float32 | float64](p *Pattern, a, f []T) []T {
	out := make([]T, len(a))
	n := len(p.active)

	for i := range out {
		if p.active[i%n] {
			out[i] = a[i]
		} else {
			out[i] = f[i]
		}
	}
	return out
}

func pick[T any](channel int, active, frozen T) T {
	if channel == Active {
		return active
	}
	return frozen
}

func wrap[T float32 | float64](shape tensor.Shape, data []T) *tensor.Dense {
	return tensor.New(
		tensor.WithShape(shape.Clone()...),
		tensor.WithBacking(data),
	)
}
