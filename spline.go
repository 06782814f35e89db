package bijector

import (
	"math"

	"github.com/pkg/errors"
	"github.com/samuelfneumann/top"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/bijector/spline"
)

// Evaluator is a monotonically increasing scalar function with an
// inverse. The derivatives returned must be strictly positive.
type Evaluator interface {
	// At returns f(x) and df/dx at x
	At(x float64) (y, dydx float64, err error)

	// InverseAt returns f⁻¹(y) and df⁻¹/dy at y
	InverseAt(y float64) (x, dxdy float64, err error)
}

// bounded is implemented by Evaluators that know the intervals they
// are defined on
type bounded interface {
	Domain() (lo, hi float64)
	Range() (lo, hi float64)
}

// Spline is a learnable monotonic bijection built from Evaluators. A
// Spline either shares a single Evaluator between all elements of a
// sample or holds one Evaluator per site.
type Spline struct {
	label string
	shape tensor.Shape // Site shape; empty when the Evaluator is shared
	sites []Evaluator
}

// NewSpline returns a new Spline of rational-quadratic splines with
// knots knots each. By default, the spline maps [0, 1] onto [0, 1]; use
// WithDomain, WithRange, and WithAntiLeft to change this. The splines
// are initialized to the straight line between the corners of their
// domain and range.
func NewSpline(knots int, opts ...Option) (*Spline, error) {
	c := newConfig("spline", opts)

	extrap := spline.None
	if c.antiLeft {
		extrap = spline.Anti
	}

	n := tensor.Shape(c.splineShape).TotalSize()
	if len(c.splineShape) == 0 {
		n = 1
	}

	sites := make([]Evaluator, n)
	for i := range sites {
		rq, err := spline.New(knots, c.xlim, c.ylim, extrap)
		if err != nil {
			return nil, errors.Wrapf(ErrConfiguration, "newSpline: %v", err)
		}
		sites[i] = rq
	}

	return &Spline{
		label: c.label,
		shape: tensor.Shape(c.splineShape).Clone(),
		sites: sites,
	}, nil
}

// NewSplineOf returns a new Spline from existing Evaluators. A single
// Evaluator is shared between all elements, otherwise the shape set by
// WithSplineShape must hold exactly len(evaluators) sites.
func NewSplineOf(evaluators []Evaluator, opts ...Option) (*Spline, error) {
	c := newConfig("spline", opts)

	if len(evaluators) == 0 {
		return nil, errors.Wrap(ErrConfiguration, "newSplineOf: no "+
			"evaluators")
	}
	for i, e := range evaluators {
		if e == nil {
			return nil, errors.Wrapf(ErrConfiguration, "newSplineOf: nil "+
				"evaluator at index %d", i)
		}
	}

	shape := tensor.Shape(c.splineShape).Clone()
	if len(shape) == 0 && len(evaluators) != 1 {
		return nil, errors.Wrapf(ErrConfiguration, "newSplineOf: %d "+
			"evaluators require a spline shape", len(evaluators))
	} else if len(shape) > 0 && shape.TotalSize() != len(evaluators) {
		return nil, errors.Wrapf(ErrConfiguration, "newSplineOf: shape %v "+
			"does not hold %d evaluators", shape, len(evaluators))
	}

	return &Spline{
		label: c.label,
		shape: shape,
		sites: append([]Evaluator(nil), evaluators...),
	}, nil
}

func (s *Spline) Label() string { return s.label }

// Shape returns the site shape of the receiver, which is empty if a
// single Evaluator is shared between all elements
func (s *Spline) Shape() tensor.Shape { return s.shape.Clone() }

// Sites returns the number of Evaluators held by the receiver
func (s *Spline) Sites() int { return len(s.sites) }

// Site returns the Evaluator used for site i
func (s *Spline) Site(i int) Evaluator { return s.sites[i] }

// Forward evaluates the spline at x
func (s *Spline) Forward(x, log0 *tensor.Dense,
	mode Density) (*tensor.Dense, *tensor.Dense, error) {
	y, log1, err := s.run(x, log0, mode, false)
	if err != nil {
		return nil, nil, errors.Wrap(err, "forward")
	}
	return y, log1, nil
}

// Backward evaluates the inverse spline at y
func (s *Spline) Backward(y, log0 *tensor.Dense,
	mode Density) (*tensor.Dense, *tensor.Dense, error) {
	x, log1, err := s.run(y, log0, mode, true)
	if err != nil {
		return nil, nil, errors.Wrap(err, "backward")
	}
	return x, log1, nil
}

func (s *Spline) run(x, log0 *tensor.Dense, mode Density,
	inverse bool) (*tensor.Dense, *tensor.Dense, error) {
	x, err := checkSample(x)
	if err != nil {
		return nil, nil, err
	}
	if len(s.shape) > 0 && !tensor.Shape(x.Shape()[1:]).Eq(s.shape) {
		return nil, nil, errors.Wrapf(ErrShapeMismatch, "%s: expected "+
			"samples of shape %v but got %v", s.label, s.shape,
			x.Shape()[1:])
	}
	xs, err := s.inputs(x, inverse)
	if err != nil {
		return nil, nil, errors.Wrap(err, s.label)
	}

	var y, logJ *tensor.Dense
	switch x.Dtype() {
	case tensor.Float64:
		y, logJ, err = evaluate[float64](s.sites, x.Shape(), xs, inverse)
	default:
		y, logJ, err = evaluate[float32](s.sites, x.Shape(), xs, inverse)
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, s.label)
	}

	logJ, err = Reduce(logJ, mode)
	if err != nil {
		return nil, nil, err
	}
	log1, err := accumulate(log0, logJ)
	if err != nil {
		return nil, nil, err
	}
	return y, log1, nil
}

// inputs returns the elements of x in float64. When all Evaluators share
// the same bounds, elements the clamp mask flags must lie within the
// bounds in the dtype of x, otherwise an ErrDomain is returned. A
// float32 bound such as float32(π) may exceed the float64 bound once
// widened, and such elements are clamped onto the float64 bound.
func (s *Spline) inputs(x *tensor.Dense, inverse bool) ([]float64, error) {
	wide := x
	if x.Dtype() == tensor.Float32 {
		wide = fromSlice(x.Shape(), widen(float32s(x)))
	}

	lo, hi, ok := s.bounds(inverse)
	if !ok {
		return float64s(wide), nil
	}

	inside, err := top.ClampB(wide, lo, hi)
	if err != nil {
		return nil, errors.Wrap(err, "inputs")
	}
	flagged := zeros(inside.Data())
	if len(flagged) == 0 {
		return float64s(wide), nil
	}

	xs := float64s(wide)
	for _, i := range flagged {
		if !within(xs[i], lo, hi, x.Dtype()) {
			return nil, errors.Wrapf(ErrDomain, "element %d = %v not in "+
				"[%v, %v]", i, xs[i], lo, hi)
		}
	}

	clamped, err := tensor.Clamp(wide, lo, hi)
	if err != nil {
		return nil, errors.Wrap(err, "inputs")
	}
	return float64s(clamped.(*tensor.Dense)), nil
}

// bounds returns the domain, or the range if inverse, shared by all
// Evaluators of the receiver
func (s *Spline) bounds(inverse bool) (lo, hi float64, ok bool) {
	for i, e := range s.sites {
		b, isBounded := e.(bounded)
		if !isBounded {
			return 0, 0, false
		}

		l, h := b.Domain()
		if inverse {
			l, h = b.Range()
		}
		if i > 0 && (l != lo || h != hi) {
			return 0, 0, false
		}
		lo, hi = l, h
	}
	return lo, hi, true
}

// within reports whether v lies in [lo, hi] at the precision of dt
func within(v, lo, hi float64, dt tensor.Dtype) bool {
	if dt == tensor.Float32 {
		v32 := float32(v)
		return v32 >= float32(lo) && v32 <= float32(hi)
	}
	return v >= lo && v <= hi
}

// zeros returns the indices of the zero elements of a clamp mask
func zeros(data interface{}) []int {
	var idx []int
	switch d := data.(type) {
	case []float64:
		for i, v := range d {
			if v == 0 {
				idx = append(idx, i)
			}
		}
	case []float32:
		for i, v := range d {
			if v == 0 {
				idx = append(idx, i)
			}
		}
	case []bool:
		for i, v := range d {
			if !v {
				idx = append(idx, i)
			}
		}
	}
	return idx
}

func widen(xs []float32) []float64 {
	out := make([]float64, len(xs))
	for i, v := range xs {
		out[i] = float64(v)
	}
	return out
}

func evaluate[T float](sites []Evaluator, shape tensor.Shape, xs []float64,
	inverse bool) (*tensor.Dense, *tensor.Dense, error) {
	ys := make([]T, len(xs))
	logJ := make([]T, len(xs))

	for i, x := range xs {
		e := sites[i%len(sites)]

		var y, grad float64
		var err error
		if inverse {
			y, grad, err = e.InverseAt(x)
		} else {
			y, grad, err = e.At(x)
		}
		if err != nil {
			return nil, nil, errors.Wrapf(ErrDomain, "x[%d]: %v", i, err)
		}
		if !(grad > 0) || math.IsInf(grad, 0) {
			return nil, nil, errors.Wrapf(ErrDomain, "x[%d]: derivative %v "+
				"is not positive and finite", i, grad)
		}

		ys[i] = T(y)
		logJ[i] = T(math.Log(grad))
	}

	return fromSlice(shape, ys), fromSlice(shape, logJ), nil
}
