package bijector

import (
	"math"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gorgonia.org/tensor"
)

// Identity is the identity map. Its log-Jacobian is zero.
type Identity struct {
	label string
}

// NewIdentity returns a new Identity
func NewIdentity(opts ...Option) *Identity {
	return &Identity{label: newConfig("identity", opts).label}
}

func (i *Identity) Label() string { return i.label }

// Forward returns x itself
func (i *Identity) Forward(x, log0 *tensor.Dense,
	mode Density) (*tensor.Dense, *tensor.Dense, error) {
	x, err := checkSample(x)
	if err != nil {
		return nil, nil, errors.Wrap(err, "forward")
	}

	log1, err := accumulate(log0, zeroDensity(x, mode))
	if err != nil {
		return nil, nil, errors.Wrap(err, "forward")
	}
	return x, log1, nil
}

// Backward returns y itself
func (i *Identity) Backward(y, log0 *tensor.Dense,
	mode Density) (*tensor.Dense, *tensor.Dense, error) {
	return i.Forward(y, log0, mode)
}

// Clone is the identity map which returns a copy of its input
type Clone struct {
	label string
}

// NewClone returns a new Clone
func NewClone(opts ...Option) *Clone {
	return &Clone{label: newConfig("clone", opts).label}
}

func (c *Clone) Label() string { return c.label }

// Forward returns a copy of x
func (c *Clone) Forward(x, log0 *tensor.Dense,
	mode Density) (*tensor.Dense, *tensor.Dense, error) {
	x, err := checkSample(x)
	if err != nil {
		return nil, nil, errors.Wrap(err, "forward")
	}

	log1, err := accumulate(log0, zeroDensity(x, mode))
	if err != nil {
		return nil, nil, errors.Wrap(err, "forward")
	}
	return x.Clone().(*tensor.Dense), log1, nil
}

// Backward returns a copy of y
func (c *Clone) Backward(y, log0 *tensor.Dense,
	mode Density) (*tensor.Dense, *tensor.Dense, error) {
	return c.Forward(y, log0, mode)
}

// ScaleNet scales its input by the learnable factor exp(logw):
//
//		y = x · exp(logw)
//
// Each element contributes logw to the log-Jacobian.
type ScaleNet struct {
	label string
	logw  float64
}

// NewScaleNet returns a new ScaleNet with logw = 0, i.e. the identity
func NewScaleNet(opts ...Option) *ScaleNet {
	return &ScaleNet{label: newConfig("scale", opts).label}
}

func (s *ScaleNet) Label() string { return s.label }

// LogW returns the log of the scale factor
func (s *ScaleNet) LogW() float64 { return s.logw }

// SetLogW sets the log of the scale factor
func (s *ScaleNet) SetLogW(logw float64) { s.logw = logw }

// Forward scales x by exp(logw)
func (s *ScaleNet) Forward(x, log0 *tensor.Dense,
	mode Density) (*tensor.Dense, *tensor.Dense, error) {
	x, err := checkSample(x)
	if err != nil {
		return nil, nil, errors.Wrap(err, "forward")
	}

	y, err := x.MulScalar(scalarOf(x.Dtype(), math.Exp(s.logw)), true)
	if err != nil {
		return nil, nil, errors.Wrap(err, "forward")
	}

	return s.finish(y, log0, s.logw, mode)
}

// Backward divides y by exp(logw)
func (s *ScaleNet) Backward(y, log0 *tensor.Dense,
	mode Density) (*tensor.Dense, *tensor.Dense, error) {
	y, err := checkSample(y)
	if err != nil {
		return nil, nil, errors.Wrap(err, "backward")
	}

	x, err := y.DivScalar(scalarOf(y.Dtype(), math.Exp(s.logw)), true)
	if err != nil {
		return nil, nil, errors.Wrap(err, "backward")
	}

	return s.finish(x, log0, -s.logw, mode)
}

func (s *ScaleNet) finish(out, log0 *tensor.Dense, logw float64,
	mode Density) (*tensor.Dense, *tensor.Dense, error) {
	if err := checkFinite(out, "scaled sample"); err != nil {
		return nil, nil, errors.Wrap(err, s.label)
	}

	log1, err := accumulate(log0, s.logJacobian(out, logw, mode))
	if err != nil {
		return nil, nil, errors.Wrap(err, s.label)
	}
	return out, log1, nil
}

// logJacobian returns the log-Jacobian of scaling by exp(logw). In
// Reduced mode, each batch element receives logw times the number of
// sites.
func (s *ScaleNet) logJacobian(x *tensor.Dense, logw float64,
	mode Density) *tensor.Dense {
	shape := densityShape(x.Shape(), mode)
	value := logw
	if mode == Reduced {
		value = logw * float64(sites(x))
	}

	if x.Dtype() == tensor.Float32 {
		return fromSlice(shape, filled(shape.TotalSize(), float32(value)))
	}
	return fromSlice(shape, filled(shape.TotalSize(), value))
}

func filled[T float](size int, v T) []T {
	out := make([]T, size)
	for i := range out {
		out[i] = v
	}
	return out
}

// SgnBias pushes its input away from zero by w²:
//
//		y = x + sgn(x) · w²
//
// The map is not continuous at 0, so SgnBias may only be used as the
// first stage of a Pipeline, where its input does not depend on any
// learned parameter. Its log-Jacobian is zero.
type SgnBias struct {
	label string
	w     []float64
}

// NewSgnBias returns a new SgnBias with size parameters drawn
// uniformly from [0, 0.1). A size of 1 shares the bias between all
// sites, otherwise size must equal the number of sites in a sample.
func NewSgnBias(size int, opts ...Option) (*SgnBias, error) {
	c := newConfig("sgnbias", opts)
	if size < 1 {
		return nil, errors.Wrapf(ErrConfiguration, "newSgnBias: expected "+
			"size >= 1 but got %v", size)
	}

	src := rand.New(rand.NewSource(c.seed))
	w := make([]float64, size)
	for i := range w {
		w[i] = src.Float64() / 10
	}

	return &SgnBias{label: c.label, w: w}, nil
}

func (s *SgnBias) Label() string { return s.label }

func (s *SgnBias) mustLead() bool { return true }

// W returns a copy of the bias parameters
func (s *SgnBias) W() []float64 { return append([]float64(nil), s.w...) }

// SetW sets the bias parameters. The length of w must not change.
func (s *SgnBias) SetW(w []float64) error {
	if len(w) != len(s.w) {
		return errors.Wrapf(ErrShapeMismatch, "setW: expected %d "+
			"parameters but got %d", len(s.w), len(w))
	}
	copy(s.w, w)
	return nil
}

// Forward computes x + sgn(x)·w²
func (s *SgnBias) Forward(x, log0 *tensor.Dense,
	mode Density) (*tensor.Dense, *tensor.Dense, error) {
	y, log1, err := s.shift(x, log0, mode, 1)
	if err != nil {
		return nil, nil, errors.Wrap(err, "forward")
	}
	return y, log1, nil
}

// Backward computes y - sgn(y)·w². Values with 0 < |y| < w² are not in
// the image of Forward and result in an ErrDomain.
func (s *SgnBias) Backward(y, log0 *tensor.Dense,
	mode Density) (*tensor.Dense, *tensor.Dense, error) {
	x, log1, err := s.shift(y, log0, mode, -1)
	if err != nil {
		return nil, nil, errors.Wrap(err, "backward")
	}
	return x, log1, nil
}

func (s *SgnBias) shift(x, log0 *tensor.Dense, mode Density,
	direction float64) (*tensor.Dense, *tensor.Dense, error) {
	x, err := checkSample(x)
	if err != nil {
		return nil, nil, err
	}

	n := sites(x)
	if len(s.w) != 1 && len(s.w) != n {
		return nil, nil, errors.Wrapf(ErrShapeMismatch, "%s: %d "+
			"parameters cannot be broadcast to %d sites", s.label, len(s.w),
			n)
	}

	var out *tensor.Dense
	switch x.Dtype() {
	case tensor.Float64:
		out, err = sgnShift(x.Shape(), float64s(x), s.w, n, direction)
	default:
		out, err = sgnShift(x.Shape(), float32s(x), s.w, n, direction)
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, s.label)
	}

	log1, err := accumulate(log0, zeroDensity(x, mode))
	if err != nil {
		return nil, nil, errors.Wrap(err, s.label)
	}
	return out, log1, nil
}

func sgnShift[T float](shape tensor.Shape, xs []T, w []float64, n int,
	direction float64) (*tensor.Dense, error) {
	out := make([]T, len(xs))
	for i, x := range xs {
		if !isFinite(x) {
			return nil, errors.Wrapf(ErrDomain, "x[%d] = %v", i, x)
		}

		wi := w[0]
		if len(w) > 1 {
			wi = w[i%n]
		}
		bias := T(wi * wi)

		if direction < 0 && x != 0 && bias != 0 && abs(x) < bias {
			return nil, errors.Wrapf(ErrDomain, "x[%d] = %v lies in the "+
				"gap (-%v, %v)", i, x, bias, bias)
		}
		out[i] = x + T(direction)*sgn(x)*bias
	}
	return fromSlice(shape, out), nil
}

func sgn[T float](x T) T {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

func abs[T float](x T) T {
	if x < 0 {
		return -x
	}
	return x
}

// pointwise is a stateless pointwise bijection whose backward map is
// the forward kernel of its dual
type pointwise struct {
	label    string
	forward  kernel
	backward kernel
}

func (p *pointwise) Label() string { return p.label }

func (p *pointwise) Forward(x, log0 *tensor.Dense,
	mode Density) (*tensor.Dense, *tensor.Dense, error) {
	y, log1, err := p.run(p.forward, x, log0, mode)
	if err != nil {
		return nil, nil, errors.Wrap(err, "forward")
	}
	return y, log1, nil
}

func (p *pointwise) Backward(y, log0 *tensor.Dense,
	mode Density) (*tensor.Dense, *tensor.Dense, error) {
	x, log1, err := p.run(p.backward, y, log0, mode)
	if err != nil {
		return nil, nil, errors.Wrap(err, "backward")
	}
	return x, log1, nil
}

func (p *pointwise) run(k kernel, x, log0 *tensor.Dense,
	mode Density) (*tensor.Dense, *tensor.Dense, error) {
	x, err := checkSample(x)
	if err != nil {
		return nil, nil, err
	}

	y, logJ, err := k.apply(x)
	if err != nil {
		return nil, nil, err
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

// Tanh maps the real line onto (-1, 1) with y = tanh(x). Its
// log-Jacobian is -2·log(cosh(x)).
type Tanh struct{ pointwise }

// NewTanh returns a new Tanh
func NewTanh(opts ...Option) *Tanh {
	return &Tanh{pointwise{
		label:    newConfig("tanh", opts).label,
		forward:  tanhKernel,
		backward: arctanhKernel,
	}}
}

// ArcTanh is the inverse of Tanh
type ArcTanh struct{ pointwise }

// NewArcTanh returns a new ArcTanh
func NewArcTanh(opts ...Option) *ArcTanh {
	return &ArcTanh{pointwise{
		label:    newConfig("arctanh", opts).label,
		forward:  arctanhKernel,
		backward: tanhKernel,
	}}
}

// Expit is the logistic sigmoid y = 1 / (1 + exp(-x)), mapping the real
// line onto (0, 1). Its log-Jacobian is -x + 2·log(y).
type Expit struct{ pointwise }

// NewExpit returns a new Expit
func NewExpit(opts ...Option) *Expit {
	return &Expit{pointwise{
		label:    newConfig("expit", opts).label,
		forward:  expitKernel,
		backward: logitKernel,
	}}
}

// Logit is the inverse of Expit, y = log(x / (1 - x)) for x in (0, 1)
type Logit struct{ pointwise }

// NewLogit returns a new Logit
func NewLogit(opts ...Option) *Logit {
	return &Logit{pointwise{
		label:    newConfig("logit", opts).label,
		forward:  logitKernel,
		backward: expitKernel,
	}}
}
