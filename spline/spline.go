// Package spline implements monotonically increasing rational-quadratic
// splines with closed-form inverses.
//
// A RationalQuadratic with K knots maps the interval [xlo, xhi] onto
// [ylo, yhi] through K-1 bins. Within bin k, with ξ the relative
// position of x in the bin, s the slope of the bin, and d the
// derivatives at the bin's knots:
//
//		        s·ξ² + d_k·ξ(1-ξ)
//		y = y_k + h · ─────────────────────────────
//		        s + (d_k+1 + d_k - 2s)·ξ(1-ξ)
//
// The spline is parameterized by unnormalized bin widths, bin heights,
// and log-derivatives. All-zero parameters result in the straight line
// from (xlo, ylo) to (xhi, yhi).
package spline

import (
	"fmt"
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// ErrOutOfDomain is returned when a spline is evaluated outside the
// interval it is defined on
var ErrOutOfDomain = errors.New("out of domain")

// Extrapolation determines how a spline is extended to the left of its
// domain
type Extrapolation int

const (
	// None leaves the spline undefined to the left of its domain
	None Extrapolation = iota

	// Anti extends the spline by point reflection through its
	// lower-left corner: f(2·xlo - x) = 2·ylo - f(x). The domain becomes
	// [2·xlo - xhi, xhi] and the range [2·ylo - yhi, yhi].
	Anti
)

func (e Extrapolation) String() string {
	switch e {
	case None:
		return "None"
	case Anti:
		return "Anti"
	}
	return fmt.Sprintf("Extrapolation(%d)", int(e))
}

// RationalQuadratic is a monotonic rational-quadratic spline
type RationalQuadratic struct {
	xlo, xhi float64
	ylo, yhi float64
	extrap   Extrapolation

	// Unnormalized parameters
	widths, heights, logDerivs []float64

	// Knots computed from the parameters
	xs, ys, ds []float64
}

// New returns a new RationalQuadratic with knots knots, mapping
// [xlim[0], xlim[1]] onto [ylim[0], ylim[1]]. The spline is initialized
// to the straight line between the corners of its domain and range.
func New(knots int, xlim, ylim [2]float64,
	extrap Extrapolation) (*RationalQuadratic, error) {
	if knots < 2 {
		return nil, fmt.Errorf("new: expected at least 2 knots but got %v",
			knots)
	}
	if !(xlim[0] < xlim[1]) {
		return nil, fmt.Errorf("new: invalid domain %v", xlim)
	}
	if !(ylim[0] < ylim[1]) {
		return nil, fmt.Errorf("new: invalid range %v", ylim)
	}
	if extrap != None && extrap != Anti {
		return nil, fmt.Errorf("new: unknown extrapolation %v", extrap)
	}

	r := &RationalQuadratic{
		xlo:       xlim[0],
		xhi:       xlim[1],
		ylo:       ylim[0],
		yhi:       ylim[1],
		extrap:    extrap,
		widths:    make([]float64, knots-1),
		heights:   make([]float64, knots-1),
		logDerivs: make([]float64, knots),
		xs:        make([]float64, knots),
		ys:        make([]float64, knots),
		ds:        make([]float64, knots),
	}
	r.computeKnots()

	return r, nil
}

// Len returns the number of knots
func (r *RationalQuadratic) Len() int { return len(r.xs) }

// Domain returns the interval the spline is defined on, including
// any extrapolated region
func (r *RationalQuadratic) Domain() (lo, hi float64) {
	if r.extrap == Anti {
		return 2*r.xlo - r.xhi, r.xhi
	}
	return r.xlo, r.xhi
}

// Range returns the image of Domain
func (r *RationalQuadratic) Range() (lo, hi float64) {
	if r.extrap == Anti {
		return 2*r.ylo - r.yhi, r.yhi
	}
	return r.ylo, r.yhi
}

// Params returns copies of the unnormalized bin widths, bin heights, and
// log-derivatives at the knots
func (r *RationalQuadratic) Params() (widths, heights, logDerivs []float64) {
	return append([]float64(nil), r.widths...),
		append([]float64(nil), r.heights...),
		append([]float64(nil), r.logDerivs...)
}

// SetParams sets the unnormalized bin widths and heights, each of
// length Len()-1, and the log-derivatives at the knots, of length
// Len(). Derivatives are relative to the average slope of the spline.
func (r *RationalQuadratic) SetParams(widths, heights,
	logDerivs []float64) error {
	if len(widths) != len(r.widths) || len(heights) != len(r.heights) {
		return fmt.Errorf("setParams: expected %v widths and heights but "+
			"got %v and %v", len(r.widths), len(widths), len(heights))
	}
	if len(logDerivs) != len(r.logDerivs) {
		return fmt.Errorf("setParams: expected %v log-derivatives but got "+
			"%v", len(r.logDerivs), len(logDerivs))
	}
	for _, p := range [][]float64{widths, heights, logDerivs} {
		if floats.HasNaN(p) {
			return fmt.Errorf("setParams: NaN parameter")
		}
	}

	copy(r.widths, widths)
	copy(r.heights, heights)
	copy(r.logDerivs, logDerivs)
	r.computeKnots()

	return nil
}

// Knots returns copies of the knot positions, knot values, and
// derivatives at the knots
func (r *RationalQuadratic) Knots() (xs, ys, ds []float64) {
	return append([]float64(nil), r.xs...),
		append([]float64(nil), r.ys...),
		append([]float64(nil), r.ds...)
}

// computeKnots computes the knots from the unnormalized parameters
func (r *RationalQuadratic) computeKnots() {
	normalizedCumSum(r.xs, r.widths, r.xlo, r.xhi)
	normalizedCumSum(r.ys, r.heights, r.ylo, r.yhi)

	slope := (r.yhi - r.ylo) / (r.xhi - r.xlo)
	for i, l := range r.logDerivs {
		r.ds[i] = slope * math.Exp(l)
	}
}

// normalizedCumSum fills dst with lo followed by the cumulative sum of
// softmax(params) scaled to hi - lo. The last element is exactly hi.
func normalizedCumSum(dst, params []float64, lo, hi float64) {
	bins := make([]float64, len(params))
	lse := floats.LogSumExp(params)
	for i, p := range params {
		bins[i] = math.Exp(p - lse)
	}
	floats.Scale(hi-lo, bins)

	dst[0] = lo
	floats.CumSum(dst[1:], bins)
	floats.AddConst(lo, dst[1:])
	dst[len(dst)-1] = hi
}

// At returns the value of the spline at x and its derivative
func (r *RationalQuadratic) At(x float64) (y, dydx float64, err error) {
	lo, hi := r.Domain()
	if !(x >= lo && x <= hi) {
		return 0, 0, errors.Wrapf(ErrOutOfDomain, "at: x = %v not in "+
			"[%v, %v]", x, lo, hi)
	}

	if x < r.xlo {
		// Anti-symmetric extrapolation
		y, dydx = r.at(2*r.xlo - x)
		return 2*r.ylo - y, dydx, nil
	}
	y, dydx = r.at(x)
	return y, dydx, nil
}

// InverseAt returns the x such that At(x) = y and the derivative of the
// inverse spline at y
func (r *RationalQuadratic) InverseAt(y float64) (x, dxdy float64,
	err error) {
	lo, hi := r.Range()
	if !(y >= lo && y <= hi) {
		return 0, 0, errors.Wrapf(ErrOutOfDomain, "inverseAt: y = %v not "+
			"in [%v, %v]", y, lo, hi)
	}

	if y < r.ylo {
		x, dxdy = r.inverseAt(2*r.ylo - y)
		return 2*r.xlo - x, dxdy, nil
	}
	x, dxdy = r.inverseAt(y)
	return x, dxdy, nil
}

// bin returns the index of the bin of knots that contains v
func bin(knots []float64, v float64) int {
	k := sort.SearchFloat64s(knots, v) - 1
	if k < 0 {
		return 0
	}
	if k > len(knots)-2 {
		return len(knots) - 2
	}
	return k
}

// at evaluates the spline for x in [xlo, xhi]
func (r *RationalQuadratic) at(x float64) (float64, float64) {
	k := bin(r.xs, x)
	w := r.xs[k+1] - r.xs[k]
	h := r.ys[k+1] - r.ys[k]
	s := h / w

	xi := clip((x - r.xs[k]) / w)
	dydx := r.derivative(k, s, xi)
	if xi == 1 {
		return r.ys[k+1], dydx
	}

	t := xi * (1 - xi)
	num := s*xi*xi + r.ds[k]*t
	den := s + (r.ds[k+1]+r.ds[k]-2*s)*t

	return r.ys[k] + h*num/den, dydx
}

// inverseAt inverts the spline for y in [ylo, yhi]
func (r *RationalQuadratic) inverseAt(y float64) (float64, float64) {
	k := bin(r.ys, y)
	w := r.xs[k+1] - r.xs[k]
	h := r.ys[k+1] - r.ys[k]
	s := h / w

	dy := y - r.ys[k]
	c2 := r.ds[k+1] + r.ds[k] - 2*s

	// ξ is the root in [0, 1] of a·ξ² + b·ξ + c
	a := h*(s-r.ds[k]) + dy*c2
	b := h*r.ds[k] - dy*c2
	c := -s * dy
	disc := math.Max(b*b-4*a*c, 0)
	xi := clip(2 * c / (-b - math.Sqrt(disc)))
	if y == r.ys[k+1] {
		xi = 1
	}

	dxdy := 1 / r.derivative(k, s, xi)
	if xi == 1 {
		return r.xs[k+1], dxdy
	}
	return r.xs[k] + xi*w, dxdy
}

// derivative returns dy/dx at relative position xi in bin k of slope s
func (r *RationalQuadratic) derivative(k int, s, xi float64) float64 {
	t := xi * (1 - xi)
	den := s + (r.ds[k+1]+r.ds[k]-2*s)*t
	num := r.ds[k+1]*xi*xi + 2*s*t + r.ds[k]*(1-xi)*(1-xi)

	return s * s * num / (den * den)
}

func clip(xi float64) float64 {
	return math.Min(math.Max(xi, 0), 1)
}
