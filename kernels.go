package bijector

import (
	"math"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// kernel is a pointwise map together with the log of its derivative.
// The ok return is false if x lies outside the domain of the map.
type kernel struct {
	name string
	f64  func(x float64) (y, logJ float64, ok bool)
	f32  func(x float32) (y, logJ float32, ok bool)
}

// The kernels below come in inverse pairs: tanh/arctanh and
// expit/logit. The backward map of each module is the forward kernel of
// its dual.
var (
	tanhKernel = kernel{
		name: "tanh",
		f64: func(x float64) (float64, float64, bool) {
			return math.Tanh(x), -2 * math.Log(math.Cosh(x)), !math.IsNaN(x)
		},
		f32: func(x float32) (float32, float32, bool) {
			return math32.Tanh(x), -2 * math32.Log(math32.Cosh(x)),
				!math32.IsNaN(x)
		},
	}

	arctanhKernel = kernel{
		name: "arctanh",
		f64: func(x float64) (float64, float64, bool) {
			if !(x > -1 && x < 1) {
				return 0, 0, false
			}
			y := math.Atanh(x)
			return y, 2 * math.Log(math.Cosh(y)), true
		},
		f32: func(x float32) (float32, float32, bool) {
			if !(x > -1 && x < 1) {
				return 0, 0, false
			}
			y := math32.Atanh(x)
			return y, 2 * math32.Log(math32.Cosh(y)), true
		},
	}

	// expit is evaluated without overflowing exp for large |x|, so that
	// y stays positive down to the smallest denormal. Above x ≈ 37
	// (float64) or x ≈ 17 (float32), y rounds to 1.
	expitKernel = kernel{
		name: "expit",
		f64: func(x float64) (float64, float64, bool) {
			e := math.Exp(-math.Abs(x))
			y := 1 / (1 + e)
			if x < 0 {
				y = e / (1 + e)
			}
			return y, -math.Abs(x) - 2*math.Log1p(e), !math.IsNaN(x)
		},
		f32: func(x float32) (float32, float32, bool) {
			e := math32.Exp(-math32.Abs(x))
			y := 1 / (1 + e)
			if x < 0 {
				y = e / (1 + e)
			}
			return y, -math32.Abs(x) - 2*math32.Log1p(e), !math32.IsNaN(x)
		},
	}

	logitKernel = kernel{
		name: "logit",
		f64: func(x float64) (float64, float64, bool) {
			if !(x > 0 && x < 1) {
				return 0, 0, false
			}
			return math.Log(x / (1 - x)), -math.Log(x * (1 - x)), true
		},
		f32: func(x float32) (float32, float32, bool) {
			if !(x > 0 && x < 1) {
				return 0, 0, false
			}
			return math32.Log(x / (1 - x)), -math32.Log(x * (1 - x)), true
		},
	}
)

// apply evaluates k on every element of x, returning the mapped tensor
// and the per-element log-Jacobian
func (k kernel) apply(x *tensor.Dense) (*tensor.Dense, *tensor.Dense,
	error) {
	switch x.Dtype() {
	case tensor.Float64:
		return applyKernel(k.name, x.Shape(), float64s(x), k.f64)
	case tensor.Float32:
		return applyKernel(k.name, x.Shape(), float32s(x), k.f32)
	}
	return nil, nil, errors.Wrapf(ErrDtype, "%s: dtype %v", k.name,
		x.Dtype())
}

func applyKernel[T float](name string, shape tensor.Shape, xs []T,
	f func(T) (T, T, bool)) (*tensor.Dense, *tensor.Dense, error) {
	ys := make([]T, len(xs))
	logJ := make([]T, len(xs))

	for i, x := range xs {
		y, l, ok := f(x)
		if !ok {
			return nil, nil, errors.Wrapf(ErrDomain, "%s: x[%d] = %v", name,
				i, x)
		}
		if !isFinite(y) || !isFinite(l) {
			return nil, nil, errors.Wrapf(ErrDomain, "%s: non-finite "+
				"result at x[%d] = %v", name, i, x)
		}
		ys[i], logJ[i] = y, l
	}

	return fromSlice(shape, ys), fromSlice(shape, logJ), nil
}
