package bijector

import (
	"math"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

type float interface {
	~float32 | ~float64
}

// Reduce reduces a per-element log-Jacobian to the granularity of mode.
// For PerElement, logJ is returned unchanged. For Reduced, logJ is
// summed over all dimensions except the batch dimension, resulting in a
// tensor of shape (batch).
func Reduce(logJ *tensor.Dense, mode Density) (*tensor.Dense, error) {
	logJ, err := checkSample(logJ)
	if err != nil {
		return nil, errors.Wrap(err, "reduce")
	}

	switch mode {
	case PerElement:
		return logJ, nil
	case Reduced:
	default:
		return nil, errors.Wrapf(ErrConfiguration, "reduce: unknown "+
			"density mode %v", mode)
	}

	if logJ.Dims() == 1 {
		return logJ, nil
	}

	batch := logJ.Shape()[0]
	switch logJ.Dtype() {
	case tensor.Float64:
		return fromSlice(tensor.Shape{batch},
			sumRows(float64s(logJ), batch)), nil
	default:
		return fromSlice(tensor.Shape{batch},
			sumRows(float32s(logJ), batch)), nil
	}
}

// sumRows sums each of the batch contiguous rows of data
func sumRows[T float](data []T, batch int) []T {
	out := make([]T, batch)
	per := len(data) / batch
	for b := range out {
		var sum T
		for _, v := range data[b*per : (b+1)*per] {
			sum += v
		}
		out[b] = sum
	}
	return out
}

// densityShape returns the shape of the log-density that mode produces
// for samples of shape xShape
func densityShape(xShape tensor.Shape, mode Density) tensor.Shape {
	if mode == PerElement {
		return xShape.Clone()
	}
	return tensor.Shape{xShape[0]}
}

// zeroDensity returns a zero log-Jacobian for x under mode
func zeroDensity(x *tensor.Dense, mode Density) *tensor.Dense {
	return tensor.New(
		tensor.Of(x.Dtype()),
		tensor.WithShape(densityShape(x.Shape(), mode)...),
	)
}

// accumulate returns log0 + logJ. A nil log0 is treated as zero.
func accumulate(log0, logJ *tensor.Dense) (*tensor.Dense, error) {
	if log0 == nil {
		return logJ, nil
	}

	if !log0.Shape().Eq(logJ.Shape()) {
		return nil, errors.Wrapf(ErrShapeMismatch, "accumulate: expected "+
			"log-density of shape %v but got %v", logJ.Shape(),
			log0.Shape())
	}
	if log0.Dtype() != logJ.Dtype() {
		return nil, errors.Wrapf(ErrDtype, "accumulate: expected "+
			"log-density of dtype %v but got %v", logJ.Dtype(),
			log0.Dtype())
	}
	if log0.IsView() {
		log0 = log0.Materialize().(*tensor.Dense)
	}

	sum, err := log0.Add(logJ)
	if err != nil {
		return nil, errors.Wrap(err, "accumulate")
	}
	return sum, nil
}

// checkSample returns an error if x cannot be used as a batch of
// samples. Views are materialized so that the returned tensor has
// contiguous backing data.
func checkSample(x *tensor.Dense) (*tensor.Dense, error) {
	if x == nil {
		return nil, errors.Wrap(ErrShapeMismatch, "nil tensor")
	}
	if x.Dims() < 1 || x.Size() == 0 {
		return nil, errors.Wrapf(ErrShapeMismatch, "expected a tensor with "+
			"a batch dimension but got shape %v", x.Shape())
	}
	if dt := x.Dtype(); dt != tensor.Float64 && dt != tensor.Float32 {
		return nil, errors.Wrapf(ErrDtype, "dtype %v", dt)
	}

	if x.IsView() {
		return x.Materialize().(*tensor.Dense), nil
	}
	return x, nil
}

// checkFinite returns an ErrDomain if any element of x is NaN or ±Inf
func checkFinite(x *tensor.Dense, what string) error {
	var i int
	switch x.Dtype() {
	case tensor.Float64:
		i = firstNonFinite(float64s(x))
	default:
		i = firstNonFinite(float32s(x))
	}
	if i >= 0 {
		return errors.Wrapf(ErrDomain, "%s is not finite at index %d", what,
			i)
	}
	return nil
}

func firstNonFinite[T float](data []T) int {
	for i, v := range data {
		if !isFinite(v) {
			return i
		}
	}
	return -1
}

func isFinite[T float](v T) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// float64s returns the backing data of a Float64 tensor
func float64s(t *tensor.Dense) []float64 {
	switch data := t.Data().(type) {
	case []float64:
		return data
	case float64:
		return []float64{data}
	}
	return nil
}

// float32s returns the backing data of a Float32 tensor
func float32s(t *tensor.Dense) []float32 {
	switch data := t.Data().(type) {
	case []float32:
		return data
	case float32:
		return []float32{data}
	}
	return nil
}

// fromSlice wraps data in a new tensor of the given shape
func fromSlice[T float](shape tensor.Shape, data []T) *tensor.Dense {
	return tensor.New(
		tensor.WithShape(shape.Clone()...),
		tensor.WithBacking(data),
	)
}

// scalarOf converts v to the Go type of dtype dt
func scalarOf(dt tensor.Dtype, v float64) interface{} {
	if dt == tensor.Float32 {
		return float32(v)
	}
	return v
}

// sites returns the number of elements in a single sample of x
func sites(x *tensor.Dense) int {
	return x.Size() / x.Shape()[0]
}
