package distribution

import (
	"fmt"

	"gorgonia.org/tensor"

	"github.com/samuelfneumann/bijector"
)

// checkBatch returns an error if x is not a Float64 batch of samples of
// the given shape
func checkBatch(x *tensor.Dense, shape tensor.Shape) error {
	if x == nil {
		return fmt.Errorf("nil input")
	}
	if x.Dtype() != tensor.Float64 {
		return fmt.Errorf("data type %v unsupported", x.Dtype())
	}
	if x.Dims() != len(shape)+1 || !tensor.Shape(x.Shape()[1:]).Eq(shape) {
		msg := "expected shape to match distribution shape %v at all " +
			"dimensions except batch (dim 0) but got x shape %v"
		return fmt.Errorf(msg, shape, x.Shape())
	}
	return nil
}

// elementwise applies f to each element of x, passing the index of the
// element's site
func elementwise(x *tensor.Dense, sites int,
	f func(site int, v float64) float64) *tensor.Dense {
	if x.IsView() {
		x = x.Materialize().(*tensor.Dense)
	}

	data := x.Data().([]float64)
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = f(i%sites, v)
	}

	return tensor.New(
		tensor.WithShape(x.Shape().Clone()...),
		tensor.WithBacking(out),
	)
}

// reduce reduces per-element log-densities according to mode
func reduce(logProb *tensor.Dense, mode bijector.Density) (*tensor.Dense,
	error) {
	out, err := bijector.Reduce(logProb, mode)
	if err != nil {
		return nil, fmt.Errorf("could not combine event dims: %v", err)
	}
	return out, nil
}

func batchShape(batch int, shape tensor.Shape) []int {
	return append([]int{batch}, shape...)
}
