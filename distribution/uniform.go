package distribution

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/bijector"
)

// Uniform is the uniform distribution on [min, max] at each site of a
// sample. Outside of [min, max], the log-density is -Inf.
type Uniform struct {
	shape tensor.Shape
	sites int
	dist  distuv.Uniform
}

// NewUniform returns a new Uniform over samples of the given shape
func NewUniform(min, max float64, shape []int, seed uint64) (*Uniform,
	error) {
	if !(min < max) {
		return nil, fmt.Errorf("newUniform: expected min < max but got "+
			"[%v, %v]", min, max)
	}
	if len(shape) == 0 || tensor.Shape(shape).TotalSize() <= 0 {
		return nil, fmt.Errorf("newUniform: invalid shape %v", shape)
	}

	return &Uniform{
		shape: tensor.Shape(shape).Clone(),
		sites: tensor.Shape(shape).TotalSize(),
		dist: distuv.Uniform{
			Min: min,
			Max: max,
			Src: rand.NewSource(seed),
		},
	}, nil
}

// Shape returns the shape of a single sample
func (u *Uniform) Shape() tensor.Shape { return u.shape.Clone() }

// LogProb calculates the log probability density of x
func (u *Uniform) LogProb(x *tensor.Dense, mode bijector.Density) (
	*tensor.Dense, error) {
	if err := checkBatch(x, u.shape); err != nil {
		return nil, fmt.Errorf("logProb: %v", err)
	}

	logProb := elementwise(x, u.sites, func(_ int, v float64) float64 {
		return u.dist.LogProb(v)
	})

	out, err := reduce(logProb, mode)
	if err != nil {
		return nil, fmt.Errorf("logProb: %v", err)
	}
	return out, nil
}

// Sample returns batch samples from the receiver
func (u *Uniform) Sample(batch int) (*tensor.Dense, error) {
	if batch < 1 {
		return nil, fmt.Errorf("sample: expected batch > 0 but got %v",
			batch)
	}

	out := make([]float64, batch*u.sites)
	for i := range out {
		out[i] = u.dist.Rand()
	}

	return tensor.New(
		tensor.WithShape(batchShape(batch, u.shape)...),
		tensor.WithBacking(out),
	), nil
}
