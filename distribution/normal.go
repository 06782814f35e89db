package distribution

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/bijector"
)

// Normal is a collection of independent univariate normal
// distributions, one per site of a sample. If a Normal is created with
// a mean and standard deviation of shape (3, 2), then each sample has
// shape (3, 2) and element (i, j) of a sample is distributed as
//
//		𝒩(mean[i, j], stddev[i, j])
//
// Normal supports the following data types:
// - tensor.Float64
type Normal struct {
	shape tensor.Shape
	dists []distuv.Normal
}

// NewNormal returns a new Normal
func NewNormal(mean, stddev *tensor.Dense, seed uint64) (*Normal, error) {
	if mean == nil || stddev == nil {
		return nil, fmt.Errorf("newNormal: nil mean or stddev")
	}
	if !mean.Shape().Eq(stddev.Shape()) {
		return nil, fmt.Errorf("newNormal: expected mean and stddev to "+
			"have the same shape but got %v and %v", mean.Shape(),
			stddev.Shape())
	}

	if mean.Dtype() != stddev.Dtype() {
		return nil, fmt.Errorf("newNormal: expected mean and stddev to "+
			"have the same data type but got %v and %v", mean.Dtype(),
			stddev.Dtype())
	} else if mean.Dtype() != tensor.Float64 {
		return nil, fmt.Errorf("newNormal: data type %v unsupported",
			mean.Dtype())
	}

	shape := mean.Shape().Clone()
	if mean.IsScalar() {
		shape = tensor.Shape{1}
	}

	means := flatten(mean)
	stddevs := flatten(stddev)
	src := rand.NewSource(seed)

	dists := make([]distuv.Normal, len(means))
	for i := range dists {
		if !(stddevs[i] > 0) {
			return nil, fmt.Errorf("newNormal: expected positive stddev "+
				"but got %v at index %d", stddevs[i], i)
		}
		dists[i] = distuv.Normal{Mu: means[i], Sigma: stddevs[i], Src: src}
	}

	return &Normal{shape: shape, dists: dists}, nil
}

// NewStdNormal returns a new Normal with zero mean and unit standard
// deviation at each site of shape
func NewStdNormal(shape []int, seed uint64) (*Normal, error) {
	size := tensor.Shape(shape).TotalSize()
	mean := tensor.New(
		tensor.WithShape(shape...),
		tensor.WithBacking(make([]float64, size)),
	)
	stddev := tensor.New(
		tensor.WithShape(shape...),
		tensor.WithBacking(ones64(size)),
	)

	n, err := NewNormal(mean, stddev, seed)
	if err != nil {
		return nil, fmt.Errorf("newStdNormal: %v", err)
	}
	return n, nil
}

// Shape returns the shape of a single sample
func (n *Normal) Shape() tensor.Shape { return n.shape.Clone() }

// LogProb calculates the log probability density of x
func (n *Normal) LogProb(x *tensor.Dense, mode bijector.Density) (
	*tensor.Dense, error) {
	if err := checkBatch(x, n.shape); err != nil {
		return nil, fmt.Errorf("logProb: %v", err)
	}

	logProb := elementwise(x, len(n.dists), func(site int, v float64) float64 {
		return n.dists[site].LogProb(v)
	})

	out, err := reduce(logProb, mode)
	if err != nil {
		return nil, fmt.Errorf("logProb: %v", err)
	}
	return out, nil
}

// Cdf computes the cumulative distribution function of x element-wise
func (n *Normal) Cdf(x *tensor.Dense) (*tensor.Dense, error) {
	if err := checkBatch(x, n.shape); err != nil {
		return nil, fmt.Errorf("cdf: %v", err)
	}

	return elementwise(x, len(n.dists), func(site int, v float64) float64 {
		return n.dists[site].CDF(v)
	}), nil
}

// Quantile computes the inverse cumulative distribution function at
// probability p element-wise
func (n *Normal) Quantile(p *tensor.Dense) (*tensor.Dense, error) {
	if err := checkBatch(p, n.shape); err != nil {
		return nil, fmt.Errorf("quantile: %v", err)
	}

	for i, v := range flatten(p) {
		if v < 0 || v > 1 {
			return nil, fmt.Errorf("quantile: probability %v at index %d "+
				"not in [0, 1]", v, i)
		}
	}

	return elementwise(p, len(n.dists), func(site int, v float64) float64 {
		return n.dists[site].Quantile(v)
	}), nil
}

// Entropy returns the entropy of a single sample, the sum of the
// entropies of the distributions at each site
func (n *Normal) Entropy() float64 {
	var entropy float64
	for _, d := range n.dists {
		entropy += d.Entropy()
	}
	return entropy
}

// Sample returns batch samples from the receiver
func (n *Normal) Sample(batch int) (*tensor.Dense, error) {
	if batch < 1 {
		return nil, fmt.Errorf("sample: expected batch > 0 but got %v",
			batch)
	}

	out := make([]float64, batch*len(n.dists))
	for i := range out {
		out[i] = n.dists[i%len(n.dists)].Rand()
	}

	return tensor.New(
		tensor.WithShape(batchShape(batch, n.shape)...),
		tensor.WithBacking(out),
	), nil
}

// flatten returns the elements of t in row-major order
func flatten(t *tensor.Dense) []float64 {
	if t.IsView() {
		t = t.Materialize().(*tensor.Dense)
	}

	switch data := t.Data().(type) {
	case []float64:
		return data
	case float64:
		return []float64{data}
	}
	return nil
}

func ones64(size int) []float64 {
	slice := make([]float64, size)
	for i := range slice {
		slice[i] = 1.0
	}

	return slice
}
