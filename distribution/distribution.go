// Package distribution provides base distributions for flows and the
// distributions obtained by pushing them through a bijector.Module.
package distribution

import (
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/bijector"
)

// Distribution is a probability distribution over samples of a fixed
// shape.
//
// Inputs to a Distribution always carry a batch dimension at dimension
// 0. The remaining dimensions must equal the Shape of the Distribution.
type Distribution interface {
	// LogProb returns the log of the probability density of each
	// sample in x. With bijector.PerElement, one log-density is
	// returned per element of x, with bijector.Reduced one per sample.
	LogProb(x *tensor.Dense, mode bijector.Density) (*tensor.Dense, error)

	// Sample returns batch samples from the distribution
	Sample(batch int) (*tensor.Dense, error)

	// Shape returns the shape of a single sample
	Shape() tensor.Shape
}
