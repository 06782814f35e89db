package distribution

import (
	"fmt"

	"gorgonia.org/tensor"

	"github.com/samuelfneumann/bijector"
)

// Pushforward is the distribution of f(x) where x is drawn from a base
// distribution and f is the forward map of a bijector.Module. By the
// change of variables formula,
//
//		log q(y) = log p(f⁻¹(y)) + log|det ∂f⁻¹/∂y|
type Pushforward struct {
	base   Distribution
	module bijector.Module
}

// NewPushforward returns a new Pushforward
func NewPushforward(base Distribution, module bijector.Module) (
	*Pushforward, error) {
	if base == nil || module == nil {
		return nil, fmt.Errorf("newPushforward: nil base or module")
	}
	return &Pushforward{base: base, module: module}, nil
}

// Shape returns the shape of a single sample
func (p *Pushforward) Shape() tensor.Shape { return p.base.Shape() }

// Sample returns batch samples from the receiver
func (p *Pushforward) Sample(batch int) (*tensor.Dense, error) {
	y, _, err := p.SampleWithLogProb(batch)
	if err != nil {
		return nil, err
	}
	return y, nil
}

// SampleWithLogProb returns batch samples from the receiver together
// with their log-densities, one per sample
func (p *Pushforward) SampleWithLogProb(batch int) (*tensor.Dense,
	*tensor.Dense, error) {
	x, err := p.base.Sample(batch)
	if err != nil {
		return nil, nil, fmt.Errorf("sample: %v", err)
	}

	logp, err := p.base.LogProb(x, bijector.Reduced)
	if err != nil {
		return nil, nil, fmt.Errorf("sample: %v", err)
	}

	y, logJ, err := p.module.Forward(x, nil, bijector.Reduced)
	if err != nil {
		return nil, nil, fmt.Errorf("sample: %v", err)
	}

	logq, err := logp.Sub(logJ)
	if err != nil {
		return nil, nil, fmt.Errorf("sample: %v", err)
	}
	return y, logq, nil
}

// LogProb calculates the log probability density of y
func (p *Pushforward) LogProb(y *tensor.Dense, mode bijector.Density) (
	*tensor.Dense, error) {
	x, logJ, err := p.module.Backward(y, nil, mode)
	if err != nil {
		return nil, fmt.Errorf("logProb: %v", err)
	}

	logp, err := p.base.LogProb(x, mode)
	if err != nil {
		return nil, fmt.Errorf("logProb: %v", err)
	}

	logq, err := logp.Add(logJ)
	if err != nil {
		return nil, fmt.Errorf("logProb: %v", err)
	}
	return logq, nil
}
