package bijector

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Pipeline chains modules together. Forward applies the modules in
// order, Backward applies their inverses in reverse order, so that
//
//		p := NewPipeline("p", m1, m2, m3)
//		y, logq, err := p.Forward(x, log0, mode)
//
// is equivalent to
//
//		h1, l1, err := m1.Forward(x, log0, mode)
//		h2, l2, err := m2.Forward(h1, l1, mode)
//		y, logq, err := m3.Forward(h2, l2, mode)
//
// The first failing stage halts the pipeline.
type Pipeline struct {
	label   string
	modules []Module
}

// NewPipeline returns a new Pipeline. A module that must lead, such as
// SgnBias, is only accepted as the first module.
func NewPipeline(label string, modules ...Module) (*Pipeline, error) {
	for i, m := range modules {
		if m == nil {
			return nil, errors.Wrapf(ErrConfiguration, "newPipeline: nil "+
				"module at index %d", i)
		}
		if i > 0 && mustLead(m) {
			return nil, errors.Wrapf(ErrConfiguration, "newPipeline: "+
				"module %v (%s) must be the first module", i, m.Label())
		}
	}

	return &Pipeline{
		label:   label,
		modules: append([]Module(nil), modules...),
	}, nil
}

func (p *Pipeline) Label() string { return p.label }

func (p *Pipeline) mustLead() bool {
	return len(p.modules) > 0 && mustLead(p.modules[0])
}

// Len returns the number of modules in the receiver
func (p *Pipeline) Len() int { return len(p.modules) }

// Module returns the module at index i
func (p *Pipeline) Module(i int) Module { return p.modules[i] }

// Modules returns a copy of the modules of the receiver
func (p *Pipeline) Modules() []Module {
	return append([]Module(nil), p.modules...)
}

// Forward applies each module's forward map in order. An empty
// Pipeline acts as the identity.
func (p *Pipeline) Forward(x, log0 *tensor.Dense,
	mode Density) (*tensor.Dense, *tensor.Dense, error) {
	x, err := checkSample(x)
	if err != nil {
		return nil, nil, errors.Wrap(err, "forward")
	}
	log0, err = accumulate(log0, zeroDensity(x, mode))
	if err != nil {
		return nil, nil, errors.Wrap(err, "forward")
	}

	for i, m := range p.modules {
		x, log0, err = m.Forward(x, log0, mode)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "%s: stage %d (%s)", p.label,
				i, m.Label())
		}
	}
	return x, log0, nil
}

// Backward applies each module's backward map in reverse order
func (p *Pipeline) Backward(y, log0 *tensor.Dense,
	mode Density) (*tensor.Dense, *tensor.Dense, error) {
	y, err := checkSample(y)
	if err != nil {
		return nil, nil, errors.Wrap(err, "backward")
	}
	log0, err = accumulate(log0, zeroDensity(y, mode))
	if err != nil {
		return nil, nil, errors.Wrap(err, "backward")
	}

	for i := len(p.modules) - 1; i >= 0; i-- {
		m := p.modules[i]
		y, log0, err = m.Backward(y, log0, mode)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "%s: stage %d (%s)", p.label,
				i, m.Label())
		}
	}
	return y, log0, nil
}
