package bijector

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Mask partitions the elements of a sample into active and frozen
// elements.
//
// Split returns two tensors with the shape of x, the first holding the
// active elements and the second the frozen ones. Purify zeroes all
// elements of values that are not in the given channel, where channel 0
// is the active channel and channel 1 the frozen channel. Cat is the
// inverse of Split.
type Mask interface {
	Split(x *tensor.Dense) (active, frozen *tensor.Dense, err error)
	Purify(values *tensor.Dense, channel int) (*tensor.Dense, error)
	Cat(active, frozen *tensor.Dense) (*tensor.Dense, error)
}

// activeChannel is the Mask channel a Masked module transforms
const activeChannel = 0

// Masked applies a module only to the active elements of a Mask. Frozen
// elements pass through unchanged and do not contribute to the
// log-Jacobian.
//
// The wrapped module is always run in PerElement mode; its log-Jacobian
// is purified before being reduced, so that only active elements
// contribute even when the mask does not align with the reduction. The
// wrapped module itself is left untouched and may be shared between
// several Masked modules.
type Masked struct {
	label string
	inner Module
	mask  Mask
}

// NewMasked returns a new Masked applying inner to the active elements
// of mask.
//
// Although frozen elements are discarded, inner still sees them holding
// the fill value of the mask, and fails with an ErrDomain if the fill is
// outside its domain. Modules with a restricted domain need a fill
// inside it, such as mask.WithFill(0.5) for Logit.
func NewMasked(inner Module, mask Mask) (*Masked, error) {
	if inner == nil || mask == nil {
		return nil, errors.Wrap(ErrConfiguration, "newMasked: nil module "+
			"or mask")
	}

	return &Masked{
		label: "wrapper" + inner.Label(),
		inner: inner,
		mask:  mask,
	}, nil
}

func (m *Masked) Label() string { return m.label }

func (m *Masked) mustLead() bool { return mustLead(m.inner) }

// Inner returns the wrapped module
func (m *Masked) Inner() Module { return m.inner }

// Forward applies the forward map of the wrapped module to the active
// elements of x
func (m *Masked) Forward(x, log0 *tensor.Dense,
	mode Density) (*tensor.Dense, *tensor.Dense, error) {
	y, log1, err := m.run(x, log0, mode, m.inner.Forward)
	if err != nil {
		return nil, nil, errors.Wrap(err, "forward")
	}
	return y, log1, nil
}

// Backward applies the backward map of the wrapped module to the
// active elements of y
func (m *Masked) Backward(y, log0 *tensor.Dense,
	mode Density) (*tensor.Dense, *tensor.Dense, error) {
	x, log1, err := m.run(y, log0, mode, m.inner.Backward)
	if err != nil {
		return nil, nil, errors.Wrap(err, "backward")
	}
	return x, log1, nil
}

type mapFunc func(x, log0 *tensor.Dense, mode Density) (*tensor.Dense,
	*tensor.Dense, error)

func (m *Masked) run(x, log0 *tensor.Dense, mode Density,
	f mapFunc) (*tensor.Dense, *tensor.Dense, error) {
	x, err := checkSample(x)
	if err != nil {
		return nil, nil, err
	}

	active, frozen, err := m.mask.Split(x)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "%s: split", m.label)
	}

	active, logJ, err := f(active, nil, PerElement)
	if err != nil {
		return nil, nil, errors.Wrap(err, m.label)
	}

	if active, err = m.mask.Purify(active, activeChannel); err != nil {
		return nil, nil, errors.Wrapf(err, "%s: purify", m.label)
	}
	if logJ, err = m.mask.Purify(logJ, activeChannel); err != nil {
		return nil, nil, errors.Wrapf(err, "%s: purify", m.label)
	}

	logJ, err = Reduce(logJ, mode)
	if err != nil {
		return nil, nil, errors.Wrap(err, m.label)
	}

	out, err := m.mask.Cat(active, frozen)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "%s: cat", m.label)
	}

	log1, err := accumulate(log0, logJ)
	if err != nil {
		return nil, nil, errors.Wrap(err, m.label)
	}
	return out, log1, nil
}
