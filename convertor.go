package bijector

import (
	"math"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// DistConvertor converts probability distributions of variables that
// may be spread over the whole real line. Its stages are
//
//		[SgnBias] → [ScaleNet] → Expit → Spline → Logit → [ScaleNet]
//
// where bracketed stages are optional. Expit squashes the input into
// (0, 1), where the Spline reshapes it, and Logit maps it back onto the
// real line.
type DistConvertor struct {
	*Pipeline
	roles map[Role]int // Index of the first module playing each role
}

// NewDistConvertor returns a new DistConvertor whose spline has knots
// knots. With fewer than two knots, the Expit, Spline, and Logit stages
// are omitted and only the optional stages remain.
//
// With the Symmetric option, the spline is defined on [0.5, 1] and
// extended anti-symmetrically to [0, 0.5], so that the convertor is an
// odd function.
func NewDistConvertor(knots int, opts ...Option) (*DistConvertor, error) {
	c := newConfig("dc", opts)
	if knots < 0 {
		return nil, errors.Wrapf(ErrConfiguration, "newDistConvertor: "+
			"expected a non-negative number of knots but got %v", knots)
	}

	var modules []Module
	var roles []Role
	add := func(m Module, r Role) {
		modules = append(modules, m)
		roles = append(roles, r)
	}

	if c.sgnbias {
		sb, err := NewSgnBias(c.sgnbiasSize, WithSeed(c.seed))
		if err != nil {
			return nil, errors.Wrap(err, "newDistConvertor")
		}
		add(sb, RoleSgnBias)
	}

	if c.initialScale {
		add(NewScaleNet(), RoleScale)
	}

	if knots > 1 {
		splineOpts := []Option{WithSplineShape(c.splineShape...)}
		if c.symmetric {
			splineOpts = append(splineOpts, WithDomain(0.5, 1),
				WithRange(0.5, 1), WithAntiLeft())
		}

		s, err := NewSpline(knots, splineOpts...)
		if err != nil {
			return nil, errors.Wrap(err, "newDistConvertor")
		}
		add(NewExpit(), RoleExpit)
		add(s, RoleSpline)
		add(NewLogit(), RoleLogit)
	} else {
		c.logger.Debug("degenerate distribution convertor, spline stage "+
			"omitted", "label", c.label, "knots", knots)
	}

	if c.finalScale {
		if c.initialScale {
			c.logger.Debug("distribution convertor with initial and final "+
				"scale", "label", c.label)
		}
		add(NewScaleNet(), RoleScale)
	}

	p, err := NewPipeline(c.label, modules...)
	if err != nil {
		return nil, errors.Wrap(err, "newDistConvertor")
	}

	d := &DistConvertor{Pipeline: p, roles: make(map[Role]int)}
	for i, r := range roles {
		if _, ok := d.roles[r]; !ok {
			d.roles[r] = i
		}
	}

	return d, nil
}

// Stage returns the first module playing role r, if any
func (d *DistConvertor) Stage(r Role) (Module, bool) {
	i, ok := d.roles[r]
	if !ok {
		return nil, false
	}
	return d.Module(i), true
}

// Spline returns the spline stage of the receiver, if any
func (d *DistConvertor) Spline() (*Spline, bool) {
	m, ok := d.Stage(RoleSpline)
	if !ok {
		return nil, false
	}
	return m.(*Spline), true
}

// Scale returns the first scale stage of the receiver, if any
func (d *DistConvertor) Scale() (*ScaleNet, bool) {
	m, ok := d.Stage(RoleScale)
	if !ok {
		return nil, false
	}
	return m.(*ScaleNet), true
}

// SgnBias returns the sign-bias stage of the receiver, if any
func (d *DistConvertor) SgnBias() (*SgnBias, bool) {
	m, ok := d.Stage(RoleSgnBias)
	if !ok {
		return nil, false
	}
	return m.(*SgnBias), true
}

// CDFMapper maps cumulative probabilities in [0, 1] through the spline
// stage only, bypassing the rest of the receiver. It maps the CDF of the
// inputs of the receiver onto the CDF of its outputs.
func (d *DistConvertor) CDFMapper(cdf *tensor.Dense) (*tensor.Dense,
	error) {
	s, ok := d.Spline()
	if !ok {
		return nil, errors.Wrapf(ErrConfiguration, "cdfMapper: %s has no "+
			"spline stage", d.Label())
	}

	out, _, err := s.Forward(cdf, nil, PerElement)
	if err != nil {
		return nil, errors.Wrap(err, "cdfMapper")
	}
	return out, nil
}

// NewUnityDistConvertor returns a Spline on [0, 1], suitable for
// converting distributions of variables with support in [0, 1]
func NewUnityDistConvertor(knots int, opts ...Option) (*Spline, error) {
	opts = append([]Option{WithLabel("unity-dc")}, opts...)
	opts = append(opts, WithDomain(0, 1), WithRange(0, 1))

	s, err := NewSpline(knots, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "newUnityDistConvertor")
	}
	return s, nil
}

// NewPhaseDistConvertor returns a Spline on [-π, π], suitable for
// converting distributions of phases. With the Symmetric option, the
// spline is defined on [0, π] and extended anti-symmetrically to
// [-π, 0], which fixes 0 and ±π.
func NewPhaseDistConvertor(knots int, opts ...Option) (*Spline, error) {
	c := newConfig("", opts)

	opts = append([]Option{WithLabel("phase-dc")}, opts...)
	if c.symmetric {
		opts = append(opts, WithDomain(0, math.Pi), WithRange(0, math.Pi),
			WithAntiLeft())
	} else {
		opts = append(opts, WithDomain(-math.Pi, math.Pi),
			WithRange(-math.Pi, math.Pi))
	}

	s, err := NewSpline(knots, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "newPhaseDistConvertor")
	}
	return s, nil
}
