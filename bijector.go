// Package bijector provides invertible transforms (flows) over tensors
// which track the change in probability density they induce.
//
// Every transform implements Module. Forward maps a batch of samples x
// to y and adds log|det ∂y/∂x| to an accumulated log-density, Backward
// inverts the map and adds the log-Jacobian of the inverse. Modules can
// be chained with a Pipeline, restricted to a subset of sites with a
// Masked wrapper, or assembled into distribution convertors.
//
// Samples are *tensor.Dense values of dtype tensor.Float64 or
// tensor.Float32. Dimension 0 is always the batch dimension, the
// remaining dimensions are the sites of a single sample.
package bijector

import (
	"fmt"

	"gorgonia.org/tensor"
)

// Density selects the granularity of the log-Jacobian returned by a
// Module.
type Density int

const (
	// Reduced sums the log-Jacobian over all sites, resulting in one
	// value per batch element, i.e. shape (batch).
	Reduced Density = iota

	// PerElement keeps one log-Jacobian value per element of the
	// input, i.e. the log-density has the same shape as the sample.
	PerElement
)

func (d Density) String() string {
	switch d {
	case Reduced:
		return "Reduced"
	case PerElement:
		return "PerElement"
	}
	return fmt.Sprintf("Density(%d)", int(d))
}

// Module is an invertible transform with a tractable log-Jacobian.
//
// The log0 argument is the log-density accumulated so far. A nil log0
// is taken to be zero. A non-nil log0 must have the shape that mode
// produces for x: the shape of x for PerElement and (batch) for Reduced.
// Neither x nor log0 is modified.
type Module interface {
	// Forward computes y = f(x) and log0 + log|det ∂f/∂x|.
	Forward(x, log0 *tensor.Dense, mode Density) (*tensor.Dense,
		*tensor.Dense, error)

	// Backward computes x = f⁻¹(y) and log0 + log|det ∂f⁻¹/∂y|, so
	// that Backward undoes both outputs of Forward.
	Backward(y, log0 *tensor.Dense, mode Density) (*tensor.Dense,
		*tensor.Dense, error)

	// Label names the module
	Label() string
}

// leader is implemented by modules that are only valid as the first
// stage of a Pipeline
type leader interface {
	mustLead() bool
}

func mustLead(m Module) bool {
	l, ok := m.(leader)
	return ok && l.mustLead()
}

// Role tags the part a module plays inside a DistConvertor
type Role int

const (
	RoleNone Role = iota
	RoleSgnBias
	RoleScale
	RoleExpit
	RoleSpline
	RoleLogit
)

func (r Role) String() string {
	switch r {
	case RoleNone:
		return "none"
	case RoleSgnBias:
		return "sgnbias"
	case RoleScale:
		return "scale"
	case RoleExpit:
		return "expit"
	case RoleSpline:
		return "spline"
	case RoleLogit:
		return "logit"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}
