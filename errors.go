package bijector

import "github.com/pkg/errors"

var (
	// ErrDomain is returned when an input lies outside the domain of a
	// transform, or when a transform would produce a non-finite value.
	ErrDomain = errors.New("value outside domain")

	// ErrConfiguration is returned for invalid module assembly
	ErrConfiguration = errors.New("invalid configuration")

	// ErrShapeMismatch is returned when a sample or log-density has a
	// shape inconsistent with the operation
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrDtype is returned for tensors which are not Float64 or Float32,
	// or whose dtypes disagree
	ErrDtype = errors.New("unsupported dtype")
)
