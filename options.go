package bijector

import (
	"io"
	"log/slog"
	"time"
)

// config holds the construction parameters shared by the constructors
// of this package
type config struct {
	label string

	// Spline
	xlim, ylim  [2]float64
	antiLeft    bool
	splineShape []int

	// DistConvertor
	symmetric    bool
	sgnbias      bool
	sgnbiasSize  int
	initialScale bool
	finalScale   bool

	seed   uint64
	logger *slog.Logger
}

// Option configures the construction of a Module
type Option func(*config)

func newConfig(label string, opts []Option) *config {
	c := &config{
		label:       label,
		xlim:        [2]float64{0, 1},
		ylim:        [2]float64{0, 1},
		sgnbiasSize: 1,
		seed:        uint64(time.Now().UnixNano()),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithLabel sets the label of the constructed module
func WithLabel(label string) Option {
	return func(c *config) { c.label = label }
}

// WithDomain sets the interval [lo, hi] a spline is defined on
func WithDomain(lo, hi float64) Option {
	return func(c *config) { c.xlim = [2]float64{lo, hi} }
}

// WithRange sets the interval [lo, hi] a spline maps its domain onto
func WithRange(lo, hi float64) Option {
	return func(c *config) { c.ylim = [2]float64{lo, hi} }
}

// WithAntiLeft extends a spline to the left of its domain by point
// reflection through its lower-left corner, f(2a - x) = 2b - f(x).
func WithAntiLeft() Option {
	return func(c *config) { c.antiLeft = true }
}

// WithSplineShape gives each site of a sample its own spline. The shape
// must equal the shape of a single sample (all dimensions except the
// batch dimension). Without it, one spline is shared by all elements.
func WithSplineShape(shape ...int) Option {
	return func(c *config) { c.splineShape = append([]int(nil), shape...) }
}

// Symmetric makes a convertor anti-symmetric about the centre of its
// domain
func Symmetric() Option {
	return func(c *config) { c.symmetric = true }
}

// WithSgnBias prepends a SgnBias with size parameters to a DistConvertor
func WithSgnBias(size int) Option {
	return func(c *config) {
		c.sgnbias = true
		c.sgnbiasSize = size
	}
}

// WithInitialScale adds a ScaleNet in front of the Expit stage of a
// DistConvertor
func WithInitialScale() Option {
	return func(c *config) { c.initialScale = true }
}

// WithFinalScale adds a ScaleNet after the Logit stage of a
// DistConvertor
func WithFinalScale() Option {
	return func(c *config) { c.finalScale = true }
}

// WithSeed seeds the random initialization of parameters
func WithSeed(seed uint64) Option {
	return func(c *config) { c.seed = seed }
}

// WithLogger sets the logger used to report construction decisions
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}
