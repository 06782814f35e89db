package bijector

import (
	"fmt"
	"hash"
	"hash/fnv"
	"sync/atomic"

	"github.com/chewxy/hm"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// ForwardNode adds the forward map of m to the expression graph of x.
// It returns the node of the transformed sample and the node of the
// log-Jacobian, reduced according to mode. The returned nodes are not
// differentiable.
func ForwardNode(m Module, x *G.Node, mode Density) (y, logJ *G.Node,
	err error) {
	y, logJ, err = applyModule(m, x, mode, forwardMap)
	if err != nil {
		return nil, nil, errors.Wrap(err, "forwardNode")
	}
	return y, logJ, nil
}

// BackwardNode adds the backward map of m to the expression graph of y.
// It returns the node of the reconstructed sample and the node of the
// log-Jacobian of the inverse map.
func BackwardNode(m Module, y *G.Node, mode Density) (x, logJ *G.Node,
	err error) {
	x, logJ, err = applyModule(m, y, mode, backwardMap)
	if err != nil {
		return nil, nil, errors.Wrap(err, "backwardNode")
	}
	return x, logJ, nil
}

func applyModule(m Module, x *G.Node, mode Density,
	dir direction) (*G.Node, *G.Node, error) {
	if m == nil || x == nil {
		return nil, nil, errors.Wrap(ErrConfiguration, "nil module or node")
	}
	if x.Dims() < 1 {
		return nil, nil, errors.Wrapf(ErrShapeMismatch, "expected a node "+
			"with a batch dimension but got shape %v", x.Shape())
	}
	if dt := x.Dtype(); dt != tensor.Float64 && dt != tensor.Float32 {
		return nil, nil, errors.Wrapf(ErrDtype, "dtype %v", dt)
	}

	sampleOp := newFlowOp(m, dir, sampleOutput, mode, x)
	sample, err := G.ApplyOp(sampleOp, x)
	if err != nil {
		return nil, nil, err
	}
	G.WithName(nodeName(m.Label(), dir, sampleOutput))(sample)

	densityOp := newFlowOp(m, dir, densityOutput, mode, x)
	density, err := G.ApplyOp(densityOp, x)
	if err != nil {
		return nil, nil, err
	}
	G.WithName(nodeName(m.Label(), dir, densityOutput))(density)

	return sample, density, nil
}

// nodes counts the flowOp nodes created by this package
var nodes atomic.Uint64

// nodeName returns a unique name for a node computed by a flowOp. Names
// are numbered in order of creation.
func nodeName(label string, dir direction, out output) string {
	return fmt.Sprintf("%v_%v_%v_%d", label, dir, out, nodes.Add(1))
}

type direction int

const (
	forwardMap direction = iota
	backwardMap
)

func (d direction) String() string {
	if d == forwardMap {
		return "forward"
	}
	return "backward"
}

type output int

const (
	sampleOutput output = iota
	densityOutput
)

func (o output) String() string {
	if o == sampleOutput {
		return "sample"
	}
	return "logJ"
}

// flowOp applies a Module to its input and outputs either the
// transformed sample or the log-Jacobian
type flowOp struct {
	module Module
	dir    direction
	out    output
	mode   Density

	dims int // Dimensions of the input
	dt   tensor.Dtype
}

func newFlowOp(m Module, dir direction, out output, mode Density,
	x *G.Node) *flowOp {
	return &flowOp{
		module: m,
		dir:    dir,
		out:    out,
		mode:   mode,
		dims:   x.Dims(),
		dt:     x.Dtype(),
	}
}

// Arity implements the gorgonia.Op interface
func (f *flowOp) Arity() int { return 1 }

// Type implements the gorgonia.Op interface
func (f *flowOp) Type() hm.Type {
	in := G.TensorType{Dims: f.dims, Of: f.dt}
	if f.out == densityOutput && f.mode == Reduced {
		return hm.NewFnType(in, G.TensorType{Dims: 1, Of: f.dt})
	}
	return hm.NewFnType(in, in)
}

// InferShape implements the gorgonia.Op interface
func (f *flowOp) InferShape(inputs ...G.DimSizer) (tensor.Shape, error) {
	if err := checkArity(f, len(inputs)); err != nil {
		return nil, fmt.Errorf("inferShape: %v", err)
	}
	if inputs[0] == nil {
		return nil, fmt.Errorf("inferShape: nil input")
	}

	shapes, err := G.DimSizersToShapes(inputs)
	if err != nil {
		return nil, fmt.Errorf("inferShape: %v", err)
	}
	if f.out == densityOutput {
		return densityShape(shapes[0], f.mode), nil
	}
	return shapes[0].Clone(), nil
}

// ReturnsPtr implements the gorgonia.Op interface
func (f *flowOp) ReturnsPtr() bool { return false }

// CallsExtern implements the gorgonia.Op interface
func (f *flowOp) CallsExtern() bool { return false }

// OverwritesInput implements the gorgonia.Op interface
func (f *flowOp) OverwritesInput() int { return -1 }

// String implements the fmt.Stringer interface
func (f *flowOp) String() string {
	return fmt.Sprintf("Flow{%s, %v, %v, %v, %p}()", f.module.Label(), f.dir,
		f.out, f.mode, f.module)
}

// WriteHash implements the gorgonia.Op interface
func (f *flowOp) WriteHash(h hash.Hash) { fmt.Fprint(h, f.String()) }

// Hashcode implements the gorgonia.Op interface
func (f *flowOp) Hashcode() uint32 { return simpleHash(f) }

// Do implements the gorgonia.Op interface
func (f *flowOp) Do(values ...G.Value) (G.Value, error) {
	if err := f.checkInputs(values...); err != nil {
		return nil, fmt.Errorf("do: %v", err)
	}

	x := values[0].(*tensor.Dense)

	var y, logJ *tensor.Dense
	var err error
	if f.dir == forwardMap {
		y, logJ, err = f.module.Forward(x, nil, f.mode)
	} else {
		y, logJ, err = f.module.Backward(x, nil, f.mode)
	}
	if err != nil {
		return nil, errors.Wrap(err, "do")
	}

	if f.out == densityOutput {
		return logJ, nil
	}
	if y == x {
		// The op owns its output
		y = y.Clone().(*tensor.Dense)
	}
	return y, nil
}

// checkInputs returns an error if the input to the receiver is invalid
func (f *flowOp) checkInputs(inputs ...G.Value) error {
	if err := checkArity(f, len(inputs)); err != nil {
		return err
	}

	if _, ok := inputs[0].(*tensor.Dense); !ok {
		return fmt.Errorf("expected input to be a dense tensor, got %T",
			inputs[0])
	}
	return nil
}

// simpleHash constructs the 32-bit FNV-1a hash of a Gorgonia Op
func simpleHash(op G.Op) uint32 {
	h := fnv.New32a()
	op.WriteHash(h)
	return h.Sum32()
}

func checkArity(op G.Op, inputs int) error {
	if inputs != op.Arity() && op.Arity() >= 0 {
		return fmt.Errorf("%v has an arity of %d. Got %d instead", op,
			op.Arity(), inputs)
	}
	return nil
}
