package bijector

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/exp/rand"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func TestGraphNodes(t *testing.T) {
	src := rand.New(rand.NewSource(1))
	d := newTestConvertor(t, src)

	for _, mode := range []Density{Reduced, PerElement} {
		in := randDense(src, []int{4, 3}, -2, 2)

		g := G.NewGraph()
		x := G.NewTensor(g, tensor.Float64, 2, G.WithShape(4, 3),
			G.WithValue(in), G.WithName("x"))

		y, logJ, err := ForwardNode(d, x, mode)
		if err != nil {
			t.Fatal(err)
		}
		if want := densityShape(tensor.Shape{4, 3}, mode); !logJ.Shape().Eq(
			want) {
			t.Errorf("expected density node of shape %v but got %v", want,
				logJ.Shape())
		}

		xr, logJr, err := BackwardNode(d, y, mode)
		if err != nil {
			t.Fatal(err)
		}

		var yVal, logJVal, xrVal, logJrVal G.Value
		G.Read(y, &yVal)
		G.Read(logJ, &logJVal)
		G.Read(xr, &xrVal)
		G.Read(logJr, &logJrVal)

		vm := G.NewTapeMachine(g)
		if err := vm.RunAll(); err != nil {
			t.Fatal(err)
		}
		vm.Close()

		want, wantLogJ, err := d.Forward(in, nil, mode)
		if err != nil {
			t.Fatal(err)
		}
		checkClose(t, "graph forward", want, yVal.(*tensor.Dense), 0)
		checkClose(t, "graph density", wantLogJ, logJVal.(*tensor.Dense), 0)

		checkClose(t, "graph backward", in, xrVal.(*tensor.Dense), 1e-9)

		// The backward log-Jacobian undoes the forward one
		sum, err := logJVal.(*tensor.Dense).Add(logJrVal.(*tensor.Dense))
		if err != nil {
			t.Fatal(err)
		}
		checkZero(t, "graph round trip density", sum, 1e-9)
	}
}

func TestGraphIdentityOwnsOutput(t *testing.T) {
	in := dense([]int{2, 2}, []float64{1, 2, 3, 4})

	g := G.NewGraph()
	x := G.NewTensor(g, tensor.Float64, 2, G.WithShape(2, 2),
		G.WithValue(in), G.WithName("x"))
	y, _, err := ForwardNode(NewIdentity(), x, Reduced)
	if err != nil {
		t.Fatal(err)
	}

	var yVal G.Value
	G.Read(y, &yVal)

	vm := G.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		t.Fatal(err)
	}

	if yVal.(*tensor.Dense) == in {
		t.Error("expected the identity node to own its output")
	}
	checkClose(t, "graph identity", in, yVal.(*tensor.Dense), 0)
}

func TestGraphErrors(t *testing.T) {
	g := G.NewGraph()
	x := G.NewTensor(g, tensor.Float64, 2, G.WithShape(2, 2),
		G.WithName("x"))

	if _, _, err := ForwardNode(nil, x, Reduced); !errors.Is(err,
		ErrConfiguration) {
		t.Errorf("expected ErrConfiguration but got %v", err)
	}

	s := G.NewScalar(g, tensor.Float64, G.WithName("s"))
	if _, _, err := ForwardNode(NewTanh(), s, Reduced); !errors.Is(err,
		ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch but got %v", err)
	}
}

func TestGraphNodeNames(t *testing.T) {
	g := G.NewGraph()
	x := G.NewTensor(g, tensor.Float64, 2, G.WithShape(2, 2),
		G.WithName("x"))

	m := NewTanh()
	seen := make(map[string]bool)
	for i := 0; i < 3; i++ {
		y, logJ, err := ForwardNode(m, x, Reduced)
		if err != nil {
			t.Fatal(err)
		}
		for _, n := range []*G.Node{y, logJ} {
			if !strings.HasPrefix(n.Name(), "tanh_forward_") {
				t.Errorf("unexpected node name %v", n.Name())
			}
			if seen[n.Name()] {
				t.Errorf("duplicate node name %v", n.Name())
			}
			seen[n.Name()] = true
		}
	}
}
