package bijector

import (
	"math"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gorgonia.org/tensor"
)

// randDense returns a Float64 tensor of the given shape with elements
// drawn uniformly from [min, max)
func randDense(src *rand.Rand, shape []int, min, max float64) *tensor.Dense {
	backing := make([]float64, tensor.Shape(shape).TotalSize())
	for i := range backing {
		backing[i] = min + (max-min)*src.Float64()
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(backing))
}

func dense(shape []int, backing []float64) *tensor.Dense {
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(backing))
}

// checkClose fails the test if got and want differ in shape or in any
// element by more than tol
func checkClose(t *testing.T, what string, want, got *tensor.Dense,
	tol float64) {
	t.Helper()

	if !want.Shape().Eq(got.Shape()) {
		t.Errorf("%s: expected shape %v but got %v", what, want.Shape(),
			got.Shape())
		return
	}

	w, g := toFloat64s(want), toFloat64s(got)
	if !floats.EqualApprox(w, g, tol) {
		for i := range w {
			if math.Abs(w[i]-g[i]) > tol {
				t.Errorf("%s: expected %v but got %v at index %d", what, w[i],
					g[i], i)
				return
			}
		}
	}
}

// checkZero fails the test if any element of got is further than tol
// from 0
func checkZero(t *testing.T, what string, got *tensor.Dense, tol float64) {
	t.Helper()

	for i, v := range toFloat64s(got) {
		if math.Abs(v) > tol {
			t.Errorf("%s: expected 0 but got %v at index %d", what, v, i)
			return
		}
	}
}

func toFloat64s(x *tensor.Dense) []float64 {
	if x.Dtype() == tensor.Float32 {
		return widen(float32s(x))
	}
	return float64s(x)
}

// randomizeSplines sets random parameters on every rational-quadratic
// spline of s
func randomizeSplines(t *testing.T, src *rand.Rand, s *Spline) {
	t.Helper()

	for i := 0; i < s.Sites(); i++ {
		rq, ok := s.Site(i).(interface {
			Len() int
			SetParams(w, h, d []float64) error
		})
		if !ok {
			t.Fatalf("site %d of %s is not a rational-quadratic spline", i,
				s.Label())
		}

		k := rq.Len()
		w := make([]float64, k-1)
		h := make([]float64, k-1)
		d := make([]float64, k)
		for _, p := range [][]float64{w, h, d} {
			for j := range p {
				p[j] = src.Float64() - 0.5
			}
		}
		if err := rq.SetParams(w, h, d); err != nil {
			t.Fatal(err)
		}
	}
}
