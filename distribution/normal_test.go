package distribution

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/bijector"
)

const seed uint64 = 1

func dense(shape []int, backing []float64) *tensor.Dense {
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(backing))
}

func TestNormalLogProb(t *testing.T) {
	mean := dense([]int{2}, []float64{-1, 3})
	stddev := dense([]int{2}, []float64{0.5, 2})
	n, err := NewNormal(mean, stddev, seed)
	if err != nil {
		t.Fatal(err)
	}

	x := dense([]int{3, 2}, []float64{0, 1, -1, 3, 2.5, -4})
	perElement, err := n.LogProb(x, bijector.PerElement)
	if err != nil {
		t.Fatal(err)
	}
	reduced, err := n.LogProb(x, bijector.Reduced)
	if err != nil {
		t.Fatal(err)
	}

	dists := []distuv.Normal{{Mu: -1, Sigma: 0.5}, {Mu: 3, Sigma: 2}}
	xs := x.Data().([]float64)
	want := make([]float64, len(xs))
	for i, v := range xs {
		want[i] = dists[i%2].LogProb(v)
	}
	if !floats.EqualApprox(want, perElement.Data().([]float64), 1e-12) {
		t.Errorf("expected log probabilities %v but got %v", want,
			perElement.Data())
	}

	wantReduced := []float64{want[0] + want[1], want[2] + want[3],
		want[4] + want[5]}
	if !floats.EqualApprox(wantReduced, reduced.Data().([]float64), 1e-12) {
		t.Errorf("expected log probabilities %v but got %v", wantReduced,
			reduced.Data())
	}
}

func TestNormalQuantile(t *testing.T) {
	n, err := NewStdNormal([]int{3}, seed)
	if err != nil {
		t.Fatal(err)
	}

	x := dense([]int{2, 3}, []float64{-2, -0.5, 0, 0.25, 1, 3})
	p, err := n.Cdf(x)
	if err != nil {
		t.Fatal(err)
	}
	xr, err := n.Quantile(p)
	if err != nil {
		t.Fatal(err)
	}
	if !floats.EqualApprox(x.Data().([]float64), xr.Data().([]float64),
		1e-8) {
		t.Errorf("expected quantiles %v but got %v", x.Data(), xr.Data())
	}

	if _, err := n.Quantile(dense([]int{2, 3},
		[]float64{0, 0.5, 1, 0.5, 1.5, 0.5})); err == nil {
		t.Error("expected an error with a probability above 1")
	}
}

func TestNormalSample(t *testing.T) {
	mean := dense([]int{2}, []float64{-2, 5})
	stddev := dense([]int{2}, []float64{1, 0.1})
	n, err := NewNormal(mean, stddev, seed)
	if err != nil {
		t.Fatal(err)
	}

	const batch = 5000
	samples, err := n.Sample(batch)
	if err != nil {
		t.Fatal(err)
	}
	if !samples.Shape().Eq(tensor.Shape{batch, 2}) {
		t.Fatalf("expected samples of shape (%d, 2) but got %v", batch,
			samples.Shape())
	}

	data := samples.Data().([]float64)
	for site, mu := range []float64{-2, 5} {
		col := make([]float64, batch)
		for i := range col {
			col[i] = data[2*i+site]
		}
		if m := stat.Mean(col, nil); math.Abs(m-mu) > 0.1 {
			t.Errorf("site %d: expected mean %v but got %v", site, mu, m)
		}
	}

	if _, err := n.Sample(0); err == nil {
		t.Error("expected an error with an empty batch")
	}
}

func TestNormalEntropy(t *testing.T) {
	n, err := NewStdNormal([]int{2, 2}, seed)
	if err != nil {
		t.Fatal(err)
	}

	want := 4 * 0.5 * math.Log(2*math.Pi*math.E)
	if e := n.Entropy(); math.Abs(e-want) > 1e-12 {
		t.Errorf("expected entropy %v but got %v", want, e)
	}
}

func TestNormalErrors(t *testing.T) {
	if _, err := NewNormal(dense([]int{2}, []float64{0, 0}),
		dense([]int{3}, []float64{1, 1, 1}), seed); err == nil {
		t.Error("expected an error with mismatched shapes")
	}
	if _, err := NewNormal(dense([]int{2}, []float64{0, 0}),
		dense([]int{2}, []float64{1, 0}), seed); err == nil {
		t.Error("expected an error with a zero stddev")
	}

	n, err := NewStdNormal([]int{2}, seed)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := n.LogProb(dense([]int{2, 3}, make([]float64, 6)),
		bijector.Reduced); err == nil {
		t.Error("expected an error with samples of the wrong shape")
	}

	x32 := tensor.New(tensor.WithShape(2, 2),
		tensor.WithBacking([]float32{1, 2, 3, 4}))
	if _, err := n.LogProb(x32, bijector.Reduced); err == nil {
		t.Error("expected an error with Float32 samples")
	}
}

func TestUniform(t *testing.T) {
	if _, err := NewUniform(1, 1, []int{2}, seed); err == nil {
		t.Error("expected an error with an empty interval")
	}

	u, err := NewUniform(-1, 3, []int{2}, seed)
	if err != nil {
		t.Fatal(err)
	}

	x := dense([]int{2, 2}, []float64{0, 2, 4, -0.5})
	logProb, err := u.LogProb(x, bijector.PerElement)
	if err != nil {
		t.Fatal(err)
	}
	got := logProb.Data().([]float64)
	for _, i := range []int{0, 1, 3} {
		if math.Abs(got[i]+math.Log(4)) > 1e-12 {
			t.Errorf("element %d: expected %v but got %v", i, -math.Log(4),
				got[i])
		}
	}
	if !math.IsInf(got[2], -1) {
		t.Errorf("expected -Inf outside the support but got %v", got[2])
	}

	samples, err := u.Sample(100)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range samples.Data().([]float64) {
		if v < -1 || v > 3 {
			t.Errorf("sample %v outside of [-1, 3]", v)
		}
	}
}
