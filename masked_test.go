package bijector

import (
	"errors"
	"testing"

	"golang.org/x/exp/rand"

	"github.com/samuelfneumann/bijector/mask"
)

func newTestConvertor(t *testing.T, src *rand.Rand) *DistConvertor {
	t.Helper()

	d, err := NewDistConvertor(6, WithInitialScale())
	if err != nil {
		t.Fatal(err)
	}
	s, _ := d.Spline()
	randomizeSplines(t, src, s)
	scale, _ := d.Scale()
	scale.SetLogW(0.25)
	return d
}

func TestMaskedFrozenSites(t *testing.T) {
	src := rand.New(rand.NewSource(1))
	inner := newTestConvertor(t, src)

	pattern, err := mask.NewCheckerboard(0, []int{2, 3})
	if err != nil {
		t.Fatal(err)
	}
	m, err := NewMasked(inner, pattern)
	if err != nil {
		t.Fatal(err)
	}
	if m.Label() != "wrapper"+inner.Label() {
		t.Errorf("unexpected label %v", m.Label())
	}

	x := randDense(src, []int{4, 2, 3}, -3, 3)
	y, logJ, err := m.Forward(x, nil, PerElement)
	if err != nil {
		t.Fatal(err)
	}

	// The inner module is elementwise, so it may be applied to all sites
	// and compared against the active ones
	full, fullLogJ, err := inner.Forward(x, nil, PerElement)
	if err != nil {
		t.Fatal(err)
	}

	xs, ys, ls := float64s(x), float64s(y), float64s(logJ)
	fs, fls := float64s(full), float64s(fullLogJ)
	for i := range xs {
		if pattern.IsActive(i % 6) {
			if ys[i] != fs[i] || ls[i] != fls[i] {
				t.Errorf("active element %d: expected (%v, %v) but got "+
					"(%v, %v)", i, fs[i], fls[i], ys[i], ls[i])
			}
		} else if ys[i] != xs[i] || ls[i] != 0 {
			t.Errorf("frozen element %d: expected (%v, 0) but got (%v, %v)",
				i, xs[i], ys[i], ls[i])
		}
	}

	xr, _, err := m.Backward(y, nil, PerElement)
	if err != nil {
		t.Fatal(err)
	}
	xrs := float64s(xr)
	for i := range xs {
		if !pattern.IsActive(i%6) && xrs[i] != xs[i] {
			t.Errorf("frozen element %d changed by the round trip", i)
		}
	}
	checkClose(t, "masked round trip", x, xr, 1e-9)
}

func TestMaskedReduced(t *testing.T) {
	src := rand.New(rand.NewSource(2))
	inner := newTestConvertor(t, src)

	pattern, err := mask.New([]int{4}, []bool{true, true, false, true})
	if err != nil {
		t.Fatal(err)
	}
	m, err := NewMasked(inner, pattern)
	if err != nil {
		t.Fatal(err)
	}

	x := randDense(src, []int{5, 4}, -2, 2)
	_, logJ, err := m.Forward(x, nil, Reduced)
	if err != nil {
		t.Fatal(err)
	}
	_, perElement, err := m.Forward(x, nil, PerElement)
	if err != nil {
		t.Fatal(err)
	}

	want, err := Reduce(perElement, Reduced)
	if err != nil {
		t.Fatal(err)
	}
	checkClose(t, "masked density", want, logJ, 1e-12)
}

// Coupling a module through a mask and its complement transforms every
// site exactly once, and may share the module between both layers.
func TestMaskedComplement(t *testing.T) {
	src := rand.New(rand.NewSource(3))
	inner := newTestConvertor(t, src)

	pattern, err := mask.NewCheckerboard(1, []int{3})
	if err != nil {
		t.Fatal(err)
	}
	a, err := NewMasked(inner, pattern)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewMasked(inner, pattern.Invert())
	if err != nil {
		t.Fatal(err)
	}
	p, err := NewPipeline("coupling", a, b)
	if err != nil {
		t.Fatal(err)
	}

	x := randDense(src, []int{6, 3}, -3, 3)
	y, logJ, err := p.Forward(x, nil, Reduced)
	if err != nil {
		t.Fatal(err)
	}
	want, wantLogJ, err := inner.Forward(x, nil, Reduced)
	if err != nil {
		t.Fatal(err)
	}
	checkClose(t, "coupling", want, y, 1e-12)
	checkClose(t, "coupling density", wantLogJ, logJ, 1e-9)

	xr, log0, err := p.Backward(y, logJ, Reduced)
	if err != nil {
		t.Fatal(err)
	}
	checkClose(t, "coupling round trip", x, xr, 1e-9)
	checkZero(t, "coupling round trip density", log0, 1e-9)
}

func TestMaskedFill(t *testing.T) {
	x := dense([]int{2, 2}, []float64{0.2, 5, 0.7, -5})

	// The default fill of 0 lies outside the domain of Logit, so the
	// active part must be filled with a value inside it
	bad, err := mask.New([]int{2}, []bool{true, false})
	if err != nil {
		t.Fatal(err)
	}
	m, err := NewMasked(NewLogit(), bad)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := m.Forward(x, nil, Reduced); !errors.Is(err, ErrDomain) {
		t.Errorf("expected ErrDomain but got %v", err)
	}

	good, err := mask.New([]int{2}, []bool{true, false}, mask.WithFill(0.5))
	if err != nil {
		t.Fatal(err)
	}
	if m, err = NewMasked(NewLogit(), good); err != nil {
		t.Fatal(err)
	}
	y, _, err := m.Forward(x, nil, Reduced)
	if err != nil {
		t.Fatal(err)
	}
	ys := float64s(y)
	if ys[1] != 5 || ys[3] != -5 {
		t.Errorf("expected frozen sites 5 and -5 but got %v and %v", ys[1],
			ys[3])
	}
}

func TestMaskedMustLead(t *testing.T) {
	sb, err := NewSgnBias(1, WithSeed(1))
	if err != nil {
		t.Fatal(err)
	}
	pattern, err := mask.NewCheckerboard(0, []int{2})
	if err != nil {
		t.Fatal(err)
	}
	m, err := NewMasked(sb, pattern)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := NewPipeline("p", NewTanh(), m); !errors.Is(err,
		ErrConfiguration) {
		t.Errorf("expected ErrConfiguration but got %v", err)
	}
	if _, err := NewMasked(nil, pattern); !errors.Is(err,
		ErrConfiguration) {
		t.Errorf("expected ErrConfiguration but got %v", err)
	}
}
