package inverse

import (
	"context"
	"math"
	"testing"

	"github.com/ArtisanClarinets/openwind/bore"
	"github.com/ArtisanClarinets/openwind/internal/testutil"
)

// The adjoint path differentiates impedance targets through the assembled
// operator; plain differencing re-solves. Both approximate the same
// derivative to second order in the probe step, so their disagreement must
// stay far below the entries themselves. Rows of objectives without adjoint
// structure share the probe simulations and must come out identical.
func TestAdjointMatchesFiniteDifference(t *testing.T) {
	params := []Parameter{
		{Field: HoleRadius, Index: 0},
		{Field: HoleChimney, Index: 1},
		{Field: SegmentEndRadius, Index: 1},
	}
	freqs := []float64{150, 290, 430}
	objs := []Objective{
		&ImpedanceTarget{
			Fingering:   bore.Fingering{"h1": 0, "h2": 1},
			Frequencies: freqs,
			Want:        make([]complex128, len(freqs)),
		},
		&ResonanceTarget{Grid: mustGrid(t, 100, 900, 201), Want: []float64{250}},
	}
	p := mustProblem(t, testBore(), params, objs)

	ctx := context.Background()
	x := p.X0()
	r, err := p.residuals(ctx, x)
	if err != nil {
		t.Fatalf("residuals: %v", err)
	}
	jFD, err := p.jacobian(ctx, x, r, GradFiniteDiff)
	if err != nil {
		t.Fatalf("finite-diff jacobian: %v", err)
	}
	jAdj, err := p.jacobian(ctx, x, r, GradAdjoint)
	if err != nil {
		t.Fatalf("adjoint jacobian: %v", err)
	}

	rows, cols := jFD.Dims()
	if rows != p.ResidualCount() || cols != len(params) {
		t.Fatalf("dims = %dx%d, want %dx%d", rows, cols, p.ResidualCount(), len(params))
	}

	impRows := objs[0].Count()
	for j := 0; j < cols; j++ {
		scale := 0.0
		for i := 0; i < impRows; i++ {
			scale = math.Max(scale, math.Max(math.Abs(jFD.At(i, j)), math.Abs(jAdj.At(i, j))))
		}
		if scale == 0 {
			t.Fatalf("parameter %d: impedance rows all zero", j)
		}
		for i := 0; i < impRows; i++ {
			if diff := math.Abs(jFD.At(i, j) - jAdj.At(i, j)); diff > 5e-4*scale {
				t.Errorf("row %d, parameter %d: fd %g vs adjoint %g", i, j, jFD.At(i, j), jAdj.At(i, j))
			}
		}
		for i := impRows; i < rows; i++ {
			if jFD.At(i, j) != jAdj.At(i, j) {
				t.Errorf("shared-probe row %d, parameter %d: fd %g vs adjoint %g", i, j, jFD.At(i, j), jAdj.At(i, j))
			}
		}
	}
}

// A probe stepping the geometry out of its valid range falls back to the
// one-sided quotient instead of failing the whole Jacobian.
func TestJacobianOneSidedNearInvalid(t *testing.T) {
	b := testBore()
	b.Holes[0].Radius = 8e-7 // minus probe would go negative

	freqs := []float64{180, 320}
	p := mustProblem(t, b,
		[]Parameter{{Field: HoleRadius, Index: 0}},
		[]Objective{&ImpedanceTarget{Frequencies: freqs, Want: make([]complex128, len(freqs))}})

	ctx := context.Background()
	x := p.X0()
	r, err := p.residuals(ctx, x)
	if err != nil {
		t.Fatalf("residuals: %v", err)
	}

	jFD, err := p.jacobian(ctx, x, r, GradFiniteDiff)
	if err != nil {
		t.Fatalf("finite-diff jacobian: %v", err)
	}
	jAdj, err := p.jacobian(ctx, x, r, GradAdjoint)
	if err != nil {
		t.Fatalf("adjoint jacobian: %v", err)
	}
	testutil.RequireFinite(t, jFD.RawMatrix().Data)
	rows, _ := jFD.Dims()
	for i := 0; i < rows; i++ {
		// Both paths hit the same fallback quotient.
		if v := jFD.At(i, 0); v != jAdj.At(i, 0) {
			t.Errorf("row %d: fd %g vs adjoint fallback %g", i, v, jAdj.At(i, 0))
		}
	}
}

func TestGradientString(t *testing.T) {
	if got := GradFiniteDiff.String(); got != "finite-diff" {
		t.Errorf("GradFiniteDiff = %q", got)
	}
	if got := GradAdjoint.String(); got != "adjoint" {
		t.Errorf("GradAdjoint = %q", got)
	}
}
