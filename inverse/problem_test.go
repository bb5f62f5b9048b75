package inverse

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/ArtisanClarinets/openwind/bore"
	"github.com/ArtisanClarinets/openwind/impedance"
)

// testBore is a short two-segment pipe with two side holes, coarse enough
// to keep sweeps cheap.
func testBore() *bore.Bore {
	return &bore.Bore{
		Segments: []bore.Segment{
			bore.Cylinder(0, 0.20, 0.0072),
			bore.Cone(0.20, 0.30, 0.0072, 0.011),
		},
		Holes: []bore.Hole{
			{Label: "h1", Position: 0.12, Radius: 0.004, Chimney: 0.003},
			{Label: "h2", Position: 0.17, Radius: 0.0045, Chimney: 0.0028},
		},
	}
}

func fastOpts() []impedance.Option {
	return []impedance.Option{impedance.WithElementLength(0.04)}
}

func mustGrid(t *testing.T, start, stop float64, n int) []float64 {
	t.Helper()
	g, err := impedance.Grid(start, stop, n)
	if err != nil {
		t.Fatalf("Grid(%g, %g, %d): %v", start, stop, n, err)
	}
	return g
}

func mustProblem(t *testing.T, b *bore.Bore, params []Parameter, objs []Objective) *Problem {
	t.Helper()
	p, err := NewProblem(b, params, objs, fastOpts()...)
	if err != nil {
		t.Fatalf("NewProblem: %v", err)
	}
	return p
}

func mustRunFingering(t *testing.T, b *bore.Bore, freqs []float64, f bore.Fingering) *impedance.Result {
	t.Helper()
	sim, err := impedance.New(b, fastOpts()...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := sim.RunFingering(context.Background(), freqs, f)
	if err != nil {
		t.Fatalf("RunFingering: %v", err)
	}
	return res
}

func TestNewProblemErrors(t *testing.T) {
	radius := Parameter{Field: HoleRadius, Index: 0}
	obj := &ResonanceTarget{Grid: []float64{100, 200, 300}, Want: []float64{250}}

	badBore := testBore()
	badBore.Holes[0].Radius = -1

	cases := []struct {
		name   string
		bore   *bore.Bore
		params []Parameter
		objs   []Objective
		want   error
	}{
		{"nil bore", nil, []Parameter{radius}, []Objective{obj}, ErrNilBore},
		{"invalid bore", badBore, []Parameter{radius}, []Objective{obj}, bore.ErrRadius},
		{"no parameters", testBore(), nil, []Objective{obj}, ErrNoParameters},
		{"no objectives", testBore(), []Parameter{radius}, nil, ErrNoObjectives},
		{"hole index out of range", testBore(), []Parameter{{Field: HoleChimney, Index: 5}}, []Objective{obj}, ErrParameter},
		{"segment index out of range", testBore(), []Parameter{{Field: SegmentEndRadius, Index: 2}}, []Objective{obj}, ErrParameter},
		{"inverted bounds", testBore(), []Parameter{{Field: HoleRadius, Index: 0, Min: 0.006, Max: 0.002}}, []Objective{obj}, ErrBounds},
		{"empty objective", testBore(), []Parameter{radius}, []Objective{&ImpedanceTarget{}}, ErrTargets},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewProblem(tc.bore, tc.params, tc.objs); !errors.Is(err, tc.want) {
				t.Errorf("NewProblem error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestStartingPointReadsGeometry(t *testing.T) {
	b := testBore()
	p := mustProblem(t, b, []Parameter{
		{Field: HoleRadius, Index: 1},
		{Field: HolePosition, Index: 0},
		{Field: HoleChimney, Index: 1},
		{Field: SegmentEndRadius, Index: 1},
		{Field: SegmentEndPosition, Index: 0},
	}, []Objective{&ResonanceTarget{Grid: []float64{100, 200}, Want: []float64{150}}})

	want := []float64{0.0045, 0.12, 0.0028, 0.011, 0.20}
	got := p.X0()
	if len(got) != len(want) {
		t.Fatalf("X0 length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("X0[%d] = %g, want %g", i, got[i], want[i])
		}
	}
}

func TestTrialPropagatesSharedBoundaries(t *testing.T) {
	obj := []Objective{&ResonanceTarget{Grid: []float64{100, 200}, Want: []float64{150}}}

	t.Run("segment end radius", func(t *testing.T) {
		p := mustProblem(t, testBore(), []Parameter{{Field: SegmentEndRadius, Index: 0}}, obj)
		g := p.Geometry([]float64{0.008})
		if g.Segments[0].EndRadius != 0.008 {
			t.Errorf("EndRadius = %g, want 0.008", g.Segments[0].EndRadius)
		}
		if g.Segments[0].StartRadius != 0.008 {
			t.Errorf("cylinder StartRadius = %g, want 0.008", g.Segments[0].StartRadius)
		}
		if g.Segments[1].StartRadius != 0.008 {
			t.Errorf("next StartRadius = %g, want 0.008", g.Segments[1].StartRadius)
		}
		if g.Segments[1].EndRadius != 0.011 {
			t.Errorf("next EndRadius = %g, want 0.011 unchanged", g.Segments[1].EndRadius)
		}
	})

	t.Run("segment end position", func(t *testing.T) {
		p := mustProblem(t, testBore(), []Parameter{{Field: SegmentEndPosition, Index: 0}}, obj)
		g := p.Geometry([]float64{0.22})
		if g.Segments[0].End != 0.22 || g.Segments[1].Start != 0.22 {
			t.Errorf("shared joint = (%g, %g), want (0.22, 0.22)", g.Segments[0].End, g.Segments[1].Start)
		}
	})

	t.Run("base untouched", func(t *testing.T) {
		b := testBore()
		p := mustProblem(t, b, []Parameter{{Field: HoleRadius, Index: 0}}, obj)
		g := p.Geometry([]float64{0.005})
		if g.Holes[0].Radius != 0.005 {
			t.Fatalf("trial radius = %g, want 0.005", g.Holes[0].Radius)
		}
		if b.Holes[0].Radius != 0.004 {
			t.Errorf("caller bore radius = %g, want 0.004 unchanged", b.Holes[0].Radius)
		}
		if got := p.X0()[0]; got != 0.004 {
			t.Errorf("X0 after trial = %g, want 0.004", got)
		}
	})
}

func TestClipProjectsOntoBounds(t *testing.T) {
	p := mustProblem(t, testBore(), []Parameter{
		{Field: HoleRadius, Index: 0, Min: 0.003, Max: 0.005},
		{Field: HoleChimney, Index: 0}, // unbounded
	}, []Objective{&ResonanceTarget{Grid: []float64{100, 200}, Want: []float64{150}}})

	x := []float64{0.001, 99}
	moved := p.clip(x)
	if len(moved) != 1 || moved[0] != 0 {
		t.Fatalf("clip moved = %v, want [0]", moved)
	}
	if x[0] != 0.003 || x[1] != 99 {
		t.Errorf("clipped x = %v, want [0.003 99]", x)
	}

	x = []float64{0.0999, 0.004}
	if moved := p.clip(x); len(moved) != 1 || x[0] != 0.005 {
		t.Errorf("upper clip: moved = %v, x = %v", moved, x)
	}

	x = []float64{0.004, -3}
	if moved := p.clip(x); len(moved) != 0 {
		t.Errorf("interior point: moved = %v, want none", moved)
	}
}

func TestCostMatchesStackedResiduals(t *testing.T) {
	freqs := []float64{180, 320, 460}
	p := mustProblem(t, testBore(), []Parameter{{Field: HoleRadius, Index: 0}}, []Objective{
		&ImpedanceTarget{Frequencies: freqs, Want: make([]complex128, len(freqs))},
	})

	res := mustRunFingering(t, testBore(), freqs, nil)
	want := 0.0
	for i := range freqs {
		re := res.Real[i] / res.Zc
		im := res.Imag[i] / res.Zc
		want += 0.5 * (re*re + im*im)
	}

	got, err := p.Cost(context.Background(), p.X0())
	if err != nil {
		t.Fatalf("Cost: %v", err)
	}
	if math.Abs(got-want) > 1e-12*math.Abs(want) {
		t.Errorf("Cost = %g, want %g", got, want)
	}
}
