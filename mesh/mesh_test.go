package mesh

import (
	"errors"
	"math"
	"testing"
)

func TestNewExactDivision(t *testing.T) {
	// 5 cm at 1 cm per element: exactly 5, no spurious sixth element from
	// floating point noise.
	m, err := New(0, 0.05, Options{ElementLength: 0.01})
	if err != nil {
		t.Fatal(err)
	}
	if got := len(m.Elements); got != 5 {
		t.Fatalf("element count = %d, want 5", got)
	}
	for i, e := range m.Elements {
		if math.Abs(e.Length()-0.01) > 1e-12 {
			t.Errorf("element %d length = %v, want 0.01", i, e.Length())
		}
	}
}

func TestNewRoundsUp(t *testing.T) {
	// 5.2 elements' worth of span must give 6 shorter elements, never 5
	// longer ones: the target length is a ceiling.
	m, err := New(0, 0.052, Options{ElementLength: 0.01})
	if err != nil {
		t.Fatal(err)
	}
	if got := len(m.Elements); got != 6 {
		t.Fatalf("element count = %d, want 6", got)
	}
	for i, e := range m.Elements {
		if e.Length() > 0.01+1e-12 {
			t.Errorf("element %d length = %v, exceeds target", i, e.Length())
		}
	}
}

func TestNewAutomaticPolicy(t *testing.T) {
	// λ = 340/2000 = 0.17 m, 10 elements per wavelength → 0.017 m target,
	// 0.51/0.017 = 30 elements.
	m, err := New(0, 0.51, Options{Speed: 340, MaxFrequency: 2000})
	if err != nil {
		t.Fatal(err)
	}
	if got := len(m.Elements); got != 30 {
		t.Errorf("element count = %d, want 30", got)
	}
}

func TestNewShortSpan(t *testing.T) {
	// A span shorter than the target still gets one element.
	m, err := New(0, 0.003, Options{ElementLength: 0.01})
	if err != nil {
		t.Fatal(err)
	}
	if got := len(m.Elements); got != 1 {
		t.Errorf("element count = %d, want 1", got)
	}
	if math.Abs(m.Elements[0].Length()-0.003) > 1e-15 {
		t.Errorf("element length = %v, want 0.003", m.Elements[0].Length())
	}
}

func TestNewErrors(t *testing.T) {
	tests := []struct {
		name       string
		start, end float64
		opt        Options
		wantErr    error
	}{
		{"degenerate span", 0.2, 0.2, Options{ElementLength: 0.01}, ErrSpan},
		{"reversed span", 0.3, 0.2, Options{ElementLength: 0.01}, ErrSpan},
		{"no sizing information", 0, 0.5, Options{}, ErrResolution},
		{"order too high", 0, 0.5, Options{ElementLength: 0.01, Order: 11}, ErrOrder},
		{"negative order", 0, 0.5, Options{ElementLength: 0.01, Order: -2}, ErrOrder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.start, tt.end, tt.opt)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("New() error = %v, want %v", err, tt.wantErr)
			}
			var de *DiscretizationError
			if !errors.As(err, &de) || de.Start != tt.start || de.End != tt.end {
				t.Errorf("New() error = %v, want DiscretizationError for [%g, %g]", err, tt.start, tt.end)
			}
		})
	}
}

func TestMeshTiling(t *testing.T) {
	m, err := New(0.1, 0.45, Options{ElementLength: 0.013, Order: 3})
	if err != nil {
		t.Fatal(err)
	}

	if m.Elements[0].Start != 0.1 {
		t.Errorf("first element starts at %v, want 0.1", m.Elements[0].Start)
	}
	last := m.Elements[len(m.Elements)-1]
	if last.End != 0.45 {
		t.Errorf("last element ends at %v, want 0.45", last.End)
	}
	for i := 1; i < len(m.Elements); i++ {
		if m.Elements[i].Start != m.Elements[i-1].End {
			t.Errorf("gap between elements %d and %d", i-1, i)
		}
	}
	for i, e := range m.Elements {
		if e.Order != 3 {
			t.Errorf("element %d order = %d, want 3", i, e.Order)
		}
	}
}

func TestNodeCount(t *testing.T) {
	m, err := New(0, 0.05, Options{ElementLength: 0.01, Order: 4})
	if err != nil {
		t.Fatal(err)
	}
	// 5 elements of order 4 sharing boundaries: 5*4 + 1.
	if got := m.NodeCount(); got != 21 {
		t.Errorf("NodeCount() = %d, want 21", got)
	}
}
