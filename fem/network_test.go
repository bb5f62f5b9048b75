package fem

import (
	"errors"
	"math"
	"testing"

	"github.com/ArtisanClarinets/openwind/bore"
	"github.com/ArtisanClarinets/openwind/mesh"
	"github.com/ArtisanClarinets/openwind/physics"
)

// twoHoleBore is a short cylinder-plus-bell bore with two tone holes, small
// enough to count nodes by hand.
func twoHoleBore() *bore.Bore {
	return &bore.Bore{
		Segments: []bore.Segment{
			bore.Cylinder(0, 0.3, 7*bore.MM),
			bore.Cone(0.3, 0.45, 7*bore.MM, 20*bore.MM),
		},
		Holes: []bore.Hole{
			{Label: "h1", Position: 0.15, Radius: 3 * bore.MM, Chimney: 4 * bore.MM},
			{Label: "h2", Position: 0.25, Radius: 4 * bore.MM, Chimney: 3 * bore.MM},
		},
	}
}

func mustLosses(t *testing.T, k physics.LossKind) physics.Losses {
	t.Helper()
	m, err := physics.NewLosses(k)
	if err != nil {
		t.Fatalf("NewLosses(%v): %v", k, err)
	}
	return m
}

func mustRadiation(t *testing.T, k physics.RadKind) physics.Radiation {
	t.Helper()
	m, err := physics.NewRadiation(k)
	if err != nil {
		t.Fatalf("NewRadiation(%v): %v", k, err)
	}
	return m
}

func TestNetworkTopology(t *testing.T) {
	nw, err := NewNetwork(twoHoleBore(), Config{
		Air:  physics.Air{Temperature: 20},
		Mesh: mesh.Options{ElementLength: 0.05, Order: 2},
	})
	if err != nil {
		t.Fatalf("NewNetwork: %v", err)
	}

	// Main bore cut at 0.15, 0.25 and 0.3 gives 3+2+1+3 elements of order
	// 2, the two chimneys one element each: 19 main nodes sharing the two
	// junctions with 2 extra chimney nodes apiece.
	if got := nw.ElementCount(); got != 11 {
		t.Errorf("ElementCount = %d, want 11", got)
	}
	if got := nw.NodeCount(); got != 23 {
		t.Errorf("NodeCount = %d, want 23", got)
	}

	// Chimney nodes are interleaved right after their junction, so the
	// half-bandwidth is the element order plus the chimney node count.
	if got := nw.Bandwidth(); got != 4 {
		t.Errorf("Bandwidth = %d, want 4", got)
	}

	if got := nw.InputRadius(); math.Abs(got-7*bore.MM) > 1e-15 {
		t.Errorf("InputRadius = %v, want %v", got, 7*bore.MM)
	}
	if got := nw.BellRadius(); math.Abs(got-20*bore.MM) > 1e-15 {
		t.Errorf("BellRadius = %v, want %v", got, 20*bore.MM)
	}

	if len(nw.holes) != 2 {
		t.Fatalf("attached %d holes, want 2", len(nw.holes))
	}
	for _, h := range nw.holes {
		if h.topNode <= h.junctionNode {
			t.Errorf("hole %q: top node %d not after junction node %d", h.label, h.topNode, h.junctionNode)
		}
		if h.matching != 0 {
			t.Errorf("hole %q: matching volume %v without MatchingVolume", h.label, h.matching)
		}
	}
}

func TestNetworkMatchingVolumes(t *testing.T) {
	nw, err := NewNetwork(twoHoleBore(), Config{
		Air:            physics.Air{Temperature: 20},
		MatchingVolume: true,
		Mesh:           mesh.Options{ElementLength: 0.05, Order: 2},
	})
	if err != nil {
		t.Fatalf("NewNetwork: %v", err)
	}
	for _, h := range nw.holes {
		if h.matching <= 0 {
			t.Errorf("hole %q: matching volume %v, want > 0", h.label, h.matching)
		}
	}
}

func TestMatchingVolume(t *testing.T) {
	// r = 4 mm in a 7 mm main bore: t_m = r·δ/8·(1+0.207δ³) with δ = 4/7.
	got := matchingVolume(0.004, 0.007)
	want := 1.4916265e-8
	if math.Abs(got-want) > 1e-5*want {
		t.Errorf("matchingVolume(4mm, 7mm) = %v, want %v", got, want)
	}

	// A narrower hole has a much smaller wedge.
	if v := matchingVolume(0.002, 0.007); v >= got {
		t.Errorf("matchingVolume(2mm, 7mm) = %v, want < %v", v, got)
	}
}

func TestNewNetworkErrors(t *testing.T) {
	goodMesh := mesh.Options{ElementLength: 0.05, Order: 2}
	plain := &bore.Bore{Segments: []bore.Segment{bore.Cylinder(0, 0.3, 5 * bore.MM)}}

	tests := []struct {
		name string
		bore *bore.Bore
		cfg  Config
		want error
	}{
		{
			name: "no segments",
			bore: &bore.Bore{},
			cfg:  Config{Mesh: goodMesh},
			want: bore.ErrNoSegments,
		},
		{
			name: "temperature below absolute zero",
			bore: plain,
			cfg:  Config{Air: physics.Air{Temperature: -300}, Mesh: goodMesh},
			want: physics.ErrTemperature,
		},
		{
			name: "anechoic model on tone holes",
			bore: twoHoleBore(),
			cfg: Config{
				HoleRadiation: mustRadiation(t, physics.RadTotalTransmission),
				Mesh:          goodMesh,
			},
			want: ErrHoleModel,
		},
		{
			name: "automatic sizing without max frequency",
			bore: plain,
			cfg:  Config{},
			want: mesh.ErrResolution,
		},
		{
			name: "order out of range",
			bore: plain,
			cfg:  Config{Mesh: mesh.Options{ElementLength: 0.05, Order: 11}},
			want: mesh.ErrOrder,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewNetwork(tc.bore, tc.cfg)
			if !errors.Is(err, tc.want) {
				t.Errorf("NewNetwork error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestNetworkAutomaticSizing(t *testing.T) {
	nw, err := NewNetwork(twoHoleBore(), Config{
		Air:  physics.Air{Temperature: 20},
		Mesh: mesh.Options{MaxFrequency: 2000},
	})
	if err != nil {
		t.Fatalf("NewNetwork: %v", err)
	}
	// Speed defaults to the resolved sound speed, about 343 m/s at 20 °C:
	// target length 343/2000/10 ≈ 17 mm over a 450 mm bore.
	if got := nw.ElementCount(); got < 25 || got > 40 {
		t.Errorf("ElementCount = %d, want about 30", got)
	}
}
