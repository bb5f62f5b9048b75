package fem

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/ArtisanClarinets/openwind/bore"
	"github.com/ArtisanClarinets/openwind/mesh"
	"github.com/ArtisanClarinets/openwind/physics"
)

// Errors returned by network construction and solving.
var (
	ErrFrequency     = errors.New("fem: frequency must be positive")
	ErrHoleModel     = errors.New("fem: radiation model not allowed on tone holes")
	ErrPartialPinned = errors.New("fem: a pinned hole cannot be partially open")
	ErrShapeMismatch = errors.New("fem: networks differ in discretization")
)

// cutTol merges cut points closer than a nanometre, matching the minimum
// span the mesher accepts.
const cutTol = 1e-9

// Config selects the physical models and the discretization policy. Nil
// models fall back to defaults: lossless propagation, unflanged openings.
// Air is taken literally, so a zero value means dry air at 0 °C.
type Config struct {
	Air            physics.Air
	Losses         physics.Losses
	BellRadiation  physics.Radiation
	HoleRadiation  physics.Radiation
	MatchingVolume bool // lumped compliance of the bore/hole junction volume
	Mesh           mesh.Options
}

// pipe is one meshed span with its radius profile and per-element global
// node ids.
type pipe struct {
	radius bore.ProfileFunc
	m      *mesh.Mesh
	ids    [][]int
}

// holeJunction records the discretized footprint of a tone hole.
type holeJunction struct {
	label        string
	radius       float64
	junctionNode int
	topNode      int
	matching     float64 // junction compliance volume, m³
}

// Network is a discretized instrument ready for frequency sweeps. It is
// immutable after construction and safe for concurrent use.
type Network struct {
	props   physics.AirProps
	losses  physics.Losses
	bellRad physics.Radiation
	holeRad physics.Radiation

	pipes []pipe
	holes []holeJunction

	nodes     int
	bandwidth int
	inputNode int
	bellNode  int

	inputRadius float64
	bellRadius  float64
	tables      map[int]*mesh.Tables
}

// NewNetwork validates the geometry and configuration, meshes every pipe and
// numbers the degrees of freedom.
func NewNetwork(g *bore.Bore, cfg Config) (*Network, error) {
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("fem: %w", err)
	}
	props, err := cfg.Air.Props()
	if err != nil {
		return nil, fmt.Errorf("fem: %w", err)
	}

	nw := &Network{props: props}

	nw.losses = cfg.Losses
	if nw.losses == nil {
		nw.losses, _ = physics.NewLosses(physics.LossNone)
	}
	nw.bellRad = cfg.BellRadiation
	if nw.bellRad == nil {
		nw.bellRad, _ = physics.NewRadiation(physics.RadUnflanged)
	}
	nw.holeRad = cfg.HoleRadiation
	if nw.holeRad == nil {
		nw.holeRad, _ = physics.NewRadiation(physics.RadUnflanged)
	}
	if len(g.Holes) > 0 && !nw.holeRad.HolesAllowed() {
		return nil, &physics.ModelConfigError{Model: nw.holeRad.Name(), Err: ErrHoleModel}
	}

	opts := cfg.Mesh
	if opts.Speed <= 0 {
		opts.Speed = props.C
	}

	if err := nw.build(g, opts, cfg.MatchingVolume); err != nil {
		return nil, err
	}
	return nw, nil
}

// build meshes the pipe graph and assigns node numbers. Chimney nodes are
// interleaved right after their junction to keep the band narrow.
func (nw *Network) build(g *bore.Bore, opts mesh.Options, matching bool) error {
	// Segment profiles, fitted once.
	profiles := make([]bore.ProfileFunc, len(g.Segments))
	for i := range g.Segments {
		p, err := g.Segments[i].Profile()
		if err != nil {
			return fmt.Errorf("fem: segment %d: %w", i, err)
		}
		profiles[i] = p
	}
	nw.inputRadius = profiles[0](g.Input())
	nw.bellRadius = profiles[len(profiles)-1](g.End())

	// Cut the main bore at segment boundaries and hole positions.
	cuts := make([]float64, 0, len(g.Segments)+len(g.Holes)+1)
	for i := range g.Segments {
		cuts = append(cuts, g.Segments[i].Start)
	}
	cuts = append(cuts, g.End())
	for i := range g.Holes {
		cuts = append(cuts, g.Holes[i].Position)
	}
	sort.Float64s(cuts)
	dedup := cuts[:1]
	for _, x := range cuts[1:] {
		if x-dedup[len(dedup)-1] > cutTol {
			dedup = append(dedup, x)
		}
	}
	cuts = dedup

	nextID := 0
	alloc := func() int {
		id := nextID
		nextID++
		return id
	}
	numberPipe := func(m *mesh.Mesh, firstID int) [][]int {
		ids := make([][]int, len(m.Elements))
		cur := firstID
		if cur < 0 {
			cur = alloc()
		}
		for e := range m.Elements {
			row := make([]int, m.Elements[e].Order+1)
			row[0] = cur
			for i := 1; i < len(row); i++ {
				row[i] = alloc()
			}
			cur = row[len(row)-1]
			ids[e] = row
		}
		return ids
	}

	nw.tables = make(map[int]*mesh.Tables)
	ensureTables := func(m *mesh.Mesh) error {
		for _, e := range m.Elements {
			if _, ok := nw.tables[e.Order]; !ok {
				t, err := mesh.NewTables(e.Order)
				if err != nil {
					return fmt.Errorf("fem: %w", err)
				}
				nw.tables[e.Order] = t
			}
		}
		return nil
	}

	prevEnd := -1
	for k := 0; k+1 < len(cuts); k++ {
		lo, hi := cuts[k], cuts[k+1]
		si, ok := g.SegmentAt((lo + hi) / 2)
		if !ok {
			return fmt.Errorf("fem: no segment covers span [%g, %g]", lo, hi)
		}
		m, err := mesh.New(lo, hi, opts)
		if err != nil {
			return fmt.Errorf("fem: %w", err)
		}
		if err := ensureTables(m); err != nil {
			return err
		}
		ids := numberPipe(m, prevEnd)
		nw.pipes = append(nw.pipes, pipe{radius: profiles[si], m: m, ids: ids})
		endNode := ids[len(ids)-1][len(ids[len(ids)-1])-1]

		// Attach the chimneys of any hole sitting on this boundary.
		if k+2 < len(cuts) {
			for hIdx := range g.Holes {
				h := &g.Holes[hIdx]
				if math.Abs(h.Position-cuts[k+1]) > cutTol {
					continue
				}
				cm, err := mesh.New(0, h.Chimney, opts)
				if err != nil {
					return fmt.Errorf("fem: hole %q chimney: %w", h.Label, err)
				}
				if err := ensureTables(cm); err != nil {
					return err
				}
				cids := numberPipe(cm, endNode)
				radius := h.Radius
				nw.pipes = append(nw.pipes, pipe{
					radius: func(float64) float64 { return radius },
					m:      cm,
					ids:    cids,
				})

				j := holeJunction{
					label:        h.Label,
					radius:       h.Radius,
					junctionNode: endNode,
					topNode:      cids[len(cids)-1][len(cids[len(cids)-1])-1],
				}
				if matching {
					main, err := g.Radius(h.Position)
					if err != nil {
						return fmt.Errorf("fem: hole %q: %w", h.Label, err)
					}
					j.matching = matchingVolume(h.Radius, main)
				}
				nw.holes = append(nw.holes, j)
			}
		}
		prevEnd = endNode
	}

	if len(nw.holes) != len(g.Holes) {
		return fmt.Errorf("fem: %d of %d holes attached to the mesh", len(nw.holes), len(g.Holes))
	}

	nw.nodes = nextID
	nw.inputNode = 0
	nw.bellNode = prevEnd

	for _, p := range nw.pipes {
		for _, row := range p.ids {
			lo, hi := row[0], row[0]
			for _, id := range row {
				lo = min(lo, id)
				hi = max(hi, id)
			}
			nw.bandwidth = max(nw.bandwidth, hi-lo)
		}
	}
	return nil
}

// matchingVolume is the wedge volume where a cylindrical hole of radius r
// meets the main bore of radius rMain, as an equivalent cylinder of height
// t_m = r·δ/8·(1 + 0.207·δ³), δ = r/rMain.
func matchingVolume(r, rMain float64) float64 {
	delta := r / rMain
	tm := r * delta / 8 * (1 + 0.207*delta*delta*delta)
	return math.Pi * r * r * tm
}

// NodeCount returns the number of pressure unknowns.
func (nw *Network) NodeCount() int { return nw.nodes }

// ElementCount returns the total element count over all pipes.
func (nw *Network) ElementCount() int {
	n := 0
	for _, p := range nw.pipes {
		n += len(p.m.Elements)
	}
	return n
}

// Bandwidth returns the half-bandwidth of the assembled system.
func (nw *Network) Bandwidth() int { return nw.bandwidth }

// Props returns the resolved air coefficients.
func (nw *Network) Props() physics.AirProps { return nw.props }

// InputRadius returns the bore radius at the blowing end, used to normalize
// impedances by the characteristic impedance.
func (nw *Network) InputRadius() float64 { return nw.inputRadius }

// BellRadius returns the bore radius at the radiating end.
func (nw *Network) BellRadius() float64 { return nw.bellRadius }
