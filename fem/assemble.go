package fem

import (
	"fmt"

	"github.com/ArtisanClarinets/openwind/bore"
	"github.com/ArtisanClarinets/openwind/internal/cbanded"
)

// Assembly holds the fingering-independent part of the system matrix at one
// frequency: every element integral, the junction compliances, and the bell
// termination. Hole terminations depend on the fingering and are applied to
// a copy, so sweeping a fingering chart pays the element assembly once per
// frequency.
type Assembly struct {
	nw    *Network
	omega float64
	base  *cbanded.Matrix
}

// Assemble builds the base matrix at angular frequency omega > 0.
func (nw *Network) Assemble(omega float64) (*Assembly, error) {
	if omega <= 0 {
		return nil, ErrFrequency
	}
	a := &Assembly{
		nw:    nw,
		omega: omega,
		base:  cbanded.New(nw.nodes, nw.bandwidth, nw.bandwidth),
	}

	for pi := range nw.pipes {
		nw.assemblePipe(&nw.pipes[pi], omega, a.base)
	}

	for _, h := range nw.holes {
		if h.matching > 0 {
			y := complex(0, omega*h.matching/(nw.props.Rho*nw.props.C*nw.props.C))
			a.base.Add(h.junctionNode, h.junctionNode, y)
		}
	}

	if nw.bellRad.Pinned() {
		a.base.ZeroRowCol(nw.bellNode)
	} else {
		y := nw.bellRad.Admittance(omega, nw.bellRadius, 1, nw.props)
		a.base.Add(nw.bellNode, nw.bellNode, y)
	}
	return a, nil
}

// Omega returns the angular frequency of the assembly.
func (a *Assembly) Omega() float64 { return a.omega }

// assemblePipe accumulates the element stiffness and mass integrals
//
//	K_ij = Σ_q w_q (1/zv)(x_q) φ_i'(x_q) φ_j'(x_q)
//	M_ij = Σ_q w_q   yt  (x_q) φ_i (x_q) φ_j (x_q)
//
// over every element of the pipe.
func (nw *Network) assemblePipe(p *pipe, omega float64, dst *cbanded.Matrix) {
	for e, el := range p.m.Elements {
		tab := nw.tables[el.Order]
		ids := p.ids[e]
		h := el.Length()
		n := el.Order + 1

		local := make([]complex128, n*n)
		for q := range tab.QX {
			xq := el.Start + tab.QX[q]*h
			w := tab.QW[q] * h
			zv, yt := nw.losses.Coefficients(omega, p.radius(xq), nw.props)
			invZv := 1 / zv
			for i := 0; i < n; i++ {
				dpi := tab.Dphi[q][i] / h
				phi := tab.Phi[q][i]
				for j := i; j < n; j++ {
					dpj := tab.Dphi[q][j] / h
					phj := tab.Phi[q][j]
					local[i*n+j] += invZv*complex(w*dpi*dpj, 0) + yt*complex(w*phi*phj, 0)
				}
			}
		}

		for i := 0; i < n; i++ {
			dst.Add(ids[i], ids[i], local[i*n+i])
			for j := i + 1; j < n; j++ {
				dst.Add(ids[i], ids[j], local[i*n+j])
				dst.Add(ids[j], ids[i], local[i*n+j])
			}
		}
	}
}

// apply copies the base matrix into dst and terminates the hole tops for
// the fingering. A missing label means the hole is closed; a nil fingering
// closes every hole.
func (a *Assembly) apply(f bore.Fingering, dst *cbanded.Matrix) error {
	dst.CopyFrom(a.base)
	for _, h := range a.nw.holes {
		opening := f[h.label]
		if opening < 0 || opening > 1 {
			return fmt.Errorf("fem: hole %q: %w", h.label, bore.ErrOpening)
		}
		if a.nw.holeRad.Pinned() {
			switch opening {
			case 0:
				// Sealed: rigid cap is the natural boundary condition.
			case 1:
				dst.ZeroRowCol(h.topNode)
			default:
				return fmt.Errorf("%w: hole %q opening %g", ErrPartialPinned, h.label, opening)
			}
			continue
		}
		if opening > 0 {
			y := a.nw.holeRad.Admittance(a.omega, h.radius, opening, a.nw.props)
			dst.Add(h.topNode, h.topNode, y)
		}
	}
	return nil
}

// Solution is the nodal pressure response to a unit input volume flow.
type Solution struct {
	Omega     float64
	Pressure  []complex128
	Impedance complex128 // input pressure = input impedance under unit flow

	// Clamped counts regularized pivots; non-zero flags a numerically
	// singular system, typically a lossless model driven exactly at a
	// resonance.
	Clamped int
}

// Solve terminates the holes for the fingering and solves for the nodal
// pressures under a unit input flow.
func (a *Assembly) Solve(f bore.Fingering) (Solution, error) {
	m := cbanded.New(a.nw.nodes, a.nw.bandwidth, a.nw.bandwidth)
	if err := a.apply(f, m); err != nil {
		return Solution{}, err
	}

	rhs := make([]complex128, a.nw.nodes)
	rhs[a.nw.inputNode] = 1

	lu := m.Factorize()
	if err := lu.Solve(rhs); err != nil {
		return Solution{}, fmt.Errorf("fem: omega=%g: %w", a.omega, err)
	}
	return Solution{
		Omega:     a.omega,
		Pressure:  rhs,
		Impedance: rhs[a.nw.inputNode],
		Clamped:   lu.Clamped,
	}, nil
}

// Solve assembles and solves a single frequency. Sweeps should assemble
// once per frequency and reuse the Assembly across fingerings.
func (nw *Network) Solve(omega float64, f bore.Fingering) (Solution, error) {
	a, err := nw.Assemble(omega)
	if err != nil {
		return Solution{}, err
	}
	return a.Solve(f)
}

// DiffQuadForm returns pᵀ(A₁-A₂)p, where A₁ and A₂ are the system matrices
// of the two assemblies under the same fingering. Both assemblies must
// discretize the same topology (equal node counts); they normally come from
// small geometry perturbations at one frequency.
//
// Because the system matrix is complex symmetric and the right-hand side is
// the input basis vector, the input impedance derivative along a geometry
// direction is dZ = -pᵀ(dA)p with p the unperturbed solution, which this
// quadratic form approximates without any extra solve.
func DiffQuadForm(a1, a2 *Assembly, f bore.Fingering, p []complex128) (complex128, error) {
	if a1.nw.nodes != a2.nw.nodes {
		return 0, ErrShapeMismatch
	}
	if len(p) != a1.nw.nodes {
		return 0, fmt.Errorf("fem: pressure length %d, want %d", len(p), a1.nw.nodes)
	}

	m1 := cbanded.New(a1.nw.nodes, a1.nw.bandwidth, a1.nw.bandwidth)
	if err := a1.apply(f, m1); err != nil {
		return 0, err
	}
	m2 := cbanded.New(a2.nw.nodes, a2.nw.bandwidth, a2.nw.bandwidth)
	if err := a2.apply(f, m2); err != nil {
		return 0, err
	}

	w1 := make([]complex128, len(p))
	w2 := make([]complex128, len(p))
	m1.MulVec(w1, p)
	m2.MulVec(w2, p)

	var sum complex128
	for i := range p {
		sum += p[i] * (w1[i] - w2[i])
	}
	return sum, nil
}
