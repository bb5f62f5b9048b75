package inverse

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/ArtisanClarinets/openwind/fem"
	"github.com/ArtisanClarinets/openwind/impedance"
)

// Gradient selects how the residual Jacobian is formed.
type Gradient int

const (
	// GradFiniteDiff probes every parameter with central differences,
	// re-simulating the full problem per probe.
	GradFiniteDiff Gradient = iota

	// GradAdjoint differentiates impedance targets through the assembled
	// operator: under a unit input flow dZ/dθ = −pᵀ(∂A/∂θ)p with the base
	// solution p, so probes cost assemblies instead of solves. Objectives
	// without that structure, and parameters whose probe changes the node
	// count, fall back to difference quotients.
	GradAdjoint
)

func (g Gradient) String() string {
	if g == GradAdjoint {
		return "adjoint"
	}
	return "finite-diff"
}

// fdRel is the relative parameter step for difference quotients.
const fdRel = 1e-6

func fdStep(x float64) float64 {
	return fdRel * math.Max(1, math.Abs(x))
}

// jacobian fills ∂r/∂x at x. r holds the residuals already evaluated at x,
// reused by one-sided fallbacks when a probe leaves the valid geometry.
func (p *Problem) jacobian(ctx context.Context, x, r []float64, g Gradient) (*mat.Dense, error) {
	jac := mat.NewDense(p.resids, len(p.params), nil)
	var err error
	if g == GradAdjoint {
		err = p.fillAdjoint(ctx, x, r, jac)
	} else {
		err = p.fillFiniteDiff(ctx, x, r, jac)
	}
	if err != nil {
		return nil, err
	}
	return jac, nil
}

func (p *Problem) fillFiniteDiff(ctx context.Context, x, r []float64, jac *mat.Dense) error {
	col := make([]float64, len(r))
	for j := range p.params {
		if err := p.fdColumn(ctx, x, r, j, col); err != nil {
			return err
		}
		jac.SetCol(j, col)
	}
	return nil
}

// fdColumn writes ∂r/∂x[j] into col. Central where both probes evaluate; a
// probe that fails, typically a trial geometry stepped out of range, degrades
// to the one-sided quotient against the base residuals.
func (p *Problem) fdColumn(ctx context.Context, x, r []float64, j int, col []float64) error {
	h := fdStep(x[j])
	rp, errP := p.probe(ctx, x, j, +h)
	rm, errM := p.probe(ctx, x, j, -h)
	switch {
	case errP == nil && errM == nil:
		for i := range col {
			col[i] = (rp[i] - rm[i]) / (2 * h)
		}
	case errP == nil:
		for i := range col {
			col[i] = (rp[i] - r[i]) / h
		}
	case errM == nil:
		for i := range col {
			col[i] = (r[i] - rm[i]) / h
		}
	default:
		return fmt.Errorf("inverse: gradient of parameter %d: %w", j, errP)
	}
	return nil
}

func (p *Problem) probe(ctx context.Context, x []float64, j int, h float64) ([]float64, error) {
	xj := append([]float64(nil), x...)
	xj[j] += h
	return p.residuals(ctx, xj)
}

// adjointBlock carries one impedance target's base solves.
type adjointBlock struct {
	target *ImpedanceTarget
	fmax   float64
	nodes  int
	zc     float64
	press  [][]complex128 // base nodal pressures per target frequency
}

// adjointBlocks solves the base geometry once per impedance-target frequency
// and keeps the pressures for the quadratic form. Entries stay nil for
// objectives without adjoint structure.
func (p *Problem) adjointBlocks(x []float64) ([]*adjointBlock, error) {
	sim, err := p.simulate(x)
	if err != nil {
		return nil, err
	}
	blocks := make([]*adjointBlock, len(p.objs))
	for i, obj := range p.objs {
		t, ok := obj.(*ImpedanceTarget)
		if !ok {
			continue
		}
		if len(t.Want) != len(t.Frequencies) {
			return nil, fmt.Errorf("%w: %d targets for %d frequencies", ErrTargets, len(t.Want), len(t.Frequencies))
		}
		fmax := floats.Max(t.Frequencies)
		nw, err := sim.Network(fmax)
		if err != nil {
			return nil, err
		}
		b := &adjointBlock{
			target: t,
			fmax:   fmax,
			nodes:  nw.NodeCount(),
			zc:     nw.Props().CharImpedance(nw.InputRadius()),
		}
		for _, f := range t.Frequencies {
			a, err := nw.Assemble(2 * math.Pi * f)
			if err != nil {
				return nil, err
			}
			sol, err := a.Solve(t.Fingering)
			if err != nil {
				return nil, err
			}
			b.press = append(b.press, sol.Pressure)
		}
		blocks[i] = b
	}
	return blocks, nil
}

func (p *Problem) fillAdjoint(ctx context.Context, x, r []float64, jac *mat.Dense) error {
	blocks, err := p.adjointBlocks(x)
	if err != nil {
		return err
	}
	col := make([]float64, len(r))
	for j := range p.params {
		err := p.adjointParam(ctx, blocks, x, j, jac)
		if err == nil {
			continue
		}
		// Probes that left the valid geometry or changed the mesh land
		// here; difference quotients cover both.
		if err := p.fdColumn(ctx, x, r, j, col); err != nil {
			return err
		}
		jac.SetCol(j, col)
	}
	return nil
}

// adjointParam fills column j: impedance blocks through the assembled
// operator, everything else by central differences on the shared probes.
func (p *Problem) adjointParam(ctx context.Context, blocks []*adjointBlock, x []float64, j int, jac *mat.Dense) error {
	h := fdStep(x[j])
	xp := append([]float64(nil), x...)
	xp[j] += h
	xm := append([]float64(nil), x...)
	xm[j] -= h
	simP, err := p.simulate(xp)
	if err != nil {
		return err
	}
	simM, err := p.simulate(xm)
	if err != nil {
		return err
	}
	off := 0
	for i, obj := range p.objs {
		b := blocks[i]
		if b == nil {
			rp, err := p.objResiduals(ctx, i, obj, simP)
			if err != nil {
				return err
			}
			rm, err := p.objResiduals(ctx, i, obj, simM)
			if err != nil {
				return err
			}
			for k := range rp {
				jac.Set(off+k, j, (rp[k]-rm[k])/(2*h))
			}
		} else if err := p.adjointRows(b, off, simP, simM, h, j, jac); err != nil {
			return err
		}
		off += obj.Count()
	}
	return nil
}

// adjointRows fills one impedance block's rows for parameter j from the
// operator difference at x±h and the base pressures.
func (p *Problem) adjointRows(b *adjointBlock, off int, simP, simM *impedance.Simulation, h float64, j int, jac *mat.Dense) error {
	nwP, err := simP.Network(b.fmax)
	if err != nil {
		return err
	}
	nwM, err := simM.Network(b.fmax)
	if err != nil {
		return err
	}
	if nwP.NodeCount() != b.nodes || nwM.NodeCount() != b.nodes {
		return fem.ErrShapeMismatch
	}
	w := objectiveWeight(b.target.Weight)
	for fi, f := range b.target.Frequencies {
		omega := 2 * math.Pi * f
		aP, err := nwP.Assemble(omega)
		if err != nil {
			return err
		}
		aM, err := nwM.Assemble(omega)
		if err != nil {
			return err
		}
		q, err := fem.DiffQuadForm(aP, aM, b.target.Fingering, b.press[fi])
		if err != nil {
			return err
		}
		dz := -q / complex(2*h, 0)
		jac.Set(off+2*fi, j, w*real(dz)/b.zc)
		jac.Set(off+2*fi+1, j, w*imag(dz)/b.zc)
	}
	return nil
}
