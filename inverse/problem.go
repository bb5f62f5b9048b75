package inverse

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/ArtisanClarinets/openwind/bore"
	"github.com/ArtisanClarinets/openwind/impedance"
)

// Problem binds a base geometry, the free parameters and the objectives.
// It is immutable after construction and safe for concurrent use; trial
// geometries are deep copies, so the caller's bore never moves.
type Problem struct {
	base    *bore.Bore
	params  []Parameter
	objs    []Objective
	simOpts []impedance.Option
	resids  int
}

// NewProblem validates the base geometry and the parameter addressing.
// The simulation options apply to every trial evaluation.
func NewProblem(b *bore.Bore, params []Parameter, objs []Objective, simOpts ...impedance.Option) (*Problem, error) {
	if b == nil {
		return nil, ErrNilBore
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("inverse: %w", err)
	}
	if len(params) == 0 {
		return nil, ErrNoParameters
	}
	if len(objs) == 0 {
		return nil, ErrNoObjectives
	}
	for _, par := range params {
		if err := par.validate(b); err != nil {
			return nil, err
		}
	}
	resids := 0
	for i, obj := range objs {
		n := obj.Count()
		if n <= 0 {
			return nil, fmt.Errorf("%w: objective %d contributes no residuals", ErrTargets, i)
		}
		resids += n
	}
	return &Problem{
		base:    b.Clone(),
		params:  append([]Parameter(nil), params...),
		objs:    append([]Objective(nil), objs...),
		simOpts: simOpts,
		resids:  resids,
	}, nil
}

// Dim returns the number of free parameters.
func (p *Problem) Dim() int { return len(p.params) }

// ResidualCount returns the total number of stacked residuals.
func (p *Problem) ResidualCount() int { return p.resids }

// Parameters returns a copy of the parameter descriptors.
func (p *Problem) Parameters() []Parameter {
	return append([]Parameter(nil), p.params...)
}

// X0 reads the starting point from the base geometry.
func (p *Problem) X0() []float64 {
	x := make([]float64, len(p.params))
	for i, par := range p.params {
		x[i] = par.value(p.base)
	}
	return x
}

// Geometry materializes the trial geometry for a parameter vector.
func (p *Problem) Geometry(x []float64) *bore.Bore {
	return p.trial(x)
}

// trial clones the base and applies the parameter vector. The result is
// validated only when simulated.
func (p *Problem) trial(x []float64) *bore.Bore {
	b := p.base.Clone()
	for i, par := range p.params {
		par.apply(b, x[i])
	}
	return b
}

// clip projects x onto the parameter bounds in place and returns the
// indices it had to move.
func (p *Problem) clip(x []float64) []int {
	var moved []int
	for i, par := range p.params {
		v, clipped := par.clip(x[i])
		if clipped {
			x[i] = v
			moved = append(moved, i)
		}
	}
	return moved
}

// simulate builds the validated trial simulation for x.
func (p *Problem) simulate(x []float64) (*impedance.Simulation, error) {
	return impedance.New(p.trial(x), p.simOpts...)
}

// residuals evaluates the stacked residual vector at x.
func (p *Problem) residuals(ctx context.Context, x []float64) ([]float64, error) {
	sim, err := p.simulate(x)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, p.resids)
	for i, obj := range p.objs {
		rs, err := p.objResiduals(ctx, i, obj, sim)
		if err != nil {
			return nil, err
		}
		out = append(out, rs...)
	}
	return out, nil
}

// objResiduals evaluates one objective and checks the advertised count.
func (p *Problem) objResiduals(ctx context.Context, i int, obj Objective, sim *impedance.Simulation) ([]float64, error) {
	rs, err := obj.Residuals(ctx, sim)
	if err != nil {
		return nil, err
	}
	if len(rs) != obj.Count() {
		return nil, fmt.Errorf("inverse: objective %d returned %d residuals, want %d", i, len(rs), obj.Count())
	}
	return rs, nil
}

// Cost evaluates ½Σr² at x without clipping.
func (p *Problem) Cost(ctx context.Context, x []float64) (float64, error) {
	r, err := p.residuals(ctx, x)
	if err != nil {
		return 0, err
	}
	return costOf(r), nil
}

func costOf(r []float64) float64 {
	return 0.5 * floats.Dot(r, r)
}
