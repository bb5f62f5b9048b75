package inverse

import (
	"context"
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// DefaultDamping seeds the Levenberg–Marquardt damping.
const DefaultDamping = 1e-3

// maxStepTries bounds the inner search for an acceptable step.
const maxStepTries = 40

var errFactorize = errors.New("inverse: normal equations are not positive definite")

// LevenbergMarquardt damps Gauss–Newton steps, growing the damping while
// steps fail and relaxing it on the gain ratio between actual and predicted
// cost decrease.
type LevenbergMarquardt struct {
	// InitialDamping seeds λ. Zero means DefaultDamping.
	InitialDamping float64
}

func (*LevenbergMarquardt) Name() string { return "levenberg-marquardt" }

func (m *LevenbergMarquardt) Minimize(ctx context.Context, p *Problem, s Settings) (*Outcome, error) {
	if p == nil {
		return nil, ErrNilProblem
	}
	s = s.withDefaults()

	x := p.X0()
	p.clip(x)
	r, err := p.residuals(ctx, x)
	if err != nil {
		return nil, err
	}
	cost := costOf(r)

	lambda := m.InitialDamping
	if lambda <= 0 {
		lambda = DefaultDamping
	}
	nu := 2.0

	var hist []Iteration
	for iter := 0; iter < s.MaxIterations; iter++ {
		select {
		case <-ctx.Done():
			return p.outcome(Cancelled, x, cost, hist), nil
		default:
		}

		jac, err := p.jacobian(ctx, x, r, s.Gradient)
		if err != nil {
			if ctxErr(err) {
				return p.outcome(Cancelled, x, cost, hist), nil
			}
			return nil, err
		}
		g := gradVec(jac, r)
		gnorm := mat.Norm(g, math.Inf(1))
		if gnorm <= s.Tolerance {
			return p.outcome(Converged, x, cost, hist), nil
		}

		accepted := false
		for try := 0; try < maxStepTries; try++ {
			delta, err := solveDamped(jac, g, lambda)
			if err != nil {
				lambda *= nu
				nu *= 2
				continue
			}
			xNew := make([]float64, len(x))
			floats.AddScaledTo(xNew, x, 1, delta)
			moved := p.clip(xNew)
			rNew, err := p.residuals(ctx, xNew)
			if err != nil {
				if ctxErr(err) {
					return p.outcome(Cancelled, x, cost, hist), nil
				}
				lambda *= nu
				nu *= 2
				continue
			}
			costNew := costOf(rNew)
			if math.IsNaN(costNew) || math.IsInf(costNew, 0) {
				lambda *= nu
				nu *= 2
				continue
			}

			// Gain ratio against the linear model's predicted decrease
			// ½(λ‖δ‖² − δᵀg).
			pred := 0.5 * (lambda*floats.Dot(delta, delta) - dotVec(delta, g))
			rho := (cost - costNew) / pred
			if !(rho > 0) {
				lambda *= nu
				nu *= 2
				continue
			}
			lambda *= math.Max(1.0/3.0, 1-math.Pow(2*rho-1, 3))
			nu = 2

			drop := cost - costNew
			x, r, cost = xNew, rNew, costNew
			it := Iteration{
				Index:        len(hist) + 1,
				Cost:         cost,
				GradientNorm: gnorm,
				X:            append([]float64(nil), x...),
				Clipped:      moved,
				Damping:      lambda,
			}
			hist = append(hist, it)
			logIteration(s.Logger, m.Name(), it)
			accepted = true
			if drop <= s.Tolerance*math.Max(1, cost) {
				return p.outcome(Converged, x, cost, hist), nil
			}
			break
		}
		if !accepted {
			// The damping grew past any useful step size without a
			// better point; the current one is as good as it gets.
			return p.outcome(Converged, x, cost, hist), nil
		}
	}
	return p.outcome(MaxIterationsReached, x, cost, hist), nil
}

// GaussNewton takes undamped normal-equation steps, halving the step length
// until the cost decreases.
type GaussNewton struct{}

func (*GaussNewton) Name() string { return "gauss-newton" }

func (m *GaussNewton) Minimize(ctx context.Context, p *Problem, s Settings) (*Outcome, error) {
	if p == nil {
		return nil, ErrNilProblem
	}
	s = s.withDefaults()

	x := p.X0()
	p.clip(x)
	r, err := p.residuals(ctx, x)
	if err != nil {
		return nil, err
	}
	cost := costOf(r)

	var hist []Iteration
	for iter := 0; iter < s.MaxIterations; iter++ {
		select {
		case <-ctx.Done():
			return p.outcome(Cancelled, x, cost, hist), nil
		default:
		}

		jac, err := p.jacobian(ctx, x, r, s.Gradient)
		if err != nil {
			if ctxErr(err) {
				return p.outcome(Cancelled, x, cost, hist), nil
			}
			return nil, err
		}
		g := gradVec(jac, r)
		gnorm := mat.Norm(g, math.Inf(1))
		if gnorm <= s.Tolerance {
			return p.outcome(Converged, x, cost, hist), nil
		}

		delta, err := solveDamped(jac, g, 0)
		if err != nil {
			// Rank-deficient normal equations leave no usable direction.
			return p.outcome(Diverged, x, cost, hist), nil
		}

		accepted := false
		step := 1.0
		for try := 0; try < maxStepTries; try++ {
			xNew := make([]float64, len(x))
			floats.AddScaledTo(xNew, x, step, delta)
			moved := p.clip(xNew)
			rNew, err := p.residuals(ctx, xNew)
			if err != nil {
				if ctxErr(err) {
					return p.outcome(Cancelled, x, cost, hist), nil
				}
				step /= 2
				continue
			}
			costNew := costOf(rNew)
			if math.IsNaN(costNew) || math.IsInf(costNew, 0) || costNew >= cost {
				step /= 2
				continue
			}

			drop := cost - costNew
			x, r, cost = xNew, rNew, costNew
			it := Iteration{
				Index:        len(hist) + 1,
				Cost:         cost,
				GradientNorm: gnorm,
				X:            append([]float64(nil), x...),
				Clipped:      moved,
			}
			hist = append(hist, it)
			logIteration(s.Logger, m.Name(), it)
			accepted = true
			if drop <= s.Tolerance*math.Max(1, cost) {
				return p.outcome(Converged, x, cost, hist), nil
			}
			break
		}
		if !accepted {
			return p.outcome(Converged, x, cost, hist), nil
		}
	}
	return p.outcome(MaxIterationsReached, x, cost, hist), nil
}

// gradVec computes the cost gradient Jᵀr.
func gradVec(jac *mat.Dense, r []float64) *mat.VecDense {
	m, n := jac.Dims()
	g := mat.NewVecDense(n, nil)
	g.MulVec(jac.T(), mat.NewVecDense(m, r))
	return g
}

// solveDamped solves (JᵀJ + λI)δ = −g by Cholesky factorization.
func solveDamped(jac *mat.Dense, g *mat.VecDense, lambda float64) ([]float64, error) {
	_, n := jac.Dims()
	var ata mat.SymDense
	ata.SymRankK(mat.NewSymDense(n, nil), 1, jac.T())
	for i := 0; i < n; i++ {
		ata.SetSym(i, i, ata.At(i, i)+lambda)
	}

	var chol mat.Cholesky
	if !chol.Factorize(&ata) {
		return nil, errFactorize
	}
	neg := mat.NewVecDense(n, nil)
	neg.ScaleVec(-1, g)
	delta := mat.NewVecDense(n, nil)
	if err := chol.SolveVecTo(delta, neg); err != nil {
		return nil, err
	}
	return delta.RawVector().Data, nil
}

func dotVec(a []float64, b *mat.VecDense) float64 {
	var sum float64
	for i, v := range a {
		sum += v * b.AtVec(i)
	}
	return sum
}
