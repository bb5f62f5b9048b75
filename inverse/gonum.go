package inverse

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// gonumMethod adapts a gonum/optimize method to the Method interface.
// Bounds are enforced by projection: every evaluation clips its point first,
// so the optimizer sees the cost of the nearest feasible geometry.
type gonumMethod struct {
	name string
	build func() optimize.Method
}

// NelderMead minimizes with gonum's derivative-free simplex search.
func NelderMead() Method {
	return &gonumMethod{name: "nelder-mead", build: func() optimize.Method { return &optimize.NelderMead{} }}
}

// LBFGS minimizes with gonum's limited-memory quasi-Newton method.
func LBFGS() Method {
	return &gonumMethod{name: "lbfgs", build: func() optimize.Method { return &optimize.LBFGS{} }}
}

func (m *gonumMethod) Name() string { return m.name }

func (m *gonumMethod) Minimize(ctx context.Context, p *Problem, s Settings) (*Outcome, error) {
	if p == nil {
		return nil, ErrNilProblem
	}
	s = s.withDefaults()

	x0 := p.X0()
	p.clip(x0)
	if _, err := p.Cost(ctx, x0); err != nil {
		return nil, err
	}

	var evalErr error // first simulation failure behind an Inf/NaN return
	fun := func(y []float64) float64 {
		xc := append([]float64(nil), y...)
		p.clip(xc)
		c, err := p.Cost(ctx, xc)
		if err != nil {
			if evalErr == nil && !ctxErr(err) {
				evalErr = err
			}
			return math.Inf(1)
		}
		return c
	}
	grad := func(dst, y []float64) {
		xc := append([]float64(nil), y...)
		p.clip(xc)
		r, err := p.residuals(ctx, xc)
		if err == nil {
			var jac *mat.Dense
			if jac, err = p.jacobian(ctx, xc, r, s.Gradient); err == nil {
				g := gradVec(jac, r)
				for i := range dst {
					dst[i] = g.AtVec(i)
				}
				return
			}
		}
		if evalErr == nil && !ctxErr(err) {
			evalErr = err
		}
		for i := range dst {
			dst[i] = math.NaN()
		}
	}

	var hist []Iteration
	rec := &progressRecorder{ctx: ctx, prob: p, logger: s.Logger, method: m.name, history: &hist}
	result, err := optimize.Minimize(optimize.Problem{Func: fun, Grad: grad}, x0, &optimize.Settings{
		MajorIterations:   s.MaxIterations,
		GradientThreshold: s.Tolerance,
		Converger:         &optimize.FunctionConverge{Absolute: s.Tolerance, Iterations: 25},
		Recorder:          rec,
	}, m.build())

	if ctx.Err() != nil {
		x, cost := x0, math.Inf(1)
		if result != nil && len(result.X) > 0 {
			x = append([]float64(nil), result.X...)
			p.clip(x)
			cost = result.F
		}
		return p.outcome(Cancelled, x, cost, hist), nil
	}
	if err != nil {
		if evalErr != nil {
			return nil, evalErr
		}
		return nil, fmt.Errorf("inverse: %s: %w", m.name, err)
	}

	st := Converged
	switch result.Status {
	case optimize.IterationLimit, optimize.FunctionEvaluationLimit, optimize.RuntimeLimit:
		st = MaxIterationsReached
	case optimize.Failure, optimize.FunctionNegativeInfinity:
		st = Diverged
	}
	if math.IsInf(result.F, 0) || math.IsNaN(result.F) {
		st = Diverged
	}
	x := append([]float64(nil), result.X...)
	p.clip(x)
	return p.outcome(st, x, result.F, hist), nil
}

// progressRecorder turns gonum major iterations into history entries and
// aborts the run when the context ends.
type progressRecorder struct {
	ctx     context.Context
	prob    *Problem
	logger  *logrus.Logger
	method  string
	history *[]Iteration
}

func (r *progressRecorder) Init() error { return r.ctx.Err() }

func (r *progressRecorder) Record(loc *optimize.Location, op optimize.Operation, _ *optimize.Stats) error {
	if err := r.ctx.Err(); err != nil {
		return err
	}
	if op != optimize.MajorIteration {
		return nil
	}
	x := append([]float64(nil), loc.X...)
	moved := r.prob.clip(x)
	it := Iteration{
		Index:   len(*r.history) + 1,
		Cost:    loc.F,
		X:       x,
		Clipped: moved,
	}
	if len(loc.Gradient) > 0 {
		it.GradientNorm = floats.Norm(loc.Gradient, math.Inf(1))
	}
	*r.history = append(*r.history, it)
	logIteration(r.logger, r.method, it)
	return nil
}
