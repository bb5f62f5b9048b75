package inverse

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/ArtisanClarinets/openwind/bore"
)

// Status classifies how a minimization ended.
type Status int

const (
	NotTerminated Status = iota
	Converged
	MaxIterationsReached
	Diverged
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Converged:
		return "converged"
	case MaxIterationsReached:
		return "max iterations reached"
	case Diverged:
		return "diverged"
	case Cancelled:
		return "cancelled"
	default:
		return "not terminated"
	}
}

// Iteration records one accepted step.
type Iteration struct {
	Index        int
	Cost         float64
	GradientNorm float64 // inf-norm at the point the step was taken from
	X            []float64
	Clipped      []int   // parameter indices pulled back to their bounds
	Damping      float64 // Levenberg–Marquardt damping after the step
}

// Outcome is the terminal state of a run. Every status carries the best
// point reached, as a parameter vector and as a materialized geometry.
type Outcome struct {
	Status  Status
	X       []float64
	Cost    float64
	Best    *bore.Bore
	History []Iteration
}

// Default settings values.
const (
	DefaultMaxIterations = 100
	DefaultTolerance     = 1e-9
)

// Settings control the iteration budget, convergence threshold, gradient
// path, and progress reporting shared by every method.
type Settings struct {
	// MaxIterations caps accepted steps. Zero means DefaultMaxIterations.
	MaxIterations int

	// Tolerance stops a run when the gradient inf-norm or the relative
	// cost improvement falls below it. Zero means DefaultTolerance.
	Tolerance float64

	// Gradient selects the Jacobian path for derivative-based methods.
	Gradient Gradient

	// Logger reports accepted iterations. Nil stays silent.
	Logger *logrus.Logger
}

func (s Settings) withDefaults() Settings {
	if s.MaxIterations <= 0 {
		s.MaxIterations = DefaultMaxIterations
	}
	if s.Tolerance <= 0 {
		s.Tolerance = DefaultTolerance
	}
	return s
}

// Method minimizes a problem under the shared settings. Implementations
// return an Outcome for every terminal status; errors are reserved for
// evaluation failures at the starting point and broken configurations.
type Method interface {
	Name() string
	Minimize(ctx context.Context, p *Problem, s Settings) (*Outcome, error)
}

// Engine binds a problem to a method.
type Engine struct {
	prob     *Problem
	method   Method
	settings Settings
}

// NewEngine validates the pairing. Settings gain defaults here, once.
func NewEngine(p *Problem, m Method, s Settings) (*Engine, error) {
	if p == nil {
		return nil, ErrNilProblem
	}
	if m == nil {
		return nil, ErrNilMethod
	}
	return &Engine{prob: p, method: m, settings: s.withDefaults()}, nil
}

// Run minimizes until convergence, the iteration budget, divergence, or
// cancellation. Cancellation mid-run is a Cancelled outcome, not an error.
func (e *Engine) Run(ctx context.Context) (*Outcome, error) {
	if lg := e.settings.Logger; lg != nil {
		lg.WithFields(logrus.Fields{
			"method":     e.method.Name(),
			"parameters": e.prob.Dim(),
			"residuals":  e.prob.ResidualCount(),
		}).Info("optimization started")
	}
	out, err := e.method.Minimize(ctx, e.prob, e.settings)
	if err != nil {
		return nil, err
	}
	if lg := e.settings.Logger; lg != nil {
		lg.WithFields(logrus.Fields{
			"method":     e.method.Name(),
			"status":     out.Status.String(),
			"cost":       out.Cost,
			"iterations": len(out.History),
		}).Info("optimization finished")
	}
	return out, nil
}

// outcome packages a terminal state, materializing the best geometry.
func (p *Problem) outcome(st Status, x []float64, cost float64, hist []Iteration) *Outcome {
	return &Outcome{
		Status:  st,
		X:       append([]float64(nil), x...),
		Cost:    cost,
		Best:    p.trial(x),
		History: hist,
	}
}

func logIteration(lg *logrus.Logger, method string, it Iteration) {
	if lg == nil {
		return
	}
	lg.WithFields(logrus.Fields{
		"method":   method,
		"iter":     it.Index,
		"cost":     it.Cost,
		"gradient": it.GradientNorm,
	}).Debug("step accepted")
}

// ctxErr reports whether err stems from context cancellation.
func ctxErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
