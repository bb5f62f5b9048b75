package impedance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/floats"

	"github.com/ArtisanClarinets/openwind/bore"
	"github.com/ArtisanClarinets/openwind/fem"
	"github.com/ArtisanClarinets/openwind/mesh"
	"github.com/ArtisanClarinets/openwind/physics"
)

// Errors returned by sweep setup.
var (
	ErrNilBore        = errors.New("impedance: nil bore")
	ErrNoFrequencies  = errors.New("impedance: no frequencies")
	ErrFrequencyOrder = errors.New("impedance: frequencies must be positive and strictly ascending")
	ErrGrid           = errors.New("impedance: grid needs 0 < fmin < fmax and at least 2 points")
	ErrEmptyChart     = errors.New("impedance: fingering chart has no notes")
	ErrUniformGrid    = errors.New("impedance: reflection impulse needs a uniform frequency grid starting at its spacing")
)

// SolverError reports a frequency whose system could not be assembled or
// solved past the pivot regularization.
type SolverError struct {
	Frequency float64 // Hz
	Err       error
}

func (e *SolverError) Error() string {
	return fmt.Sprintf("impedance: %g Hz: %v", e.Frequency, e.Err)
}

func (e *SolverError) Unwrap() error { return e.Err }

// Grid returns count frequencies linearly spaced over [fmin, fmax].
func Grid(fmin, fmax float64, count int) ([]float64, error) {
	if count < 2 || fmin <= 0 || fmax <= fmin {
		return nil, ErrGrid
	}
	return floats.Span(make([]float64, count), fmin, fmax), nil
}

// UniformGrid returns the count frequencies k·fmax/count for k = 1..count:
// evenly spaced from the spacing itself up to fmax, the layout
// ReflectionImpulse expects.
func UniformGrid(fmax float64, count int) ([]float64, error) {
	if count < 2 || fmax <= 0 {
		return nil, ErrGrid
	}
	out := make([]float64, count)
	for k := 1; k <= count; k++ {
		out[k-1] = fmax * float64(k) / float64(count)
	}
	return out, nil
}

// Simulation owns an immutable copy of the instrument and the resolved
// physical models. It is safe for concurrent use.
type Simulation struct {
	cfg     Config
	bore    *bore.Bore
	losses  physics.Losses
	bellRad physics.Radiation
	holeRad physics.Radiation
}

// New validates the geometry and the model selection and returns a reusable
// simulation.
func New(b *bore.Bore, opts ...Option) (*Simulation, error) {
	if b == nil {
		return nil, ErrNilBore
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("impedance: %w", err)
	}
	cfg := ApplyOptions(opts...)

	losses, err := physics.NewLosses(cfg.Losses)
	if err != nil {
		return nil, fmt.Errorf("impedance: %w", err)
	}
	bellRad, err := physics.NewRadiation(cfg.BellRadiation)
	if err != nil {
		return nil, fmt.Errorf("impedance: %w", err)
	}
	holeRad, err := physics.NewRadiation(cfg.HoleRadiation)
	if err != nil {
		return nil, fmt.Errorf("impedance: %w", err)
	}

	return &Simulation{
		cfg:     cfg,
		bore:    b.Clone(),
		losses:  losses,
		bellRad: bellRad,
		holeRad: holeRad,
	}, nil
}

// Config returns a copy of the resolved configuration.
func (s *Simulation) Config() Config { return s.cfg }

// Bore returns a deep copy of the simulated geometry.
func (s *Simulation) Bore() *bore.Bore { return s.bore.Clone() }

// Network discretizes the geometry for a sweep reaching fmax. Sweeps build
// their own; callers that need the assembled operator itself, like adjoint
// gradient code, can share one.
func (s *Simulation) Network(fmax float64) (*fem.Network, error) {
	return fem.NewNetwork(s.bore, fem.Config{
		Air:            physics.Air{Temperature: s.cfg.Temperature, Humidity: s.cfg.Humidity},
		Losses:         s.losses,
		BellRadiation:  s.bellRad,
		HoleRadiation:  s.holeRad,
		MatchingVolume: s.cfg.MatchingVolume,
		Mesh: mesh.Options{
			ElementLength: s.cfg.ElementLength,
			Order:         s.cfg.Order,
			PerWavelength: s.cfg.PointsPerWavelength,
			MaxFrequency:  fmax,
		},
	})
}

// Run sweeps the grid with every tone hole fully open.
func (s *Simulation) Run(ctx context.Context, freqs []float64) (*Result, error) {
	return s.RunFingering(ctx, freqs, bore.AllOpen(s.bore))
}

// RunFingering sweeps the grid under one fingering. A nil fingering closes
// every hole, as does any hole missing from the map.
func (s *Simulation) RunFingering(ctx context.Context, freqs []float64, f bore.Fingering) (*Result, error) {
	rs, err := s.run(ctx, freqs, []string{""}, []bore.Fingering{f})
	if err != nil {
		return nil, err
	}
	return rs[0], nil
}

// RunNote sweeps the grid for one note of a fingering chart.
func (s *Simulation) RunNote(ctx context.Context, freqs []float64, chart *bore.Chart, note string) (*Result, error) {
	if err := chart.Validate(s.bore); err != nil {
		return nil, fmt.Errorf("impedance: %w", err)
	}
	f, err := chart.Fingering(note)
	if err != nil {
		return nil, fmt.Errorf("impedance: %w", err)
	}
	rs, err := s.run(ctx, freqs, []string{note}, []bore.Fingering{f})
	if err != nil {
		return nil, err
	}
	return rs[0], nil
}

// RunChart sweeps the grid for every note of the chart, reusing each
// frequency's assembled base system across fingerings. Results align with
// chart.Notes().
func (s *Simulation) RunChart(ctx context.Context, freqs []float64, chart *bore.Chart) ([]*Result, error) {
	if err := chart.Validate(s.bore); err != nil {
		return nil, fmt.Errorf("impedance: %w", err)
	}
	notes := chart.Notes()
	if len(notes) == 0 {
		return nil, ErrEmptyChart
	}
	fingerings := make([]bore.Fingering, len(notes))
	for i, note := range notes {
		f, err := chart.Fingering(note)
		if err != nil {
			return nil, fmt.Errorf("impedance: %w", err)
		}
		fingerings[i] = f
	}
	return s.run(ctx, freqs, notes, fingerings)
}

func checkFrequencies(freqs []float64) error {
	if len(freqs) == 0 {
		return ErrNoFrequencies
	}
	if freqs[0] <= 0 {
		return fmt.Errorf("%w: starts at %g Hz", ErrFrequencyOrder, freqs[0])
	}
	for i := 1; i < len(freqs); i++ {
		if freqs[i] <= freqs[i-1] {
			return fmt.Errorf("%w: index %d", ErrFrequencyOrder, i)
		}
	}
	return nil
}

// run is the shared sweep core: one assembled system per frequency, one
// solve per fingering, index-aligned writes so the worker count never
// changes the output.
func (s *Simulation) run(ctx context.Context, freqs []float64, notes []string, fingerings []bore.Fingering) ([]*Result, error) {
	if err := checkFrequencies(freqs); err != nil {
		return nil, err
	}
	nw, err := s.Network(freqs[len(freqs)-1])
	if err != nil {
		return nil, err
	}

	zc := nw.Props().CharImpedance(nw.InputRadius())
	results := make([]*Result, len(fingerings))
	for i := range results {
		results[i] = &Result{
			Note:        notes[i],
			Frequencies: append([]float64(nil), freqs...),
			Real:        make([]float64, len(freqs)),
			Imag:        make([]float64, len(freqs)),
			Zc:          zc,
		}
	}

	workers := s.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, len(freqs))

	var (
		wg       sync.WaitGroup
		next     atomic.Int64
		stop     atomic.Bool
		mu       sync.Mutex
		firstErr error
		errIndex = len(freqs)
		singular = make([][]int, len(fingerings))
	)
	fail := func(i int, err error) {
		mu.Lock()
		if i < errIndex {
			firstErr = &SolverError{Frequency: freqs[i], Err: err}
			errIndex = i
		}
		mu.Unlock()
		stop.Store(true)
	}

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for !stop.Load() {
				select {
				case <-ctx.Done():
					return
				default:
				}
				i := int(next.Add(1)) - 1
				if i >= len(freqs) {
					return
				}

				a, err := nw.Assemble(2 * math.Pi * freqs[i])
				if err != nil {
					fail(i, err)
					return
				}
				for ni := range fingerings {
					sol, err := a.Solve(fingerings[ni])
					if err != nil {
						fail(i, err)
						return
					}
					results[ni].Real[i] = real(sol.Impedance)
					results[ni].Imag[i] = imag(sol.Impedance)
					if sol.Clamped > 0 {
						mu.Lock()
						singular[ni] = append(singular[ni], i)
						mu.Unlock()
					}
				}
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("impedance: %w", err)
	}
	if firstErr != nil {
		return nil, firstErr
	}
	for ni := range results {
		sort.Ints(singular[ni])
		results[ni].NearSingular = singular[ni]
	}
	return results, nil
}
