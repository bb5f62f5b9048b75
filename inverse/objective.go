package inverse

import (
	"context"
	"fmt"

	"github.com/ArtisanClarinets/openwind/bore"
	"github.com/ArtisanClarinets/openwind/impedance"
	"github.com/ArtisanClarinets/openwind/pitch"
)

// Objective contributes residuals to the least-squares cost ½Σr². Residuals
// must be deterministic functions of the trial simulation, and their count
// must equal Count for every trial.
type Objective interface {
	Count() int
	Residuals(ctx context.Context, sim *impedance.Simulation) ([]float64, error)
}

func objectiveWeight(w float64) float64 {
	if w <= 0 {
		return 1
	}
	return w
}

// ImpedanceTarget matches a measured or desired input impedance curve under
// one fingering. Each frequency contributes a real and an imaginary
// residual, normalized by the characteristic impedance so magnitudes stay
// of order one.
type ImpedanceTarget struct {
	// Fingering selects the hole states; nil closes every hole.
	Fingering bore.Fingering

	// Frequencies is the sweep grid in Hz, strictly ascending.
	Frequencies []float64

	// Want is the target impedance per frequency.
	Want []complex128

	// Weight scales this objective's residuals; zero means 1.
	Weight float64
}

// Count returns len(Frequencies) stacked real/imaginary pairs.
func (t *ImpedanceTarget) Count() int { return 2 * len(t.Frequencies) }

// Residuals sweeps the fingering and stacks the normalized curve mismatch.
func (t *ImpedanceTarget) Residuals(ctx context.Context, sim *impedance.Simulation) ([]float64, error) {
	if len(t.Want) != len(t.Frequencies) {
		return nil, fmt.Errorf("%w: %d targets for %d frequencies", ErrTargets, len(t.Want), len(t.Frequencies))
	}
	res, err := sim.RunFingering(ctx, t.Frequencies, t.Fingering)
	if err != nil {
		return nil, err
	}
	w := objectiveWeight(t.Weight)
	out := make([]float64, 2*len(t.Frequencies))
	for i := range t.Frequencies {
		out[2*i] = w * (res.Real[i] - real(t.Want[i])) / res.Zc
		out[2*i+1] = w * (res.Imag[i] - imag(t.Want[i])) / res.Zc
	}
	return out, nil
}

// ResonanceTarget pins the first resonance frequencies of one fingering.
// Residuals are relative frequency errors.
type ResonanceTarget struct {
	// Fingering selects the hole states; nil closes every hole.
	Fingering bore.Fingering

	// Grid is the sweep used to locate resonances. It must bracket every
	// targeted resonance with enough margin for the peaks to be interior.
	Grid []float64

	// Want lists the target frequencies of the first len(Want) resonances,
	// ascending, all positive.
	Want []float64

	// Weight scales this objective's residuals; zero means 1.
	Weight float64
}

// Count returns one residual per targeted resonance.
func (t *ResonanceTarget) Count() int { return len(t.Want) }

// Residuals sweeps the fingering and compares the refined resonance
// frequencies against the targets.
func (t *ResonanceTarget) Residuals(ctx context.Context, sim *impedance.Simulation) ([]float64, error) {
	for i, f := range t.Want {
		if f <= 0 {
			return nil, fmt.Errorf("%w: resonance target %d is %g Hz", ErrTargets, i, f)
		}
	}
	res, err := sim.RunFingering(ctx, t.Grid, t.Fingering)
	if err != nil {
		return nil, err
	}
	peaks := res.Resonances()
	if len(peaks) < len(t.Want) {
		return nil, fmt.Errorf("%w: %d of %d", ErrResonances, len(peaks), len(t.Want))
	}
	w := objectiveWeight(t.Weight)
	out := make([]float64, len(t.Want))
	for i, want := range t.Want {
		out[i] = w * (peaks[i] - want) / want
	}
	return out, nil
}

// IntonationTarget asks the first resonances of one fingering to land on
// tempered notes, in cents. One residual per mode, scaled so 100 cents (a
// semitone) weighs like a unit impedance residual.
type IntonationTarget struct {
	// Fingering selects the hole states; nil closes every hole.
	Fingering bore.Fingering

	// Grid is the sweep used to locate resonances.
	Grid []float64

	// Tuning fixes the reference pitch and transposition.
	Tuning pitch.Tuning

	// Modes is how many resonances to tune; zero means 1.
	Modes int

	// WantCents is the desired deviation per mode. Nil means play pure;
	// otherwise it must hold one value per mode.
	WantCents []float64

	// Weight scales this objective's residuals; zero means 1.
	Weight float64
}

func (t *IntonationTarget) modes() int {
	if t.Modes <= 0 {
		return 1
	}
	return t.Modes
}

// Count returns one residual per tuned mode.
func (t *IntonationTarget) Count() int { return t.modes() }

// Residuals sweeps the fingering and measures each mode's deviation from
// its nearest tempered note.
func (t *IntonationTarget) Residuals(ctx context.Context, sim *impedance.Simulation) ([]float64, error) {
	modes := t.modes()
	if t.WantCents != nil && len(t.WantCents) != modes {
		return nil, fmt.Errorf("%w: %d cent targets for %d modes", ErrTargets, len(t.WantCents), modes)
	}
	res, err := sim.RunFingering(ctx, t.Grid, t.Fingering)
	if err != nil {
		return nil, err
	}
	peaks := res.Resonances()
	if len(peaks) < modes {
		return nil, fmt.Errorf("%w: %d of %d", ErrResonances, len(peaks), modes)
	}
	w := objectiveWeight(t.Weight)
	out := make([]float64, modes)
	for k := 0; k < modes; k++ {
		m, err := pitch.Nearest(peaks[k], t.Tuning)
		if err != nil {
			return nil, err
		}
		want := 0.0
		if t.WantCents != nil {
			want = t.WantCents[k]
		}
		out[k] = w * (m.Cents - want) / 100
	}
	return out, nil
}
