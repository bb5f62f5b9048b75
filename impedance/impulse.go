package impedance

import (
	"fmt"
	"math/cmplx"

	algofft "github.com/MeKo-Christian/algo-fft"
)

// Impulse is the time-domain reflection response of the instrument: the
// inverse transform of the reflectance spectrum, sampled every Dt seconds.
// The bore return of an open pipe shows up as a negative pulse near
// t = 2L/c.
type Impulse struct {
	Dt        float64
	Time      []float64
	Amplitude []float64
}

// uniformGridTol is the relative spacing tolerance accepted by
// ReflectionImpulse.
const uniformGridTol = 1e-9

// ReflectionImpulse computes the reflection impulse response from the
// sweep. The frequency grid must be uniform with its first point at the
// spacing itself (see UniformGrid), so the samples map onto DFT bins
// 1..len. The highest frequency bounds the time resolution; the spacing
// bounds the observable window 1/Δf.
func (r *Result) ReflectionImpulse() (*Impulse, error) {
	n := r.Len()
	if n < 2 {
		return nil, ErrUniformGrid
	}
	df := r.Frequencies[0]
	if df <= 0 {
		return nil, ErrUniformGrid
	}
	for i := 1; i < n; i++ {
		if step := r.Frequencies[i] - r.Frequencies[i-1]; step < df-uniformGridTol*df || step > df+uniformGridTol*df {
			return nil, fmt.Errorf("%w: step %d is %g Hz, want %g Hz", ErrUniformGrid, i, step, df)
		}
	}

	refl := r.Reflectance()
	size := nextPowerOf2(2 * (n + 1))
	spec := make([]complex128, size)

	// DC bin: linear extrapolation of the real part; the imaginary part is
	// odd in frequency and vanishes at 0.
	spec[0] = complex(2*real(refl[0])-real(refl[1]), 0)
	for k := 1; k <= n; k++ {
		spec[k] = refl[k-1]
		spec[size-k] = cmplx.Conj(refl[k-1])
	}

	plan, err := algofft.NewPlan64(size)
	if err != nil {
		return nil, fmt.Errorf("impedance: %w", err)
	}
	if err := plan.Inverse(spec, spec); err != nil {
		return nil, fmt.Errorf("impedance: %w", err)
	}

	dt := 1 / (float64(size) * df)
	imp := &Impulse{
		Dt:        dt,
		Time:      make([]float64, size),
		Amplitude: make([]float64, size),
	}
	for i, v := range spec {
		imp.Time[i] = float64(i) * dt
		imp.Amplitude[i] = real(v)
	}
	return imp, nil
}

func nextPowerOf2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
