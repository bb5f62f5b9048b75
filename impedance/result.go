package impedance

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/cwbudde/algo-vecmath"
)

// Result is one sweep of input impedance, index-aligned across all slices.
// It is immutable after creation.
type Result struct {
	// Note is the chart note this sweep belongs to, empty for direct runs.
	Note string

	Frequencies []float64
	Real, Imag  []float64 // input impedance, split components

	// Zc is the plane-wave characteristic impedance ρc/S at the input.
	Zc float64

	// NearSingular lists indices where the solver had to regularize a
	// pivot, typically lossless models driven at a resonance. Values at
	// these indices are finite but dominated by the regularization.
	NearSingular []int
}

// Len returns the number of frequency points.
func (r *Result) Len() int { return len(r.Frequencies) }

// At returns the complex impedance at index i.
func (r *Result) At(i int) complex128 {
	return complex(r.Real[i], r.Imag[i])
}

// Abs returns the impedance magnitudes.
func (r *Result) Abs() []float64 {
	dst := make([]float64, r.Len())
	vecmath.Magnitude(dst, r.Real, r.Imag)
	return dst
}

// Phase returns the impedance phases in radians.
func (r *Result) Phase() []float64 {
	dst := make([]float64, r.Len())
	for i := range dst {
		dst[i] = math.Atan2(r.Imag[i], r.Real[i])
	}
	return dst
}

// Reflectance returns the pressure reflection coefficient
// (Z - Zc)/(Z + Zc) at every frequency.
func (r *Result) Reflectance() []complex128 {
	zc := complex(r.Zc, 0)
	dst := make([]complex128, r.Len())
	for i := range dst {
		z := r.At(i)
		dst[i] = (z - zc) / (z + zc)
	}
	return dst
}

// Resonances returns the refined frequencies of the impedance magnitude
// maxima, the playable resonances of the instrument.
func (r *Result) Resonances() []float64 { return r.extrema(1) }

// Antiresonances returns the refined frequencies of the impedance magnitude
// minima.
func (r *Result) Antiresonances() []float64 { return r.extrema(-1) }

// extrema scans for strict interior extrema of the log magnitude and
// refines each through a three-point parabola. Grid boundary extrema are
// not reported: they cannot be refined and usually mean the sweep
// truncates a peak.
func (r *Result) extrema(sign float64) []float64 {
	if r.Len() < 3 {
		return nil
	}
	mag := r.Abs()
	m := make([]float64, len(mag))
	for i, v := range mag {
		if v <= 0 {
			v = math.SmallestNonzeroFloat64
		}
		m[i] = sign * math.Log(v)
	}

	var out []float64
	for i := 1; i+1 < len(m); i++ {
		if m[i] > m[i-1] && m[i] > m[i+1] {
			f := r.Frequencies
			out = append(out, quadVertex(f[i-1], m[i-1], f[i], m[i], f[i+1], m[i+1]))
		}
	}
	return out
}

// quadVertex returns the abscissa of the vertex of the parabola through
// three points. The middle point must be the strict extremum, which keeps
// the vertex inside (x0, x2).
func quadVertex(x0, y0, x1, y1, x2, y2 float64) float64 {
	da, db := x1-x0, x1-x2
	na, nb := y1-y2, y1-y0
	den := da*na - db*nb
	if den == 0 {
		return x1
	}
	return x1 - 0.5*(da*da*na-db*db*nb)/den
}

// WriteCSV writes the sweep as frequency_hz,real,imag rows.
func (r *Result) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"frequency_hz", "real", "imag"}); err != nil {
		return fmt.Errorf("impedance: %w", err)
	}
	for i := range r.Frequencies {
		rec := []string{
			strconv.FormatFloat(r.Frequencies[i], 'g', -1, 64),
			strconv.FormatFloat(r.Real[i], 'g', -1, 64),
			strconv.FormatFloat(r.Imag[i], 'g', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("impedance: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("impedance: %w", err)
	}
	return nil
}
