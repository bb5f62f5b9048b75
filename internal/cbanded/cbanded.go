// Package cbanded implements complex banded linear systems with LU
// factorization and partial pivoting, in LAPACK band storage. The assembled
// Helmholtz-like systems of the solver are narrow-banded and complex
// symmetric; partial pivoting plus a pivot clamp keeps near-singular systems
// (lossless models driven exactly at a resonance) solvable without poisoning
// the whole sweep with NaNs.
package cbanded

import (
	"fmt"
	"math/cmplx"
)

// PivotTol scales the pivot clamp: a pivot smaller in magnitude than
// PivotTol times the largest assembled entry is raised to that threshold,
// keeping its phase.
const PivotTol = 1e-13

// Matrix is an n×n complex matrix with kl sub-diagonals and ku
// super-diagonals, stored column-wise with kl extra super-diagonals of fill
// space for pivoting.
type Matrix struct {
	n, kl, ku int
	ldab      int
	data      []complex128
}

// New returns a zeroed banded matrix.
func New(n, kl, ku int) *Matrix {
	if n <= 0 || kl < 0 || ku < 0 {
		panic(fmt.Sprintf("cbanded: bad shape n=%d kl=%d ku=%d", n, kl, ku))
	}
	ldab := 2*kl + ku + 1
	return &Matrix{
		n:    n,
		kl:   kl,
		ku:   ku,
		ldab: ldab,
		data: make([]complex128, ldab*n),
	}
}

// N returns the matrix dimension.
func (m *Matrix) N() int { return m.n }

// Bandwidths returns the sub- and super-diagonal counts.
func (m *Matrix) Bandwidths() (kl, ku int) { return m.kl, m.ku }

// index maps (i, j) to band storage; entries must satisfy
// -(ku+kl) <= i-j <= kl, the extra ku..ku+kl range being pivoting fill.
func (m *Matrix) index(i, j int) int {
	d := i - j
	if d > m.kl || d < -(m.ku+m.kl) {
		panic(fmt.Sprintf("cbanded: entry (%d,%d) outside band kl=%d ku=%d", i, j, m.kl, m.ku))
	}
	return j*m.ldab + m.kl + m.ku + d
}

// inBand reports whether (i, j) lies in the declared band (fill excluded).
func (m *Matrix) inBand(i, j int) bool {
	if i < 0 || i >= m.n || j < 0 || j >= m.n {
		return false
	}
	d := i - j
	return d <= m.kl && d >= -m.ku
}

// At returns the entry at (i, j); positions outside the band read as zero.
func (m *Matrix) At(i, j int) complex128 {
	if !m.inBand(i, j) {
		return 0
	}
	return m.data[m.index(i, j)]
}

// Set stores v at (i, j), which must lie in the declared band.
func (m *Matrix) Set(i, j int, v complex128) {
	if !m.inBand(i, j) {
		panic(fmt.Sprintf("cbanded: Set(%d,%d) outside band", i, j))
	}
	m.data[m.index(i, j)] = v
}

// Add accumulates v into (i, j), which must lie in the declared band.
func (m *Matrix) Add(i, j int, v complex128) {
	if !m.inBand(i, j) {
		panic(fmt.Sprintf("cbanded: Add(%d,%d) outside band", i, j))
	}
	m.data[m.index(i, j)] += v
}

// Zero clears every entry.
func (m *Matrix) Zero() {
	clear(m.data)
}

// Clone returns an independent copy.
func (m *Matrix) Clone() *Matrix {
	out := New(m.n, m.kl, m.ku)
	copy(out.data, m.data)
	return out
}

// CopyFrom overwrites m with src, which must have identical shape.
func (m *Matrix) CopyFrom(src *Matrix) {
	if m.n != src.n || m.kl != src.kl || m.ku != src.ku {
		panic("cbanded: CopyFrom shape mismatch")
	}
	copy(m.data, src.data)
}

// ZeroRowCol clears the banded row and column through (i, i) and sets the
// diagonal to one. With a zero right-hand side entry this pins the solution
// component to zero while preserving symmetry.
func (m *Matrix) ZeroRowCol(i int) {
	for j := i - m.kl; j <= i+m.ku; j++ {
		if m.inBand(i, j) {
			m.data[m.index(i, j)] = 0
		}
	}
	for k := i - m.ku; k <= i+m.kl; k++ {
		if m.inBand(k, i) {
			m.data[m.index(k, i)] = 0
		}
	}
	m.Set(i, i, 1)
}

// MulVec computes dst = m · x for testing and residual checks.
func (m *Matrix) MulVec(dst, x []complex128) {
	if len(dst) != m.n || len(x) != m.n {
		panic("cbanded: MulVec dimension mismatch")
	}
	for i := range dst {
		var sum complex128
		lo := max(0, i-m.kl)
		hi := min(m.n-1, i+m.ku)
		for j := lo; j <= hi; j++ {
			sum += m.data[m.index(i, j)] * x[j]
		}
		dst[i] = sum
	}
}

// LU is the factored form of a Matrix.
type LU struct {
	m   *Matrix
	piv []int

	// Clamped counts pivots raised to the clamp threshold; non-zero means
	// the system was numerically singular at this frequency.
	Clamped int
}

// maxAbs returns the largest entry magnitude.
func (m *Matrix) maxAbs() float64 {
	maxv := 0.0
	for _, v := range m.data {
		if a := cmplx.Abs(v); a > maxv {
			maxv = a
		}
	}
	return maxv
}

// Factorize overwrites m with its LU factorization under partial pivoting.
// The matrix must not be written through Add or Set afterwards.
func (m *Matrix) Factorize() *LU {
	n, kl, ku := m.n, m.kl, m.ku
	lu := &LU{m: m, piv: make([]int, n)}

	clamp := PivotTol * m.maxAbs()
	if clamp == 0 {
		clamp = PivotTol
	}

	ju := 0
	for j := 0; j < n; j++ {
		// Pivot search in column j, rows j..j+kl.
		km := min(kl, n-1-j)
		jp := j
		maxv := cmplx.Abs(m.data[m.index(j, j)])
		for i := j + 1; i <= j+km; i++ {
			if a := cmplx.Abs(m.data[m.index(i, j)]); a > maxv {
				maxv, jp = a, i
			}
		}
		lu.piv[j] = jp

		if maxv < clamp {
			// Numerically singular column: regularize the diagonal and
			// keep going. The phase is preserved so the perturbation
			// stays as consistent as possible with the assembled matrix.
			jp = j
			lu.piv[j] = j
			p := m.data[m.index(j, j)]
			if p == 0 {
				p = complex(clamp, 0)
			} else {
				p *= complex(clamp/cmplx.Abs(p), 0)
			}
			m.data[m.index(j, j)] = p
			lu.Clamped++
		}

		// The swapped-in row reaches up to column jp+ku.
		ju = max(ju, min(jp+ku, n-1))
		if jp != j {
			for k := j; k <= ju; k++ {
				idxJ := m.index(j, k)
				idxP := m.index(jp, k)
				m.data[idxJ], m.data[idxP] = m.data[idxP], m.data[idxJ]
			}
		}

		if km == 0 {
			continue
		}
		pivot := m.data[m.index(j, j)]
		inv := 1 / pivot
		for i := j + 1; i <= j+km; i++ {
			m.data[m.index(i, j)] *= inv
		}
		for k := j + 1; k <= ju; k++ {
			ajk := m.data[m.index(j, k)]
			if ajk == 0 {
				continue
			}
			for i := j + 1; i <= j+km; i++ {
				m.data[m.index(i, k)] -= m.data[m.index(i, j)] * ajk
			}
		}
	}
	return lu
}

// Solve overwrites b with the solution of the factored system.
func (lu *LU) Solve(b []complex128) error {
	n, kl, ku := lu.m.n, lu.m.kl, lu.m.ku
	if len(b) != n {
		return fmt.Errorf("cbanded: rhs length %d, want %d", len(b), n)
	}

	// Forward: apply pivots and L.
	for j := 0; j < n; j++ {
		if jp := lu.piv[j]; jp != j {
			b[j], b[jp] = b[jp], b[j]
		}
		km := min(kl, n-1-j)
		for i := j + 1; i <= j+km; i++ {
			b[i] -= lu.m.data[lu.m.index(i, j)] * b[j]
		}
	}

	// Backward: U has bandwidth ku+kl after pivoting.
	for j := n - 1; j >= 0; j-- {
		b[j] /= lu.m.data[lu.m.index(j, j)]
		lo := max(0, j-ku-kl)
		for i := lo; i < j; i++ {
			b[i] -= lu.m.data[lu.m.index(i, j)] * b[j]
		}
	}

	for i, v := range b {
		if cmplx.IsNaN(v) || cmplx.IsInf(v) {
			return fmt.Errorf("cbanded: non-finite solution component %d", i)
		}
	}
	return nil
}
