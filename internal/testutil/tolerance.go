// Package testutil provides assertion helpers shared by the numeric tests.
package testutil

import (
	"math"
	"math/cmplx"
	"testing"
)

// RequireSliceNear fails t if got and want differ in length or if any
// element pair differs by more than eps (absolute tolerance).
func RequireSliceNear(t *testing.T, got, want []float64, eps float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range got {
		d := math.Abs(got[i] - want[i])
		if !(d <= eps) {
			t.Fatalf("index %d: got %v, want %v (diff %v > eps %v)", i, got[i], want[i], d, eps)
		}
	}
}

// RequireComplexNear fails t if got sits farther than rel·max(1, |want|)
// from want in the complex plane. The max keeps the check relative for
// large magnitudes and absolute near zero.
func RequireComplexNear(t *testing.T, got, want complex128, rel float64) {
	t.Helper()
	tol := rel * math.Max(1, cmplx.Abs(want))
	if d := cmplx.Abs(got - want); !(d <= tol) {
		t.Fatalf("got %v, want %v (diff %v > %v)", got, want, d, tol)
	}
}

// RequireComplexSliceNear applies the RequireComplexNear criterion
// element-wise.
func RequireComplexSliceNear(t *testing.T, got, want []complex128, rel float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range got {
		tol := rel * math.Max(1, cmplx.Abs(want[i]))
		if d := cmplx.Abs(got[i] - want[i]); !(d <= tol) {
			t.Fatalf("index %d: got %v, want %v (diff %v > %v)", i, got[i], want[i], d, tol)
		}
	}
}

// RequireFinite fails t if any element is NaN or infinite.
func RequireFinite(t *testing.T, data []float64) {
	t.Helper()
	for i, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("index %d: non-finite value %v", i, v)
		}
	}
}

// RequireFiniteComplex fails t if any element has a NaN or infinite part.
func RequireFiniteComplex(t *testing.T, data []complex128) {
	t.Helper()
	for i, v := range data {
		if cmplx.IsNaN(v) || cmplx.IsInf(v) {
			t.Fatalf("index %d: non-finite value %v", i, v)
		}
	}
}
