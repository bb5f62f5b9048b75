package physics

import (
	"math/cmplx"
)

// The viscothermal kernels need J1(z)/J0(z) for complex z on the
// arg(z) = -π/4 ray. The continued fraction needs O(|z|) terms, so beyond
// besselAsymptoticCutoff the Hankel large-argument form takes over; on that
// ray the e^{jz} exponential dominates and the ratio tends to -j.
const (
	besselAsymptoticCutoff = 50.0
	besselMaxIterations    = 400
	besselTiny             = 1e-30
)

// besselJ1J0Ratio returns J1(z)/J0(z).
func besselJ1J0Ratio(z complex128) complex128 {
	if cmplx.Abs(z) > besselAsymptoticCutoff {
		return besselRatioAsymptotic(z)
	}
	return besselRatioCF(z)
}

// besselRatioCF evaluates the ratio with the modified Lentz algorithm on
//
//	J1(z)/J0(z) = (z/2) / (1 - u/(2 - u/(3 - ...))),  u = (z/2)².
func besselRatioCF(z complex128) complex128 {
	u := z * z / 4

	f := complex(1, 0) // b0
	c := f
	d := complex(0, 0)
	for n := 1; n <= besselMaxIterations; n++ {
		b := complex(float64(n+1), 0)
		d = b - u*d
		if d == 0 {
			d = complex(besselTiny, 0)
		}
		c = b - u/c
		if c == 0 {
			c = complex(besselTiny, 0)
		}
		d = 1 / d
		delta := c * d
		f *= delta
		if cmplx.Abs(delta-1) < 1e-15 {
			break
		}
	}
	return z / 2 / f
}

// besselRatioAsymptotic uses the Hankel expansion restricted to the branch
// where Im(z) -> -inf, keeping terms through 1/z²:
//
//	J1/J0 -> -j · (1 + 3j/(8z) + 15/(128z²)) / (1 - j/(8z) - 9/(128z²)).
func besselRatioAsymptotic(z complex128) complex128 {
	z2 := z * z
	num := 1 + complex(0, 3)/(8*z) + 15/(128*z2)
	den := 1 - complex(0, 1)/(8*z) - 9/(128*z2)
	return complex(0, -1) * num / den
}
