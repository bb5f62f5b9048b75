package physics

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrUnknownLossModel is returned for loss model names or kinds outside the
// supported set.
var ErrUnknownLossModel = errors.New("physics: unknown loss model")

// ModelConfigError reports a loss or radiation selection that cannot be
// honored, carrying the requested model name.
type ModelConfigError struct {
	Model string
	Err   error
}

func (e *ModelConfigError) Error() string { return fmt.Sprintf("%v: %q", e.Err, e.Model) }

func (e *ModelConfigError) Unwrap() error { return e.Err }

// Losses computes the lineic coefficients of a duct section under a given
// viscothermal model.
type Losses interface {
	// Name reports the configuration name of the model.
	Name() string

	// Coefficients returns the series impedance zv and shunt admittance yt
	// per unit length for a duct of the given radius at angular frequency
	// omega > 0. Both are zero at omega <= 0.
	Coefficients(omega, radius float64, air AirProps) (zv, yt complex128)
}

// LossKind enumerates the supported viscothermal models.
type LossKind int

const (
	// LossNone disables viscothermal losses.
	LossNone LossKind = iota
	// LossBessel is the exact Zwikker-Kosten cylindrical duct model, with
	// the radial profile expressed through Bessel functions.
	LossBessel
	// LossDiffusive is the large-duct expansion of the Zwikker-Kosten
	// model, first order in the inverse Stokes number. Its corrections
	// scale with sqrt(f), which is what makes it suitable for diffusive
	// time-domain representations.
	LossDiffusive
)

// String returns the configuration name of the kind.
func (k LossKind) String() string {
	switch k {
	case LossNone:
		return "none"
	case LossBessel:
		return "bessel"
	case LossDiffusive:
		return "diffusive"
	}
	return fmt.Sprintf("LossKind(%d)", int(k))
}

// ParseLossKind resolves a configuration name into a LossKind.
func ParseLossKind(name string) (LossKind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "none", "lossless", "false":
		return LossNone, nil
	case "bessel", "zwikker-kosten", "true":
		return LossBessel, nil
	case "diffusive", "keefe":
		return LossDiffusive, nil
	}
	return 0, &ModelConfigError{Model: name, Err: ErrUnknownLossModel}
}

// NewLosses returns the model implementation for the kind.
func NewLosses(kind LossKind) (Losses, error) {
	switch kind {
	case LossNone:
		return losslessModel{}, nil
	case LossBessel:
		return besselModel{}, nil
	case LossDiffusive:
		return diffusiveModel{}, nil
	}
	return nil, &ModelConfigError{Model: kind.String(), Err: ErrUnknownLossModel}
}

// lossless reference coefficients zv = jωρ/S, yt = jωS/(ρc²).
func losslessCoefficients(omega, radius float64, air AirProps) (zv, yt complex128) {
	s := math.Pi * radius * radius
	zv = complex(0, omega*air.Rho/s)
	yt = complex(0, omega*s/(air.Rho*air.C*air.C))
	return zv, yt
}

// stokesNumber returns rv = r·sqrt(ρω/µ), the ratio of the radius to the
// viscous boundary layer thickness.
func stokesNumber(omega, radius float64, air AirProps) float64 {
	return radius * math.Sqrt(air.Rho*omega/air.Mu)
}

type losslessModel struct{}

func (losslessModel) Name() string { return "none" }

func (losslessModel) Coefficients(omega, radius float64, air AirProps) (zv, yt complex128) {
	if omega <= 0 {
		return 0, 0
	}
	return losslessCoefficients(omega, radius, air)
}

type besselModel struct{}

func (besselModel) Name() string { return "bessel" }

func (besselModel) Coefficients(omega, radius float64, air AirProps) (zv, yt complex128) {
	if omega <= 0 {
		return 0, 0
	}
	zv0, yt0 := losslessCoefficients(omega, radius, air)

	// Viscous and thermal wavenumber arguments kv·r and kt·r, both on the
	// arg = -π/4 ray; kt·r = kv·r·sqrt(Pr).
	rv := stokesNumber(omega, radius, air)
	argV := complex(rv/math.Sqrt2, -rv/math.Sqrt2)
	argT := argV * complex(math.Sqrt(air.Prandtl()), 0)

	bv := 2 * besselJ1J0Ratio(argV) / argV
	bt := 2 * besselJ1J0Ratio(argT) / argT

	zv = zv0 / (1 - bv)
	yt = yt0 * (1 + complex(air.Gamma-1, 0)*bt)
	return zv, yt
}

type diffusiveModel struct{}

func (diffusiveModel) Name() string { return "diffusive" }

func (diffusiveModel) Coefficients(omega, radius float64, air AirProps) (zv, yt complex128) {
	if omega <= 0 {
		return 0, 0
	}
	zv0, yt0 := losslessCoefficients(omega, radius, air)

	rv := stokesNumber(omega, radius, air)
	cv := math.Sqrt2 / rv
	ct := (air.Gamma - 1) * math.Sqrt2 / (rv * math.Sqrt(air.Prandtl()))

	// (1-j) corrections: equal resistive and reactive perturbations.
	zv = zv0 * (1 + complex(cv, -cv))
	yt = yt0 * (1 + complex(ct, -ct))
	return zv, yt
}
