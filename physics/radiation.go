package physics

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrUnknownRadiation is returned for radiation model names or kinds outside
// the supported set.
var ErrUnknownRadiation = errors.New("physics: unknown radiation model")

// Radiation terminates an opening of the network: the main bell or the top
// of a tone hole chimney.
type Radiation interface {
	// Name reports the configuration name of the model.
	Name() string

	// Admittance returns the terminal admittance Y = u/p looking out of an
	// opening of the given radius at angular frequency omega > 0. The
	// opening factor in [0, 1] rescales the opening to an effective radius
	// radius·sqrt(opening); zero means sealed and returns Y = 0.
	Admittance(omega, radius, opening float64, air AirProps) complex128

	// Pinned reports whether the model pins the pressure to zero instead
	// of contributing an admittance (ideal open end).
	Pinned() bool

	// HolesAllowed reports whether the model may terminate tone holes.
	HolesAllowed() bool
}

// RadKind enumerates the supported radiation models.
type RadKind int

const (
	// RadClosed seals the opening with a rigid cap.
	RadClosed RadKind = iota
	// RadPerfectlyOpen pins the pressure to zero: no length correction and
	// no radiated power.
	RadPerfectlyOpen
	// RadUnflanged is the low-frequency fit of the Levine-Schwinger
	// unflanged pipe.
	RadUnflanged
	// RadInfiniteFlanged is the low-frequency fit of a pipe opening into
	// an infinite flange.
	RadInfiniteFlanged
	// RadPlanarPiston is the Rayleigh baffled piston fit.
	RadPlanarPiston
	// RadTotalTransmission matches the opening to its characteristic
	// impedance, absorbing all incident power. It models an anechoic
	// termination and is only meaningful on the main bell.
	RadTotalTransmission
)

// String returns the configuration name of the kind.
func (k RadKind) String() string {
	switch k {
	case RadClosed:
		return "closed"
	case RadPerfectlyOpen:
		return "perfectly_open"
	case RadUnflanged:
		return "unflanged"
	case RadInfiniteFlanged:
		return "infinite_flanged"
	case RadPlanarPiston:
		return "planar_piston"
	case RadTotalTransmission:
		return "total_transmission"
	}
	return fmt.Sprintf("RadKind(%d)", int(k))
}

// ParseRadKind resolves a configuration name into a RadKind.
func ParseRadKind(name string) (RadKind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "closed":
		return RadClosed, nil
	case "perfectly_open", "open":
		return RadPerfectlyOpen, nil
	case "unflanged", "pipe":
		return RadUnflanged, nil
	case "infinite_flanged", "flanged":
		return RadInfiniteFlanged, nil
	case "planar_piston", "piston":
		return RadPlanarPiston, nil
	case "total_transmission", "anechoic":
		return RadTotalTransmission, nil
	}
	return 0, &ModelConfigError{Model: name, Err: ErrUnknownRadiation}
}

// Length corrections (in radii) of the Padé radiation fit
//
//	Z(ω) = Zc · jδkr / (1 + jβδkr)
//
// which reproduces the exact low-frequency reactance Im Z → Zc·δ·kr. The β
// coefficient is then fixed by the exact radiation resistance, Zc(kr)²/4
// for an unflanged pipe and Zc(kr)²/2 for a flanged one.
const (
	deltaUnflanged = 0.6133            // Levine & Schwinger
	deltaFlanged   = 0.8236            // Norris & Sheng
	deltaPiston    = 8 / (3 * math.Pi) // Rayleigh
)

// NewRadiation returns the model implementation for the kind.
func NewRadiation(kind RadKind) (Radiation, error) {
	switch kind {
	case RadClosed:
		return closedRadiation{}, nil
	case RadPerfectlyOpen:
		return pinnedRadiation{}, nil
	case RadUnflanged:
		return newPade("unflanged", deltaUnflanged, 4), nil
	case RadInfiniteFlanged:
		return newPade("infinite_flanged", deltaFlanged, 2), nil
	case RadPlanarPiston:
		return newPade("planar_piston", deltaPiston, 2), nil
	case RadTotalTransmission:
		return anechoicRadiation{}, nil
	}
	return nil, &ModelConfigError{Model: kind.String(), Err: ErrUnknownRadiation}
}

type closedRadiation struct{}

func (closedRadiation) Name() string       { return "closed" }
func (closedRadiation) Pinned() bool       { return false }
func (closedRadiation) HolesAllowed() bool { return true }

func (closedRadiation) Admittance(omega, radius, opening float64, air AirProps) complex128 {
	return 0
}

type pinnedRadiation struct{}

func (pinnedRadiation) Name() string       { return "perfectly_open" }
func (pinnedRadiation) Pinned() bool       { return true }
func (pinnedRadiation) HolesAllowed() bool { return true }

func (pinnedRadiation) Admittance(omega, radius, opening float64, air AirProps) complex128 {
	return 0
}

type anechoicRadiation struct{}

func (anechoicRadiation) Name() string       { return "total_transmission" }
func (anechoicRadiation) Pinned() bool       { return false }
func (anechoicRadiation) HolesAllowed() bool { return false }

func (anechoicRadiation) Admittance(omega, radius, opening float64, air AirProps) complex128 {
	if omega <= 0 || opening <= 0 {
		return 0
	}
	return complex(math.Pi*radius*radius*opening/(air.Rho*air.C), 0)
}

type padeRadiation struct {
	name  string
	delta float64
	beta  float64
}

func newPade(name string, delta float64, resistDivisor float64) padeRadiation {
	return padeRadiation{
		name:  name,
		delta: delta,
		beta:  1 / (resistDivisor * delta * delta),
	}
}

func (m padeRadiation) Name() string       { return m.name }
func (m padeRadiation) Pinned() bool       { return false }
func (m padeRadiation) HolesAllowed() bool { return true }

func (m padeRadiation) Admittance(omega, radius, opening float64, air AirProps) complex128 {
	if omega <= 0 || opening <= 0 {
		return 0
	}
	r := radius * math.Sqrt(opening)
	kr := omega / air.C * r
	zc := air.CharImpedance(r)

	w := complex(0, m.delta*kr)
	z := complex(zc, 0) * w / (1 + complex(m.beta, 0)*w)
	return 1 / z
}
