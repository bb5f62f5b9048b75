package physics

import (
	"errors"
	"math"
)

// Errors returned by air state validation.
var (
	ErrTemperature = errors.New("physics: temperature must be above absolute zero")
	ErrHumidity    = errors.New("physics: relative humidity must be in [0, 1]")
)

// Reference conditions for the dry-air fits.
const (
	zeroCelsius  = 273.15    // K
	refDensity   = 1.2929    // kg/m³ at 0 °C
	refSpeed     = 331.45    // m/s at 0 °C
	refPressure  = 101325.0  // Pa
	heatCapacity = 1004.16   // J/(kg·K), constant-pressure
	heatRatio    = 1.402     // Cp/Cv
	refViscosity = 1.708e-5  // Pa·s at 0 °C
	refConduct   = 0.0241418 // W/(m·K) at 0 °C
)

// Air describes the thermodynamic state of the air column.
//
// Temperature is in degrees Celsius. Humidity is the relative humidity in
// [0, 1] and enters the sound speed and density through the water vapour
// molar fraction; its influence on the transport coefficients is below the
// accuracy of the loss models and is neglected.
type Air struct {
	Temperature float64
	Humidity    float64
}

// Validate checks that the air state is physically meaningful.
func (a Air) Validate() error {
	if a.Temperature <= -zeroCelsius {
		return ErrTemperature
	}
	if a.Humidity < 0 || a.Humidity > 1 {
		return ErrHumidity
	}
	return nil
}

// Props resolves the state into the coefficients used by the wave models.
func (a Air) Props() (AirProps, error) {
	if err := a.Validate(); err != nil {
		return AirProps{}, err
	}

	t := a.Temperature
	kelvin := t + zeroCelsius

	rho := refDensity * zeroCelsius / kelvin
	c := refSpeed * math.Sqrt(kelvin/zeroCelsius)

	if a.Humidity > 0 {
		// Magnus saturation pressure, then first-order corrections in the
		// vapour molar fraction: lighter mixture, faster sound.
		psat := 610.78 * math.Exp(17.27*t/(t+237.3))
		xv := a.Humidity * psat / refPressure
		rho *= 1 - 0.378*xv
		c *= 1 + 0.16*xv
	}

	return AirProps{
		Rho:   rho,
		C:     c,
		Mu:    refViscosity * (1 + 0.0029*t),
		Kappa: refConduct * (1 + 0.0033*t),
		Cp:    heatCapacity,
		Gamma: heatRatio,
	}, nil
}

// AirProps holds the resolved air coefficients.
type AirProps struct {
	Rho   float64 // density, kg/m³
	C     float64 // speed of sound, m/s
	Mu    float64 // dynamic viscosity, Pa·s
	Kappa float64 // thermal conductivity, W/(m·K)
	Cp    float64 // specific heat at constant pressure, J/(kg·K)
	Gamma float64 // ratio of specific heats
}

// Prandtl returns the Prandtl number µCp/κ.
func (p AirProps) Prandtl() float64 {
	return p.Mu * p.Cp / p.Kappa
}

// CharImpedance returns the plane-wave characteristic impedance ρc/S of a
// duct of the given radius.
func (p AirProps) CharImpedance(radius float64) float64 {
	return p.Rho * p.C / (math.Pi * radius * radius)
}
