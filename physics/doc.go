// Package physics provides the material models for one-dimensional duct
// acoustics: air properties, viscothermal loss models, and radiation
// boundary conditions.
//
// All quantities follow the e^{+jωt} time convention. A duct cross section
// of area S at angular frequency ω is described by two lineic coefficients,
// the series impedance zv and the shunt admittance yt, such that
//
//	zv·u + dp/dx = 0
//	yt·p + du/dx = 0
//
// where p is the acoustic pressure and u the volume flow. The lossless
// coefficients are zv = jωρ/S and yt = jωS/(ρc²); loss models perturb them
// with complex, frequency-dependent corrections.
//
// # Usage
//
// Resolve the air state once, then query models per frequency:
//
//	props, _ := physics.Air{Temperature: 20}.Props()
//	losses, _ := physics.NewLosses(physics.LossBessel)
//	zv, yt := losses.Coefficients(2*math.Pi*440, 0.007, props)
//
//	rad, _ := physics.NewRadiation(physics.RadUnflanged)
//	y := rad.Admittance(2*math.Pi*440, 0.007, 1, props)
//
// Radiation admittances are defined looking out of the opening, so that a
// passive model always has Re(Y) >= 0.
package physics
