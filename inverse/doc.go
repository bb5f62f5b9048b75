// Package inverse fits bore geometries to acoustic targets.
//
// A Problem binds a base geometry, the parameters allowed to move (hole
// positions, radii, chimney heights, segment end radii and positions, each
// with optional bounds) and one or more least-squares objectives: matching
// an impedance curve, hitting resonance frequencies, or playing in tune in
// cents. Methods minimize the stacked residuals: the damped
// Levenberg-Marquardt and plain Gauss-Newton solvers use analytic or
// finite-difference Jacobians, and a gonum/optimize adapter provides
// Nelder-Mead and L-BFGS. Every run returns the best geometry seen, its
// cost and the full iteration history, whether it converged, hit the
// iteration cap, diverged or was cancelled.
//
// # Usage
//
//	prob, err := inverse.NewProblem(b,
//	    []inverse.Parameter{{Field: inverse.HoleRadius, Index: 0, Min: 1e-3, Max: 6e-3}},
//	    []inverse.Objective{&inverse.ResonanceTarget{
//	        Fingering: fingering,
//	        Grid:      grid,
//	        Want:      []float64{311.1},
//	    }},
//	)
//	if err != nil {
//	    return err
//	}
//	eng, err := inverse.NewEngine(prob, &inverse.LevenbergMarquardt{}, inverse.Settings{})
//	if err != nil {
//	    return err
//	}
//	out, err := eng.Run(ctx)
package inverse
