// Package fem assembles and solves the frequency-domain acoustics of a pipe
// network with one-dimensional spectral finite elements.
//
// The main bore is split into pipes at segment boundaries and tone hole
// positions; every hole contributes a short chimney pipe branching off at
// its junction. All pipes discretize the condensed pressure equation
//
//	d/dx( (1/zv) dp/dx ) = yt · p
//
// with the viscothermal coefficients zv, yt of package physics. Junctions
// need no explicit coupling: branches share the junction node, which
// enforces pressure continuity, and flow conservation follows from summing
// the element integrals. Radiating ends add their admittance to the
// diagonal; a perfectly open end pins its pressure to zero instead.
//
// Chimney nodes are numbered right after their junction, so the assembled
// system stays narrow-banded regardless of hole count and solves in O(n)
// per frequency through the banded LU of internal/cbanded.
//
// Driving the input with a unit volume flow makes the input impedance
// simply the input nodal pressure:
//
//	nw, _ := fem.NewNetwork(geometry, fem.Config{Air: physics.Air{Temperature: 22}})
//	sol, _ := nw.Solve(2*math.Pi*440, fingering)
//	z := sol.Impedance
//
// Per frequency, the fingering-independent part of the matrix is assembled
// once and reused across notes:
//
//	asm, _ := nw.Assemble(omega)
//	for _, note := range notes {
//	    sol, _ := asm.Solve(chart[note])
//	    ...
//	}
package fem
