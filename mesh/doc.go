// Package mesh discretizes one-dimensional pipe spans into spectral finite
// elements: contiguous intervals carrying a nodal Lagrange basis of moderate
// polynomial order, integrated with Gauss-Legendre quadrature.
//
// Meshing is deliberately dumb: a span is tiled with equal-length elements,
// the count chosen from an explicit target length or from the shortest
// wavelength of interest. Rounding always goes up, so a requested resolution
// is a guaranteed minimum, and a span that divides evenly gets exactly the
// expected count.
//
// # Usage
//
//	m, err := mesh.New(0, 0.45, mesh.Options{
//	    Order:         4,
//	    MaxFrequency:  2000,
//	    Speed:         343.4,
//	    PerWavelength: 10,
//	})
//
// The reference-element tables (basis values and derivatives at the
// quadrature points) are shared by every element of the same order:
//
//	tab, err := mesh.NewTables(4)
//	// tab.Phi[q][i], tab.Dphi[q][i], tab.QX[q], tab.QW[q]
package mesh
