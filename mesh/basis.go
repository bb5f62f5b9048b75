package mesh

import (
	"gonum.org/v1/gonum/integrate/quad"
)

// Tables holds the reference-element quantities of a nodal Lagrange basis on
// [0, 1]: equispaced interpolation nodes (endpoints included, so neighbouring
// elements share boundary degrees of freedom), a Gauss-Legendre rule with
// order+2 points, and the basis values and derivatives at the quadrature
// points. A Tables value is immutable after construction and safe to share
// across goroutines.
type Tables struct {
	Order int
	Nodes []float64 // order+1 reference nodes on [0, 1]

	QX []float64 // quadrature points on [0, 1]
	QW []float64 // quadrature weights

	Phi  [][]float64 // Phi[q][i] = φ_i(QX[q])
	Dphi [][]float64 // Dphi[q][i] = φ_i'(QX[q])
}

// NewTables builds the reference tables for a basis of the given order.
func NewTables(order int) (*Tables, error) {
	if order < 1 || order > MaxOrder {
		return nil, ErrOrder
	}

	nodes := make([]float64, order+1)
	for i := range nodes {
		nodes[i] = float64(i) / float64(order)
	}

	nq := order + 2
	qx := make([]float64, nq)
	qw := make([]float64, nq)
	quad.Legendre{}.FixedLocations(qx, qw, 0, 1)

	t := &Tables{
		Order: order,
		Nodes: nodes,
		QX:    qx,
		QW:    qw,
		Phi:   make([][]float64, nq),
		Dphi:  make([][]float64, nq),
	}
	for q := 0; q < nq; q++ {
		t.Phi[q] = make([]float64, order+1)
		t.Dphi[q] = make([]float64, order+1)
		for i := 0; i <= order; i++ {
			t.Phi[q][i] = lagrangeEval(nodes, i, qx[q])
			t.Dphi[q][i] = lagrangeDeriv(nodes, i, qx[q])
		}
	}
	return t, nil
}

// Eval returns φ_i(x) on the reference element.
func (t *Tables) Eval(i int, x float64) float64 {
	return lagrangeEval(t.Nodes, i, x)
}

// EvalDeriv returns φ_i'(x) on the reference element.
func (t *Tables) EvalDeriv(i int, x float64) float64 {
	return lagrangeDeriv(t.Nodes, i, x)
}

func lagrangeEval(nodes []float64, i int, x float64) float64 {
	v := 1.0
	for j, xj := range nodes {
		if j == i {
			continue
		}
		v *= (x - xj) / (nodes[i] - xj)
	}
	return v
}

func lagrangeDeriv(nodes []float64, i int, x float64) float64 {
	sum := 0.0
	for k := range nodes {
		if k == i {
			continue
		}
		prod := 1.0 / (nodes[i] - nodes[k])
		for j := range nodes {
			if j == i || j == k {
				continue
			}
			prod *= (x - nodes[j]) / (nodes[i] - nodes[j])
		}
		sum += prod
	}
	return sum
}
