package mesh

import (
	"errors"
	"fmt"
	"math"
)

// Errors returned by mesh generation.
var (
	ErrSpan       = errors.New("mesh: span must have positive length")
	ErrOrder      = errors.New("mesh: order must be between 1 and 10")
	ErrResolution = errors.New("mesh: automatic sizing needs a positive speed and max frequency")
)

// DiscretizationError reports a span that could not be meshed.
type DiscretizationError struct {
	Start, End float64
	Err        error
}

func (e *DiscretizationError) Error() string {
	return fmt.Sprintf("span [%g, %g]: %v", e.Start, e.End, e.Err)
}

func (e *DiscretizationError) Unwrap() error { return e.Err }

// Defaults for the discretization policy.
const (
	DefaultOrder         = 4
	DefaultPerWavelength = 10.0
	MaxOrder             = 10

	// minSpan rejects spans below a nanometre: degenerate geometry, not a
	// resolvable pipe.
	minSpan = 1e-9

	// countTol keeps an exactly divisible span from picking up a spurious
	// extra element through floating point noise.
	countTol = 1e-9
)

// Options steers element sizing.
type Options struct {
	// ElementLength is the target element length in metres. Zero selects
	// the automatic policy based on the shortest wavelength.
	ElementLength float64

	// Order is the polynomial order per element. Zero means DefaultOrder.
	Order int

	// PerWavelength is the number of elements per shortest wavelength used
	// by the automatic policy. Zero means DefaultPerWavelength.
	PerWavelength float64

	// MaxFrequency and Speed define the shortest wavelength of interest
	// for the automatic policy, Speed/MaxFrequency.
	MaxFrequency float64
	Speed        float64
}

// Element is one interval of a mesh. Neighbouring elements share their
// boundary coordinate exactly.
type Element struct {
	Start float64
	End   float64
	Order int
}

// Length returns the axial extent of the element.
func (e Element) Length() float64 { return e.End - e.Start }

// Mesh tiles the span [Start, End] with contiguous elements.
type Mesh struct {
	Start, End float64
	Elements   []Element
}

// New meshes the span [start, end]. Failures come back as a
// *DiscretizationError wrapping the package sentinel.
func New(start, end float64, opt Options) (*Mesh, error) {
	span := end - start
	if span <= minSpan {
		return nil, &DiscretizationError{Start: start, End: end, Err: ErrSpan}
	}

	order := opt.Order
	if order == 0 {
		order = DefaultOrder
	}
	if order < 1 || order > MaxOrder {
		return nil, &DiscretizationError{Start: start, End: end, Err: ErrOrder}
	}

	target := opt.ElementLength
	if target <= 0 {
		if opt.Speed <= 0 || opt.MaxFrequency <= 0 {
			return nil, &DiscretizationError{Start: start, End: end, Err: ErrResolution}
		}
		perWavelength := opt.PerWavelength
		if perWavelength <= 0 {
			perWavelength = DefaultPerWavelength
		}
		target = opt.Speed / opt.MaxFrequency / perWavelength
	}

	count := int(math.Ceil(span/target - countTol))
	if count < 1 {
		count = 1
	}

	// Shared boundaries, exact ends: elements tile the span with no gaps.
	h := span / float64(count)
	bounds := make([]float64, count+1)
	for i := 0; i <= count; i++ {
		bounds[i] = start + h*float64(i)
	}
	bounds[count] = end

	m := &Mesh{Start: start, End: end, Elements: make([]Element, count)}
	for i := 0; i < count; i++ {
		m.Elements[i] = Element{
			Start: bounds[i],
			End:   bounds[i+1],
			Order: order,
		}
	}
	return m, nil
}

// NodeCount returns the number of distinct nodes, counting shared element
// boundaries once.
func (m *Mesh) NodeCount() int {
	n := 1
	for _, e := range m.Elements {
		n += e.Order
	}
	return n
}
