package bore

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/interp"
)

// Errors returned by geometry validation and evaluation.
var (
	ErrNoSegments     = errors.New("bore: geometry needs at least one segment")
	ErrSegmentSpan    = errors.New("bore: segment end must lie beyond its start")
	ErrSegmentGap     = errors.New("bore: segments must be contiguous")
	ErrRadius         = errors.New("bore: radii must be positive")
	ErrCylinderTaper  = errors.New("bore: cylinder start and end radii must match")
	ErrFlare          = errors.New("bore: horn flare needs a positive exponent and distinct radii")
	ErrKnots          = errors.New("bore: spline knots must be strictly increasing inside the segment")
	ErrHoleLabel      = errors.New("bore: hole label must be non-empty")
	ErrDuplicateLabel = errors.New("bore: hole labels must be unique")
	ErrHolePosition   = errors.New("bore: hole must sit strictly inside the main bore")
	ErrHoleRadius     = errors.New("bore: hole radius must be positive and at most the main bore radius")
	ErrChimney        = errors.New("bore: hole chimney height must be positive")
	ErrUndercut       = errors.New("bore: hole undercut must be non-negative")
	ErrOutOfRange     = errors.New("bore: position outside the main bore")
)

// GeometryError locates a validation failure: the offending segment index,
// or the offending hole index and label. The unused part is -1 or empty.
type GeometryError struct {
	Segment int
	Hole    int
	Label   string
	Err     error
}

func (e *GeometryError) Error() string {
	if e.Hole >= 0 {
		if e.Label != "" {
			return fmt.Sprintf("hole %q: %v", e.Label, e.Err)
		}
		return fmt.Sprintf("hole %d: %v", e.Hole, e.Err)
	}
	return fmt.Sprintf("segment %d: %v", e.Segment, e.Err)
}

func (e *GeometryError) Unwrap() error { return e.Err }

func segmentErr(i int, err error) error {
	return &GeometryError{Segment: i, Hole: -1, Err: err}
}

func holeErr(i int, label string, err error) error {
	return &GeometryError{Segment: -1, Hole: i, Label: label, Err: err}
}

// MM converts millimetres to metres when multiplied: 7 * bore.MM.
const MM = 1e-3

// geomTol absorbs floating point noise in contiguity and span checks.
const geomTol = 1e-12

// ShapeKind enumerates the supported segment profiles.
type ShapeKind int

const (
	// ShapeCylinder has a constant radius.
	ShapeCylinder ShapeKind = iota
	// ShapeCone interpolates the radius linearly.
	ShapeCone
	// ShapeExponential interpolates the radius exponentially.
	ShapeExponential
	// ShapeBessel is the power-law horn r(x) = b·|x_t - x|^(-α) fitted
	// through the end radii, with the singular point x_t outside the span.
	ShapeBessel
	// ShapeSpline passes a natural cubic through the end radii and the
	// interior knots.
	ShapeSpline
)

// String returns the configuration name of the kind.
func (k ShapeKind) String() string {
	switch k {
	case ShapeCylinder:
		return "cylinder"
	case ShapeCone:
		return "cone"
	case ShapeExponential:
		return "exponential"
	case ShapeBessel:
		return "bessel"
	case ShapeSpline:
		return "spline"
	}
	return fmt.Sprintf("ShapeKind(%d)", int(k))
}

// Point is a spline knot: radius R at axial position X.
type Point struct {
	X, R float64
}

// Segment is one axial piece of the main bore.
type Segment struct {
	Start, End             float64
	StartRadius, EndRadius float64
	Kind                   ShapeKind
	Alpha                  float64 // flare exponent, ShapeBessel only
	Knots                  []Point // interior knots, ShapeSpline only
}

// Cylinder returns a constant-radius segment.
func Cylinder(start, end, radius float64) Segment {
	return Segment{Start: start, End: end, StartRadius: radius, EndRadius: radius, Kind: ShapeCylinder}
}

// Cone returns a linearly tapered segment.
func Cone(start, end, startRadius, endRadius float64) Segment {
	return Segment{Start: start, End: end, StartRadius: startRadius, EndRadius: endRadius, Kind: ShapeCone}
}

// Exponential returns an exponentially tapered segment.
func Exponential(start, end, startRadius, endRadius float64) Segment {
	return Segment{Start: start, End: end, StartRadius: startRadius, EndRadius: endRadius, Kind: ShapeExponential}
}

// BesselHorn returns a power-law flared segment with exponent alpha.
func BesselHorn(start, end, startRadius, endRadius, alpha float64) Segment {
	return Segment{Start: start, End: end, StartRadius: startRadius, EndRadius: endRadius, Kind: ShapeBessel, Alpha: alpha}
}

// Spline returns a segment whose radius follows a natural cubic through the
// end radii and the given interior knots.
func Spline(start, end, startRadius, endRadius float64, knots ...Point) Segment {
	return Segment{Start: start, End: end, StartRadius: startRadius, EndRadius: endRadius, Kind: ShapeSpline, Knots: knots}
}

// Length returns the axial extent of the segment.
func (s *Segment) Length() float64 {
	return s.End - s.Start
}

// Validate checks the segment parameters.
func (s *Segment) Validate() error {
	if s.End-s.Start <= geomTol {
		return ErrSegmentSpan
	}
	if s.StartRadius <= 0 || s.EndRadius <= 0 {
		return ErrRadius
	}
	switch s.Kind {
	case ShapeCylinder:
		if s.StartRadius != s.EndRadius {
			return ErrCylinderTaper
		}
	case ShapeCone, ShapeExponential:
		// End radii are all these need.
	case ShapeBessel:
		if s.Alpha <= 0 || s.StartRadius == s.EndRadius {
			return ErrFlare
		}
	case ShapeSpline:
		prev := s.Start
		for _, k := range s.Knots {
			if k.X <= prev+geomTol || k.X >= s.End-geomTol {
				return ErrKnots
			}
			if k.R <= 0 {
				return ErrRadius
			}
			prev = k.X
		}
	default:
		return fmt.Errorf("bore: unknown shape kind %v", s.Kind)
	}
	return nil
}

// ProfileFunc evaluates the bore radius at an axial position.
type ProfileFunc func(x float64) float64

// Profile resolves the segment into its radius function. The returned
// closure clamps its argument to the segment span.
func (s *Segment) Profile() (ProfileFunc, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	start, end := s.Start, s.End
	length := end - start
	r0, r1 := s.StartRadius, s.EndRadius

	clamp := func(x float64) float64 {
		return math.Min(end, math.Max(start, x))
	}

	switch s.Kind {
	case ShapeCylinder:
		return func(x float64) float64 { return r0 }, nil

	case ShapeCone:
		slope := (r1 - r0) / length
		return func(x float64) float64 { return r0 + slope*(clamp(x)-start) }, nil

	case ShapeExponential:
		m := math.Log(r1/r0) / length
		return func(x float64) float64 { return r0 * math.Exp(m*(clamp(x)-start)) }, nil

	case ShapeBessel:
		q := math.Pow(r1/r0, 1/s.Alpha)
		xt := (q*end - start) / (q - 1)
		b := r0 * math.Pow(math.Abs(xt-start), s.Alpha)
		alpha := s.Alpha
		return func(x float64) float64 {
			return b * math.Pow(math.Abs(xt-clamp(x)), -alpha)
		}, nil

	case ShapeSpline:
		xs := make([]float64, 0, len(s.Knots)+2)
		ys := make([]float64, 0, len(s.Knots)+2)
		xs = append(xs, start)
		ys = append(ys, r0)
		for _, k := range s.Knots {
			xs = append(xs, k.X)
			ys = append(ys, k.R)
		}
		xs = append(xs, end)
		ys = append(ys, r1)

		var nc interp.NaturalCubic
		if err := nc.Fit(xs, ys); err != nil {
			return nil, fmt.Errorf("bore: spline fit: %w", err)
		}
		return func(x float64) float64 { return nc.Predict(clamp(x)) }, nil
	}
	return nil, fmt.Errorf("bore: unknown shape kind %v", s.Kind)
}

// Hole is a side hole drilled through the instrument wall.
type Hole struct {
	Label    string
	Position float64 // along the main bore axis
	Radius   float64
	Chimney  float64 // wall thickness the hole tunnels through

	// Undercut is the optional fraise depth widening the hole where it
	// meets the main bore. Descriptive only: the 1D model sees the hole
	// through Radius and Chimney.
	Undercut float64
}

// Bore is a complete instrument geometry.
type Bore struct {
	Segments []Segment
	Holes    []Hole
}

// Input returns the axial coordinate of the blowing end.
func (b *Bore) Input() float64 {
	if len(b.Segments) == 0 {
		return 0
	}
	return b.Segments[0].Start
}

// End returns the axial coordinate of the bell.
func (b *Bore) End() float64 {
	if len(b.Segments) == 0 {
		return 0
	}
	return b.Segments[len(b.Segments)-1].End
}

// Length returns the axial extent of the main bore.
func (b *Bore) Length() float64 {
	return b.End() - b.Input()
}

// Validate checks the whole geometry: segment chain, then holes against the
// main bore. Failures come back as a *GeometryError wrapping the package
// sentinel.
func (b *Bore) Validate() error {
	if len(b.Segments) == 0 {
		return ErrNoSegments
	}
	for i := range b.Segments {
		if err := b.Segments[i].Validate(); err != nil {
			return segmentErr(i, err)
		}
		if i > 0 && math.Abs(b.Segments[i].Start-b.Segments[i-1].End) > geomTol {
			return segmentErr(i, ErrSegmentGap)
		}
	}

	seen := make(map[string]bool, len(b.Holes))
	for i := range b.Holes {
		h := &b.Holes[i]
		if h.Label == "" {
			return holeErr(i, "", ErrHoleLabel)
		}
		if seen[h.Label] {
			return holeErr(i, h.Label, ErrDuplicateLabel)
		}
		seen[h.Label] = true

		if h.Position <= b.Input()+geomTol || h.Position >= b.End()-geomTol {
			return holeErr(i, h.Label, ErrHolePosition)
		}
		main, err := b.Radius(h.Position)
		if err != nil {
			return holeErr(i, h.Label, err)
		}
		if h.Radius <= 0 || h.Radius > main {
			return holeErr(i, h.Label, ErrHoleRadius)
		}
		if h.Chimney <= 0 {
			return holeErr(i, h.Label, ErrChimney)
		}
		if h.Undercut < 0 {
			return holeErr(i, h.Label, ErrUndercut)
		}
	}
	return nil
}

// SegmentAt returns the index of the segment containing x. Positions on a
// boundary belong to the earlier segment.
func (b *Bore) SegmentAt(x float64) (int, bool) {
	for i := range b.Segments {
		if x >= b.Segments[i].Start-geomTol && x <= b.Segments[i].End+geomTol {
			return i, true
		}
	}
	return 0, false
}

// Radius evaluates the main bore radius at x.
func (b *Bore) Radius(x float64) (float64, error) {
	i, ok := b.SegmentAt(x)
	if !ok {
		return 0, fmt.Errorf("%w: x=%g", ErrOutOfRange, x)
	}
	profile, err := b.Segments[i].Profile()
	if err != nil {
		return 0, fmt.Errorf("segment %d: %w", i, err)
	}
	return profile(x), nil
}

// HoleIndex returns the index of the hole with the given label.
func (b *Bore) HoleIndex(label string) (int, bool) {
	for i := range b.Holes {
		if b.Holes[i].Label == label {
			return i, true
		}
	}
	return 0, false
}

// Clone returns an independent deep copy.
func (b *Bore) Clone() *Bore {
	out := &Bore{
		Segments: make([]Segment, len(b.Segments)),
		Holes:    make([]Hole, len(b.Holes)),
	}
	copy(out.Segments, b.Segments)
	copy(out.Holes, b.Holes)
	for i := range out.Segments {
		if knots := b.Segments[i].Knots; knots != nil {
			out.Segments[i].Knots = make([]Point, len(knots))
			copy(out.Segments[i].Knots, knots)
		}
	}
	return out
}
