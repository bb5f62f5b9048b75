package inverse

import (
	"errors"
	"fmt"

	"github.com/ArtisanClarinets/openwind/bore"
)

// Errors returned by problem construction and evaluation.
var (
	ErrNilBore      = errors.New("inverse: nil bore")
	ErrNilProblem   = errors.New("inverse: nil problem")
	ErrNilMethod    = errors.New("inverse: nil method")
	ErrNoParameters = errors.New("inverse: at least one parameter required")
	ErrNoObjectives = errors.New("inverse: at least one objective required")
	ErrParameter    = errors.New("inverse: parameter does not address the geometry")
	ErrBounds       = errors.New("inverse: parameter bounds must satisfy min <= max")
	ErrTargets      = errors.New("inverse: objective targets are inconsistent")
	ErrResonances   = errors.New("inverse: sweep found fewer resonances than targeted")
)

// Field selects which geometric quantity a Parameter moves.
type Field int

const (
	// HolePosition moves hole Index along the main bore axis.
	HolePosition Field = iota
	// HoleRadius scales hole Index.
	HoleRadius
	// HoleChimney changes the chimney height of hole Index.
	HoleChimney
	// SegmentEndRadius moves the shared radius at the end of segment
	// Index: the segment's end radius and the next segment's start radius
	// track together, and a cylinder drags its other end to stay one.
	SegmentEndRadius
	// SegmentEndPosition moves the boundary between segment Index and its
	// successor. Hole positions are absolute and do not follow.
	SegmentEndPosition
)

// String returns the configuration name of the field.
func (f Field) String() string {
	switch f {
	case HolePosition:
		return "hole_position"
	case HoleRadius:
		return "hole_radius"
	case HoleChimney:
		return "hole_chimney"
	case SegmentEndRadius:
		return "segment_end_radius"
	case SegmentEndPosition:
		return "segment_end_position"
	}
	return fmt.Sprintf("Field(%d)", int(f))
}

// Parameter is one degree of freedom of the fit. Min and Max bound the
// value when at least one of them is non-zero; steps outside are clipped,
// never fatal.
type Parameter struct {
	Field Field
	Index int
	Min   float64
	Max   float64
}

func (p Parameter) bounded() bool {
	return p.Min != 0 || p.Max != 0
}

// clip projects v onto the parameter bounds. The second result reports
// whether clipping moved the value.
func (p Parameter) clip(v float64) (float64, bool) {
	if !p.bounded() {
		return v, false
	}
	if v < p.Min {
		return p.Min, true
	}
	if v > p.Max {
		return p.Max, true
	}
	return v, false
}

// validate checks that the parameter addresses an element of b.
func (p Parameter) validate(b *bore.Bore) error {
	if p.bounded() && p.Min > p.Max {
		return fmt.Errorf("%w: %s[%d] has [%g, %g]", ErrBounds, p.Field, p.Index, p.Min, p.Max)
	}
	switch p.Field {
	case HolePosition, HoleRadius, HoleChimney:
		if p.Index < 0 || p.Index >= len(b.Holes) {
			return fmt.Errorf("%w: %s[%d] with %d holes", ErrParameter, p.Field, p.Index, len(b.Holes))
		}
	case SegmentEndRadius, SegmentEndPosition:
		if p.Index < 0 || p.Index >= len(b.Segments) {
			return fmt.Errorf("%w: %s[%d] with %d segments", ErrParameter, p.Field, p.Index, len(b.Segments))
		}
	default:
		return fmt.Errorf("%w: unknown field %v", ErrParameter, p.Field)
	}
	return nil
}

// value reads the current setting from the geometry.
func (p Parameter) value(b *bore.Bore) float64 {
	switch p.Field {
	case HolePosition:
		return b.Holes[p.Index].Position
	case HoleRadius:
		return b.Holes[p.Index].Radius
	case HoleChimney:
		return b.Holes[p.Index].Chimney
	case SegmentEndRadius:
		return b.Segments[p.Index].EndRadius
	case SegmentEndPosition:
		return b.Segments[p.Index].End
	}
	return 0
}

// apply writes v into the geometry, propagating shared boundary values.
// The result is not validated here: trial geometries are checked as a whole
// when they are simulated.
func (p Parameter) apply(b *bore.Bore, v float64) {
	switch p.Field {
	case HolePosition:
		b.Holes[p.Index].Position = v
	case HoleRadius:
		b.Holes[p.Index].Radius = v
	case HoleChimney:
		b.Holes[p.Index].Chimney = v
	case SegmentEndRadius:
		seg := &b.Segments[p.Index]
		seg.EndRadius = v
		if seg.Kind == bore.ShapeCylinder {
			seg.StartRadius = v
		}
		if next := p.Index + 1; next < len(b.Segments) {
			b.Segments[next].StartRadius = v
			if b.Segments[next].Kind == bore.ShapeCylinder {
				b.Segments[next].EndRadius = v
			}
		}
	case SegmentEndPosition:
		b.Segments[p.Index].End = v
		if next := p.Index + 1; next < len(b.Segments) {
			b.Segments[next].Start = v
		}
	}
}
