// Package bore describes the geometry of a wind instrument air column: the
// main bore as a contiguous chain of axial segments, plus side holes drilled
// through the wall, plus the fingering chart that opens and closes them.
//
// All coordinates and radii are in metres; positions grow from the blowing
// end towards the bell. Radii may jump across a segment boundary, which
// models a cross-section discontinuity.
//
// # Usage
//
// Build a geometry from segment constructors, then validate it once:
//
//	b := &bore.Bore{
//	    Segments: []bore.Segment{
//	        bore.Cylinder(0, 0.30, 0.007),
//	        bore.Cone(0.30, 0.45, 0.007, 0.02),
//	    },
//	    Holes: []bore.Hole{
//	        {Label: "h1", Position: 0.20, Radius: 0.003, Chimney: 0.004},
//	    },
//	}
//	if err := b.Validate(); err != nil {
//	    ...
//	}
//
// A Bore is a plain value: Clone gives an independent deep copy, which the
// optimization engine uses for trial geometries.
package bore
