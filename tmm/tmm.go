// Package tmm cascades analytic transfer matrices through hole-less bores.
//
// Each segment is sliced into short cylinders whose frequency response is
// known in closed form, giving a reference independent of the
// finite-element pipeline for geometries without tone holes. The staircase
// radius is sampled at slice midpoints and converges quadratically in the
// slice length.
package tmm

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/ArtisanClarinets/openwind/bore"
	"github.com/ArtisanClarinets/openwind/physics"
)

// Errors returned by chain construction and evaluation.
var (
	ErrHoles     = errors.New("tmm: tone holes are not supported")
	ErrSlice     = errors.New("tmm: slice length must be positive")
	ErrFrequency = errors.New("tmm: frequency must be positive")
)

// DefaultSliceLength is the staircase resolution used when the config
// leaves it zero.
const DefaultSliceLength = 1e-3

// Config selects the physical models and the staircase resolution. Nil
// models fall back to the finite-element pipeline defaults: lossless
// propagation, an unflanged opening.
type Config struct {
	Air           physics.Air
	Losses        physics.Losses
	BellRadiation physics.Radiation

	// SliceLength bounds the cylinder slice length in metres. Zero picks
	// DefaultSliceLength.
	SliceLength float64
}

// slice is one cylinder of the staircase.
type slice struct {
	length float64
	radius float64
}

// Chain is a bore resolved into cascaded cylinder two-ports. It is
// immutable after construction and safe for concurrent use.
type Chain struct {
	props   physics.AirProps
	losses  physics.Losses
	bellRad physics.Radiation

	slices     []slice
	bellRadius float64
}

// NewChain validates the geometry and slices every segment. Geometries with
// tone holes are rejected: a side branch breaks the single-line cascade.
func NewChain(g *bore.Bore, cfg Config) (*Chain, error) {
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("tmm: %w", err)
	}
	if len(g.Holes) > 0 {
		return nil, ErrHoles
	}
	props, err := cfg.Air.Props()
	if err != nil {
		return nil, fmt.Errorf("tmm: %w", err)
	}
	if cfg.SliceLength < 0 {
		return nil, ErrSlice
	}
	target := cfg.SliceLength
	if target == 0 {
		target = DefaultSliceLength
	}

	c := &Chain{props: props, losses: cfg.Losses, bellRad: cfg.BellRadiation}
	if c.losses == nil {
		c.losses, _ = physics.NewLosses(physics.LossNone)
	}
	if c.bellRad == nil {
		c.bellRad, _ = physics.NewRadiation(physics.RadUnflanged)
	}

	var profile bore.ProfileFunc
	for i := range g.Segments {
		seg := &g.Segments[i]
		profile, err = seg.Profile()
		if err != nil {
			return nil, fmt.Errorf("tmm: segment %d: %w", i, err)
		}
		n := int(math.Ceil(seg.Length()/target - 1e-9))
		if n < 1 {
			n = 1
		}
		h := seg.Length() / float64(n)
		for k := 0; k < n; k++ {
			mid := seg.Start + (float64(k)+0.5)*h
			c.slices = append(c.slices, slice{length: h, radius: profile(mid)})
		}
	}
	c.bellRadius = profile(g.End())
	return c, nil
}

// Slices returns the number of cylinders in the cascade.
func (c *Chain) Slices() int { return len(c.slices) }

// Impedance returns the input impedance at angular frequency omega. The
// cascade carries the (p, u) state from the bell termination back to the
// input, so pinned bells need no special casing.
func (c *Chain) Impedance(omega float64) (complex128, error) {
	if omega <= 0 {
		return 0, fmt.Errorf("%w: omega=%g", ErrFrequency, omega)
	}

	p, u := complex(1, 0), complex(0, 0)
	if c.bellRad.Pinned() {
		p, u = 0, 1
	} else {
		u = c.bellRad.Admittance(omega, c.bellRadius, 1, c.props)
	}

	for i := len(c.slices) - 1; i >= 0; i-- {
		s := &c.slices[i]
		zv, yt := c.losses.Coefficients(omega, s.radius, c.props)
		gamma := cmplx.Sqrt(zv * yt)
		zc := zv / gamma // branch-consistent with gamma
		g := gamma * complex(s.length, 0)
		ch, sh := cmplx.Cosh(g), cmplx.Sinh(g)
		p, u = ch*p+zc*sh*u, sh/zc*p+ch*u
	}
	return p / u, nil
}
