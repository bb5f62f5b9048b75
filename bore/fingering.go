package bore

import (
	"errors"
	"fmt"
)

// Errors returned by fingering chart validation and lookup.
var (
	ErrUnknownNote = errors.New("bore: note not in fingering chart")
	ErrEmptyNote   = errors.New("bore: note name must be non-empty")
	ErrUnknownHole = errors.New("bore: fingering references unknown hole")
	ErrMissingHole = errors.New("bore: fingering must cover every hole")
	ErrOpening     = errors.New("bore: opening factor must be in [0, 1]")
)

// Fingering maps hole labels to opening factors: 0 closed, 1 fully open,
// intermediate values model partially covered holes.
type Fingering map[string]float64

// Clone returns an independent copy.
func (f Fingering) Clone() Fingering {
	out := make(Fingering, len(f))
	for label, opening := range f {
		out[label] = opening
	}
	return out
}

// AllOpen returns a fingering with every hole of b fully open.
func AllOpen(b *Bore) Fingering {
	f := make(Fingering, len(b.Holes))
	for i := range b.Holes {
		f[b.Holes[i].Label] = 1
	}
	return f
}

// AllClosed returns a fingering with every hole of b sealed.
func AllClosed(b *Bore) Fingering {
	f := make(Fingering, len(b.Holes))
	for i := range b.Holes {
		f[b.Holes[i].Label] = 0
	}
	return f
}

// Chart maps note names to fingerings, preserving declaration order.
type Chart struct {
	notes      []string
	fingerings map[string]Fingering
}

// NewChart returns an empty chart.
func NewChart() *Chart {
	return &Chart{fingerings: make(map[string]Fingering)}
}

// Set stores the fingering for a note, appending new notes in call order.
func (c *Chart) Set(note string, f Fingering) {
	if _, ok := c.fingerings[note]; !ok {
		c.notes = append(c.notes, note)
	}
	c.fingerings[note] = f.Clone()
}

// Notes returns the note names in declaration order.
func (c *Chart) Notes() []string {
	out := make([]string, len(c.notes))
	copy(out, c.notes)
	return out
}

// Fingering returns the fingering stored for a note.
func (c *Chart) Fingering(note string) (Fingering, error) {
	f, ok := c.fingerings[note]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNote, note)
	}
	return f.Clone(), nil
}

// Validate checks the chart against a geometry: every note must cover every
// hole of b exactly, with opening factors in [0, 1].
func (c *Chart) Validate(b *Bore) error {
	for _, note := range c.notes {
		if note == "" {
			return ErrEmptyNote
		}
		f := c.fingerings[note]
		for label, opening := range f {
			if _, ok := b.HoleIndex(label); !ok {
				return fmt.Errorf("note %q: hole %q: %w", note, label, ErrUnknownHole)
			}
			if opening < 0 || opening > 1 {
				return fmt.Errorf("note %q: hole %q: %w", note, label, ErrOpening)
			}
		}
		for i := range b.Holes {
			if _, ok := f[b.Holes[i].Label]; !ok {
				return fmt.Errorf("note %q: hole %q: %w", note, b.Holes[i].Label, ErrMissingHole)
			}
		}
	}
	return nil
}
