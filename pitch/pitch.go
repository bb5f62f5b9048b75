// Package pitch maps frequencies onto the equal-tempered scale: MIDI
// numbers, note names, cent deviations and nearest-note matching, with
// optional transposition for instruments whose written pitch differs from
// the sounding one.
package pitch

import (
	"errors"
	"fmt"
	"math"
)

// ErrFrequency is returned when a frequency to match is not positive.
var ErrFrequency = errors.New("pitch: frequency must be positive")

// DefaultConcertA is the reference frequency of A4 in Hz.
const DefaultConcertA = 440.0

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Tuning fixes the reference pitch and the instrument transposition.
// The zero value is concert pitch at A4 = 440 Hz.
type Tuning struct {
	// ConcertA is the sounding frequency of A4 in Hz. Zero means
	// DefaultConcertA.
	ConcertA float64

	// Transpose is the semitone offset from sounding to written pitch:
	// +2 for instruments in B♭, +9 for instruments in E♭.
	Transpose int
}

func (t Tuning) concertA() float64 {
	if t.ConcertA <= 0 {
		return DefaultConcertA
	}
	return t.ConcertA
}

// MIDIFrequency returns the sounding frequency of a MIDI note number under
// the given A4 reference.
func MIDIFrequency(midi int, concertA float64) float64 {
	if concertA <= 0 {
		concertA = DefaultConcertA
	}
	return concertA * math.Exp2(float64(midi-69)/12)
}

// Cents returns the deviation of freq from target in cents.
func Cents(freq, target float64) float64 {
	return 1200 * math.Log2(freq/target)
}

// NearestMIDI returns the MIDI number of the tempered note closest to freq.
func NearestMIDI(freq, concertA float64) int {
	if concertA <= 0 {
		concertA = DefaultConcertA
	}
	return int(math.Round(69 + 12*math.Log2(freq/concertA)))
}

// NoteName returns the scientific name of a MIDI note number, sharps only:
// 69 is "A4", 60 is "C4".
func NoteName(midi int) string {
	idx := ((midi % 12) + 12) % 12
	octave := (midi-idx)/12 - 1
	return fmt.Sprintf("%s%d", noteNames[idx], octave)
}

// Match is one frequency resolved against the tempered scale.
type Match struct {
	// Note and MIDI name the nearest written note.
	Note string
	MIDI int

	// Target is the sounding frequency of that note in Hz.
	Target float64

	// Cents is the deviation of the input from Target, positive when
	// sharp. Always within ±50 cents of the nearest note.
	Cents float64
}

// Nearest resolves one frequency against the tempered scale.
func Nearest(freq float64, t Tuning) (Match, error) {
	if freq <= 0 {
		return Match{}, fmt.Errorf("%w: %g Hz", ErrFrequency, freq)
	}
	a := t.concertA()
	written := int(math.Round(69 + 12*math.Log2(freq/a) + float64(t.Transpose)))
	target := MIDIFrequency(written-t.Transpose, a)
	return Match{
		Note:   NoteName(written),
		MIDI:   written,
		Target: target,
		Cents:  Cents(freq, target),
	}, nil
}

// MatchAll resolves every frequency against the tempered scale, preserving
// order.
func MatchAll(freqs []float64, t Tuning) ([]Match, error) {
	out := make([]Match, len(freqs))
	for i, freq := range freqs {
		m, err := Nearest(freq, t)
		if err != nil {
			return nil, err
		}
		out[i] = m
	}
	return out, nil
}
