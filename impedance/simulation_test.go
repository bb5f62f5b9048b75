package impedance

import (
	"context"
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"github.com/ArtisanClarinets/openwind/bore"
	"github.com/ArtisanClarinets/openwind/internal/testutil"
	"github.com/ArtisanClarinets/openwind/physics"
)

func openPipe() *bore.Bore {
	return &bore.Bore{Segments: []bore.Segment{bore.Cylinder(0, 0.5, 7 * bore.MM)}}
}

func fluteBore() *bore.Bore {
	return &bore.Bore{
		Segments: []bore.Segment{
			bore.Cylinder(0, 0.3, 7*bore.MM),
			bore.Cone(0.3, 0.45, 7*bore.MM, 20*bore.MM),
		},
		Holes: []bore.Hole{
			{Label: "h1", Position: 0.15, Radius: 3 * bore.MM, Chimney: 4 * bore.MM},
			{Label: "h2", Position: 0.25, Radius: 4 * bore.MM, Chimney: 3 * bore.MM},
		},
	}
}

func mustSim(t *testing.T, b *bore.Bore, opts ...Option) *Simulation {
	t.Helper()
	s, err := New(b, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func mustGrid(t *testing.T, fmin, fmax float64, count int) []float64 {
	t.Helper()
	freqs, err := Grid(fmin, fmax, count)
	if err != nil {
		t.Fatalf("Grid(%g, %g, %d): %v", fmin, fmax, count, err)
	}
	return freqs
}

func mustRun(t *testing.T, s *Simulation, freqs []float64, f bore.Fingering) *Result {
	t.Helper()
	res, err := s.RunFingering(context.Background(), freqs, f)
	if err != nil {
		t.Fatalf("RunFingering: %v", err)
	}
	return res
}

// A cylinder open at both ends resonates near the odd multiples of c/4L and
// antiresonates near the even ones, all pulled slightly flat by wall losses.
func TestOpenOpenCylinderModes(t *testing.T) {
	s := mustSim(t, openPipe(),
		WithBellRadiation(physics.RadPerfectlyOpen),
		WithElementLength(0.02),
	)
	res, err := s.Run(context.Background(), mustGrid(t, 50, 900, 1701))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	testutil.RequireFinite(t, res.Abs())

	props, err := physics.Air{Temperature: 20}.Props()
	if err != nil {
		t.Fatalf("Props: %v", err)
	}
	quarter := props.C / (4 * 0.5)

	peaks := res.Resonances()
	dips := res.Antiresonances()
	if len(peaks) < 2 || len(dips) < 1 {
		t.Fatalf("got %d resonances and %d antiresonances, want at least 2 and 1", len(peaks), len(dips))
	}
	if rel := math.Abs(peaks[0]-quarter) / quarter; rel > 0.03 {
		t.Errorf("first resonance %g Hz, lossless mode %g Hz (rel %g)", peaks[0], quarter, rel)
	}
	if peaks[0] >= quarter {
		t.Errorf("first resonance %g Hz should sit below the lossless mode %g Hz", peaks[0], quarter)
	}
	if ratio := dips[0] / peaks[0]; ratio < 1.98 || ratio > 2.03 {
		t.Errorf("antiresonance/resonance ratio %g, want about 2", ratio)
	}
	if ratio := peaks[1] / peaks[0]; ratio < 2.91 || ratio > 3.09 {
		t.Errorf("second/first resonance ratio %g, want about 3", ratio)
	}

	for i, rc := range res.Reflectance() {
		if a := cmplx.Abs(rc); a > 1+1e-9 {
			t.Fatalf("|R| = %g at %g Hz, want at most 1", a, res.Frequencies[i])
		}
	}
	if len(res.NearSingular) != 0 {
		t.Errorf("NearSingular = %v on a lossy sweep", res.NearSingular)
	}
}

// The sweep output must not depend on how many workers share the grid.
func TestSweepWorkerIndependence(t *testing.T) {
	freqs := mustGrid(t, 100, 400, 13)
	fingering := bore.Fingering{"h1": 0.5, "h2": 1}

	one := mustRun(t, mustSim(t, fluteBore(), WithElementLength(0.05), WithWorkers(1)), freqs, fingering)
	four := mustRun(t, mustSim(t, fluteBore(), WithElementLength(0.05), WithWorkers(4)), freqs, fingering)

	for i := range freqs {
		if one.Real[i] != four.Real[i] || one.Imag[i] != four.Imag[i] {
			t.Fatalf("impedance at %g Hz differs between worker counts: %v vs %v",
				freqs[i], one.At(i), four.At(i))
		}
	}
}

func TestNilFingeringClosesEveryHole(t *testing.T) {
	s := mustSim(t, fluteBore(), WithElementLength(0.05))
	freqs := mustGrid(t, 150, 450, 7)

	nilRes := mustRun(t, s, freqs, nil)
	closed := mustRun(t, s, freqs, bore.AllClosed(s.Bore()))
	for i := range freqs {
		if nilRes.Real[i] != closed.Real[i] || nilRes.Imag[i] != closed.Imag[i] {
			t.Fatalf("nil fingering differs from all-closed at %g Hz", freqs[i])
		}
	}

	open, err := s.Run(context.Background(), freqs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	differs := false
	for i := range freqs {
		if diff := cmplx.Abs(open.At(i) - closed.At(i)); diff > 1e-3*cmplx.Abs(closed.At(i)) {
			differs = true
			break
		}
	}
	if !differs {
		t.Fatal("opening every hole left the impedance unchanged")
	}
}

func TestRunCancelled(t *testing.T) {
	s := mustSim(t, openPipe(), WithElementLength(0.05))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Run(ctx, mustGrid(t, 100, 200, 3)); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestFrequencyValidation(t *testing.T) {
	s := mustSim(t, openPipe(), WithElementLength(0.05))
	cases := []struct {
		name  string
		freqs []float64
		want  error
	}{
		{"empty", nil, ErrNoFrequencies},
		{"zero start", []float64{0, 100}, ErrFrequencyOrder},
		{"negative start", []float64{-5, 100}, ErrFrequencyOrder},
		{"duplicate", []float64{100, 100}, ErrFrequencyOrder},
		{"descending", []float64{200, 100}, ErrFrequencyOrder},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.Run(context.Background(), tc.freqs); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestGridArguments(t *testing.T) {
	got, err := Grid(100, 200, 5)
	if err != nil {
		t.Fatalf("Grid: %v", err)
	}
	want := []float64{100, 125, 150, 175, 200}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Fatalf("Grid = %v, want %v", got, want)
		}
	}

	for _, bad := range [][3]float64{{0, 100, 5}, {100, 100, 5}, {100, 50, 5}, {100, 200, 1}} {
		if _, err := Grid(bad[0], bad[1], int(bad[2])); !errors.Is(err, ErrGrid) {
			t.Errorf("Grid(%g, %g, %g): err = %v, want ErrGrid", bad[0], bad[1], bad[2], err)
		}
	}
}

func TestUniformGridLayout(t *testing.T) {
	got, err := UniformGrid(2000, 4)
	if err != nil {
		t.Fatalf("UniformGrid: %v", err)
	}
	want := []float64{500, 1000, 1500, 2000}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("UniformGrid = %v, want %v", got, want)
		}
	}
	if got[0] != got[1]-got[0] {
		t.Errorf("first point %g is not the spacing %g", got[0], got[1]-got[0])
	}

	if _, err := UniformGrid(0, 4); !errors.Is(err, ErrGrid) {
		t.Errorf("UniformGrid(0, 4): err = %v, want ErrGrid", err)
	}
	if _, err := UniformGrid(100, 1); !errors.Is(err, ErrGrid) {
		t.Errorf("UniformGrid(100, 1): err = %v, want ErrGrid", err)
	}
}

func TestRunChart(t *testing.T) {
	s := mustSim(t, fluteBore(), WithElementLength(0.05))
	chart := bore.NewChart()
	chart.Set("d", bore.Fingering{"h1": 0, "h2": 0})
	chart.Set("e", bore.Fingering{"h1": 0, "h2": 1})
	chart.Set("f", bore.Fingering{"h1": 1, "h2": 1})

	freqs := mustGrid(t, 150, 600, 10)
	results, err := s.RunChart(context.Background(), freqs, chart)
	if err != nil {
		t.Fatalf("RunChart: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i, note := range chart.Notes() {
		if results[i].Note != note {
			t.Errorf("result %d has note %q, want %q", i, results[i].Note, note)
		}
	}

	differs := false
	for i := range freqs {
		if results[0].At(i) != results[2].At(i) {
			differs = true
			break
		}
	}
	if !differs {
		t.Error("all-closed and all-open notes returned identical impedances")
	}

	// A single-note run must reproduce the chart sweep bit for bit.
	single, err := s.RunNote(context.Background(), freqs, chart, "e")
	if err != nil {
		t.Fatalf("RunNote: %v", err)
	}
	if single.Note != "e" {
		t.Errorf("RunNote result note %q, want %q", single.Note, "e")
	}
	for i := range freqs {
		if single.At(i) != results[1].At(i) {
			t.Fatalf("RunNote differs from RunChart at %g Hz", freqs[i])
		}
	}
}

func TestRunChartErrors(t *testing.T) {
	s := mustSim(t, fluteBore(), WithElementLength(0.05))
	freqs := mustGrid(t, 150, 300, 4)

	if _, err := s.RunChart(context.Background(), freqs, bore.NewChart()); !errors.Is(err, ErrEmptyChart) {
		t.Errorf("empty chart: err = %v, want ErrEmptyChart", err)
	}

	chart := bore.NewChart()
	chart.Set("d", bore.Fingering{"h1": 0, "h2": 0})
	if _, err := s.RunNote(context.Background(), freqs, chart, "x"); !errors.Is(err, bore.ErrUnknownNote) {
		t.Errorf("unknown note: err = %v, want bore.ErrUnknownNote", err)
	}

	partial := bore.NewChart()
	partial.Set("d", bore.Fingering{"h1": 0})
	if _, err := s.RunChart(context.Background(), freqs, partial); !errors.Is(err, bore.ErrMissingHole) {
		t.Errorf("partial fingering: err = %v, want bore.ErrMissingHole", err)
	}

	stray := bore.NewChart()
	stray.Set("d", bore.Fingering{"h1": 0, "h2": 0, "h9": 1})
	if _, err := s.RunChart(context.Background(), freqs, stray); !errors.Is(err, bore.ErrUnknownHole) {
		t.Errorf("stray hole: err = %v, want bore.ErrUnknownHole", err)
	}
}

func TestNewErrors(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ErrNilBore) {
		t.Errorf("New(nil): err = %v, want ErrNilBore", err)
	}

	bad := &bore.Bore{Segments: []bore.Segment{bore.Cylinder(0, 0.5, -1)}}
	if _, err := New(bad); !errors.Is(err, bore.ErrRadius) {
		t.Errorf("invalid geometry: err = %v, want bore.ErrRadius", err)
	}

	if _, err := New(openPipe(), WithLosses(physics.LossKind(99))); !errors.Is(err, physics.ErrUnknownLossModel) {
		t.Errorf("bad loss kind: err = %v, want physics.ErrUnknownLossModel", err)
	}
	if _, err := New(openPipe(), WithRadiation(physics.RadKind(99))); !errors.Is(err, physics.ErrUnknownRadiation) {
		t.Errorf("bad radiation kind: err = %v, want physics.ErrUnknownRadiation", err)
	}
}

func TestOptionGuards(t *testing.T) {
	s := mustSim(t, openPipe(),
		WithTemperature(25),
		WithHumidity(0.4),
		WithWorkers(-3),
		WithOrder(0),
		WithElementLength(-1),
	)
	cfg := s.Config()
	if cfg.Temperature != 25 {
		t.Errorf("Temperature = %g, want 25", cfg.Temperature)
	}
	if cfg.Humidity != 0.4 {
		t.Errorf("Humidity = %g, want 0.4", cfg.Humidity)
	}
	if cfg.Workers != 0 {
		t.Errorf("Workers = %d, want 0 after invalid option", cfg.Workers)
	}
	if cfg.Order != 0 {
		t.Errorf("Order = %d, want 0 after invalid option", cfg.Order)
	}
	if cfg.ElementLength != 0 {
		t.Errorf("ElementLength = %g, want 0 after invalid option", cfg.ElementLength)
	}
}

func TestBoreIsCloned(t *testing.T) {
	b := openPipe()
	s := mustSim(t, b, WithElementLength(0.05))

	b.Segments[0].EndRadius = 99
	if got := s.Bore().Segments[0].EndRadius; got != 7*bore.MM {
		t.Fatalf("simulation geometry changed with the caller's bore: EndRadius = %g", got)
	}
	s.Bore().Segments[0].StartRadius = 99
	if got := s.Bore().Segments[0].StartRadius; got != 7*bore.MM {
		t.Fatalf("mutating a returned clone leaked into the simulation: StartRadius = %g", got)
	}
}

// An ideally open lossless pipe reflects the pressure pulse back inverted
// after one round trip 2L/c.
func TestReflectionImpulseRoundTrip(t *testing.T) {
	s := mustSim(t, openPipe(),
		WithLosses(physics.LossNone),
		WithBellRadiation(physics.RadPerfectlyOpen),
		WithElementLength(0.02),
	)
	freqs, err := UniformGrid(2000, 1000)
	if err != nil {
		t.Fatalf("UniformGrid: %v", err)
	}
	res, err := s.Run(context.Background(), freqs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	imp, err := res.ReflectionImpulse()
	if err != nil {
		t.Fatalf("ReflectionImpulse: %v", err)
	}
	if len(imp.Time) != 2048 || len(imp.Amplitude) != 2048 {
		t.Fatalf("got %d samples, want 2048", len(imp.Time))
	}
	testutil.RequireFinite(t, imp.Amplitude)
	wantDt := 1.0 / (2048 * 2)
	if math.Abs(imp.Dt-wantDt) > 1e-15 {
		t.Errorf("Dt = %g, want %g", imp.Dt, wantDt)
	}

	props, err := physics.Air{Temperature: 20}.Props()
	if err != nil {
		t.Fatalf("Props: %v", err)
	}
	wantReturn := 2 * 0.5 / props.C

	minI := -1
	for i := range imp.Time {
		if imp.Time[i] < 1e-3 || imp.Time[i] > 5e-3 {
			continue
		}
		if minI < 0 || imp.Amplitude[i] < imp.Amplitude[minI] {
			minI = i
		}
	}
	if minI < 0 {
		t.Fatal("no samples inside the scan window")
	}
	if imp.Amplitude[minI] >= 0 {
		t.Fatalf("bore return amplitude %g, want negative", imp.Amplitude[minI])
	}
	if diff := math.Abs(imp.Time[minI] - wantReturn); diff > 0.5e-3 {
		t.Errorf("bore return at %g ms, want near %g ms", imp.Time[minI]*1e3, wantReturn*1e3)
	}
}

func TestReflectionImpulseGridErrors(t *testing.T) {
	mk := func(freqs []float64) *Result {
		n := len(freqs)
		return &Result{
			Frequencies: freqs,
			Real:        make([]float64, n),
			Imag:        make([]float64, n),
			Zc:          1,
		}
	}
	cases := []struct {
		name  string
		freqs []float64
	}{
		{"too short", []float64{5}},
		{"uneven spacing", []float64{2, 4, 7}},
		{"offset start", []float64{4, 6, 8}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := mk(tc.freqs).ReflectionImpulse(); !errors.Is(err, ErrUniformGrid) {
				t.Fatalf("err = %v, want ErrUniformGrid", err)
			}
		})
	}
}
