// Command owimpedance sweeps the input impedance of built-in instrument
// bores and reports their resonances against the tempered scale.
//
// Usage:
//
//	owimpedance [flags] [instrument ...]
//
// Without arguments it analyzes every built-in instrument.
//
// Examples:
//
//	owimpedance clarinet
//	owimpedance -note g3 clarinet
//	owimpedance -fmax 3000 -points 1200 cylinder cone
//	owimpedance -config play.ini -csv curve.csv -png curve.png clarinet
//	owimpedance -list
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	log "github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"

	"github.com/ArtisanClarinets/openwind/bore"
	"github.com/ArtisanClarinets/openwind/impedance"
	"github.com/ArtisanClarinets/openwind/physics"
	"github.com/ArtisanClarinets/openwind/pitch"
)

type instrumentEntry struct {
	name  string
	desc  string
	build func() (*bore.Bore, *bore.Chart)
}

var registry = []instrumentEntry{
	{"cylinder", "closed-open cylinder, 0.5 m, 7 mm radius", buildCylinder},
	{"cone", "conical pipe on a short staple, 0.45 m", buildCone},
	{"clarinet", "cylindrical six-hole pipe with a flaring bell", buildClarinet},
}

func buildCylinder() (*bore.Bore, *bore.Chart) {
	return &bore.Bore{Segments: []bore.Segment{bore.Cylinder(0, 0.5, 0.007)}}, nil
}

func buildCone() (*bore.Bore, *bore.Chart) {
	return &bore.Bore{Segments: []bore.Segment{
		bore.Cylinder(0, 0.02, 0.002),
		bore.Cone(0.02, 0.45, 0.002, 0.011),
	}}, nil
}

func buildClarinet() (*bore.Bore, *bore.Chart) {
	b := &bore.Bore{
		Segments: []bore.Segment{
			bore.Cylinder(0, 0.40, 0.0072),
			bore.Cone(0.40, 0.47, 0.0072, 0.012),
			bore.BesselHorn(0.47, 0.53, 0.012, 0.030, 0.7),
		},
		Holes: []bore.Hole{
			{Label: "h1", Position: 0.17, Radius: 0.0035, Chimney: 0.004},
			{Label: "h2", Position: 0.21, Radius: 0.004, Chimney: 0.004},
			{Label: "h3", Position: 0.25, Radius: 0.004, Chimney: 0.0035},
			{Label: "h4", Position: 0.29, Radius: 0.0045, Chimney: 0.0035},
			{Label: "h5", Position: 0.33, Radius: 0.005, Chimney: 0.003},
			{Label: "h6", Position: 0.37, Radius: 0.005, Chimney: 0.003},
		},
	}

	open := func(labels ...string) bore.Fingering {
		f := bore.AllClosed(b)
		for _, l := range labels {
			f[l] = 1
		}
		return f
	}
	chart := bore.NewChart()
	chart.Set("e3", open())
	chart.Set("f3", open("h6"))
	chart.Set("g3", open("h5", "h6"))
	chart.Set("a3", open("h4", "h5", "h6"))
	chart.Set("b3", open("h3", "h4", "h5", "h6"))
	chart.Set("c4", open("h2", "h3", "h4", "h5", "h6"))
	chart.Set("d4", open("h1", "h2", "h3", "h4", "h5", "h6"))
	return b, chart
}

// runConfig merges defaults, the optional ini file, and explicit flags, in
// that order of precedence.
type runConfig struct {
	fmin, fmax  float64
	points      int
	temperature float64
	humidity    float64
	losses      string
	bellRad     string
	holeRad     string
	matching    bool
	element     float64
	order       int
	perWave     float64
	workers     int
	concertA    float64
	transpose   int
}

func defaultConfig() runConfig {
	return runConfig{
		fmin:        100,
		fmax:        2000,
		points:      600,
		temperature: 20,
		losses:      "bessel",
		bellRad:     "unflanged",
		holeRad:     "unflanged",
		concertA:    440,
	}
}

func (c *runConfig) loadINI(path string) error {
	file, err := ini.Load(path)
	if err != nil {
		return err
	}

	air := file.Section("air")
	c.temperature = air.Key("temperature").MustFloat64(c.temperature)
	c.humidity = air.Key("humidity").MustFloat64(c.humidity)

	models := file.Section("models")
	c.losses = models.Key("losses").MustString(c.losses)
	c.bellRad = models.Key("bell_radiation").MustString(c.bellRad)
	c.holeRad = models.Key("hole_radiation").MustString(c.holeRad)
	c.matching = models.Key("matching_volume").MustBool(c.matching)

	mesh := file.Section("mesh")
	c.element = mesh.Key("element_length").MustFloat64(c.element)
	c.order = mesh.Key("order").MustInt(c.order)
	c.perWave = mesh.Key("points_per_wavelength").MustFloat64(c.perWave)

	sweep := file.Section("sweep")
	c.fmin = sweep.Key("fmin").MustFloat64(c.fmin)
	c.fmax = sweep.Key("fmax").MustFloat64(c.fmax)
	c.points = sweep.Key("points").MustInt(c.points)
	c.workers = sweep.Key("workers").MustInt(c.workers)

	tuning := file.Section("pitch")
	c.concertA = tuning.Key("concert_a").MustFloat64(c.concertA)
	c.transpose = tuning.Key("transpose").MustInt(c.transpose)
	return nil
}

func (c *runConfig) options() ([]impedance.Option, error) {
	loss, err := physics.ParseLossKind(c.losses)
	if err != nil {
		return nil, err
	}
	bell, err := physics.ParseRadKind(c.bellRad)
	if err != nil {
		return nil, err
	}
	hole, err := physics.ParseRadKind(c.holeRad)
	if err != nil {
		return nil, err
	}

	opts := []impedance.Option{
		impedance.WithTemperature(c.temperature),
		impedance.WithHumidity(c.humidity),
		impedance.WithLosses(loss),
		impedance.WithBellRadiation(bell),
		impedance.WithHoleRadiation(hole),
		impedance.WithMatchingVolume(c.matching),
	}
	if c.element > 0 {
		opts = append(opts, impedance.WithElementLength(c.element))
	}
	if c.order > 0 {
		opts = append(opts, impedance.WithOrder(c.order))
	}
	if c.perWave > 0 {
		opts = append(opts, impedance.WithPointsPerWavelength(c.perWave))
	}
	if c.workers > 0 {
		opts = append(opts, impedance.WithWorkers(c.workers))
	}
	return opts, nil
}

func main() {
	configPath := flag.String("config", "", "optional ini file with air/models/mesh/sweep/pitch sections")
	list := flag.Bool("list", false, "list built-in instruments")
	notes := flag.Bool("notes", false, "list the fingering chart notes of the selected instruments")
	note := flag.String("note", "", "sweep one chart note instead of the all-closed fingering")
	fmin := flag.Float64("fmin", 100, "sweep start in Hz")
	fmax := flag.Float64("fmax", 2000, "sweep end in Hz")
	points := flag.Int("points", 600, "number of sweep frequencies")
	temp := flag.Float64("temp", 20, "air temperature in °C")
	humidity := flag.Float64("humidity", 0, "relative humidity in [0, 1]")
	losses := flag.String("losses", "bessel", "loss model: none, bessel, diffusive")
	bellRad := flag.String("bell", "unflanged", "bell radiation: closed, open, unflanged, flanged, piston, anechoic")
	holeRad := flag.String("holes", "unflanged", "tone-hole radiation model")
	matching := flag.Bool("matching", false, "add hole junction matching volumes")
	element := flag.Float64("element", 0, "target element length in metres (0 = automatic)")
	order := flag.Int("order", 0, "polynomial order per element (0 = default)")
	workers := flag.Int("workers", 0, "parallel frequency workers (0 = GOMAXPROCS)")
	concertA := flag.Float64("a4", 440, "sounding frequency of A4 in Hz")
	transpose := flag.Int("transpose", 0, "written-pitch offset in semitones, +2 for B♭ instruments")
	csvPath := flag.String("csv", "", "write the swept curve as CSV (single instrument)")
	pngPath := flag.String("png", "", "write a magnitude/phase plot as PNG (single instrument)")
	verbose := flag.Bool("v", false, "verbose progress logging")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: owimpedance [flags] [instrument ...]\n\n")
		fmt.Fprintf(os.Stderr, "Sweeps input impedance and reports resonances against the tempered scale.\n")
		fmt.Fprintf(os.Stderr, "Without arguments it analyzes every built-in instrument.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  owimpedance clarinet\n")
		fmt.Fprintf(os.Stderr, "  owimpedance -note g3 clarinet\n")
		fmt.Fprintf(os.Stderr, "  owimpedance -config play.ini -csv curve.csv clarinet\n")
		fmt.Fprintf(os.Stderr, "  owimpedance -list\n")
	}
	flag.Parse()

	log.SetLevel(log.WarnLevel)
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	if *list {
		printList()
		return
	}

	cfg := defaultConfig()
	if *configPath != "" {
		if err := cfg.loadINI(*configPath); err != nil {
			fatalf("reading %s: %v", *configPath, err)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "fmin":
			cfg.fmin = *fmin
		case "fmax":
			cfg.fmax = *fmax
		case "points":
			cfg.points = *points
		case "temp":
			cfg.temperature = *temp
		case "humidity":
			cfg.humidity = *humidity
		case "losses":
			cfg.losses = *losses
		case "bell":
			cfg.bellRad = *bellRad
		case "holes":
			cfg.holeRad = *holeRad
		case "matching":
			cfg.matching = *matching
		case "element":
			cfg.element = *element
		case "order":
			cfg.order = *order
		case "workers":
			cfg.workers = *workers
		case "a4":
			cfg.concertA = *concertA
		case "transpose":
			cfg.transpose = *transpose
		}
	})

	entries := resolveEntries(flag.Args())
	if len(entries) == 0 {
		fmt.Fprintf(os.Stderr, "error: no matching instruments\n")
		os.Exit(1)
	}

	if *notes {
		printNotes(entries)
		return
	}
	if (*csvPath != "" || *pngPath != "") && len(entries) != 1 {
		fmt.Fprintf(os.Stderr, "error: -csv and -png need exactly one instrument\n")
		os.Exit(1)
	}

	opts, err := cfg.options()
	if err != nil {
		fatalf("%v", err)
	}
	if err := printAnalysis(entries, cfg, opts, *note, *csvPath, *pngPath); err != nil {
		fatalf("%v", err)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func printList() {
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	names := append([]instrumentEntry(nil), registry...)
	sort.Slice(names, func(i, j int) bool { return names[i].name < names[j].name })
	for _, e := range names {
		fmt.Fprintf(tw, "%s\t%s\n", e.name, e.desc)
	}
	_ = tw.Flush()
}

func printNotes(entries []instrumentEntry) {
	for _, e := range entries {
		_, chart := e.build()
		if chart == nil {
			fmt.Printf("%s: (no fingering chart)\n", e.name)
			continue
		}
		fmt.Printf("%s: %s\n", e.name, strings.Join(chart.Notes(), " "))
	}
}

func resolveEntries(names []string) []instrumentEntry {
	if len(names) == 0 {
		return registry
	}
	byName := make(map[string]instrumentEntry, len(registry))
	for _, e := range registry {
		byName[e.name] = e
	}
	var result []instrumentEntry
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		e, ok := byName[name]
		if !ok {
			fmt.Fprintf(os.Stderr, "warning: unknown instrument %q (use -list to see available)\n", name)
			continue
		}
		result = append(result, e)
	}
	return result
}

func printAnalysis(entries []instrumentEntry, cfg runConfig, opts []impedance.Option, note, csvPath, pngPath string) error {
	grid, err := impedance.Grid(cfg.fmin, cfg.fmax, cfg.points)
	if err != nil {
		return err
	}
	tuning := pitch.Tuning{ConcertA: cfg.concertA, Transpose: cfg.transpose}
	ctx := context.Background()

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintf(tw, "Instrument\tNote\tMode\tFreq [Hz]\t|Z|/Zc\tNearest\tCents\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(tw, "----------\t----\t----\t---------\t------\t-------\t-----\n"); err != nil {
		return err
	}

	for _, e := range entries {
		b, chart := e.build()
		sim, err := impedance.New(b, opts...)
		if err != nil {
			return fmt.Errorf("%s: %w", e.name, err)
		}

		log.WithFields(log.Fields{
			"instrument": e.name,
			"points":     len(grid),
			"fmax":       cfg.fmax,
		}).Debug("sweeping")

		var res *impedance.Result
		label := "-"
		if note != "" {
			if chart == nil {
				fmt.Fprintf(os.Stderr, "warning: %s has no fingering chart, skipping note %q\n", e.name, note)
				continue
			}
			res, err = sim.RunNote(ctx, grid, chart, note)
			label = note
		} else {
			res, err = sim.RunFingering(ctx, grid, nil)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", e.name, err)
		}
		if n := len(res.NearSingular); n > 0 {
			log.WithFields(log.Fields{"instrument": e.name, "count": n}).Warn("regularized near-singular solves")
		}

		peaks := res.Resonances()
		matches, err := pitch.MatchAll(peaks, tuning)
		if err != nil {
			return fmt.Errorf("%s: %w", e.name, err)
		}
		abs := res.Abs()
		for i, f := range peaks {
			if _, err := fmt.Fprintf(tw, "%s\t%s\t%d\t%.1f\t%.1f\t%s\t%+.1f\n",
				e.name, label, i+1, f, magNear(res, abs, f), matches[i].Note, matches[i].Cents); err != nil {
				return err
			}
		}

		if csvPath != "" {
			if err := writeCSV(res, csvPath); err != nil {
				return err
			}
		}
		if pngPath != "" {
			if err := res.SavePlot(pngPath); err != nil {
				return err
			}
		}
	}
	return tw.Flush()
}

// magNear reads the normalized magnitude at the grid point closest to f.
func magNear(res *impedance.Result, abs []float64, f float64) float64 {
	i := sort.SearchFloat64s(res.Frequencies, f)
	if i >= len(abs) {
		i = len(abs) - 1
	}
	if i > 0 && f-res.Frequencies[i-1] < res.Frequencies[i]-f {
		i--
	}
	return abs[i] / res.Zc
}

func writeCSV(res *impedance.Result, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := res.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
