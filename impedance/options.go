package impedance

import (
	"github.com/ArtisanClarinets/openwind/physics"
)

// Config collects the physical models and the numerical policy of a
// simulation.
type Config struct {
	// Temperature in °C and relative humidity in [0, 1].
	Temperature float64
	Humidity    float64

	Losses        physics.LossKind
	BellRadiation physics.RadKind
	HoleRadiation physics.RadKind

	// MatchingVolume adds the lumped compliance of each bore/hole junction
	// wedge.
	MatchingVolume bool

	// ElementLength fixes the target element length in metres. Zero picks
	// the automatic policy driven by the sweep's highest frequency.
	ElementLength float64

	// Order is the polynomial order per element; zero means the mesher
	// default.
	Order int

	// PointsPerWavelength tunes the automatic sizing policy; zero means
	// the mesher default.
	PointsPerWavelength float64

	// Workers bounds the parallel frequency workers; zero means
	// GOMAXPROCS.
	Workers int
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig returns the standard playing condition: dry air at 20 °C,
// Zwikker-Kosten losses, unflanged openings everywhere.
func DefaultConfig() Config {
	return Config{
		Temperature:   20,
		Losses:        physics.LossBessel,
		BellRadiation: physics.RadUnflanged,
		HoleRadiation: physics.RadUnflanged,
	}
}

// ApplyOptions applies zero or more options to the default config.
func ApplyOptions(opts ...Option) Config {
	cfg := DefaultConfig()

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return cfg
}

// WithTemperature sets the air temperature in °C.
func WithTemperature(celsius float64) Option {
	return func(cfg *Config) {
		cfg.Temperature = celsius
	}
}

// WithHumidity sets the relative humidity in [0, 1].
func WithHumidity(humidity float64) Option {
	return func(cfg *Config) {
		cfg.Humidity = humidity
	}
}

// WithLosses selects the viscothermal loss model.
func WithLosses(kind physics.LossKind) Option {
	return func(cfg *Config) {
		cfg.Losses = kind
	}
}

// WithRadiation selects one radiation model for the bell and all tone
// holes.
func WithRadiation(kind physics.RadKind) Option {
	return func(cfg *Config) {
		cfg.BellRadiation = kind
		cfg.HoleRadiation = kind
	}
}

// WithBellRadiation selects the radiation model of the main bell.
func WithBellRadiation(kind physics.RadKind) Option {
	return func(cfg *Config) {
		cfg.BellRadiation = kind
	}
}

// WithHoleRadiation selects the radiation model of open tone holes.
func WithHoleRadiation(kind physics.RadKind) Option {
	return func(cfg *Config) {
		cfg.HoleRadiation = kind
	}
}

// WithMatchingVolume toggles the lumped junction compliance of tone holes.
func WithMatchingVolume(on bool) Option {
	return func(cfg *Config) {
		cfg.MatchingVolume = on
	}
}

// WithElementLength fixes the target element length in metres.
func WithElementLength(metres float64) Option {
	return func(cfg *Config) {
		if metres > 0 {
			cfg.ElementLength = metres
		}
	}
}

// WithOrder sets the polynomial order per element.
func WithOrder(order int) Option {
	return func(cfg *Config) {
		if order > 0 {
			cfg.Order = order
		}
	}
}

// WithPointsPerWavelength tunes the automatic element sizing.
func WithPointsPerWavelength(points float64) Option {
	return func(cfg *Config) {
		if points > 0 {
			cfg.PointsPerWavelength = points
		}
	}
}

// WithWorkers bounds the number of parallel frequency workers.
func WithWorkers(workers int) Option {
	return func(cfg *Config) {
		if workers > 0 {
			cfg.Workers = workers
		}
	}
}
