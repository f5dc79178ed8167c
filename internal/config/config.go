package config

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"bourse/internal/common"

	"gopkg.in/yaml.v3"
)

// Environment variables that override the file.
const (
	EnvLogLevel     = "BOURSE_LOG_LEVEL"
	EnvStoreBackend = "BOURSE_STORE_BACKEND"
	EnvStorePath    = "BOURSE_STORE_PATH"
)

var (
	StoreBackends = []string{"none", "csv", "sqlite", "pebble"}
	TimeModes     = []string{"periodic", "drip-fixed", "drip-jitter", "drip-poisson"}
	StepModes     = []string{"fixed", "jittered", "random"}
	LogLevels     = []string{"trace", "debug", "info", "warn", "error"}
)

var ErrInvalid = errors.New("invalid configuration")

// Config holds everything needed to run a batch of market sessions.
// Load reads it from YAML, then applies environment overrides.
type Config struct {
	Exchange Exchange `yaml:"exchange"`
	Session  Session  `yaml:"session"`
	Store    Store    `yaml:"store"`
	Logging  Logging  `yaml:"logging"`
}

type Exchange struct {
	ID        string `yaml:"id"`
	BlockSize int64  `yaml:"block_size"`
	MinPrice  int64  `yaml:"min_price"`
	MaxPrice  int64  `yaml:"max_price"`
	TakerFee  int64  `yaml:"taker_fee"`
	TapeDepth int    `yaml:"tape_depth"` // tape entries published with each snapshot
}

func (e Exchange) Bounds() common.Bounds {
	return common.Bounds{MinPrice: e.MinPrice, MaxPrice: e.MaxPrice}
}

// TraderSpec asks for Count traders of one strategy.
type TraderSpec struct {
	Type  string `yaml:"type"`
	Count int    `yaml:"count"`
}

type PriceRange struct {
	Min int64 `yaml:"min"`
	Max int64 `yaml:"max"`
}

// Schedule is one time zone of a supply or demand curve: between From and To
// customer limit prices are drawn from Ranges according to StepMode.
type Schedule struct {
	From     float64      `yaml:"from"`
	To       float64      `yaml:"to"`
	Ranges   []PriceRange `yaml:"ranges"`
	StepMode string       `yaml:"step_mode"`
}

type Session struct {
	Start       float64      `yaml:"start"`
	End         float64      `yaml:"end"`
	Trials      int          `yaml:"trials"`
	Workers     int          `yaml:"workers"`
	Seed        int64        `yaml:"seed"`
	Buyers      []TraderSpec `yaml:"buyers"`
	Sellers     []TraderSpec `yaml:"sellers"`
	Supply      []Schedule   `yaml:"supply"`
	Demand      []Schedule   `yaml:"demand"`
	Interval    float64      `yaml:"interval"`  // seconds per replenishment cycle
	TimeMode    string       `yaml:"time_mode"` // how issue times spread over the interval
	MaxQuantity int64        `yaml:"max_quantity"`
}

type Store struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

type Logging struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"` // empty disables the log file
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default is a small balanced market of giveaway and zero-intelligence
// traders on a symmetric 50..150 schedule.
func Default() Config {
	curve := func() []Schedule {
		return []Schedule{{From: 0, To: 600, Ranges: []PriceRange{{Min: 50, Max: 150}}, StepMode: "fixed"}}
	}
	traders := []TraderSpec{{Type: "GVWY", Count: 5}, {Type: "ZIC", Count: 5}}
	return Config{
		Exchange: Exchange{
			ID:        "Exch0",
			BlockSize: 300,
			MinPrice:  common.DefaultBounds.MinPrice,
			MaxPrice:  common.DefaultBounds.MaxPrice,
			TapeDepth: 5,
		},
		Session: Session{
			Start:       0,
			End:         600,
			Trials:      1,
			Workers:     1,
			Buyers:      traders,
			Sellers:     slices.Clone(traders),
			Supply:      curve(),
			Demand:      curve(),
			Interval:    30,
			TimeMode:    "periodic",
			MaxQuantity: 1,
		},
		Store: Store{Backend: "csv", Path: "output"},
		Logging: Logging{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path uses the
// defaults alone. Environment overrides are applied before validation.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func overrideWithEnv(cfg *Config) {
	if level := os.Getenv(EnvLogLevel); level != "" {
		cfg.Logging.Level = level
	}
	if backend := os.Getenv(EnvStoreBackend); backend != "" {
		cfg.Store.Backend = backend
	}
	if path := os.Getenv(EnvStorePath); path != "" {
		cfg.Store.Path = path
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate checks the configuration for values the simulator cannot run with.
func (c *Config) Validate() error {
	ex := c.Exchange
	if ex.MinPrice < 1 || ex.MaxPrice <= ex.MinPrice {
		return invalid("price range [%d, %d]", ex.MinPrice, ex.MaxPrice)
	}
	if ex.BlockSize < 1 {
		return invalid("block size %d must be positive", ex.BlockSize)
	}
	if ex.TakerFee < 0 {
		return invalid("taker fee %d is negative", ex.TakerFee)
	}

	s := c.Session
	if s.End <= s.Start {
		return invalid("session ends at %v before it starts at %v", s.End, s.Start)
	}
	if s.Trials < 1 || s.Workers < 1 {
		return invalid("need at least one trial and one worker")
	}
	if s.Interval <= 0 {
		return invalid("replenishment interval %v must be positive", s.Interval)
	}
	if !slices.Contains(TimeModes, s.TimeMode) {
		return invalid("unknown time mode %q", s.TimeMode)
	}
	if s.MaxQuantity < 1 {
		return invalid("max quantity %d must be positive", s.MaxQuantity)
	}
	if err := checkTraders("buyers", s.Buyers); err != nil {
		return err
	}
	if err := checkTraders("sellers", s.Sellers); err != nil {
		return err
	}
	if err := checkSchedules("supply", s.Supply, ex.Bounds()); err != nil {
		return err
	}
	if err := checkSchedules("demand", s.Demand, ex.Bounds()); err != nil {
		return err
	}

	if !slices.Contains(StoreBackends, c.Store.Backend) {
		return invalid("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Backend != "none" && c.Store.Path == "" {
		return invalid("store backend %s needs a path", c.Store.Backend)
	}
	if !slices.Contains(LogLevels, c.Logging.Level) {
		return invalid("unknown log level %q", c.Logging.Level)
	}
	return nil
}

func checkTraders(name string, specs []TraderSpec) error {
	total := 0
	for _, spec := range specs {
		if spec.Type == "" || spec.Count < 0 {
			return invalid("%s: bad trader spec %+v", name, spec)
		}
		total += spec.Count
	}
	if total < 1 {
		return invalid("%s: at least one trader is required", name)
	}
	return nil
}

func checkSchedules(name string, scheds []Schedule, bounds common.Bounds) error {
	if len(scheds) == 0 {
		return invalid("%s: no schedule", name)
	}
	for i, s := range scheds {
		if s.To <= s.From {
			return invalid("%s[%d]: empty time zone", name, i)
		}
		if len(s.Ranges) == 0 {
			return invalid("%s[%d]: no price ranges", name, i)
		}
		if !slices.Contains(StepModes, s.StepMode) {
			return invalid("%s[%d]: unknown step mode %q", name, i, s.StepMode)
		}
		for _, r := range s.Ranges {
			if !bounds.Contains(r.Min) || !bounds.Contains(r.Max) {
				return invalid("%s[%d]: range %d..%d outside system prices", name, i, r.Min, r.Max)
			}
		}
	}
	return nil
}
