// Package config holds the settings of an optimization run. Values are
// resolved in order: defaults, then a YAML or JSON file, then METAOPT_*
// environment variables. Command-line flags are applied last by the caller.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/metaopt/internal/opt"
	"github.com/cwbudde/metaopt/internal/optimizee/problems"
)

// Config is the full configuration of a run.
type Config struct {
	Problem   string `yaml:"problem" json:"problem"`
	Variation string `yaml:"variation" json:"variation"`
	Strategy  string `yaml:"strategy" json:"strategy"`

	// Seed makes a run reproducible. Zero picks a random seed.
	Seed uint64 `yaml:"seed" json:"seed"`

	// ByComparison evaluates the problem through pairwise comparison only.
	ByComparison bool `yaml:"by_comparison" json:"by_comparison"`

	// FitnessRange overrides the problem's fitness range when positive.
	FitnessRange float64 `yaml:"fitness_range" json:"fitness_range"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	GlobalSampling opt.GlobalSamplingConfig `yaml:"global_sampling" json:"global_sampling"`
	BruteForce     opt.BruteForceConfig     `yaml:"brute_force" json:"brute_force"`
	HillClimbing   opt.HillClimbingConfig   `yaml:"hill_climbing" json:"hill_climbing"`
	Genetic        opt.GeneticConfig        `yaml:"genetic" json:"genetic"`
	Annealing      opt.AnnealingConfig      `yaml:"annealing" json:"annealing"`
	Tabu           opt.TabuConfig           `yaml:"tabu" json:"tabu"`
	StateSpace     opt.StateSpaceConfig     `yaml:"state_space" json:"state_space"`
	Mayfly         opt.MayflyConfig         `yaml:"mayfly" json:"mayfly"`
	Concurrency    opt.ConcurrencyConfig    `yaml:"concurrency" json:"concurrency"`

	Trace  TraceConfig  `yaml:"trace" json:"trace"`
	Store  StoreConfig  `yaml:"store" json:"store"`
	Server ServerConfig `yaml:"server" json:"server"`
}

// TraceConfig controls the per-iteration JSONL trace of a run.
type TraceConfig struct {
	Enabled       bool `yaml:"enabled" json:"enabled"`
	IncludeValues bool `yaml:"include_values" json:"include_values"`
}

// StoreConfig selects where run records are kept.
type StoreConfig struct {
	// Driver is "fs" or "sqlite".
	Driver string `yaml:"driver" json:"driver"`

	// Path is the base directory for fs, or the database file for sqlite.
	Path string `yaml:"path" json:"path"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// Store drivers.
const (
	DriverFS     = "fs"
	DriverSQLite = "sqlite"
)

// Default returns the configuration used when nothing else is given.
func Default() Config {
	return Config{
		Problem:        "parabola",
		Strategy:       string(opt.GeneticSearch),
		LogLevel:       "info",
		GlobalSampling: opt.DefaultGlobalSamplingConfig(),
		BruteForce:     opt.DefaultBruteForceConfig(),
		HillClimbing:   opt.DefaultHillClimbingConfig(),
		Genetic:        opt.DefaultGeneticConfig(),
		Annealing:      opt.DefaultAnnealingConfig(),
		Tabu:           opt.DefaultTabuConfig(),
		StateSpace:     opt.DefaultStateSpaceConfig(),
		Mayfly:         opt.DefaultMayflyConfig(),
		Concurrency:    opt.DefaultConcurrencyConfig(),
		Store: StoreConfig{
			Driver: DriverFS,
			Path:   "./data",
		},
		Server: ServerConfig{
			Addr: "localhost:8080",
		},
	}
}

// Load resolves the configuration from defaults, the file at path (optional,
// may be empty or missing) and the environment, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	ApplyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("Config file not found, using defaults", "path", path)
			return nil
		}
		return err
	}

	// YAML is a superset of JSON, but a JSON error message is more helpful
	// for .json files.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): YAML error: %v, JSON error: %w", err, jsonErr)
		}
	}
	return nil
}

// ApplyEnv overrides cfg with METAOPT_* environment variables. Values that
// do not parse are ignored with a warning.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("METAOPT_PROBLEM"); v != "" {
		cfg.Problem = v
	}
	if v := os.Getenv("METAOPT_VARIATION"); v != "" {
		cfg.Variation = v
	}
	if v := os.Getenv("METAOPT_STRATEGY"); v != "" {
		cfg.Strategy = v
	}
	if v := os.Getenv("METAOPT_SEED"); v != "" {
		if seed, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Seed = seed
		} else {
			slog.Warn("Ignoring invalid environment value", "name", "METAOPT_SEED", "value", v)
		}
	}
	if v := os.Getenv("METAOPT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("METAOPT_MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Concurrency.MaxWorkers = n
		} else {
			slog.Warn("Ignoring invalid environment value", "name", "METAOPT_MAX_WORKERS", "value", v)
		}
	}
	if v := os.Getenv("METAOPT_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("METAOPT_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("METAOPT_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("METAOPT_TRACE_ENABLED"); v != "" {
		cfg.Trace.Enabled = v == "true" || v == "1"
	}
}

// ValidationError reports an invalid configuration field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation error: %s %s", e.Field, e.Reason)
}

// Validate checks that the configuration describes a runnable search.
func (c Config) Validate() error {
	if _, err := problems.Lookup(c.Problem, c.Variation); err != nil {
		return &ValidationError{Field: "problem", Reason: err.Error()}
	}
	if _, err := opt.ParseType(c.Strategy); err != nil {
		return &ValidationError{Field: "strategy", Reason: err.Error()}
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return &ValidationError{Field: "log_level", Reason: err.Error()}
	}
	if c.FitnessRange < 0 {
		return &ValidationError{Field: "fitness_range", Reason: "cannot be negative"}
	}

	if c.GlobalSampling.Samples < 1 {
		return &ValidationError{Field: "global_sampling.samples", Reason: "must be at least 1"}
	}
	if c.BruteForce.MaxSamples < 0 {
		return &ValidationError{Field: "brute_force.max_samples", Reason: "cannot be negative"}
	}
	if c.HillClimbing.InitialJump <= 0 || c.HillClimbing.InitialJump > 1 {
		return &ValidationError{Field: "hill_climbing.initial_jump", Reason: "must be in (0, 1]"}
	}
	if c.HillClimbing.MaxIterations < 1 {
		return &ValidationError{Field: "hill_climbing.max_iterations", Reason: "must be at least 1"}
	}
	if err := c.validateGenetic(); err != nil {
		return err
	}
	if c.Annealing.Iterations < 1 {
		return &ValidationError{Field: "annealing.iterations", Reason: "must be at least 1"}
	}
	if c.Annealing.StartTemperature <= 0 || c.Annealing.EndTemperature <= 0 || c.Annealing.EndTemperature > c.Annealing.StartTemperature {
		return &ValidationError{Field: "annealing.temperature", Reason: "must satisfy 0 < end <= start"}
	}
	if s := strings.ToLower(c.Annealing.Schedule); s != "exponential" && s != "linear" {
		return &ValidationError{Field: "annealing.schedule", Reason: "must be exponential or linear"}
	}
	if c.Tabu.MaxIterations < 1 || c.Tabu.Neighbors < 1 || c.Tabu.Tenure < 0 {
		return &ValidationError{Field: "tabu", Reason: "iterations and neighbors must be at least 1, tenure non-negative"}
	}
	if c.StateSpace.MaxExpansions < 1 || c.StateSpace.Branching < 1 {
		return &ValidationError{Field: "state_space", Reason: "expansions and branching must be at least 1"}
	}
	if c.Mayfly.MaxIterations < 1 {
		return &ValidationError{Field: "mayfly.max_iterations", Reason: "must be at least 1"}
	}
	if c.Concurrency.MaxWorkers < 0 {
		return &ValidationError{Field: "concurrency.max_workers", Reason: "cannot be negative"}
	}

	switch c.Store.Driver {
	case DriverFS, DriverSQLite:
	default:
		return &ValidationError{Field: "store.driver", Reason: fmt.Sprintf("must be %q or %q", DriverFS, DriverSQLite)}
	}
	if c.Store.Path == "" {
		return &ValidationError{Field: "store.path", Reason: "cannot be empty"}
	}
	return nil
}

func (c Config) validateGenetic() error {
	g := c.Genetic
	switch {
	case g.PopulationSize < 0:
		return &ValidationError{Field: "genetic.population_size", Reason: "cannot be negative"}
	case g.PopulationSize == 1:
		return &ValidationError{Field: "genetic.population_size", Reason: "must be at least 2"}
	case g.MaxGenerations < 1:
		return &ValidationError{Field: "genetic.max_generations", Reason: "must be at least 1"}
	case g.CullFraction < 0 || g.CullFraction >= 1:
		return &ValidationError{Field: "genetic.cull_fraction", Reason: "must be in [0, 1)"}
	case g.Shrink <= 0 || g.Shrink > 1:
		return &ValidationError{Field: "genetic.shrink", Reason: "must be in (0, 1]"}
	case g.Expand < 1:
		return &ValidationError{Field: "genetic.expand", Reason: "must be at least 1"}
	case g.Patience < 1:
		return &ValidationError{Field: "genetic.patience", Reason: "must be at least 1"}
	}
	return nil
}

// StrategyType is the parsed strategy name. It assumes Validate passed.
func (c Config) StrategyType() opt.Type {
	t, _ := opt.ParseType(c.Strategy)
	return t
}

// Options turns the per-strategy sections into strategy options.
func (c Config) Options() []opt.Option {
	return []opt.Option{
		opt.WithGlobalSamplingConfig(c.GlobalSampling),
		opt.WithBruteForceConfig(c.BruteForce),
		opt.WithHillClimbingConfig(c.HillClimbing),
		opt.WithGeneticConfig(c.Genetic),
		opt.WithAnnealingConfig(c.Annealing),
		opt.WithTabuConfig(c.Tabu),
		opt.WithStateSpaceConfig(c.StateSpace),
		opt.WithMayflyConfig(c.Mayfly),
		opt.WithConcurrencyConfig(c.Concurrency),
	}
}

// ParseLevel maps debug, info, warn and error onto slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}
