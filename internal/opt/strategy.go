// Package opt implements the optimization strategies. Every strategy takes an
// initial candidate and an Optimizee and searches for a candidate with lower
// fitness, reporting new bests to a Listener as it goes.
package opt

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"

	"github.com/cwbudde/metaopt/internal/optimizee"
	"github.com/cwbudde/metaopt/internal/parameter"
)

var (
	// ErrPopulationTooSmall is returned when a genetic population cannot be
	// seeded with at least two distinct members.
	ErrPopulationTooSmall = errors.New("population has fewer than two distinct members")

	// ErrUnsupportedRepresentation is returned when a strategy cannot search
	// the initial candidate's representation.
	ErrUnsupportedRepresentation = errors.New("representation not supported by strategy")

	// ErrComparisonUnsupported is returned by strategies that need absolute fitness values.
	ErrComparisonUnsupported = errors.New("strategy requires an absolute fitness evaluator")
)

// Strategy searches for a candidate with better fitness than the initial one.
type Strategy interface {
	Type() Type

	// Optimize returns the best candidate found. When ctx is cancelled the
	// best candidate so far is returned together with ctx.Err().
	Optimize(ctx context.Context, initial parameter.Array, fitnessRange float64) (*Result, error)
}

// Reason explains why a search stopped.
type Reason string

const (
	ReasonOptimumReached   Reason = "optimum_reached"
	ReasonConverged        Reason = "converged"
	ReasonMaxIterations    Reason = "max_iterations"
	ReasonSamplesExhausted Reason = "samples_exhausted"
	ReasonCancelled        Reason = "cancelled"
)

// Result is the outcome of a search.
type Result struct {
	Best       parameter.Array
	Iterations int
	Reason     Reason
}

// Type enumerates the available strategies.
type Type string

const (
	GlobalSampling          Type = "GLOBAL_SAMPLING"
	GlobalHillClimbing      Type = "GLOBAL_HILL_CLIMBING"
	HillClimbing            Type = "HILL_CLIMBING"
	SimulatedAnnealing      Type = "SIMULATED_ANNEALING"
	TabuSearch              Type = "TABU_SEARCH"
	GeneticSearch           Type = "GENETIC_SEARCH"
	ConcurrentGeneticSearch Type = "CONCURRENT_GENETIC_SEARCH"
	StateSpace              Type = "STATE_SPACE"
	BruteForce              Type = "BRUTE_FORCE"
	Mayfly                  Type = "MAYFLY"
)

func (t Type) String() string { return string(t) }

// UnknownTypeError is returned for strategy names that are not registered.
type UnknownTypeError struct {
	Name string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown strategy %q", e.Name)
}

// ParseType accepts a strategy name in any case, with dashes or underscores.
func ParseType(name string) (Type, error) {
	t := Type(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "-", "_")))
	mu.RLock()
	_, ok := constructors[t]
	mu.RUnlock()
	if !ok {
		return "", &UnknownTypeError{Name: name}
	}
	return t, nil
}

// Constructor builds a strategy around an optimizee.
type Constructor func(o optimizee.Optimizee, opts ...Option) Strategy

var (
	mu           sync.RWMutex
	constructors = map[Type]Constructor{}
)

// Register makes a strategy available to New. It panics on duplicates.
func Register(t Type, c Constructor) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := constructors[t]; exists {
		panic(fmt.Sprintf("opt: strategy %s registered twice", t))
	}
	constructors[t] = c
}

// New builds the strategy registered for t.
func New(t Type, o optimizee.Optimizee, opts ...Option) (Strategy, error) {
	mu.RLock()
	c, ok := constructors[t]
	mu.RUnlock()
	if !ok {
		return nil, &UnknownTypeError{Name: string(t)}
	}
	return c(o, opts...), nil
}

// Types lists every registered strategy in sorted order.
func Types() []Type {
	mu.RLock()
	defer mu.RUnlock()
	types := make([]Type, 0, len(constructors))
	for t := range constructors {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

func init() {
	Register(GlobalSampling, func(o optimizee.Optimizee, opts ...Option) Strategy { return NewGlobalSampling(o, opts...) })
	Register(BruteForce, func(o optimizee.Optimizee, opts ...Option) Strategy { return NewBruteForce(o, opts...) })
	Register(HillClimbing, func(o optimizee.Optimizee, opts ...Option) Strategy { return NewHillClimbing(o, opts...) })
	Register(GlobalHillClimbing, func(o optimizee.Optimizee, opts ...Option) Strategy { return NewGlobalHillClimbing(o, opts...) })
	Register(GeneticSearch, func(o optimizee.Optimizee, opts ...Option) Strategy { return NewGenetic(o, opts...) })
	Register(ConcurrentGeneticSearch, func(o optimizee.Optimizee, opts ...Option) Strategy { return NewConcurrentGenetic(o, opts...) })
	Register(SimulatedAnnealing, func(o optimizee.Optimizee, opts ...Option) Strategy { return NewAnnealing(o, opts...) })
	Register(TabuSearch, func(o optimizee.Optimizee, opts ...Option) Strategy { return NewTabu(o, opts...) })
	Register(StateSpace, func(o optimizee.Optimizee, opts ...Option) Strategy { return NewStateSpace(o, opts...) })
	Register(Mayfly, func(o optimizee.Optimizee, opts ...Option) Strategy { return NewMayfly(o, opts...) })
}

// Option configures a strategy.
type Option func(*settings)

type settings struct {
	listener Listener
	logger   Logger
	rng      *rand.Rand

	globalSampling GlobalSamplingConfig
	bruteForce     BruteForceConfig
	hillClimbing   HillClimbingConfig
	genetic        GeneticConfig
	concurrency    ConcurrencyConfig
	annealing      AnnealingConfig
	tabu           TabuConfig
	stateSpace     StateSpaceConfig
	mayfly         MayflyConfig
}

func newSettings(opts []Option) settings {
	s := settings{
		logger:         NopLogger{},
		globalSampling: DefaultGlobalSamplingConfig(),
		bruteForce:     DefaultBruteForceConfig(),
		hillClimbing:   DefaultHillClimbingConfig(),
		genetic:        DefaultGeneticConfig(),
		concurrency:    DefaultConcurrencyConfig(),
		annealing:      DefaultAnnealingConfig(),
		tabu:           DefaultTabuConfig(),
		stateSpace:     DefaultStateSpaceConfig(),
		mayfly:         DefaultMayflyConfig(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return s
}

// WithListener receives every new best candidate.
func WithListener(l Listener) Option { return func(s *settings) { s.listener = l } }

// WithLogger records per-iteration progress.
func WithLogger(l Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRand seeds every random decision of the strategy. Runs with the same
// seed and inputs are reproducible.
func WithRand(rng *rand.Rand) Option { return func(s *settings) { s.rng = rng } }

// WithGlobalSamplingConfig sets the global sampling settings.
func WithGlobalSamplingConfig(c GlobalSamplingConfig) Option {
	return func(s *settings) { s.globalSampling = c }
}

// WithBruteForceConfig sets the brute force settings.
func WithBruteForceConfig(c BruteForceConfig) Option {
	return func(s *settings) { s.bruteForce = c }
}

// WithHillClimbingConfig sets the hill climbing settings.
func WithHillClimbingConfig(c HillClimbingConfig) Option {
	return func(s *settings) { s.hillClimbing = c }
}

// WithGeneticConfig sets the genetic search settings.
func WithGeneticConfig(c GeneticConfig) Option {
	return func(s *settings) { s.genetic = c }
}

// WithConcurrencyConfig bounds the workers of concurrent strategies.
func WithConcurrencyConfig(c ConcurrencyConfig) Option {
	return func(s *settings) { s.concurrency = c }
}

// WithAnnealingConfig sets the simulated annealing settings.
func WithAnnealingConfig(c AnnealingConfig) Option {
	return func(s *settings) { s.annealing = c }
}

// WithTabuConfig sets the tabu search settings.
func WithTabuConfig(c TabuConfig) Option {
	return func(s *settings) { s.tabu = c }
}

// WithStateSpaceConfig sets the state space settings.
func WithStateSpaceConfig(c StateSpaceConfig) Option {
	return func(s *settings) { s.stateSpace = c }
}

// WithMayflyConfig sets the mayfly settings.
func WithMayflyConfig(c MayflyConfig) Option {
	return func(s *settings) { s.mayfly = c }
}
