package opt

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/metaopt/internal/optimizee"
	"github.com/cwbudde/metaopt/internal/optimizee/problems"
	"github.com/cwbudde/metaopt/internal/parameter"
)

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func lookup(t *testing.T, name, variation string) optimizee.Problem {
	t.Helper()
	p, err := problems.Lookup(name, variation)
	require.NoError(t, err)
	return p
}

// recorder collects logger entries and listener notifications.
type recorder struct {
	entries  []Entry
	improved []parameter.Array
}

func (r *recorder) Log(e Entry)                            { r.entries = append(r.entries, e) }
func (r *recorder) CandidateImproved(best parameter.Array) { r.improved = append(r.improved, best) }

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want Type
	}{
		{"GENETIC_SEARCH", GeneticSearch},
		{"genetic-search", GeneticSearch},
		{" mayfly ", Mayfly},
		{"Concurrent_Genetic_Search", ConcurrentGeneticSearch},
		{"brute-force", BruteForce},
	}
	for _, tt := range tests {
		got, err := ParseType(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseType("gradient_descent")
	var unknown *UnknownTypeError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "gradient_descent", unknown.Name)
}

func TestEveryTypeIsRegistered(t *testing.T) {
	types := Types()
	assert.Len(t, types, 10)

	p := lookup(t, "parabola", "")
	for _, typ := range types {
		s, err := New(typ, p)
		require.NoError(t, err)
		assert.Equal(t, typ, s.Type())
	}

	_, err := New("NOPE", p)
	assert.Error(t, err)
}

func TestRegisterTwicePanics(t *testing.T) {
	assert.Panics(t, func() {
		Register(HillClimbing, func(o optimizee.Optimizee, opts ...Option) Strategy { return NewHillClimbing(o, opts...) })
	})
}

// Every strategy must improve on the parabola starting point and report the
// improvements it made.
func TestStrategiesImproveParabola(t *testing.T) {
	p := lookup(t, "parabola", "PARABOLA")
	initial := p.InitialGuess()
	start := p.EvaluateFitness(initial)

	for _, typ := range Types() {
		t.Run(string(typ), func(t *testing.T) {
			rec := &recorder{}
			s, err := New(typ, p, WithRand(newRand(7)), WithListener(rec), WithLogger(rec))
			require.NoError(t, err)

			res, err := s.Optimize(context.Background(), initial, p.FitnessRange())
			require.NoError(t, err)
			require.NotNil(t, res.Best)

			assert.Less(t, res.Best.Fitness(), start)
			assert.NotEmpty(t, res.Reason)
			assert.NotEmpty(t, rec.improved)
			assert.InDelta(t, p.EvaluateFitness(res.Best), res.Best.Fitness(), 1e-9)
			assert.False(t, initial.Evaluated(), "the initial guess must not be modified")
		})
	}
}

func TestStrategiesAreReproducible(t *testing.T) {
	p := lookup(t, "tsp", "STANDARD")
	for _, typ := range []Type{HillClimbing, SimulatedAnnealing, TabuSearch, StateSpace, GeneticSearch} {
		t.Run(string(typ), func(t *testing.T) {
			run := func() *Result {
				s, err := New(typ, p, WithRand(newRand(3)))
				require.NoError(t, err)
				res, err := s.Optimize(context.Background(), p.InitialGuess(), p.FitnessRange())
				require.NoError(t, err)
				return res
			}
			a, b := run(), run()
			assert.Equal(t, a.Best.Key(), b.Best.Key())
			assert.Equal(t, a.Iterations, b.Iterations)
			assert.Equal(t, a.Reason, b.Reason)
		})
	}
}

func TestStrategiesStopWhenCancelled(t *testing.T) {
	p := lookup(t, "parabola", "PARABOLA")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, typ := range Types() {
		t.Run(string(typ), func(t *testing.T) {
			s, err := New(typ, p, WithRand(newRand(1)))
			require.NoError(t, err)

			res, err := s.Optimize(ctx, p.InitialGuess(), p.FitnessRange())
			require.ErrorIs(t, err, context.Canceled)
			require.NotNil(t, res)
			assert.Equal(t, ReasonCancelled, res.Reason)
			assert.NotNil(t, res.Best)
		})
	}
}

func TestStrategiesWithComparisonEvaluator(t *testing.T) {
	p := optimizee.ByComparison(lookup(t, "parabola", "PARABOLA"))
	for _, typ := range []Type{HillClimbing, GeneticSearch, SimulatedAnnealing, TabuSearch, StateSpace} {
		t.Run(string(typ), func(t *testing.T) {
			s, err := New(typ, p, WithRand(newRand(5)))
			require.NoError(t, err)
			res, err := s.Optimize(context.Background(), p.InitialGuess(), p.FitnessRange())
			require.NoError(t, err)

			// Fitness is relative to the start, which scores zero.
			assert.Negative(t, res.Best.Fitness())
		})
	}
}

func TestSlogLoggerAcceptsEntries(t *testing.T) {
	p := lookup(t, "parabola", "")
	SlogLogger{}.Log(Entry{Strategy: HillClimbing, Candidate: p.InitialGuess()})
	MultiLogger{NopLogger{}, nil}.Log(Entry{})

	var got int
	MultiListener{ListenerFunc(func(parameter.Array) { got++ }), nil}.CandidateImproved(p.InitialGuess())
	assert.Equal(t, 1, got)
}
