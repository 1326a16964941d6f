package opt

import (
	"container/heap"
	"context"

	"github.com/cwbudde/metaopt/internal/optimizee"
	"github.com/cwbudde/metaopt/internal/parameter"
)

// StateSpaceConfig configures StateSpaceStrategy.
type StateSpaceConfig struct {
	// MaxExpansions bounds the number of states taken off the frontier.
	MaxExpansions int `yaml:"max_expansions" json:"max_expansions"`

	// Branching is the number of neighbors generated per expanded state.
	Branching int `yaml:"branching" json:"branching"`

	Radius float64 `yaml:"radius" json:"radius"`

	Convergence ConvergenceConfig `yaml:"convergence" json:"convergence"`
}

// DefaultStateSpaceConfig returns the state space settings used when none are given.
func DefaultStateSpaceConfig() StateSpaceConfig {
	return StateSpaceConfig{
		MaxExpansions: 500,
		Branching:     8,
		Radius:        0.1,
		Convergence: ConvergenceConfig{
			Enabled:   true,
			Patience:  100,
			Threshold: 1e-9,
		},
	}
}

type state struct {
	candidate parameter.Array
	seq       int
}

// frontier is a min-heap on fitness. Ties go to the older state so the
// expansion order is deterministic.
type frontier []state

func (f frontier) Len() int { return len(f) }

func (f frontier) Less(i, j int) bool {
	fi, fj := f[i].candidate.Fitness(), f[j].candidate.Fitness()
	if fi != fj {
		return fi < fj
	}
	return f[i].seq < f[j].seq
}

func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }

func (f *frontier) Push(x any) { *f = append(*f, x.(state)) }

func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	s := old[n-1]
	*f = old[:n-1]
	return s
}

// StateSpaceStrategy runs a best-first search over the graph whose edges
// are random neighbor moves. Every state is expanded at most once.
type StateSpaceStrategy struct {
	search
}

// NewStateSpace creates a new best-first state space strategy for o.
func NewStateSpace(o optimizee.Optimizee, opts ...Option) *StateSpaceStrategy {
	return &StateSpaceStrategy{search: newSearch(StateSpace, o, opts)}
}

// Optimize expands the most promising unvisited state until the expansion
// budget is spent or the frontier is empty.
func (s *StateSpaceStrategy) Optimize(ctx context.Context, initial parameter.Array, fitnessRange float64) (*Result, error) {
	cfg := s.stateSpace
	start := s.start(initial)
	best := start
	visited := parameter.NewSet()
	visited.Add(start)
	open := &frontier{{candidate: start}}
	seq := 1
	tracker := NewConvergenceTracker(cfg.Convergence, fitnessRange)
	tracker.Update(best.Fitness())

	for it := 0; ; it++ {
		switch {
		case s.optimal(best):
			return s.finish(best, it, ReasonOptimumReached), nil
		case open.Len() == 0:
			return s.finish(best, it, ReasonSamplesExhausted), nil
		case it >= cfg.MaxExpansions:
			return s.finish(best, it, ReasonMaxIterations), nil
		case ctx.Err() != nil:
			return s.cancelled(ctx, best, it)
		}

		node := heap.Pop(open).(state).candidate
		for range max(1, cfg.Branching) {
			nbr := node.RandomNeighbor(s.rng, cfg.Radius)
			if !visited.Add(nbr) {
				continue
			}
			nbr = s.evaluate(nbr, node)
			heap.Push(open, state{candidate: nbr, seq: seq})
			seq++
			if nbr.Fitness() < best.Fitness() {
				s.log(it+1, cfg.Radius, nbr.Fitness()-best.Fitness(), nbr, "")
				best = nbr
				s.notify(best)
			}
		}
		if tracker.Update(best.Fitness()) {
			return s.finish(best, it+1, ReasonConverged), nil
		}
	}
}
