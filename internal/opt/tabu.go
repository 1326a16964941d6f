package opt

import (
	"context"

	"github.com/cwbudde/metaopt/internal/optimizee"
	"github.com/cwbudde/metaopt/internal/parameter"
)

// TabuConfig configures TabuStrategy.
type TabuConfig struct {
	MaxIterations int `yaml:"max_iterations" json:"max_iterations"`

	// Neighbors is the number of candidate moves drawn per iteration.
	Neighbors int `yaml:"neighbors" json:"neighbors"`

	// Tenure is how many recently visited candidates stay forbidden.
	Tenure int `yaml:"tenure" json:"tenure"`

	Radius float64 `yaml:"radius" json:"radius"`

	Convergence ConvergenceConfig `yaml:"convergence" json:"convergence"`
}

// DefaultTabuConfig returns the tabu search settings used when none are given.
func DefaultTabuConfig() TabuConfig {
	return TabuConfig{
		MaxIterations: 500,
		Neighbors:     20,
		Tenure:        10,
		Radius:        0.1,
		Convergence: ConvergenceConfig{
			Enabled:   true,
			Patience:  50,
			Threshold: 1e-9,
		},
	}
}

// tabuList is a bounded FIFO of candidate keys.
type tabuList struct {
	tenure int
	order  []string
	keys   map[string]struct{}
}

func newTabuList(tenure int) *tabuList {
	return &tabuList{tenure: max(1, tenure), keys: make(map[string]struct{})}
}

func (t *tabuList) contains(a parameter.Array) bool {
	_, ok := t.keys[a.Key()]
	return ok
}

func (t *tabuList) push(a parameter.Array) {
	k := a.Key()
	if _, ok := t.keys[k]; ok {
		return
	}
	t.order = append(t.order, k)
	t.keys[k] = struct{}{}
	if len(t.order) > t.tenure {
		delete(t.keys, t.order[0])
		t.order = t.order[1:]
	}
}

// TabuStrategy always moves to the best of a handful of neighbors, even a
// worse one, while a short memory of recent candidates keeps it from
// cycling. A forbidden neighbor is still taken if it beats the best
// candidate found so far.
type TabuStrategy struct {
	search
}

// NewTabu creates a new tabu search strategy for o.
func NewTabu(o optimizee.Optimizee, opts ...Option) *TabuStrategy {
	return &TabuStrategy{search: newSearch(TabuSearch, o, opts)}
}

// Optimize moves to the best admissible neighbor each iteration and returns
// the best candidate visited.
func (t *TabuStrategy) Optimize(ctx context.Context, initial parameter.Array, fitnessRange float64) (*Result, error) {
	cfg := t.tabu
	current := t.start(initial)
	best := current
	tabu := newTabuList(cfg.Tenure)
	tabu.push(current)
	tracker := NewConvergenceTracker(cfg.Convergence, fitnessRange)
	tracker.Update(best.Fitness())

	for it := 0; ; it++ {
		switch {
		case t.optimal(best):
			return t.finish(best, it, ReasonOptimumReached), nil
		case it >= cfg.MaxIterations:
			return t.finish(best, it, ReasonMaxIterations), nil
		case ctx.Err() != nil:
			return t.cancelled(ctx, best, it)
		}

		var next parameter.Array
		for range max(1, cfg.Neighbors) {
			nbr := t.evaluate(current.RandomNeighbor(t.rng, cfg.Radius), current)
			if nbr.Equal(current) {
				continue
			}
			aspiration := nbr.Fitness() < best.Fitness()
			if tabu.contains(nbr) && !aspiration {
				continue
			}
			if next == nil || nbr.Fitness() < next.Fitness() {
				next = nbr
			}
		}

		if next != nil {
			t.log(it+1, cfg.Radius, next.Fitness()-current.Fitness(), next, "")
			current = next
			tabu.push(current)
			if current.Fitness() < best.Fitness() {
				best = current
				t.notify(best)
			}
		}
		if tracker.Update(best.Fitness()) {
			return t.finish(best, it+1, ReasonConverged), nil
		}
	}
}
