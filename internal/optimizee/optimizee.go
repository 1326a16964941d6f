// Package optimizee defines the fitness evaluators that strategies optimize.
//
// Fitness is always "lower is better". Absolute evaluators return a score
// directly; comparison evaluators only rank two candidates, and their fitness
// is expressed relative to a reference candidate (see Evaluate).
package optimizee

import (
	"fmt"
	"sync/atomic"

	"github.com/cwbudde/metaopt/internal/parameter"
)

// Optimizee scores candidate solutions.
type Optimizee interface {
	Name() string

	// EvaluateByComparison reports whether only CompareFitness is meaningful.
	EvaluateByComparison() bool

	// EvaluateFitness returns an absolute score, lower is better.
	EvaluateFitness(a parameter.Array) float64

	// CompareFitness returns a positive value when a is better than b.
	CompareFitness(a, b parameter.Array) float64

	// OptimalFitness is the best achievable absolute score. It is only
	// consulted for absolute evaluators.
	OptimalFitness() float64
}

// Problem is an Optimizee bundled with a starting point and a known answer.
type Problem interface {
	Optimizee
	InitialGuess() parameter.Array
	ExactSolution() parameter.Array
	FitnessRange() float64
}

// Evaluate scores candidate. Comparison evaluators score it against reference:
// the reference's own fitness (zero when unevaluated) minus the comparison
// result. A nil reference means candidate is itself the reference.
func Evaluate(o Optimizee, candidate, reference parameter.Array) float64 {
	if !o.EvaluateByComparison() {
		return o.EvaluateFitness(candidate)
	}
	if reference == nil {
		return 0
	}
	var base float64
	if reference.Evaluated() {
		base = reference.Fitness()
	}
	return base - o.CompareFitness(candidate, reference)
}

// IsOptimal reports whether a has reached o's optimal fitness. It is always
// false for comparison evaluators.
func IsOptimal(o Optimizee, a parameter.Array) bool {
	return !o.EvaluateByComparison() && a != nil && a.Evaluated() && a.Fitness() <= o.OptimalFitness()
}

// ProblemError is the distance from solution to the exact solution as a
// percentage of the fitness range.
func ProblemError(p Problem, solution parameter.Array) (float64, error) {
	d, err := solution.Distance(p.ExactSolution())
	if err != nil {
		return 0, fmt.Errorf("problem error for %s: %w", p.Name(), err)
	}
	return 100 * d / p.FitnessRange(), nil
}

// Counting counts fitness evaluations and comparisons. It is safe for
// concurrent use.
type Counting struct {
	Optimizee
	n atomic.Int64
}

// NewCounting wraps o with an evaluation counter.
func NewCounting(o Optimizee) *Counting {
	return &Counting{Optimizee: o}
}

func (c *Counting) EvaluateFitness(a parameter.Array) float64 {
	c.n.Add(1)
	return c.Optimizee.EvaluateFitness(a)
}

func (c *Counting) CompareFitness(a, b parameter.Array) float64 {
	c.n.Add(1)
	return c.Optimizee.CompareFitness(a, b)
}

// Count returns the number of evaluations so far.
func (c *Counting) Count() int64 { return c.n.Load() }

// byComparison hides the absolute score of a Problem.
type byComparison struct {
	Problem
}

// ByComparison turns p into a comparison-only evaluator backed by its
// absolute score.
func ByComparison(p Problem) Problem {
	return byComparison{Problem: p}
}

func (byComparison) EvaluateByComparison() bool { return true }

func (b byComparison) CompareFitness(x, y parameter.Array) float64 {
	return b.Problem.EvaluateFitness(y) - b.Problem.EvaluateFitness(x)
}

func (b byComparison) Name() string { return b.Problem.Name() + " (by comparison)" }

// Func adapts a plain function into an absolute Optimizee.
func Func(name string, optimal float64, fitness func(parameter.Array) float64) Optimizee {
	return funcOptimizee{name: name, optimal: optimal, fitness: fitness}
}

type funcOptimizee struct {
	name    string
	optimal float64
	fitness func(parameter.Array) float64
}

func (f funcOptimizee) Name() string                                { return f.name }
func (f funcOptimizee) EvaluateByComparison() bool                  { return false }
func (f funcOptimizee) EvaluateFitness(a parameter.Array) float64   { return f.fitness(a) }
func (f funcOptimizee) OptimalFitness() float64                     { return f.optimal }
func (f funcOptimizee) CompareFitness(a, b parameter.Array) float64 { return f.fitness(b) - f.fitness(a) }
