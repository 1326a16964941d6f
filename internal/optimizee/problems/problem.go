// Package problems provides example optimization problems with known
// solutions, used for benchmarking strategies and in tests.
package problems

import (
	"fmt"
	"slices"
	"strings"

	"github.com/cwbudde/metaopt/internal/optimizee"
	"github.com/cwbudde/metaopt/internal/parameter"
)

// problem is an absolute evaluator with a known optimum of zero.
type problem struct {
	name         string
	initial      parameter.Array
	exact        parameter.Array
	fitnessRange float64
	fitness      func(parameter.Array) float64
}

func (p *problem) Name() string                              { return p.name }
func (p *problem) EvaluateByComparison() bool                { return false }
func (p *problem) EvaluateFitness(a parameter.Array) float64 { return p.fitness(a) }
func (p *problem) OptimalFitness() float64                   { return 0 }
func (p *problem) InitialGuess() parameter.Array             { return p.initial.Copy() }
func (p *problem) ExactSolution() parameter.Array            { return p.exact.Copy() }
func (p *problem) FitnessRange() float64                     { return p.fitnessRange }

func (p *problem) CompareFitness(a, b parameter.Array) float64 {
	return p.fitness(b) - p.fitness(a)
}

type family struct {
	variations []string
	build      func(variation string) *problem
}

var registry = map[string]family{
	"parabola":       {variations: parabolaVariations, build: newParabola},
	"seven_eleven":   {variations: []string{"SIMPLE"}, build: func(string) *problem { return newSevenEleven() }},
	"tsp":            {variations: tspVariations, build: newTravelingSalesman},
	"subset_sum":     {variations: subsetSumVariations, build: newSubsetSum},
	"dominating_set": {variations: dominatingSetVariations, build: newDominatingSet},
}

// UnknownProblemError is returned by Lookup for names or variations that do not exist.
type UnknownProblemError struct {
	Name      string
	Variation string
}

func (e *UnknownProblemError) Error() string {
	if e.Variation == "" {
		return fmt.Sprintf("unknown problem %q (available: %s)", e.Name, strings.Join(Names(), ", "))
	}
	return fmt.Sprintf("unknown variation %q of problem %q", e.Variation, e.Name)
}

// Lookup builds the named problem. An empty variation selects the first one.
func Lookup(name, variation string) (optimizee.Problem, error) {
	f, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, &UnknownProblemError{Name: name}
	}
	if variation == "" {
		variation = f.variations[0]
	}
	variation = strings.ToUpper(variation)
	if !slices.Contains(f.variations, variation) {
		return nil, &UnknownProblemError{Name: name, Variation: variation}
	}
	return f.build(variation), nil
}

// Names lists the registered problem families in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Variations lists the variations of a problem family.
func Variations(name string) []string {
	return slices.Clone(registry[strings.ToLower(name)].variations)
}
