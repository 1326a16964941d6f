// Package improve computes single local-search steps: a gradient-guided step
// for numeric arrays and a random-neighbor hill climbing step for the
// discrete representations.
package improve

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"

	"github.com/cwbudde/metaopt/internal/optimizee"
	"github.com/cwbudde/metaopt/internal/parameter"
)

const (
	// MaxDiscreteAttempts bounds the neighbors tried by one discrete step.
	MaxDiscreteAttempts = 1000

	// maxRetries bounds how often a numeric step shrinks its jump before
	// giving up.
	maxRetries = 100

	expandFactor = 1.3
	shrinkFactor = 0.7
	alignedDot   = 0.98
	divergentDot = 0.3
)

// Improvement is the outcome of one local-search step.
type Improvement struct {
	// Params is the new candidate, or the unchanged input when no better
	// point was found.
	Params parameter.Array

	// Delta is the fitness gained. Positive means better, zero means no progress.
	Delta float64

	// JumpSize is the step size to use for the next iteration.
	JumpSize float64

	// Gradient is the estimated gradient in range-normalized coordinates.
	// It is nil for discrete representations.
	Gradient []float64
}

// Find dispatches to the step matching the array's representation.
func Find(o optimizee.Optimizee, rng *rand.Rand, params parameter.Array, jumpSize float64, lastGradient []float64, visited *parameter.Set) (Improvement, error) {
	switch params.Kind() {
	case parameter.KindNumeric:
		return Numeric(o, params.(*parameter.Numeric), jumpSize, lastGradient, visited), nil
	case parameter.KindPermuted, parameter.KindVariableLength:
		return Discrete(o, rng, params, jumpSize, visited), nil
	default:
		return Improvement{}, fmt.Errorf("improve: unsupported representation %s", params.Kind())
	}
}

// Numeric estimates the gradient by central differences and steps against
// it. The step is retried with a shrinking jump size when it lands on a worse
// or already visited point. Once a better point is found the jump size is
// adapted to how well the new gradient aligns with lastGradient.
func Numeric(o optimizee.Optimizee, params *parameter.Numeric, jumpSize float64, lastGradient []float64, visited *parameter.Set) Improvement {
	current := evaluated(o, params)
	x := params.Normalized()
	grad := gradient(o, current, params, x, jumpSize/float64(params.NumSteps()))

	norm := floats.Norm(grad, 2)
	if norm == 0 {
		return Improvement{Params: current, JumpSize: jumpSize, Gradient: grad}
	}
	dir := floats.ScaleTo(make([]float64, len(grad)), 1/norm, grad)

	jump := jumpSize
	target := make([]float64, len(x))
	for range maxRetries {
		floats.AddScaledTo(target, x, -jump, dir)
		next, _ := params.FromNormalized(target)
		if visited.Contains(next) {
			jump *= shrinkFactor
			continue
		}
		visited.Add(next)
		fitness := optimizee.Evaluate(o, next, current)
		if fitness < current.Fitness() {
			return Improvement{
				Params:   next.WithFitness(fitness),
				Delta:    current.Fitness() - fitness,
				JumpSize: adaptJump(jump, dir, lastGradient),
				Gradient: grad,
			}
		}
		jump *= shrinkFactor
	}
	return Improvement{Params: current, JumpSize: jump, Gradient: grad}
}

// gradient returns the central difference estimate of the fitness gradient
// in normalized coordinates. Axes where the perturbation rounds away (integer
// parameters) get a zero partial.
func gradient(o optimizee.Optimizee, current parameter.Array, params *parameter.Numeric, x []float64, eps float64) []float64 {
	grad := make([]float64, len(x))
	probe := make([]float64, len(x))
	for i := range x {
		copy(probe, x)
		probe[i] = x[i] + eps
		plus, _ := params.FromNormalized(probe)
		probe[i] = x[i] - eps
		minus, _ := params.FromNormalized(probe)

		h := plus.Normalized()[i] - minus.Normalized()[i]
		if h == 0 {
			continue
		}
		grad[i] = (optimizee.Evaluate(o, plus, current) - optimizee.Evaluate(o, minus, current)) / h
	}
	return grad
}

// adaptJump grows the jump when successive gradients point the same way and
// shrinks it when they diverge. The first iteration has no previous gradient.
func adaptJump(jump float64, dir, lastGradient []float64) float64 {
	if lastGradient == nil {
		return jump
	}
	lastNorm := floats.Norm(lastGradient, 2)
	if lastNorm == 0 {
		return jump
	}
	dot := floats.Dot(dir, lastGradient) / lastNorm
	switch {
	case dot > alignedDot:
		return jump * expandFactor
	case dot < divergentDot:
		return jump * shrinkFactor
	}
	return jump
}

// Discrete tries up to MaxDiscreteAttempts unvisited random neighbors at
// the current jump size and accepts the first one that improves fitness.
func Discrete(o optimizee.Optimizee, rng *rand.Rand, params parameter.Array, jumpSize float64, visited *parameter.Set) Improvement {
	current := evaluated(o, params)
	for range MaxDiscreteAttempts {
		nbr := current.RandomNeighbor(rng, jumpSize)
		if !visited.Add(nbr) {
			continue
		}
		fitness := optimizee.Evaluate(o, nbr, current)
		if delta := current.Fitness() - fitness; delta > 0 {
			return Improvement{Params: nbr.WithFitness(fitness), Delta: delta, JumpSize: jumpSize}
		}
	}
	return Improvement{Params: current, JumpSize: jumpSize}
}

func evaluated(o optimizee.Optimizee, a parameter.Array) parameter.Array {
	if a.Evaluated() {
		return a
	}
	return a.WithFitness(optimizee.Evaluate(o, a, nil))
}
