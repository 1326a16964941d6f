package optimizee

import (
	"math"
	"sync"
	"testing"

	"github.com/cwbudde/metaopt/internal/parameter"
)

func point(x float64) parameter.Array {
	return parameter.NewNumeric(parameter.Must(parameter.NewDouble(x, -10, 10, "x")))
}

var quadratic = Func("quadratic", 0, func(a parameter.Array) float64 {
	x := a.At(0).Value()
	return x * x
})

func TestEvaluateAbsolute(t *testing.T) {
	if got := Evaluate(quadratic, point(3), nil); got != 9 {
		t.Errorf("got %f, want 9", got)
	}
}

func TestEvaluateByComparison(t *testing.T) {
	o := ByComparison(&fixedProblem{Optimizee: quadratic})
	if !o.EvaluateByComparison() {
		t.Fatal("expected comparison evaluator")
	}

	ref := point(3)
	if got := Evaluate(o, ref, nil); got != 0 {
		t.Errorf("reference against itself: got %f, want 0", got)
	}
	// lower is better: 1 is closer to the minimum than 3
	if got := Evaluate(o, point(1), ref); got != -8 {
		t.Errorf("better candidate: got %f, want -8", got)
	}

	// fitness chains through an evaluated reference
	ref = ref.WithFitness(-2)
	if got := Evaluate(o, point(1), ref); got != -10 {
		t.Errorf("chained reference: got %f, want -10", got)
	}
}

func TestIsOptimal(t *testing.T) {
	if IsOptimal(quadratic, point(0)) {
		t.Error("unevaluated candidates are never optimal")
	}
	if !IsOptimal(quadratic, point(0).WithFitness(0)) {
		t.Error("expected optimum")
	}
	if IsOptimal(ByComparison(&fixedProblem{Optimizee: quadratic}), point(0).WithFitness(-100)) {
		t.Error("comparison evaluators cannot declare an optimum")
	}
}

func TestCountingIsConcurrencySafe(t *testing.T) {
	c := NewCounting(quadratic)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				c.EvaluateFitness(point(1))
			}
		}()
	}
	wg.Wait()
	if c.Count() != 800 {
		t.Errorf("got %d evaluations, want 800", c.Count())
	}
}

func TestProblemError(t *testing.T) {
	p := &fixedProblem{Optimizee: quadratic, exact: point(0), fitnessRange: 50}
	got, err := ProblemError(p, point(5))
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got-10) > 1e-12 {
		t.Errorf("got %f, want 10", got)
	}
}

type fixedProblem struct {
	Optimizee
	exact        parameter.Array
	fitnessRange float64
}

func (p *fixedProblem) InitialGuess() parameter.Array  { return point(5) }
func (p *fixedProblem) ExactSolution() parameter.Array { return p.exact }
func (p *fixedProblem) FitnessRange() float64          { return p.fitnessRange }
