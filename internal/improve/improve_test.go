package improve

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/cwbudde/metaopt/internal/optimizee"
	"github.com/cwbudde/metaopt/internal/optimizee/problems"
	"github.com/cwbudde/metaopt/internal/parameter"
)

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed+1))
}

func parabolaAt(x, y float64) *parameter.Numeric {
	return parameter.NewNumeric(
		parameter.Must(parameter.NewDouble(x, -10, 10, "p1")),
		parameter.Must(parameter.NewDouble(y, -10, 10, "p2")),
	)
}

func TestNumericAtMinimumMakesNoProgress(t *testing.T) {
	p, _ := problems.Lookup("parabola", "PARABOLA")
	start := parabolaAt(1, 2)
	visited := parameter.NewSet()
	visited.Add(start)

	imp := Numeric(p, start, 0.7, nil, visited)
	if imp.Delta > 1e-12 {
		t.Errorf("expected no improvement at the minimum, got %g", imp.Delta)
	}
	for i, v := range imp.Params.Values() {
		if v < -10 || v > 10 {
			t.Errorf("parameter %d left its bounds: %f", i, v)
		}
	}
	if d, _ := imp.Params.Distance(start); d > 1e-9 {
		t.Errorf("candidate moved away from the minimum by %g", d)
	}
}

func TestNumericStepImproves(t *testing.T) {
	p, _ := problems.Lookup("parabola", "PARABOLA")
	start := p.InitialGuess().(*parameter.Numeric)
	before := p.EvaluateFitness(start)

	imp := Numeric(p, start, 0.7, nil, parameter.NewSet())
	if imp.Delta <= 0 {
		t.Fatalf("expected a positive improvement, got %g", imp.Delta)
	}
	if got := imp.Params.Fitness(); math.Abs(before-imp.Delta-got) > 1e-9 {
		t.Errorf("delta %g inconsistent with fitness %g -> %g", imp.Delta, before, got)
	}
	if len(imp.Gradient) != 2 {
		t.Errorf("expected a 2-dimensional gradient, got %v", imp.Gradient)
	}
	// the minimum lies below and to the left of (6.81, 7.93)
	if imp.Gradient[0] <= 0 || imp.Gradient[1] <= 0 {
		t.Errorf("unexpected gradient direction %v", imp.Gradient)
	}
}

func TestNumericStepsConverge(t *testing.T) {
	p, _ := problems.Lookup("parabola", "PARABOLA")
	var current parameter.Array = p.InitialGuess()
	visited := parameter.NewSet()
	jump := 0.7
	var last []float64
	prev := math.Inf(1)

	for range 200 {
		imp := Numeric(p, current.(*parameter.Numeric), jump, last, visited)
		if imp.Params.Fitness() > prev {
			t.Fatalf("fitness regressed from %g to %g", prev, imp.Params.Fitness())
		}
		if imp.Delta == 0 {
			break
		}
		current, jump, last, prev = imp.Params, imp.JumpSize, imp.Gradient, imp.Params.Fitness()
	}
	if current.Fitness() > 0.01 {
		t.Errorf("expected convergence near the minimum, fitness %g at %v", current.Fitness(), current)
	}
}

func TestNumericByComparison(t *testing.T) {
	p, _ := problems.Lookup("parabola", "PARABOLA")
	cmp := optimizee.ByComparison(p)
	start := p.InitialGuess().(*parameter.Numeric)

	imp := Numeric(cmp, start, 0.7, nil, parameter.NewSet())
	if imp.Delta <= 0 {
		t.Fatalf("expected improvement with a comparison evaluator, got %g", imp.Delta)
	}
	if p.EvaluateFitness(imp.Params) >= p.EvaluateFitness(start) {
		t.Error("comparison step should move towards the minimum")
	}
}

func TestAdaptJump(t *testing.T) {
	dir := []float64{1, 0}
	tests := []struct {
		name string
		last []float64
		want float64
	}{
		{"first iteration", nil, 1},
		{"aligned", []float64{5, 0}, 1.3},
		{"orthogonal", []float64{0, 2}, 0.7},
		{"in between", []float64{1, 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adaptJump(1, dir, tt.last); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("got %f, want %f", got, tt.want)
			}
		})
	}
}

func TestDiscreteImprovesTour(t *testing.T) {
	p, _ := problems.Lookup("tsp", "STANDARD")
	start := p.InitialGuess()

	imp := Discrete(p, newRand(3), start, 0.7, parameter.NewSet())
	if imp.Delta <= 0 {
		t.Fatalf("expected an improving swap, got delta %g", imp.Delta)
	}
	if imp.Params.Fitness() >= p.EvaluateFitness(start) {
		t.Errorf("fitness did not improve: %g", imp.Params.Fitness())
	}
}

func TestDiscreteGivesUpAtOptimum(t *testing.T) {
	p, _ := problems.Lookup("tsp", "SIMPLE")
	start := p.ExactSolution()

	imp := Discrete(p, newRand(4), start, 0.7, parameter.NewSet())
	if imp.Delta != 0 {
		t.Errorf("no neighbor can beat the optimum, got delta %g", imp.Delta)
	}
	if !imp.Params.Equal(start) {
		t.Errorf("expected the unchanged candidate, got %v", imp.Params)
	}
}

func TestFindDispatches(t *testing.T) {
	p, _ := problems.Lookup("subset_sum", "SIMPLE")
	imp, err := Find(p, newRand(5), p.InitialGuess(), 1, nil, parameter.NewSet())
	if err != nil {
		t.Fatal(err)
	}
	if imp.Gradient != nil {
		t.Error("discrete steps do not produce a gradient")
	}
}
