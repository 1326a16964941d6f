package problems

import (
	"math"

	"github.com/cwbudde/metaopt/internal/parameter"
)

var subsetSumVariations = []string{"SIMPLE", "TYPICAL", "NO_SOLUTION"}

type subsetSumInstance struct {
	numbers      []int
	exact        []int
	fitnessRange float64
}

var subsetSumInstances = map[string]subsetSumInstance{
	"SIMPLE": {
		numbers:      []int{-7, -3, -2, 5, 8},
		exact:        []int{-3, -2, 5},
		fitnessRange: 12,
	},
	"TYPICAL": {
		numbers:      []int{-7, -33, -21, 5, 83, -29, -78, 213, 123, -34, -37, -41, 91, -8, -17},
		exact:        []int{-33, -21, 5, -29, 123, -37, -8},
		fitnessRange: 210,
	},
	"NO_SOLUTION": {
		numbers:      []int{-7, -33, -21, 5, -83, -29, -78, -113, -23, -34, -37, -41, -91, -9, -17},
		exact:        []int{-7},
		fitnessRange: 200,
	},
}

// newSubsetSum looks for a non-empty subset of numbers that sums to zero.
func newSubsetSum(variation string) *problem {
	inst := subsetSumInstances[variation]

	var guess []int
	for i := 0; i < len(inst.numbers); i += 3 {
		guess = append(guess, inst.numbers[i])
	}
	initial, _ := parameter.NewVariableLength(guess, inst.numbers, 0)
	exact, _ := parameter.NewVariableLength(inst.exact, inst.numbers, 0)

	worst := 0.0
	for _, n := range inst.numbers {
		worst += math.Abs(float64(n))
	}

	return &problem{
		name:         "Subset Sum: " + variation,
		initial:      initial,
		exact:        exact.WithFitness(0),
		fitnessRange: inst.fitnessRange,
		fitness: func(a parameter.Array) float64 {
			if a.Len() == 0 {
				return worst
			}
			var sum float64
			for _, v := range a.Values() {
				sum += v
			}
			return math.Abs(sum)
		},
	}
}
