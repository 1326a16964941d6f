package problems

import (
	"github.com/cwbudde/metaopt/internal/parameter"
)

var tspVariations = []string{"SIMPLE", "STANDARD"}

type tspInstance struct {
	cost         [][]float64
	shortest     float64
	exact        []int
	fitnessRange float64
}

var tspInstances = map[string]tspInstance{
	"SIMPLE": {
		cost: [][]float64{
			{0, 3, 2, 1},
			{3, 0, 1, 2},
			{2, 1, 0, 3},
			{1, 2, 3, 0},
		},
		shortest:     6,
		exact:        []int{0, 2, 1, 3},
		fitnessRange: 9,
	},
	"STANDARD": {
		cost: [][]float64{
			{0, 54, 48, 92, 24},
			{54, 0, 32, 61, 35},
			{48, 32, 0, 45, 23},
			{92, 61, 45, 0, 67},
			{24, 35, 23, 67, 0},
		},
		shortest:     207,
		exact:        []int{2, 4, 0, 1, 3},
		fitnessRange: 1000,
	},
}

// tourLength is the cost of visiting every city in order and returning home.
func tourLength(cost [][]float64, tour []int) float64 {
	var total float64
	for i := range tour {
		total += cost[tour[i]][tour[(i+1)%len(tour)]]
	}
	return total
}

func newTravelingSalesman(variation string) *problem {
	inst := tspInstances[variation]
	identity := make([]int, len(inst.cost))
	for i := range identity {
		identity[i] = i
	}
	initial, _ := parameter.NewPermuted(identity)
	exact, _ := parameter.NewPermuted(inst.exact)

	return &problem{
		name:         "Traveling Salesman: " + variation,
		initial:      initial,
		exact:        exact.WithFitness(0),
		fitnessRange: inst.fitnessRange,
		fitness: func(a parameter.Array) float64 {
			return tourLength(inst.cost, a.(*parameter.Permuted).Order()) - inst.shortest
		},
	}
}
