package problems

import (
	"github.com/cwbudde/metaopt/internal/parameter"
)

var dominatingSetVariations = []string{"SIMPLE", "TYPICAL"}

// uncoveredPenalty weighs every node that is neither marked nor adjacent to a
// marked node.
const uncoveredPenalty = 0.4

// graph is an adjacency list indexed by node.
type graph [][]int

// uncovered counts nodes that are neither marked nor adjacent to a marked node.
func (g graph) uncovered(marked map[int]bool) int {
	total := 0
	for node, nbrs := range g {
		if marked[node] {
			continue
		}
		covered := false
		for _, n := range nbrs {
			if marked[n] {
				covered = true
				break
			}
		}
		if !covered {
			total++
		}
	}
	return total
}

type dominatingSetInstance struct {
	graph        graph
	exact        []int
	fitnessRange float64
}

var dominatingSetInstances = map[string]dominatingSetInstance{
	"SIMPLE": {
		graph:        graph{{1, 2}, {0, 2}, {0, 1}},
		exact:        []int{0},
		fitnessRange: 7,
	},
	"TYPICAL": {
		graph: graph{
			{15, 21, 25}, {2, 4, 7}, {1, 3, 5, 7}, {2, 5, 8, 9}, {1, 6, 12}, {2, 3, 8, 13},
			{4, 10, 11, 12}, {1, 2, 12, 13}, {3, 5, 9, 14}, {3, 8, 15}, {6, 11, 18}, {6, 10, 16},
			{4, 6, 7, 16, 17}, {5, 7, 14, 17}, {8, 13, 15, 17}, {0, 9, 14, 21}, {11, 12, 19},
			{12, 13, 14, 20, 21}, {10, 19, 22, 24}, {16, 18, 20}, {17, 19, 22, 23}, {0, 15, 17, 23},
			{18, 20, 23, 24}, {20, 21, 22, 25}, {18, 22, 25}, {0, 23, 24},
		},
		exact:        []int{6, 7, 8, 19, 21, 24},
		fitnessRange: 50,
	},
}

// newDominatingSet looks for the smallest set of nodes such that every node
// is marked or adjacent to a marked one.
func newDominatingSet(variation string) *problem {
	inst := dominatingSetInstances[variation]

	nodes := make([]int, len(inst.graph))
	var guess []int
	for i := range nodes {
		nodes[i] = i
		if i%3 == 0 {
			guess = append(guess, i)
		}
	}
	initial, _ := parameter.NewVariableLength(guess, nodes, 0)
	exact, _ := parameter.NewVariableLength(inst.exact, nodes, 0)

	return &problem{
		name:         "Dominating Set: " + variation,
		initial:      initial.WithDistanceCalculator(parameter.MagnitudeIgnoredDistance{}),
		exact:        exact.WithDistanceCalculator(parameter.MagnitudeIgnoredDistance{}).WithFitness(0),
		fitnessRange: inst.fitnessRange,
		fitness: func(a parameter.Array) float64 {
			marked := make(map[int]bool, a.Len())
			for _, v := range a.Values() {
				marked[int(v)] = true
			}
			score := float64(len(marked)) + uncoveredPenalty*float64(inst.graph.uncovered(marked))
			return score - float64(len(inst.exact))
		},
	}
}
