package problems

import (
	"math"

	"github.com/cwbudde/metaopt/internal/parameter"
)

// The seven-eleven puzzle: four prices in cents that add up to $7.11 and
// also multiply to $7.11.
const (
	sevenElevenSum     = 711
	sevenElevenProduct = 711_000_000
	sevenElevenMax     = 708
)

func newSevenEleven() *problem {
	prices := func(values ...int) *parameter.Numeric {
		params := make([]parameter.Parameter, len(values))
		for i, v := range values {
			params[i] = parameter.Must(parameter.NewInteger(v, 0, sevenElevenMax, "price"))
		}
		return parameter.NewNumeric(params...)
	}

	return &problem{
		name:         "Seven Eleven",
		initial:      prices(100, 200, 200, 200),
		exact:        prices(316, 125, 120, 150).WithFitness(0),
		fitnessRange: 5_000_000,
		fitness: func(a parameter.Array) float64 {
			sum, product := 0.0, 1.0
			for _, v := range a.Values() {
				sum += v
				product *= v
			}
			return math.Abs(sevenElevenSum-sum) + math.Abs(sevenElevenProduct-product)/1_000_000
		},
	}
}
