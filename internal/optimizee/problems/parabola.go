package problems

import (
	"math"

	"github.com/cwbudde/metaopt/internal/parameter"
)

// The parabola family shares its minimum of 0 at (p1, p2).
const (
	p1 = 1.0
	p2 = 2.0
)

var parabolaVariations = []string{"PARABOLA", "SINUSOIDAL", "ABS_SINUSOIDAL", "STEPPED"}

func parabola(a parameter.Array) float64 {
	x, y := a.At(0).Value(), a.At(1).Value()
	return (p1-x)*(p1-x) + (p2-y)*(p2-y)
}

func newParabola(variation string) *problem {
	fitness := parabola
	switch variation {
	case "SINUSOIDAL":
		fitness = func(a parameter.Array) float64 {
			x, y := a.At(0).Value(), a.At(1).Value()
			return parabola(a) + 0.5*math.Cos((x-p1)*(y-p2)) - 0.5
		}
	case "ABS_SINUSOIDAL":
		fitness = func(a parameter.Array) float64 {
			x, y := a.At(0).Value(), a.At(1).Value()
			return parabola(a) - 0.5*math.Abs(math.Cos((x-p1)*(y-p2))) + 0.5
		}
	case "STEPPED":
		fitness = func(a parameter.Array) float64 {
			x, y := a.At(0).Value(), a.At(1).Value()
			return parabola(a) + 0.2*math.Round(math.Abs(p1-x)*math.Abs(p2-y))
		}
	}

	return &problem{
		name: "Parabola: " + variation,
		initial: parameter.NewNumeric(
			parameter.Must(parameter.NewDouble(6.81, -10, 10, "p1")),
			parameter.Must(parameter.NewDouble(7.93, -10, 10, "p2")),
		),
		exact: parameter.NewNumeric(
			parameter.Must(parameter.NewDouble(p1, 0, 3, "p1")),
			parameter.Must(parameter.NewDouble(p2, 0, 3, "p2")),
		).WithFitness(0),
		fitnessRange: 100,
		fitness:      fitness,
	}
}
