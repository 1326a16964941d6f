package parameter

import (
	"fmt"
	"math"
)

// Redistribution reshapes the sampling density of a parameter. Both mappings
// operate on the unit interval and must be monotonic inverses of each other.
type Redistribution interface {
	Value(x float64) float64
	Inverse(y float64) float64
	String() string
}

// PowerRedistribution maps x to x^Exponent. Exponents above 1 concentrate
// samples near Min, exponents below 1 near Max.
type PowerRedistribution struct {
	Exponent float64
}

func (r PowerRedistribution) Value(x float64) float64 {
	return math.Pow(clamp(x, 0, 1), r.exponent())
}

func (r PowerRedistribution) Inverse(y float64) float64 {
	return math.Pow(clamp(y, 0, 1), 1/r.exponent())
}

func (r PowerRedistribution) exponent() float64 {
	if r.Exponent <= 0 {
		return 1
	}
	return r.Exponent
}

func (r PowerRedistribution) String() string {
	return fmt.Sprintf("power(%g)", r.exponent())
}

// CosineRedistribution concentrates samples near both bounds.
type CosineRedistribution struct{}

func (CosineRedistribution) Value(x float64) float64 {
	return (1 - math.Cos(math.Pi*clamp(x, 0, 1))) / 2
}

func (CosineRedistribution) Inverse(y float64) float64 {
	return math.Acos(1-2*clamp(y, 0, 1)) / math.Pi
}

func (CosineRedistribution) String() string { return "cosine" }
