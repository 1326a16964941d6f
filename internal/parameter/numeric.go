package parameter

import (
	"iter"
	"math"
	"math/rand/v2"
)

// DefaultNumSteps is the grid discretization hint for new Numeric arrays.
const DefaultNumSteps = 10

// Numeric is a vector of continuous or mixed-type parameters.
type Numeric struct {
	base
	numSteps int
}

// NewNumeric builds a Numeric array from params. The slice is copied.
func NewNumeric(params ...Parameter) *Numeric {
	return &Numeric{base: newBase(params), numSteps: DefaultNumSteps}
}

func (n *Numeric) Kind() Kind { return KindNumeric }

// NumSteps is the number of steps a parameter range is divided into when
// estimating gradients.
func (n *Numeric) NumSteps() int { return n.numSteps }

// WithNumSteps returns a copy whose grid and finite-difference steps use
// steps divisions of each range.
func (n *Numeric) WithNumSteps(steps int) *Numeric {
	c := n.clone()
	c.numSteps = max(1, steps)
	return c
}

func (n *Numeric) WithFitness(f float64) Array {
	return &Numeric{base: n.withFitness(f), numSteps: n.numSteps}
}

// Copy returns an equal array that shares nothing with n.
func (n *Numeric) Copy() Array { return n.clone() }

func (n *Numeric) clone() *Numeric {
	return &Numeric{base: n.base.clone(), numSteps: n.numSteps}
}

// derive returns an unevaluated Numeric holding params.
func (n *Numeric) derive(params []Parameter) *Numeric {
	return &Numeric{base: base{params: params}, numSteps: n.numSteps}
}

func (n *Numeric) Equal(other Array) bool { return equalArrays(n, other) }

func (n *Numeric) Key() string { return n.key(KindNumeric, n.params) }

func (n *Numeric) String() string { return n.format() }

// Distance is the Euclidean distance between the parameter values.
func (n *Numeric) Distance(other Array) (float64, error) {
	return EuclideanDistance{}.Distance(n, other)
}

// Add returns the element-wise sum of the values and vec, clamped to each
// parameter's bounds.
func (n *Numeric) Add(vec []float64) (*Numeric, error) {
	if len(vec) != n.Len() {
		return nil, &DimensionMismatchError{Want: n.Len(), Got: len(vec)}
	}
	params := make([]Parameter, n.Len())
	for i, p := range n.params {
		params[i], _ = p.WithValue(clamp(p.Value()+vec[i], p.min, p.max))
	}
	return n.derive(params), nil
}

// Normalized returns every value mapped to [0, 1] relative to its range.
func (n *Numeric) Normalized() []float64 {
	x := make([]float64, n.Len())
	for i, p := range n.params {
		x[i] = p.normalized()
	}
	return x
}

// FromNormalized is the inverse of Normalized. Coordinates outside [0, 1]
// are clamped.
func (n *Numeric) FromNormalized(x []float64) (*Numeric, error) {
	if len(x) != n.Len() {
		return nil, &DimensionMismatchError{Want: n.Len(), Got: len(x)}
	}
	params := make([]Parameter, n.Len())
	for i, p := range n.params {
		params[i], _ = p.WithValue(clamp(p.min+x[i]*p.Range(), p.min, p.max))
	}
	return n.derive(params), nil
}

// RandomNeighbor tweaks every parameter independently by gaussian noise of
// width r times its range.
func (n *Numeric) RandomNeighbor(rng *rand.Rand, r float64) Array {
	params := make([]Parameter, n.Len())
	for i, p := range n.params {
		params[i] = p.Tweak(rng, r)
	}
	return n.derive(params)
}

// RandomSample draws every parameter uniformly from its range.
func (n *Numeric) RandomSample(rng *rand.Rand) Array {
	params := make([]Parameter, n.Len())
	for i, p := range n.params {
		params[i] = p.Randomize(rng)
	}
	return n.derive(params)
}

// GlobalSamples enumerates a regular grid. With d dimensions every axis gets
// r = floor(n^(1/d)) points, so r^d <= n samples are produced. A single
// point sits at the center of the range; two or more span it including both
// bounds. Integer axes never get more points than they have values.
// The grid is deterministic; rng is unused.
func (n *Numeric) GlobalSamples(_ *rand.Rand, count int64) (iter.Seq[Array], error) {
	if count < 1 {
		return nil, ErrInvalidSampleCount
	}
	dims := n.Len()
	rate := gridRate(count, dims)
	radix := make([]int64, dims)
	total := int64(1)
	for i, p := range n.params {
		radix[i] = rate
		if p.integerOnly {
			radix[i] = min(rate, int64(p.Range())+1)
		}
		total = saturatingMul(total, radix[i])
	}

	return func(yield func(Array) bool) {
		for k := int64(0); k < total; k++ {
			params := make([]Parameter, dims)
			rem := k
			for i := dims - 1; i >= 0; i-- {
				idx := rem % radix[i]
				rem /= radix[i]
				params[i] = n.params[i].withStored(gridPoint(n.params[i], idx, radix[i]))
			}
			if !yield(n.derive(params)) {
				return
			}
		}
	}, nil
}

// gridRate returns the largest r with r^dims <= count.
func gridRate(count int64, dims int) int64 {
	switch {
	case dims <= 0:
		return 1
	case dims == 1:
		return count
	}
	r := max(1, int64(math.Floor(math.Pow(float64(count), 1/float64(dims)))))
	for r > 1 && !powAtMost(r, dims, count) {
		r--
	}
	for powAtMost(r+1, dims, count) {
		r++
	}
	return r
}

// powAtMost reports whether b^exp <= limit without overflowing.
func powAtMost(b int64, exp int, limit int64) bool {
	result := int64(1)
	for range exp {
		if result > limit/b {
			return false
		}
		result *= b
	}
	return result <= limit
}

func gridPoint(p Parameter, idx, rate int64) float64 {
	if rate == 1 {
		return p.min + p.Range()/2
	}
	return p.min + float64(idx)*p.Range()/float64(rate-1)
}
