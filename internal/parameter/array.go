package parameter

import (
	"iter"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
)

// MaxPopulationSize caps SamplePopulationSize for every representation.
const MaxPopulationSize = 4000

// Kind identifies the representation of an Array.
type Kind int

const (
	KindNumeric Kind = iota
	KindPermuted
	KindVariableLength
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindPermuted:
		return "permuted"
	case KindVariableLength:
		return "variable_length"
	default:
		return "unknown"
	}
}

// Array is one candidate solution: an ordered sequence of parameters plus a
// fitness value that is unset until evaluated.
//
// Arrays are immutable by convention. Every operation that changes content
// returns a new Array that shares no backing storage with the receiver.
type Array interface {
	Kind() Kind
	Len() int
	At(i int) Parameter
	Params() []Parameter
	Values() []float64

	// Fitness returns +Inf until the array has been evaluated.
	Fitness() float64
	Evaluated() bool
	WithFitness(f float64) Array

	Copy() Array
	Equal(other Array) bool
	Key() string
	Distance(other Array) (float64, error)

	RandomNeighbor(rng *rand.Rand, r float64) Array
	RandomSample(rng *rand.Rand) Array

	// GlobalSamples returns a lazy, single-use sequence of samples covering
	// the whole space. It yields at most n arrays, fewer when the space is small.
	GlobalSamples(rng *rand.Rand, n int64) (iter.Seq[Array], error)

	SamplePopulationSize() int
	String() string
}

// base holds the state shared by every representation.
type base struct {
	params    []Parameter
	fitness   float64
	evaluated bool
}

func newBase(params []Parameter) base {
	return base{params: append([]Parameter(nil), params...)}
}

func (b *base) Len() int            { return len(b.params) }
func (b *base) At(i int) Parameter  { return b.params[i] }
func (b *base) Evaluated() bool     { return b.evaluated }
func (b *base) Params() []Parameter { return append([]Parameter(nil), b.params...) }

func (b *base) Fitness() float64 {
	if !b.evaluated {
		return math.Inf(1)
	}
	return b.fitness
}

func (b *base) Values() []float64 {
	vals := make([]float64, len(b.params))
	for i, p := range b.params {
		vals[i] = p.Value()
	}
	return vals
}

func (b *base) clone() base {
	return base{
		params:    append([]Parameter(nil), b.params...),
		fitness:   b.fitness,
		evaluated: b.evaluated,
	}
}

func (b *base) withFitness(f float64) base {
	nb := b.clone()
	nb.fitness = f
	nb.evaluated = true
	return nb
}

// SamplePopulationSize grows by a factor of 2 per integer parameter and 6 per
// continuous one, capped at MaxPopulationSize.
func (b *base) SamplePopulationSize() int {
	size := 1
	for _, p := range b.params {
		if p.integerOnly {
			size *= 2
		} else {
			size *= 6
		}
		if size >= MaxPopulationSize {
			return MaxPopulationSize
		}
	}
	return size
}

func (b *base) key(kind Kind, params []Parameter) string {
	buf := make([]byte, 0, 16*len(params)+2)
	buf = strconv.AppendInt(buf, int64(kind), 10)
	buf = append(buf, ':')
	for i, p := range params {
		if i > 0 {
			buf = append(buf, ';')
		}
		buf = p.appendKey(buf)
	}
	return string(buf)
}

func (b *base) format() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, p := range b.params {
		if i > 0 {
			sb.WriteString(", ")
		}
		if p.name != "" {
			sb.WriteString(p.name)
			sb.WriteByte('=')
		}
		sb.WriteString(p.Label())
	}
	sb.WriteByte(']')
	if b.evaluated {
		sb.WriteString(" fitness=")
		sb.WriteString(strconv.FormatFloat(b.fitness, 'g', 6, 64))
	}
	return sb.String()
}

func equalArrays(a, b Array) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Kind() == b.Kind() && a.Key() == b.Key()
}

// saturatingMul multiplies non-negative values, returning math.MaxInt64 on overflow.
func saturatingMul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxInt64/b {
		return math.MaxInt64
	}
	return a * b
}
