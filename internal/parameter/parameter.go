package parameter

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
)

// epsSteps divides a parameter's range into the step used by IncrementByEps.
const epsSteps = 30.0

// Direction selects which way IncrementByEps moves a value.
type Direction int

const (
	Forward  Direction = 1
	Backward Direction = -1
)

// Parameter is a single bounded decision variable.
//
// Parameters are immutable values: every mutator returns a new Parameter and
// leaves the receiver untouched, so arrays of parameters can be copied and
// shared across goroutines freely.
//
// When a Redistribution is attached, the parameter keeps an internal "stored"
// coordinate that is uniform over [Min, Max]. Random draws, tweaks and grid
// samples operate on that coordinate, and Value reports it mapped through the
// redistribution. WithValue applies the inverse mapping so that a natural
// value round-trips unchanged.
type Parameter struct {
	name           string
	stored         float64
	min            float64
	max            float64
	integerOnly    bool
	redistribution Redistribution
	labels         []string
}

// NewDouble creates a continuous parameter.
func NewDouble(value, min, max float64, name string) (Parameter, error) {
	return newParameter(value, min, max, name, false, nil)
}

// NewInteger creates an integer-only parameter.
func NewInteger(value, min, max int, name string) (Parameter, error) {
	return newParameter(float64(value), float64(min), float64(max), name, true, nil)
}

// NewBoolean creates an integer-only parameter over {0, 1}.
func NewBoolean(value bool, name string) (Parameter, error) {
	v := 0.0
	if value {
		v = 1
	}
	return newParameter(v, 0, 1, name, true, nil)
}

// NewString creates a parameter whose natural value is one of values, selected by index.
func NewString(index int, values []string, name string) (Parameter, error) {
	if len(values) == 0 {
		return Parameter{}, fmt.Errorf("string parameter %s: no values", name)
	}
	labels := append([]string(nil), values...)
	return newParameter(float64(index), 0, float64(len(values)-1), name, true, labels)
}

// Must panics if err is non-nil. It is intended for static problem definitions.
func Must(p Parameter, err error) Parameter {
	if err != nil {
		panic(err)
	}
	return p
}

func newParameter(value, min, max float64, name string, integerOnly bool, labels []string) (Parameter, error) {
	if !(min <= max) {
		return Parameter{}, fmt.Errorf("parameter %s: min %g greater than max %g", name, min, max)
	}
	p := Parameter{
		name:        name,
		min:         min,
		max:         max,
		integerOnly: integerOnly,
		labels:      labels,
	}
	return p.WithValue(value)
}

func (p Parameter) Name() string                   { return p.name }
func (p Parameter) Min() float64                   { return p.min }
func (p Parameter) Max() float64                   { return p.max }
func (p Parameter) Range() float64                 { return p.max - p.min }
func (p Parameter) IntegerOnly() bool              { return p.integerOnly }
func (p Parameter) Redistribution() Redistribution { return p.redistribution }

// Value returns the natural (externally visible) value.
func (p Parameter) Value() float64 {
	v := p.stored
	if p.redistribution != nil && p.Range() > 0 {
		x := (p.stored - p.min) / p.Range()
		v = p.min + p.Range()*p.redistribution.Value(x)
	}
	if p.integerOnly {
		v = math.Round(v)
	}
	return clamp(v, p.min, p.max)
}

// Label returns the string value of a string parameter, or the formatted
// numeric value for every other kind.
func (p Parameter) Label() string {
	if len(p.labels) > 0 {
		return p.labels[int(p.Value())]
	}
	return strconv.FormatFloat(p.Value(), 'g', -1, 64)
}

// WithValue returns a copy holding the natural value v.
// Values outside [Min, Max] produce an *OutOfBoundsError.
func (p Parameter) WithValue(v float64) (Parameter, error) {
	if !(v >= p.min && v <= p.max) {
		return p, &OutOfBoundsError{Name: p.name, Value: v, Min: p.min, Max: p.max}
	}
	if p.integerOnly {
		v = math.Round(v)
	}
	p.stored = p.inverse(v)
	return p, nil
}

// WithRedistribution returns a copy that maps its stored coordinate through r.
// The natural value is preserved.
func (p Parameter) WithRedistribution(r Redistribution) (Parameter, error) {
	v := p.Value()
	p.redistribution = r
	return p.WithValue(v)
}

// Tweak returns a copy moved by gaussian noise with standard deviation
// r * Range, clamped to the bounds. r == 0 returns p unchanged.
func (p Parameter) Tweak(rng *rand.Rand, r float64) Parameter {
	if r == 0 {
		return p
	}
	change := rng.NormFloat64() * r * p.Range()
	return p.withStored(p.stored + change)
}

// Randomize returns a copy with a value drawn uniformly across the range.
func (p Parameter) Randomize(rng *rand.Rand) Parameter {
	return p.withStored(p.min + rng.Float64()*p.Range())
}

// IncrementByEps returns a copy moved by a small step (Range/30, at least 1
// for integer parameters) in the given direction, clamped to the bounds.
func (p Parameter) IncrementByEps(dir Direction) Parameter {
	inc := p.Range() / epsSteps
	if p.integerOnly {
		inc = math.Max(1, math.Round(inc))
	}
	np, _ := p.WithValue(clamp(p.Value()+float64(dir)*inc, p.min, p.max))
	return np
}

// normalized returns the natural value mapped to [0, 1].
func (p Parameter) normalized() float64 {
	if p.Range() == 0 {
		return 0
	}
	return (p.Value() - p.min) / p.Range()
}

// withStored positions the stored coordinate, clamped to the bounds.
func (p Parameter) withStored(s float64) Parameter {
	p.stored = clamp(s, p.min, p.max)
	if p.integerOnly {
		p.stored = p.inverse(p.Value())
	}
	return p
}

func (p Parameter) inverse(v float64) float64 {
	if p.redistribution == nil || p.Range() == 0 {
		return v
	}
	y := (v - p.min) / p.Range()
	return clamp(p.min+p.Range()*p.redistribution.Inverse(y), p.min, p.max)
}

// Equal reports whether both parameters have the same natural value, bounds
// and integer constraint.
func (p Parameter) Equal(o Parameter) bool {
	return p.Value() == o.Value() && p.min == o.min && p.max == o.max && p.integerOnly == o.integerOnly
}

func (p Parameter) appendKey(b []byte) []byte {
	b = strconv.AppendFloat(b, p.Value(), 'g', -1, 64)
	b = append(b, '[')
	b = strconv.AppendFloat(b, p.min, 'g', -1, 64)
	b = append(b, ',')
	b = strconv.AppendFloat(b, p.max, 'g', -1, 64)
	if p.integerOnly {
		b = append(b, 'i')
	}
	return append(b, ']')
}

func (p Parameter) String() string {
	var sb strings.Builder
	sb.WriteString(p.name)
	sb.WriteString(" = ")
	sb.WriteString(p.Label())
	fmt.Fprintf(&sb, " [%g, %g]", p.min, p.max)
	if p.redistribution != nil {
		sb.WriteString(" redistribution=")
		sb.WriteString(p.redistribution.String())
	}
	return sb.String()
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
