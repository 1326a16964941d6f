package parameter

import (
	"fmt"
	"iter"
	"math"
	"math/rand/v2"
	"slices"
)

const (
	// permutationSampleFraction caps global samples relative to N!/2.
	permutationSampleFraction = 0.7

	// rejectionAttempts bounds how many draws rejection sampling may spend
	// per requested sample.
	rejectionAttempts = 100
)

// Permuted is an ordering of distinct integer items, such as a tour.
type Permuted struct {
	base
}

// NewPermuted builds a permutation holding order. Items must be distinct.
func NewPermuted(order []int) (*Permuted, error) {
	if len(order) == 0 {
		return &Permuted{}, nil
	}
	lo, hi := slices.Min(order), slices.Max(order)
	seen := make(map[int]struct{}, len(order))
	params := make([]Parameter, len(order))
	for i, v := range order {
		if _, dup := seen[v]; dup {
			return nil, fmt.Errorf("permutation: item %d appears more than once", v)
		}
		seen[v] = struct{}{}
		p, err := NewInteger(v, lo, hi, "")
		if err != nil {
			return nil, err
		}
		params[i] = p
	}
	return &Permuted{base: base{params: params}}, nil
}

func (p *Permuted) Kind() Kind { return KindPermuted }

func (p *Permuted) WithFitness(f float64) Array { return &Permuted{base: p.withFitness(f)} }

func (p *Permuted) Copy() Array { return &Permuted{base: p.clone()} }

func (p *Permuted) Equal(other Array) bool { return equalArrays(p, other) }

func (p *Permuted) Key() string { return p.key(KindPermuted, p.params) }

func (p *Permuted) String() string { return p.format() }

// Distance is the run-length distance, zero for rotations and reversals.
func (p *Permuted) Distance(other Array) (float64, error) {
	return RunLengthDistance{}.Distance(p, other)
}

// Order returns the items in sequence.
func (p *Permuted) Order() []int { return intValues(p) }

// Reverse returns the same items in reverse order.
func (p *Permuted) Reverse() *Permuted {
	params := p.Params()
	slices.Reverse(params)
	return &Permuted{base: base{params: params}}
}

// RandomNeighbor swaps max(1, 10*r*N/100) random pairs of positions.
func (p *Permuted) RandomNeighbor(rng *rand.Rand, r float64) Array {
	params := p.Params()
	n := len(params)
	if n <= 1 {
		return &Permuted{base: base{params: params}}
	}
	swaps := max(1, int(10*r*float64(n)/100))
	for range swaps {
		i := rng.IntN(n)
		j := rng.IntN(n - 1)
		if j >= i {
			j++
		}
		params[i], params[j] = params[j], params[i]
	}
	return &Permuted{base: base{params: params}}
}

// RandomSample returns a uniformly shuffled ordering of the same items.
func (p *Permuted) RandomSample(rng *rand.Rand) Array {
	params := p.Params()
	rng.Shuffle(len(params), func(i, j int) { params[i], params[j] = params[j], params[i] })
	return &Permuted{base: base{params: params}}
}

// GlobalSamples draws distinct random orderings. The count is capped at
// 70% of N!/2, since a tour and its reverse are equivalent.
func (p *Permuted) GlobalSamples(rng *rand.Rand, count int64) (iter.Seq[Array], error) {
	if count < 1 {
		return nil, ErrInvalidSampleCount
	}
	space := factorial(p.Len()) / 2
	limit := max(1, int64(permutationSampleFraction*float64(space)))
	return rejectionSamples(p, rng, min(count, limit)), nil
}

// rejectionSamples lazily yields up to target distinct random samples of a.
// It gives up early when the attempt budget runs out.
func rejectionSamples(a Array, rng *rand.Rand, target int64) iter.Seq[Array] {
	return func(yield func(Array) bool) {
		seen := NewSet()
		budget := saturatingMul(target, rejectionAttempts)
		var produced int64
		for attempts := int64(0); produced < target && attempts < budget; attempts++ {
			s := a.RandomSample(rng)
			if !seen.Add(s) {
				continue
			}
			produced++
			if !yield(s) {
				return
			}
		}
	}
}

// factorial returns n!, saturating at math.MaxInt64.
func factorial(n int) int64 {
	f := int64(1)
	for i := int64(2); i <= int64(n); i++ {
		f = saturatingMul(f, i)
		if f == math.MaxInt64 {
			break
		}
	}
	return f
}
