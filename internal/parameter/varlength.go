package parameter

import (
	"fmt"
	"iter"
	"math"
	"math/rand/v2"
	"slices"
)

// subsetSampleFraction caps global samples relative to 2^maxLength.
const subsetSampleFraction = 0.8

// VariableLength is an unordered selection of items drawn from a bounded
// universe, such as the marked nodes of a graph. Order never matters:
// two selections holding the same items are equal.
type VariableLength struct {
	base
	universe  []int
	maxLength int
	calc      DistanceCalculator
}

// NewVariableLength selects items out of universe. Every item must be
// available in universe (respecting multiplicity) and at most maxLength items
// may be selected. A maxLength of zero means len(universe).
func NewVariableLength(selected, universe []int, maxLength int) (*VariableLength, error) {
	if len(universe) == 0 {
		return nil, fmt.Errorf("variable length array: empty universe")
	}
	if maxLength <= 0 {
		maxLength = len(universe)
	}
	if len(selected) > maxLength {
		return nil, fmt.Errorf("variable length array: %d items exceed max length %d", len(selected), maxLength)
	}
	avail := counts(universe)
	for _, v := range selected {
		if avail[v] == 0 {
			return nil, fmt.Errorf("variable length array: item %d not available in universe", v)
		}
		avail[v]--
	}
	v := &VariableLength{
		universe:  append([]int(nil), universe...),
		maxLength: maxLength,
		calc:      MagnitudeDistance{},
	}
	v.params = v.toParams(selected)
	return v, nil
}

func (v *VariableLength) Kind() Kind { return KindVariableLength }

// Universe returns the items a selection may draw from.
func (v *VariableLength) Universe() []int { return append([]int(nil), v.universe...) }

// MaxLength is the largest number of items a selection may hold.
func (v *VariableLength) MaxLength() int { return v.maxLength }

// Items returns the selected items in selection order.
func (v *VariableLength) Items() []int { return intValues(v) }

// WithDistanceCalculator returns a copy measuring distance with calc.
func (v *VariableLength) WithDistanceCalculator(calc DistanceCalculator) *VariableLength {
	c := v.with(v.base.clone())
	c.calc = calc
	return c
}

func (v *VariableLength) WithFitness(f float64) Array { return v.with(v.withFitness(f)) }

func (v *VariableLength) Copy() Array { return v.with(v.clone()) }

// with shares the immutable universe and calculator with v.
func (v *VariableLength) with(b base) *VariableLength {
	return &VariableLength{base: b, universe: v.universe, maxLength: v.maxLength, calc: v.calc}
}

func (v *VariableLength) derive(items []int) *VariableLength {
	return v.with(base{params: v.toParams(items)})
}

func (v *VariableLength) toParams(items []int) []Parameter {
	lo, hi := slices.Min(v.universe), slices.Max(v.universe)
	params := make([]Parameter, len(items))
	for i, item := range items {
		params[i] = Must(NewInteger(item, lo, hi, ""))
	}
	return params
}

func (v *VariableLength) Equal(other Array) bool { return equalArrays(v, other) }

// Key is independent of selection order.
func (v *VariableLength) Key() string {
	params := v.Params()
	slices.SortFunc(params, func(a, b Parameter) int {
		switch {
		case a.Value() < b.Value():
			return -1
		case a.Value() > b.Value():
			return 1
		}
		return 0
	})
	return v.key(KindVariableLength, params)
}

func (v *VariableLength) String() string { return v.format() }

// Distance uses the calculator set with WithDistanceCalculator.
func (v *VariableLength) Distance(other Array) (float64, error) {
	return v.calc.Distance(v, other)
}

// free returns the universe items not currently selected.
func (v *VariableLength) free() []int {
	used := counts(v.Items())
	var out []int
	for _, item := range v.universe {
		if used[item] > 0 {
			used[item]--
			continue
		}
		out = append(out, item)
	}
	return out
}

// RandomNeighbor may add or remove one item, with a probability that grows
// with r, and then swaps a few selected items for free ones.
func (v *VariableLength) RandomNeighbor(rng *rand.Rand, r float64) Array {
	items := v.Items()
	free := v.free()
	resized := false
	if rng.Float64() > 1/(1+r) {
		grow := len(items) <= 1 || rng.Float64() > 0.5
		switch {
		case grow && len(free) > 0 && len(items) < v.maxLength:
			j := rng.IntN(len(free))
			items = append(items, free[j])
			free = slices.Delete(free, j, j+1)
			resized = true
		case len(items) > 1:
			i := rng.IntN(len(items))
			free = append(free, items[i])
			items = slices.Delete(items, i, i+1)
			resized = true
		}
	}

	var moves int
	if resized {
		moves = rng.IntN(min(len(items), int(r)+1))
	} else {
		moves = 1 + rng.IntN(1+int(r))
	}
	for range moves {
		if len(items) == 0 || len(free) == 0 {
			break
		}
		i, j := rng.IntN(len(items)), rng.IntN(len(free))
		items[i], free[j] = free[j], items[i]
	}
	return v.derive(items)
}

// RandomSample includes each universe item with probability one half, keeping
// at least one and at most MaxLength items.
func (v *VariableLength) RandomSample(rng *rand.Rand) Array {
	pool := v.Universe()
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	var items []int
	for _, item := range pool {
		if len(items) == v.maxLength {
			break
		}
		if rng.Float64() < 0.5 {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		items = append(items, pool[rng.IntN(len(pool))])
	}
	return v.derive(items)
}

// GlobalSamples draws distinct random selections. The count is capped at 80%
// of 2^MaxLength.
func (v *VariableLength) GlobalSamples(rng *rand.Rand, count int64) (iter.Seq[Array], error) {
	if count < 1 {
		return nil, ErrInvalidSampleCount
	}
	space := int64(math.MaxInt64)
	if v.maxLength <= 62 {
		space = int64(1) << v.maxLength
	}
	limit := max(1, int64(subsetSampleFraction*float64(space)))
	return rejectionSamples(v, rng, min(count, limit)), nil
}

// SamplePopulationSize is driven by the universe, not the current selection.
func (v *VariableLength) SamplePopulationSize() int {
	if len(v.universe) >= 12 {
		return MaxPopulationSize
	}
	return min(MaxPopulationSize, 1<<len(v.universe))
}

func counts(items []int) map[int]int {
	m := make(map[int]int, len(items))
	for _, item := range items {
		m[item]++
	}
	return m
}
