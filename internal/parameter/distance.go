package parameter

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// DistanceCalculator measures how far apart two candidates of the same
// representation are. Zero means equivalent.
type DistanceCalculator interface {
	Distance(a, b Array) (float64, error)
}

// EuclideanDistance is the L2 distance between parameter values.
type EuclideanDistance struct{}

func (EuclideanDistance) Distance(a, b Array) (float64, error) {
	if err := checkSameLength(a, b); err != nil {
		return 0, err
	}
	return floats.Distance(a.Values(), b.Values(), 2), nil
}

// RunLengthDistance compares orderings by their longest shared contiguous
// runs, treating rotations and reversals as equivalent.
type RunLengthDistance struct{}

// Distance takes the smaller of the run-length differences of a against b
// and against b reversed.
func (RunLengthDistance) Distance(a, b Array) (float64, error) {
	if err := checkSameLength(a, b); err != nil {
		return 0, err
	}
	x, y := intValues(a), intValues(b)
	d := runLengthDiff(x, y)
	slices.Reverse(y)
	return math.Min(d, runLengthDiff(x, y)), nil
}

// runLengthDiff returns 2^N / sum(2^(run-1)) - 2 over every cyclic run of at
// least two elements that a shares with b, or 2^N if there are none.
func runLengthDiff(a, b []int) float64 {
	n := len(a)
	pos := make(map[int]int, n)
	for j, v := range b {
		pos[v] = j
	}
	total := math.Exp2(float64(n))
	var sum float64
	for i := 0; i < n; {
		j, ok := pos[a[i]]
		if !ok {
			i++
			continue
		}
		k := 1
		for k < n && a[(i+k)%n] == b[(j+k)%n] {
			k++
		}
		if k == 1 {
			i++
			continue
		}
		sum += math.Exp2(float64(k - 1))
		i += k
	}
	if sum == 0 {
		return total
	}
	return total/sum - 2
}

// MagnitudeDistance compares unordered collections of signed integers. Values
// present in both contribute nothing; the remaining values are paired in
// sorted order and contribute their absolute difference. The size difference
// is added on top.
type MagnitudeDistance struct{}

func (MagnitudeDistance) Distance(a, b Array) (float64, error) {
	if err := checkSameKind(a, b); err != nil {
		return 0, err
	}
	x, y := sortedInts(a), sortedInts(b)
	restX, restY, _ := mergeUnmatched(x, y)
	d := math.Abs(float64(len(x) - len(y)))
	for i := range min(len(restX), len(restY)) {
		d += math.Abs(float64(restX[i] - restY[i]))
	}
	return d, nil
}

// MagnitudeIgnoredDistance counts only set membership: the size difference
// plus the number of values in the larger collection with no match in the
// smaller one.
type MagnitudeIgnoredDistance struct{}

func (MagnitudeIgnoredDistance) Distance(a, b Array) (float64, error) {
	if err := checkSameKind(a, b); err != nil {
		return 0, err
	}
	x, y := sortedInts(a), sortedInts(b)
	_, _, matches := mergeUnmatched(x, y)
	return math.Abs(float64(len(x)-len(y))) + float64(max(len(x), len(y))-matches), nil
}

// mergeUnmatched walks two sorted slices and returns the values of each that
// have no partner in the other, along with the number of matched pairs.
func mergeUnmatched(x, y []int) (restX, restY []int, matches int) {
	i, j := 0, 0
	for i < len(x) && j < len(y) {
		switch {
		case x[i] == y[j]:
			matches++
			i++
			j++
		case x[i] < y[j]:
			restX = append(restX, x[i])
			i++
		default:
			restY = append(restY, y[j])
			j++
		}
	}
	restX = append(restX, x[i:]...)
	restY = append(restY, y[j:]...)
	return restX, restY, matches
}

func checkSameKind(a, b Array) error {
	if a.Kind() != b.Kind() {
		return ErrKindMismatch
	}
	return nil
}

func checkSameLength(a, b Array) error {
	if err := checkSameKind(a, b); err != nil {
		return err
	}
	if a.Len() != b.Len() {
		return &DimensionMismatchError{Want: a.Len(), Got: b.Len()}
	}
	return nil
}

func intValues(a Array) []int {
	vals := make([]int, a.Len())
	for i := range vals {
		vals[i] = int(a.At(i).Value())
	}
	return vals
}

func sortedInts(a Array) []int {
	vals := intValues(a)
	slices.Sort(vals)
	return vals
}
