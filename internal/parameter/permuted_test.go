package parameter

import (
	"errors"
	"math"
	"testing"
)

func mustPermuted(t *testing.T, order ...int) *Permuted {
	t.Helper()
	p, err := NewPermuted(order)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestRunLengthDistance(t *testing.T) {
	tests := []struct {
		a, b []int
		want float64
	}{
		{[]int{2, 1, 0, 3, 4}, []int{1, 0, 3, 4, 2}, 0},
		{[]int{2, 1, 0, 3, 4}, []int{0, 1, 2, 3, 4}, 6},
		{[]int{3, 1, 0, 2, 4}, []int{4, 1, 3, 0, 2}, 6},
		{[]int{4, 2, 0, 3, 1}, []int{0, 1, 2, 3, 4}, 32},
		{[]int{4, 2, 0, 5, 3, 1}, []int{1, 5, 3, 0, 4, 2}, 14},
		// Runs are walked along a; only b is reversed.
		{[]int{1, 0, 2, 3, 4}, []int{0, 2, 1, 4, 3}, 6},
	}
	for _, tt := range tests {
		a, b := mustPermuted(t, tt.a...), mustPermuted(t, tt.b...)
		got, err := a.Distance(b)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("distance(%v, %v): got %f, want %f", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestPermutedReverseAndRotationAreEquivalent(t *testing.T) {
	a := mustPermuted(t, 3, 0, 4, 1, 5, 2)
	if d, _ := a.Distance(a.Reverse()); d != 0 {
		t.Errorf("distance to reverse: got %f, want 0", d)
	}
	rotated := mustPermuted(t, 1, 5, 2, 3, 0, 4)
	if d, _ := a.Distance(rotated); d != 0 {
		t.Errorf("distance to rotation: got %f, want 0", d)
	}
	if a.Equal(a.Reverse()) {
		t.Error("equality must be order sensitive")
	}
}

func TestPermutedDistanceMismatch(t *testing.T) {
	a := mustPermuted(t, 0, 1, 2)
	if _, err := a.Distance(mustPermuted(t, 0, 1)); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected dimension mismatch, got %v", err)
	}
	if _, err := a.Distance(square(0, 1)); !errors.Is(err, ErrKindMismatch) {
		t.Errorf("expected kind mismatch, got %v", err)
	}
}

func TestNewPermutedRejectsDuplicates(t *testing.T) {
	if _, err := NewPermuted([]int{0, 1, 1}); err == nil {
		t.Error("expected error for duplicate item")
	}
}

func TestPermutedNeighborKeepsItems(t *testing.T) {
	rng := newRand(4)
	a := mustPermuted(t, 0, 1, 2, 3, 4, 5, 6, 7)
	for range 100 {
		n := a.RandomNeighbor(rng, 0.5).(*Permuted)
		seen := map[int]bool{}
		for _, v := range n.Order() {
			seen[v] = true
		}
		if len(seen) != 8 {
			t.Fatalf("neighbor lost items: %v", n.Order())
		}
	}
	if got := a.Order(); got[0] != 0 || got[7] != 7 {
		t.Errorf("neighbor mutated the receiver: %v", got)
	}
}

func TestPermutedGlobalSamplesCapped(t *testing.T) {
	// 4!/2 = 12, 70% of that is 8
	samples := collect(t, mustPermuted(t, 0, 1, 2, 3), math.MaxInt64)
	if len(samples) != 8 {
		t.Fatalf("got %d samples, want 8", len(samples))
	}
	seen := NewSet()
	for _, s := range samples {
		if !seen.Add(s) {
			t.Errorf("duplicate sample %v", s)
		}
	}
}

func TestPermutedGlobalSamplesRequested(t *testing.T) {
	samples := collect(t, mustPermuted(t, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9), 50)
	if len(samples) != 50 {
		t.Errorf("got %d samples, want 50", len(samples))
	}
}

func TestFactorialSaturates(t *testing.T) {
	if factorial(5) != 120 {
		t.Errorf("5! = %d", factorial(5))
	}
	if factorial(30) != math.MaxInt64 {
		t.Errorf("30! should saturate, got %d", factorial(30))
	}
}
