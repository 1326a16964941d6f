package parameter

import (
	"errors"
	"fmt"
)

// ErrOutOfBounds is returned when a value lies outside its parameter's range.
// Use errors.Is(err, ErrOutOfBounds) to check for this error.
var ErrOutOfBounds = &OutOfBoundsError{}

// ErrDimensionMismatch is returned when two arrays (or an array and a vector)
// of different length are combined.
var ErrDimensionMismatch = &DimensionMismatchError{}

// ErrKindMismatch is returned when arrays of different representations are compared.
var ErrKindMismatch = errors.New("parameter arrays have different representations")

// ErrInvalidSampleCount is returned when fewer than one global sample is requested.
var ErrInvalidSampleCount = errors.New("requested sample count must be at least 1")

// OutOfBoundsError represents a value assigned outside [Min, Max].
type OutOfBoundsError struct {
	Name  string
	Value float64
	Min   float64
	Max   float64
}

func (e *OutOfBoundsError) Error() string {
	if e.Name == "" {
		return "value out of bounds"
	}
	return fmt.Sprintf("value %g of %s is outside [%g, %g]", e.Value, e.Name, e.Min, e.Max)
}

func (e *OutOfBoundsError) Is(target error) bool {
	_, ok := target.(*OutOfBoundsError)
	return ok
}

// DimensionMismatchError represents an operation between vectors of unequal length.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	if e.Want == 0 && e.Got == 0 {
		return "dimension mismatch"
	}
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Want, e.Got)
}

func (e *DimensionMismatchError) Is(target error) bool {
	_, ok := target.(*DimensionMismatchError)
	return ok
}
