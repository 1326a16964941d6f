package parameter

// Set records arrays by value. Membership and insertion are constant time.
// A Set is not safe for concurrent use.
type Set struct {
	m map[string]struct{}
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{m: make(map[string]struct{})}
}

// Add inserts a and reports whether it was not already present.
func (s *Set) Add(a Array) bool {
	k := a.Key()
	if _, ok := s.m[k]; ok {
		return false
	}
	s.m[k] = struct{}{}
	return true
}

// Contains reports whether an array equal to a was added.
func (s *Set) Contains(a Array) bool {
	_, ok := s.m[a.Key()]
	return ok
}

func (s *Set) Len() int { return len(s.m) }
