// Package similarity provides pure set arithmetic and similarity scoring
// between attribute sets (user skills, event tags).
package similarity

import "sort"

// Set is an unordered collection of unique string attributes.
// Membership checks are O(1) via the underlying map.
type Set map[string]struct{}

// NewSet builds a Set from a slice, deduplicating entries.
// Empty strings are dropped; attribute comparison is case-sensitive
// because the catalog normalizes attributes at ingestion time.
func NewSet(attrs []string) Set {
	s := make(Set, len(attrs))
	for _, a := range attrs {
		if a == "" {
			continue
		}
		s[a] = struct{}{}
	}
	return s
}

// Contains reports whether the attribute is a member of the set.
func (s Set) Contains(attr string) bool {
	_, ok := s[attr]
	return ok
}

// Len returns the cardinality of the set.
func (s Set) Len() int {
	return len(s)
}

// Intersect returns the members present in both sets.
// Iterates the smaller set so the cost is O(min(|s|,|other|)).
func (s Set) Intersect(other Set) Set {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	out := make(Set)
	for a := range small {
		if _, ok := large[a]; ok {
			out[a] = struct{}{}
		}
	}
	return out
}

// UnionSize returns |s ∪ other| without materializing the union.
func (s Set) UnionSize(other Set) int {
	return len(s) + len(other) - len(s.Intersect(other))
}

// Slice returns the members as a sorted slice. Sorting keeps DTO output
// deterministic across calls (map iteration order is randomized).
func (s Set) Slice() []string {
	out := make([]string, 0, len(s))
	for a := range s {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
