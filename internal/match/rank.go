// Package match provides similarity-based candidate ranking for people and
// events, parameterized over one generic ranking core.
package match

import (
	"sort"

	"github.com/cappuconnect/cappuconnect/internal/similarity"
)

// Ranking parameter bounds.
const (
	DefaultLimit      = 10
	MinLimit          = 1
	MaxLimit          = 500
	DefaultMinOverlap = 1
)

// Options controls a ranking call. A requested limit of zero means
// exactly that and clamps to MinLimit; callers that want the defaults
// for unspecified parameters start from DefaultOptions.
type Options struct {
	// Limit is the maximum number of results returned.
	Limit int

	// MinOverlap is the minimum shared-attribute count a candidate must
	// reach to be included.
	MinOverlap int
}

// DefaultOptions returns the options used when the caller specifies
// nothing: DefaultLimit results at the minimum overlap threshold.
func DefaultOptions() Options {
	return Options{Limit: DefaultLimit, MinOverlap: DefaultMinOverlap}
}

// Clamp returns a copy with Limit forced into [MinLimit, MaxLimit] and
// MinOverlap forced to at least DefaultMinOverlap. Out-of-range values
// are served at the bound, not rejected, matching the query-parameter
// contract: a requested limit of 0 is served as MinLimit, never as the
// default.
func (o Options) Clamp() Options {
	if o.Limit < MinLimit {
		o.Limit = MinLimit
	}
	if o.Limit > MaxLimit {
		o.Limit = MaxLimit
	}
	if o.MinOverlap < DefaultMinOverlap {
		o.MinOverlap = DefaultMinOverlap
	}
	return o
}

// Ranked pairs a candidate with its similarity scores. Jaccard and Cosine
// are full precision; DTO builders round them.
type Ranked[T any] struct {
	Candidate  T
	ID         string
	Overlap    int
	Jaccard    float64
	Cosine     float64
	Common     []string
	Popularity int
}

// Extractors supplies the per-candidate accessor functions that
// parameterize the generic ranker. Popularity may be nil for candidate
// kinds without a popularity signal (people); the tie-break then falls
// through to the identifier.
type Extractors[T any] struct {
	ID         func(T) string
	Attributes func(T) similarity.Set
	Popularity func(T) int
}

// Rank scores and orders a candidate pool against the subject's attribute
// set. The subject itself (matched by excludeID) and candidates sharing no
// attribute with the subject are discarded before scoring; candidates
// below MinOverlap are discarded after.
//
// Order is fully deterministic: overlap desc, then jaccard desc, then
// popularity desc, then candidate ID desc.
func Rank[T any](subject similarity.Set, pool []T, excludeID string, ex Extractors[T], opts Options) []Ranked[T] {
	opts = opts.Clamp()

	ranked := make([]Ranked[T], 0, len(pool))
	for _, c := range pool {
		id := ex.ID(c)
		if id == excludeID {
			continue
		}
		attrs := ex.Attributes(c)

		// Prefilter: a candidate with no shared attribute can never
		// reach MinOverlap (which is at least 1), so skip scoring.
		score := similarity.Compute(subject, attrs)
		if score.Overlap == 0 || score.Overlap < opts.MinOverlap {
			continue
		}

		r := Ranked[T]{
			Candidate: c,
			ID:        id,
			Overlap:   score.Overlap,
			Jaccard:   score.Jaccard,
			Cosine:    score.Cosine,
			Common:    score.Common,
		}
		if ex.Popularity != nil {
			r.Popularity = ex.Popularity(c)
		}
		ranked = append(ranked, r)
	}

	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Overlap != b.Overlap {
			return a.Overlap > b.Overlap
		}
		if a.Jaccard != b.Jaccard {
			return a.Jaccard > b.Jaccard
		}
		if a.Popularity != b.Popularity {
			return a.Popularity > b.Popularity
		}
		return a.ID > b.ID
	})

	if len(ranked) > opts.Limit {
		ranked = ranked[:opts.Limit]
	}
	return ranked
}
