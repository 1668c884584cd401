package similarity

import "math"

// Score holds the multiset-overlap metrics between two attribute sets.
// Jaccard and Cosine carry full float64 precision; callers building
// response DTOs round them with Round3.
type Score struct {
	Overlap int      // |A ∩ B|
	Jaccard float64  // |A ∩ B| / |A ∪ B|, 0 when the union is empty
	Cosine  float64  // |A ∩ B| / sqrt(|A| * |B|), 0 when either set is empty
	Common  []string // sorted members of A ∩ B
}

// Compute scores the similarity between two attribute sets.
// Pure and deterministic; symmetric in its arguments.
//
// Cosine treats each set as a binary indicator vector over the attribute
// universe: the dot product of two such vectors is the intersection size,
// and each vector's magnitude is the square root of its cardinality.
func Compute(a, b Set) Score {
	common := a.Intersect(b)
	overlap := common.Len()

	unionSize := a.Len() + b.Len() - overlap
	var jaccard float64
	if unionSize > 0 {
		jaccard = float64(overlap) / float64(unionSize)
	}

	var cosine float64
	if a.Len() > 0 && b.Len() > 0 {
		cosine = float64(overlap) / math.Sqrt(float64(a.Len())*float64(b.Len()))
	}

	return Score{
		Overlap: overlap,
		Jaccard: jaccard,
		Cosine:  cosine,
		Common:  common.Slice(),
	}
}

// Round3 rounds a similarity metric to 3 decimal places for DTO output.
func Round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
