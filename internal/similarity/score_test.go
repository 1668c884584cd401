package similarity

import (
	"math"
	"reflect"
	"testing"
)

// TestCompute_KnownValues verifies the concrete metric values for
// hand-computed set pairs.
func TestCompute_KnownValues(t *testing.T) {
	tests := []struct {
		name        string
		a           []string
		b           []string
		wantOverlap int
		wantJaccard float64
		wantCosine  float64
		wantCommon  []string
	}{
		{
			name:        "partial overlap",
			a:           []string{"A", "B", "C"},
			b:           []string{"A", "B", "D"},
			wantOverlap: 2,
			wantJaccard: 0.5,               // 2 / 4
			wantCosine:  2.0 / 3.0,         // 2 / sqrt(3*3)
			wantCommon:  []string{"A", "B"},
		},
		{
			name:        "identical sets",
			a:           []string{"go", "sql"},
			b:           []string{"sql", "go"},
			wantOverlap: 2,
			wantJaccard: 1.0,
			wantCosine:  1.0,
			wantCommon:  []string{"go", "sql"},
		},
		{
			name:        "disjoint sets",
			a:           []string{"A"},
			b:           []string{"B"},
			wantOverlap: 0,
			wantJaccard: 0,
			wantCosine:  0,
			wantCommon:  []string{},
		},
		{
			name:        "empty candidate",
			a:           []string{"A", "B", "C"},
			b:           nil,
			wantOverlap: 0,
			wantJaccard: 0,
			wantCosine:  0,
			wantCommon:  []string{},
		},
		{
			name:        "both empty",
			a:           nil,
			b:           nil,
			wantOverlap: 0,
			wantJaccard: 0,
			wantCosine:  0,
			wantCommon:  []string{},
		},
		{
			name:        "subset",
			a:           []string{"A", "B", "C", "D"},
			b:           []string{"B", "D"},
			wantOverlap: 2,
			wantJaccard: 0.5,                       // 2 / 4
			wantCosine:  2.0 / math.Sqrt(8),        // 2 / sqrt(4*2)
			wantCommon:  []string{"B", "D"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(NewSet(tt.a), NewSet(tt.b))

			if got.Overlap != tt.wantOverlap {
				t.Errorf("overlap: got %d, want %d", got.Overlap, tt.wantOverlap)
			}
			if math.Abs(got.Jaccard-tt.wantJaccard) > 1e-9 {
				t.Errorf("jaccard: got %f, want %f", got.Jaccard, tt.wantJaccard)
			}
			if math.Abs(got.Cosine-tt.wantCosine) > 1e-9 {
				t.Errorf("cosine: got %f, want %f", got.Cosine, tt.wantCosine)
			}
			if !reflect.DeepEqual(got.Common, tt.wantCommon) {
				t.Errorf("common: got %v, want %v", got.Common, tt.wantCommon)
			}
		})
	}
}

// TestCompute_Symmetry verifies score(A,B) == score(B,A) for all metrics.
func TestCompute_Symmetry(t *testing.T) {
	pairs := [][2][]string{
		{{"A", "B", "C"}, {"A", "B", "D"}},
		{{"A"}, {"A", "B", "C", "D", "E"}},
		{{}, {"A"}},
		{{"x", "y"}, {"y", "x"}},
	}

	for _, p := range pairs {
		a, b := NewSet(p[0]), NewSet(p[1])
		ab := Compute(a, b)
		ba := Compute(b, a)

		if ab.Overlap != ba.Overlap {
			t.Errorf("overlap asymmetric for %v/%v: %d vs %d", p[0], p[1], ab.Overlap, ba.Overlap)
		}
		if math.Abs(ab.Jaccard-ba.Jaccard) > 1e-9 {
			t.Errorf("jaccard asymmetric for %v/%v", p[0], p[1])
		}
		if math.Abs(ab.Cosine-ba.Cosine) > 1e-9 {
			t.Errorf("cosine asymmetric for %v/%v", p[0], p[1])
		}
	}
}

// TestCompute_Bounds verifies 0 <= jaccard <= 1 and 0 <= cosine <= 1,
// with jaccard == 1 iff the sets are equal and non-empty.
func TestCompute_Bounds(t *testing.T) {
	sets := [][]string{
		{},
		{"A"},
		{"A", "B"},
		{"A", "B", "C"},
		{"B", "C", "D", "E"},
		{"Z"},
	}

	for _, as := range sets {
		for _, bs := range sets {
			a, b := NewSet(as), NewSet(bs)
			got := Compute(a, b)

			if got.Jaccard < 0 || got.Jaccard > 1 {
				t.Errorf("jaccard %f out of bounds for %v/%v", got.Jaccard, as, bs)
			}
			if got.Cosine < 0 || got.Cosine > 1 {
				t.Errorf("cosine %f out of bounds for %v/%v", got.Cosine, as, bs)
			}

			equal := a.Len() == b.Len() && a.Intersect(b).Len() == a.Len()
			if equal && a.Len() > 0 && got.Jaccard != 1.0 {
				t.Errorf("jaccard should be 1 for equal non-empty sets %v", as)
			}
			if (!equal || a.Len() == 0) && got.Jaccard == 1.0 {
				t.Errorf("jaccard should not be 1 for %v/%v", as, bs)
			}
			if got.Overlap == 0 && got.Jaccard != 0 {
				t.Errorf("jaccard should be 0 for disjoint %v/%v", as, bs)
			}
		}
	}
}

func TestNewSet_Deduplicates(t *testing.T) {
	s := NewSet([]string{"A", "A", "B", "", "B"})
	if s.Len() != 2 {
		t.Errorf("expected 2 unique members, got %d", s.Len())
	}
	if !s.Contains("A") || !s.Contains("B") {
		t.Error("expected A and B to be members")
	}
	if s.Contains("") {
		t.Error("empty string should be dropped")
	}
}

func TestRound3(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{2.0 / 3.0, 0.667},
		{0.5, 0.5},
		{0.12349, 0.123},
		{0.9995, 1.0},
		{0, 0},
	}
	for _, tt := range tests {
		if got := Round3(tt.in); got != tt.want {
			t.Errorf("Round3(%f): got %f, want %f", tt.in, got, tt.want)
		}
	}
}
