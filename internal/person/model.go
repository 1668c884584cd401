// Package person provides the typed user record and repositories for
// profile and relationship-set storage.
package person

import "time"

// Relation identifies one of the per-person relationship sets.
type Relation string

const (
	// RelationLiked is the set of people this person has liked.
	RelationLiked Relation = "liked"

	// RelationPassed is the set of people this person has passed on.
	RelationPassed Relation = "passed"

	// RelationMatched is the set of people this person has connected with.
	// A connection is unilateral; mutuality is detected by reading the
	// target's matched set, not by a second state.
	RelationMatched Relation = "matched"
)

// Valid reports whether r names a known relationship set.
func (r Relation) Valid() bool {
	switch r {
	case RelationLiked, RelationPassed, RelationMatched:
		return true
	}
	return false
}

// Person is a typed user record. Registration and profile editing happen
// outside this service; the engine only reads attribute fields and mutates
// the relationship sets.
type Person struct {
	ID        string `json:"id"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Email     string `json:"email"`

	// Password is the stored credential hash. Never serialized and never
	// projected into ranking DTOs.
	Password string `json:"-"`

	State           string   `json:"state"`
	LinkedIn        string   `json:"linkedin"`
	Bio             string   `json:"bio"`
	School          string   `json:"school"`
	Major           string   `json:"major"`
	ExperienceYears string   `json:"experienceyears"`
	Industry        string   `json:"industry"`
	Skills          []string `json:"skills"`
	Resume          string   `json:"resume"`
	Photo           string   `json:"photo"`

	Liked   []string `json:"liked"`
	Passed  []string `json:"passed"`
	Matched []string `json:"matched"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RelationSet returns the named relationship set.
func (p *Person) RelationSet(r Relation) []string {
	switch r {
	case RelationLiked:
		return p.Liked
	case RelationPassed:
		return p.Passed
	case RelationMatched:
		return p.Matched
	}
	return nil
}

// HasRelation reports whether targetID is a member of the named set.
func (p *Person) HasRelation(r Relation, targetID string) bool {
	for _, id := range p.RelationSet(r) {
		if id == targetID {
			return true
		}
	}
	return false
}
