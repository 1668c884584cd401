package person

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Common errors for person operations.
var (
	ErrPersonNotFound  = errors.New("person not found")
	ErrInvalidRelation = errors.New("invalid relation")
)

// Repository defines the interface for person data operations.
//
// AddToSet and RemoveFromSet are the only mutation primitives the engine
// uses. Implementations must make each call atomic and idempotent under
// concurrent callers: adding an existing member or removing an absent one
// is a no-op, and the set never holds duplicates. Every mutation also
// advances the person's UpdatedAt.
type Repository interface {
	// GetByID retrieves a person with profile, skills and relationship
	// sets populated. Returns ErrPersonNotFound if absent.
	GetByID(ctx context.Context, id string) (*Person, error)

	// Exists reports whether a person with the given ID is stored.
	Exists(ctx context.Context, id string) (bool, error)

	// List returns the candidate pool: every stored person with profile
	// and skills populated. Relationship sets are not loaded; ranking
	// never reads them.
	List(ctx context.Context) ([]*Person, error)

	// Insert stores a new person record.
	Insert(ctx context.Context, p *Person) error

	// AddToSet adds targetID to the named relationship set of personID.
	AddToSet(ctx context.Context, personID string, rel Relation, targetID string) error

	// RemoveFromSet removes targetID from the named relationship set of personID.
	RemoveFromSet(ctx context.Context, personID string, rel Relation, targetID string) error
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex; used for testing and development.
type InMemoryRepository struct {
	mu      sync.RWMutex
	persons map[string]*Person
}

// NewInMemoryRepository creates a new in-memory person repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		persons: make(map[string]*Person),
	}
}

// copyPerson returns a deep copy so callers cannot mutate stored state.
func copyPerson(p *Person) *Person {
	cp := *p
	cp.Skills = append([]string(nil), p.Skills...)
	cp.Liked = append([]string(nil), p.Liked...)
	cp.Passed = append([]string(nil), p.Passed...)
	cp.Matched = append([]string(nil), p.Matched...)
	return &cp
}

// GetByID retrieves a person by ID.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Person, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.persons[id]
	if !ok {
		return nil, ErrPersonNotFound
	}
	return copyPerson(p), nil
}

// Exists reports whether a person with the given ID is stored.
func (r *InMemoryRepository) Exists(ctx context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.persons[id]
	return ok, nil
}

// List returns every stored person.
func (r *InMemoryRepository) List(ctx context.Context) ([]*Person, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Person, 0, len(r.persons))
	for _, p := range r.persons {
		out = append(out, copyPerson(p))
	}
	return out, nil
}

// Insert stores a new person record, minting an ID if absent.
func (r *InMemoryRepository) Insert(ctx context.Context, p *Person) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	r.persons[p.ID] = copyPerson(p)
	return nil
}

// AddToSet adds targetID to the named relationship set. Idempotent:
// adding an existing member leaves the set unchanged apart from UpdatedAt.
func (r *InMemoryRepository) AddToSet(ctx context.Context, personID string, rel Relation, targetID string) error {
	if !rel.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRelation, rel)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.persons[personID]
	if !ok {
		return ErrPersonNotFound
	}

	if !p.HasRelation(rel, targetID) {
		switch rel {
		case RelationLiked:
			p.Liked = append(p.Liked, targetID)
		case RelationPassed:
			p.Passed = append(p.Passed, targetID)
		case RelationMatched:
			p.Matched = append(p.Matched, targetID)
		}
	}
	p.UpdatedAt = time.Now()
	return nil
}

// RemoveFromSet removes targetID from the named relationship set.
// Idempotent: removing an absent member is a no-op apart from UpdatedAt.
func (r *InMemoryRepository) RemoveFromSet(ctx context.Context, personID string, rel Relation, targetID string) error {
	if !rel.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRelation, rel)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.persons[personID]
	if !ok {
		return ErrPersonNotFound
	}

	switch rel {
	case RelationLiked:
		p.Liked = removeID(p.Liked, targetID)
	case RelationPassed:
		p.Passed = removeID(p.Passed, targetID)
	case RelationMatched:
		p.Matched = removeID(p.Matched, targetID)
	}
	p.UpdatedAt = time.Now()
	return nil
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
