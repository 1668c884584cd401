package person

import (
	"context"
	"sync"
	"testing"
)

func newTestPerson(id string, skills ...string) *Person {
	return &Person{
		ID:        id,
		Firstname: "Test",
		Lastname:  "Person",
		Email:     id + "@example.com",
		Skills:    skills,
	}
}

func TestInMemoryRepository_GetByID(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	if _, err := repo.GetByID(ctx, "missing"); err != ErrPersonNotFound {
		t.Errorf("expected ErrPersonNotFound, got %v", err)
	}

	p := newTestPerson("p1", "go", "sql")
	if err := repo.Insert(ctx, p); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	got, err := repo.GetByID(ctx, "p1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Email != "p1@example.com" {
		t.Errorf("unexpected email %q", got.Email)
	}
	if len(got.Skills) != 2 {
		t.Errorf("expected 2 skills, got %d", len(got.Skills))
	}
	if got.UpdatedAt.IsZero() || got.CreatedAt.IsZero() {
		t.Error("timestamps should be set on insert")
	}

	// Mutating the returned copy must not affect stored state.
	got.Skills[0] = "changed"
	again, _ := repo.GetByID(ctx, "p1")
	if again.Skills[0] == "changed" {
		t.Error("repository returned a shared slice instead of a copy")
	}
}

func TestInMemoryRepository_AddToSet_Idempotent(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	if err := repo.Insert(ctx, newTestPerson("viewer", "go")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	before, _ := repo.GetByID(ctx, "viewer")

	for i := 0; i < 3; i++ {
		if err := repo.AddToSet(ctx, "viewer", RelationMatched, "target"); err != nil {
			t.Fatalf("add %d failed: %v", i, err)
		}
	}

	got, _ := repo.GetByID(ctx, "viewer")
	if len(got.Matched) != 1 || got.Matched[0] != "target" {
		t.Errorf("expected matched to contain target exactly once, got %v", got.Matched)
	}
	if !got.UpdatedAt.After(before.UpdatedAt) && !got.UpdatedAt.Equal(before.UpdatedAt) {
		t.Error("UpdatedAt should advance on mutation")
	}
}

func TestInMemoryRepository_RemoveFromSet_Idempotent(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	if err := repo.Insert(ctx, newTestPerson("viewer", "go")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := repo.AddToSet(ctx, "viewer", RelationPassed, "a"); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := repo.AddToSet(ctx, "viewer", RelationPassed, "b"); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	// Removing an absent member is a no-op, not an error.
	if err := repo.RemoveFromSet(ctx, "viewer", RelationPassed, "missing"); err != nil {
		t.Errorf("removing absent member should not error: %v", err)
	}

	if err := repo.RemoveFromSet(ctx, "viewer", RelationPassed, "a"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if err := repo.RemoveFromSet(ctx, "viewer", RelationPassed, "a"); err != nil {
		t.Fatalf("second remove failed: %v", err)
	}

	got, _ := repo.GetByID(ctx, "viewer")
	if len(got.Passed) != 1 || got.Passed[0] != "b" {
		t.Errorf("expected passed == [b], got %v", got.Passed)
	}
}

func TestInMemoryRepository_InvalidRelation(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	if err := repo.Insert(ctx, newTestPerson("p1", "go")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := repo.AddToSet(ctx, "p1", Relation("bogus"), "x"); err == nil {
		t.Error("expected error for invalid relation")
	}
	if err := repo.AddToSet(ctx, "missing", RelationLiked, "x"); err != ErrPersonNotFound {
		t.Errorf("expected ErrPersonNotFound, got %v", err)
	}
}

// TestInMemoryRepository_ConcurrentAddToSet exercises the atomicity
// requirement: simultaneous adds of the same member must not corrupt the
// set or produce duplicates.
func TestInMemoryRepository_ConcurrentAddToSet(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	if err := repo.Insert(ctx, newTestPerson("viewer", "go")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = repo.AddToSet(ctx, "viewer", RelationMatched, "target")
		}()
	}
	wg.Wait()

	got, _ := repo.GetByID(ctx, "viewer")
	if len(got.Matched) != 1 {
		t.Errorf("expected exactly one member after concurrent adds, got %v", got.Matched)
	}
}

func TestPerson_HasRelation(t *testing.T) {
	p := &Person{
		Matched: []string{"a", "b"},
		Passed:  []string{"c"},
	}

	if !p.HasRelation(RelationMatched, "a") {
		t.Error("expected a in matched")
	}
	if p.HasRelation(RelationMatched, "c") {
		t.Error("c should not be in matched")
	}
	if !p.HasRelation(RelationPassed, "c") {
		t.Error("expected c in passed")
	}
	if p.HasRelation(RelationLiked, "a") {
		t.Error("liked should be empty")
	}
}
