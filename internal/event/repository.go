package event

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrEventNotFound is returned when the requested event is absent.
var ErrEventNotFound = errors.New("event not found")

// Repository defines the interface for event data operations.
//
// AddAttendee and RemoveAttendee must be atomic and idempotent under
// concurrent callers: the attendee set never holds duplicates and
// repeating an operation is a no-op.
type Repository interface {
	// GetByID retrieves an event with the attendee set populated.
	// Returns ErrEventNotFound if absent.
	GetByID(ctx context.Context, id string) (*Event, error)

	// Exists reports whether an event with the given ID is stored.
	Exists(ctx context.Context, id string) (bool, error)

	// All returns the full candidate pool with tags and attendee counts
	// populated, for affinity ranking.
	All(ctx context.Context) ([]*Event, error)

	// Query returns one catalog page matching the filter. Attendee sets
	// are populated; catalog listings report their sizes.
	Query(ctx context.Context, f Filter) ([]*Event, error)

	// Count returns the total number of events matching the filter,
	// ignoring pagination.
	Count(ctx context.Context, f Filter) (int, error)

	// Insert stores a new event record.
	Insert(ctx context.Context, e *Event) error

	// AddAttendee adds personID to the event's attendee set.
	AddAttendee(ctx context.Context, eventID, personID string) error

	// RemoveAttendee removes personID from the event's attendee set.
	RemoveAttendee(ctx context.Context, eventID, personID string) error
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex; used for testing and development.
type InMemoryRepository struct {
	mu     sync.RWMutex
	events map[string]*Event
}

// NewInMemoryRepository creates a new in-memory event repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		events: make(map[string]*Event),
	}
}

func copyEvent(e *Event) *Event {
	cp := *e
	cp.Tags = append([]string(nil), e.Tags...)
	cp.Attendees = append([]string(nil), e.Attendees...)
	return &cp
}

// GetByID retrieves an event by ID.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	return copyEvent(e), nil
}

// Exists reports whether an event with the given ID is stored.
func (r *InMemoryRepository) Exists(ctx context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.events[id]
	return ok, nil
}

// All returns every stored event.
func (r *InMemoryRepository) All(ctx context.Context) ([]*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Event, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, copyEvent(e))
	}
	return out, nil
}

func matchesFilter(e *Event, f Filter) bool {
	if f.ExternalID != nil && e.ExternalID != *f.ExternalID {
		return false
	}
	contains := func(haystack, needle string) bool {
		return needle == "" || strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
	}
	if !contains(e.Name, f.Name) || !contains(e.Host, f.Host) || !contains(e.Venue, f.Venue) {
		return false
	}
	if f.Tag != "" {
		found := false
		for _, tag := range e.Tags {
			if strings.Contains(strings.ToLower(tag), strings.ToLower(f.Tag)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.TimeExact != "" && e.TimeText != f.TimeExact {
		return false
	}
	if !contains(e.TimeText, f.TimeContains) {
		return false
	}
	if f.TimeFrom != "" && e.TimeText < f.TimeFrom {
		return false
	}
	if f.TimeTo != "" && e.TimeText >= f.TimeTo {
		return false
	}
	return true
}

func sortEvents(events []*Event, f Filter) {
	less := func(a, b *Event) bool {
		switch f.SortBy {
		case "name":
			return a.Name < b.Name
		case "host":
			return a.Host < b.Host
		case "venue":
			return a.Venue < b.Venue
		case "id":
			return a.ExternalID < b.ExternalID
		default:
			return a.TimeText < b.TimeText
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		if f.Direction == DirectionDesc {
			return less(events[j], events[i])
		}
		return less(events[i], events[j])
	})
}

// Query returns one catalog page matching the filter.
func (r *InMemoryRepository) Query(ctx context.Context, f Filter) ([]*Event, error) {
	f = f.Normalize()

	r.mu.RLock()
	var matched []*Event
	for _, e := range r.events {
		if matchesFilter(e, f) {
			matched = append(matched, copyEvent(e))
		}
	}
	r.mu.RUnlock()

	sortEvents(matched, f)

	start := (f.Page - 1) * f.PageSize
	if start >= len(matched) {
		return []*Event{}, nil
	}
	end := start + f.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], nil
}

// Count returns the total number of events matching the filter.
func (r *InMemoryRepository) Count(ctx context.Context, f Filter) (int, error) {
	f = f.Normalize()

	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, e := range r.events {
		if matchesFilter(e, f) {
			n++
		}
	}
	return n, nil
}

// Insert stores a new event record, minting an ID if absent.
func (r *InMemoryRepository) Insert(ctx context.Context, e *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	r.events[e.ID] = copyEvent(e)
	return nil
}

// AddAttendee adds personID to the attendee set. Idempotent.
func (r *InMemoryRepository) AddAttendee(ctx context.Context, eventID, personID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.events[eventID]
	if !ok {
		return ErrEventNotFound
	}
	if !e.HasAttendee(personID) {
		e.Attendees = append(e.Attendees, personID)
	}
	e.UpdatedAt = time.Now()
	return nil
}

// RemoveAttendee removes personID from the attendee set. Idempotent.
func (r *InMemoryRepository) RemoveAttendee(ctx context.Context, eventID, personID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.events[eventID]
	if !ok {
		return ErrEventNotFound
	}
	out := e.Attendees[:0]
	for _, id := range e.Attendees {
		if id != personID {
			out = append(out, id)
		}
	}
	e.Attendees = out
	e.UpdatedAt = time.Now()
	return nil
}
