// Package connect implements the relationship state machine: connect and
// pass actions between people, and the attendance toggle between a person
// and an event.
package connect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cappuconnect/cappuconnect/internal/event"
	"github.com/cappuconnect/cappuconnect/internal/person"
	"github.com/cappuconnect/cappuconnect/internal/tracing"
)

// Common errors for relationship actions.
var (
	// ErrSelfTarget is returned when a viewer targets themselves.
	ErrSelfTarget = errors.New("cannot target yourself")

	// ErrInvalidAction is returned for an unknown attendance action.
	ErrInvalidAction = errors.New("invalid attendance action")
)

// Attendance actions.
const (
	ActionAttend = "attend"
	ActionLeave  = "leave"
)

// Service orchestrates relationship mutations on top of the repositories.
// Stateless; all correctness rests on the atomicity of the repository set
// primitives, not on locking here.
type Service struct {
	people person.Repository
	events event.Repository
	logger *slog.Logger
}

// NewService creates a relationship service.
func NewService(people person.Repository, events event.Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		people: people,
		events: events,
		logger: logger,
	}
}

// Connect records that the viewer wants to connect with the target:
// the target joins the viewer's matched set and leaves the viewer's
// passed set. Both steps are idempotent, so repeating a connect is safe.
//
// The returned mutual flag reflects a read of the target's matched set
// after the viewer's write. The two mutations and the read are separate
// store operations, not one transaction: a concurrent connect from the
// target can land between them, in which case the flag reports whichever
// state the read observes. Callers treat the flag as best-effort.
func (s *Service) Connect(ctx context.Context, viewerID, targetID string) (mutual bool, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "connect")
	defer func() { endSpan(err) }()

	if viewerID == targetID {
		return false, ErrSelfTarget
	}

	exists, err := s.people.Exists(ctx, targetID)
	if err != nil {
		return false, fmt.Errorf("failed to check target: %w", err)
	}
	if !exists {
		return false, person.ErrPersonNotFound
	}

	if err := s.people.AddToSet(ctx, viewerID, person.RelationMatched, targetID); err != nil {
		return false, fmt.Errorf("failed to add to matched: %w", err)
	}
	if err := s.people.RemoveFromSet(ctx, viewerID, person.RelationPassed, targetID); err != nil {
		return false, fmt.Errorf("failed to remove from passed: %w", err)
	}

	target, err := s.people.GetByID(ctx, targetID)
	if err != nil {
		return false, fmt.Errorf("failed to read target for mutuality: %w", err)
	}
	mutual = target.HasRelation(person.RelationMatched, viewerID)

	s.logger.InfoContext(ctx, "connect recorded",
		slog.String("viewer_id", viewerID),
		slog.String("target_id", targetID),
		slog.Bool("mutual", mutual))
	return mutual, nil
}

// Pass records that the viewer passed on the target: the target joins the
// viewer's passed set. No member is removed from matched; overlapping
// membership across passed and matched is permitted, mirroring the stored
// data model.
func (s *Service) Pass(ctx context.Context, viewerID, targetID string) (err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "pass")
	defer func() { endSpan(err) }()

	if viewerID == targetID {
		return ErrSelfTarget
	}

	exists, err := s.people.Exists(ctx, targetID)
	if err != nil {
		return fmt.Errorf("failed to check target: %w", err)
	}
	if !exists {
		return person.ErrPersonNotFound
	}

	if err := s.people.AddToSet(ctx, viewerID, person.RelationPassed, targetID); err != nil {
		return fmt.Errorf("failed to add to passed: %w", err)
	}

	s.logger.InfoContext(ctx, "pass recorded",
		slog.String("viewer_id", viewerID),
		slog.String("target_id", targetID))
	return nil
}

// ToggleAttendance applies an attend or leave action for a person on an
// event. Each direction maps to a single idempotent store primitive, so a
// repeated or raced action converges on the same attendee set. Returns
// whether the person is attending after the action just applied.
func (s *Service) ToggleAttendance(ctx context.Context, eventID, personID, action string) (attending bool, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "toggle_attendance")
	defer func() { endSpan(err) }()

	if action != ActionAttend && action != ActionLeave {
		return false, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	// A missing event must surface as ErrEventNotFound on every
	// backend; the SQL store's attend insert hits its foreign key first
	// and returns an opaque error.
	exists, err := s.events.Exists(ctx, eventID)
	if err != nil {
		return false, fmt.Errorf("failed to check event: %w", err)
	}
	if !exists {
		return false, event.ErrEventNotFound
	}

	switch action {
	case ActionAttend:
		if err := s.events.AddAttendee(ctx, eventID, personID); err != nil {
			return false, err
		}
		attending = true
	case ActionLeave:
		if err := s.events.RemoveAttendee(ctx, eventID, personID); err != nil {
			return false, err
		}
		attending = false
	}

	s.logger.InfoContext(ctx, "attendance toggled",
		slog.String("event_id", eventID),
		slog.String("person_id", personID),
		slog.String("action", action))
	return attending, nil
}
