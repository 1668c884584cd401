package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cappuconnect/cappuconnect/internal/event"
	"github.com/cappuconnect/cappuconnect/internal/person"
	"github.com/cappuconnect/cappuconnect/internal/similarity"
	"github.com/cappuconnect/cappuconnect/internal/tracing"
)

// ErrNoSkills is returned when the subject has an empty skill set.
// Ranking requires at least one attribute to score against.
var ErrNoSkills = errors.New("person has no skills")

// PersonMatch is the ranked person DTO. The subject's credentials are
// never projected into it; Skills beyond the common subset stay private.
type PersonMatch struct {
	ID              string   `json:"id"`
	Firstname       string   `json:"firstname"`
	Lastname        string   `json:"lastname"`
	Email           string   `json:"email"`
	Bio             string   `json:"bio"`
	Photo           string   `json:"photo"`
	State           string   `json:"state"`
	Industry        string   `json:"industry"`
	ExperienceYears string   `json:"experienceyears"`
	Overlap         int      `json:"overlap"`
	Jaccard         float64  `json:"jaccard"`
	Cosine          float64  `json:"cosine"`
	CommonSkills    []string `json:"commonSkills"`
}

// EventMatch is the ranked event DTO with display metadata passed through.
type EventMatch struct {
	ID             string   `json:"id"`
	ExternalID     int      `json:"external_id"`
	Name           string   `json:"name"`
	Time           string   `json:"time"`
	Venue          string   `json:"venue"`
	Address        string   `json:"address"`
	Host           string   `json:"host"`
	ImageURL       string   `json:"image_url"`
	CleanedURL     string   `json:"cleaned_url"`
	MapURL         string   `json:"map_url"`
	Tags           []string `json:"tags"`
	Overlap        int      `json:"overlap"`
	Jaccard        float64  `json:"jaccard"`
	Cosine         float64  `json:"cosine"`
	CommonTags     []string `json:"commonTags"`
	AttendeesCount int      `json:"attendeesCount"`
}

// Service ranks candidate people and events against a subject's skill set.
// Stateless apart from injected dependencies; safe for concurrent use.
type Service struct {
	people  person.Repository
	events  event.Repository
	metrics *Metrics
	logger  *slog.Logger
}

// NewService creates a ranking service. metrics may be nil to disable
// instrumentation (tests).
func NewService(people person.Repository, events event.Repository, metrics *Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		people:  people,
		events:  events,
		metrics: metrics,
		logger:  logger,
	}
}

// subjectSkills loads the subject and validates the non-empty-skills
// precondition shared by both ranking kinds.
func (s *Service) subjectSkills(ctx context.Context, subjectID string) (similarity.Set, error) {
	subject, err := s.people.GetByID(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	skills := similarity.NewSet(subject.Skills)
	if skills.Len() == 0 {
		return nil, ErrNoSkills
	}
	return skills, nil
}

// RankPeople returns the ranked person matches for the subject, best first.
func (s *Service) RankPeople(ctx context.Context, subjectID string, opts Options) ([]PersonMatch, error) {
	ctx, endSpan := tracing.StartSpan(ctx, "rank_people")
	var spanErr error
	defer func() { endSpan(spanErr) }()
	start := time.Now()

	skills, err := s.subjectSkills(ctx, subjectID)
	if err != nil {
		spanErr = err
		s.observe(KindPeople, 0, 0, start, err)
		return nil, err
	}

	pool, err := s.people.List(ctx)
	if err != nil {
		spanErr = err
		s.observe(KindPeople, 0, 0, start, err)
		return nil, fmt.Errorf("failed to load candidate pool: %w", err)
	}

	ranked := Rank(skills, pool, subjectID, Extractors[*person.Person]{
		ID:         func(p *person.Person) string { return p.ID },
		Attributes: func(p *person.Person) similarity.Set { return similarity.NewSet(p.Skills) },
		// People carry no popularity signal; the tie-break falls
		// through to the identifier.
	}, opts)

	out := make([]PersonMatch, 0, len(ranked))
	for _, r := range ranked {
		p := r.Candidate
		out = append(out, PersonMatch{
			ID:              p.ID,
			Firstname:       p.Firstname,
			Lastname:        p.Lastname,
			Email:           p.Email,
			Bio:             p.Bio,
			Photo:           p.Photo,
			State:           p.State,
			Industry:        p.Industry,
			ExperienceYears: p.ExperienceYears,
			Overlap:         r.Overlap,
			Jaccard:         similarity.Round3(r.Jaccard),
			Cosine:          similarity.Round3(r.Cosine),
			CommonSkills:    r.Common,
		})
	}

	s.observe(KindPeople, len(pool), len(out), start, nil)
	return out, nil
}

// RankEvents returns the ranked event matches for the subject, best first.
// The popularity tie-break is the attendee count.
func (s *Service) RankEvents(ctx context.Context, subjectID string, opts Options) ([]EventMatch, error) {
	ctx, endSpan := tracing.StartSpan(ctx, "rank_events")
	var spanErr error
	defer func() { endSpan(spanErr) }()
	start := time.Now()

	skills, err := s.subjectSkills(ctx, subjectID)
	if err != nil {
		spanErr = err
		s.observe(KindEvents, 0, 0, start, err)
		return nil, err
	}

	pool, err := s.events.All(ctx)
	if err != nil {
		spanErr = err
		s.observe(KindEvents, 0, 0, start, err)
		return nil, fmt.Errorf("failed to load event pool: %w", err)
	}

	ranked := Rank(skills, pool, "", Extractors[*event.Event]{
		ID:         func(e *event.Event) string { return e.ID },
		Attributes: func(e *event.Event) similarity.Set { return similarity.NewSet(e.Tags) },
		Popularity: func(e *event.Event) int { return len(e.Attendees) },
	}, opts)

	out := make([]EventMatch, 0, len(ranked))
	for _, r := range ranked {
		e := r.Candidate
		out = append(out, EventMatch{
			ID:             e.ID,
			ExternalID:     e.ExternalID,
			Name:           e.Name,
			Time:           e.TimeText,
			Venue:          e.Venue,
			Address:        e.Address,
			Host:           e.Host,
			ImageURL:       e.ImageURL,
			CleanedURL:     e.CleanedURL,
			MapURL:         e.MapURL,
			Tags:           e.Tags,
			Overlap:        r.Overlap,
			Jaccard:        similarity.Round3(r.Jaccard),
			Cosine:         similarity.Round3(r.Cosine),
			CommonTags:     r.Common,
			AttendeesCount: r.Popularity,
		})
	}

	s.observe(KindEvents, len(pool), len(out), start, nil)
	return out, nil
}

func (s *Service) observe(kind string, poolSize, results int, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
	}
	s.metrics.IncRankingsTotal(kind, status)
	if err == nil {
		s.metrics.ObserveRanking(kind, poolSize, results, time.Since(start).Seconds())
	}
}
