package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/cappuconnect/cappuconnect/internal/connect"
	"github.com/cappuconnect/cappuconnect/internal/event"
	"github.com/cappuconnect/cappuconnect/internal/match"
	"github.com/cappuconnect/cappuconnect/internal/middleware"
	"github.com/cappuconnect/cappuconnect/internal/person"
)

// EventHandlers holds dependencies for event HTTP handlers.
type EventHandlers struct {
	matcher     *match.Service
	connections *connect.Service
	eventRepo   event.Repository
}

// NewEventHandlers creates a new EventHandlers instance.
func NewEventHandlers(matcher *match.Service, connections *connect.Service, eventRepo event.Repository) *EventHandlers {
	return &EventHandlers{
		matcher:     matcher,
		connections: connections,
		eventRepo:   eventRepo,
	}
}

// EventQueryResponse represents the response for event affinity ranking.
type EventQueryResponse struct {
	Matches []match.EventMatch `json:"matches"`
	Count   int                `json:"count"`
}

// CatalogEvent represents one event in a catalog listing.
// The raw attendee list is never exposed; only its size, and only when
// counts are requested.
type CatalogEvent struct {
	ID             string   `json:"id"`
	ExternalID     int      `json:"external_id"`
	Name           string   `json:"name"`
	Time           string   `json:"time"`
	Host           string   `json:"host"`
	Venue          string   `json:"venue"`
	Address        string   `json:"address"`
	CleanedURL     string   `json:"cleaned_url,omitempty"`
	ImageURL       string   `json:"image_url,omitempty"`
	MapURL         string   `json:"map_url,omitempty"`
	Tags           []string `json:"tags"`
	AttendeesCount *int     `json:"attendees_count,omitempty"`
}

// CatalogResponse represents the response for the catalog listing.
type CatalogResponse struct {
	Events   []CatalogEvent `json:"events"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Total    *int           `json:"total,omitempty"`
}

// AttendRequest represents the request body for the attendance toggle.
type AttendRequest struct {
	Action string `json:"action"` // "attend" or "leave"
}

// AttendResponse represents the response body for the attendance toggle.
type AttendResponse struct {
	Success   bool `json:"success"`
	Attending bool `json:"attending"`
}

// QueryEvents handles GET /events/query - ranks catalog events against the
// authenticated user by shared tags.
func (h *EventHandlers) QueryEvents(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	opts, msg := parseRankOptions(r)
	if msg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, msg)
		return
	}

	matches, err := h.matcher.RankEvents(r.Context(), userID, opts)
	if err != nil {
		switch {
		case errors.Is(err, person.ErrPersonNotFound):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "User not found")
		case errors.Is(err, match.ErrNoSkills):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodePrecondition)
			WriteError(w, ctx, http.StatusUnprocessableEntity, ErrCodePrecondition, "Add skills to your profile to get event matches")
		default:
			slog.ErrorContext(r.Context(), "failed to rank events", "error", err, "user_id", userID)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to compute event matches")
		}
		return
	}

	response := EventQueryResponse{
		Matches: matches,
		Count:   len(matches),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode event query response", "error", err)
	}
}

// parseCatalogFilter reads catalog listing parameters from the query string.
func parseCatalogFilter(r *http.Request) (event.Filter, bool, string) {
	query := r.URL.Query()

	f := event.Filter{
		Name:         strings.TrimSpace(query.Get("name")),
		Host:         strings.TrimSpace(query.Get("host")),
		Venue:        strings.TrimSpace(query.Get("venue")),
		Tag:          strings.TrimSpace(query.Get("tag")),
		TimeExact:    strings.TrimSpace(query.Get("time")),
		TimeContains: strings.TrimSpace(query.Get("timeContains")),
		TimeFrom:     strings.TrimSpace(query.Get("timeFrom")),
		TimeTo:       strings.TrimSpace(query.Get("timeTo")),
		SortBy:       strings.TrimSpace(query.Get("sortBy")),
		Direction:    strings.TrimSpace(query.Get("direction")),
	}

	if raw := query.Get("externalId"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return f, false, "externalId must be an integer"
		}
		f.ExternalID = &n
	}
	if raw := query.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return f, false, "page must be an integer"
		}
		f.Page = n
	}
	if raw := query.Get("pageSize"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return f, false, "pageSize must be an integer"
		}
		f.PageSize = n
	}

	withCounts := query.Get("withCounts") == "true"
	return f, withCounts, ""
}

// ListEvents handles GET /events - lists the event catalog with substring
// filters, time-range filters, whitelisted sorting, and pagination.
// withCounts=true additionally returns the total matching count and
// per-event attendee counts.
func (h *EventHandlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	f, withCounts, msg := parseCatalogFilter(r)
	if msg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, msg)
		return
	}
	f = f.Normalize()

	events, err := h.eventRepo.Query(r.Context(), f)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list events", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list events")
		return
	}

	response := CatalogResponse{
		Events:   make([]CatalogEvent, 0, len(events)),
		Page:     f.Page,
		PageSize: f.PageSize,
	}
	for _, e := range events {
		ce := CatalogEvent{
			ID:         e.ID,
			ExternalID: e.ExternalID,
			Name:       e.Name,
			Time:       e.TimeText,
			Host:       e.Host,
			Venue:      e.Venue,
			Address:    e.Address,
			CleanedURL: e.CleanedURL,
			ImageURL:   e.ImageURL,
			MapURL:     e.MapURL,
			Tags:       e.Tags,
		}
		if withCounts {
			n := len(e.Attendees)
			ce.AttendeesCount = &n
		}
		response.Events = append(response.Events, ce)
	}

	if withCounts {
		total, err := h.eventRepo.Count(r.Context(), f)
		if err != nil {
			slog.ErrorContext(r.Context(), "failed to count events", "error", err)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to count events")
			return
		}
		response.Total = &total
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode catalog response", "error", err)
	}
}

// ToggleAttendance handles POST /events/{id}/attend - applies an attend or
// leave action for the authenticated user on an event.
func (h *EventHandlers) ToggleAttendance(w http.ResponseWriter, r *http.Request) {
	// Extract event ID from URL path
	pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/events/"), "/")
	if len(pathParts) < 2 || pathParts[0] == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Event ID is required")
		return
	}
	eventID := pathParts[0]

	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	var req AttendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	attending, err := h.connections.ToggleAttendance(r.Context(), eventID, userID, strings.TrimSpace(req.Action))
	if err != nil {
		switch {
		case errors.Is(err, connect.ErrInvalidAction):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidAction)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidAction, "action must be 'attend' or 'leave'")
		case errors.Is(err, event.ErrEventNotFound):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Event not found")
		default:
			slog.ErrorContext(r.Context(), "failed to toggle attendance", "error", err, "event_id", eventID)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to update attendance")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(AttendResponse{Success: true, Attending: attending}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode attend response", "error", err)
	}
}
