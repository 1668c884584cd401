// Package api provides HTTP handlers for the Cappuconnect API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cappuconnect/cappuconnect/internal/match"
	"github.com/cappuconnect/cappuconnect/internal/middleware"
	"github.com/cappuconnect/cappuconnect/internal/person"
)

// MatchHandlers holds dependencies for ranking HTTP handlers.
type MatchHandlers struct {
	matcher *match.Service
}

// NewMatchHandlers creates a new MatchHandlers instance.
func NewMatchHandlers(matcher *match.Service) *MatchHandlers {
	return &MatchHandlers{matcher: matcher}
}

// MatchQueryResponse represents the response for person ranking.
type MatchQueryResponse struct {
	Matches []match.PersonMatch `json:"matches"`
	Count   int                 `json:"count"`
}

// parseRankOptions reads limit and minOverlap query parameters.
// A missing parameter keeps its default; a supplied value is taken
// literally and Clamp forces it into range, so limit=0 is served as
// the minimum rather than the default. A non-numeric value is a
// validation error.
func parseRankOptions(r *http.Request) (match.Options, string) {
	query := r.URL.Query()

	opts := match.DefaultOptions()
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return opts, "limit must be an integer"
		}
		opts.Limit = n
	}
	if raw := query.Get("minOverlap"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return opts, "minOverlap must be an integer"
		}
		opts.MinOverlap = n
	}
	return opts, ""
}

// QueryMatches handles GET /matches/query - ranks other people against the
// authenticated user by shared skills.
func (h *MatchHandlers) QueryMatches(w http.ResponseWriter, r *http.Request) {
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

	matches, err := h.matcher.RankPeople(r.Context(), userID, opts)
	if err != nil {
		switch {
		case errors.Is(err, person.ErrPersonNotFound):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "User not found")
		case errors.Is(err, match.ErrNoSkills):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodePrecondition)
			WriteError(w, ctx, http.StatusUnprocessableEntity, ErrCodePrecondition, "Add skills to your profile to get matches")
		default:
			slog.ErrorContext(r.Context(), "failed to rank people", "error", err, "user_id", userID)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to compute matches")
		}
		return
	}

	response := MatchQueryResponse{
		Matches: matches,
		Count:   len(matches),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode match response", "error", err)
	}
}
