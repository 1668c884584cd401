package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cappuconnect/cappuconnect/internal/middleware"
	"github.com/cappuconnect/cappuconnect/internal/person"
	"github.com/cappuconnect/cappuconnect/internal/validate"
)

// PersonHandlers holds dependencies for user profile HTTP handlers.
type PersonHandlers struct {
	personRepo person.Repository
}

// NewPersonHandlers creates a new PersonHandlers instance.
func NewPersonHandlers(personRepo person.Repository) *PersonHandlers {
	return &PersonHandlers{personRepo: personRepo}
}

// GetUser handles GET /users/{id} - fetches the authenticated user's own
// profile. Requests for any other user's profile are forbidden. The
// password hash is never serialized.
func (h *PersonHandlers) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := validate.ID(strings.TrimPrefix(r.URL.Path, "/users/"))
	if err != nil || strings.Contains(id, "/") {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "User ID is required")
		return
	}

	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}
	if userID != id {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeForbidden)
		WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "Cannot view another user's profile")
		return
	}

	p, err := h.personRepo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, person.ErrPersonNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "User not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to get user", "error", err, "user_id", id)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve user")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode user response", "error", err)
	}
}
