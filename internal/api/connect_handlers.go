package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cappuconnect/cappuconnect/internal/connect"
	"github.com/cappuconnect/cappuconnect/internal/middleware"
	"github.com/cappuconnect/cappuconnect/internal/person"
	"github.com/cappuconnect/cappuconnect/internal/validate"
)

// RelationRequest represents the request body for connect and pass actions.
type RelationRequest struct {
	TargetUserID string `json:"target_user_id"`
}

// ConnectResponse represents the response body for a connect action.
type ConnectResponse struct {
	OK     bool `json:"ok"`
	Mutual bool `json:"mutual"`
}

// PassResponse represents the response body for a pass action.
type PassResponse struct {
	OK bool `json:"ok"`
}

// ConnectHandlers holds dependencies for relationship HTTP handlers.
type ConnectHandlers struct {
	connections *connect.Service
}

// NewConnectHandlers creates a new ConnectHandlers instance.
func NewConnectHandlers(connections *connect.Service) *ConnectHandlers {
	return &ConnectHandlers{connections: connections}
}

// decodeRelationRequest parses and validates the shared request body.
func decodeRelationRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req RelationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return "", false
	}
	targetID, err := validate.ID(req.TargetUserID)
	if errors.Is(err, validate.ErrEmpty) {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "target_user_id is required")
		return "", false
	}
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "target_user_id is not a valid identifier")
		return "", false
	}
	return targetID, true
}

// writeRelationError maps relationship action errors onto the error envelope.
func writeRelationError(w http.ResponseWriter, r *http.Request, err error, action string) {
	switch {
	case errors.Is(err, connect.ErrSelfTarget):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeSelfTarget)
		WriteError(w, ctx, http.StatusConflict, ErrCodeSelfTarget, "Cannot "+action+" yourself")
	case errors.Is(err, person.ErrPersonNotFound):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Target user not found")
	default:
		slog.ErrorContext(r.Context(), "relationship action failed", "error", err, "action", action)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to record "+action)
	}
}

// CreateMatch handles POST /match - records that the authenticated user
// wants to connect with the target, and reports whether the connection
// is now mutual.
func (h *ConnectHandlers) CreateMatch(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	targetID, ok := decodeRelationRequest(w, r)
	if !ok {
		return
	}

	mutual, err := h.connections.Connect(r.Context(), userID, targetID)
	if err != nil {
		writeRelationError(w, r, err, "connect with")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(ConnectResponse{OK: true, Mutual: mutual}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode connect response", "error", err)
	}
}

// CreatePass handles POST /pass - records that the authenticated user
// passed on the target.
func (h *ConnectHandlers) CreatePass(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	targetID, ok := decodeRelationRequest(w, r)
	if !ok {
		return
	}

	if err := h.connections.Pass(r.Context(), userID, targetID); err != nil {
		writeRelationError(w, r, err, "pass on")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(PassResponse{OK: true}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode pass response", "error", err)
	}
}
