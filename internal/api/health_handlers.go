package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/cappuconnect/cappuconnect/internal/middleware"
)

const readinessTimeout = 5 * time.Second

// HealthChecker is implemented by dependencies that can report their
// own availability, such as the database pool or the Redis client.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandlers serves the liveness and readiness probes. Checkers left
// nil are treated as healthy, which covers the in-memory configurations.
type HealthHandlers struct {
	dbChecker      HealthChecker
	redisChecker   HealthChecker
	metricsEnabled bool
}

// HealthHandlersConfig configures the health check handlers.
type HealthHandlersConfig struct {
	DBChecker      HealthChecker
	RedisChecker   HealthChecker
	MetricsEnabled bool
}

// NewHealthHandlers creates a new health check handler.
func NewHealthHandlers(config HealthHandlersConfig) *HealthHandlers {
	return &HealthHandlers{
		dbChecker:      config.DBChecker,
		redisChecker:   config.RedisChecker,
		metricsEnabled: config.MetricsEnabled,
	}
}

// HealthResponse is the probe payload shared by /health and /ready.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Health handles GET /health. It answers 200 whenever the process can
// serve a request; no dependencies are consulted.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	writeProbe(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Checks:    map[string]string{"runtime": "ok"},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready. Each configured dependency is probed with a
// shared deadline; any failure turns the response into a 503 so the load
// balancer stops routing traffic here.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	checks := map[string]string{
		"database": probe(ctx, "database", h.dbChecker),
		"redis":    probe(ctx, "redis", h.redisChecker),
		"metrics":  "ok",
	}

	status, statusCode := "healthy", http.StatusOK
	for _, result := range checks {
		if result != "ok" {
			status, statusCode = "unhealthy", http.StatusServiceUnavailable
			break
		}
	}

	writeProbe(w, statusCode, HealthResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// probe runs a single dependency check. A nil checker means the
// dependency is not wired in and the in-memory fallback is in use.
func probe(ctx context.Context, name string, checker HealthChecker) string {
	if checker == nil {
		return "ok"
	}
	if err := checker.HealthCheck(ctx); err != nil {
		slog.WarnContext(ctx, name+" health check failed", "error", err)
		return "error"
	}
	return "ok"
}

func writeProbe(w http.ResponseWriter, statusCode int, resp HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode probe response", "error", err)
	}
}
