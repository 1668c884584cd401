package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"strings"
)

// ProfilingConfig configures the profiling middleware.
type ProfilingConfig struct {
	// Enabled controls whether profiling endpoints are exposed.
	// Profiling exposes runtime internals and must stay off in production.
	Enabled bool

	// Environment gates a second safety check; "production"/"prod" always
	// disable profiling regardless of Enabled.
	Environment string
}

func productionEnv(env string) bool {
	return env == "production" || env == "prod"
}

// pprofHandlers are the profiles with dedicated handlers; everything
// else under /debug/pprof/, including the index and the named runtime
// profiles, goes through pprof.Index.
var pprofHandlers = map[string]http.HandlerFunc{
	"/debug/pprof/cmdline": pprof.Cmdline,
	"/debug/pprof/profile": pprof.Profile,
	"/debug/pprof/symbol":  pprof.Symbol,
	"/debug/pprof/trace":   pprof.Trace,
}

// Profiling serves pprof endpoints under /debug/pprof/* when enabled
// and outside production. All other paths fall through to next.
func Profiling(config ProfilingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !config.Enabled {
			return next
		}
		if productionEnv(config.Environment) {
			slog.Error("refusing to enable profiling in production environment",
				"environment", config.Environment,
			)
			return next
		}

		slog.Warn("profiling endpoints enabled",
			"environment", config.Environment,
			"endpoints", "/debug/pprof/*",
		)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/debug/pprof") {
				next.ServeHTTP(w, r)
				return
			}
			if h, ok := pprofHandlers[r.URL.Path]; ok {
				h(w, r)
				return
			}
			pprof.Index(w, r)
		})
	}
}

// ProfilingStatus returns a handler that reports the profiling
// configuration, useful for verifying an environment before profiling it.
func ProfilingStatus(config ProfilingConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		status := "disabled"
		if config.Enabled {
			status = "enabled"
		}

		body := fmt.Sprintf(`{
  "profiling_enabled": %t,
  "environment": %q,
  "status": %q,
  "endpoints_prefix": "/debug/pprof/"
}`, config.Enabled, config.Environment, status)

		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(body)); err != nil {
			slog.Error("failed to write profiling status response", "error", err)
		}
	}
}
