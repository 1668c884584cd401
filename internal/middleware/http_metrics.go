package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// staticRoutes are recorded under their literal path.
var staticRoutes = map[string]bool{
	"/":              true,
	"/events":        true,
	"/events/query":  true,
	"/matches/query": true,
	"/match":         true,
	"/pass":          true,
	"/health":        true,
	"/ready":         true,
	"/metrics":       true,
}

// normalizePath folds dynamic path segments into route patterns so that
// every event or user ID lands on a single metric series. Unknown paths
// pass through untouched.
func normalizePath(path string) string {
	if staticRoutes[path] {
		return path
	}

	switch {
	case strings.HasPrefix(path, "/events/"):
		parts := strings.Split(path, "/")
		switch {
		case len(parts) == 4 && parts[3] == "attend":
			return "/events/{id}/attend"
		case len(parts) == 3 && parts[2] != "":
			return "/events/{id}"
		}
	case strings.HasPrefix(path, "/users/"):
		if parts := strings.Split(path, "/"); len(parts) == 3 && parts[2] != "" {
			return "/users/{id}"
		}
	}

	return path
}

// metricsResponseWriter records the status code and bytes written so the
// middleware can label and size the finished request.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

// WriteHeader keeps the first status code; later calls are ignored, the
// same way net/http sends a single status line.
func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

// HTTPMetrics records duration, sizes, and counts for every served
// request. The kubelet probe routes /health and /ready are skipped so
// probe traffic does not drown out real request series.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			mrw := newMetricsResponseWriter(w)

			var requestSize int64
			if cl := r.Header.Get("Content-Length"); cl != "" {
				if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
					requestSize = n
				}
			}

			next.ServeHTTP(mrw, r)

			metrics.ObserveHTTPRequest(
				r.Method,
				normalizePath(r.URL.Path),
				strconv.Itoa(mrw.statusCode),
				time.Since(start).Seconds(),
				requestSize,
				mrw.size,
			)
		})
	}
}
