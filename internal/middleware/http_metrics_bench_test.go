package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func benchStack(b *testing.B) http.Handler {
	b.Helper()
	m := NewMetrics()
	if err := m.Register(prometheus.NewRegistry()); err != nil {
		b.Fatalf("Register: %v", err)
	}
	return HTTPMetrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"matches":[]}`))
	}))
}

func BenchmarkHTTPMetrics(b *testing.B) {
	b.Run("baseline_no_middleware", func(b *testing.B) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"matches":[]}`))
		})
		req := httptest.NewRequest(http.MethodPost, "/matches/query", nil)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			handler.ServeHTTP(httptest.NewRecorder(), req)
		}
	})

	b.Run("instrumented", func(b *testing.B) {
		stack := benchStack(b)
		req := httptest.NewRequest(http.MethodPost, "/matches/query", nil)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			stack.ServeHTTP(httptest.NewRecorder(), req)
		}
	})

	// Probe paths are excluded from collection and should stay cheap.
	b.Run("health_probe_excluded", func(b *testing.B) {
		stack := benchStack(b)
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			stack.ServeHTTP(httptest.NewRecorder(), req)
		}
	})

	// Rotating through routes exercises path normalization and label lookup.
	b.Run("mixed_routes", func(b *testing.B) {
		stack := benchStack(b)
		reqs := []*http.Request{
			httptest.NewRequest(http.MethodGet, "/events", nil),
			httptest.NewRequest(http.MethodPost, "/matches/query", nil),
			httptest.NewRequest(http.MethodPost, "/events/e-7/attend", nil),
			httptest.NewRequest(http.MethodPost, "/match", nil),
		}
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			stack.ServeHTTP(httptest.NewRecorder(), reqs[i%len(reqs)])
		}
	})
}
