package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func profilingStack(enabled bool, env string) http.Handler {
	app := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("app"))
	})
	return Profiling(ProfilingConfig{Enabled: enabled, Environment: env})(app)
}

func TestProfiling_PassthroughWhenNotServing(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		env     string
		path    string
	}{
		{"disabled ignores pprof path", false, "development", "/debug/pprof/"},
		{"production refuses even when enabled", true, "production", "/debug/pprof/"},
		{"prod alias also refused", true, "prod", "/debug/pprof/heap"},
		{"enabled leaves app routes alone", true, "development", "/matches/query"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			profilingStack(tt.enabled, tt.env).ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if rec.Body.String() != "app" {
				t.Errorf("request reached pprof instead of the app, body %q", rec.Body.String())
			}
		})
	}
}

func TestProfiling_ServesPprofInDevelopment(t *testing.T) {
	stack := profilingStack(true, "development")

	t.Run("index", func(t *testing.T) {
		rec := httptest.NewRecorder()
		stack.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		body := rec.Body.String()
		if body == "app" {
			t.Fatal("index request fell through to the app")
		}
		if !strings.Contains(body, "pprof") && !strings.Contains(body, "Profile") {
			t.Errorf("index body does not look like a pprof page: %q", body)
		}
	})

	// Snapshot profiles return immediately, unlike the CPU profile.
	for _, path := range []string{"/debug/pprof/heap", "/debug/pprof/goroutine", "/debug/pprof/cmdline"} {
		t.Run(strings.TrimPrefix(path, "/debug/pprof/"), func(t *testing.T) {
			rec := httptest.NewRecorder()
			stack.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

			if rec.Code != http.StatusOK {
				t.Errorf("GET %s: status = %d, want 200", path, rec.Code)
			}
			if rec.Body.String() == "app" {
				t.Errorf("GET %s fell through to the app", path)
			}
		})
	}
}

func TestProfilingStatus(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		rec := httptest.NewRecorder()
		ProfilingStatus(ProfilingConfig{Enabled: false, Environment: "production"}).
			ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/profiling/status", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		body := rec.Body.String()
		if !strings.Contains(body, `"profiling_enabled": false`) {
			t.Errorf("body missing disabled flag: %q", body)
		}
		if !strings.Contains(body, `"status": "disabled"`) {
			t.Errorf("body missing disabled status: %q", body)
		}
	})

	t.Run("enabled", func(t *testing.T) {
		rec := httptest.NewRecorder()
		ProfilingStatus(ProfilingConfig{Enabled: true, Environment: "development"}).
			ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/profiling/status", nil))

		body := rec.Body.String()
		if !strings.Contains(body, `"profiling_enabled": true`) {
			t.Errorf("body missing enabled flag: %q", body)
		}
		if !strings.Contains(body, `"status": "enabled"`) {
			t.Errorf("body missing enabled status: %q", body)
		}
		if !strings.Contains(body, "/debug/pprof/") {
			t.Errorf("body missing the endpoints prefix: %q", body)
		}
	})
}

func BenchmarkProfiling_AppRoute(b *testing.B) {
	app := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	b.Run("bare", func(b *testing.B) {
		req := httptest.NewRequest(http.MethodGet, "/matches/query", nil)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			app.ServeHTTP(httptest.NewRecorder(), req)
		}
	})

	b.Run("wrapped_disabled", func(b *testing.B) {
		stack := Profiling(ProfilingConfig{Enabled: false, Environment: "development"})(app)
		req := httptest.NewRequest(http.MethodGet, "/matches/query", nil)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			stack.ServeHTTP(httptest.NewRecorder(), req)
		}
	})

	b.Run("wrapped_enabled", func(b *testing.B) {
		stack := Profiling(ProfilingConfig{Enabled: true, Environment: "development"})(app)
		req := httptest.NewRequest(http.MethodGet, "/matches/query", nil)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			stack.ServeHTTP(httptest.NewRecorder(), req)
		}
	})
}
