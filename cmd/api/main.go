// Package main is the entry point for the API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/cappuconnect/cappuconnect/internal/api"
	"github.com/cappuconnect/cappuconnect/internal/auth"
	"github.com/cappuconnect/cappuconnect/internal/config"
	"github.com/cappuconnect/cappuconnect/internal/connect"
	"github.com/cappuconnect/cappuconnect/internal/db"
	"github.com/cappuconnect/cappuconnect/internal/event"
	"github.com/cappuconnect/cappuconnect/internal/health"
	"github.com/cappuconnect/cappuconnect/internal/match"
	"github.com/cappuconnect/cappuconnect/internal/middleware"
	"github.com/cappuconnect/cappuconnect/internal/person"
	"github.com/cappuconnect/cappuconnect/internal/tracing"
)

func main() {
	configFile := flag.String("config", "", "path to optional YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Cappuconnect API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configFile)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	// Tracing
	tracerProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "cappuconnect-api",
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplingRate: cfg.TracingSamplingRate,
		InsecureMode: cfg.TracingInsecure,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			logger.Error("failed to shut down tracing", "error", err)
		}
	}()

	// Repositories. Without DATABASE_URL the server runs on in-memory
	// repositories, which is intended for local development only.
	var (
		personRepo person.Repository
		eventRepo  event.Repository
		dbChecker  api.HealthChecker
	)
	if cfg.DatabaseURL != "" {
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer conn.Close()

		personRepo = person.NewPostgresRepository(conn, cfg.UsersTable, logger)
		eventRepo = event.NewPostgresRepository(conn, cfg.EventsTable, logger)
		dbChecker = health.NewDBChecker(conn)
		logger.Info("using postgres repositories", "users_table", cfg.UsersTable, "events_table", cfg.EventsTable)
	} else {
		personRepo = person.NewInMemoryRepository()
		eventRepo = event.NewInMemoryRepository()
		logger.Warn("DATABASE_URL not set, using in-memory repositories")
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		logger.Error("failed to register http metrics", "error", err)
		os.Exit(1)
	}
	rankMetrics := match.NewMetrics()
	if err := rankMetrics.Register(registry); err != nil {
		logger.Error("failed to register ranking metrics", "error", err)
		os.Exit(1)
	}

	// Rate limit store. Redis when configured, otherwise per-process.
	var (
		rateLimitStore middleware.RateLimitStore
		redisChecker   api.HealthChecker
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		client := redis.NewClient(opts)
		defer client.Close()

		rateLimitStore = middleware.NewRedisRateLimitStore(client).WithMetrics(httpMetrics)
		redisChecker = health.NewRedisChecker(client)
		logger.Info("using redis rate limit store")
	} else {
		memStore := middleware.NewInMemoryRateLimitStore()
		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				memStore.Cleanup()
			}
		}()
		rateLimitStore = memStore
	}

	// Services
	jwtService := auth.NewJWTServiceWithRotation(cfg.JWTSecret, cfg.JWTPreviousSecret)
	matcher := match.NewService(personRepo, eventRepo, rankMetrics, logger)
	connections := connect.NewService(personRepo, eventRepo, logger)

	// Handlers
	matchHandlers := api.NewMatchHandlers(matcher)
	connectHandlers := api.NewConnectHandlers(connections)
	eventHandlers := api.NewEventHandlers(matcher, connections, eventRepo)
	personHandlers := api.NewPersonHandlers(personRepo)
	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{
		DBChecker:      dbChecker,
		RedisChecker:   redisChecker,
		MetricsEnabled: true,
	})

	// Per-route middleware. Query endpoints walk the whole candidate pool,
	// so they get a tighter limit than mutations.
	authRequired := middleware.Auth(jwtService)
	queryLimit := func(next http.Handler) http.Handler { return next }
	mutationLimit := queryLimit
	if cfg.RateLimitEnabled {
		queryLimit = middleware.RateLimiter(rateLimitStore, middleware.DefaultQueryLimit(), middleware.UserKeyFunc(), httpMetrics)
		mutationLimit = middleware.RateLimiter(rateLimitStore, middleware.DefaultMutationLimit(), middleware.UserKeyFunc(), httpMetrics)
	}

	mux := http.NewServeMux()

	mux.Handle("/matches/query", authRequired(queryLimit(http.HandlerFunc(matchHandlers.QueryMatches))))
	mux.Handle("/events/query", authRequired(queryLimit(http.HandlerFunc(eventHandlers.QueryEvents))))
	mux.Handle("/match", authRequired(mutationLimit(http.HandlerFunc(connectHandlers.CreateMatch))))
	mux.Handle("/pass", authRequired(mutationLimit(http.HandlerFunc(connectHandlers.CreatePass))))

	mux.HandleFunc("/events", eventHandlers.ListEvents)
	mux.Handle("/events/", authRequired(mutationLimit(http.HandlerFunc(eventHandlers.ToggleAttendance))))
	mux.Handle("/users/", authRequired(http.HandlerFunc(personHandlers.GetUser)))

	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
			api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"cappuconnect-api","version":"0.1.0"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	// Outer middleware: RequestID -> Tracing -> Logging -> HTTPMetrics -> CORS
	var handler http.Handler = mux
	handler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowCredentials: true,
		MaxAge:           300,
	})(handler)
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Tracing("cappuconnect-api")(handler)
	handler = middleware.RequestID(handler)

	if cfg.ProfilingEnabled {
		handler = middleware.Profiling(middleware.ProfilingConfig{
			Enabled:     true,
			Environment: cfg.Env,
		})(handler)
	}

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
