// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// DatabaseURL selects Postgres; when empty the server falls back to
	// in-memory repositories, which is intended for local development only.
	DatabaseURL string `koanf:"database_url"`

	// Table names, overridable for shared databases.
	UsersTable  string `koanf:"users_table"`
	EventsTable string `koanf:"events_table"`

	// JWTPreviousSecret supports zero-downtime key rotation; tokens
	// signed with either secret validate.
	JWTSecret         string `koanf:"jwt_secret"`
	JWTPreviousSecret string `koanf:"jwt_previous_secret"`

	// RedisURL enables distributed rate limiting. Optional; when empty
	// the server uses an in-memory rate limit store.
	RedisURL string `koanf:"redis_url"`

	TracingEnabled      bool    `koanf:"tracing_enabled"`
	TracingExporter     string  `koanf:"tracing_exporter"` // otlp-grpc or otlp-http
	OTLPEndpoint        string  `koanf:"otlp_endpoint"`
	TracingSamplingRate float64 `koanf:"tracing_sampling_rate"`
	TracingInsecure     bool    `koanf:"tracing_insecure"`

	RateLimitEnabled bool `koanf:"rate_limit_enabled"`

	// CORSAllowedOrigins empty disables CORS handling entirely.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// ProfilingEnabled exposes pprof endpoints. Development only.
	ProfilingEnabled bool `koanf:"profiling_enabled"`
}

// Configuration validation errors.
var (
	ErrMissingJWTSecret  = errors.New("JWT_SECRET is required")
	ErrInvalidPort       = errors.New("PORT must be a valid integer")
	ErrInvalidSampleRate = errors.New("TRACING_SAMPLING_RATE must be between 0 and 1")
)

// Default values for non-secret configuration.
const (
	DefaultPort            = 8080
	DefaultEnv             = "development"
	DefaultUsersTable      = "users"
	DefaultEventsTable     = "events"
	DefaultTracingExporter = "otlp-grpc"
	DefaultSamplingRate    = 1.0
)

// Load merges an optional YAML file with environment variables, env
// taking precedence, and validates the result. The error slice carries
// every problem found so the operator sees them all at once.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	port, err := intFrom([]string{"CAPPU_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	samplingRate, err := floatFrom("TRACING_SAMPLING_RATE", k.Float64("tracing_sampling_rate"), DefaultSamplingRate)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	cfg := &Config{
		Port:                port,
		Env:                 strFrom([]string{"CAPPU_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:         strFrom([]string{"DATABASE_URL"}, k.String("database_url"), ""),
		UsersTable:          strFrom([]string{"USERS_TABLE"}, k.String("users_table"), DefaultUsersTable),
		EventsTable:         strFrom([]string{"EVENTS_TABLE"}, k.String("events_table"), DefaultEventsTable),
		JWTSecret:           strFrom([]string{"JWT_SECRET"}, k.String("jwt_secret"), ""),
		JWTPreviousSecret:   strFrom([]string{"JWT_PREVIOUS_SECRET"}, k.String("jwt_previous_secret"), ""),
		RedisURL:            strFrom([]string{"REDIS_URL"}, k.String("redis_url"), ""),
		TracingEnabled:      boolFrom("TRACING_ENABLED", k, "tracing_enabled", false),
		TracingExporter:     strFrom([]string{"TRACING_EXPORTER"}, k.String("tracing_exporter"), DefaultTracingExporter),
		OTLPEndpoint:        strFrom([]string{"OTLP_ENDPOINT"}, k.String("otlp_endpoint"), ""),
		TracingSamplingRate: samplingRate,
		TracingInsecure:     boolFrom("TRACING_INSECURE", k, "tracing_insecure", false),
		RateLimitEnabled:    boolFrom("RATE_LIMIT_ENABLED", k, "rate_limit_enabled", true),
		CORSAllowedOrigins:  listFrom("CORS_ALLOWED_ORIGINS", k, "cors_allowed_origins"),
		ProfilingEnabled:    boolFrom("PROFILING_ENABLED", k, "profiling_enabled", false),
	}

	return cfg, append(loadErrs, cfg.Validate()...)
}

// strFrom returns the first set environment variable, then the file
// value, then the default.
func strFrom(envKeys []string, fileVal, defaultVal string) string {
	for _, key := range envKeys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	if fileVal != "" {
		return fileVal
	}
	return defaultVal
}

func intFrom(envKeys []string, fileVal, defaultVal int) (int, error) {
	for _, key := range envKeys {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
		}
		return n, nil
	}
	if fileVal != 0 {
		return fileVal, nil
	}
	return defaultVal, nil
}

func floatFrom(envKey string, fileVal, defaultVal float64) (float64, error) {
	if v := os.Getenv(envKey); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid float: %w", envKey, err)
		}
		return f, nil
	}
	if fileVal != 0 {
		return fileVal, nil
	}
	return defaultVal, nil
}

// listFrom parses the environment variable as a comma separated list,
// dropping empty entries, before falling back to the file value.
func listFrom(envKey string, k *koanf.Koanf, fileKey string) []string {
	v := os.Getenv(envKey)
	if v == "" {
		return k.Strings(fileKey)
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func boolFrom(envKey string, k *koanf.Koanf, fileKey string, defaultVal bool) bool {
	switch strings.ToLower(os.Getenv(envKey)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	if k.Exists(fileKey) {
		return k.Bool(fileKey)
	}
	return defaultVal
}

// Validate reports every missing or out-of-range value.
func (c *Config) Validate() []error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if c.TracingSamplingRate < 0 || c.TracingSamplingRate > 1 {
		errs = append(errs, ErrInvalidSampleRate)
	}
	return errs
}

// LogSummary renders the configuration for the startup log line with
// every secret masked.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                  strconv.Itoa(c.Port),
		"env":                   c.Env,
		"database_url":          maskURL(c.DatabaseURL),
		"users_table":           c.UsersTable,
		"events_table":          c.EventsTable,
		"jwt_secret":            maskSecret(c.JWTSecret),
		"jwt_previous_secret":   maskSecret(c.JWTPreviousSecret),
		"redis_url":             maskURL(c.RedisURL),
		"tracing_enabled":       strconv.FormatBool(c.TracingEnabled),
		"tracing_exporter":      c.TracingExporter,
		"otlp_endpoint":         c.OTLPEndpoint,
		"tracing_sampling_rate": fmt.Sprintf("%g", c.TracingSamplingRate),
		"rate_limit_enabled":    strconv.FormatBool(c.RateLimitEnabled),
		"cors_allowed_origins":  strings.Join(c.CORSAllowedOrigins, ","),
		"profiling_enabled":     strconv.FormatBool(c.ProfilingEnabled),
	}
}

// maskSecret keeps the first 4 characters of secrets long enough to
// stay unguessable and blanks everything shorter.
func maskSecret(s string) string {
	switch {
	case s == "":
		return "<not set>"
	case len(s) < 8:
		return "****"
	default:
		return s[:4] + "****"
	}
}

// maskURL hides the password in user:password@host connection URLs.
func maskURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	creds, _, found := strings.Cut(rest, "@")
	if !found {
		return s
	}
	user, _, found := strings.Cut(creds, ":")
	if !found {
		return s
	}

	return s[:schemeEnd+3] + user + ":****" + s[schemeEnd+3+len(creds):]
}
