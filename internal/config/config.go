// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, webhook processing
// deadlines, the LLM backend, the messaging-platform credentials, rate
// limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "group-matchmaker")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// LLMConfig defines the Gemini backend used for validation judgments,
// qualitative compatibility scoring, and constrained persona chat.
type LLMConfig struct {
	APIKey      string  // GEMINI_API_KEY
	Model       string  // GEMINI_MODEL (e.g. "gemini-2.5-flash")
	Temperature float64 // GEMINI_TEMPERATURE in [0..2]
	MaxTokens   int     // GEMINI_MAX_TOKENS (> 0)
}

// PlatformConfig defines the external messaging-platform API used to send
// replies and fetch conversation history.
type PlatformConfig struct {
	BaseURL      string        // PLATFORM_BASE_URL
	APIKey       string        // PLATFORM_API_KEY
	APISecret    string        // PLATFORM_API_SECRET
	AccountID    string        // PLATFORM_ACCOUNT_ID
	HTTPTimeout  time.Duration // PLATFORM_HTTP_TIMEOUT per-request cap
	HistoryLimit int           // PLATFORM_HISTORY_LIMIT messages fetched per turn
}

// WebhookConfig bounds the asynchronous continuation of inbound webhooks.
type WebhookConfig struct {
	HistoryTimeout time.Duration // WEBHOOK_HISTORY_TIMEOUT (history fetch race)
	ProcessTimeout time.Duration // WEBHOOK_PROCESS_TIMEOUT (domain processing race)
	DedupTTL       time.Duration // WEBHOOK_DEDUP_TTL (message-id ledger window)
}

// MatchingConfig bounds resource usage of explicit matching runs.
type MatchingConfig struct {
	LLMRPS        float64 // MATCH_LLM_RPS qualitative calls per second
	LLMBurst      int     // MATCH_LLM_BURST
	MaxConcurrent int     // MATCH_MAX_CONCURRENT in-flight qualitative calls
	TopKDefault   int     // MATCH_TOP_K default K for per-group ranking
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	ShutdownGrace     time.Duration // drain window for in-flight continuations
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DBPath       string // SQLite path
	DefaultAgent string // agent id used when the payload omits one

	// Domain
	LLM      LLMConfig
	Platform PlatformConfig
	Webhook  WebhookConfig
	Matching MatchingConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		ShutdownGrace:     getdur("SHUTDOWN_GRACE", 15*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath:       getenv("DB_PATH", "app.db"),
		DefaultAgent: getenv("DEFAULT_AGENT", "mandy"),

		// LLM backend
		LLM: LLMConfig{
			APIKey:      getenv("GEMINI_API_KEY", ""),
			Model:       getenv("GEMINI_MODEL", "gemini-2.5-flash"),
			Temperature: getfloat("GEMINI_TEMPERATURE", 0.7),
			MaxTokens:   getint("GEMINI_MAX_TOKENS", 1024),
		},

		// Messaging platform
		Platform: PlatformConfig{
			BaseURL:      getenv("PLATFORM_BASE_URL", "https://api.a1base.com/v1"),
			APIKey:       getenv("PLATFORM_API_KEY", ""),
			APISecret:    getenv("PLATFORM_API_SECRET", ""),
			AccountID:    getenv("PLATFORM_ACCOUNT_ID", ""),
			HTTPTimeout:  getdur("PLATFORM_HTTP_TIMEOUT", 10*time.Second),
			HistoryLimit: getint("PLATFORM_HISTORY_LIMIT", 20),
		},

		// Webhook processing
		Webhook: WebhookConfig{
			HistoryTimeout: getdur("WEBHOOK_HISTORY_TIMEOUT", 5*time.Second),
			ProcessTimeout: getdur("WEBHOOK_PROCESS_TIMEOUT", 12*time.Second),
			DedupTTL:       getdur("WEBHOOK_DEDUP_TTL", 5*time.Minute),
		},

		// Matching runs
		Matching: MatchingConfig{
			LLMRPS:        getfloat("MATCH_LLM_RPS", 2.0),
			LLMBurst:      getint("MATCH_LLM_BURST", 2),
			MaxConcurrent: getint("MATCH_MAX_CONCURRENT", 4),
			TopKDefault:   getint("MATCH_TOP_K", 3),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "group-matchmaker"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		return cfg, errors.New("GEMINI_TEMPERATURE must be in [0,2]")
	}
	if cfg.LLM.MaxTokens <= 0 {
		return cfg, errors.New("GEMINI_MAX_TOKENS must be > 0")
	}
	if strings.TrimSpace(cfg.Platform.BaseURL) == "" {
		return cfg, errors.New("PLATFORM_BASE_URL must not be empty")
	}
	if cfg.Platform.HTTPTimeout <= 0 {
		return cfg, errors.New("PLATFORM_HTTP_TIMEOUT must be > 0")
	}
	if cfg.Platform.HistoryLimit < 1 {
		return cfg, errors.New("PLATFORM_HISTORY_LIMIT must be >= 1")
	}
	if cfg.Webhook.HistoryTimeout <= 0 || cfg.Webhook.ProcessTimeout <= 0 {
		return cfg, errors.New("webhook stage timeouts must be > 0")
	}
	if cfg.Webhook.DedupTTL <= 0 {
		return cfg, errors.New("WEBHOOK_DEDUP_TTL must be > 0")
	}
	if cfg.Matching.LLMRPS <= 0 {
		return cfg, errors.New("MATCH_LLM_RPS must be > 0")
	}
	if cfg.Matching.LLMBurst < 1 {
		return cfg, errors.New("MATCH_LLM_BURST must be >= 1")
	}
	if cfg.Matching.MaxConcurrent < 1 {
		return cfg, errors.New("MATCH_MAX_CONCURRENT must be >= 1")
	}
	if cfg.Matching.TopKDefault < 1 {
		return cfg, errors.New("MATCH_TOP_K must be >= 1")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
