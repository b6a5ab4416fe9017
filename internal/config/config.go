// Package config loads the service configuration from environment variables.
// Unset or unparsable variables fall back to defaults; Load then normalizes
// the result and reports every invalid setting at once.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/tbourn/leadops-backend/internal/sysutil"
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
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "leadops-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// AuthConfig holds credentials for the two authorization modes: the shared
// ingestion key used by the external scraper, and signed admin sessions.
type AuthConfig struct {
	IngestAPIKey  string        // INGEST_API_KEY
	JWTSecret     string        // JWT_SECRET
	JWTTTL        time.Duration // JWT_TTL
	AdminEmail    string        // ADMIN_EMAIL (bootstrap)
	AdminPassword string        // ADMIN_PASSWORD (bootstrap)
}

// WorkflowConfig selects how zip-code scrape requests reach the external workflow.
type WorkflowConfig struct {
	Driver        string // none|webhook|amqp
	WebhookURL    string
	WebhookSecret string
	AMQPURL       string
}

// MailConfig configures SMTP notifications. An empty Host disables mail.
type MailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	NotifyTo string
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test
	Env               string        // production|development

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	LogRedact      bool   // scrub PII from access logs
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Storage
	DBDriver    string // sqlite|postgres
	DBPath      string // SQLite path
	DatabaseURL string // Postgres DSN

	// Listing
	DefaultPageSize int
	MaxPageSize     int

	// Rate limiting
	RateRPS        float64 // tokens per second (>= 0)
	RateBurst      int     // bucket size (>= 1)
	AdminRateRPS   float64
	AdminRateBurst int

	// Auth
	Auth AuthConfig

	// Integrations
	Workflow WorkflowConfig
	Mail     MailConfig

	// Background jobs (cron specs, empty disables)
	ReconcileCron        string
	IdempotencyPurgeCron string

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// IsProduction reports whether detailed error text must be hidden from clients.
func (c Config) IsProduction() bool { return c.Env == "production" }

// MustLoad is Load for callers that cannot continue without configuration.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the environment, applies defaults and normalization, and
// validates the result. The returned error joins every violation found.
func Load() (Config, error) {
	cfg := Config{
		Port:              str("PORT", "8080"),
		ReadTimeout:       get("READ_TIMEOUT", 15*time.Second, time.ParseDuration),
		ReadHeaderTimeout: get("READ_HEADER_TIMEOUT", 10*time.Second, time.ParseDuration),
		WriteTimeout:      get("WRITE_TIMEOUT", 20*time.Second, time.ParseDuration),
		IdleTimeout:       get("IDLE_TIMEOUT", 60*time.Second, time.ParseDuration),
		MaxHeaderBytes:    get("MAX_HEADER_BYTES", 1<<20, strconv.Atoi),
		GinMode:           lower("GIN_MODE", "release"),
		Env:               lower("APP_ENV", "production"),

		LogLevel:       lower("LOG_LEVEL", "info"),
		LogPretty:      get("LOG_PRETTY", false, parseBool),
		LogRedact:      get("LOG_REDACT", true, parseBool),
		SwaggerEnabled: get("SWAGGER_ENABLED", false, parseBool),
		APIBasePath:    normalizeBasePath(str("API_BASE_PATH", "/api/v1")),

		DBDriver:    lower("DB_DRIVER", "sqlite"),
		DBPath:      str("DB_PATH", "app.db"),
		DatabaseURL: str("DATABASE_URL", ""),

		DefaultPageSize: get("LIST_DEFAULT_PAGE_SIZE", 20, strconv.Atoi),
		MaxPageSize:     get("LIST_MAX_PAGE_SIZE", 100, strconv.Atoi),

		RateRPS:        get("RATE_RPS", 5.0, parseFloat),
		RateBurst:      get("RATE_BURST", 10, strconv.Atoi),
		AdminRateRPS:   get("ADMIN_RATE_RPS", 20.0, parseFloat),
		AdminRateBurst: get("ADMIN_RATE_BURST", 40, strconv.Atoi),

		Auth: AuthConfig{
			IngestAPIKey:  str("INGEST_API_KEY", ""),
			JWTSecret:     str("JWT_SECRET", ""),
			JWTTTL:        get("JWT_TTL", 12*time.Hour, time.ParseDuration),
			AdminEmail:    str("ADMIN_EMAIL", ""),
			AdminPassword: str("ADMIN_PASSWORD", ""),
		},

		Workflow: WorkflowConfig{
			Driver:        lower("WORKFLOW_DRIVER", "none"),
			WebhookURL:    str("WORKFLOW_WEBHOOK_URL", ""),
			WebhookSecret: str("WORKFLOW_WEBHOOK_SECRET", ""),
			AMQPURL:       str("WORKFLOW_AMQP_URL", ""),
		},

		Mail: MailConfig{
			Host:     str("MAIL_HOST", ""),
			Port:     get("MAIL_PORT", 587, strconv.Atoi),
			User:     str("MAIL_USER", ""),
			Password: str("MAIL_PASS", ""),
			From:     str("MAIL_FROM", "no-reply@localhost"),
			NotifyTo: str("MAIL_NOTIFY_TO", ""),
		},

		ReconcileCron:        str("RECONCILE_CRON", ""),
		IdempotencyPurgeCron: str("IDEMPOTENCY_PURGE_CRON", "@hourly"),

		CORS: CORSConfig{AllowedOrigins: splitCSV(str("CORS_ALLOWED_ORIGINS", ""))},
		Security: SecurityConfig{
			EnableHSTS: get("ENABLE_HSTS", false, parseBool),
			HSTSMaxAge: get("HSTS_MAX_AGE", 180*24*time.Hour, time.ParseDuration),
		},

		IdempotencyTTL: get("IDEMPOTENCY_TTL", 24*time.Hour, time.ParseDuration),

		OTEL: OTELConfig{
			Enabled:     get("OTEL_ENABLED", false, parseBool),
			Endpoint:    str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    get("OTEL_EXPORTER_OTLP_INSECURE", true, parseBool),
			ServiceName: str("OTEL_SERVICE_NAME", "leadops-backend"),
			SampleRatio: get("OTEL_TRACES_SAMPLER_ARG", 1.0, parseFloat),
		},
	}
	cfg.normalize()
	return cfg, cfg.validate()
}

func (c *Config) normalize() {
	if c.LogLevel == "warning" {
		c.LogLevel = "warn"
	}
	if !slices.Contains([]string{"debug", "release", "test"}, c.GinMode) {
		c.GinMode = "release"
	}
	if slices.Contains([]string{"dev", "development", "local"}, c.Env) {
		c.Env = "development"
	} else {
		c.Env = "production"
	}
	if c.DefaultPageSize > c.MaxPageSize && c.MaxPageSize >= 1 {
		c.DefaultPageSize = c.MaxPageSize
	}
}

func (c Config) validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	oneOf := func(name, v string, allowed ...string) {
		check(slices.Contains(allowed, v), "%s must be one of: %s", name, strings.Join(allowed, ", "))
	}

	oneOf("LOG_LEVEL", c.LogLevel, "debug", "info", "warn", "error", "fatal", "panic")
	check(strings.TrimSpace(c.Port) != "", "PORT must not be empty")
	check(c.ReadTimeout > 0 && c.ReadHeaderTimeout > 0 && c.WriteTimeout > 0 && c.IdleTimeout > 0,
		"timeouts must be positive durations")
	check(c.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be > 0")

	oneOf("DB_DRIVER", c.DBDriver, "sqlite", "postgres")
	check(c.DBDriver != "sqlite" || strings.TrimSpace(c.DBPath) != "", "DB_PATH must not be empty")
	check(c.DBDriver != "postgres" || strings.TrimSpace(c.DatabaseURL) != "",
		"DATABASE_URL is required when DB_DRIVER=postgres")

	check(c.DefaultPageSize >= 1 && c.MaxPageSize >= 1, "page sizes must be >= 1")
	check(c.RateRPS >= 0 && c.AdminRateRPS >= 0, "RATE_RPS and ADMIN_RATE_RPS must be >= 0")
	check(c.RateBurst >= 1 && c.AdminRateBurst >= 1, "RATE_BURST and ADMIN_RATE_BURST must be >= 1")

	check(c.Auth.JWTTTL > 0, "JWT_TTL must be > 0")
	check((c.Auth.AdminEmail == "") == (c.Auth.AdminPassword == ""),
		"ADMIN_EMAIL and ADMIN_PASSWORD must be set together")

	oneOf("WORKFLOW_DRIVER", c.Workflow.Driver, "none", "webhook", "amqp")
	check(c.Workflow.Driver != "webhook" || c.Workflow.WebhookURL != "",
		"WORKFLOW_WEBHOOK_URL is required when WORKFLOW_DRIVER=webhook")
	check(c.Workflow.Driver != "amqp" || c.Workflow.AMQPURL != "",
		"WORKFLOW_AMQP_URL is required when WORKFLOW_DRIVER=amqp")

	check(c.Mail.Host == "" || (c.Mail.Port > 0 && c.Mail.NotifyTo != ""),
		"MAIL_PORT and MAIL_NOTIFY_TO are required when MAIL_HOST is set")
	check(c.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must be >= 0")
	check(c.IdempotencyTTL > 0, "IDEMPOTENCY_TTL must be > 0")
	check(c.OTEL.SampleRatio >= 0 && c.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")

	return errors.Join(errs...)
}

// get parses the variable k with parse, or returns def when k is unset,
// empty, or unparsable.
func get[T any](k string, def T, parse func(string) (T, error)) T {
	v, ok := os.LookupEnv(k)
	if !ok || v == "" {
		return def
	}
	if out, err := parse(v); err == nil {
		return out
	}
	return def
}

func str(k, def string) string {
	return get(k, def, func(v string) (string, error) { return v, nil })
}

func lower(k, def string) string { return strings.ToLower(str(k, def)) }

func parseFloat(v string) (float64, error) { return strconv.ParseFloat(v, 64) }

func parseBool(v string) (bool, error) {
	if b, ok := sysutil.ParseBool(v); ok {
		return b, nil
	}
	return false, fmt.Errorf("not a boolean: %q", v)
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath returns p with exactly one leading slash and no trailing
// slash, or "/" when p is blank.
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
