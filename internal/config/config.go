package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv          string
	Port            string
	ShutdownTimeout time.Duration
	StoreDriver     string
	DatabaseURL     string
	RunMigrations   bool
	SeedOnStart     bool
	RedisURL        string

	JWTSecret      string
	AdminPIN       string
	AccessTokenTTL time.Duration
	TokenIssuer    string
	TokenAudience  string
	CookieName     string
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite
	CSRFEnabled    bool

	CORSAllowedOrigins []string
	TrustProxy         bool
	BodyLimitBytes     int64
	LoginRate          string
	APIRate            string
	IdempotencyTTL     time.Duration

	CartTTL           time.Duration
	CatalogCacheTTL   time.Duration
	CatalogMaxLimit   int
	AnalyticsCacheTTL time.Duration
	LockTTL           time.Duration
	LockRetryBackoff  time.Duration
	LockMaxWait       time.Duration

	GeminiAPIKey        string
	GeminiModel         string
	GeminiBaseURL       string
	OutboundTimeout     time.Duration
	RetryBase           time.Duration
	RetryMaxAttempts    int
	RetryJitterPercent  float64
	BreakerMinRequests  int
	BreakerFailureRatio float64
	BreakerOpenFor      time.Duration

	KafkaBrokers      []string
	KafkaTopic        string
	EventTopics       []string
	ReceiptQueue      string
	ReceiptMaxRetry   int
	WorkerConcurrency int

	LogFormat        string
	LogLevel         string
	MetricsEnabled   bool
	MetricsNamespace string
	HTTPBucketsMS    string
	TracingEnabled   bool
	TracingExporter  string
	OTLPEndpoint     string
	SamplingRatio    float64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:          valueOrDefault(k.String("APP_ENV"), "development"),
		Port:            valueOrDefault(k.String("PORT"), "8080"),
		ShutdownTimeout: parseDuration(k.String("SHUTDOWN_TIMEOUT"), "15s"),
		StoreDriver:     strings.ToLower(valueOrDefault(k.String("STORE_DRIVER"), DriverMemory)),
		DatabaseURL:     k.String("DATABASE_URL"),
		RunMigrations:   parseBoolDefault(k.String("RUN_MIGRATIONS"), true),
		SeedOnStart:     parseBoolDefault(k.String("SEED_ON_START"), false),
		RedisURL:        k.String("REDIS_URL"),

		JWTSecret:      k.String("JWT_SECRET"),
		AdminPIN:       valueOrDefault(k.String("ADMIN_PIN"), "1234"),
		AccessTokenTTL: parseDuration(k.String("ACCESS_TOKEN_TTL"), "12h"),
		TokenIssuer:    valueOrDefault(k.String("TOKEN_ISSUER"), "novahub"),
		TokenAudience:  valueOrDefault(k.String("TOKEN_AUDIENCE"), "novahub-web"),
		CookieName:     valueOrDefault(k.String("COOKIE_NAME"), "nova_session"),
		CookieDomain:   strings.TrimSpace(k.String("COOKIE_DOMAIN")),
		CookieSecure:   parseBool(k.String("COOKIE_SECURE")),
		CookieSameSite: parseSameSite(k.String("COOKIE_SAMESITE")),
		CSRFEnabled:    parseBoolDefault(k.String("CSRF_ENABLED"), true),

		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		TrustProxy:         parseBool(k.String("TRUST_PROXY")),
		BodyLimitBytes:     int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),
		LoginRate:          valueOrDefault(k.String("LOGIN_RATE"), "10-M"),
		APIRate:            valueOrDefault(k.String("API_RATE"), "300-M"),
		IdempotencyTTL:     parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),

		CartTTL:           parseDuration(k.String("CART_TTL"), "24h"),
		CatalogCacheTTL:   parseDuration(k.String("CATALOG_CACHE_TTL"), "60s"),
		CatalogMaxLimit:   parseInt(k.String("CATALOG_MAX_LIMIT"), 100),
		AnalyticsCacheTTL: parseDuration(k.String("ANALYTICS_CACHE_TTL"), "30s"),
		LockTTL:           parseDuration(k.String("LOCK_TTL"), "10s"),
		LockRetryBackoff:  parseDuration(k.String("LOCK_RETRY_BACKOFF"), "25ms"),
		LockMaxWait:       parseDuration(k.String("LOCK_MAX_WAIT"), "3s"),

		GeminiAPIKey:        strings.TrimSpace(k.String("GEMINI_API_KEY")),
		GeminiModel:         valueOrDefault(k.String("GEMINI_MODEL"), "gemini-3-flash-preview"),
		GeminiBaseURL:       k.String("GEMINI_BASE_URL"),
		OutboundTimeout:     parseDuration(k.String("OUTBOUND_TIMEOUT"), "20s"),
		RetryBase:           parseDuration(k.String("RETRY_BASE"), "250ms"),
		RetryMaxAttempts:    parseInt(k.String("RETRY_MAX_ATTEMPTS"), 3),
		RetryJitterPercent:  parseFloat(k.String("RETRY_JITTER"), 0.2),
		BreakerMinRequests:  parseInt(k.String("BREAKER_MIN_REQUESTS"), 5),
		BreakerFailureRatio: parseFloat(k.String("BREAKER_FAILURE_RATIO"), 0.5),
		BreakerOpenFor:      parseDuration(k.String("BREAKER_OPEN_FOR"), "30s"),

		KafkaBrokers:      splitAndTrim(k.String("KAFKA_BROKERS")),
		KafkaTopic:        valueOrDefault(k.String("KAFKA_TOPIC"), "novahub.events"),
		EventTopics:       splitAndTrim(k.String("EVENT_TOPICS")),
		ReceiptQueue:      valueOrDefault(k.String("RECEIPT_QUEUE"), "mail"),
		ReceiptMaxRetry:   parseInt(k.String("RECEIPT_MAX_RETRY"), 5),
		WorkerConcurrency: parseInt(k.String("WORKER_CONCURRENCY"), 5),

		LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		MetricsEnabled:   parseBoolDefault(k.String("OBS_ENABLE_PROMETHEUS"), true),
		MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "novahub"),
		HTTPBucketsMS:    k.String("OBS_HTTP_BUCKETS_MS"),
		TracingEnabled:   parseBoolDefault(k.String("OBS_ENABLE_TRACING"), false),
		TracingExporter:  valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
		OTLPEndpoint:     k.String("OBS_OTLP_ENDPOINT"),
		SamplingRatio:    parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),
	}

	if cfg.CookieSameSite == http.SameSiteDefaultMode {
		cfg.CookieSameSite = http.SameSiteLaxMode
	}

	switch cfg.StoreDriver {
	case DriverMemory:
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if len(cfg.JWTSecret) < 32 && cfg.AppEnv == "production" {
		return nil, errors.New("JWT_SECRET must be at least 32 bytes in production")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseSameSite(value string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "lax":
		return http.SameSiteLaxMode
	default:
		return http.SameSiteDefaultMode
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
