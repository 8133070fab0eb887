// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, subscription plans,
// object storage, LLM generation, billing, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Plan describes a subscription tier and the upload ceilings it grants.
type Plan struct {
	Name           string // display name, e.g. "Free" or "Pro"
	Slug           string // stable identifier, e.g. "free" / "pro"
	PagesPerPDF    int    // maximum extracted page count per document
	MaxUploadBytes int64  // maximum accepted upload size
	PriceID        string // payment-processor price id ("" for the free tier)
}

// PlansConfig holds the immutable plan table loaded once at startup.
type PlansConfig struct {
	Free Plan
	Pro  Plan
}

// PlanBySlug returns the plan matching slug, defaulting to the free tier.
func (p PlansConfig) PlanBySlug(slug string) Plan {
	if strings.EqualFold(slug, p.Pro.Slug) {
		return p.Pro
	}
	return p.Free
}

// IngestConfig defines text segmentation behavior for uploaded documents.
type IngestConfig struct {
	ChunkWords int           // words per stored chunk
	Timeout    time.Duration // upper bound for a single ingestion run
}

// RetrievalConfig bounds the context assembled for each model call.
type RetrievalConfig struct {
	MaxChunks   int // chunks included in the prompt context region
	MaxMessages int // prior messages included in the history region
}

// LLMConfig defines the OpenAI-compatible completion endpoint settings.
type LLMConfig struct {
	BaseURL           string  // e.g. "https://openrouter.ai/api/v1"
	APIKey            string  // bearer token
	Model             string  // e.g. "deepseek/deepseek-chat:free"
	Temperature       float64 // sampling temperature
	MaxTokens         int     // completion token cap
	RequestTimeout    time.Duration
	FirstTokenTimeout time.Duration // abort when no delta arrives in time
}

// StorageConfig defines the S3-compatible object storage settings.
type StorageConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PresignExpiry time.Duration
}

// BillingConfig defines the payment-processor integration settings.
type BillingConfig struct {
	APIBase   string // e.g. "https://api.stripe.com"
	SecretKey string
	ReturnURL string // redirect target for portal/checkout sessions
}

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
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-docchat-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 30s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // must exceed the LLM request timeout
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool   // pretty console logs in dev
	APIBasePath string // base path for API routes

	// Auth
	JWTSecret string // HMAC secret for access-token verification

	// App
	DBPath    string // SQLite path
	Plans     PlansConfig
	Ingest    IngestConfig
	Retrieval RetrievalConfig
	LLM       LLMConfig
	Storage   StorageConfig
	Billing   BillingConfig

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
		ReadTimeout:       getdur("READ_TIMEOUT", 30*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 3*time.Minute),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Auth
		JWTSecret: getenv("ACCESS_TOKEN_SECRET", ""),

		// App
		DBPath: getenv("DB_PATH", "app.db"),
		Plans: PlansConfig{
			Free: Plan{
				Name:           "Free",
				Slug:           "free",
				PagesPerPDF:    getint("FREE_PAGES_PER_PDF", 5),
				MaxUploadBytes: getint64("FREE_MAX_UPLOAD_BYTES", 8<<20),
			},
			Pro: Plan{
				Name:           "Pro",
				Slug:           "pro",
				PagesPerPDF:    getint("PRO_PAGES_PER_PDF", 25),
				MaxUploadBytes: getint64("PRO_MAX_UPLOAD_BYTES", 16<<20),
				PriceID:        getenv("STRIPE_PRICE_ID", ""),
			},
		},
		Ingest: IngestConfig{
			ChunkWords: getint("CHUNK_WORDS", 500),
			Timeout:    getdur("INGEST_TIMEOUT", 5*time.Minute),
		},
		Retrieval: RetrievalConfig{
			MaxChunks:   getint("RETRIEVAL_MAX_CHUNKS", 2),
			MaxMessages: getint("RETRIEVAL_MAX_MESSAGES", 2),
		},
		LLM: LLMConfig{
			BaseURL:           getenv("LLM_BASE_URL", "https://openrouter.ai/api/v1"),
			APIKey:            getenv("LLM_API_KEY", ""),
			Model:             getenv("LLM_MODEL", "deepseek/deepseek-chat:free"),
			Temperature:       getfloat("LLM_TEMPERATURE", 0.7),
			MaxTokens:         getint("LLM_MAX_TOKENS", 1024),
			RequestTimeout:    getdur("LLM_REQUEST_TIMEOUT", 2*time.Minute),
			FirstTokenTimeout: getdur("LLM_FIRST_TOKEN_TIMEOUT", 30*time.Second),
		},
		Storage: StorageConfig{
			Endpoint:      getenv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey:     getenv("MINIO_ACCESS_KEY", ""),
			SecretKey:     getenv("MINIO_SECRET_KEY", ""),
			Bucket:        getenv("MINIO_BUCKET", "docchat"),
			UseSSL:        getbool("MINIO_USE_SSL", false),
			PresignExpiry: getdur("MINIO_PRESIGN_EXPIRY", 24*time.Hour),
		},
		Billing: BillingConfig{
			APIBase:   getenv("STRIPE_API_BASE", "https://api.stripe.com"),
			SecretKey: getenv("STRIPE_SECRET_KEY", ""),
			ReturnURL: getenv("BILLING_RETURN_URL", "http://localhost:3000/dashboard/billing"),
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
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-docchat-backend"),
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
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return cfg, errors.New("ACCESS_TOKEN_SECRET must not be empty")
	}
	if cfg.Ingest.ChunkWords < 1 {
		return cfg, errors.New("CHUNK_WORDS must be >= 1")
	}
	if cfg.Ingest.Timeout <= 0 {
		return cfg, errors.New("INGEST_TIMEOUT must be > 0")
	}
	if cfg.Retrieval.MaxChunks < 0 || cfg.Retrieval.MaxMessages < 0 {
		return cfg, errors.New("retrieval limits must be >= 0")
	}
	if cfg.Plans.Free.PagesPerPDF < 1 || cfg.Plans.Pro.PagesPerPDF < 1 {
		return cfg, errors.New("plan page limits must be >= 1")
	}
	if cfg.Plans.Free.MaxUploadBytes < 1 || cfg.Plans.Pro.MaxUploadBytes < 1 {
		return cfg, errors.New("plan upload limits must be >= 1")
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		return cfg, errors.New("LLM_TEMPERATURE must be in [0,2]")
	}
	if cfg.LLM.MaxTokens < 1 {
		return cfg, errors.New("LLM_MAX_TOKENS must be >= 1")
	}
	if cfg.LLM.RequestTimeout <= 0 || cfg.LLM.FirstTokenTimeout <= 0 {
		return cfg, errors.New("LLM timeouts must be positive durations")
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

func getint64(k string, def int64) int64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
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
