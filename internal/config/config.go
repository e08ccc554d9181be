package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	PublicBaseURL      string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	CORSAllowedOrigins []string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	PaymentProvider        string
	SealpayAPIKey          string
	SealpayWebhookSecret   string
	PaymentIntentTTL       time.Duration
	WebhookReplayTTL       time.Duration
	WebhookSkewTolerance   time.Duration
	IdempotencyTTL         time.Duration
	BookingReferencePrefix string

	VATRateOverrides map[string]string

	RetreatCacheTTL     time.Duration
	RetreatDefaultLimit int
	RetreatMaxLimit     int

	SitemapCacheTTL time.Duration

	ContactRateLimit string
	LoginRateLimit   string

	SMTPHost      string
	SMTPPort      string
	SMTPUser      string
	SMTPPassword  string
	EmailFrom     string
	ContactInbox  string
	EmailEnabled  bool
	DefaultLocale string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		PublicBaseURL:      valueOrDefault(k.String("PUBLIC_BASE_URL"), "https://www.swellway.com"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		AccessTokenTTL:  parseDuration(k.String("ACCESS_TOKEN_TTL"), "15m"),
		RefreshTokenTTL: parseDuration(k.String("REFRESH_TOKEN_TTL"), "720h"),

		PaymentProvider:        valueOrDefault(k.String("PAYMENT_PROVIDER"), "sealpay"),
		SealpayAPIKey:          k.String("SEALPAY_API_KEY"),
		SealpayWebhookSecret:   k.String("SEALPAY_WEBHOOK_SECRET"),
		PaymentIntentTTL:       parseDuration(k.String("PAYMENT_INTENT_TTL"), "30m"),
		WebhookReplayTTL:       parseDuration(k.String("WEBHOOK_REPLAY_TTL"), "72h"),
		WebhookSkewTolerance:   parseDuration(k.String("WEBHOOK_SKEW_TOLERANCE"), "5m"),
		IdempotencyTTL:         parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		BookingReferencePrefix: valueOrDefault(k.String("BOOKING_REFERENCE_PREFIX"), "SW"),

		VATRateOverrides: parseRatePairs(k.String("VAT_RATES")),

		RetreatCacheTTL:     parseDuration(k.String("RETREAT_CACHE_TTL"), "5m"),
		RetreatDefaultLimit: intOrDefault(k.Int("RETREAT_DEFAULT_LIMIT"), 20),
		RetreatMaxLimit:     intOrDefault(k.Int("RETREAT_MAX_LIMIT"), 100),

		SitemapCacheTTL: parseDuration(k.String("SITEMAP_CACHE_TTL"), "6h"),

		ContactRateLimit: valueOrDefault(k.String("CONTACT_RATE_LIMIT"), "5-H"),
		LoginRateLimit:   valueOrDefault(k.String("LOGIN_RATE_LIMIT"), "10-M"),

		SMTPHost:      k.String("SMTP_HOST"),
		SMTPPort:      valueOrDefault(k.String("SMTP_PORT"), "587"),
		SMTPUser:      k.String("SMTP_USER"),
		SMTPPassword:  k.String("SMTP_PASSWORD"),
		EmailFrom:     valueOrDefault(k.String("EMAIL_FROM"), "hello@swellway.com"),
		ContactInbox:  valueOrDefault(k.String("CONTACT_INBOX"), "hello@swellway.com"),
		EmailEnabled:  parseBool(k.String("EMAIL_ENABLED")),
		DefaultLocale: valueOrDefault(k.String("DEFAULT_LOCALE"), "en"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
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

// parseRatePairs parses "DE:0.19,FR:0.20" into a country->rate-string map.
// Rates stay strings here; the vat package owns decimal parsing.
func parseRatePairs(value string) map[string]string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	out := map[string]string{}
	for _, pair := range strings.Split(value, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) != 2 {
			continue
		}
		code := strings.TrimSpace(parts[0])
		rate := strings.TrimSpace(parts[1])
		if code == "" || rate == "" {
			continue
		}
		out[code] = rate
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func intOrDefault(value, fallback int) int {
	if value > 0 {
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

// MustLoad behaves like Load but panics on error. Useful for command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests overrides environment variables for the duration of a Load call.
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
