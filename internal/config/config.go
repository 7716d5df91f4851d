package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	DBSchema    string   `mapstructure:"DB_SCHEMA"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	AuthIssuer     string `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string `mapstructure:"AUTH_AUDIENCE"`
	AuthJWKSURL    string `mapstructure:"AUTH_JWKS_URL"`
	AuthSigningKey string `mapstructure:"AUTH_SIGNING_KEY"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	GeminiAPIKey  string        `mapstructure:"GEMINI_API_KEY"`
	GeminiModel   string        `mapstructure:"GEMINI_MODEL"`
	GeminiBaseURL string        `mapstructure:"GEMINI_BASE_URL"`
	AITimeout     time.Duration `mapstructure:"AI_TIMEOUT"`

	BlobBackend     string `mapstructure:"BLOB_BACKEND"`
	S3Bucket        string `mapstructure:"S3_BUCKET"`
	S3Endpoint      string `mapstructure:"S3_ENDPOINT"`
	S3Region        string `mapstructure:"S3_REGION"`
	S3PublicBaseURL string `mapstructure:"S3_PUBLIC_BASE_URL"`

	OutboxSink         string        `mapstructure:"OUTBOX_SINK"`
	OutboxPollInterval time.Duration `mapstructure:"OUTBOX_POLL_INTERVAL"`
	OutboxMaxAttempts  int           `mapstructure:"OUTBOX_MAX_ATTEMPTS"`
	KafkaBrokers       []string      `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic         string        `mapstructure:"KAFKA_TOPIC"`
	WebhookURL         string        `mapstructure:"WEBHOOK_URL"`
	WebhookSecret      string        `mapstructure:"WEBHOOK_SECRET"`

	MaxConsultationMinutes int `mapstructure:"MAX_CONSULTATION_MINUTES"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "DB_SCHEMA", "CORS_ORIGINS",
	"AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_JWKS_URL", "AUTH_SIGNING_KEY",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"GEMINI_API_KEY", "GEMINI_MODEL", "GEMINI_BASE_URL", "AI_TIMEOUT",
	"BLOB_BACKEND", "S3_BUCKET", "S3_ENDPOINT", "S3_REGION", "S3_PUBLIC_BASE_URL",
	"OUTBOX_SINK", "OUTBOX_POLL_INTERVAL", "OUTBOX_MAX_ATTEMPTS", "KAFKA_BROKERS", "KAFKA_TOPIC",
	"WEBHOOK_URL", "WEBHOOK_SECRET",
	"MAX_CONSULTATION_MINUTES",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("GEMINI_MODEL", "gemini-1.5-flash")
	v.SetDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("AI_TIMEOUT", "30s")
	v.SetDefault("BLOB_BACKEND", "memory")
	v.SetDefault("S3_REGION", "ap-south-1")
	v.SetDefault("OUTBOX_SINK", "log")
	v.SetDefault("OUTBOX_POLL_INTERVAL", "5s")
	v.SetDefault("OUTBOX_MAX_ATTEMPTS", 8)
	v.SetDefault("KAFKA_TOPIC", "care-events")
	v.SetDefault("MAX_CONSULTATION_MINUTES", 180)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(cfg.CORSOrigins, v.GetString("CORS_ORIGINS"))
	cfg.KafkaBrokers = splitList(cfg.KafkaBrokers, v.GetString("KAFKA_BROKERS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: ENV=development, DevAuthMiddleware accepts unauthenticated requests as admin.")
	}

	return cfg, nil
}

// splitList handles env values like "a,b" that viper leaves as one element.
// Elements are trimmed either way.
func splitList(parsed []string, raw string) []string {
	src := parsed
	if len(parsed) <= 1 {
		if raw == "" {
			return nil
		}
		src = strings.Split(raw, ",")
	}
	var out []string
	for _, s := range src {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// AIEnabled reports whether the assistant bridge has credentials.
func (c *Config) AIEnabled() bool {
	return c.GeminiAPIKey != ""
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if !c.IsDev() {
		if c.AuthIssuer == "" && c.AuthJWKSURL == "" && c.AuthSigningKey == "" {
			return fmt.Errorf("AUTH_ISSUER, AUTH_JWKS_URL or AUTH_SIGNING_KEY must be set when ENV is %q", c.Env)
		}
	}
	if c.IsProduction() {
		if c.AuthIssuer == "" && c.AuthJWKSURL == "" {
			return fmt.Errorf("AUTH_ISSUER or AUTH_JWKS_URL must be set in production")
		}
		if c.AuthSigningKey != "" {
			return fmt.Errorf("AUTH_SIGNING_KEY is not allowed in production")
		}
	}

	switch c.BlobBackend {
	case "memory":
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when BLOB_BACKEND is \"s3\"")
		}
	default:
		return fmt.Errorf("BLOB_BACKEND must be \"memory\" or \"s3\", got %q", c.BlobBackend)
	}

	switch c.OutboxSink {
	case "log", "notify":
	case "kafka":
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required when OUTBOX_SINK is \"kafka\"")
		}
	case "webhook":
		if c.WebhookURL == "" || c.WebhookSecret == "" {
			return fmt.Errorf("WEBHOOK_URL and WEBHOOK_SECRET are required when OUTBOX_SINK is \"webhook\"")
		}
	default:
		return fmt.Errorf("OUTBOX_SINK must be one of log, kafka, notify or webhook, got %q", c.OutboxSink)
	}

	if c.MaxConsultationMinutes < 1 {
		return fmt.Errorf("MAX_CONSULTATION_MINUTES must be positive, got %d", c.MaxConsultationMinutes)
	}
	if c.OutboxPollInterval <= 0 {
		return fmt.Errorf("OUTBOX_POLL_INTERVAL must be positive, got %v", c.OutboxPollInterval)
	}
	if c.OutboxMaxAttempts < 1 {
		return fmt.Errorf("OUTBOX_MAX_ATTEMPTS must be positive, got %d", c.OutboxMaxAttempts)
	}

	return nil
}
