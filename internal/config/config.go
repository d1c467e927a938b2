package config

import (
	"fmt"
	"slices"
	"time"

	"golang.org/x/crypto/bcrypt"

	pkgconfig "github.com/kumanday/OmniLearn/pkg/config"
)

const defaultJWTSecret = "change-this-to-a-secure-secret"

// Providers lists the accepted AI_PROVIDER values.
var Providers = []string{"openai", "openrouter", "gemini"}

// Config holds all configuration for the OmniLearn API. It is built once at
// startup and passed to constructors; nothing mutates it afterwards.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8000"`

	// PostgreSQL
	PostgresHost         string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort         int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser         string `env:"POSTGRES_USER" envDefault:"omnilearn"`
	PostgresPass         string `env:"POSTGRES_PASSWORD" envDefault:"omnilearn"`
	PostgresDB           string `env:"POSTGRES_DB" envDefault:"omnilearn"`
	PostgresSSL          string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	DBMaxConns           int32  `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns           int32  `env:"DB_MIN_CONNS" envDefault:"2"`
	SlowQueryThresholdMs int    `env:"SLOW_QUERY_THRESHOLD_MS" envDefault:"200"`
	AutoMigrate          bool   `env:"AUTO_MIGRATE" envDefault:"true"`

	// Redis lesson cache
	RedisEnabled   bool          `env:"REDIS_ENABLED" envDefault:"false"`
	RedisHost      string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort      int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword  string        `env:"REDIS_PASSWORD"`
	RedisDB        int           `env:"REDIS_DB" envDefault:"0"`
	LessonCacheTTL time.Duration `env:"LESSON_CACHE_TTL" envDefault:"1h"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// LLM provider
	AIProvider        string        `env:"AI_PROVIDER" envDefault:"openrouter"`
	AIModel           string        `env:"AI_MODEL" envDefault:"qwen/qwen-2.5-72b-instruct"`
	AITimeout         time.Duration `env:"AI_TIMEOUT" envDefault:"60s"`
	OpenAIKey         string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL     string        `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	OpenRouterKey     string        `env:"OPENROUTER_API_KEY"`
	OpenRouterBaseURL string        `env:"OPENROUTER_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	GeminiKey         string        `env:"GEMINI_API_KEY"`
	GeminiBaseURL     string        `env:"GEMINI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta"`

	// Session
	JWTSecret                string `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	AccessTokenExpireMinutes int    `env:"ACCESS_TOKEN_EXPIRE_MINUTES" envDefault:"1440"`
	BcryptCost               int    `env:"BCRYPT_COST" envDefault:"12"`
	CookieName               string `env:"COOKIE_NAME" envDefault:"ol_jwt"`
	CookieDomain             string `env:"COOKIE_DOMAIN"`
	SecureCookies            bool   `env:"SECURE_COOKIES" envDefault:"false"`

	// Google sign-in
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleTokenInfoURL string `env:"GOOGLE_TOKENINFO_URL" envDefault:"https://oauth2.googleapis.com/tokeninfo"`

	// HTTP edge
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
	RateLimitRPS       float64  `env:"RATE_LIMIT_RPS" envDefault:"2"`
	RateLimitBurst     int      `env:"RATE_LIMIT_BURST" envDefault:"10"`
	TrustForwardedFor  bool     `env:"TRUST_FORWARDED_FOR" envDefault:"false"`

	// Observability
	OTELEnabled       bool     `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint      string   `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate    float64  `env:"OTEL_SAMPLE_RATE" envDefault:"0.1"`
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envSeparator:","`
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load omnilearn config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if !slices.Contains(Providers, c.AIProvider) {
		return fmt.Errorf("AI_PROVIDER must be one of %v, got %q", Providers, c.AIProvider)
	}
	if c.AccessTokenExpireMinutes <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be positive, got %d", c.AccessTokenExpireMinutes)
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, c.BcryptCost)
	}

	if !c.IsDevelopment() {
		if c.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", c.Environment)
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters long, got %d", len(c.JWTSecret))
		}
	}
	return nil
}

// IsDevelopment reports whether the process runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// AccessTokenTTL is the lifetime of issued session tokens.
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}
