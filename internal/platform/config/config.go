// Package config loads service configuration from the environment so main
// stays lean. A .env file is honored in development via godotenv.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Redis captures connection settings for the shared cohort cache.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Config is the full service configuration.
type Config struct {
	Addr string

	// Datasets. The persona dataset is mandatory; area profiles are optional
	// and their absence puts the store into a documented degraded mode.
	PersonaDataPath string
	AreaProfilePath string

	// Fan-out policy.
	MaxInFlight     int64
	MinQuorum       int
	CohortMinQuorum int
	ProviderTimeout time.Duration
	RetryAttempts   int

	// Model providers.
	GeminiAPIKey string
	GeminiModel  string
	OpenAIAPIKey string
	OpenAIModel  string

	// Stores and sinks.
	Redis        Redis
	PostgresURL  string
	KafkaBrokers []string
	KafkaTopic   string

	// Request intake.
	RateLimitPerMinute int
	RateLimitDisabled  bool

	// Debug surface. AdminSecretHash is a bcrypt hash of the bootstrap secret
	// exchanged for an admin token at /admin/token.
	JWTSigningKey   string
	AdminSecretHash string

	LogJSON bool
}

// Load reads a .env file if present, then builds the Config from environment
// variables with development defaults.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from environment variables only.
func FromEnv() Config {
	cfg := Config{
		Addr:               envString("CP_ADDR", ":8080"),
		PersonaDataPath:    envString("CP_PERSONA_DATA", "data/personas.compact.v1.json"),
		AreaProfilePath:    envString("CP_AREA_PROFILES", "data/area-profiles.json"),
		MaxInFlight:        int64(envInt("CP_MAX_IN_FLIGHT", 6)),
		MinQuorum:          envInt("CP_MIN_QUORUM", 5),
		CohortMinQuorum:    envInt("CP_COHORT_MIN_QUORUM", 4),
		ProviderTimeout:    envDuration("CP_PROVIDER_TIMEOUT", 45*time.Second),
		RetryAttempts:      envInt("CP_RETRY_ATTEMPTS", 2),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		GeminiModel:        envString("CP_GEMINI_MODEL", "gemini-2.5-flash-lite"),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:        envString("CP_OPENAI_MODEL", "gpt-4.1-mini"),
		PostgresURL:        os.Getenv("CP_POSTGRES_URL"),
		KafkaTopic:         envString("CP_KAFKA_TOPIC", "civicpulse.ask-events"),
		RateLimitPerMinute: envInt("CP_RATE_LIMIT_PER_MINUTE", 10),
		RateLimitDisabled:  os.Getenv("CP_RATE_LIMIT_DISABLED") == "true",
		JWTSigningKey:      envString("CP_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		AdminSecretHash:    os.Getenv("CP_ADMIN_SECRET_HASH"),
		LogJSON:            os.Getenv("CP_LOG_JSON") == "true",
	}

	cfg.Redis = Redis{
		URL:          os.Getenv("CP_REDIS_URL"),
		PoolSize:     envInt("CP_REDIS_POOL_SIZE", 10),
		MinIdleConns: envInt("CP_REDIS_MIN_IDLE", 2),
		DialTimeout:  envDuration("CP_REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:  envDuration("CP_REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout: envDuration("CP_REDIS_WRITE_TIMEOUT", 3*time.Second),
	}

	if brokers := os.Getenv("CP_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	return cfg
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
