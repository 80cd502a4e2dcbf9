package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service. Runtime
// configuration is fixed at boot; the triage policy record is separate
// and admin-mutable through the config store.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Triage       TriageConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// TriageConfig tunes the triage engine and SLA monitor.
type TriageConfig struct {
	ClassifierTimeoutMS  int
	MaxCommitRetries     int
	RetryBackoffMS       int
	PolicyCacheTTLMS     int
	SuggestionTTLMinutes int
	SLATickSeconds       int
	AutoCloseTarget      string
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	autoCloseTarget := getEnv("TRIAGE_AUTO_CLOSE_TARGET", "resolved")
	if autoCloseTarget != "resolved" && autoCloseTarget != "closed" {
		return nil, fmt.Errorf("invalid TRIAGE_AUTO_CLOSE_TARGET: %q", autoCloseTarget)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "support-triage-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Triage: TriageConfig{
			ClassifierTimeoutMS:  getEnvAsInt("TRIAGE_CLASSIFIER_TIMEOUT_MS", 2000),
			MaxCommitRetries:     getEnvAsInt("TRIAGE_MAX_COMMIT_RETRIES", 3),
			RetryBackoffMS:       getEnvAsInt("TRIAGE_RETRY_BACKOFF_MS", 25),
			PolicyCacheTTLMS:     getEnvAsInt("TRIAGE_POLICY_CACHE_TTL_MS", 5000),
			SuggestionTTLMinutes: getEnvAsInt("TRIAGE_SUGGESTION_TTL_MINUTES", 15),
			SLATickSeconds:       getEnvAsInt("SLA_TICK_SECONDS", 60),
			AutoCloseTarget:      autoCloseTarget,
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// ClassifierTimeout returns the classifier call deadline.
func (t TriageConfig) ClassifierTimeout() time.Duration {
	return time.Duration(t.ClassifierTimeoutMS) * time.Millisecond
}

// RetryBackoff returns the base backoff between commit retries.
func (t TriageConfig) RetryBackoff() time.Duration {
	return time.Duration(t.RetryBackoffMS) * time.Millisecond
}

// PolicyCacheTTL returns the policy snapshot staleness bound.
func (t TriageConfig) PolicyCacheTTL() time.Duration {
	return time.Duration(t.PolicyCacheTTLMS) * time.Millisecond
}

// SuggestionTTL returns how long cached suggestions live.
func (t TriageConfig) SuggestionTTL() time.Duration {
	return time.Duration(t.SuggestionTTLMinutes) * time.Minute
}

// SLATick returns the SLA monitor interval.
func (t TriageConfig) SLATick() time.Duration {
	return time.Duration(t.SLATickSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
