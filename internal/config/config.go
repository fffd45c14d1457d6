package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Classifier   ClassifierConfig
	Intake       IntakeConfig
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
	Level  string
	Format string
}

// ClassifierConfig points at the external classification endpoint. When the
// endpoint is empty the keyword classifier runs alone.
type ClassifierConfig struct {
	Endpoint       string
	APIKey         string
	TimeoutSeconds int
}

// IntakeConfig tunes the continuation resolver and escalation rules.
type IntakeConfig struct {
	ContinuationWindowMinutes int
	EscalationSLAMinutes      int
	EscalationSweepSeconds    int
	WebhookSecret             string
	LockTTLSeconds            int
}

// NotificationConfig controls outbound notification behavior.
type NotificationConfig struct {
	QueueSize int
	FromName  string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "incident-service"),
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
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Classifier: ClassifierConfig{
			Endpoint:       os.Getenv("CLASSIFIER_ENDPOINT"),
			APIKey:         os.Getenv("CLASSIFIER_API_KEY"),
			TimeoutSeconds: getEnvAsInt("CLASSIFIER_TIMEOUT_SECONDS", 10),
		},
		Intake: IntakeConfig{
			ContinuationWindowMinutes: getEnvAsInt("INTAKE_CONTINUATION_WINDOW_MINUTES", 120),
			EscalationSLAMinutes:      getEnvAsInt("INTAKE_ESCALATION_SLA_MINUTES", 60),
			EscalationSweepSeconds:    getEnvAsInt("INTAKE_ESCALATION_SWEEP_SECONDS", 300),
			WebhookSecret:             os.Getenv("INTAKE_WEBHOOK_SECRET"),
			LockTTLSeconds:            getEnvAsInt("INTAKE_LOCK_TTL_SECONDS", 15),
		},
		Notification: NotificationConfig{
			QueueSize: getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
			FromName:  getEnv("NOTIFY_FROM_NAME", "Administración de Fincas"),
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

// ContinuationWindow returns the sliding window inside which an inbound
// message may continue an existing open ticket.
func (i IntakeConfig) ContinuationWindow() time.Duration {
	if i.ContinuationWindowMinutes <= 0 {
		return 2 * time.Hour
	}
	return time.Duration(i.ContinuationWindowMinutes) * time.Minute
}

// EscalationSLA returns how long an URGENT ticket may wait for dispatch.
func (i IntakeConfig) EscalationSLA() time.Duration {
	if i.EscalationSLAMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(i.EscalationSLAMinutes) * time.Minute
}

// LockTTL bounds how long a per-reporter or per-ticket lock may be held.
func (i IntakeConfig) LockTTL() time.Duration {
	if i.LockTTLSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(i.LockTTLSeconds) * time.Second
}

// Timeout returns the classifier call deadline.
func (c ClassifierConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
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
