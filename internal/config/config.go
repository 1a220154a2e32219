package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	// JWT (issued by the auth service, verified here)
	JWTSecret string

	// Server
	Port        string
	CORSOrigins string
	AppEnv      string
	SentryDSN   string

	// Job queue
	RedisURL       string
	QueueDriver    string
	QueueWorkers   int
	JobMaxAttempts int

	// Enforcement sweeps
	ExpirySweepInterval time.Duration
	RepairSweepInterval time.Duration

	// Policy engine
	PolicyPath            string
	AutoBlockEnabled      bool
	AutoBlockDurationDays int
	AlertHighSeverity     bool

	// Alerting
	SlackWebhookURL string

	LogRetentionDays int
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", "error", err)
	}

	return &Config{
		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "career_policy"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		SQLitePath: getEnv("SQLITE_PATH", "career_policy.db"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
		AppEnv:      getEnv("APP_ENV", "development"),
		SentryDSN:   getEnv("SENTRY_DSN", ""),

		RedisURL:       getEnv("REDIS_URL", "redis://localhost:6379/0"),
		QueueDriver:    getEnv("QUEUE_DRIVER", "redis"),
		QueueWorkers:   parseInt(getEnv("QUEUE_WORKERS", "5"), 5),
		JobMaxAttempts: parseInt(getEnv("JOB_MAX_ATTEMPTS", "5"), 5),

		ExpirySweepInterval: parseDuration(getEnv("EXPIRY_SWEEP_INTERVAL", "10m"), 10*time.Minute),
		RepairSweepInterval: parseDuration(getEnv("REPAIR_SWEEP_INTERVAL", "15m"), 15*time.Minute),

		PolicyPath:            getEnv("POLICY_PATH", "policies/career_misconduct.yml"),
		AutoBlockEnabled:      parseBool(getEnv("AUTO_BLOCK_ENABLED", "true"), true),
		AutoBlockDurationDays: parseInt(getEnv("AUTO_BLOCK_DURATION_DAYS", "30"), 30),
		AlertHighSeverity:     parseBool(getEnv("ALERT_HIGH_SEVERITY", "true"), true),

		SlackWebhookURL: getEnv("SLACK_WEBHOOK_URL", ""),

		LogRetentionDays: parseInt(getEnv("LOG_RETENTION_DAYS", "30"), 30),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func parseBool(s string, fallback bool) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return b
}
