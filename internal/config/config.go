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
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT (tokens are issued by the identity service, verified here)
	JWTSecret string

	// Server
	Port            string
	CORSOrigins     string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	BodyLimitBytes  int

	// Evidence and query limits
	UploadDir         string
	MaxEvidenceFiles  int
	MaxEvidenceBytes  int64
	CommentMaxRunes   int
	DefaultPageSize   int
	MaxPageSize       int
	TransitionBucket  time.Duration
	LogRetentionDays  int
	PublicLatestLimit int
	TrendMonths       int

	// Notifications
	RedisURL         string
	NotifyChannel    string
	DispatchInterval time.Duration

	// Observability
	SentryDSN string
	AppEnv    string
}

// Load reads .env (when present) and then the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using process environment")
	}

	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "pengaduan_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		Port:            getEnv("PORT", "8080"),
		CORSOrigins:     getEnv("CORS_ORIGINS", "http://localhost:3000"),
		RequestTimeout:  parseDuration(getEnv("REQUEST_TIMEOUT", "10s"), 10*time.Second),
		ShutdownTimeout: parseDuration(getEnv("SHUTDOWN_TIMEOUT", "15s"), 15*time.Second),
		BodyLimitBytes:  getInt("BODY_LIMIT_BYTES", 6*1024*1024),

		UploadDir:         getEnv("UPLOAD_DIR", "bukti_foto"),
		MaxEvidenceFiles:  getInt("MAX_EVIDENCE_FILES", 3),
		MaxEvidenceBytes:  int64(getInt("MAX_EVIDENCE_BYTES", 5*1024*1024)),
		CommentMaxRunes:   getInt("COMMENT_MAX_RUNES", 500),
		DefaultPageSize:   getInt("DEFAULT_PAGE_SIZE", 10),
		MaxPageSize:       getInt("MAX_PAGE_SIZE", 100),
		TransitionBucket:  parseDuration(getEnv("TRANSITION_BUCKET", "1m"), time.Minute),
		LogRetentionDays:  getInt("LOG_RETENTION_DAYS", 30),
		PublicLatestLimit: getInt("PUBLIC_LATEST_LIMIT", 8),
		TrendMonths:       getInt("TREND_MONTHS", 12),

		RedisURL:         getEnv("REDIS_URL", ""),
		NotifyChannel:    getEnv("NOTIFY_CHANNEL", "pengaduan.report_events"),
		DispatchInterval: parseDuration(getEnv("DISPATCH_INTERVAL", "5s"), 5*time.Second),

		SentryDSN: getEnv("SENTRY_DSN", ""),
		AppEnv:    getEnv("APP_ENV", "development"),
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

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
