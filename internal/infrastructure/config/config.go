// internal/infrastructure/config/config.go
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// App
	AppVersion string
	LogLevel   string

	// Server
	Port         string
	WorkerPort   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxUploadMB  int
	CORSOrigins  []string

	// MongoDB
	MongoURI      string
	MongoDB       string
	MongoUser     string
	MongoPassword string

	// PostgreSQL (airline reference table, ingestion audit)
	PostgresURI string

	// Redis job queue
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	TranscodeQueue string

	// Media
	UploadTmpDir       string
	MediaBackend       string
	MediaLocalDir      string
	MediaPublicBaseURL string
	GCSBucket          string
	GCSClientID        string
	GCSClientSecret    string
	GCSRefreshToken    string

	// Transcoding
	FFmpegPath               string
	TranscodeTimeout         time.Duration
	TranscodeJobsPerInterval int
	TranscodeInterval        time.Duration
	StaleVideoAfter          time.Duration
	SweepInterval            time.Duration

	// Ingestion
	IngestIssueLimit int
	DefaultCountry   string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		AppVersion:   getEnv("APP_VERSION", "1.0.0"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		Port:         getEnv("PORT", "8080"),
		WorkerPort:   getEnv("WORKER_PORT", "8081"),
		ReadTimeout:  time.Duration(getEnvAsInt("READ_TIMEOUT", 30)) * time.Second,
		WriteTimeout: time.Duration(getEnvAsInt("WRITE_TIMEOUT", 60)) * time.Second,
		MaxUploadMB:  getEnvAsInt("MAX_UPLOAD_MB", 512),
		CORSOrigins:  getEnvAsList("CORS_ORIGINS", []string{"*"}),

		MongoURI:      getEnv("MONGODB_DSN", "mongodb://localhost:27017"),
		MongoDB:       getEnv("MONGO_DB", "deals"),
		MongoUser:     getEnv("MONGO_USER", ""),
		MongoPassword: getEnv("MONGO_PASSWORD", ""),

		PostgresURI: getEnv("POSTGRES_DSN", "host=localhost user=postgres dbname=deals sslmode=disable"),

		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvAsInt("REDIS_DB", 0),
		TranscodeQueue: getEnv("TRANSCODE_QUEUE", "video-transcode"),

		UploadTmpDir:       getEnv("UPLOAD_TMP_DIR", os.TempDir()),
		MediaBackend:       getEnv("MEDIA_BACKEND", "local"),
		MediaLocalDir:      getEnv("MEDIA_LOCAL_DIR", "./uploads/videos"),
		MediaPublicBaseURL: getEnv("MEDIA_PUBLIC_BASE_URL", "/uploads/videos"),
		GCSBucket:          getEnv("GCS_BUCKET", ""),
		GCSClientID:        getEnv("GCS_CLIENT_ID", ""),
		GCSClientSecret:    getEnv("GCS_CLIENT_SECRET", ""),
		GCSRefreshToken:    getEnv("GCS_REFRESH_TOKEN", ""),

		FFmpegPath:               getEnv("FFMPEG_PATH", "ffmpeg"),
		TranscodeTimeout:         getEnvAsDuration("TRANSCODE_TIMEOUT", 20*time.Minute),
		TranscodeJobsPerInterval: getEnvAsInt("TRANSCODE_JOBS_PER_INTERVAL", 2),
		TranscodeInterval:        getEnvAsPositiveDuration("TRANSCODE_INTERVAL", time.Minute),
		StaleVideoAfter:          getEnvAsPositiveDuration("STALE_VIDEO_AFTER", 2*time.Hour),
		SweepInterval:            getEnvAsPositiveDuration("SWEEP_INTERVAL", 10*time.Minute),

		IngestIssueLimit: getEnvAsInt("INGEST_ISSUE_LIMIT", 20),
		DefaultCountry:   getEnv("DEFAULT_COUNTRY", "Canada"),
	}

	return config, nil
}

// Helper functions to get environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration strings ("90s", "2h").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsPositiveDuration is getEnvAsDuration for intervals that must be
// above zero.
func getEnvAsPositiveDuration(key string, defaultValue time.Duration) time.Duration {
	if value := getEnvAsDuration(key, defaultValue); value > 0 {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var list []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			list = append(list, v)
		}
	}
	return list
}
