package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Blob store backends
const (
	BlobBackendLocal = "local"
	BlobBackendS3    = "s3"
	BlobBackendMinio = "minio"
)

// Rate limiter backends
const (
	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

type Config struct {
	// Server
	Port    string
	Env     string
	SiteURL string

	// Logging
	LogLevel  string
	LogFormat string
	LogOutput string
	LogFile   string

	// Database
	DBDriver   string // "postgres" | "sqlite"
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// JWT
	JWTSecret              string
	JWTAccessTokenDuration time.Duration
	ShareXTokenDuration    time.Duration

	// Uploads
	MaxFileSize           int64
	AllowedFileTypes      []string
	ImageMaxWidth         int
	ImageMaxHeight        int
	ImageJPEGQuality      int
	ShortCodeLength       int
	IdentifierMaxAttempts int
	OrphanCleanupEnabled  bool

	// Blob storage
	BlobBackend string // "local" | "s3" | "minio"
	UploadDir   string

	// S3-compatible object storage (used by the s3 and minio backends)
	S3Endpoint        string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3UsePathStyle    bool
	S3UseSSL          bool
	S3Bucket          string

	// Rate limiting
	RateLimitBackend  string // "memory" | "redis"
	RateLimitCapacity int
	UploadRateLimit   int
	UploadRateWindow  time.Duration
	RateLimitRequests int
	RateLimitDuration time.Duration

	// CORS
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// DefaultAllowedFileTypes mirrors the MIME types the transform pipeline knows how to handle.
var DefaultAllowedFileTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"video/mp4",
	"video/webm",
	"video/quicktime",
}

func New() *Config {
	return &Config{
		// Server
		Port:    getEnv("PORT", "8080"),
		Env:     getEnv("ENV", "development"),
		SiteURL: strings.TrimRight(getEnv("SITE_URL", ""), "/"),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		LogOutput: getEnv("LOG_OUTPUT", "console"),
		LogFile:   getEnv("LOG_FILE", "logs/imagehost.log"),

		// Database
		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "imagehost"),
		DBPassword: getEnv("DB_PASSWORD", "password"),
		DBName:     getEnv("DB_NAME", "imagehost"),
		DBSSLMode:  getEnv("DB_SSL_MODE", "disable"),
		SQLitePath: getEnv("SQLITE_PATH", "imagehost.db"),

		// Redis
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// JWT
		JWTSecret:              getEnv("JWT_SECRET", "your-secret-key"),
		JWTAccessTokenDuration: getEnvAsDuration("JWT_ACCESS_TOKEN_DURATION", "1h"),
		ShareXTokenDuration:    getEnvAsDuration("SHAREX_TOKEN_DURATION", "8760h"),

		// Uploads
		MaxFileSize:           getEnvAsInt64("MAX_FILE_SIZE", 10485760),
		AllowedFileTypes:      getEnvAsSlice("ALLOWED_FILE_TYPES", DefaultAllowedFileTypes),
		ImageMaxWidth:         getEnvAsInt("IMAGE_MAX_WIDTH", 2000),
		ImageMaxHeight:        getEnvAsInt("IMAGE_MAX_HEIGHT", 2000),
		ImageJPEGQuality:      getEnvAsInt("IMAGE_JPEG_QUALITY", 80),
		ShortCodeLength:       getEnvAsInt("SHORT_CODE_LENGTH", 10),
		IdentifierMaxAttempts: getEnvAsInt("IDENTIFIER_MAX_ATTEMPTS", 3),
		OrphanCleanupEnabled:  getEnv("ORPHAN_CLEANUP_ENABLED", "false") == "true",

		// Blob storage
		BlobBackend: getEnv("BLOB_BACKEND", BlobBackendLocal),
		UploadDir:   getEnv("UPLOAD_DIR", "uploads"),

		// S3-compatible object storage
		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		S3Region:          getEnv("S3_REGION", "us-east-1"),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3UsePathStyle:    getEnv("S3_USE_PATH_STYLE", "true") == "true",
		S3UseSSL:          getEnv("S3_USE_SSL", "true") == "true",
		S3Bucket:          getEnv("S3_BUCKET", "imagehost-uploads"),

		// Rate limiting
		RateLimitBackend:  getEnv("RATE_LIMIT_BACKEND", RateLimitBackendMemory),
		RateLimitCapacity: getEnvAsInt("RATE_LIMIT_CAPACITY", 500),
		UploadRateLimit:   getEnvAsInt("UPLOAD_RATE_LIMIT", 10),
		UploadRateWindow:  getEnvAsDuration("UPLOAD_RATE_WINDOW", "1m"),
		RateLimitRequests: getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitDuration: getEnvAsDuration("RATE_LIMIT_DURATION", "1m"),

		// CORS
		AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		AllowedMethods: getEnvAsSlice("ALLOWED_METHODS", []string{"GET", "POST", "DELETE", "OPTIONS"}),
		AllowedHeaders: getEnvAsSlice("ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
	}
}

// IsProduction reports whether the service runs with production defaults.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	if duration, err := time.ParseDuration(defaultValue); err == nil {
		return duration
	}
	return time.Hour
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
