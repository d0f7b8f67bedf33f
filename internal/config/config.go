package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage drivers understood by Load.
const (
	StorageDriverMinIO = "minio"
	StorageDriverS3    = "s3"
)

// Config aggregates runtime configuration for the uploads API.
type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Storage  StorageConfig
	Auth     AuthConfig
	Upload   UploadConfig
	Metrics  MetricsConfig
	Sentry   SentryConfig
}

// ServerConfig parameterizes the HTTP server.
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PostgresConfig contains PostgreSQL connection details.
type PostgresConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	Database    string
	SSLMode     string
	AutoMigrate bool
}

// DSN returns the PostgreSQL connection URL. Credentials are escaped.
func (p PostgresConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
		Path:     "/" + p.Database,
		RawQuery: url.Values{"sslmode": []string{p.SSLMode}}.Encode(),
	}
	return u.String()
}

// StorageConfig selects the object backend and holds the bucket every object lives in.
type StorageConfig struct {
	Driver string
	Bucket string
	MinIO  MinIOConfig
	S3     S3Config
}

// MinIOConfig carries MinIO connection information.
type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Region          string
}

// S3Config carries AWS S3 (or S3-compatible) connection information.
// An empty Endpoint means the default AWS endpoint resolution.
type S3Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// AuthConfig groups bearer-token verification settings.
type AuthConfig struct {
	AccessTokenSecret string
	Issuer            string
}

// UploadConfig bounds what the upload endpoints accept.
type UploadConfig struct {
	MaxFileSize       int64
	PresignDefaultTTL time.Duration
	PresignMaxTTL     time.Duration
}

// MetricsConfig groups observability settings.
type MetricsConfig struct {
	PrometheusPath string
}

// SentryConfig enables error reporting when DSN is set.
type SentryConfig struct {
	DSN         string
	Environment string
}

// Enabled reports whether Sentry should be initialised.
func (s SentryConfig) Enabled() bool {
	return s.DSN != ""
}

// Load reads configuration values from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host:           getString("UPLOADS_API_HOST", "0.0.0.0"),
			Port:           getInt("UPLOADS_API_PORT", 8080),
			ReadTimeout:    getDuration("UPLOADS_API_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:   getDuration("UPLOADS_API_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:    getDuration("UPLOADS_API_IDLE_TIMEOUT", 60*time.Second),
			AllowedOrigins: getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Postgres: PostgresConfig{
			Host:        getString("POSTGRES_HOST", "localhost"),
			Port:        getInt("POSTGRES_PORT", 5432),
			User:        getString("POSTGRES_USER", "uploads_app"),
			Password:    getString("POSTGRES_PASSWORD", "change-me"),
			Database:    getString("POSTGRES_DB", "uploads"),
			SSLMode:     strings.ToLower(getString("POSTGRES_SSL_MODE", "disable")),
			AutoMigrate: getBool("POSTGRES_AUTO_MIGRATE", true),
		},
		Storage: StorageConfig{
			Driver: strings.ToLower(getString("STORAGE_DRIVER", StorageDriverMinIO)),
			Bucket: getString("AWS_BUCKET_NAME", "uploads"),
			MinIO: MinIOConfig{
				Endpoint:        getString("MINIO_ENDPOINT", "localhost:9000"),
				AccessKeyID:     getString("MINIO_ROOT_USER", "uploads"),
				SecretAccessKey: getString("MINIO_ROOT_PASSWORD", "change-me-strong-password"),
				UseSSL:          getBool("MINIO_USE_SSL", false),
				Region:          getString("MINIO_REGION", ""),
			},
			S3: S3Config{
				Region:          getString("AWS_REGION", "us-east-1"),
				Endpoint:        getString("AWS_S3_ENDPOINT", ""),
				AccessKeyID:     getString("AWS_ACCESS_KEY_ID", ""),
				SecretAccessKey: getString("AWS_SECRET_ACCESS_KEY", ""),
				UsePathStyle:    getBool("AWS_S3_USE_PATH_STYLE", false),
			},
		},
		Auth: AuthConfig{
			AccessTokenSecret: getString("UPLOADS_JWT_SECRET", "change-me-to-a-32-byte-secret"),
			Issuer:            getString("UPLOADS_JWT_ISSUER", ""),
		},
		Upload: UploadConfig{
			MaxFileSize:       getInt64("UPLOAD_MAX_FILE_SIZE", 10*1024*1024),
			PresignDefaultTTL: getDuration("UPLOAD_PRESIGN_TTL", 15*time.Minute),
			PresignMaxTTL:     getDuration("UPLOAD_PRESIGN_MAX_TTL", 7*24*time.Hour),
		},
		Metrics: MetricsConfig{
			PrometheusPath: getString("UPLOADS_METRICS_PATH", "/metrics"),
		},
		Sentry: SentryConfig{
			DSN:         getString("SENTRY_DSN", ""),
			Environment: getString("SENTRY_ENVIRONMENT", "development"),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Storage.Driver {
	case StorageDriverMinIO, StorageDriverS3:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if strings.TrimSpace(c.Storage.Bucket) == "" {
		return errors.New("AWS_BUCKET_NAME must not be empty")
	}
	if c.Upload.MaxFileSize <= 0 {
		return errors.New("UPLOAD_MAX_FILE_SIZE must be positive")
	}
	if c.Upload.PresignDefaultTTL <= 0 || c.Upload.PresignDefaultTTL > c.Upload.PresignMaxTTL {
		return fmt.Errorf("presign ttl %s must be positive and not exceed %s", c.Upload.PresignDefaultTTL, c.Upload.PresignMaxTTL)
	}
	return nil
}

func getString(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.ToLower(strings.TrimSpace(val))
		switch val {
		case "1", "true", "t", "yes", "y":
			return true
		case "0", "false", "f", "no", "n":
			return false
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getList(key string, fallback []string) []string {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var items []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
