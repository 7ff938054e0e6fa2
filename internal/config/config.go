package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	DB       DBConfig
	JWT      JWTConfig
	Storage  StorageConfig
	Log      LogConfig
	CORS     CORSConfig
	Ingest   IngestConfig
	Progress ProgressConfig
	Analysis AnalysisConfig
	Email    EmailConfig
}

// EmailConfig holds email delivery settings.
type EmailConfig struct {
	Provider    string `mapstructure:"provider"`
	Region      string `mapstructure:"region"`
	FromAddress string `mapstructure:"from_address"`
	FromName    string `mapstructure:"from_name"`
	FrontendURL string `mapstructure:"frontend_url"`
}

// IngestConfig holds upload pipeline settings.
type IngestConfig struct {
	MaxFileSizeMB int64         `mapstructure:"max_file_size_mb"`
	Concurrency   int           `mapstructure:"concurrency"`
	StepTimeout   time.Duration `mapstructure:"step_timeout"`
	StaleAfter    time.Duration `mapstructure:"stale_after"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// MaxFileSizeBytes returns the admission limit in bytes.
func (i *IngestConfig) MaxFileSizeBytes() int64 {
	return i.MaxFileSizeMB * 1024 * 1024
}

// ProgressConfig selects where batch progress snapshots are kept.
type ProgressConfig struct {
	Driver        string        `mapstructure:"driver"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl"`
}

// AnalysisConfig holds aggregation settings.
type AnalysisConfig struct {
	PolicyFile string        `mapstructure:"policy_file"`
	CacheSize  int           `mapstructure:"cache_size"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port              string        `mapstructure:"port"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`

	// ReadTimeout and WriteTimeout cover a whole request, so they must fit a
	// 100 MiB upload body and a synchronous batch that waits on extraction.
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
	Swagger      bool          `mapstructure:"swagger"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// JWTConfig holds JWT signing and expiry settings.
type JWTConfig struct {
	Secret             string        `mapstructure:"secret"`
	AccessTokenExpiry  time.Duration `mapstructure:"access_expiry"`
	RefreshTokenExpiry time.Duration `mapstructure:"refresh_expiry"`
	MagicLinkExpiry    time.Duration `mapstructure:"magic_link_expiry"`
	Issuer             string        `mapstructure:"issuer"`
}

// StorageConfig holds object store settings. Driver is "s3" or "minio".
type StorageConfig struct {
	Driver        string `mapstructure:"driver"`
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	UseSSL        bool   `mapstructure:"use_ssl"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from environment variables with the DOSSIER_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DOSSIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_header_timeout", "15s")
	v.SetDefault("server.read_timeout", "10m")
	v.SetDefault("server.write_timeout", "30m")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.swagger", true)

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "dossier")
	v.SetDefault("db.password", "dossier_secret")
	v.SetDefault("db.name", "dossier_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	// JWT defaults
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.access_expiry", "15m")
	v.SetDefault("jwt.refresh_expiry", "168h")
	v.SetDefault("jwt.magic_link_expiry", "15m")
	v.SetDefault("jwt.issuer", "dealdossier")

	// Storage defaults
	v.SetDefault("storage.driver", "s3")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.bucket", "project-files")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.presign_expiry", 3600)

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	// CORS defaults (localhost origins for development)
	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Ingest defaults
	v.SetDefault("ingest.max_file_size_mb", 100)
	v.SetDefault("ingest.concurrency", 1)
	v.SetDefault("ingest.step_timeout", "60s")
	v.SetDefault("ingest.stale_after", "30m")
	v.SetDefault("ingest.sweep_interval", "5m")

	// Progress defaults
	v.SetDefault("progress.driver", "memory")
	v.SetDefault("progress.redis_addr", "localhost:6379")
	v.SetDefault("progress.redis_db", 0)
	v.SetDefault("progress.ttl", "24h")

	// Analysis defaults
	v.SetDefault("analysis.policy_file", "")
	v.SetDefault("analysis.cache_size", 256)
	v.SetDefault("analysis.cache_ttl", "10m")

	// Email defaults
	v.SetDefault("email.provider", "noop")
	v.SetDefault("email.region", "us-east-1")
	v.SetDefault("email.from_address", "noreply@dealdossier.app")
	v.SetDefault("email.from_name", "Deal Dossier")
	v.SetDefault("email.frontend_url", "http://localhost:3000")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                "DOSSIER_SERVER_PORT",
		"server.read_header_timeout": "DOSSIER_SERVER_READ_HEADER_TIMEOUT",
		"server.read_timeout":        "DOSSIER_SERVER_READ_TIMEOUT",
		"server.write_timeout":       "DOSSIER_SERVER_WRITE_TIMEOUT",
		"server.environment":         "DOSSIER_SERVER_ENVIRONMENT",
		"server.swagger":             "DOSSIER_SERVER_SWAGGER",
		"db.host":                    "DOSSIER_DB_HOST",
		"db.port":                    "DOSSIER_DB_PORT",
		"db.user":                    "DOSSIER_DB_USER",
		"db.password":                "DOSSIER_DB_PASSWORD",
		"db.name":                    "DOSSIER_DB_NAME",
		"db.sslmode":                 "DOSSIER_DB_SSLMODE",
		"db.max_open":                "DOSSIER_DB_MAX_OPEN",
		"db.max_idle":                "DOSSIER_DB_MAX_IDLE",
		"jwt.secret":                 "DOSSIER_JWT_SECRET",
		"jwt.access_expiry":          "DOSSIER_JWT_ACCESS_EXPIRY",
		"jwt.refresh_expiry":         "DOSSIER_JWT_REFRESH_EXPIRY",
		"jwt.magic_link_expiry":      "DOSSIER_JWT_MAGIC_LINK_EXPIRY",
		"jwt.issuer":                 "DOSSIER_JWT_ISSUER",
		"storage.driver":             "DOSSIER_STORAGE_DRIVER",
		"storage.region":             "DOSSIER_STORAGE_REGION",
		"storage.bucket":             "DOSSIER_STORAGE_BUCKET",
		"storage.endpoint":           "DOSSIER_STORAGE_ENDPOINT",
		"storage.access_key":         "DOSSIER_STORAGE_ACCESS_KEY",
		"storage.secret_key":         "DOSSIER_STORAGE_SECRET_KEY",
		"storage.use_ssl":            "DOSSIER_STORAGE_USE_SSL",
		"storage.presign_expiry":     "DOSSIER_STORAGE_PRESIGN_EXPIRY",
		"log.level":                  "DOSSIER_LOG_LEVEL",
		"log.format":                 "DOSSIER_LOG_FORMAT",
		"cors.allowed_origins":       "DOSSIER_CORS_ALLOWED_ORIGINS",
		"ingest.max_file_size_mb":    "DOSSIER_INGEST_MAX_FILE_SIZE_MB",
		"ingest.concurrency":         "DOSSIER_INGEST_CONCURRENCY",
		"ingest.step_timeout":        "DOSSIER_INGEST_STEP_TIMEOUT",
		"ingest.stale_after":         "DOSSIER_INGEST_STALE_AFTER",
		"ingest.sweep_interval":      "DOSSIER_INGEST_SWEEP_INTERVAL",
		"progress.driver":            "DOSSIER_PROGRESS_DRIVER",
		"progress.redis_addr":        "DOSSIER_PROGRESS_REDIS_ADDR",
		"progress.redis_password":    "DOSSIER_PROGRESS_REDIS_PASSWORD",
		"progress.redis_db":          "DOSSIER_PROGRESS_REDIS_DB",
		"progress.ttl":               "DOSSIER_PROGRESS_TTL",
		"analysis.policy_file":       "DOSSIER_ANALYSIS_POLICY_FILE",
		"analysis.cache_size":        "DOSSIER_ANALYSIS_CACHE_SIZE",
		"analysis.cache_ttl":         "DOSSIER_ANALYSIS_CACHE_TTL",
		"email.provider":             "DOSSIER_EMAIL_PROVIDER",
		"email.region":               "DOSSIER_EMAIL_REGION",
		"email.from_address":         "DOSSIER_EMAIL_FROM_ADDRESS",
		"email.from_name":            "DOSSIER_EMAIL_FROM_NAME",
		"email.frontend_url":         "DOSSIER_EMAIL_FRONTEND_URL",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Hosting platforms set PORT. Use it if DOSSIER_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("DOSSIER_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:              serverPort,
		ReadHeaderTimeout: v.GetDuration("server.read_header_timeout"),
		ReadTimeout:       v.GetDuration("server.read_timeout"),
		WriteTimeout:      v.GetDuration("server.write_timeout"),
		Environment:       v.GetString("server.environment"),
		Swagger:           v.GetBool("server.swagger"),
	}
	cfg.DB = DBConfig{
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.JWT = JWTConfig{
		Secret:             v.GetString("jwt.secret"),
		AccessTokenExpiry:  v.GetDuration("jwt.access_expiry"),
		RefreshTokenExpiry: v.GetDuration("jwt.refresh_expiry"),
		MagicLinkExpiry:    v.GetDuration("jwt.magic_link_expiry"),
		Issuer:             v.GetString("jwt.issuer"),
	}
	cfg.Storage = StorageConfig{
		Driver:        strings.ToLower(v.GetString("storage.driver")),
		Region:        v.GetString("storage.region"),
		Bucket:        v.GetString("storage.bucket"),
		Endpoint:      v.GetString("storage.endpoint"),
		AccessKey:     v.GetString("storage.access_key"),
		SecretKey:     v.GetString("storage.secret_key"),
		UseSSL:        v.GetBool("storage.use_ssl"),
		PresignExpiry: v.GetInt64("storage.presign_expiry"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	// Parse CORS allowed origins from comma-separated string
	var corsOrigins []string
	for _, o := range strings.Split(v.GetString("cors.allowed_origins"), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			corsOrigins = append(corsOrigins, o)
		}
	}
	cfg.CORS = CORSConfig{
		AllowedOrigins: corsOrigins,
	}

	cfg.Ingest = IngestConfig{
		MaxFileSizeMB: v.GetInt64("ingest.max_file_size_mb"),
		Concurrency:   v.GetInt("ingest.concurrency"),
		StepTimeout:   v.GetDuration("ingest.step_timeout"),
		StaleAfter:    v.GetDuration("ingest.stale_after"),
		SweepInterval: v.GetDuration("ingest.sweep_interval"),
	}
	if cfg.Ingest.Concurrency < 1 {
		cfg.Ingest.Concurrency = 1
	}

	cfg.Progress = ProgressConfig{
		Driver:        strings.ToLower(v.GetString("progress.driver")),
		RedisAddr:     v.GetString("progress.redis_addr"),
		RedisPassword: v.GetString("progress.redis_password"),
		RedisDB:       v.GetInt("progress.redis_db"),
		TTL:           v.GetDuration("progress.ttl"),
	}

	cfg.Analysis = AnalysisConfig{
		PolicyFile: v.GetString("analysis.policy_file"),
		CacheSize:  v.GetInt("analysis.cache_size"),
		CacheTTL:   v.GetDuration("analysis.cache_ttl"),
	}

	cfg.Email = EmailConfig{
		Provider:    v.GetString("email.provider"),
		Region:      v.GetString("email.region"),
		FromAddress: v.GetString("email.from_address"),
		FromName:    v.GetString("email.from_name"),
		FrontendURL: v.GetString("email.frontend_url"),
	}

	switch cfg.Storage.Driver {
	case "s3", "minio":
	default:
		return nil, fmt.Errorf("config: unknown storage driver %q", cfg.Storage.Driver)
	}
	switch cfg.Progress.Driver {
	case "memory", "redis":
	default:
		return nil, fmt.Errorf("config: unknown progress driver %q", cfg.Progress.Driver)
	}

	return cfg, nil
}
