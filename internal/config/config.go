package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Redis  RedisConfig  `yaml:"redis" mapstructure:"redis"`
	Source SourceConfig `yaml:"source" mapstructure:"source"`
	Sync   SyncConfig   `yaml:"sync" mapstructure:"sync"`
	Batch  BatchConfig  `yaml:"batch" mapstructure:"batch"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Notion NotionConfig `yaml:"notion" mapstructure:"notion"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// RedisConfig configures the bearer-credential cache. An empty Addr disables
// Redis and the static token from SourceConfig is used directly.
type RedisConfig struct {
	Addr             string `yaml:"addr" mapstructure:"addr"`
	Password         string `yaml:"password" mapstructure:"password"`
	DB               int    `yaml:"db" mapstructure:"db"`
	CredentialTTLMin int    `yaml:"credential_ttl_min" mapstructure:"credential_ttl_min"`
}

// CredentialTTL returns the token cache expiry as a duration.
func (c RedisConfig) CredentialTTL() time.Duration {
	return time.Duration(c.CredentialTTLMin) * time.Minute
}

// SourceConfig selects and configures the export file source.
type SourceConfig struct {
	Kind  string      `yaml:"kind" mapstructure:"kind"` // drive, ftp, or s3
	Token string      `yaml:"token" mapstructure:"token"`
	Drive DriveConfig `yaml:"drive" mapstructure:"drive"`
	FTP   FTPConfig   `yaml:"ftp" mapstructure:"ftp"`
	S3    S3Config    `yaml:"s3" mapstructure:"s3"`
}

// DriveConfig configures the Drive REST source.
type DriveConfig struct {
	BaseURL  string  `yaml:"base_url" mapstructure:"base_url"`
	PageSize int     `yaml:"page_size" mapstructure:"page_size"`
	RPS      float64 `yaml:"rps" mapstructure:"rps"`
}

// FTPConfig configures the FTP source.
type FTPConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Root     string `yaml:"root" mapstructure:"root"`
}

// S3Config configures the S3 source. Endpoint is optional and enables
// path-style access against S3-compatible servers.
type S3Config struct {
	Bucket   string `yaml:"bucket" mapstructure:"bucket"`
	Prefix   string `yaml:"prefix" mapstructure:"prefix"`
	Region   string `yaml:"region" mapstructure:"region"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
}

// SyncConfig configures ingestion behavior.
type SyncConfig struct {
	DownloadTimeoutSecs int           `yaml:"download_timeout_secs" mapstructure:"download_timeout_secs"`
	BoundsFile          string        `yaml:"bounds_file" mapstructure:"bounds_file"`
	Retry               RetrySettings `yaml:"retry" mapstructure:"retry"`
}

// RetrySettings tunes the whole-sync retry enabled by the --retry flag.
type RetrySettings struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// DownloadTimeout returns the per-file download timeout as a duration.
func (c SyncConfig) DownloadTimeout() time.Duration {
	return time.Duration(c.DownloadTimeoutSecs) * time.Second
}

// BatchConfig configures batch scoring.
type BatchConfig struct {
	MaxConcurrentUsers int `yaml:"max_concurrent_users" mapstructure:"max_concurrent_users"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port    int             `yaml:"port" mapstructure:"port"`
	Breaker BreakerSettings `yaml:"breaker" mapstructure:"breaker"`
}

// BreakerSettings tunes the per-source circuit breaker the server keeps
// across sync requests.
type BreakerSettings struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// NotionConfig holds the care-report publishing settings. An empty token
// disables the report command.
type NotionConfig struct {
	Token    string `yaml:"token" mapstructure:"token"`
	ReportDB string `yaml:"report_db" mapstructure:"report_db"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("redis.credential_ttl_min", 55)
	v.SetDefault("source.kind", "drive")
	v.SetDefault("source.drive.base_url", "https://www.googleapis.com/drive/v3")
	v.SetDefault("source.drive.page_size", 100)
	v.SetDefault("source.drive.rps", 5)
	v.SetDefault("source.ftp.root", "/exports")
	v.SetDefault("source.s3.prefix", "exports")
	v.SetDefault("source.s3.region", "us-east-1")
	v.SetDefault("sync.download_timeout_secs", 120)
	v.SetDefault("sync.retry.max_attempts", 3)
	v.SetDefault("sync.retry.initial_backoff_ms", 500)
	v.SetDefault("sync.retry.max_backoff_ms", 30000)
	v.SetDefault("batch.max_concurrent_users", 4)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.breaker.failure_threshold", 5)
	v.SetDefault("server.breaker.reset_timeout_secs", 30)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
