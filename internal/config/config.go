package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Deployment DeploymentConfig
	Scheduler  SchedulerConfig
	Checks     ChecksConfig
	Storage    StorageConfig
	Catalog    CatalogConfig
	Mimir      MimirConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port      string
	Mode      string
	JWTSecret string `mapstructure:"jwt_secret"`
}

// DeploymentConfig locates the monitored zone's REST API.
type DeploymentConfig struct {
	RESTURL           string        `mapstructure:"rest_url"`
	Token             string        `mapstructure:"token"`
	Timeout           time.Duration `mapstructure:"timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	ServerPort        int           `mapstructure:"server_port"`
}

type SchedulerConfig struct {
	CheckTimeout time.Duration `mapstructure:"check_timeout"`
}

// ChecksConfig tunes the built-in checks.
type ChecksConfig struct {
	DNSServer         string `mapstructure:"dns_server"`
	CertWarnDays      int    `mapstructure:"cert_warn_days"`
	DomainWarnDays    int    `mapstructure:"domain_warn_days"`
	LowFreeSpaceBytes int64  `mapstructure:"low_free_space_bytes"`
}

type StorageConfig struct {
	Backend     string
	FilePath    string `mapstructure:"file_path"`
	RedisURL    string `mapstructure:"redis_url"`
	DatabaseURL string `mapstructure:"database_url"`
	KeyPrefix   string `mapstructure:"key_prefix"`
}

type CatalogConfig struct {
	Path string
}

type MimirConfig struct {
	URL           string
	TenantID      string        `mapstructure:"tenant_id"`
	TenantHeader  string        `mapstructure:"tenant_header"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	AuthToken     string        `mapstructure:"auth_token"`
}

type LogConfig struct {
	Level       string
	Development bool
	File        string
	MaxSizeMB   int `mapstructure:"max_size_mb"`
	MaxBackups  int `mapstructure:"max_backups"`
	MaxAgeDays  int `mapstructure:"max_age_days"`
}

const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Load reads config.yaml from . or ./config, then ZONEHEALTH_* environment
// variables. A .env file is loaded into the environment first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	return load(v)
}

// LoadFile reads the given file instead of searching for config.yaml.
func LoadFile(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("ZONEHEALTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("deployment.rest_url", "")
	v.SetDefault("deployment.token", "")
	v.SetDefault("deployment.timeout", "10s")
	v.SetDefault("deployment.poll_interval", "60s")
	v.SetDefault("deployment.requests_per_second", 2)
	v.SetDefault("deployment.server_port", 1247)
	v.SetDefault("scheduler.check_timeout", "30s")
	v.SetDefault("checks.dns_server", "8.8.8.8:53")
	v.SetDefault("checks.cert_warn_days", 30)
	v.SetDefault("checks.domain_warn_days", 60)
	v.SetDefault("checks.low_free_space_bytes", 1<<30)
	v.SetDefault("storage.backend", BackendFile)
	v.SetDefault("storage.file_path", "data/overrides.json")
	v.SetDefault("storage.redis_url", "redis://localhost:6379/0")
	v.SetDefault("storage.database_url", "")
	v.SetDefault("storage.key_prefix", "")
	v.SetDefault("catalog.path", "checks.yaml")
	v.SetDefault("mimir.url", "")
	v.SetDefault("mimir.tenant_id", "")
	v.SetDefault("mimir.tenant_header", "X-Scope-OrgID")
	v.SetDefault("mimir.batch_size", 1000)
	v.SetDefault("mimir.flush_interval", "30s")
	v.SetDefault("mimir.auth_token", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
}

func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendFile, BackendRedis, BackendPostgres:
	default:
		return fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend == BackendPostgres && c.Storage.DatabaseURL == "" {
		return errors.New("storage.database_url is required for the postgres backend")
	}
	if c.Storage.Backend == BackendFile && c.Storage.FilePath == "" {
		return errors.New("storage.file_path is required for the file backend")
	}
	if c.Deployment.Timeout <= 0 {
		return errors.New("deployment.timeout must be positive")
	}
	if c.Deployment.PollInterval <= 0 {
		return errors.New("deployment.poll_interval must be positive")
	}
	return nil
}
