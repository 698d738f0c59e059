package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pricecollector/pkg/price"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	CoinGecko CoinGeckoConfig `mapstructure:"coingecko"`
	Collector CollectorConfig `mapstructure:"collector"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
}

type AppConfig struct {
	Environment string `mapstructure:"environment"` // "dev" or "prod"
	Timezone    string `mapstructure:"timezone"`    // reference timezone for calendar days
}

// Location resolves the reference timezone.
func (a AppConfig) Location() (*time.Location, error) {
	return price.LoadLocation(a.Timezone)
}

type CoinGeckoConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Pro        bool          `mapstructure:"pro"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
}

type CollectorConfig struct {
	RequestInterval time.Duration `mapstructure:"request_interval"` // pause between upstream attempts during backfill
	RecoveryDays    int           `mapstructure:"recovery_days"`
	Retention       time.Duration `mapstructure:"retention"` // instant price retention
	CacheFile       string        `mapstructure:"cache_file"`
	ReportDir       string        `mapstructure:"report_dir"`
}

type ScheduleConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	SampleCron   string `mapstructure:"sample_cron"`
	DailyCron    string `mapstructure:"daily_cron"`
	RecoveryCron string `mapstructure:"recovery_cron"`
}

type StorageConfig struct {
	Driver string       `mapstructure:"driver"`
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type ServerConfig struct {
	Addr        string          `mapstructure:"addr"`
	GlobalLimit RateLimitConfig `mapstructure:"global_limit"`
	StoreLimit  RateLimitConfig `mapstructure:"store_limit"`
	CacheLimit  RateLimitConfig `mapstructure:"cache_limit"`
}

// RateLimitConfig allows Requests per Window for each client.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// Options defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "dev")
	v.SetDefault("app.timezone", price.DefaultTimezone)

	v.SetDefault("coingecko.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("coingecko.api_key", "")
	v.SetDefault("coingecko.pro", false)
	v.SetDefault("coingecko.timeout", 30*time.Second)
	v.SetDefault("coingecko.max_retries", 3)
	v.SetDefault("coingecko.base_delay", time.Second)

	v.SetDefault("collector.request_interval", 3*time.Second)
	v.SetDefault("collector.recovery_days", 3)
	v.SetDefault("collector.retention", 7*24*time.Hour)
	v.SetDefault("collector.cache_file", "data/current-prices.json")
	v.SetDefault("collector.report_dir", "logs")

	v.SetDefault("schedule.enabled", true)
	v.SetDefault("schedule.sample_cron", "*/10 * * * *")
	v.SetDefault("schedule.daily_cron", "5 0 * * *")
	v.SetDefault("schedule.recovery_cron", "0 6 * * *")

	v.SetDefault("storage.driver", DriverSQLite)
	v.SetDefault("storage.sqlite.path", "data/prices.db")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.dbname", "pricecollector")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.timezone", "UTC")
	v.SetDefault("postgres.create_db", false)
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime", time.Hour)
	v.SetDefault("postgres.ssm.host", "PRICECOLLECTOR_DB_HOST")
	v.SetDefault("postgres.ssm.user", "PRICECOLLECTOR_DB_USER")
	v.SetDefault("postgres.ssm.password", "PRICECOLLECTOR_DB_PASSWORD")

	v.SetDefault("server.addr", ":3000")
	v.SetDefault("server.global_limit.requests", 100)
	v.SetDefault("server.global_limit.window", 15*time.Minute)
	v.SetDefault("server.store_limit.requests", 30)
	v.SetDefault("server.store_limit.window", 5*time.Minute)
	v.SetDefault("server.cache_limit.requests", 10)
	v.SetDefault("server.cache_limit.window", time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output_file", "")
	v.SetDefault("log.environment", "dev")
}

// Load loads application configuration using Viper.
// It reads path (or config.yaml from the usual locations when path is empty), loads
// an optional .env file, and overrides with environment variables.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config") // config.yaml
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if ex, err := os.Executable(); err == nil {
			v.AddConfigPath(filepath.Join(filepath.Dir(ex), "../config"))
		}
	}

	// Support environment variables with dot notation (e.g., COINGECKO_API_KEY)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.SQLite.Path == "" {
			return errors.New("storage.sqlite.path is required")
		}
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unsupported storage.driver %q", c.Storage.Driver)
	}

	if _, err := c.App.Location(); err != nil {
		return fmt.Errorf("app.timezone: %w", err)
	}

	if c.CoinGecko.MaxRetries < 1 {
		return fmt.Errorf("coingecko.max_retries must be at least 1, got %d", c.CoinGecko.MaxRetries)
	}
	if c.CoinGecko.BaseDelay <= 0 {
		return errors.New("coingecko.base_delay must be positive")
	}
	if c.Collector.RecoveryDays < 1 {
		return fmt.Errorf("collector.recovery_days must be at least 1, got %d", c.Collector.RecoveryDays)
	}
	if c.Collector.RequestInterval < 0 {
		return errors.New("collector.request_interval must not be negative")
	}

	for name, spec := range map[string]string{
		"schedule.sample_cron":   c.Schedule.SampleCron,
		"schedule.daily_cron":    c.Schedule.DailyCron,
		"schedule.recovery_cron": c.Schedule.RecoveryCron,
	} {
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	for name, l := range map[string]RateLimitConfig{
		"server.global_limit": c.Server.GlobalLimit,
		"server.store_limit":  c.Server.StoreLimit,
		"server.cache_limit":  c.Server.CacheLimit,
	} {
		if l.Requests < 1 || l.Window <= 0 {
			return fmt.Errorf("%s must allow at least one request per positive window", name)
		}
	}
	return nil
}
