package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Sources  SourcesConfig  `mapstructure:"sources"`
	DQ       DQConfig       `mapstructure:"dq"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	Path            string        `mapstructure:"path"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type WorkerConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	BackoffBase  time.Duration `mapstructure:"backoff_base"`
	BackoffMax   time.Duration `mapstructure:"backoff_max"`
}

type SourcesConfig struct {
	SellerAPI SourceAPIConfig `mapstructure:"seller_api"`
	MarketAPI SourceAPIConfig `mapstructure:"market_api"`
}

type SourceAPIConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	RatePerSec float64       `mapstructure:"rate_per_sec"`
	Burst      int           `mapstructure:"burst"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type DQConfig struct {
	StalenessHours      int     `mapstructure:"staleness_hours"`
	VolatilityThreshold float64 `mapstructure:"volatility_threshold"`
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	FilePath string `mapstructure:"file_path"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	// Set config file path
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/marketsync.db")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("worker.poll_interval", "5s")
	v.SetDefault("worker.batch_size", 10)
	v.SetDefault("worker.max_attempts", 5)
	v.SetDefault("worker.backoff_base", "30s")
	v.SetDefault("worker.backoff_max", "1h")
	v.SetDefault("sources.seller_api.rate_per_sec", 5)
	v.SetDefault("sources.seller_api.burst", 10)
	v.SetDefault("sources.seller_api.timeout", "30s")
	v.SetDefault("sources.market_api.rate_per_sec", 2)
	v.SetDefault("sources.market_api.burst", 4)
	v.SetDefault("sources.market_api.timeout", "30s")
	v.SetDefault("dq.staleness_hours", 72)
	v.SetDefault("dq.volatility_threshold", 0.35)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.dsn", "DATABASE_DSN")
	v.BindEnv("sources.seller_api.base_url", "SELLER_API_BASE_URL")
	v.BindEnv("sources.seller_api.api_key", "SELLER_API_KEY")
	v.BindEnv("sources.market_api.base_url", "MARKET_API_BASE_URL")
	v.BindEnv("sources.market_api.api_key", "MARKET_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
