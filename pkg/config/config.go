package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"FolioPulse/pkg/logger"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendMemory  = "memory"
	BackendRedis   = "redis"
	BackendLayered = "layered"
	BackendSQLite  = "sqlite"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lt=65536"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"2s"`
		AllowOrigins    []string      `yaml:"allow_origins"`
	} `yaml:"server"`
	Logger  logger.Config `yaml:"logger"`
	Metrics struct {
		Disabled bool   `yaml:"disabled"`
		Path     string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Storage struct {
		Backend   string        `yaml:"backend" default:"sqlite" validate:"oneof=memory redis layered sqlite"`
		RootKey   string        `yaml:"root_key" default:"portfolio_state"`
		OpTimeout time.Duration `yaml:"op_timeout" default:"3s"`
		SQLite    struct {
			Path string `yaml:"path" default:"foliopulse.db"`
		} `yaml:"sqlite"`
		Redis struct {
			Host     string `yaml:"host" default:"localhost"`
			Port     int    `yaml:"port" default:"6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			PoolSize int    `yaml:"pool_size" default:"10"`
			Prefix   string `yaml:"prefix" default:"foliopulse"`
		} `yaml:"redis"`
		// Layered sizes the memory tier kept in front of redis.
		Layered struct {
			MemorySize int           `yaml:"memory_size" default:"1000" validate:"gte=0"`
			MemoryTTL  time.Duration `yaml:"memory_ttl" default:"10m"`
		} `yaml:"layered"`
	} `yaml:"storage"`
	Provider struct {
		ChartURL        string        `yaml:"chart_url" default:"https://query1.finance.yahoo.com/v8/finance/chart" validate:"url"`
		SearchURL       string        `yaml:"search_url" default:"https://query1.finance.yahoo.com/v1/finance/search" validate:"url"`
		UserAgent       string        `yaml:"user_agent" default:"Mozilla/5.0 (compatible; FolioPulse/1.0)"`
		AttemptTimeout  time.Duration `yaml:"attempt_timeout" default:"8s"`
		Attempts        int           `yaml:"attempts" default:"3" validate:"gte=1"`
		RetryDelay      time.Duration `yaml:"retry_delay" default:"1s"`
		RateCapacity    int           `yaml:"rate_capacity" default:"10" validate:"gte=1"`
		RatePerSecond   int           `yaml:"rate_per_second" default:"5" validate:"gte=1"`
		FXCacheTTL      time.Duration `yaml:"fx_cache_ttl" default:"15m"`
		DisplayCurrency string        `yaml:"display_currency" default:"EUR" validate:"len=3"`
	} `yaml:"provider"`
	Refresh struct {
		BatchSize    int           `yaml:"batch_size" default:"3" validate:"gte=1"`
		BatchPause   time.Duration `yaml:"batch_pause" default:"500ms"`
		DefaultRange string        `yaml:"default_range" default:"1M" validate:"oneof=1D 1W 1M 3M 1Y 5Y"`
	} `yaml:"refresh"`
	AutoRefresh struct {
		Enabled         bool `yaml:"enabled"`
		IntervalMinutes int  `yaml:"interval_minutes" default:"5" validate:"gte=1"`
	} `yaml:"auto_refresh"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	var c Config

	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) || path == "":
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("FOLIO_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("FOLIO_SQLITE_PATH"); v != "" {
		c.Storage.SQLite.Path = v
	}
	if v := os.Getenv("FOLIO_REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Storage.Redis.Host = host
		if ok {
			if p, err := strconv.Atoi(port); err == nil {
				c.Storage.Redis.Port = p
			}
		}
	}
	if v := os.Getenv("FOLIO_HTTP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("FOLIO_PROVIDER_BASE_URL"); v != "" {
		base := strings.TrimRight(v, "/")
		c.Provider.ChartURL = base + "/v8/finance/chart"
		c.Provider.SearchURL = base + "/v1/finance/search"
	}
	if v := os.Getenv("FOLIO_AUTO_REFRESH"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.AutoRefresh.Enabled = b
		}
	}
	if v := os.Getenv("FOLIO_LOG_LEVEL"); v != "" {
		c.Logger.Level = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	return validate.Struct(c)
}
