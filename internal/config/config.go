// Package config defines the top-level configuration for the depth bot and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by DEPTHBOT_* environment variables.
type Config struct {
	Binance  BinanceConfig  `toml:"binance"`
	Analysis AnalysisConfig `toml:"analysis"`
	Cache    CacheConfig    `toml:"cache"`
	Redis    RedisConfig    `toml:"redis"`
	Telegram TelegramConfig `toml:"telegram"`
	Server   ServerConfig   `toml:"server"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// BinanceConfig holds the public spot REST endpoint and request parameters.
type BinanceConfig struct {
	BaseURL    string   `toml:"base_url"`
	DepthLimit int      `toml:"depth_limit"`
	Timeout    duration `toml:"timeout"`
}

// AnalysisConfig controls symbol validation and depth aggregation.
type AnalysisConfig struct {
	TopN            int       `toml:"top_n"`
	PriceScale      int       `toml:"price_scale"`
	MaxDepth        int       `toml:"max_depth"`
	DepthOptions    []float64 `toml:"depth_options"`
	ExcludedAssets  []string  `toml:"excluded_assets"`
	RegistryRefresh duration  `toml:"registry_refresh"`
}

// CacheConfig selects and tunes the analysis result cache.
type CacheConfig struct {
	// Backend is "memory" or "redis".
	Backend       string   `toml:"backend"`
	TTL           duration `toml:"ttl"`
	MaxEntries    int      `toml:"max_entries"`
	SweepInterval duration `toml:"sweep_interval"`
}

// RedisConfig holds Redis connection parameters. Only used when
// cache.backend is "redis".
type RedisConfig struct {
	Addr        string   `toml:"addr"`
	Password    string   `toml:"password"`
	DB          int      `toml:"db"`
	PoolSize    int      `toml:"pool_size"`
	MaxRetries  int      `toml:"max_retries"`
	DialTimeout duration `toml:"dial_timeout"`
	TLSEnabled  bool     `toml:"tls_enabled"`
	KeyPrefix   string   `toml:"key_prefix"`
}

// TelegramConfig holds bot credentials and dialogue tuning.
type TelegramConfig struct {
	Token          string   `toml:"token"`
	APIURL         string   `toml:"api_url"`
	AllowedUsers   []int64  `toml:"allowed_users"`
	PollTimeout    duration `toml:"poll_timeout"`
	MaxConcurrent  int      `toml:"max_concurrent"`
	RequestTimeout duration `toml:"request_timeout"`
	SessionIdle    duration `toml:"session_idle"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "30s", "5m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled        bool     `toml:"enabled"`
	Port           int      `toml:"port"`
	CORSOrigins    []string `toml:"cors_origins"`
	APIKey         string   `toml:"api_key"`
	RateLimitRPS   float64  `toml:"rate_limit_rps"`
	RateLimitBurst int      `toml:"rate_limit_burst"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Binance: BinanceConfig{
			BaseURL:    "https://api.binance.com",
			DepthLimit: 5000,
			Timeout:    duration{10 * time.Second},
		},
		Analysis: AnalysisConfig{
			TopN:            10,
			PriceScale:      8,
			MaxDepth:        50,
			DepthOptions:    []float64{3, 5, 8, 10, 15},
			ExcludedAssets:  []string{"BTC", "ETH", "WBTC", "WETH"},
			RegistryRefresh: duration{5 * time.Minute},
		},
		Cache: CacheConfig{
			Backend:       "memory",
			TTL:           duration{60 * time.Second},
			MaxEntries:    1024,
			SweepInterval: duration{30 * time.Second},
		},
		Redis: RedisConfig{
			Addr:        "localhost:6379",
			DB:          0,
			PoolSize:    10,
			MaxRetries:  3,
			DialTimeout: duration{5 * time.Second},
			KeyPrefix:   "depthbot:",
		},
		Telegram: TelegramConfig{
			APIURL:         "https://api.telegram.org",
			PollTimeout:    duration{30 * time.Second},
			MaxConcurrent:  8,
			RequestTimeout: duration{20 * time.Second},
			SessionIdle:    duration{30 * time.Minute},
		},
		Server: ServerConfig{
			Enabled:        false,
			Port:           8000,
			CORSOrigins:    []string{"http://localhost:3000"},
			RateLimitRPS:   2,
			RateLimitBurst: 10,
		},
		Mode:     "bot",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"bot":    true,
	"server": true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validBackends = map[string]bool{
	"memory": true,
	"redis":  true,
}

// NeedsBot reports whether the Telegram bot runs in the configured mode.
func (c *Config) NeedsBot() bool {
	m := strings.ToLower(c.Mode)
	return m == "bot" || m == "full"
}

// NeedsServer reports whether the HTTP API runs in the configured mode.
func (c *Config) NeedsServer() bool {
	m := strings.ToLower(c.Mode)
	return m == "server" || (m == "full" && c.Server.Enabled)
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: bot, server, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Binance
	if c.Binance.BaseURL == "" {
		errs = append(errs, "binance: base_url must not be empty")
	}
	if c.Binance.DepthLimit < 1 || c.Binance.DepthLimit > 5000 {
		errs = append(errs, fmt.Sprintf("binance: depth_limit must be 1-5000, got %d", c.Binance.DepthLimit))
	}
	if c.Binance.Timeout.Duration <= 0 {
		errs = append(errs, "binance: timeout must be > 0")
	}

	// Analysis
	if c.Analysis.TopN < 1 {
		errs = append(errs, "analysis: top_n must be >= 1")
	}
	if c.Analysis.PriceScale < 0 || c.Analysis.PriceScale > 18 {
		errs = append(errs, fmt.Sprintf("analysis: price_scale must be 0-18, got %d", c.Analysis.PriceScale))
	}
	if c.Analysis.MaxDepth < 1 || c.Analysis.MaxDepth > 100 {
		errs = append(errs, fmt.Sprintf("analysis: max_depth must be 1-100, got %d", c.Analysis.MaxDepth))
	}
	for _, d := range c.Analysis.DepthOptions {
		if d <= 0 || d > float64(c.Analysis.MaxDepth) {
			errs = append(errs, fmt.Sprintf("analysis: depth option %g outside (0, %d]", d, c.Analysis.MaxDepth))
		}
	}
	if c.Analysis.RegistryRefresh.Duration < time.Minute {
		errs = append(errs, "analysis: registry_refresh must be >= 1m")
	}

	// Cache
	if !validBackends[strings.ToLower(c.Cache.Backend)] {
		errs = append(errs, fmt.Sprintf("cache: unknown backend %q (valid: memory, redis)", c.Cache.Backend))
	}
	if c.Cache.TTL.Duration <= 0 {
		errs = append(errs, "cache: ttl must be > 0")
	}
	if c.Cache.MaxEntries < 0 {
		errs = append(errs, "cache: max_entries must be >= 0")
	}
	if c.Cache.SweepInterval.Duration <= 0 {
		errs = append(errs, "cache: sweep_interval must be > 0")
	}

	// Redis
	if strings.ToLower(c.Cache.Backend) == "redis" {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Telegram
	if c.NeedsBot() {
		if c.Telegram.Token == "" {
			errs = append(errs, "telegram: token is required for mode "+c.Mode)
		}
		if len(c.Telegram.AllowedUsers) == 0 {
			errs = append(errs, "telegram: allowed_users must list at least one user id")
		}
		if c.Telegram.MaxConcurrent < 1 {
			errs = append(errs, "telegram: max_concurrent must be >= 1")
		}
		if c.Telegram.PollTimeout.Duration < 0 {
			errs = append(errs, "telegram: poll_timeout must be >= 0")
		}
	}

	// Server
	if c.NeedsServer() {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimitRPS < 0 {
			errs = append(errs, "server: rate_limit_rps must be >= 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
