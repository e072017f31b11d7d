package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies DEPTHBOT_* environment variable overrides, and
// returns the final Config. An empty path skips the file and uses defaults
// plus environment. The returned Config has NOT been validated; the caller
// should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known DEPTHBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Binance ──
	setStr(&cfg.Binance.BaseURL, "DEPTHBOT_BINANCE_BASE_URL")
	setInt(&cfg.Binance.DepthLimit, "DEPTHBOT_BINANCE_DEPTH_LIMIT")
	setDuration(&cfg.Binance.Timeout, "DEPTHBOT_BINANCE_TIMEOUT")

	// ── Analysis ──
	setInt(&cfg.Analysis.TopN, "DEPTHBOT_ANALYSIS_TOP_N")
	setInt(&cfg.Analysis.PriceScale, "DEPTHBOT_ANALYSIS_PRICE_SCALE")
	setInt(&cfg.Analysis.MaxDepth, "DEPTHBOT_ANALYSIS_MAX_DEPTH")
	setFloat64Slice(&cfg.Analysis.DepthOptions, "DEPTHBOT_ANALYSIS_DEPTH_OPTIONS")
	setStringSlice(&cfg.Analysis.ExcludedAssets, "DEPTHBOT_ANALYSIS_EXCLUDED_ASSETS")
	setDuration(&cfg.Analysis.RegistryRefresh, "DEPTHBOT_ANALYSIS_REGISTRY_REFRESH")

	// ── Cache ──
	setStr(&cfg.Cache.Backend, "DEPTHBOT_CACHE_BACKEND")
	setDuration(&cfg.Cache.TTL, "DEPTHBOT_CACHE_TTL")
	setInt(&cfg.Cache.MaxEntries, "DEPTHBOT_CACHE_MAX_ENTRIES")
	setDuration(&cfg.Cache.SweepInterval, "DEPTHBOT_CACHE_SWEEP_INTERVAL")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "DEPTHBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "DEPTHBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "DEPTHBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "DEPTHBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "DEPTHBOT_REDIS_MAX_RETRIES")
	setDuration(&cfg.Redis.DialTimeout, "DEPTHBOT_REDIS_DIAL_TIMEOUT")
	setBool(&cfg.Redis.TLSEnabled, "DEPTHBOT_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "DEPTHBOT_REDIS_KEY_PREFIX")

	// ── Telegram ──
	setStr(&cfg.Telegram.Token, "DEPTHBOT_TELEGRAM_TOKEN")
	setStr(&cfg.Telegram.APIURL, "DEPTHBOT_TELEGRAM_API_URL")
	setInt64Slice(&cfg.Telegram.AllowedUsers, "DEPTHBOT_TELEGRAM_ALLOWED_USERS")
	setDuration(&cfg.Telegram.PollTimeout, "DEPTHBOT_TELEGRAM_POLL_TIMEOUT")
	setInt(&cfg.Telegram.MaxConcurrent, "DEPTHBOT_TELEGRAM_MAX_CONCURRENT")
	setDuration(&cfg.Telegram.RequestTimeout, "DEPTHBOT_TELEGRAM_REQUEST_TIMEOUT")
	setDuration(&cfg.Telegram.SessionIdle, "DEPTHBOT_TELEGRAM_SESSION_IDLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "DEPTHBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "DEPTHBOT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "DEPTHBOT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "DEPTHBOT_SERVER_API_KEY")
	setFloat64(&cfg.Server.RateLimitRPS, "DEPTHBOT_SERVER_RATE_LIMIT_RPS")
	setInt(&cfg.Server.RateLimitBurst, "DEPTHBOT_SERVER_RATE_LIMIT_BURST")

	// ── Top-level ──
	setStr(&cfg.Mode, "DEPTHBOT_MODE")
	setStr(&cfg.LogLevel, "DEPTHBOT_LOG_LEVEL")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return cleaned
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		if cleaned := splitList(v); len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

// setInt64Slice replaces dst only when every element parses.
func setInt64Slice(dst *[]int64, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	parts := splitList(v)
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return
		}
		out = append(out, n)
	}
	if len(out) > 0 {
		*dst = out
	}
}

func setFloat64Slice(dst *[]float64, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	parts := splitList(v)
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return
		}
		out = append(out, f)
	}
	if len(out) > 0 {
		*dst = out
	}
}
