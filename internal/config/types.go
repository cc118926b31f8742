package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds every server-level option for the overlay service.
type Config struct {
	Server ServerConfig `koanf:"server"`
}

// ServerConfig collects the bootstrap knobs for the service binary.
type ServerConfig struct {
	Listen      ListenConfig      `koanf:"listen"`
	Logging     LoggingConfig     `koanf:"logging"`
	Cache       CacheConfig       `koanf:"cache"`
	Marketplace MarketplaceConfig `koanf:"marketplace"`
	Scan        ScanConfig        `koanf:"scan"`
	Badge       BadgeConfig       `koanf:"badge"`
}

// ListenConfig instructs the HTTP listener about bind address and port.
type ListenConfig struct {
	Address string `koanf:"address"`
	Port    int    `koanf:"port"`
}

// LoggingConfig expresses log level and format.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// CacheConfig selects the offer cache backend and its retention window.
type CacheConfig struct {
	Backend   string           `koanf:"backend"`
	TTL       string           `koanf:"ttl"`
	KeyPrefix string           `koanf:"keyPrefix"`
	Redis     RedisCacheConfig `koanf:"redis"`
}

// Retention parses the configured TTL. Validate guarantees it parses, so
// callers holding a loaded config can ignore the error.
func (c CacheConfig) Retention() (time.Duration, error) {
	if strings.TrimSpace(c.TTL) == "" {
		return 0, errors.New("config: cache ttl required")
	}
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 0, fmt.Errorf("config: cache ttl: %w", err)
	}
	if d <= 0 {
		return 0, errors.New("config: cache ttl must be positive")
	}
	return d, nil
}

type RedisCacheConfig struct {
	Address  string              `koanf:"address"`
	Username string              `koanf:"username"`
	Password string              `koanf:"password"`
	DB       int                 `koanf:"db"`
	TLS      RedisTLSCacheConfig `koanf:"tls"`
}

type RedisTLSCacheConfig struct {
	Enabled bool   `koanf:"enabled"`
	CAFile  string `koanf:"caFile"`
}

// MarketplaceConfig points the lookup client at the marketplace search
// endpoint.
type MarketplaceConfig struct {
	// BaseURL is the marketplace origin without a trailing slash.
	BaseURL string `koanf:"baseURL"`
	// SearchPath is a format string with one %s verb for the encoded name.
	SearchPath string `koanf:"searchPath"`
	// UserAgent is sent with every upstream fetch.
	UserAgent string `koanf:"userAgent"`
	// TimeoutSeconds bounds one upstream fetch.
	TimeoutSeconds int `koanf:"timeoutSeconds"`
}

// Timeout returns the upstream fetch timeout.
func (c MarketplaceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ScanConfig paces the scan loop.
type ScanConfig struct {
	// StartupDelayMs defers the first scan so the host page's dynamic
	// rendering settles before the first pass.
	StartupDelayMs int `koanf:"startupDelayMs"`
	// MissDelayMs is the pause after each container whose lookup was not
	// already cached, rate-limiting novel network lookups.
	MissDelayMs int `koanf:"missDelayMs"`
	// SelectorsFile optionally overrides the built-in selector strategies;
	// the file is watched and hot-reloaded.
	SelectorsFile string `koanf:"selectorsFile"`
}

// StartupDelay returns the initial scan deferral.
func (c ScanConfig) StartupDelay() time.Duration {
	return time.Duration(c.StartupDelayMs) * time.Millisecond
}

// MissDelay returns the per-miss pacing interval.
func (c ScanConfig) MissDelay() time.Duration {
	return time.Duration(c.MissDelayMs) * time.Millisecond
}

// BadgeConfig selects the badge fragment template.
type BadgeConfig struct {
	TemplateFile string `koanf:"templateFile"`
}

// DefaultConfig returns the configuration used when no file or environment
// overrides are present.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Listen: ListenConfig{
				Address: "0.0.0.0",
				Port:    8080,
			},
			Logging: LoggingConfig{
				Level:  "info",
				Format: "json",
			},
			Cache: CacheConfig{
				Backend:   "memory",
				TTL:       "6h",
				KeyPrefix: "shopby_cache_",
			},
			Marketplace: MarketplaceConfig{
				BaseURL:        "https://shop.by",
				SearchPath:     "/find/?findtext=%s&sort=price--number",
				UserAgent:      "shopglance/1.0",
				TimeoutSeconds: 30,
			},
			Scan: ScanConfig{
				StartupDelayMs: 2000,
				MissDelayMs:    500,
			},
		},
	}
}

// Validate rejects configurations the runtime could not honor.
func (c Config) Validate() error {
	switch strings.ToLower(c.Server.Logging.Level) {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("config: unsupported log level %q", c.Server.Logging.Level)
	}
	switch strings.ToLower(c.Server.Logging.Format) {
	case "json", "text", "":
	default:
		return fmt.Errorf("config: unsupported log format %q", c.Server.Logging.Format)
	}

	if c.Server.Listen.Port < 0 || c.Server.Listen.Port > 65535 {
		return fmt.Errorf("config: listen port %d out of range", c.Server.Listen.Port)
	}

	switch strings.ToLower(strings.TrimSpace(c.Server.Cache.Backend)) {
	case "", "memory":
	case "redis":
		if strings.TrimSpace(c.Server.Cache.Redis.Address) == "" {
			return errors.New("config: redis cache backend requires an address")
		}
	default:
		return fmt.Errorf("config: unsupported cache backend %q", c.Server.Cache.Backend)
	}
	if _, err := c.Server.Cache.Retention(); err != nil {
		return err
	}

	if strings.TrimSpace(c.Server.Marketplace.BaseURL) == "" {
		return errors.New("config: marketplace base URL required")
	}
	if !strings.Contains(c.Server.Marketplace.SearchPath, "%s") {
		return errors.New("config: marketplace search path must contain a %s placeholder")
	}

	if c.Server.Scan.StartupDelayMs < 0 || c.Server.Scan.MissDelayMs < 0 {
		return errors.New("config: scan delays must not be negative")
	}
	return nil
}
