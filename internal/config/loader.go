package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Loader hydrates the runtime configuration while respecting env > file >
// default precedence.
type Loader struct {
	envPrefix string
	files     []string
}

// NewLoader prepares a config hydrator that honors the env-first contract
// before touching files or defaults.
func NewLoader(envPrefix string, files ...string) *Loader {
	return &Loader{
		envPrefix: envPrefix,
		files:     files,
	}
}

// Load assembles the effective snapshot using the documented precedence
// rules. File format follows the extension: yaml, json, or toml.
func (l *Loader) Load(ctx context.Context) (Config, error) {
	defaultCfg := DefaultConfig()
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(structToMap(defaultCfg), "."), nil); err != nil {
		return Config{}, fmt.Errorf("config: load defaults: %w", err)
	}

	for _, path := range l.files {
		if path == "" {
			continue
		}
		select {
		case <-ctx.Done():
			return Config{}, ctx.Err()
		default:
		}
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("config: file %s not found", path)
			}
			return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
		}
		parser, err := parserFor(path)
		if err != nil {
			return Config{}, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return Config{}, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if l.envPrefix != "" {
		canonical := map[string]string{
			"server.cache.keyprefix":            "server.cache.keyPrefix",
			"server.cache.redis.tls.cafile":     "server.cache.redis.tls.caFile",
			"server.marketplace.baseurl":        "server.marketplace.baseURL",
			"server.marketplace.searchpath":     "server.marketplace.searchPath",
			"server.marketplace.useragent":      "server.marketplace.userAgent",
			"server.marketplace.timeoutseconds": "server.marketplace.timeoutSeconds",
			"server.scan.startupdelayms":        "server.scan.startupDelayMs",
			"server.scan.missdelayms":           "server.scan.missDelayMs",
			"server.scan.selectorsfile":         "server.scan.selectorsFile",
			"server.badge.templatefile":         "server.badge.templateFile",
		}
		transform := func(s string) string {
			// Double underscores signal a nested path
			// (SERVER__CACHE__TTL -> server.cache.ttl).
			key := strings.TrimPrefix(s, l.envPrefix+"_")
			key = strings.ReplaceAll(key, "__", ".")
			lower := strings.ToLower(key)
			if mapped, ok := canonical[lower]; ok {
				return mapped
			}
			// Single underscores are removed so KEY_PREFIX collapses into
			// keyprefix when callers choose not to use double underscores
			// for object nesting.
			key = strings.ReplaceAll(key, "_", "")
			return strings.ToLower(key)
		}
		if err := k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
			return Config{}, fmt.Errorf("config: load env: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// structToMap converts DefaultConfig into a map for the koanf confmap provider.
func structToMap(cfg Config) map[string]any {
	return map[string]any{
		"server": map[string]any{
			"listen": map[string]any{
				"address": cfg.Server.Listen.Address,
				"port":    cfg.Server.Listen.Port,
			},
			"logging": map[string]any{
				"level":  cfg.Server.Logging.Level,
				"format": cfg.Server.Logging.Format,
			},
			"cache": map[string]any{
				"backend":   cfg.Server.Cache.Backend,
				"ttl":       cfg.Server.Cache.TTL,
				"keyPrefix": cfg.Server.Cache.KeyPrefix,
				"redis": map[string]any{
					"address":  cfg.Server.Cache.Redis.Address,
					"username": cfg.Server.Cache.Redis.Username,
					"password": cfg.Server.Cache.Redis.Password,
					"db":       cfg.Server.Cache.Redis.DB,
					"tls": map[string]any{
						"enabled": cfg.Server.Cache.Redis.TLS.Enabled,
						"caFile":  cfg.Server.Cache.Redis.TLS.CAFile,
					},
				},
			},
			"marketplace": map[string]any{
				"baseURL":        cfg.Server.Marketplace.BaseURL,
				"searchPath":     cfg.Server.Marketplace.SearchPath,
				"userAgent":      cfg.Server.Marketplace.UserAgent,
				"timeoutSeconds": cfg.Server.Marketplace.TimeoutSeconds,
			},
			"scan": map[string]any{
				"startupDelayMs": cfg.Server.Scan.StartupDelayMs,
				"missDelayMs":    cfg.Server.Scan.MissDelayMs,
				"selectorsFile":  cfg.Server.Scan.SelectorsFile,
			},
			"badge": map[string]any{
				"templateFile": cfg.Server.Badge.TemplateFile,
			},
		},
	}
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return kjson.Parser(), nil
	case ".toml", ".tml":
		return toml.Parser(), nil
	default:
		return nil, fmt.Errorf("config: unsupported file extension %q", filepath.Ext(path))
	}
}
