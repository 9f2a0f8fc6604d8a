package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/pivotdata/syncgate/internal/license"
	"github.com/pivotdata/syncgate/internal/quota"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Store     StoreConfig     `koanf:"store"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Licenses  []LicenseConfig `koanf:"licenses"`
}

type ServerConfig struct {
	Port           int `koanf:"port"`
	TimeoutSeconds int `koanf:"timeout_seconds"`
}

type StoreConfig struct {
	Type   string       `koanf:"type"` // redis, sqlite, memory
	Redis  RedisConfig  `koanf:"redis"`
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type RateLimitConfig struct {
	WindowSeconds      int    `koanf:"window_seconds"`
	FailPolicy         string `koanf:"fail_policy"` // open, closed
	StoreTimeoutMillis int    `koanf:"store_timeout_ms"`
	// Limits maps license tier -> category -> requests per window.
	// Empty means the built-in defaults.
	Limits map[string]map[string]int `koanf:"limits"`
}

// LicenseConfig is one licensed tenant known to the static verifier.
// Timestamps are RFC 3339; empty means unbounded.
type LicenseConfig struct {
	KeyHash   string `koanf:"key_hash"`
	TenantKey string `koanf:"tenant_key"`
	Tier      string `koanf:"tier"`
	Email     string `koanf:"email"`
	LicenseID string `koanf:"license_id"`
	NotBefore string `koanf:"not_before"`
	ExpiresAt string `koanf:"expires_at"`
}

// Load reads configuration from an optional YAML file, then environment
// variables with the SYNCGATE_ prefix, then applies defaults for anything
// still unset. The returned Config is immutable by convention: build it
// once at startup and pass it explicitly.
//
// Environment variables use a double underscore between nesting levels so
// that snake_case keys survive: SYNCGATE_RATELIMIT__WINDOW_SECONDS maps
// to ratelimit.window_seconds.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("SYNCGATE_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "SYNCGATE_")), "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	if !k.Exists("server.port") {
		k.Set("server.port", 8080)
	}
	if !k.Exists("server.timeout_seconds") {
		k.Set("server.timeout_seconds", 30)
	}
	if !k.Exists("store.type") {
		k.Set("store.type", "memory")
	}
	if !k.Exists("store.redis.addr") {
		k.Set("store.redis.addr", "localhost:6379")
	}
	if !k.Exists("store.sqlite.path") {
		k.Set("store.sqlite.path", "./data/counters.db")
	}
	if !k.Exists("ratelimit.window_seconds") {
		k.Set("ratelimit.window_seconds", 60)
	}
	if !k.Exists("ratelimit.fail_policy") {
		k.Set("ratelimit.fail_policy", "open")
	}
	if !k.Exists("ratelimit.store_timeout_ms") {
		k.Set("ratelimit.store_timeout_ms", 2000)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	if cfg.RateLimit.FailPolicy != "open" && cfg.RateLimit.FailPolicy != "closed" {
		return nil, fmt.Errorf("invalid ratelimit.fail_policy %q: must be open or closed", cfg.RateLimit.FailPolicy)
	}

	return &cfg, nil
}

// TierLimits converts configured limits to the quota package's types.
// Returns nil when no limits are configured, which makes the resolver
// fall back to its built-in defaults.
func (c RateLimitConfig) TierLimits() quota.TierLimits {
	if len(c.Limits) == 0 {
		return nil
	}

	limits := make(quota.TierLimits, len(c.Limits))
	for tier, categories := range c.Limits {
		set := make(quota.Set, len(categories))
		for category, limit := range categories {
			set[quota.Category(category)] = limit
		}
		limits[tier] = set
	}
	return limits
}

// Window returns the accounting window as a duration.
func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// StoreTimeout returns the counter store call bound as a duration.
func (c RateLimitConfig) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutMillis) * time.Millisecond
}

// LicenseEntries converts configured licenses to verifier entries.
func (c *Config) LicenseEntries() ([]license.Entry, error) {
	entries := make([]license.Entry, 0, len(c.Licenses))
	for _, lc := range c.Licenses {
		entry := license.Entry{
			KeyHash:   lc.KeyHash,
			TenantKey: lc.TenantKey,
			Tier:      lc.Tier,
			Email:     lc.Email,
			LicenseID: lc.LicenseID,
		}

		if lc.NotBefore != "" {
			t, err := time.Parse(time.RFC3339, lc.NotBefore)
			if err != nil {
				return nil, fmt.Errorf("license %s: invalid not_before: %w", lc.KeyHash, err)
			}
			entry.NotBefore = t
		}
		if lc.ExpiresAt != "" {
			t, err := time.Parse(time.RFC3339, lc.ExpiresAt)
			if err != nil {
				return nil, fmt.Errorf("license %s: invalid expires_at: %w", lc.KeyHash, err)
			}
			entry.ExpiresAt = t
		}

		entries = append(entries, entry)
	}
	return entries, nil
}
