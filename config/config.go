// Package config loads client settings from defaults, YAML files and APICLIENT_
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/gaborage/apiclient/httpclient"
)

// EnvPrefix marks the environment variables read by Load.
// APICLIENT_CLIENT_MAXATTEMPTS sets client.maxattempts.
const EnvPrefix = "APICLIENT_"

// listKeys are split on commas when read from the environment.
var listKeys = map[string]bool{
	"client.retryonstatus": true,
	"log.mask":             true,
}

// Load reads configuration from the working directory. See LoadDir.
func Load() (*Config, error) {
	return LoadDir(".")
}

// LoadDir loads configuration from multiple sources with priority:
// 1. Environment variables with the APICLIENT_ prefix (highest priority)
// 2. dir/config.<app.env>.yaml
// 3. dir/config.yaml
// 4. Default values (lowest priority)
// Missing YAML files are skipped.
func LoadDir(dir string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := loadOptionalFile(k, filepath.Join(dir, "config.yaml")); err != nil {
		return nil, err
	}

	appEnv := os.Getenv(EnvVarName("app.env"))
	if appEnv == "" {
		appEnv = k.String("app.env")
	}
	if appEnv != "" {
		if err := loadOptionalFile(k, filepath.Join(dir, fmt.Sprintf("config.%s.yaml", appEnv))); err != nil {
			return nil, err
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: transformEnv,
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	return build(k)
}

// LoadFromBytes loads defaults overlaid with the YAML document data.
// The environment is not consulted.
func LoadFromBytes(data []byte) (*Config, error) {
	k := koanf.New(".")
	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return build(k)
}

func build(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.k = k

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadOptionalFile(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// transformEnv maps APICLIENT_CLIENT_BACKOFF_BASE to client.backoff.base.
func transformEnv(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	key = strings.ReplaceAll(key, "_", ".")
	if listKeys[key] {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return key, parts
	}
	return key, value
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":    "apiclient",
		"app.version": httpclient.Version,
		"app.env":     EnvDevelopment,

		"log.level":  "info",
		"log.pretty": false,

		"client.apiversion":            string(httpclient.APIv2),
		"client.maxattempts":           httpclient.DefaultMaxAttempts,
		"client.backoff.base":          httpclient.DefaultBackoffBase,
		"client.backoff.jitter":        true,
		"client.backoff.maxretryafter": httpclient.DefaultMaxRetryAfter,
		"client.retryonstatus":         []int{httpclient.StatusTooManyRequests},
		"client.timeout":               time.Duration(0),
		"client.maxpayloadlogbytes":    1024,
		"client.ratelimit.rps":         0.0,
		"client.ratelimit.burst":       1,

		"observability.enabled": false,
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}

// GetString returns the value at key, or the first default when the key is unset.
// It reaches keys outside the typed sections.
func (c *Config) GetString(key string, defaultVal ...string) string {
	if c == nil || c.k == nil || !c.k.Exists(key) {
		if len(defaultVal) > 0 {
			return defaultVal[0]
		}
		return ""
	}
	return c.k.String(key)
}

// Exists reports whether key was set by any source.
func (c *Config) Exists(key string) bool {
	return c != nil && c.k != nil && c.k.Exists(key)
}

// Unmarshal decodes the section at key into out.
func (c *Config) Unmarshal(key string, out any) error {
	if c == nil || c.k == nil {
		return fmt.Errorf("config not loaded")
	}
	return c.k.Unmarshal(key, out)
}
