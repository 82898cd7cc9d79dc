package config

import (
	"fmt"
	"net/url"
	"slices"
)

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

var (
	validEnvs        = []string{EnvDevelopment, EnvStaging, EnvProduction}
	validLogLevels   = []string{"trace", "debug", "info", "warn", "error"}
	validAPIVersions = []string{"v1", "v2"}
)

// Validate checks every section and returns the first *ConfigError found.
func Validate(cfg *Config) error {
	if err := validateApp(&cfg.App); err != nil {
		return fmt.Errorf("app config: %w", err)
	}
	if err := validateLog(&cfg.Log); err != nil {
		return fmt.Errorf("log config: %w", err)
	}
	if err := validateClient(&cfg.Client); err != nil {
		return fmt.Errorf("client config: %w", err)
	}

	obs := cfg.Observability
	obs.ApplyDefaults()
	if err := obs.Validate(); err != nil {
		return fmt.Errorf("observability config: %w", err)
	}
	return nil
}

func validateApp(cfg *AppConfig) error {
	if cfg.Name == "" {
		return NewMissingFieldError("app.name")
	}
	if !slices.Contains(validEnvs, cfg.Env) {
		return NewInvalidFieldError("app.env", fmt.Sprintf("unknown environment %q", cfg.Env), validEnvs)
	}
	return nil
}

func validateLog(cfg *LogConfig) error {
	if !slices.Contains(validLogLevels, cfg.Level) {
		return NewInvalidFieldError("log.level", fmt.Sprintf("unknown level %q", cfg.Level), validLogLevels)
	}
	return nil
}

func validateClient(cfg *ClientConfig) error {
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return NewInvalidFieldError("client.baseurl", "must be an absolute http or https url", nil)
		}
	}
	if !slices.Contains(validAPIVersions, cfg.APIVersion) {
		return NewInvalidFieldError("client.apiversion", fmt.Sprintf("unknown version %q", cfg.APIVersion), validAPIVersions)
	}
	if cfg.MaxAttempts < 1 {
		return NewInvalidFieldError("client.maxattempts", "must be at least 1", nil)
	}

	nonNegative := []struct {
		field string
		neg   bool
	}{
		{"client.timeout", cfg.Timeout < 0},
		{"client.backoff.base", cfg.Backoff.Base < 0},
		{"client.backoff.maxretryafter", cfg.Backoff.MaxRetryAfter < 0},
		{"client.maxpayloadlogbytes", cfg.MaxPayloadLogBytes < 0},
		{"client.ratelimit.rps", cfg.RateLimit.RPS < 0},
		{"client.ratelimit.burst", cfg.RateLimit.Burst < 0},
	}
	for _, n := range nonNegative {
		if n.neg {
			return NewInvalidFieldError(n.field, "must not be negative", nil)
		}
	}

	for _, status := range cfg.RetryOnStatus {
		if status < 100 || status > 599 {
			return NewOutOfRangeError("client.retryonstatus", status, 100, 599)
		}
	}
	return nil
}
