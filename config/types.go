package config

import (
	"time"

	"github.com/knadh/koanf/v2"

	"github.com/gaborage/apiclient/observability"
)

// Config is the configuration of a program calling the remote API.
// The retained koanf instance gives access to keys outside these sections.
type Config struct {
	App           AppConfig            `koanf:"app"`
	Log           LogConfig            `koanf:"log"`
	Client        ClientConfig         `koanf:"client"`
	Observability observability.Config `koanf:"observability"`

	k *koanf.Koanf
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name    string `koanf:"name"`
	Version string `koanf:"version"`
	Env     string `koanf:"env"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`
	// Mask lists extra field names hidden from log output.
	Mask []string `koanf:"mask"`
}

// ClientConfig holds the defaults of the API client.
type ClientConfig struct {
	BaseURL    string        `koanf:"baseurl"`
	Token      string        `koanf:"token"`
	APIVersion string        `koanf:"apiversion"`
	Timeout    time.Duration `koanf:"timeout"`
	UserAgent  string        `koanf:"useragent"`

	MaxAttempts   int           `koanf:"maxattempts"`
	Backoff       BackoffConfig `koanf:"backoff"`
	RetryOnStatus []int         `koanf:"retryonstatus"`

	LogPayloads        bool `koanf:"logpayloads"`
	MaxPayloadLogBytes int  `koanf:"maxpayloadlogbytes"`

	RateLimit RateLimitConfig   `koanf:"ratelimit"`
	Headers   map[string]string `koanf:"headers"`
}

// BackoffConfig holds retry delay settings.
type BackoffConfig struct {
	Base          time.Duration `koanf:"base"`
	Jitter        bool          `koanf:"jitter"`
	MaxRetryAfter time.Duration `koanf:"maxretryafter"`
}

// RateLimitConfig holds the client-side request ceiling. RPS 0 disables it.
type RateLimitConfig struct {
	RPS   float64 `koanf:"rps"`
	Burst int     `koanf:"burst"`
}
