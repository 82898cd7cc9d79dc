package config

import (
	"maps"
	"slices"

	"github.com/gaborage/apiclient/httpclient"
	"github.com/gaborage/apiclient/logger"
)

// HTTPClient converts the client section into httpclient settings.
// Interceptors, transport, stats and telemetry providers are left for the caller.
func (c *Config) HTTPClient() httpclient.Config {
	cc := c.Client
	headers := maps.Clone(cc.Headers)
	if headers == nil {
		headers = make(map[string]string)
	}
	return httpclient.Config{
		BaseURL:            cc.BaseURL,
		Token:              cc.Token,
		APIVersion:         httpclient.APIVersion(cc.APIVersion),
		Timeout:            cc.Timeout,
		MaxAttempts:        cc.MaxAttempts,
		BackoffBase:        cc.Backoff.Base,
		DisableJitter:      !cc.Backoff.Jitter,
		MaxRetryAfter:      cc.Backoff.MaxRetryAfter,
		RetryOnStatus:      slices.Clone(cc.RetryOnStatus),
		DefaultHeaders:     headers,
		UserAgent:          cc.UserAgent,
		RateLimit:          cc.RateLimit.RPS,
		RateBurst:          cc.RateLimit.Burst,
		LogPayloads:        cc.LogPayloads,
		MaxPayloadLogBytes: cc.MaxPayloadLogBytes,
	}
}

// NewLogger builds the logger described by the log section. Fields listed in
// log.mask are hidden in addition to the default sensitive fields.
func (c *Config) NewLogger() *logger.ZeroLogger {
	filter := logger.DefaultFilterConfig()
	filter.SensitiveFields = append(filter.SensitiveFields, c.Log.Mask...)
	return logger.NewWithFilter(c.Log.Level, c.Log.Pretty, filter)
}
