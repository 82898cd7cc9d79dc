package config

import (
	"fmt"
	"strings"
)

// ConfigError describes a rejected setting and how to fix it.
// Messages are lowercase so they read well after a wrapping prefix.
//
//nolint:revive // exported as config.ConfigError for callers matching with errors.As
type ConfigError struct {
	Category string   // "missing", "invalid" or "range"
	Field    string   // config key path, e.g. "client.maxattempts"
	Message  string   // what is wrong
	Action   string   // how to fix it
	Details  []string // accepted values or the offending input
}

func (e *ConfigError) Error() string {
	var parts []string
	if e.Category != "" {
		parts = append(parts, fmt.Sprintf("config_%s:", e.Category))
	}
	for _, s := range []string{e.Field, e.Message, e.Action} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	if len(e.Details) > 0 {
		parts = append(parts, strings.Join(e.Details, "; "))
	}
	return strings.Join(parts, " ")
}

// NewMissingFieldError reports a required key that no source set.
func NewMissingFieldError(field string) *ConfigError {
	return &ConfigError{
		Category: "missing",
		Field:    field,
		Message:  "required",
		Action:   fmt.Sprintf("set %s env var or add %s to config.yaml", EnvVarName(field), field),
	}
}

// NewInvalidFieldError reports a value that failed validation. validOptions,
// when given, become the suggested fix.
func NewInvalidFieldError(field, message string, validOptions []string) *ConfigError {
	err := &ConfigError{
		Category: "invalid",
		Field:    field,
		Message:  message,
	}
	if len(validOptions) > 0 {
		err.Action = fmt.Sprintf("must be one of: %s", strings.Join(validOptions, ", "))
	}
	return err
}

// NewOutOfRangeError reports a numeric value outside [minVal, maxVal].
func NewOutOfRangeError(field string, value, minVal, maxVal int) *ConfigError {
	return &ConfigError{
		Category: "range",
		Field:    field,
		Message:  fmt.Sprintf("must be between %d and %d", minVal, maxVal),
		Details:  []string{fmt.Sprintf("got %d", value)},
	}
}

// EnvVarName returns the environment variable overriding key.
func EnvVarName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
