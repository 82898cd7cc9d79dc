package logger

import (
	"net/url"
	"strings"
)

const (
	// DefaultMaskValue replaces sensitive values in log output
	DefaultMaskValue = "***"
	// DefaultMaxDepth bounds recursion into nested maps
	DefaultMaxDepth = 8
)

// FilterConfig lists the field names treated as sensitive.
// Matching is case-insensitive and by substring, so "X-Api-Key" matches "key".
type FilterConfig struct {
	SensitiveFields []string
	MaskValue       string
}

// DefaultFilterConfig covers credentials commonly seen by an API client.
func DefaultFilterConfig() *FilterConfig {
	return &FilterConfig{
		SensitiveFields: []string{
			"password", "passwd", "pwd",
			"secret", "key", "api_key", "apikey",
			"token", "access_token", "refresh_token",
			"auth", "authorization", "cookie",
			"credential", "credentials",
		},
		MaskValue: DefaultMaskValue,
	}
}

// SensitiveDataFilter masks sensitive values by field name and scrubs credentials
// embedded in URLs (user passwords and sensitive query parameters such as ?token=).
type SensitiveDataFilter struct {
	config *FilterConfig
}

// NewSensitiveDataFilter creates a filter; nil config selects DefaultFilterConfig.
func NewSensitiveDataFilter(config *FilterConfig) *SensitiveDataFilter {
	if config == nil {
		config = DefaultFilterConfig()
	}
	if config.MaskValue == "" {
		config.MaskValue = DefaultMaskValue
	}
	return &SensitiveDataFilter{config: config}
}

// FilterString masks value when key is sensitive, and scrubs URLs otherwise.
func (f *SensitiveDataFilter) FilterString(key, value string) string {
	if value == "" {
		return value
	}
	if f.isSensitiveField(key) {
		return f.config.MaskValue
	}
	if isURL(value) {
		return f.MaskURL(value)
	}
	return value
}

// FilterValue masks value when key is sensitive and walks string-keyed maps.
func (f *SensitiveDataFilter) FilterValue(key string, value any) any {
	return f.filterValue(key, value, DefaultMaxDepth)
}

func (f *SensitiveDataFilter) filterValue(key string, value any, depth int) any {
	if value == nil {
		return nil
	}
	if f.isSensitiveField(key) {
		return f.config.MaskValue
	}
	if depth <= 0 {
		return value
	}

	switch v := value.(type) {
	case string:
		if isURL(v) {
			return f.MaskURL(v)
		}
		return v
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, inner := range v {
			out[k] = f.filterValue(k, inner, depth-1)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(v))
		for k, inner := range v {
			out[k] = f.FilterString(k, inner)
		}
		return out
	case map[string][]string:
		out := make(map[string][]string, len(v))
		for k, inner := range v {
			if f.isSensitiveField(k) {
				out[k] = []string{f.config.MaskValue}
				continue
			}
			out[k] = inner
		}
		return out
	default:
		return value
	}
}

// FilterFields filters every entry of fields.
func (f *SensitiveDataFilter) FilterFields(fields map[string]any) map[string]any {
	filtered := make(map[string]any, len(fields))
	for key, value := range fields {
		filtered[key] = f.FilterValue(key, value)
	}
	return filtered
}

// MaskURL replaces the user password and the values of sensitive query parameters.
// Unparseable input is masked entirely.
func (f *SensitiveDataFilter) MaskURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return f.config.MaskValue
	}

	changed := false
	var user *url.Userinfo
	if parsed.User != nil {
		if _, ok := parsed.User.Password(); ok {
			user = url.User(parsed.User.Username())
			parsed.User = nil
			changed = true
		}
	}

	if parsed.RawQuery != "" {
		pairs := strings.Split(parsed.RawQuery, "&")
		for i, pair := range pairs {
			name, _, _ := strings.Cut(pair, "=")
			if unescaped, err := url.QueryUnescape(name); err == nil {
				name = unescaped
			}
			if f.isSensitiveField(name) {
				pairs[i] = url.QueryEscape(name) + "=" + f.config.MaskValue
				changed = true
			}
		}
		parsed.RawQuery = strings.Join(pairs, "&")
	}

	if !changed {
		return raw
	}
	if user == nil {
		return parsed.String()
	}
	return f.withMaskedPassword(parsed, user)
}

// withMaskedPassword writes the userinfo by hand; url.URL.String would percent-encode
// the mask.
func (f *SensitiveDataFilter) withMaskedPassword(parsed *url.URL, user *url.Userinfo) string {
	rest := strings.TrimPrefix(parsed.String(), parsed.Scheme+"://")

	var b strings.Builder
	b.WriteString(parsed.Scheme)
	b.WriteString("://")
	b.WriteString(user.String())
	b.WriteByte(':')
	b.WriteString(f.config.MaskValue)
	b.WriteByte('@')
	b.WriteString(rest)
	return b.String()
}

func (f *SensitiveDataFilter) isSensitiveField(fieldName string) bool {
	lower := strings.ToLower(fieldName)
	for _, sensitive := range f.config.SensitiveFields {
		if strings.Contains(lower, strings.ToLower(sensitive)) {
			return true
		}
	}
	return false
}

func isURL(value string) bool {
	return strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://")
}
