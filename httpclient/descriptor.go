package httpclient

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	// DefaultBackoffBase is the delay before the second attempt of a call
	DefaultBackoffBase = 500 * time.Millisecond
	// DefaultMaxAttempts caps the number of attempts of a single call
	DefaultMaxAttempts = 8
	// StatusTooManyRequests is the rate-limit status; it is always counted and retried by default
	StatusTooManyRequests = 429
)

// AllowedMethods lists the HTTP methods a call may use.
var AllowedMethods = []string{"GET", "DELETE", "HEAD", "POST", "PUT", "PATCH"}

// Defaults are the client-wide values a Request falls back to.
type Defaults struct {
	BaseURL       string
	Token         string
	APIVersion    APIVersion
	BackoffBase   time.Duration
	MaxAttempts   int
	RetryOnStatus []int
}

// CallDescriptor is a validated Request with every default applied.
// The engine treats it as immutable; Normalize returns copies of all maps and slices.
type CallDescriptor struct {
	BaseURL       string `validate:"required,url"`
	Path          string
	Method        string `validate:"oneof=GET DELETE HEAD POST PUT PATCH"`
	TokenRequired bool
	Token         string `validate:"required_if=TokenRequired true"`
	Query         map[string]string
	Headers       map[string]string
	Body          any
	RawBody       []byte
	// JSON enables body encoding and response decoding.
	JSON          bool
	BackoffBase   time.Duration `validate:"gte=0"`
	MaxAttempts   int           `validate:"gte=0"`
	RetryOnStatus []int         `validate:"dive,gte=100,lte=599"`
	APIVersion    APIVersion    `validate:"oneof=v1 v2"`
}

var (
	descriptorValidator     *validator.Validate
	descriptorValidatorOnce sync.Once
)

func getValidator() *validator.Validate {
	descriptorValidatorOnce.Do(func() {
		descriptorValidator = validator.New(validator.WithRequiredStructEnabled())
	})
	return descriptorValidator
}

// Normalize validates req against the allowed shapes and fills unset knobs from defaults.
// It performs no I/O; every failure is an invalid-parameter *APIError.
// Normalize(d.Request(), defaults) yields d again for any descriptor it returned.
func Normalize(req Request, defaults Defaults) (CallDescriptor, error) {
	d := CallDescriptor{
		BaseURL:       firstNonEmpty(req.BaseURL, defaults.BaseURL),
		Path:          req.Path,
		Method:        strings.ToUpper(strings.TrimSpace(req.Method)),
		TokenRequired: req.TokenRequired,
		Token:         firstNonEmpty(req.Token, defaults.Token),
		Query:         maps.Clone(req.Query),
		Headers:       maps.Clone(req.Headers),
		Body:          req.Body,
		RawBody:       slices.Clone(req.RawBody),
		JSON:          !req.Raw,
		BackoffBase:   req.BackoffBase,
		MaxAttempts:   req.MaxAttempts,
		APIVersion:    req.APIVersion,
	}

	if d.Method == "" {
		d.Method = "GET"
	}
	if d.APIVersion == "" {
		d.APIVersion = defaults.APIVersion
	}
	if d.APIVersion == "" {
		d.APIVersion = APIv2
	}
	if d.BackoffBase == 0 {
		d.BackoffBase = defaults.BackoffBase
	}
	if d.BackoffBase == 0 {
		d.BackoffBase = DefaultBackoffBase
	}
	if d.MaxAttempts == 0 {
		d.MaxAttempts = defaults.MaxAttempts
	}
	if d.MaxAttempts == 0 {
		d.MaxAttempts = DefaultMaxAttempts
	}

	retry := req.RetryOnStatus
	if len(retry) == 0 {
		retry = defaults.RetryOnStatus
	}
	if len(retry) == 0 {
		retry = []int{StatusTooManyRequests}
	}
	d.RetryOnStatus = slices.Compact(slices.Sorted(slices.Values(retry)))

	d.BaseURL = strings.TrimRight(d.BaseURL, "/")

	if err := getValidator().Struct(d); err != nil {
		return CallDescriptor{}, invalidParameter(d, err)
	}
	if err := checkBody(d); err != nil {
		return CallDescriptor{}, invalidParameter(d, err)
	}
	return d, nil
}

// Request converts the descriptor back into an equivalent Request.
func (d CallDescriptor) Request() Request {
	return Request{
		BaseURL:       d.BaseURL,
		Path:          d.Path,
		Method:        d.Method,
		TokenRequired: d.TokenRequired,
		Token:         d.Token,
		Query:         maps.Clone(d.Query),
		Headers:       maps.Clone(d.Headers),
		Body:          d.Body,
		RawBody:       slices.Clone(d.RawBody),
		Raw:           !d.JSON,
		BackoffBase:   d.BackoffBase,
		MaxAttempts:   d.MaxAttempts,
		RetryOnStatus: slices.Clone(d.RetryOnStatus),
		APIVersion:    d.APIVersion,
	}
}

// URL returns the target URL without query parameters.
func (d CallDescriptor) URL() string {
	if d.Path == "" {
		return d.BaseURL
	}
	if strings.HasPrefix(d.Path, "/") {
		return d.BaseURL + d.Path
	}
	return d.BaseURL + "/" + d.Path
}

// HasBody reports whether the call sends a request body.
func (d CallDescriptor) HasBody() bool {
	return d.Body != nil || len(d.RawBody) > 0
}

// Retryable returns the descriptor's retryable statuses as a set.
func (d CallDescriptor) Retryable() StatusSet {
	return NewStatusSet(d.RetryOnStatus...)
}

func checkBody(d CallDescriptor) error {
	if d.Body != nil && len(d.RawBody) > 0 {
		return errors.New("body and raw body cannot both be set")
	}
	if d.JSON || d.Body == nil {
		return nil
	}
	switch d.Body.(type) {
	case string, []byte:
		return nil
	default:
		return fmt.Errorf("raw body must be a string or []byte, got %T", d.Body)
	}
}

func invalidParameter(d CallDescriptor, err error) *APIError {
	return &APIError{
		Kind:    KindInvalidParameter,
		Type:    KindInvalidParameter.Tag(d.APIVersion),
		Message: validationMessage(err),
		Details: ErrorDetails{
			URL:     d.URL(),
			Method:  d.Method,
			HasBody: d.HasBody(),
			Cause:   err.Error(),
		},
		Err: err,
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldErrorMessage(fe))
	}
	return strings.Join(msgs, "; ")
}

func fieldErrorMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "required_if":
		return fmt.Sprintf("%s is required when %s", field, strings.ReplaceAll(fe.Param(), " ", " is "))
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "oneof":
		if field == "Method" {
			return fmt.Sprintf("Method %q is not allowed, must be one of: %s", fe.Value(), strings.Join(AllowedMethods, ", "))
		}
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
