package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorType identifies the low-level cause of a failed attempt.
type ErrorType int

const (
	// NetworkError is a connection, DNS or read failure
	NetworkError ErrorType = iota + 1
	// TimeoutError is an attempt that exceeded its deadline
	TimeoutError
	// HTTPError is a response whose status code made the attempt fail
	HTTPError
	// DecodeError is a successful status whose JSON body could not be parsed
	DecodeError
	// InterceptorError is a failure returned by a request or response interceptor
	InterceptorError
)

func (t ErrorType) String() string {
	switch t {
	case NetworkError:
		return "network error"
	case TimeoutError:
		return "timeout error"
	case HTTPError:
		return "HTTP error"
	case DecodeError:
		return "decode error"
	case InterceptorError:
		return "interceptor error"
	default:
		return "unknown error"
	}
}

// ClientError is implemented by every attempt-level failure cause.
type ClientError interface {
	error
	Type() ErrorType
}

type networkError struct {
	message string
	err     error
}

// NewNetworkError creates a network failure cause
func NewNetworkError(message string, err error) ClientError {
	return &networkError{message: message, err: err}
}

func (e *networkError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("network error: %s: %v", e.message, e.err)
	}
	return "network error: " + e.message
}

func (e *networkError) Type() ErrorType { return NetworkError }
func (e *networkError) Unwrap() error   { return e.err }

type timeoutError struct {
	message string
	timeout time.Duration
	err     error
}

// NewTimeoutError creates a timeout cause; timeout may be zero when unknown
func NewTimeoutError(message string, timeout time.Duration, err error) ClientError {
	return &timeoutError{message: message, timeout: timeout, err: err}
}

func (e *timeoutError) Error() string {
	if e.timeout > 0 {
		return fmt.Sprintf("timeout error: %s (timeout: %v)", e.message, e.timeout)
	}
	return "timeout error: " + e.message
}

func (e *timeoutError) Type() ErrorType { return TimeoutError }
func (e *timeoutError) Unwrap() error   { return e.err }

type httpError struct {
	message    string
	statusCode int
	body       []byte
}

// NewHTTPError creates a status-code cause carrying the response body
func NewHTTPError(message string, statusCode int, body []byte) ClientError {
	return &httpError{message: message, statusCode: statusCode, body: body}
}

func (e *httpError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.statusCode, e.message)
}

func (e *httpError) Type() ErrorType { return HTTPError }
func (e *httpError) StatusCode() int { return e.statusCode }
func (e *httpError) Body() []byte    { return e.body }

type decodeError struct {
	statusCode int
	err        error
}

// NewDecodeError creates a cause for a response body that is not valid JSON
func NewDecodeError(statusCode int, err error) ClientError {
	return &decodeError{statusCode: statusCode, err: err}
}

func (e *decodeError) Error() string {
	return fmt.Sprintf("decode error: invalid JSON body with status %d: %v", e.statusCode, e.err)
}

func (e *decodeError) Type() ErrorType { return DecodeError }
func (e *decodeError) StatusCode() int { return e.statusCode }
func (e *decodeError) Unwrap() error   { return e.err }

type interceptorError struct {
	message string
	stage   string
	err     error
}

// NewInterceptorError creates a cause for a failing interceptor; stage is "request" or "response"
func NewInterceptorError(message, stage string, err error) ClientError {
	return &interceptorError{message: message, stage: stage, err: err}
}

func (e *interceptorError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("interceptor error (%s): %s: %v", e.stage, e.message, e.err)
	}
	return fmt.Sprintf("interceptor error (%s): %s", e.stage, e.message)
}

func (e *interceptorError) Type() ErrorType { return InterceptorError }
func (e *interceptorError) Unwrap() error   { return e.err }

// IsErrorType reports whether err or anything it wraps is a ClientError of type t.
func IsErrorType(err error, t ErrorType) bool {
	for err != nil {
		var ce ClientError
		if !errors.As(err, &ce) {
			return false
		}
		if ce.Type() == t {
			return true
		}
		err = errors.Unwrap(ce)
	}
	return false
}

// IsHTTPStatusError reports whether err carries the given HTTP status code.
func IsHTTPStatusError(err error, statusCode int) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Details.StatusCode == statusCode {
		return true
	}
	var he *httpError
	return errors.As(err, &he) && he.statusCode == statusCode
}

// IsSuccessStatus reports whether statusCode is in the 2xx range.
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

// ErrorKind is the caller-facing failure class of a call.
type ErrorKind int

const (
	// KindInvalidParameter marks a malformed request rejected before any network activity
	KindInvalidParameter ErrorKind = iota + 1
	// KindRequestFailed marks a call that reached the network and did not succeed
	KindRequestFailed
)

// Tag returns the error type string the given API version uses for k.
func (k ErrorKind) Tag(v APIVersion) string {
	switch {
	case k == KindInvalidParameter && v == APIv1:
		return "INVALID_PARAMETER"
	case k == KindInvalidParameter:
		return "invalid-parameter"
	case v == APIv1:
		return "REQUEST_FAILED"
	default:
		return "request-failed"
	}
}

func (k ErrorKind) String() string {
	return k.Tag(APIv2)
}

// ErrorDetails is the request context attached to every APIError.
type ErrorDetails struct {
	URL     string `json:"url"`
	Method  string `json:"method"`
	HasBody bool   `json:"hasBody"`
	// Attempt is the ordinal of the attempt that ended the call; zero when none was made.
	Attempt    int    `json:"attempt"`
	StatusCode int    `json:"statusCode,omitempty"`
	Cause      string `json:"cause,omitempty"`
}

// APIError is the only error type returned by Client calls.
type APIError struct {
	Kind ErrorKind
	// Type is the server-supplied error type, or Kind's tag for the call's API version.
	Type    string
	Message string
	Details ErrorDetails
	Err     error
}

func (e *APIError) Error() string {
	if e.Details.StatusCode > 0 {
		return fmt.Sprintf("%s: %s (status %d, %s %s)", e.Type, e.Message, e.Details.StatusCode, e.Details.Method, e.Details.URL)
	}
	return fmt.Sprintf("%s: %s (%s %s)", e.Type, e.Message, e.Details.Method, e.Details.URL)
}

func (e *APIError) Unwrap() error { return e.Err }

// Is matches another *APIError of the same Kind, so callers can compare against
// ErrInvalidParameter and ErrRequestFailed.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// StatusCode returns the HTTP status of the final attempt, or zero.
func (e *APIError) StatusCode() int { return e.Details.StatusCode }

// Attempt returns the ordinal of the attempt that ended the call.
func (e *APIError) Attempt() int { return e.Details.Attempt }

var (
	// ErrInvalidParameter matches any invalid-parameter APIError with errors.Is
	ErrInvalidParameter = &APIError{Kind: KindInvalidParameter, Type: "invalid-parameter"}
	// ErrRequestFailed matches any request-failed APIError with errors.Is
	ErrRequestFailed = &APIError{Kind: KindRequestFailed, Type: "request-failed"}
)

// IsInvalidParameter reports whether err is an invalid-parameter APIError.
func IsInvalidParameter(err error) bool {
	return errors.Is(err, ErrInvalidParameter)
}

// IsRequestFailed reports whether err is a request-failed APIError.
func IsRequestFailed(err error) bool {
	return errors.Is(err, ErrRequestFailed)
}

// responseInfo is the request context the error constructor needs.
type responseInfo struct {
	d          CallDescriptor
	attempt    int
	statusCode int
	cause      error
}

// newResponseError builds a request-failed APIError from a response body. A body shaped
// like {"error": {"type": ..., "message": ...}} supplies type and message directly;
// anything else is serialized into an "Unexpected error:" message.
func newResponseError(body []byte, payload any, info responseInfo) *APIError {
	if payload == nil && len(body) > 0 {
		var parsed any
		if err := json.Unmarshal(body, &parsed); err == nil {
			payload = parsed
		}
	}

	e := &APIError{
		Kind: KindRequestFailed,
		Type: KindRequestFailed.Tag(info.d.APIVersion),
		Details: ErrorDetails{
			URL:        info.d.URL(),
			Method:     info.d.Method,
			HasBody:    info.d.HasBody(),
			Attempt:    info.attempt,
			StatusCode: info.statusCode,
		},
		Err: info.cause,
	}
	if info.cause != nil {
		e.Details.Cause = info.cause.Error()
	}

	if errType, msg, ok := nestedError(payload); ok {
		if errType != "" {
			e.Type = errType
		}
		e.Message = msg
		return e
	}

	var subject any = payload
	if subject == nil {
		subject = string(body)
	}
	e.Message = "Unexpected error: " + serializeBody(subject)
	return e
}

// newExhaustedError builds the request-failed error returned once every attempt was retryable.
func newExhaustedError(d CallDescriptor, last Attempt) *APIError {
	msg := "API request failed"
	if last.Ordinal > 1 {
		msg = fmt.Sprintf("API request failed on retry number %d", last.Ordinal-1)
	}

	cause := last.Err
	if cause == nil {
		cause = NewHTTPError(http.StatusText(last.StatusCode), last.StatusCode, last.Body)
	}
	status := last.StatusCode
	var decodeErr *decodeError
	if status == 0 && errors.As(cause, &decodeErr) {
		status = decodeErr.StatusCode()
	}
	return &APIError{
		Kind:    KindRequestFailed,
		Type:    KindRequestFailed.Tag(d.APIVersion),
		Message: msg,
		Details: ErrorDetails{
			URL:        d.URL(),
			Method:     d.Method,
			HasBody:    d.HasBody(),
			Attempt:    last.Ordinal,
			StatusCode: status,
			Cause:      cause.Error(),
		},
		Err: cause,
	}
}

// newAbortError builds the request-failed error for a call stopped by its context or an interceptor.
func newAbortError(d CallDescriptor, attempt int, msg string, cause error) *APIError {
	return &APIError{
		Kind:    KindRequestFailed,
		Type:    KindRequestFailed.Tag(d.APIVersion),
		Message: msg,
		Details: ErrorDetails{
			URL:     d.URL(),
			Method:  d.Method,
			HasBody: d.HasBody(),
			Attempt: attempt,
			Cause:   cause.Error(),
		},
		Err: cause,
	}
}

func nestedError(payload any) (errType, msg string, ok bool) {
	obj, isMap := payload.(map[string]any)
	if !isMap {
		return "", "", false
	}
	inner, isMap := obj["error"].(map[string]any)
	if !isMap {
		return "", "", false
	}
	msg, hasMsg := inner["message"].(string)
	if !hasMsg {
		return "", "", false
	}
	errType, _ = inner["type"].(string)
	return errType, msg, true
}

func serializeBody(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
