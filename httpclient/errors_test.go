package httpclient

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testActsURL = "https://api.example.com/v2/acts"

func TestClientErrorTypes(t *testing.T) {
	inner := errors.New("connection refused")

	tests := []struct {
		name     string
		err      ClientError
		wantType ErrorType
		wantMsg  string
	}{
		{
			name:     "network",
			err:      NewNetworkError("request failed", inner),
			wantType: NetworkError,
			wantMsg:  "network error: request failed: connection refused",
		},
		{
			name:     "network without cause",
			err:      NewNetworkError("request failed", nil),
			wantType: NetworkError,
			wantMsg:  "network error: request failed",
		},
		{
			name:     "timeout",
			err:      NewTimeoutError("request timed out", 5*time.Second, nil),
			wantType: TimeoutError,
			wantMsg:  "timeout error: request timed out (timeout: 5s)",
		},
		{
			name:     "http",
			err:      NewHTTPError("Not Found", 404, []byte("missing")),
			wantType: HTTPError,
			wantMsg:  "HTTP error 404: Not Found",
		},
		{
			name:     "interceptor",
			err:      NewInterceptorError("request interceptor failed", "request", inner),
			wantType: InterceptorError,
			wantMsg:  "interceptor error (request): request interceptor failed: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type())
			assert.Equal(t, tt.wantMsg, tt.err.Error())
			assert.True(t, IsErrorType(tt.err, tt.wantType))
		})
	}
}

func TestErrorTypeString(t *testing.T) {
	assert.Equal(t, "network error", NetworkError.String())
	assert.Equal(t, "timeout error", TimeoutError.String())
	assert.Equal(t, "HTTP error", HTTPError.String())
	assert.Equal(t, "decode error", DecodeError.String())
	assert.Equal(t, "interceptor error", InterceptorError.String())
	assert.Equal(t, "unknown error", ErrorType(99).String())
}

func TestIsErrorTypeThroughWrapping(t *testing.T) {
	timeout := NewTimeoutError("request timed out", 0, nil)
	apiErr := &APIError{Kind: KindRequestFailed, Err: fmt.Errorf("attempt 2: %w", timeout)}

	assert.True(t, IsErrorType(apiErr, TimeoutError))
	assert.False(t, IsErrorType(apiErr, NetworkError))
	assert.False(t, IsErrorType(errors.New("plain"), NetworkError))
	assert.False(t, IsErrorType(nil, NetworkError))
}

func TestHTTPErrorAccessors(t *testing.T) {
	err := NewHTTPError("Bad Request", 400, []byte(`{"error":{}}`))

	var he *httpError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, 400, he.StatusCode())
	assert.Equal(t, []byte(`{"error":{}}`), he.Body())
	assert.True(t, IsHTTPStatusError(err, 400))
	assert.False(t, IsHTTPStatusError(err, 500))
}

func TestIsSuccessStatus(t *testing.T) {
	assert.True(t, IsSuccessStatus(200))
	assert.True(t, IsSuccessStatus(204))
	assert.False(t, IsSuccessStatus(199))
	assert.False(t, IsSuccessStatus(300))
}

func TestErrorKindTags(t *testing.T) {
	assert.Equal(t, "INVALID_PARAMETER", KindInvalidParameter.Tag(APIv1))
	assert.Equal(t, "invalid-parameter", KindInvalidParameter.Tag(APIv2))
	assert.Equal(t, "REQUEST_FAILED", KindRequestFailed.Tag(APIv1))
	assert.Equal(t, "request-failed", KindRequestFailed.Tag(APIv2))
	assert.Equal(t, "request-failed", KindRequestFailed.String())
}

func TestAPIErrorIsAndAccessors(t *testing.T) {
	err := &APIError{
		Kind:    KindRequestFailed,
		Type:    "REQUEST_FAILED",
		Message: "API request failed",
		Details: ErrorDetails{URL: testActsURL, Method: "GET", Attempt: 1, StatusCode: 503},
		Err:     NewHTTPError("Service Unavailable", 503, nil),
	}

	assert.True(t, errors.Is(err, ErrRequestFailed))
	assert.False(t, errors.Is(err, ErrInvalidParameter))
	assert.True(t, IsRequestFailed(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsInvalidParameter(err))
	assert.Equal(t, 503, err.StatusCode())
	assert.Equal(t, 1, err.Attempt())
	assert.True(t, IsHTTPStatusError(err, 503))
	assert.True(t, IsErrorType(err, HTTPError))
	assert.Equal(t, "REQUEST_FAILED: API request failed (status 503, GET "+testActsURL+")", err.Error())

	noStatus := &APIError{Type: "invalid-parameter", Message: "bad", Details: ErrorDetails{Method: "PUT", URL: testActsURL}}
	assert.Equal(t, "invalid-parameter: bad (PUT "+testActsURL+")", noStatus.Error())
}

func testDescriptor(t *testing.T, version APIVersion) CallDescriptor {
	t.Helper()
	d, err := Normalize(Request{BaseURL: "https://api.example.com/v2/", Path: "/acts", Method: "post", Body: map[string]any{"a": 1}, APIVersion: version}, Defaults{})
	require.NoError(t, err)
	return d
}

func TestNewResponseError(t *testing.T) {
	t.Run("nested server error", func(t *testing.T) {
		d := testDescriptor(t, APIv2)
		body := []byte(`{"error":{"type":"record-not-found","message":"Actor was not found"}}`)
		cause := NewHTTPError("Not Found", 404, body)

		err := newResponseError(body, nil, responseInfo{d: d, attempt: 1, statusCode: 404, cause: cause})

		assert.Equal(t, KindRequestFailed, err.Kind)
		assert.Equal(t, "record-not-found", err.Type)
		assert.Equal(t, "Actor was not found", err.Message)
		assert.Equal(t, ErrorDetails{
			URL:        testActsURL,
			Method:     "POST",
			HasBody:    true,
			Attempt:    1,
			StatusCode: 404,
			Cause:      cause.Error(),
		}, err.Details)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("nested error without type keeps taxonomy", func(t *testing.T) {
		d := testDescriptor(t, APIv1)
		payload := map[string]any{"error": map[string]any{"message": "nope"}}
		err := newResponseError(nil, payload, responseInfo{d: d, attempt: 1, statusCode: 400})
		assert.Equal(t, "REQUEST_FAILED", err.Type)
		assert.Equal(t, "nope", err.Message)
		assert.Empty(t, err.Details.Cause)
	})

	t.Run("unrecognized JSON body is serialized", func(t *testing.T) {
		d := testDescriptor(t, APIv2)
		err := newResponseError([]byte(`{"detail":"x"}`), nil, responseInfo{d: d, attempt: 1, statusCode: 400})
		assert.Equal(t, "request-failed", err.Type)
		assert.Equal(t, `Unexpected error: {"detail":"x"}`, err.Message)
	})

	t.Run("plain text body", func(t *testing.T) {
		d := testDescriptor(t, APIv2)
		err := newResponseError([]byte("Bad Gateway"), nil, responseInfo{d: d, attempt: 2, statusCode: 502})
		assert.Equal(t, `Unexpected error: "Bad Gateway"`, err.Message)
		assert.Equal(t, 2, err.Attempt())
	})

	t.Run("unserializable payload falls back to fmt", func(t *testing.T) {
		d := testDescriptor(t, APIv2)
		err := newResponseError(nil, math.Inf(1), responseInfo{d: d, attempt: 1, statusCode: 400})
		assert.Equal(t, "Unexpected error: +Inf", err.Message)
	})
}

func TestNewExhaustedError(t *testing.T) {
	d := testDescriptor(t, APIv2)

	first := newExhaustedError(d, Attempt{Ordinal: 1, StatusCode: 500, Body: []byte("oops")})
	assert.Equal(t, "API request failed", first.Message)
	assert.Equal(t, 500, first.StatusCode())
	assert.True(t, IsErrorType(first, HTTPError))

	cause := NewNetworkError("request failed", errors.New("connection reset by peer"))
	later := newExhaustedError(d, Attempt{Ordinal: 4, Err: cause})
	assert.Equal(t, "API request failed on retry number 3", later.Message)
	assert.Equal(t, 4, later.Attempt())
	assert.Equal(t, 0, later.StatusCode())
	assert.ErrorIs(t, later, cause)
	assert.Equal(t, cause.Error(), later.Details.Cause)
	assert.True(t, IsRequestFailed(later))

	undecodable := newExhaustedError(d, Attempt{Ordinal: 2, Err: NewDecodeError(200, errors.New("unexpected EOF"))})
	assert.Equal(t, 200, undecodable.StatusCode())
	assert.True(t, IsErrorType(undecodable, DecodeError))
}
