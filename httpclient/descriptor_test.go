package httpclient

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBaseURL = "https://api.example.com/v2"

func TestNormalizeDefaults(t *testing.T) {
	d, err := Normalize(Request{BaseURL: testBaseURL + "///", Path: "/acts"}, Defaults{})
	require.NoError(t, err)

	assert.Equal(t, testBaseURL, d.BaseURL)
	assert.Equal(t, "GET", d.Method)
	assert.Equal(t, DefaultBackoffBase, d.BackoffBase)
	assert.Equal(t, 500*time.Millisecond, d.BackoffBase)
	assert.Equal(t, 8, d.MaxAttempts)
	assert.Equal(t, []int{429}, d.RetryOnStatus)
	assert.Equal(t, APIv2, d.APIVersion)
	assert.True(t, d.JSON)
	assert.Equal(t, testActsURL, d.URL())
	assert.False(t, d.HasBody())
}

func TestNormalizeMergesClientDefaults(t *testing.T) {
	defaults := Defaults{
		BaseURL:       testBaseURL,
		Token:         "default-token",
		APIVersion:    APIv1,
		BackoffBase:   time.Second,
		MaxAttempts:   3,
		RetryOnStatus: []int{429, 408},
	}

	t.Run("unset fields fall back", func(t *testing.T) {
		d, err := Normalize(Request{Path: "acts"}, defaults)
		require.NoError(t, err)
		assert.Equal(t, testActsURL, d.URL())
		assert.Equal(t, "default-token", d.Token)
		assert.Equal(t, APIv1, d.APIVersion)
		assert.Equal(t, time.Second, d.BackoffBase)
		assert.Equal(t, 3, d.MaxAttempts)
		assert.Equal(t, []int{408, 429}, d.RetryOnStatus)
	})

	t.Run("per call values win", func(t *testing.T) {
		d, err := Normalize(Request{
			BaseURL:       "http://localhost:8080",
			Token:         "call-token",
			APIVersion:    APIv2,
			BackoffBase:   10 * time.Millisecond,
			MaxAttempts:   1,
			RetryOnStatus: []int{503, 429, 503},
		}, defaults)
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8080", d.BaseURL)
		assert.Equal(t, "call-token", d.Token)
		assert.Equal(t, APIv2, d.APIVersion)
		assert.Equal(t, 10*time.Millisecond, d.BackoffBase)
		assert.Equal(t, 1, d.MaxAttempts)
		assert.Equal(t, []int{429, 503}, d.RetryOnStatus)
	})
}

func TestNormalizeMethods(t *testing.T) {
	for _, method := range []string{"get", "Delete", "HEAD", "post", "pUt", "patch"} {
		t.Run("allowed "+method, func(t *testing.T) {
			d, err := Normalize(Request{BaseURL: testBaseURL, Method: method}, Defaults{})
			require.NoError(t, err)
			assert.Contains(t, AllowedMethods, d.Method)
		})
	}

	for _, method := range []string{"OPTIONS", "trace", "CONNECT", "FETCH", "g e t"} {
		t.Run("rejected "+method, func(t *testing.T) {
			_, err := Normalize(Request{BaseURL: testBaseURL, Method: method}, Defaults{})
			require.Error(t, err)
			assert.True(t, IsInvalidParameter(err))

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, "invalid-parameter", apiErr.Type)
			assert.Contains(t, apiErr.Message, "GET, DELETE, HEAD, POST, PUT, PATCH")
			assert.Equal(t, 0, apiErr.Attempt())
		})
	}
}

func TestNormalizeTokenRequired(t *testing.T) {
	_, err := Normalize(Request{BaseURL: testBaseURL, TokenRequired: true, APIVersion: APIv1}, Defaults{})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, KindInvalidParameter, apiErr.Kind)
	assert.Equal(t, "INVALID_PARAMETER", apiErr.Type)
	assert.Equal(t, "Token is required when TokenRequired is true", apiErr.Message)

	d, err := Normalize(Request{BaseURL: testBaseURL, TokenRequired: true}, Defaults{Token: "from-client"})
	require.NoError(t, err)
	assert.Equal(t, "from-client", d.Token)
}

func TestNormalizeInvalidParameters(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		message string
	}{
		{name: "missing base url", req: Request{}, message: "BaseURL is required"},
		{name: "base url not a url", req: Request{BaseURL: "not a url"}, message: "BaseURL must be a valid URL"},
		{name: "negative attempts", req: Request{BaseURL: testBaseURL, MaxAttempts: -1}, message: "MaxAttempts must be greater than or equal to 0"},
		{name: "negative backoff", req: Request{BaseURL: testBaseURL, BackoffBase: -time.Second}, message: "BackoffBase must be greater than or equal to 0"},
		{name: "bad status", req: Request{BaseURL: testBaseURL, RetryOnStatus: []int{42}}, message: "must be greater than or equal to 100"},
		{name: "bad api version", req: Request{BaseURL: testBaseURL, APIVersion: "v3"}, message: "APIVersion must be one of: v1 v2"},
		{name: "body and raw body", req: Request{BaseURL: testBaseURL, Body: "a", RawBody: []byte("b")}, message: "body and raw body cannot both be set"},
		{name: "raw mode structured body", req: Request{BaseURL: testBaseURL, Raw: true, Body: map[string]any{}}, message: "raw body must be a string or []byte"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.req, Defaults{})
			require.Error(t, err)
			assert.True(t, IsInvalidParameter(err))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	requests := []Request{
		{BaseURL: testBaseURL + "/", Path: "/acts", Method: "post", Body: map[string]any{"name": "x"}},
		{BaseURL: testBaseURL, Method: "get", Query: map[string]string{"limit": "10"}, Headers: map[string]string{"accept": "text/plain"}, Raw: true},
		{BaseURL: testBaseURL, TokenRequired: true, Token: "t", RetryOnStatus: []int{503, 429}, MaxAttempts: 2, APIVersion: APIv1},
		{BaseURL: testBaseURL, Method: "PUT", RawBody: []byte("raw")},
	}
	defaults := Defaults{BackoffBase: time.Second}

	for _, req := range requests {
		once, err := Normalize(req, defaults)
		require.NoError(t, err)
		twice, err := Normalize(once.Request(), defaults)
		require.NoError(t, err)
		assert.Equal(t, once, twice)

		// Normalizing under different defaults changes nothing once every knob is set.
		again, err := Normalize(twice.Request(), Defaults{})
		require.NoError(t, err)
		assert.Equal(t, once, again)
	}
}

func TestNormalizeCopiesCallerMaps(t *testing.T) {
	query := map[string]string{"limit": "1"}
	d, err := Normalize(Request{BaseURL: testBaseURL, Query: query}, Defaults{})
	require.NoError(t, err)

	query["limit"] = "2"
	assert.Equal(t, "1", d.Query["limit"])
}
