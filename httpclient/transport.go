package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	apitrace "github.com/gaborage/apiclient/trace"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"

	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 100
	defaultIdleConnTimeout     = 90 * time.Second
	defaultTLSHandshakeTimeout = 10 * time.Second
)

// transport performs single attempts over two persistent connection pools,
// one for plain http and one for https.
type transport struct {
	plain  *http.Client
	secure *http.Client

	userAgent       string
	defaultHeaders  map[string]string
	requestIDHeader string
	requestHooks    []RequestInterceptor
	responseHooks   []ResponseInterceptor
	limiter         *rateLimiter
}

func newPooledTransport() *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          defaultMaxIdleConns,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshakeTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

func newTransport(cfg *Config) *transport {
	plainRT, secureRT := http.RoundTripper(newPooledTransport()), http.RoundTripper(newPooledTransport())
	if cfg.Transport != nil {
		plainRT, secureRT = cfg.Transport, cfg.Transport
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = UserAgent()
	}

	return &transport{
		plain:           &http.Client{Transport: plainRT, Timeout: cfg.Timeout},
		secure:          &http.Client{Transport: secureRT, Timeout: cfg.Timeout},
		userAgent:       userAgent,
		defaultHeaders:  cfg.DefaultHeaders,
		requestIDHeader: cfg.RequestIDHeader,
		requestHooks:    cfg.RequestInterceptors,
		responseHooks:   cfg.ResponseInterceptors,
		limiter:         newRateLimiter(cfg.RateLimit, cfg.RateBurst),
	}
}

func (t *transport) clientFor(u *url.URL) *http.Client {
	if u.Scheme == "https" {
		return t.secure
	}
	return t.plain
}

// encodeBody returns the bytes sent on every attempt of d.
func encodeBody(d CallDescriptor) ([]byte, error) {
	if len(d.RawBody) > 0 {
		return d.RawBody, nil
	}
	if d.Body == nil {
		return nil, nil
	}
	if !d.JSON {
		switch b := d.Body.(type) {
		case string:
			return []byte(b), nil
		case []byte:
			return b, nil
		}
		return nil, fmt.Errorf("raw body must be a string or []byte, got %T", d.Body)
	}
	data, err := json.Marshal(d.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	return data, nil
}

// buildRequest assembles the wire request for one attempt.
func (t *transport) buildRequest(ctx context.Context, d CallDescriptor, body []byte) (*http.Request, error) {
	target := d.URL()
	query := url.Values{}
	for k, v := range d.Query {
		query.Set(k, v)
	}
	if d.Token != "" {
		query.Set("token", d.Token)
	}
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + query.Encode()
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, d.Method, target, reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set("Accept-Encoding", "gzip")
	for k, v := range t.defaultHeaders {
		req.Header.Set(k, v)
	}
	// http.Header canonicalizes keys, so caller values override regardless of casing.
	for k, v := range d.Headers {
		req.Header.Set(k, v)
	}
	if d.JSON && body != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}
	return req, nil
}

// prepare builds the request for one attempt and runs the request interceptors.
func (t *transport) prepare(ctx context.Context, d CallDescriptor, body []byte, requestID string) (*http.Request, error) {
	req, err := t.buildRequest(ctx, d, body)
	if err != nil {
		return nil, NewNetworkError("failed to create request", err)
	}
	apitrace.Inject(ctx, req.Header, t.requestIDHeader, requestID)

	for _, hook := range t.requestHooks {
		if err := hook(ctx, req); err != nil {
			return nil, NewInterceptorError("request interceptor failed", "request", err)
		}
	}
	return req, nil
}

// send performs attempt ordinal. Network, timeout and decode failures are reported in
// Attempt.Err; the returned error, a failed response interceptor, aborts the call.
func (t *transport) send(ctx context.Context, d CallDescriptor, req *http.Request, ordinal int) (Attempt, error) {
	attempt := Attempt{Ordinal: ordinal}

	resp, err := t.clientFor(req.URL).Do(req)
	if err != nil {
		attempt.Err = transportError(err)
		return attempt, nil
	}
	defer resp.Body.Close()

	raw, err := readBody(resp)
	if err != nil {
		attempt.Err = NewNetworkError("failed to read response body", err)
		return attempt, nil
	}
	resp.Body = io.NopCloser(bytes.NewReader(raw))

	for _, hook := range t.responseHooks {
		if err := hook(ctx, req, resp); err != nil {
			return attempt, NewInterceptorError("response interceptor failed", "response", err)
		}
	}

	attempt.Headers = resp.Header
	attempt.Body = raw
	if !d.JSON || len(raw) == 0 {
		attempt.StatusCode = resp.StatusCode
		return attempt, nil
	}

	// Error bodies need not be JSON; the error constructor falls back to the raw text.
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil && resp.StatusCode < 300 {
		attempt.Err = NewDecodeError(resp.StatusCode, err)
		return attempt, nil
	}
	attempt.StatusCode = resp.StatusCode
	attempt.Payload = payload
	return attempt, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			return nil, err
		}
		defer gz.Close()
		r = gz
	}
	return io.ReadAll(r)
}

func transportError(err error) ClientError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return NewTimeoutError("request timed out", 0, err)
	}
	return NewNetworkError("request failed", err)
}

// redactedURL masks the token query parameter so URLs can be logged.
func redactedURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	q := u.Query()
	if !q.Has("token") {
		return u.String()
	}
	clone := *u
	q.Set("token", "***")
	clone.RawQuery = strings.ReplaceAll(q.Encode(), "%2A%2A%2A", "***")
	return clone.String()
}
