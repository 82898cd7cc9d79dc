package httpclient

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/gaborage/apiclient/logger"
	apitrace "github.com/gaborage/apiclient/trace"
)

// client implements Client
type client struct {
	logger    logger.Logger
	config    *Config
	defaults  Defaults
	transport *transport
	stats     *CallStats
	metrics   *callMetrics
	tracer    trace.Tracer
}

func (c *client) Call(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		req = &Request{}
	}
	return c.execute(ctx, *req)
}

// CallJSON returns the decoded payload, or the raw body bytes for Raw requests.
func (c *client) CallJSON(ctx context.Context, req *Request) (any, error) {
	resp, err := c.Call(ctx, req)
	if err != nil {
		return nil, err
	}
	if req != nil && req.Raw {
		return resp.Body, nil
	}
	return resp.Payload, nil
}

func (c *client) Get(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, http.MethodGet, req)
}

func (c *client) Head(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, http.MethodHead, req)
}

func (c *client) Post(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, http.MethodPost, req)
}

func (c *client) Put(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, http.MethodPut, req)
}

func (c *client) Patch(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, http.MethodPatch, req)
}

func (c *client) Delete(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, req)
}

// Do executes req with the given method, overriding req.Method.
func (c *client) Do(ctx context.Context, method string, req *Request) (*Response, error) {
	var r Request
	if req != nil {
		r = *req
	}
	r.Method = method
	return c.execute(ctx, r)
}

func (c *client) Stats() StatsSnapshot {
	return c.stats.Snapshot()
}

func (c *client) maxRetryAfter() time.Duration {
	if c.config.MaxRetryAfter > 0 {
		return c.config.MaxRetryAfter
	}
	return DefaultMaxRetryAfter
}

func (c *client) execute(ctx context.Context, req Request) (*Response, error) {
	d, err := Normalize(req, c.defaults)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			c.logFailure(apiErr, "")
		}
		return nil, err
	}
	body, err := encodeBody(d)
	if err != nil {
		apiErr := invalidParameter(d, err)
		c.logFailure(apiErr, "")
		return nil, apiErr
	}

	requestID := apitrace.EnsureRequestID(ctx)
	ctx, span := c.startCallSpan(ctx, d)
	start := time.Now()

	resp, apiErr := c.run(ctx, span, d, body, requestID)
	elapsed := time.Since(start)
	endCallSpan(span, resp, apiErr)

	if apiErr != nil {
		c.metrics.recordDuration(ctx, d.Method, "failure", elapsed)
		c.logFailure(apiErr, requestID)
		return nil, apiErr
	}
	resp.Stats.ElapsedTime = elapsed
	c.metrics.recordDuration(ctx, d.Method, "success", elapsed)
	return resp, nil
}

// run drives the attempts of one call until success, a terminal response,
// exhaustion of MaxAttempts or cancellation of ctx.
func (c *client) run(ctx context.Context, span trace.Span, d CallDescriptor, body []byte, requestID string) (*Response, *APIError) {
	retryable := d.Retryable()
	jitter := !c.config.DisableJitter

	for ordinal := 1; ; ordinal++ {
		if err := ctx.Err(); err != nil {
			return nil, newAbortError(d, ordinal-1, "API request canceled", err)
		}

		req, err := c.transport.prepare(ctx, d, body, requestID)
		if err != nil {
			return nil, newAbortError(d, ordinal-1, abortMessage(err), err)
		}
		if err := c.transport.limiter.wait(ctx); err != nil {
			return nil, newAbortError(d, ordinal-1, "API request canceled", err)
		}
		c.logRequest(req, body, requestID, ordinal)

		// The attempt is counted before the call so a snapshot never shows more calls
		// than attempts.
		c.stats.addAttempt()
		if ordinal == 1 {
			c.stats.addCall()
			c.metrics.recordCall(ctx, d.Method)
		}

		start := time.Now()
		a, err := c.transport.send(ctx, d, req, ordinal)
		if err != nil {
			return nil, newAbortError(d, ordinal, abortMessage(err), err)
		}
		if a.Err != nil && ctx.Err() != nil {
			return nil, newAbortError(d, ordinal, "API request canceled", ctx.Err())
		}
		c.metrics.recordAttempt(ctx, d.Method, a)
		c.logResponse(a, time.Since(start), requestID)

		verdict := Classify(a, retryable)
		if a.StatusCode == StatusTooManyRequests {
			c.stats.addRateLimit(ordinal)
			c.metrics.recordRateLimited(ctx, ordinal)
		}
		recordAttemptEvent(span, a, verdict)

		switch verdict {
		case VerdictSuccess:
			return &Response{
				StatusCode: a.StatusCode,
				Body:       a.Body,
				Payload:    a.Payload,
				Headers:    a.Headers,
				Stats:      Stats{Attempts: ordinal},
			}, nil
		case VerdictTerminal:
			return nil, newResponseError(a.Body, a.Payload, responseInfo{
				d:          d,
				attempt:    ordinal,
				statusCode: a.StatusCode,
				cause:      NewHTTPError(http.StatusText(a.StatusCode), a.StatusCode, a.Body),
			})
		case VerdictRetryable:
			if ordinal >= d.MaxAttempts {
				return nil, newExhaustedError(d, a)
			}
			delay := nextDelay(a, d.BackoffBase, jitter, c.maxRetryAfter())
			c.logRetry(a, delay, requestID)
			if err := sleepContext(ctx, delay); err != nil {
				return nil, newAbortError(d, ordinal, "API request canceled", err)
			}
		}
	}
}

func abortMessage(err error) string {
	switch {
	case IsErrorType(err, InterceptorError):
		return "API request aborted by interceptor"
	case IsErrorType(err, NetworkError):
		return "API request could not be prepared"
	default:
		return "API request canceled"
	}
}
