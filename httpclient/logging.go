package httpclient

import (
	"net/http"
	"strconv"
	"time"
)

const defaultMaxPayloadLogBytes = 1024

func (c *client) maxPayloadLogBytes() int {
	if c.config.MaxPayloadLogBytes > 0 {
		return c.config.MaxPayloadLogBytes
	}
	return defaultMaxPayloadLogBytes
}

func (c *client) preview(body []byte) (preview []byte, truncated bool) {
	limit := c.maxPayloadLogBytes()
	if len(body) > limit {
		return body[:limit], true
	}
	return body, false
}

func (c *client) logRequest(req *http.Request, body []byte, requestID string, attempt int) {
	url := redactedURL(req.URL)
	event := c.logger.Info().
		Str("direction", "outbound").
		Str("method", req.Method).
		Str("url", url).
		Str("request_id", requestID)
	if attempt > 0 {
		event = event.Int("attempt", attempt)
	}
	if len(req.Header) > 0 {
		event = event.Int("header_count", len(req.Header))
	}
	if len(body) > 0 {
		event = event.Int("body_size", len(body))
	}
	event.Msg("REST client request")

	if !c.config.LogPayloads {
		return
	}
	preview, truncated := c.preview(body)
	c.logger.Debug().
		Str("direction", "outbound").
		Str("method", req.Method).
		Str("url", url).
		Str("request_id", requestID).
		Interface("headers", map[string][]string(req.Header)).
		Int("body_size", len(body)).
		Bool("body_truncated", truncated).
		Bytes("body_preview", preview).
		Msg("REST client request")
}

func (c *client) logResponse(a Attempt, elapsed time.Duration, requestID string) {
	event := c.logger.Info().
		Str("direction", "inbound").
		Int("status", a.StatusCode).
		Dur("elapsed", elapsed).
		Str("request_id", requestID)
	if a.Ordinal > 0 {
		event = event.Int("attempt", a.Ordinal)
	}
	if a.Err != nil {
		event = event.Err(a.Err)
	}
	if len(a.Body) > 0 {
		event = event.Int("body_size", len(a.Body))
	}
	event.Msg("REST client response")

	if !c.config.LogPayloads {
		return
	}
	preview, truncated := c.preview(a.Body)
	c.logger.Debug().
		Str("direction", "inbound").
		Int("status", a.StatusCode).
		Str("request_id", requestID).
		Interface("headers", map[string][]string(a.Headers)).
		Int("body_size", len(a.Body)).
		Bool("body_truncated", truncated).
		Bytes("body_preview", preview).
		Msg("REST client response")
}

func (c *client) logRetry(a Attempt, delay time.Duration, requestID string) {
	event := c.logger.Warn().
		Int("attempt", a.Ordinal).
		Dur("delay", delay).
		Str("request_id", requestID)
	if a.Err != nil {
		event = event.Str("reason", a.Err.Error())
	} else {
		event = event.Str("reason", "status "+strconv.Itoa(a.StatusCode))
	}
	event.Msg("REST client retry scheduled")
}

func (c *client) logFailure(err *APIError, requestID string) {
	c.logger.Error().
		Err(err).
		Str("type", err.Type).
		Str("method", err.Details.Method).
		Str("url", err.Details.URL).
		Int("attempt", err.Details.Attempt).
		Int("status", err.Details.StatusCode).
		Str("request_id", requestID).
		Msg("REST client request failed")
}
