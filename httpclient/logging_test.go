package httpclient

import (
	"context"
	"maps"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/apiclient/logger"
)

const (
	testContentType        = "application/json"
	testContentTypeHeader  = "Content-Type"
	testRestClientRequest  = "REST client request"
	testRestClientResponse = "REST client response"
)

// fakeLogEvent implements logger.LogEvent for testing
type fakeLogEvent struct {
	logger *fakeLogger
	level  string
	fields map[string]any
}

func (e *fakeLogEvent) Msg(msg string) {
	e.logger.mu.Lock()
	defer e.logger.mu.Unlock()
	e.logger.events = append(e.logger.events, loggedEvent{
		level:   e.level,
		fields:  maps.Clone(e.fields),
		message: msg,
	})
}

func (e *fakeLogEvent) Msgf(format string, _ ...any) {
	e.Msg(format)
}

func (e *fakeLogEvent) Err(err error) logger.LogEvent {
	e.fields["error"] = err
	return e
}

func (e *fakeLogEvent) Str(key, value string) logger.LogEvent {
	e.fields[key] = value
	return e
}

func (e *fakeLogEvent) Int(key string, value int) logger.LogEvent {
	e.fields[key] = value
	return e
}

func (e *fakeLogEvent) Int64(key string, value int64) logger.LogEvent {
	e.fields[key] = value
	return e
}

func (e *fakeLogEvent) Bool(key string, value bool) logger.LogEvent {
	e.fields[key] = value
	return e
}

func (e *fakeLogEvent) Dur(key string, d time.Duration) logger.LogEvent {
	e.fields[key] = d
	return e
}

func (e *fakeLogEvent) Interface(key string, i any) logger.LogEvent {
	e.fields[key] = i
	return e
}

func (e *fakeLogEvent) Bytes(key string, val []byte) logger.LogEvent {
	e.fields[key] = val
	return e
}

// fakeLogger implements logger.Logger for testing
type fakeLogger struct {
	mu     sync.Mutex
	events []loggedEvent
}

type loggedEvent struct {
	level   string
	fields  map[string]any
	message string
}

func (l *fakeLogger) newEvent(level string) logger.LogEvent {
	return &fakeLogEvent{logger: l, level: level, fields: make(map[string]any)}
}

func (l *fakeLogger) Info() logger.LogEvent  { return l.newEvent("info") }
func (l *fakeLogger) Error() logger.LogEvent { return l.newEvent("error") }
func (l *fakeLogger) Debug() logger.LogEvent { return l.newEvent("debug") }
func (l *fakeLogger) Warn() logger.LogEvent  { return l.newEvent("warn") }
func (l *fakeLogger) Fatal() logger.LogEvent { return l.newEvent("fatal") }

func (l *fakeLogger) WithContext(_ any) logger.Logger {
	return l
}

func (l *fakeLogger) WithFields(_ map[string]any) logger.Logger {
	return l
}

func (l *fakeLogger) eventsByLevel(level string) []loggedEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var events []loggedEvent
	for _, event := range l.events {
		if event.level == level {
			events = append(events, event)
		}
	}
	return events
}

func (l *fakeLogger) messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.events))
	for _, event := range l.events {
		out = append(out, event.message)
	}
	return out
}

func TestClientLogRequest(t *testing.T) {
	t.Run("basic request logging", func(t *testing.T) {
		fakeLog := &fakeLogger{}
		c := &client{
			logger: fakeLog,
			config: &Config{MaxPayloadLogBytes: 1024},
		}

		req, err := http.NewRequestWithContext(context.Background(), "POST", "https://api.example.com/v2/acts?token=s3cr3t", http.NoBody)
		require.NoError(t, err)
		req.Header.Set("User-Agent", "apiclient/test")
		req.Header.Set(testContentTypeHeader, testContentType)

		body := []byte(`{"name": "my-act"}`)
		c.logRequest(req, body, "req-123", 1)

		infoEvents := fakeLog.eventsByLevel("info")
		require.Len(t, infoEvents, 1)

		infoEvent := infoEvents[0]
		assert.Equal(t, testRestClientRequest, infoEvent.message)
		assert.Equal(t, "outbound", infoEvent.fields["direction"])
		assert.Equal(t, "POST", infoEvent.fields["method"])
		assert.Equal(t, "https://api.example.com/v2/acts?token=***", infoEvent.fields["url"])
		assert.Equal(t, "req-123", infoEvent.fields["request_id"])
		assert.Equal(t, 1, infoEvent.fields["attempt"])
		assert.Equal(t, 2, infoEvent.fields["header_count"])
		assert.Equal(t, len(body), infoEvent.fields["body_size"])

		assert.Empty(t, fakeLog.eventsByLevel("debug"))
	})

	t.Run("request with empty body", func(t *testing.T) {
		fakeLog := &fakeLogger{}
		c := &client{logger: fakeLog, config: &Config{}}

		req, err := http.NewRequestWithContext(context.Background(), "GET", "https://api.example.com/v2/users/me", http.NoBody)
		require.NoError(t, err)

		c.logRequest(req, nil, "req-456", 1)

		infoEvents := fakeLog.eventsByLevel("info")
		require.Len(t, infoEvents, 1)
		assert.Equal(t, "https://api.example.com/v2/users/me", infoEvents[0].fields["url"])
		assert.NotContains(t, infoEvents[0].fields, "body_size")
		assert.NotContains(t, infoEvents[0].fields, "header_count")
	})

	t.Run("payload logging truncates preview", func(t *testing.T) {
		fakeLog := &fakeLogger{}
		c := &client{
			logger: fakeLog,
			config: &Config{LogPayloads: true, MaxPayloadLogBytes: 10},
		}

		req, err := http.NewRequestWithContext(context.Background(), "PUT", "https://api.example.com/v2/acts/abc", http.NoBody)
		require.NoError(t, err)

		body := []byte("This body is longer than ten bytes")
		c.logRequest(req, body, "req-789", 2)

		debugEvents := fakeLog.eventsByLevel("debug")
		require.Len(t, debugEvents, 1)

		debugEvent := debugEvents[0]
		assert.Equal(t, testRestClientRequest, debugEvent.message)
		assert.Equal(t, len(body), debugEvent.fields["body_size"])
		assert.Equal(t, true, debugEvent.fields["body_truncated"])
		assert.Equal(t, body[:10], debugEvent.fields["body_preview"])
		assert.NotNil(t, debugEvent.fields["headers"])
	})

	t.Run("zero MaxPayloadLogBytes uses default", func(t *testing.T) {
		fakeLog := &fakeLogger{}
		c := &client{logger: fakeLog, config: &Config{LogPayloads: true}}

		req, err := http.NewRequestWithContext(context.Background(), "POST", "https://api.example.com/v2/acts", http.NoBody)
		require.NoError(t, err)

		largeBody := make([]byte, 1500)
		for i := range largeBody {
			largeBody[i] = byte('A' + (i % 26))
		}
		c.logRequest(req, largeBody, "req-default", 1)

		debugEvent := fakeLog.eventsByLevel("debug")[0]
		assert.Equal(t, true, debugEvent.fields["body_truncated"])
		assert.Equal(t, largeBody[:1024], debugEvent.fields["body_preview"])
	})
}

func TestClientLogResponse(t *testing.T) {
	t.Run("basic response logging", func(t *testing.T) {
		fakeLog := &fakeLogger{}
		c := &client{logger: fakeLog, config: &Config{}}

		a := Attempt{
			Ordinal:    3,
			StatusCode: 200,
			Body:       []byte(`{"data": {}}`),
			Headers:    http.Header{testContentTypeHeader: []string{testContentType}},
		}
		c.logResponse(a, 250*time.Millisecond, "req-response")

		infoEvents := fakeLog.eventsByLevel("info")
		require.Len(t, infoEvents, 1)

		infoEvent := infoEvents[0]
		assert.Equal(t, testRestClientResponse, infoEvent.message)
		assert.Equal(t, "inbound", infoEvent.fields["direction"])
		assert.Equal(t, 200, infoEvent.fields["status"])
		assert.Equal(t, 250*time.Millisecond, infoEvent.fields["elapsed"])
		assert.Equal(t, 3, infoEvent.fields["attempt"])
		assert.Equal(t, "req-response", infoEvent.fields["request_id"])
		assert.Equal(t, len(a.Body), infoEvent.fields["body_size"])
		assert.NotContains(t, infoEvent.fields, "error")
	})

	t.Run("transport failure carries error", func(t *testing.T) {
		fakeLog := &fakeLogger{}
		c := &client{logger: fakeLog, config: &Config{}}

		cause := NewNetworkError("request failed", nil)
		c.logResponse(Attempt{Ordinal: 1, Err: cause}, time.Millisecond, "req-err")

		infoEvent := fakeLog.eventsByLevel("info")[0]
		assert.Equal(t, 0, infoEvent.fields["status"])
		assert.Equal(t, cause, infoEvent.fields["error"])
		assert.NotContains(t, infoEvent.fields, "body_size")
	})

	t.Run("payload logging enabled", func(t *testing.T) {
		fakeLog := &fakeLogger{}
		c := &client{logger: fakeLog, config: &Config{LogPayloads: true, MaxPayloadLogBytes: 100}}

		a := Attempt{
			Ordinal:    1,
			StatusCode: 201,
			Body:       []byte(`{"id": "abc"}`),
			Headers:    http.Header{"X-Ratelimit-Limit": []string{"100"}},
		}
		c.logResponse(a, 300*time.Millisecond, "req-debug")

		debugEvents := fakeLog.eventsByLevel("debug")
		require.Len(t, debugEvents, 1)
		assert.Equal(t, testRestClientResponse, debugEvents[0].message)
		assert.Equal(t, false, debugEvents[0].fields["body_truncated"])
		assert.Equal(t, a.Body, debugEvents[0].fields["body_preview"])
	})
}

func TestClientLogRetryAndFailure(t *testing.T) {
	fakeLog := &fakeLogger{}
	c := &client{logger: fakeLog, config: &Config{}}

	c.logRetry(Attempt{Ordinal: 2, StatusCode: 503}, time.Second, "req-retry")
	c.logRetry(Attempt{Ordinal: 3, Err: NewTimeoutError("request timed out", 0, nil)}, 2*time.Second, "req-retry")

	warnEvents := fakeLog.eventsByLevel("warn")
	require.Len(t, warnEvents, 2)
	assert.Equal(t, "REST client retry scheduled", warnEvents[0].message)
	assert.Equal(t, "status 503", warnEvents[0].fields["reason"])
	assert.Equal(t, time.Second, warnEvents[0].fields["delay"])
	assert.Equal(t, "timeout error: request timed out", warnEvents[1].fields["reason"])

	apiErr := &APIError{
		Kind:    KindRequestFailed,
		Type:    "request-failed",
		Message: "API request failed on retry number 2",
		Details: ErrorDetails{URL: "https://api.example.com/v2/acts", Method: "GET", Attempt: 3, StatusCode: 503},
	}
	c.logFailure(apiErr, "req-retry")

	errorEvents := fakeLog.eventsByLevel("error")
	require.Len(t, errorEvents, 1)
	assert.Equal(t, "REST client request failed", errorEvents[0].message)
	assert.Equal(t, 3, errorEvents[0].fields["attempt"])
	assert.Equal(t, "request-failed", errorEvents[0].fields["type"])
}

func TestLoggingConfigurationInheritance(t *testing.T) {
	fakeLog := &fakeLogger{}
	clientImpl := NewBuilder(fakeLog).WithTimeout(5 * time.Second).Build().(*client)

	assert.False(t, clientImpl.config.LogPayloads)
	assert.Equal(t, 1024, clientImpl.config.MaxPayloadLogBytes)

	req, err := http.NewRequestWithContext(context.Background(), "GET", "http://test.com", http.NoBody)
	require.NoError(t, err)
	clientImpl.logRequest(req, []byte("test"), "test-integration", 1)

	events := fakeLog.eventsByLevel("info")
	require.Len(t, events, 1)
	assert.Equal(t, testRestClientRequest, events[0].message)
}
