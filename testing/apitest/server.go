// Package apitest provides a scripted fake of a remote JSON API for tests.
//
// Replies are served in the order they were enqueued; once the script is exhausted the
// default reply (200 with an empty JSON object) is used. Every request is recorded.
//
//	srv := apitest.New(t)
//	srv.Enqueue(apitest.Reply{Status: 429}, apitest.Reply{Status: 200, JSON: map[string]any{"ok": true}})
//	// point a client at srv.URL
//	require.Len(t, srv.Requests(), 2)
package apitest

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Reply is one scripted response.
type Reply struct {
	Status int
	// JSON is encoded as the response body when set.
	JSON any
	// Body is written verbatim when JSON is nil.
	Body    string
	Headers map[string]string
	// Gzip compresses the body and sets Content-Encoding.
	Gzip bool
	// Reset closes the connection without writing a response.
	Reset bool
}

// Recorded is a request received by the server.
type Recorded struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Option configures a Server.
type Option func(*options)

type options struct {
	tracerProvider trace.TracerProvider
}

// WithTracing wraps the handler with otelecho so server spans join the client's trace.
func WithTracing(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// Server is an httptest.Server backed by an echo router.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	script   []Reply
	fallback Reply
	requests []Recorded
}

// New starts a server that is closed when t finishes.
func New(t testing.TB, opts ...Option) *Server {
	t.Helper()

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	s := &Server{fallback: Reply{Status: http.StatusOK, JSON: map[string]any{}}}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	if o.tracerProvider != nil {
		e.Use(otelecho.Middleware("apitest",
			otelecho.WithTracerProvider(o.tracerProvider),
			otelecho.WithPropagators(propagation.TraceContext{}),
		))
	}
	e.Any("/*", s.handle)

	s.Server = httptest.NewServer(e)
	t.Cleanup(s.Close)
	return s
}

// Enqueue appends replies to the script.
func (s *Server) Enqueue(replies ...Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = append(s.script, replies...)
}

// SetDefault sets the reply used once the script is empty.
func (s *Server) SetDefault(r Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = r
}

// Requests returns a copy of the requests received so far.
func (s *Server) Requests() []Recorded {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Recorded, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *Server) next(rec Recorded) Reply {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, rec)
	if len(s.script) == 0 {
		return s.fallback
	}
	r := s.script[0]
	s.script = s.script[1:]
	return r
}

func (s *Server) handle(c echo.Context) error {
	req := c.Request()
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return err
	}

	reply := s.next(Recorded{
		Method: req.Method,
		Path:   req.URL.Path,
		Query:  req.URL.Query(),
		Header: req.Header.Clone(),
		Body:   body,
	})

	if reply.Reset {
		return reset(c)
	}

	payload := []byte(reply.Body)
	contentType := echo.MIMETextPlainCharsetUTF8
	if reply.JSON != nil {
		if payload, err = json.Marshal(reply.JSON); err != nil {
			return err
		}
		contentType = echo.MIMEApplicationJSON
	}
	if reply.Gzip {
		if payload, err = compress(payload); err != nil {
			return err
		}
		c.Response().Header().Set(echo.HeaderContentEncoding, "gzip")
	}
	for k, v := range reply.Headers {
		c.Response().Header().Set(k, v)
	}

	status := reply.Status
	if status == 0 {
		status = http.StatusOK
	}
	return c.Blob(status, contentType, payload)
}

func reset(c echo.Context) error {
	conn, _, err := c.Response().Hijack()
	if err != nil {
		return err
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetLinger(0)
	}
	return conn.Close()
}

func compress(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(b); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
