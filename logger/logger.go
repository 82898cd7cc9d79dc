package logger

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ZeroLogger implements Logger on top of zerolog.
type ZeroLogger struct {
	zlog   *zerolog.Logger
	filter *SensitiveDataFilter
}

var _ Logger = (*ZeroLogger)(nil)

var callerMarshalOnce sync.Once

func shortCaller(_ uintptr, file string, line int) string {
	base := filepath.Base(file)
	parent := filepath.Base(filepath.Dir(file))
	if parent != "." && parent != "" {
		return parent + "/" + base + ":" + strconv.Itoa(line)
	}
	return base + ":" + strconv.Itoa(line)
}

// New creates a logger writing to stdout at the given level.
// Pretty output uses zerolog's console writer; otherwise lines are JSON.
func New(level string, pretty bool) *ZeroLogger {
	return NewWithWriter(os.Stdout, level, pretty, nil)
}

// NewWithFilter is New with a custom sensitive-field configuration.
func NewWithFilter(level string, pretty bool, filterConfig *FilterConfig) *ZeroLogger {
	return NewWithWriter(os.Stdout, level, pretty, filterConfig)
}

// NewWithWriter creates a logger writing to w. A nil filterConfig selects DefaultFilterConfig.
func NewWithWriter(w io.Writer, level string, pretty bool, filterConfig *FilterConfig) *ZeroLogger {
	callerMarshalOnce.Do(func() {
		zerolog.CallerMarshalFunc = shortCaller
	})

	out := w
	if pretty {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	l := zerolog.New(out).With().Timestamp().CallerWithSkipFrameCount(3).Logger()

	zLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		zLevel = zerolog.InfoLevel
	}
	l = l.Level(zLevel)

	return &ZeroLogger{zlog: &l, filter: NewSensitiveDataFilter(filterConfig)}
}

// WithContext returns the logger stored in ctx by zerolog, if any and enabled.
func (l *ZeroLogger) WithContext(ctx any) Logger {
	c, ok := ctx.(context.Context)
	if !ok {
		return l
	}
	zl := zerolog.Ctx(c)
	if zl == nil || zl.GetLevel() == zerolog.Disabled {
		return l
	}
	return &ZeroLogger{zlog: zl, filter: l.filter}
}

// WithFields returns a logger that adds the (filtered) fields to every entry.
func (l *ZeroLogger) WithFields(fields map[string]any) Logger {
	if l.filter != nil {
		fields = l.filter.FilterFields(fields)
	}
	log := l.zlog.With().Fields(fields).Logger()
	return &ZeroLogger{zlog: &log, filter: l.filter}
}

// Info creates an info-level log event
func (l *ZeroLogger) Info() LogEvent { return l.event(l.zlog.Info()) }

// Error creates an error-level log event
func (l *ZeroLogger) Error() LogEvent { return l.event(l.zlog.Error()) }

// Debug creates a debug-level log event
func (l *ZeroLogger) Debug() LogEvent { return l.event(l.zlog.Debug()) }

// Warn creates a warning-level log event
func (l *ZeroLogger) Warn() LogEvent { return l.event(l.zlog.Warn()) }

// Fatal creates a fatal-level log event. Sending it exits the process.
func (l *ZeroLogger) Fatal() LogEvent { return l.event(l.zlog.Fatal()) }

func (l *ZeroLogger) event(e *zerolog.Event) LogEvent {
	return &LogEventAdapter{event: e, filter: l.filter}
}
