package logger

import (
	"time"

	"github.com/rs/zerolog"
)

// LogEventAdapter wraps a zerolog event. A nil event (level disabled) is a no-op.
type LogEventAdapter struct {
	event  *zerolog.Event
	filter *SensitiveDataFilter
}

func (lea *LogEventAdapter) next(e *zerolog.Event) LogEvent {
	return &LogEventAdapter{event: e, filter: lea.filter}
}

func (lea *LogEventAdapter) Msg(msg string) {
	lea.event.Msg(msg)
}

func (lea *LogEventAdapter) Msgf(format string, args ...any) {
	lea.event.Msgf(format, args...)
}

// Err adds an error to the log event
func (lea *LogEventAdapter) Err(err error) LogEvent {
	return lea.next(lea.event.Err(err))
}

// Str adds a string field, masked when the key is sensitive or the value carries credentials
func (lea *LogEventAdapter) Str(key, value string) LogEvent {
	if lea.filter != nil {
		value = lea.filter.FilterString(key, value)
	}
	return lea.next(lea.event.Str(key, value))
}

func (lea *LogEventAdapter) Int(key string, value int) LogEvent {
	return lea.next(lea.event.Int(key, value))
}

func (lea *LogEventAdapter) Int64(key string, value int64) LogEvent {
	return lea.next(lea.event.Int64(key, value))
}

func (lea *LogEventAdapter) Bool(key string, value bool) LogEvent {
	return lea.next(lea.event.Bool(key, value))
}

func (lea *LogEventAdapter) Dur(key string, d time.Duration) LogEvent {
	return lea.next(lea.event.Dur(key, d))
}

// Interface adds an arbitrary value, filtered recursively for maps
func (lea *LogEventAdapter) Interface(key string, i any) LogEvent {
	if lea.filter != nil {
		i = lea.filter.FilterValue(key, i)
	}
	return lea.next(lea.event.Interface(key, i))
}

// Bytes is written as-is.
func (lea *LogEventAdapter) Bytes(key string, val []byte) LogEvent {
	return lea.next(lea.event.Bytes(key, val))
}
