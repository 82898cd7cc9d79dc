// Package logger defines the structured logging contract used by the API client
// and a zerolog-backed implementation that masks credentials before they reach output.
package logger

import "time"

// Logger creates leveled log events. WithContext and WithFields return derived
// loggers; the receiver is never modified.
type Logger interface {
	Info() LogEvent
	Error() LogEvent
	Debug() LogEvent
	Warn() LogEvent
	Fatal() LogEvent
	WithContext(ctx any) Logger
	WithFields(fields map[string]any) Logger
}

// LogEvent is a single log entry under construction. Nothing is written until Msg or Msgf.
// Str and Interface values pass through the credential filter; Bytes is written unfiltered.
type LogEvent interface {
	Msg(msg string)
	Msgf(format string, args ...any)
	Err(err error) LogEvent
	Str(key, value string) LogEvent
	Bool(key string, value bool) LogEvent
	Int(key string, value int) LogEvent
	Int64(key string, value int64) LogEvent
	Dur(key string, d time.Duration) LogEvent
	Interface(key string, i any) LogEvent
	Bytes(key string, val []byte) LogEvent
}
