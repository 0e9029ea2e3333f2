package nlog

import (
	"fmt"
	"sort"

	"github.com/muir/ndep"
)

// BasicLogger is just the start of what a logger might
// support.  The ndep host packages log through it and
// will use type assertions for anything more capable
// so that a BasicLogger will remain acceptable to the APIs.
type BasicLogger interface {
	Debug(msg string, fields ...map[string]any)
	Error(msg string, fields ...map[string]any)
	Warn(msg string, fields ...map[string]any)
}

// StdLogger is implemented by the base library log.Logger
type StdLogger interface {
	Print(v ...any)
}

// LogFlusher is used to check if a logger implements
// Flush().  This is useful as part of a panic handler.
type LogFlusher interface {
	Flush()
}

type wrappedStdLogger struct {
	log   StdLogger
	debug bool
}

// LoggerFromStd creates a BasicLogger that writes Error and Warn
// messages to a standard logger.  Debug messages are dropped
// unless WithDebug is used.
func LoggerFromStd(log StdLogger, opts ...StdOption) BasicLogger {
	w := &wrappedStdLogger{log: log}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// StdOption modifies a logger created by LoggerFromStd
type StdOption func(*wrappedStdLogger)

// WithDebug turns on Debug messages
func WithDebug(on bool) StdOption {
	return func(w *wrappedStdLogger) {
		w.debug = on
	}
}

func (std *wrappedStdLogger) print(level string, msg string, fields []map[string]any) {
	if len(fields) == 0 {
		std.log.Print(level + " " + msg)
		return
	}
	vals := make([]any, 1, len(fields)*4+1)
	vals[0] = level + " " + msg
	for _, m := range fields {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			vals = append(vals, " "+k+"="+fmt.Sprint(m[k]))
		}
	}
	std.log.Print(vals...)
}

func (std *wrappedStdLogger) Error(msg string, fields ...map[string]any) {
	std.print("ERROR", msg, fields)
}

func (std *wrappedStdLogger) Warn(msg string, fields ...map[string]any) {
	std.print("WARN", msg, fields)
}

func (std *wrappedStdLogger) Debug(msg string, fields ...map[string]any) {
	if std.debug {
		std.print("DEBUG", msg, fields)
	}
}

// NoLogger is a BasicLogger that discards all inputs
func NoLogger() BasicLogger {
	return nilLogger{}
}

type nilLogger struct{}

var _ BasicLogger = nilLogger{}

func (nilLogger) Error(string, ...map[string]any) {}
func (nilLogger) Warn(string, ...map[string]any)  {}
func (nilLogger) Debug(string, ...map[string]any) {}

// Producer provides log as the BasicLogger.  A literal logger
// handed to Provide would be keyed by its concrete type so
// this is the way to register one.
func Producer(log BasicLogger) *ndep.Producer {
	return ndep.MakeProducer("logger", ndep.KeyOf[BasicLogger](), nil, func([]any) (any, error) {
		return log, nil
	})
}

// OrNoLogger returns log, or NoLogger() if log is nil
func OrNoLogger(log BasicLogger) BasicLogger {
	if log == nil {
		return NoLogger()
	}
	return log
}
