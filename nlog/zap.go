package nlog

import (
	"sort"

	"go.uber.org/zap"
)

type zapLogger struct {
	log *zap.Logger
}

var (
	_ BasicLogger = zapLogger{}
	_ LogFlusher  = zapLogger{}
)

// FromZap adapts a zap logger to BasicLogger.  Fields become
// zap.Any fields.
func FromZap(log *zap.Logger) BasicLogger {
	return zapLogger{log: log}
}

func zapFields(fields []map[string]any) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	var zf []zap.Field
	for _, m := range fields {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			zf = append(zf, zap.Any(k, m[k]))
		}
	}
	return zf
}

func (z zapLogger) Error(msg string, fields ...map[string]any) {
	z.log.Error(msg, zapFields(fields)...)
}

func (z zapLogger) Warn(msg string, fields ...map[string]any) {
	z.log.Warn(msg, zapFields(fields)...)
}

func (z zapLogger) Debug(msg string, fields ...map[string]any) {
	z.log.Debug(msg, zapFields(fields)...)
}

// Flush syncs the underlying zap logger
func (z zapLogger) Flush() {
	_ = z.log.Sync()
}
