package stm

import (
	plog "github.com/pingcap/log"
	"go.uber.org/zap"
)

// txLogger is the narrow logging surface the engine depends on, satisfied
// by *zap.Logger. Grounded on tinykv's scheduler package, which pulls in
// go.uber.org/zap through github.com/pingcap/log's global-logger wrapper
// rather than constructing loggers ad hoc.
type txLogger interface {
	Debug(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
}

// defaultLogger returns pingcap/log's process-wide zap logger. Executors
// constructed without WithLoggerOption share this one, matching mvcc-map's
// package-level default slog.Logger (mvcc/options.go) translated to this
// corpus's zap idiom.
func defaultLogger() txLogger {
	return plog.L()
}

// WithLoggerOption lets a caller supply its own *zap.Logger, e.g. to attach
// request-scoped fields or route STM diagnostics into an existing
// application logger.
func WithLoggerOption(l *zap.Logger) Option {
	return func(c *Config) { c.logger = l }
}
