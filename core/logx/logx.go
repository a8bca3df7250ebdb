// Package logx wraps go.uber.org/zap for tejas's two fixed log lines:
// the access log (one entry per completed request, gated by
// LOG_HTTP_REQUESTS) and the exception log (one entry per panic the
// middleware pipeline recovers, gated by LOG_EXCEPTIONS; errors sent
// through RC.SendError are not logged). Structured fields, not %v-style
// formatting, match every example repo's error logging.
package logx

import (
	"go.uber.org/zap"

	"github.com/tejasframework/tejas/core/rc"
)

// Logger is the small wrapper the rest of tejas depends on instead of
// *zap.Logger directly, so that access/error logging stays a single,
// swappable call site.
type Logger struct {
	base          *zap.Logger
	logRequests   bool
	logExceptions bool
}

// New builds a Logger. development selects zap's human-readable console
// encoder (NewDevelopment); production builds use the default JSON
// encoder (NewProduction) so log lines stay machine-parseable.
func New(development, logRequests, logExceptions bool) (*Logger, error) {
	var base *zap.Logger
	var err error
	if development {
		base, err = zap.NewDevelopment()
	} else {
		base, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return &Logger{base: base, logRequests: logRequests, logExceptions: logExceptions}, nil
}

// Noop returns a Logger that discards everything, for callers (tests,
// CLI tools) that don't want to pay zap's setup cost.
func Noop() *Logger {
	return &Logger{base: zap.NewNop()}
}

// Sync flushes any buffered log entries. Call it once during shutdown.
func (l *Logger) Sync() error {
	if l == nil || l.base == nil {
		return nil
	}
	return l.base.Sync()
}

// AccessLog emits one structured entry per completed request, carrying
// the fields an operator needs to correlate a line with an incident:
// request id, method, path, status and how long dispatch took.
func (l *Logger) AccessLog(c *rc.RC, status int, durationMS float64) {
	if l == nil || l.base == nil || !l.logRequests {
		return
	}
	l.base.Info("request",
		zap.String("request_id", c.ID),
		zap.String("method", c.Method),
		zap.String("path", c.Endpoint),
		zap.String("ip", c.IP),
		zap.Int("status", status),
		zap.Float64("duration_ms", durationMS),
	)
}

// ErrorLog emits one structured entry per caught error or panic.
func (l *Logger) ErrorLog(c *rc.RC, err any) {
	if l == nil || l.base == nil || !l.logExceptions {
		return
	}
	fields := []zap.Field{
		zap.String("method", c.Method),
		zap.String("path", c.Endpoint),
	}
	if e, ok := err.(error); ok {
		fields = append(fields, zap.Error(e))
	} else {
		fields = append(fields, zap.Any("error", err))
	}
	if c.ID != "" {
		fields = append(fields, zap.String("request_id", c.ID))
	}
	l.base.Error("request error", fields...)
}

// Warn emits an operational warning unrelated to a specific request —
// duplicate route registration, a dropped middleware, a plugin that
// failed to load.
func (l *Logger) Warn(msg string, kv ...any) {
	if l == nil || l.base == nil {
		return
	}
	l.base.Sugar().Warnw(msg, kv...)
}

// Info emits a structured informational line outside the request path
// (startup, shutdown, connection lifecycle).
func (l *Logger) Info(msg string, kv ...any) {
	if l == nil || l.base == nil {
		return
	}
	l.base.Sugar().Infow(msg, kv...)
}
