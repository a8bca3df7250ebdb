package logx

import (
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tejasframework/tejas/core/rc"
)

func observed(logRequests, logExceptions bool) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &Logger{base: zap.New(core), logRequests: logRequests, logExceptions: logExceptions}, logs
}

func newRC() *rc.RC {
	r := httptest.NewRequest("GET", "/widgets/7", nil)
	w := httptest.NewRecorder()
	return rc.New(w, r)
}

func TestAccessLogWritesWhenEnabled(t *testing.T) {
	l, logs := observed(true, false)
	l.AccessLog(newRC(), 200, 12.5)

	if logs.Len() != 1 {
		t.Fatalf("expected one log entry, got %d", logs.Len())
	}
	entry := logs.All()[0]
	if entry.ContextMap()["status"] != int64(200) {
		t.Fatalf("got fields %+v", entry.ContextMap())
	}
}

func TestAccessLogIsSilentWhenDisabled(t *testing.T) {
	l, logs := observed(false, false)
	l.AccessLog(newRC(), 200, 12.5)

	if logs.Len() != 0 {
		t.Fatalf("expected no log entries, got %d", logs.Len())
	}
}

func TestErrorLogWritesWhenEnabled(t *testing.T) {
	l, logs := observed(false, true)
	l.ErrorLog(newRC(), errString("boom"))

	if logs.Len() != 1 {
		t.Fatalf("expected one log entry, got %d", logs.Len())
	}
}

func TestErrorLogIsSilentWhenDisabled(t *testing.T) {
	l, logs := observed(false, false)
	l.ErrorLog(newRC(), errString("boom"))

	if logs.Len() != 0 {
		t.Fatalf("expected no log entries, got %d", logs.Len())
	}
}

func TestNoopLoggerNeverPanics(t *testing.T) {
	l := Noop()
	l.AccessLog(newRC(), 200, 1.0)
	l.ErrorLog(newRC(), errString("x"))
	l.Warn("warn", "k", "v")
	l.Info("info", "k", "v")
	if err := l.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
}

func TestNilLoggerNeverPanics(t *testing.T) {
	var l *Logger
	l.AccessLog(newRC(), 200, 1.0)
	l.ErrorLog(newRC(), errString("x"))
	l.Warn("warn")
	l.Info("info")
	if err := l.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
}

type errString string

func (e errString) Error() string { return string(e) }
