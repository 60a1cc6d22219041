package present

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/present/internal/avsync"
	"github.com/gogpu/present/internal/gpu"
	"github.com/gogpu/present/internal/queue"
)

// nopHandler silently discards all log records.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// loggerPtr stores the active logger. Accessed atomically for thread safety.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// slogger returns the current package logger.
func slogger() *slog.Logger { return loggerPtr.Load() }

// SetLogger sets the logger for the whole pipeline. Passing nil
// restores the default no-op logger. Safe to call concurrently with
// playback.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
	queue.SetLogger(l)
	avsync.SetLogger(l)
	gpu.SetLogger(l)
}
