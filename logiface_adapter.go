package henrio

import (
	"io"
	"os"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// logifaceAdapter satisfies Logger by delegating to a logiface.Logger, so
// loop output can be routed through logiface's structured-event pipeline
// (and, through it, any backend logiface supports) instead of this
// package's own DefaultLogger formatting.
type logifaceAdapter struct {
	logger *logiface.Logger[*stumpy.Event]
}

// NewLogifaceLogger returns a Logger backed by logiface, using stumpy (the
// package's reference JSON event backend) to render entries to w at the
// given minimum level.
func NewLogifaceLogger(w io.Writer, level LogLevel) Logger {
	if w == nil {
		w = os.Stderr
	}
	return &logifaceAdapter{
		logger: stumpy.L.New(
			stumpy.L.WithLevel(toLogifaceLevel(level)),
			stumpy.WithStumpy(stumpy.WithWriter(w)),
		),
	}
}

// toLogifaceLevel maps this package's four-level scheme onto logiface's
// syslog-derived Level, per the mapping logiface.Level documents.
func toLogifaceLevel(level LogLevel) logiface.Level {
	switch level {
	case LevelDebug:
		return logiface.LevelDebug
	case LevelInfo:
		return logiface.LevelInformational
	case LevelWarn:
		return logiface.LevelWarning
	case LevelError:
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}

// IsEnabled reports whether level would be logged at the adapter's
// configured minimum level.
func (a *logifaceAdapter) IsEnabled(level LogLevel) bool {
	return toLogifaceLevel(level) <= a.logger.Level()
}

// Log renders entry through logiface's Builder, mapping LogEntry's fields
// onto logiface's fluent field methods; Context entries fall back to Field
// (logiface's any-typed path) since their value types aren't known ahead
// of time.
func (a *logifaceAdapter) Log(entry LogEntry) {
	b := a.logger.Build(toLogifaceLevel(entry.Level))
	if b == nil {
		return
	}
	if entry.Category != "" {
		b = b.Str("category", entry.Category)
	}
	if entry.LoopID != "" {
		b = b.Str("loop_id", entry.LoopID)
	}
	if entry.TaskID != "" {
		b = b.Str("task_id", entry.TaskID)
	}
	if !entry.Timestamp.IsZero() {
		b = b.Time("timestamp", entry.Timestamp)
	}
	if entry.Err != nil {
		b = b.Err(entry.Err)
	}
	for k, v := range entry.Context {
		b = b.Field(k, v)
	}
	b.Log(entry.Message)
}
