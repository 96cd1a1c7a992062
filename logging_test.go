// logging_test.go - Tests for structured logging functionality
//
// Test coverage:
// - Logger interface implementation (DefaultLogger, WriterLogger, NoOpLogger)
// - Log level filtering
// - JSON log formatting and escaping
// - Package-level logging functions
// - The loop's specialty log helpers
// - Lazy evaluation

package henrio

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// TestLogLevelString verifies LogLevel string representations
func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LogLevel(99), "UNKNOWN(99)"},
	}

	for _, tc := range tests {
		t.Run(tc.expected, func(t *testing.T) {
			if got := tc.level.String(); got != tc.expected {
				t.Errorf("String() = %q, want %q", got, tc.expected)
			}
		})
	}
}

// TestDefaultNewLogger creates a logger and verifies defaults
func TestDefaultNewLogger(t *testing.T) {
	logger := NewDefaultLogger(LevelInfo)

	if logger == nil {
		t.Fatal("NewDefaultLogger returned nil")
	}

	if !logger.IsEnabled(LevelError) {
		t.Error("LevelError should be enabled at LevelInfo")
	}
	if logger.IsEnabled(LevelDebug) {
		t.Error("LevelDebug should not be enabled at LevelInfo")
	}
}

// TestSetLevel verifies dynamic level changes
func TestSetLevel(t *testing.T) {
	logger := NewDefaultLogger(LevelError)

	if logger.IsEnabled(LevelInfo) {
		t.Error("LevelInfo should not be enabled at LevelError")
	}

	logger.SetLevel(LevelDebug)

	if !logger.IsEnabled(LevelDebug) {
		t.Error("LevelDebug should be enabled after SetLevel(LevelDebug)")
	}
}

// TestWriterLoggerOutput verifies plain-text formatting
func TestWriterLoggerOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(LevelDebug, &buf)

	logger.Log(LogEntry{
		Level:    LevelInfo,
		Category: "scheduler",
		LoopID:   "loop-1",
		TaskID:   "task-9",
		Message:  "henrio: test message",
		Context:  map[string]interface{}{"depth": 3},
	})

	output := buf.String()
	for _, want := range []string{"[INFO]", "scheduler", "henrio: test message", "loop=loop-1", "task=task-9", "depth=3"} {
		if !strings.Contains(output, want) {
			t.Errorf("output %q missing %q", output, want)
		}
	}
}

// TestWriterLoggerFiltersBelowLevel verifies level filtering suppresses output
func TestWriterLoggerFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(LevelWarn, &buf)

	LogDebug(logger, "scheduler", "henrio: should not appear", nil)
	LogInfo(logger, "scheduler", "henrio: also filtered", nil)

	if buf.Len() != 0 {
		t.Errorf("expected no output below LevelWarn, got %q", buf.String())
	}

	LogWarn(logger, "scheduler", "henrio: visible", nil)
	if !strings.Contains(buf.String(), "henrio: visible") {
		t.Errorf("warn output missing, got %q", buf.String())
	}
}

// TestWriterLoggerErrorField verifies err rendering
func TestWriterLoggerErrorField(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(LevelDebug, &buf)

	LogError(logger, "io", "henrio: readiness select failed", errors.New("boom"), nil)

	if !strings.Contains(buf.String(), "err=boom") {
		t.Errorf("error output missing err field, got %q", buf.String())
	}
}

// TestNoOpLogger verifies the no-op logger discards everything
func TestNoOpLogger(t *testing.T) {
	logger := NewNoOpLogger()

	if logger.IsEnabled(LevelError) {
		t.Error("NoOpLogger should report every level disabled")
	}
	// Must not panic.
	logger.Log(LogEntry{Level: LevelError, Message: "discarded"})
}

// TestGlobalLogger verifies SetStructuredLogger routing
func TestGlobalLogger(t *testing.T) {
	defer SetStructuredLogger(nil)

	var buf bytes.Buffer
	SetStructuredLogger(NewWriterLogger(LevelDebug, &buf))

	SDebug("scheduler", "henrio: via global", map[string]interface{}{"n": 1})
	SInfo("scheduler", "henrio: info via global")
	SWarn("scheduler", "henrio: warn via global")
	SError("scheduler", "henrio: error via global", errors.New("boom"))
	SErrorf("scheduler", "henrio: formatted %d", 42)

	output := buf.String()
	for _, want := range []string{
		"henrio: via global",
		"henrio: info via global",
		"henrio: warn via global",
		"henrio: error via global",
		"henrio: formatted 42",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("global logger output missing %q", want)
		}
	}
}

// TestGlobalLoggerDefaultsToNoOp verifies the unset global logger is silent
func TestGlobalLoggerDefaultsToNoOp(t *testing.T) {
	defer SetStructuredLogger(nil)
	SetStructuredLogger(nil)

	// Must not panic with no logger installed.
	SInfo("scheduler", "henrio: into the void")

	if getGlobalLogger().IsEnabled(LevelError) {
		t.Error("unset global logger should be a NoOpLogger")
	}
}

// TestEscapeJSON verifies JSON escaping of special characters
func TestEscapeJSON(t *testing.T) {
	tests := []struct {
		input       string
		shouldMatch string
	}{
		{`plain`, `plain`},
		{`with "quotes"`, `\"quotes\"`},
		{"with\nnewline", `\n`},
		{"with\ttab", `\t`},
		{`back\slash`, `\\`},
	}

	for _, tc := range tests {
		got := escapeJSON(tc.input)
		if !strings.Contains(got, tc.shouldMatch) {
			t.Errorf("escapeJSON(%q) = %q, expected to contain %q", tc.input, got, tc.shouldMatch)
		}
	}
}

// TestSpecialtyHelpers drives the loop's lifecycle log helpers end to end
func TestSpecialtyHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(LevelDebug, &buf)

	LogTimerScheduled(logger, "loop-1", "task-1", 100*time.Millisecond)
	LogTimerFired(logger, "loop-1", "task-1")
	LogTaskPanicked(logger, "loop-1", "task-2", errors.New("kaboom"))
	LogPollIOError(logger, "loop-1", errors.New("select failed"), false)
	LogPollIOError(logger, "loop-1", errors.New("select failed hard"), true)

	output := buf.String()
	for _, want := range []string{
		"henrio: timer scheduled",
		"henrio: timer fired",
		"henrio: task panicked",
		"henrio: readiness select failed",
		"duration_ms=100",
		"task=task-1",
		"loop=loop-1",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("specialty helper output missing %q, got:\n%s", want, output)
		}
	}
}

// TestSpecialtyHelpersFiltered verifies debug-level helpers honor the threshold
func TestSpecialtyHelpersFiltered(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(LevelWarn, &buf)

	LogTimerScheduled(logger, "loop-1", "task-1", time.Second)
	LogTimerFired(logger, "loop-1", "task-1")

	if buf.Len() != 0 {
		t.Errorf("timer debug logs should be filtered at LevelWarn, got %q", buf.String())
	}
}

// TestLoggerConcurrency verifies thread-safe concurrent logging
func TestLoggerConcurrency(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(LevelDebug, &buf)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				LogInfo(logger, "scheduler", "henrio: concurrent", nil)
			}
		}()
	}
	wg.Wait()

	lines := strings.Count(buf.String(), "\n")
	if lines != 8*50 {
		t.Errorf("expected %d complete lines, got %d", 8*50, lines)
	}
}

// TestLogErrorf verifies formatted error logging
func TestLogErrorf(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(LevelDebug, &buf)

	LogErrorf(logger, "task", "henrio: task %s failed %d times", "t-1", 3)

	if !strings.Contains(buf.String(), "henrio: task t-1 failed 3 times") {
		t.Errorf("formatted output missing, got %q", buf.String())
	}
}
