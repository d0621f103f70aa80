// Package logging provides a tiny abstraction over slog so downstream code can
// depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. It also offers a richer AssistantLogger with contextual
// helpers (session, component) and domain specific logging helpers for tools,
// model calls and guardrail decisions.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogLevel is a thin enum for user friendly level configuration decoupled from slog.
type LogLevel int

const (
	// LogLevelDebug is the debug logging level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the informational logging level.
	LogLevelInfo
	// LogLevelWarn is the warning logging level.
	LogLevelWarn
	// LogLevelError is the error logging level.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a config string to a LogLevel, defaulting to info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Logger defines the minimal logging interface for shopmesh.
// This allows users to provide their own logger implementation or use the built-in adapters.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// Config configures construction of an AssistantLogger.
type Config struct {
	Level     LogLevel
	Format    string // json or text
	Output    io.Writer
	AddSource bool
	Component string
	SessionID string
}

// DefaultConfig returns a baseline JSON info level configuration.
func DefaultConfig() *Config {
	return &Config{Level: LogLevelInfo, Format: "json", Output: os.Stdout, AddSource: false}
}

// AssistantLogger wraps slog.Logger adding contextual cloning helpers and
// domain convenience methods. It is cheap to copy via With* methods.
type AssistantLogger struct {
	logger    *slog.Logger
	level     LogLevel
	component string
	sessionID string
}

// NewLogger builds an AssistantLogger from a config (or defaults if nil).
func NewLogger(cfg *Config) *AssistantLogger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level), AddSource: cfg.AddSource}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(cfg.Output, opts)
	} else {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}

	return &AssistantLogger{logger: slog.New(handler), level: cfg.Level, component: cfg.Component, sessionID: cfg.SessionID}
}

func slogLevel(l LogLevel) slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithComponent sets the logical component (orchestrator, search, cart, etc.).
func (l *AssistantLogger) WithComponent(c string) *AssistantLogger {
	nl := *l
	nl.component = c
	return &nl
}

// WithSession attaches the session identifier to every subsequent log entry.
func (l *AssistantLogger) WithSession(sid string) *AssistantLogger {
	nl := *l
	nl.sessionID = sid
	return &nl
}

func (l *AssistantLogger) attrs(extra ...any) []any {
	args := make([]any, 0, len(extra)+4)
	if l.component != "" {
		args = append(args, "component", l.component)
	}
	if l.sessionID != "" {
		args = append(args, "session_id", l.sessionID)
	}
	return append(args, extra...)
}

// Debug logs at debug level.
func (l *AssistantLogger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, l.attrs(args...)...)
}

// Info logs at info level.
func (l *AssistantLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, l.attrs(args...)...)
}

// Warn logs at warn level.
func (l *AssistantLogger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, l.attrs(args...)...)
}

// Error logs at error level.
func (l *AssistantLogger) Error(msg string, args ...any) {
	l.logger.Error(msg, l.attrs(args...)...)
}

// LogToolCall records execution details for a tool invocation.
func (l *AssistantLogger) LogToolCall(tool string, dur time.Duration, success bool, err error) {
	args := l.attrs("tool_name", tool, "duration_ms", dur.Milliseconds(), "success", success)
	if err != nil {
		args = append(args, "error", err.Error())
		l.logger.Error("Tool execution failed", args...)
		return
	}
	l.logger.Info("Tool execution completed", args...)
}

// LogModelCall records model call latency, token usage and success.
func (l *AssistantLogger) LogModelCall(model string, tokens int, dur time.Duration, err error) {
	args := l.attrs("model", model, "token_count", tokens, "duration_ms", dur.Milliseconds())
	if err != nil {
		args = append(args, "error", err.Error())
		l.logger.Error("Model call failed", args...)
		return
	}
	l.logger.Info("Model call completed", args...)
}

// LogGuardrailBlock records a guardrail decision that stopped or rewrote content.
func (l *AssistantLogger) LogGuardrailBlock(stage, reason, excerpt string) {
	l.logger.Info("Guardrail triggered", l.attrs("stage", stage, "reason", reason, "excerpt", excerpt)...)
}

// NoOpLogger discards all log messages. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}
