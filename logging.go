// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bcnp

import (
	"io"
	"log"
	"os"
	"sync"

	"golang.org/x/time/rate"
)

// LogLevel represents different logging levels.
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
	LogLevelTrace
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelError:
		return "ERROR"
	case LogLevelWarn:
		return "WARN"
	case LogLevelInfo:
		return "INFO"
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelTrace:
		return "TRACE"
	default:
		return "UNKNOWN"
	}
}

// Logger provides structured logging with levels. Each distinct format
// string is its own "channel", rate-limited to at most once per second.
// Without this, a noisy link (e.g. a flood of ChecksumMismatch errors)
// could otherwise saturate whatever sink the logger writes to.
type Logger struct {
	logger *log.Logger

	mu       sync.Mutex
	level    LogLevel
	limiters map[string]*rate.Limiter
}

// NewLogger creates a new Logger with the specified level.
func NewLogger(level LogLevel) *Logger {
	return NewLoggerWithWriter(os.Stderr, level)
}

// NewLoggerWithWriter creates a new Logger with custom writer and level.
func NewLoggerWithWriter(w io.Writer, level LogLevel) *Logger {
	return &Logger{
		logger:   log.New(w, "bcnp: ", log.LstdFlags),
		level:    level,
		limiters: make(map[string]*rate.Limiter),
	}
}

// SetLevel sets the minimum logging level.
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current logging level.
func (l *Logger) GetLevel() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// IsEnabled checks if a log level is enabled.
func (l *Logger) IsEnabled(level LogLevel) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return level <= l.level
}

// allow reports whether channel may log right now, consuming from its
// own once-per-second token bucket. Limiters are created lazily, one per
// distinct format string ever logged through this Logger.
func (l *Logger) allow(channel string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[channel]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(1), 1)
		l.limiters[channel] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

func (l *Logger) emit(level LogLevel, tag, format string, args ...interface{}) {
	if !l.IsEnabled(level) || !l.allow(format) {
		return
	}
	l.logger.Printf("["+tag+"] "+format, args...)
}

// Error logs at error level (always shown unless disabled entirely).
func (l *Logger) Error(format string, args ...interface{}) {
	l.emit(LogLevelError, "ERROR", format, args...)
}

// Warn logs at warning level.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.emit(LogLevelWarn, "WARN", format, args...)
}

// Info logs at info level.
func (l *Logger) Info(format string, args ...interface{}) {
	l.emit(LogLevelInfo, "INFO", format, args...)
}

// Debug logs at debug level.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.emit(LogLevelDebug, "DEBUG", format, args...)
}

// Trace logs at trace level (most verbose).
func (l *Logger) Trace(format string, args ...interface{}) {
	l.emit(LogLevelTrace, "TRACE", format, args...)
}

// Default loggers for different levels.
var (
	// DevNullLogger discards all output.
	DevNullLogger = NewLoggerWithWriter(io.Discard, LogLevelError)

	// DefaultLogger logs at info level for backward compatibility.
	DefaultLogger = NewLogger(LogLevelInfo)

	// ErrorLogger is an error-only logger for production use.
	ErrorLogger = NewLogger(LogLevelError)

	// DebugLogger is a debug logger for development.
	DebugLogger = NewLogger(LogLevelDebug)

	// TraceLogger is a trace logger for detailed debugging.
	TraceLogger = NewLogger(LogLevelTrace)
)
