// Package log provides structured logging for scalpscan.
//
// Logs go to stderr so that commands which print results (leads list,
// scan summaries) keep stdout clean. The format is JSON when GO_ENV is
// "production" or SCALPSCAN_LOG_FORMAT is "json", text otherwise.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu     sync.Mutex
	logger *slog.Logger
	level  = new(slog.LevelVar)
)

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Init installs the global logger at the given level. Calling it again
// only changes the level. Unknown levels fall back to info.
func Init(lvl string) {
	l, err := ParseLevel(lvl)
	level.Set(l)

	mu.Lock()
	if logger == nil {
		logger = New(os.Stderr, jsonFormat())
		slog.SetDefault(logger)
	}
	mu.Unlock()

	if err != nil {
		logger.Warn("invalid log level, using info", "level", lvl)
	}
}

// New builds a logger writing to w that shares the global level.
func New(w io.Writer, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func jsonFormat() bool {
	return os.Getenv("GO_ENV") == "production" ||
		strings.EqualFold(os.Getenv("SCALPSCAN_LOG_FORMAT"), "json")
}

// L returns the global logger, initializing it at info level if needed.
func L() *slog.Logger {
	mu.Lock()
	l := logger
	mu.Unlock()
	if l == nil {
		Init("info")
		mu.Lock()
		l = logger
		mu.Unlock()
	}
	return l
}

// Debug logs at debug level.
func Debug(msg string, args ...any) { L().Debug(msg, args...) }

// Info logs at info level.
func Info(msg string, args ...any) { L().Info(msg, args...) }

// Warn logs at warn level.
func Warn(msg string, args ...any) { L().Warn(msg, args...) }

// Error logs at error level.
func Error(msg string, args ...any) { L().Error(msg, args...) }

// With returns a logger with the given attributes.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}

// Component returns a logger tagged the way every package tags its logs.
func Component(name string) *slog.Logger {
	return With("component", name)
}
