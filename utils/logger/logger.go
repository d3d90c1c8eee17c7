package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

var (
	currentLevel = Info
	handlerLevel = new(slog.LevelVar)
	base         = newHandlerLogger(os.Stderr, "text")
)

var slogLevels = map[Level]slog.Level{
	Debug: slog.LevelDebug,
	Info:  slog.LevelInfo,
	Warn:  slog.LevelWarn,
	Error: slog.LevelError,
}

// Output always goes to stderr: cargo consumes the compiler's stdout.
func newHandlerLogger(w io.Writer, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: handlerLevel}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Configure replaces the output sink and format ("text" or "json").
func Configure(w io.Writer, format string) {
	if w == nil {
		w = os.Stderr
	}
	base = newHandlerLogger(w, format)
}

func SetLevel(l Level) {
	currentLevel = l
	handlerLevel.Set(slogLevels[l])
}

// ParseLevel maps a level name to a Level. RUST_LOG style names such as
// "trace" and "warning" are accepted too.
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace", "debug":
		return Debug, nil
	case "", "info":
		return Info, nil
	case "warn", "warning":
		return Warn, nil
	case "error":
		return Error, nil
	default:
		return Info, fmt.Errorf("unknown log level %q", name)
	}
}

func IsVerbose() bool {
	return currentLevel <= Debug
}

// With returns a slog.Logger carrying the given attributes, for call sites
// that want structured fields instead of a formatted message.
func With(args ...any) *slog.Logger {
	return base.With(args...)
}

func log(l Level, format string, args ...any) {
	if currentLevel > l {
		return
	}
	base.Log(context.Background(), slogLevels[l], fmt.Sprintf(format, args...))
}

func Debugf(format string, args ...any) {
	log(Debug, format, args...)
}

func Infof(format string, args ...any) {
	log(Info, format, args...)
}

func Warnf(format string, args ...any) {
	log(Warn, format, args...)
}

func Errorf(format string, args ...any) {
	log(Error, format, args...)
}
