package utils

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fluent/fluent-logger-golang/fluent"
	"github.com/lmittmann/tint"
)

// Logger provides leveled, printf-style logging throughout the application.
// Records go to a slog handler (tint for terminals, JSON otherwise) and,
// when configured, are also forwarded to Fluent Bit.
type Logger struct {
	slog   *slog.Logger
	fluent *fluent.Fluent
	tag    string
}

// LoggerOptions configures NewLoggerWithOptions.
type LoggerOptions struct {
	Writer    io.Writer
	Level     string
	JSON      bool
	NoColor   bool
	Fluent    *fluent.Fluent
	FluentTag string
}

// NewLogger creates a colourised Logger writing debug and above to stdout.
func NewLogger() *Logger {
	return NewLoggerWithOptions(LoggerOptions{Level: "debug"})
}

// NewLoggerWithOptions builds a Logger from explicit options.
func NewLoggerWithOptions(opts LoggerOptions) *Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	level := ParseLevel(opts.Level)

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: "2006-01-02 15:04:05",
			NoColor:    opts.NoColor,
		})
	}

	tag := opts.FluentTag
	if tag == "" {
		tag = "propscout"
	}
	return &Logger{slog: slog.New(handler), fluent: opts.Fluent, tag: tag}
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *Logger) Info(format string, args ...any) {
	l.log(slog.LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.log(slog.LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.log(slog.LevelError, format, args...)
}

func (l *Logger) Debug(format string, args ...any) {
	l.log(slog.LevelDebug, format, args...)
}

// log tolerates a nil receiver so components can run without a logger.
func (l *Logger) log(level slog.Level, format string, args ...any) {
	if l == nil {
		return
	}
	ctx := context.Background()
	if !l.slog.Enabled(ctx, level) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.slog.Log(ctx, level, msg)

	if l.fluent != nil {
		// Fluent is best effort; a dead collector must not break scraping.
		_ = l.fluent.Post(l.tag, map[string]string{
			"level":   level.String(),
			"message": msg,
		})
	}
}
