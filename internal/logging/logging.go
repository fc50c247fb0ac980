// Package logging builds the slog logger used across crucible. Callers carry it
// through context.Context with ctxlog.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/m-mizutani/clog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/masq"
)

// Log output formats
const (
	FormatConsole = "console"
	FormatText    = "text"
	FormatJSON    = "json"
)

// Options selects level and handler for New
type Options struct {
	Level  string
	Format string
	Writer io.Writer
}

// ParseLevel maps a level name to a slog.Level
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, goerr.New("unknown log level", goerr.V("level", level))
	}
}

// New builds a logger. Secrets such as signing passphrases are redacted.
func New(opts Options) (*slog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	redact := masq.New(
		masq.WithTag("secret"),
		masq.WithFieldName("Passphrase"),
		masq.WithContain("PRIVATE KEY"),
	)

	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case "", FormatConsole:
		handler = &redactHandler{
			Handler: clog.New(clog.WithWriter(opts.Writer), clog.WithLevel(level)),
			replace: redact,
		}
	case FormatText:
		handler = slog.NewTextHandler(opts.Writer, &slog.HandlerOptions{Level: level, ReplaceAttr: redact})
	case FormatJSON:
		handler = slog.NewJSONHandler(opts.Writer, &slog.HandlerOptions{Level: level, ReplaceAttr: redact})
	default:
		return nil, goerr.New("unknown log format", goerr.V("format", opts.Format))
	}

	return slog.New(handler), nil
}

// redactHandler applies a ReplaceAttr function in front of handlers that do not take one
type redactHandler struct {
	slog.Handler
	replace func(groups []string, a slog.Attr) slog.Attr
}

func (h *redactHandler) Handle(ctx context.Context, r slog.Record) error {
	clean := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(h.replace(nil, a))
		return true
	})
	return h.Handler.Handle(ctx, clean)
}

func (h *redactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cleaned := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		cleaned[i] = h.replace(nil, a)
	}
	return &redactHandler{Handler: h.Handler.WithAttrs(cleaned), replace: h.replace}
}

func (h *redactHandler) WithGroup(name string) slog.Handler {
	return &redactHandler{Handler: h.Handler.WithGroup(name), replace: h.replace}
}
