// Package logger provides opinionated logging for the engram system.
//
// The front-end is always a *slog.Logger; options select the handler:
// slog text (default), slog JSON for service logs, or charmbracelet/log
// for colorized CLI output.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	charm "github.com/charmbracelet/log"
)

type config struct {
	level   slog.Level
	pretty  bool
	json    bool
	source  bool
	writers []io.Writer
}

// New creates a *slog.Logger configured by the given options.
func New(opts ...Option) *slog.Logger {
	c := &config{
		level:   slog.LevelInfo,
		writers: []io.Writer{os.Stdout},
	}
	for _, opt := range opts {
		opt(c)
	}

	var w io.Writer
	if len(c.writers) == 1 {
		w = c.writers[0]
	} else {
		w = io.MultiWriter(c.writers...)
	}

	switch {
	case c.pretty:
		handler := charm.NewWithOptions(w, charm.Options{
			Level:           charm.Level(c.level),
			ReportTimestamp: true,
			ReportCaller:    c.source,
		})
		return slog.New(handler)

	case c.json:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     c.level,
			AddSource: c.source,
		}))

	default:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
			Level:     c.level,
			AddSource: c.source,
		}))
	}
}

// Nop returns a logger that discards everything. Useful as a default in
// constructors that accept an optional logger.
func Nop() *slog.Logger {
	return slog.New(nopHandler{})
}

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool { return false }
func (nopHandler) Handle(context.Context, slog.Record) error {
	return nil
}
func (n nopHandler) WithAttrs([]slog.Attr) slog.Handler { return n }
func (n nopHandler) WithGroup(string) slog.Handler      { return n }
