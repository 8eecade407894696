// Package logging configures process-wide slog output.
//
// Two thresholds apply: General for ordinary records and Shell for records
// from loggers tagged subsystem=shell. The shell runner logs every command it
// echoes at debug level, so a stricter Shell threshold keeps that noise out
// without hiding the rest of the run.
package logging

import (
	"context"
	"io"
	"log/slog"

	"git.home.luguber.info/inful/docmake/internal/config"
	"git.home.luguber.info/inful/docmake/internal/logfields"
)

// SubsystemShell tags records emitted by the external command runner.
const SubsystemShell = "shell"

// Config is fixed at startup and never mutated afterwards.
type Config struct {
	General slog.Level
	Shell   slog.Level
	Format  config.LogFormat
}

// DefaultConfig is info for general messages and errors only for the shell subsystem.
func DefaultConfig() Config {
	return Config{
		General: slog.LevelInfo,
		Shell:   slog.LevelError,
		Format:  config.LogFormatText,
	}
}

// FromConfig derives the logging thresholds from the loaded configuration.
// verbose lowers the general threshold to debug; the shell threshold is kept.
func FromConfig(cfg config.LoggingConfig, verbose bool) Config {
	c := Config{
		General: cfg.Level.SlogLevel(),
		Shell:   cfg.ShellLevel.SlogLevel(),
		Format:  config.NormalizeLogFormat(string(cfg.Format)),
	}
	if verbose {
		c.General = slog.LevelDebug
	}
	return c
}

// New builds a logger writing to w with the given thresholds.
func New(cfg Config, w io.Writer) *slog.Logger {
	floor := min(cfg.General, cfg.Shell)
	opts := &slog.HandlerOptions{Level: floor}

	var inner slog.Handler
	if cfg.Format == config.LogFormatJSON {
		inner = slog.NewJSONHandler(w, opts)
	} else {
		inner = slog.NewTextHandler(w, opts)
	}
	return slog.New(&thresholdHandler{inner: inner, cfg: cfg})
}

// Setup builds the logger and installs it as the slog default.
func Setup(cfg Config, w io.Writer) *slog.Logger {
	logger := New(cfg, w)
	slog.SetDefault(logger)
	return logger
}

// ForSubsystem returns a logger whose records are filtered by that subsystem's threshold.
func ForSubsystem(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(logfields.Subsystem(name))
}

// thresholdHandler picks the threshold from the subsystem attribute bound via With.
type thresholdHandler struct {
	inner     slog.Handler
	cfg       Config
	subsystem string
}

func (h *thresholdHandler) threshold() slog.Level {
	if h.subsystem == SubsystemShell {
		return h.cfg.Shell
	}
	return h.cfg.General
}

func (h *thresholdHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.threshold() && h.inner.Enabled(ctx, level)
}

func (h *thresholdHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.inner.Handle(ctx, r)
}

func (h *thresholdHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	subsystem := h.subsystem
	for _, a := range attrs {
		if a.Key == logfields.KeySubsystem {
			subsystem = a.Value.String()
		}
	}
	return &thresholdHandler{inner: h.inner.WithAttrs(attrs), cfg: h.cfg, subsystem: subsystem}
}

func (h *thresholdHandler) WithGroup(name string) slog.Handler {
	return &thresholdHandler{inner: h.inner.WithGroup(name), cfg: h.cfg, subsystem: h.subsystem}
}
