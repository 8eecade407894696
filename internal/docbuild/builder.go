// Package docbuild invokes the external documentation generator.
package docbuild

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"git.home.luguber.info/inful/docmake/internal/config"
	derrors "git.home.luguber.info/inful/docmake/internal/foundation/errors"
	"git.home.luguber.info/inful/docmake/internal/logfields"
	"git.home.luguber.info/inful/docmake/internal/shell"
)

// Builder runs the docs build command inside the docs sources directory and
// copies its combined stdout/stderr to the configured writer.
type Builder struct {
	runner  shell.Runner
	command shell.Command
	timeout time.Duration
	out     io.Writer
	logger  *slog.Logger
}

// New creates a Builder for the build section of cfg rooted at docsDir.
func New(runner shell.Runner, cfg config.BuildConfig, docsDir string, out io.Writer, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	if out == nil {
		out = os.Stdout
	}
	return &Builder{
		runner: runner,
		command: shell.Command{
			Name:        cfg.Command,
			Args:        cfg.Args,
			Dir:         docsDir,
			Env:         cfg.Env,
			MergeStderr: true,
		},
		timeout: cfg.Timeout,
		out:     out,
		logger:  logger,
	}
}

// Build runs the command once and blocks until it exits. The captured output
// is written out whether or not the command succeeded; a non-zero exit is
// returned as an error.
func (b *Builder) Build(ctx context.Context) error {
	if info, err := os.Stat(b.command.Dir); err != nil {
		return derrors.WrapError(err, derrors.CategoryNotFound, "docs sources directory not found").
			Fatal().
			WithContext(logfields.KeyDir, b.command.Dir).
			Build()
	} else if !info.IsDir() {
		return derrors.NotFoundError("docs sources path is not a directory").
			WithContext(logfields.KeyDir, b.command.Dir).
			Build()
	}

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	b.logger.Info("Compiling docs", logfields.Command(b.command.String()), logfields.Dir(b.command.Dir))

	res, runErr := b.runner.Run(ctx, b.command)
	if err := b.echo(res.Output); err != nil && runErr == nil {
		return derrors.InternalError("failed to write build output").WithCause(err).Build()
	}
	if runErr != nil {
		return runErr
	}

	b.logger.Debug("Docs compiled", logfields.DurationMS(float64(res.Duration.Milliseconds())))
	return nil
}

// echo writes the captured output, terminated by a newline.
func (b *Builder) echo(output []byte) error {
	if len(output) == 0 {
		return nil
	}
	if !bytes.HasSuffix(output, []byte("\n")) {
		output = append(output[:len(output):len(output)], '\n')
	}
	_, err := b.out.Write(output)
	return err
}
