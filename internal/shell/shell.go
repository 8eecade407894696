// Package shell runs external commands synchronously and captures their output.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	derrors "git.home.luguber.info/inful/docmake/internal/foundation/errors"
	"git.home.luguber.info/inful/docmake/internal/logfields"
	"git.home.luguber.info/inful/docmake/internal/logging"
)

const waitDelay = 2 * time.Second

// Command describes one external invocation.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env entries are appended to the inherited process environment.
	Env map[string]string
	// MergeStderr sends stderr into the same buffer as stdout, like 2>&1.
	MergeStderr bool
}

// String renders the command line for logs and errors.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result is what a finished command left behind.
type Result struct {
	// Output holds stdout, or stdout and stderr interleaved when MergeStderr is set.
	Output   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// Runner is the "run an external command" capability.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner runs commands with os/exec and blocks until they exit.
type ExecRunner struct {
	logger *slog.Logger
}

// NewExecRunner creates a runner logging through the shell subsystem of logger.
func NewExecRunner(logger *slog.Logger) *ExecRunner {
	return &ExecRunner{logger: logging.ForSubsystem(logger, logging.SubsystemShell)}
}

// Run executes cmd. A non-zero exit, a missing binary and a canceled context
// all return a classified build error; Result is filled in as far as the
// process got, so callers can still show its output.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	// #nosec G204 -- the command comes from trusted local configuration
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	// Children of a killed command can keep the output pipe open; stop waiting for them.
	c.WaitDelay = waitDelay
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), envList(cmd.Env)...)
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	if cmd.MergeStderr {
		c.Stderr = &stdout
	} else {
		c.Stderr = &stderr
	}

	r.logger.Debug("Running command", logfields.Command(cmd.String()), logfields.Dir(cmd.Dir))

	start := time.Now()
	err := c.Run()
	res := Result{
		Output:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: c.ProcessState.ExitCode(),
		Duration: time.Since(start),
	}

	if err == nil {
		r.logger.Debug("Command finished", logfields.Command(cmd.String()),
			logfields.DurationMS(float64(res.Duration.Milliseconds())))
		return res, nil
	}

	r.logger.Error("Command failed", logfields.Command(cmd.String()), logfields.ExitCode(res.ExitCode), logfields.Error(err))
	return res, classify(ctx, cmd, res, err)
}

func classify(ctx context.Context, cmd Command, res Result, err error) error {
	var b *derrors.ErrorBuilder
	var exitErr *exec.ExitError

	switch {
	case ctx.Err() != nil:
		b = derrors.WrapError(ctx.Err(), derrors.CategoryBuild, "command did not complete")
	case errors.Is(err, exec.ErrNotFound):
		b = derrors.WrapError(err, derrors.CategoryBuild, "command not found")
	case errors.As(err, &exitErr):
		b = derrors.WrapError(err, derrors.CategoryBuild, fmt.Sprintf("%s exited with status %d", cmd.String(), exitErr.ExitCode()))
	default:
		b = derrors.WrapError(err, derrors.CategoryBuild, "failed to start command")
	}

	return b.Fatal().
		WithContext(logfields.KeyCommand, cmd.String()).
		WithContext(logfields.KeyDir, cmd.Dir).
		WithContext(logfields.KeyExitCode, res.ExitCode).
		Build()
}

func envList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
