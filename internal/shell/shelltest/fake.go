// Package shelltest provides a scripted shell.Runner for tests.
package shelltest

import (
	"context"

	derrors "git.home.luguber.info/inful/docmake/internal/foundation/errors"
	"git.home.luguber.info/inful/docmake/internal/shell"
)

// FakeRunner records commands and replays a canned result.
type FakeRunner struct {
	Output   string
	ExitCode int
	// OnRun, when set, runs before the result is returned (e.g. to create artifacts).
	OnRun func(cmd shell.Command)

	Calls []shell.Command
}

func (f *FakeRunner) Run(_ context.Context, cmd shell.Command) (shell.Result, error) {
	f.Calls = append(f.Calls, cmd)
	if f.OnRun != nil {
		f.OnRun(cmd)
	}

	res := shell.Result{Output: []byte(f.Output), ExitCode: f.ExitCode}
	if f.ExitCode != 0 {
		return res, derrors.BuildError(cmd.String() + " failed").
			WithContext("exit_code", f.ExitCode).
			Build()
	}
	return res, nil
}
