package docbuild

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docmake/internal/config"
	derrors "git.home.luguber.info/inful/docmake/internal/foundation/errors"
	"git.home.luguber.info/inful/docmake/internal/shell"
	"git.home.luguber.info/inful/docmake/internal/shell/shelltest"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func defaultBuild() config.BuildConfig {
	return config.BuildConfig{Command: config.DefaultBuildCommand, Args: config.DefaultBuildArgs()}
}

func TestBuild_InvokesMakeHTMLInDocsDir(t *testing.T) {
	docs := t.TempDir()
	fake := &shelltest.FakeRunner{Output: "build succeeded.\n"}
	var out bytes.Buffer

	b := New(fake, defaultBuild(), docs, &out, quiet)
	require.NoError(t, b.Build(context.Background()))

	require.Len(t, fake.Calls, 1)
	call := fake.Calls[0]
	require.Equal(t, "make", call.Name)
	require.Equal(t, []string{"html"}, call.Args)
	require.Equal(t, docs, call.Dir)
	require.True(t, call.MergeStderr)
	require.Equal(t, "build succeeded.\n", out.String())
}

func TestBuild_FailurePropagatesAndShowsOutput(t *testing.T) {
	fake := &shelltest.FakeRunner{Output: "Makefile:20: recipe for target 'html' failed\n", ExitCode: 2}
	var out bytes.Buffer

	err := New(fake, defaultBuild(), t.TempDir(), &out, quiet).Build(context.Background())
	require.Error(t, err)
	require.True(t, derrors.HasCategory(err, derrors.CategoryBuild))
	require.Contains(t, out.String(), "recipe for target")
}

func TestBuild_TerminatesOutputWithNewline(t *testing.T) {
	fake := &shelltest.FakeRunner{Output: "build succeeded."}
	var out bytes.Buffer

	require.NoError(t, New(fake, defaultBuild(), t.TempDir(), &out, quiet).Build(context.Background()))
	require.Equal(t, "build succeeded.\n", out.String())
}

func TestBuild_EmptyOutputWritesNothing(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, New(&shelltest.FakeRunner{}, defaultBuild(), t.TempDir(), &out, quiet).Build(context.Background()))
	require.Empty(t, out.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, os.ErrClosed }

func TestBuild_OutputWriteFailure(t *testing.T) {
	fake := &shelltest.FakeRunner{Output: "build succeeded.\n"}

	err := New(fake, defaultBuild(), t.TempDir(), failingWriter{}, quiet).Build(context.Background())
	require.Error(t, err)
	require.True(t, derrors.HasCategory(err, derrors.CategoryInternal))
	require.ErrorIs(t, err, os.ErrClosed)
}

func TestBuild_OutputWriteFailureDoesNotMaskBuildError(t *testing.T) {
	fake := &shelltest.FakeRunner{Output: "boom\n", ExitCode: 2}

	err := New(fake, defaultBuild(), t.TempDir(), failingWriter{}, quiet).Build(context.Background())
	require.True(t, derrors.HasCategory(err, derrors.CategoryBuild))
}

func TestBuild_MissingDocsDir(t *testing.T) {
	fake := &shelltest.FakeRunner{}
	err := New(fake, defaultBuild(), filepath.Join(t.TempDir(), "_docs_sources"), io.Discard, quiet).
		Build(context.Background())

	require.Error(t, err)
	require.True(t, derrors.HasCategory(err, derrors.CategoryNotFound))
	require.Empty(t, fake.Calls)
}

func TestBuild_DocsPathIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "docs")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	err := New(&shelltest.FakeRunner{}, defaultBuild(), file, io.Discard, quiet).Build(context.Background())
	require.True(t, derrors.HasCategory(err, derrors.CategoryNotFound))
}

func TestBuild_PassesEnv(t *testing.T) {
	fake := &shelltest.FakeRunner{}
	cfg := defaultBuild()
	cfg.Env = map[string]string{"SPHINXOPTS": "-W"}

	require.NoError(t, New(fake, cfg, t.TempDir(), io.Discard, quiet).Build(context.Background()))
	require.Equal(t, "-W", fake.Calls[0].Env["SPHINXOPTS"])
}

func TestBuild_WithRealMake(t *testing.T) {
	if _, err := exec.LookPath("make"); err != nil {
		t.Skip("make not available")
	}
	docs := t.TempDir()
	makefile := "html:\n\t@echo building html\n\t@echo warning: nothing to do 1>&2\n"
	require.NoError(t, os.WriteFile(filepath.Join(docs, "Makefile"), []byte(makefile), 0o600))

	var out bytes.Buffer
	b := New(shell.NewExecRunner(quiet), defaultBuild(), docs, &out, quiet)
	require.NoError(t, b.Build(context.Background()))
	require.Equal(t, "building html\nwarning: nothing to do\n", out.String())
}

func TestBuild_Timeout(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	cfg := config.BuildConfig{Command: "sh", Args: []string{"-c", "sleep 5"}, Timeout: 50 * time.Millisecond}

	err := New(shell.NewExecRunner(quiet), cfg, t.TempDir(), io.Discard, quiet).Build(context.Background())
	require.Error(t, err)
	require.True(t, derrors.HasCategory(err, derrors.CategoryBuild))
}
