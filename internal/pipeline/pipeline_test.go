package pipeline

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docmake/internal/cleanup"
	"git.home.luguber.info/inful/docmake/internal/config"
	"git.home.luguber.info/inful/docmake/internal/docbuild"
	derrors "git.home.luguber.info/inful/docmake/internal/foundation/errors"
	"git.home.luguber.info/inful/docmake/internal/metrics"
	"git.home.luguber.info/inful/docmake/internal/shell"
	"git.home.luguber.info/inful/docmake/internal/shell/shelltest"
	"git.home.luguber.info/inful/docmake/internal/stamp"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type harness struct {
	layout config.Layout
	runner *shelltest.FakeRunner
	out    bytes.Buffer
	p      *Pipeline
}

// newHarness lays out a docs tree whose fake build writes both artifacts.
func newHarness(t *testing.T, versionContent *string) *harness {
	t.Helper()
	cfg := &config.Config{}
	cfg.Paths = config.PathsConfig{
		DocsDir:       config.DefaultDocsDir,
		VersionFile:   config.DefaultVersionFile,
		IndexArtifact: config.DefaultIndexArtifact,
		CacheArtifact: config.DefaultCacheArtifact,
	}
	layout, err := cfg.ResolveLayout(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(layout.DocsDir, 0o750))
	if versionContent != nil {
		require.NoError(t, os.WriteFile(layout.VersionFile, []byte(*versionContent), 0o600))
	}

	h := &harness{layout: layout}
	h.runner = &shelltest.FakeRunner{
		Output: "Build finished. The HTML pages are in _build/html.\n",
		OnRun: func(shell.Command) {
			require.NoError(t, os.WriteFile(layout.IndexArtifact, []byte("inv"), 0o600))
			require.NoError(t, os.MkdirAll(filepath.Join(layout.CacheArtifact, "api"), 0o750))
		},
	}

	build := config.BuildConfig{Command: config.DefaultBuildCommand, Args: config.DefaultBuildArgs()}
	h.p = New(
		stamp.New(layout.VersionFile, quiet),
		docbuild.New(h.runner, build, layout.DocsDir, &h.out, quiet),
		cleanup.New(layout.IndexArtifact, layout.CacheArtifact, quiet),
		quiet,
	)
	h.p.newID = func() string { return "run-1" }
	return h
}

func ptr(s string) *string { return &s }

func TestRun_StampBuildClean(t *testing.T) {
	h := newHarness(t, ptr(""))

	report, err := h.p.Run(context.Background(), Request{Version: "1.2.3"})
	require.NoError(t, err)

	data, err := os.ReadFile(h.layout.VersionFile)
	require.NoError(t, err)
	require.Equal(t, "1.2.3", string(data))

	require.Len(t, h.runner.Calls, 1)
	require.Equal(t, h.layout.DocsDir, h.runner.Calls[0].Dir)
	require.True(t, h.runner.Calls[0].MergeStderr)
	require.Contains(t, h.out.String(), "Build finished")

	require.NoFileExists(t, h.layout.IndexArtifact)
	require.NoDirExists(t, h.layout.CacheArtifact)

	require.Equal(t, "run-1", report.RunID)
	require.True(t, report.Stamped)
	require.Equal(t, metrics.OutcomeSuccess, report.Outcome)
	require.Equal(t, []StageName{StageStamp, StageBuild, StageClean}, stageNames(report))
}

func TestRun_NoVersionLeavesFileUntouched(t *testing.T) {
	h := newHarness(t, ptr("0.9.0\n"))

	report, err := h.p.Run(context.Background(), Request{})
	require.NoError(t, err)

	data, err := os.ReadFile(h.layout.VersionFile)
	require.NoError(t, err)
	require.Equal(t, "0.9.0\n", string(data))
	require.False(t, report.Stamped)
	require.Equal(t, metrics.ResultSkipped, report.Stages[0].Result)
	require.NoFileExists(t, h.layout.IndexArtifact)
}

func TestRun_MissingVersionFileAbortsBeforeBuild(t *testing.T) {
	h := newHarness(t, nil)
	// artifacts from an earlier build must survive
	require.NoError(t, os.WriteFile(h.layout.IndexArtifact, []byte("old"), 0o600))
	require.NoError(t, os.MkdirAll(h.layout.CacheArtifact, 0o750))

	report, err := h.p.Run(context.Background(), Request{Version: "1.2.3"})
	require.Error(t, err)
	require.True(t, derrors.HasCategory(err, derrors.CategoryNotFound))
	require.Empty(t, h.runner.Calls)
	require.False(t, report.Ran(StageBuild))
	require.FileExists(t, h.layout.IndexArtifact)
	require.DirExists(t, h.layout.CacheArtifact)
	require.Equal(t, metrics.OutcomeFailed, report.Outcome)
}

func TestRun_BuildFailureSkipsCleanup(t *testing.T) {
	h := newHarness(t, ptr(""))
	h.runner.ExitCode = 2

	report, err := h.p.Run(context.Background(), Request{})
	require.Error(t, err)
	require.True(t, derrors.HasCategory(err, derrors.CategoryBuild))
	require.False(t, report.Ran(StageClean))
	require.FileExists(t, h.layout.IndexArtifact)
	require.DirExists(t, h.layout.CacheArtifact)
}

func TestRun_MissingIndexAfterBuildFails(t *testing.T) {
	h := newHarness(t, ptr(""))
	h.runner.OnRun = nil

	_, err := h.p.Run(context.Background(), Request{})
	require.Error(t, err)
	require.True(t, derrors.HasCategory(err, derrors.CategoryNotFound))
}

func TestRun_CanceledContextRunsNothing(t *testing.T) {
	h := newHarness(t, ptr(""))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := h.p.Run(ctx, Request{Version: "1.2.3"})
	require.Error(t, err)
	require.Empty(t, report.Stages)
	require.Equal(t, metrics.OutcomeCanceled, report.Outcome)

	data, err := os.ReadFile(h.layout.VersionFile)
	require.NoError(t, err)
	require.Empty(t, data)
}

func TestRun_RecordsMetrics(t *testing.T) {
	h := newHarness(t, ptr(""))
	reg := prom.NewRegistry()
	h.p.WithRecorder(metrics.NewPrometheusRecorder(reg))

	_, err := h.p.Run(context.Background(), Request{})
	require.NoError(t, err)

	h.runner.ExitCode = 1
	_, err = h.p.Run(context.Background(), Request{})
	require.Error(t, err)

	expected := `
# HELP docmake_run_outcomes_total Pipeline runs by final status
# TYPE docmake_run_outcomes_total counter
docmake_run_outcomes_total{outcome="failed"} 1
docmake_run_outcomes_total{outcome="success"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, bytes.NewBufferString(expected), "docmake_run_outcomes_total"))
}

func stageNames(r Report) []StageName {
	out := make([]StageName, 0, len(r.Stages))
	for _, s := range r.Stages {
		out = append(out, s.Stage)
	}
	return out
}
