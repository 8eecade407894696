package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.ObserveStageDuration("build", 150*time.Millisecond)
	pr.IncStageResult("build", ResultSuccess)
	pr.IncStageResult("stamp", ResultSkipped)
	pr.ObserveRunDuration(500 * time.Millisecond)
	pr.IncRunOutcome(OutcomeSuccess)

	require.InDelta(t, 1, testutil.ToFloat64(pr.stageResults.WithLabelValues("build", "success")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(pr.stageResults.WithLabelValues("stamp", "skipped")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(pr.runOutcome.WithLabelValues("success")), 0)
	require.Positive(t, testutil.ToFloat64(pr.lastSuccess))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, mfs, 5)
}

func TestPrometheusRecorder_FailureLeavesLastSuccess(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	pr.IncRunOutcome(OutcomeFailed)

	require.Zero(t, testutil.ToFloat64(pr.lastSuccess))
	require.InDelta(t, 1, testutil.ToFloat64(pr.runOutcome.WithLabelValues("failed")), 0)
}

func TestWriteTextfile(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	pr.IncStageResult("clean", ResultSuccess)

	path := filepath.Join(t.TempDir(), "textfile", "docmake.prom")
	require.NoError(t, pr.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), `docmake_stage_results_total{result="success",stage="clean"} 1`))
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveStageDuration("build", time.Second)
	r.IncStageResult("build", ResultFailed)
	r.ObserveRunDuration(time.Second)
	r.IncRunOutcome(OutcomeCanceled)
}
