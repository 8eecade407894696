// Package pipeline runs the docmake stages: stamp the version, build the
// docs, clean the artifacts. Stages run strictly in order and the first
// failure stops the run; nothing is retried or rolled back.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	derrors "git.home.luguber.info/inful/docmake/internal/foundation/errors"
	"git.home.luguber.info/inful/docmake/internal/logfields"
	"git.home.luguber.info/inful/docmake/internal/metrics"
)

// Stamper writes a version into the version file.
type Stamper interface {
	Stamp(version string) (bool, error)
}

// Builder runs the external docs build.
type Builder interface {
	Build(ctx context.Context) error
}

// Cleaner removes build artifacts.
type Cleaner interface {
	Clean() error
}

// Request carries the per-run input.
type Request struct {
	// Version is stamped when non-empty.
	Version string
}

// Pipeline wires the three stages together.
type Pipeline struct {
	stamper  Stamper
	builder  Builder
	cleaner  Cleaner
	recorder metrics.Recorder
	logger   *slog.Logger
	newID    func() string
}

// New creates a Pipeline with a no-op metrics recorder.
func New(stamper Stamper, builder Builder, cleaner Cleaner, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		stamper:  stamper,
		builder:  builder,
		cleaner:  cleaner,
		recorder: metrics.NoopRecorder{},
		logger:   logger,
		newID:    uuid.NewString,
	}
}

// WithRecorder sets the metrics recorder.
func (p *Pipeline) WithRecorder(r metrics.Recorder) *Pipeline {
	if r != nil {
		p.recorder = r
	}
	return p
}

func (p *Pipeline) stages() []StageDef {
	return []StageDef{
		{Name: StageStamp, Fn: func(_ context.Context, req Request) (bool, error) {
			stamped, err := p.stamper.Stamp(req.Version)
			return !stamped, err
		}},
		{Name: StageBuild, Fn: func(ctx context.Context, _ Request) (bool, error) {
			return false, p.builder.Build(ctx)
		}},
		{Name: StageClean, Fn: func(_ context.Context, _ Request) (bool, error) {
			return false, p.cleaner.Clean()
		}},
	}
}

// Run executes stamp, build and clean in order, stopping at the first error.
func (p *Pipeline) Run(ctx context.Context, req Request) (Report, error) {
	report := Report{RunID: p.newID()}
	logger := p.logger.With(logfields.RunID(report.RunID))
	start := time.Now()

	err := p.runStages(ctx, req, &report, logger)

	report.Duration = time.Since(start)
	switch {
	case err == nil:
		report.Outcome = metrics.OutcomeSuccess
	case ctx.Err() != nil:
		report.Outcome = metrics.OutcomeCanceled
	default:
		report.Outcome = metrics.OutcomeFailed
	}
	p.recorder.ObserveRunDuration(report.Duration)
	p.recorder.IncRunOutcome(report.Outcome)

	if err != nil {
		return report, err
	}
	logger.Info("Docs build complete", logfields.DurationMS(float64(report.Duration.Milliseconds())))
	return report, nil
}

func (p *Pipeline) runStages(ctx context.Context, req Request, report *Report, logger *slog.Logger) error {
	for _, st := range p.stages() {
		if err := ctx.Err(); err != nil {
			p.recorder.IncStageResult(string(st.Name), metrics.ResultCanceled)
			return derrors.WrapError(err, derrors.CategoryBuild, "run canceled before "+string(st.Name)).Build()
		}

		logger.Debug("Stage starting", logfields.Stage(string(st.Name)))
		t0 := time.Now()
		skipped, err := st.Fn(ctx, req)
		dur := time.Since(t0)

		result := metrics.ResultSuccess
		switch {
		case err != nil && ctx.Err() != nil:
			result = metrics.ResultCanceled
		case err != nil:
			result = metrics.ResultFailed
		case skipped:
			result = metrics.ResultSkipped
		}
		p.record(report, st.Name, result, dur)

		if st.Name == StageStamp && err == nil && !skipped {
			report.Stamped = true
		}
		if err != nil {
			logger.Debug("Stage failed", logfields.Stage(string(st.Name)), logfields.Error(err))
			return err
		}
	}
	return nil
}

func (p *Pipeline) record(report *Report, stage StageName, result metrics.ResultLabel, d time.Duration) {
	report.Stages = append(report.Stages, StageReport{Stage: stage, Result: result, Duration: d})
	p.recorder.ObserveStageDuration(string(stage), d)
	p.recorder.IncStageResult(string(stage), result)
}
