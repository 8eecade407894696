package pipeline

import (
	"context"
	"time"

	"git.home.luguber.info/inful/docmake/internal/metrics"
)

// StageName is a strongly-typed identifier for a pipeline stage.
type StageName string

// Canonical stage names, in execution order.
const (
	StageStamp StageName = "stamp"
	StageBuild StageName = "build"
	StageClean StageName = "clean"
)

// Stage runs one step. skipped reports that the stage had nothing to do.
type Stage func(ctx context.Context, req Request) (skipped bool, err error)

// StageDef pairs a stage name with its executing function.
type StageDef struct {
	Name StageName
	Fn   Stage
}

// StageReport is the outcome of one executed stage.
type StageReport struct {
	Stage    StageName
	Result   metrics.ResultLabel
	Duration time.Duration
}

// Report summarizes one run.
type Report struct {
	RunID    string
	Stamped  bool
	Stages   []StageReport
	Outcome  metrics.RunOutcome
	Duration time.Duration
}

// Ran reports whether the named stage was reached.
func (r Report) Ran(name StageName) bool {
	for _, s := range r.Stages {
		if s.Stage == name {
			return true
		}
	}
	return false
}
