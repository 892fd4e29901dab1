package observability

import (
	"context"
	"log/slog"
	"time"
)

// StageSpan measures one stage of a build or install.
type StageSpan struct {
	ctx   context.Context
	name  string
	start time.Time
}

// StartStage tags ctx with the stage name and starts its clock.
func StartStage(ctx context.Context, stage string) (context.Context, *StageSpan) {
	ctx = WithStage(ctx, stage)
	DebugContext(ctx, "stage started")
	return ctx, &StageSpan{ctx: ctx, name: stage, start: time.Now()}
}

// Name returns the stage name.
func (s *StageSpan) Name() string { return s.name }

// End logs the outcome of the stage and returns its duration.
func (s *StageSpan) End(err error) time.Duration {
	d := time.Since(s.start)
	ms := slog.Float64("duration_ms", float64(d.Microseconds())/1000)
	if err != nil {
		DebugContext(s.ctx, "stage failed", ms, slog.String("error", err.Error()))
		return d
	}
	DebugContext(s.ctx, "stage finished", ms)
	return d
}
