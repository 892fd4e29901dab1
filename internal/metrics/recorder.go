package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultWarning  ResultLabel = "warning"
	ResultFatal    ResultLabel = "fatal"
	ResultCanceled ResultLabel = "canceled"
)

// BuildOutcomeLabel is the final status of one build or install.
type BuildOutcomeLabel string

const (
	BuildOutcomeSuccess BuildOutcomeLabel = "success"
	BuildOutcomeCustom  BuildOutcomeLabel = "custom"
	BuildOutcomeFailed  BuildOutcomeLabel = "failed"
)

// Recorder defines observability hooks for build, cache and fallback metrics.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncBuildOutcome(outcome BuildOutcomeLabel)
	IncCacheLookup(hit bool)
	IncUnitsCompiled(role string)
	IncFallbackClone(success bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) IncBuildOutcome(BuildOutcomeLabel)          {}
func (NoopRecorder) IncCacheLookup(bool)                        {}
func (NoopRecorder) IncUnitsCompiled(string)                    {}
func (NoopRecorder) IncFallbackClone(bool)                      {}

// OrNoop returns r, or a NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}

// ResultFor maps an error to the stage result label.
func ResultFor(err error) ResultLabel {
	if err == nil {
		return ResultSuccess
	}
	return ResultFatal
}
