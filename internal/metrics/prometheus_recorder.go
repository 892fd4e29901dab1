package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "wspkg"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once           sync.Once
	registry       *prom.Registry
	stageDuration  *prom.HistogramVec
	stageResults   *prom.CounterVec
	buildOutcome   *prom.CounterVec
	cacheLookups   *prom.CounterVec
	unitsCompiled  *prom.CounterVec
	fallbackClones *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{registry: reg}
	pr.once.Do(func() {
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual build and install stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		pr.stageResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"})
		pr.buildOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"})
		pr.cacheLookups = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Memoized preparation lookups by result",
		}, []string{"result"})
		pr.unitsCompiled = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "units_compiled_total",
			Help:      "Build units handed to the compiler, by role",
		}, []string{"role"})
		pr.fallbackClones = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_clones_total",
			Help:      "Source control fallback clones by result",
		}, []string{"result"})
		reg.MustRegister(pr.stageDuration, pr.stageResults, pr.buildOutcome, pr.cacheLookups, pr.unitsCompiled, pr.fallbackClones)
	})
	return pr
}

// Registry returns the registry the metrics are registered with.
func (p *PrometheusRecorder) Registry() *prom.Registry { return p.registry }

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil || p.stageResults == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome BuildOutcomeLabel) {
	if p == nil || p.buildOutcome == nil {
		return
	}
	p.buildOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncCacheLookup(hit bool) {
	if p == nil || p.cacheLookups == nil {
		return
	}
	res := "miss"
	if hit {
		res = "hit"
	}
	p.cacheLookups.WithLabelValues(res).Inc()
}

func (p *PrometheusRecorder) IncUnitsCompiled(role string) {
	if p == nil || p.unitsCompiled == nil {
		return
	}
	p.unitsCompiled.WithLabelValues(role).Inc()
}

func (p *PrometheusRecorder) IncFallbackClone(success bool) {
	if p == nil || p.fallbackClones == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.fallbackClones.WithLabelValues(res).Inc()
}
