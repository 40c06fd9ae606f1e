package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

const (
	OptimizerEvaluationsH = "The total number of fitness evaluations run against the scape"
	OptimizerEvaluationsN = "healthfuzz_optimizer_evaluations"
	OptimizerCacheHitsH   = "The total number of fitness evaluations served from the cache"
	OptimizerCacheHitsN   = "healthfuzz_optimizer_cache_hits"
	OptimizerFallbacksH   = "The total number of evaluations where no rule fired and the penalty was applied"
	OptimizerFallbacksN   = "healthfuzz_optimizer_fallbacks"
	OptimizerGenerationsH = "The total number of completed generations"
	OptimizerGenerationsN = "healthfuzz_optimizer_generations"
	OptimizerBestFitnessH = "The best fitness in the current population"
	OptimizerBestFitnessN = "healthfuzz_optimizer_best_fitness"

	EngineInferencesH = "The total number of crisp outputs computed outside optimization"
	EngineInferencesN = "healthfuzz_engine_inferences"
)

// Collector owns a private registry so that several runs in one process do
// not collide on the default registerer.
type Collector struct {
	reg *prometheus.Registry

	Evaluations prometheus.Counter
	CacheHits   prometheus.Counter
	Fallbacks   prometheus.Counter
	Generations prometheus.Counter
	BestFitness prometheus.Gauge
	Inferences  prometheus.Counter
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Collector{
		reg: reg,
		Evaluations: f.NewCounter(prometheus.CounterOpts{
			Name: OptimizerEvaluationsN,
			Help: OptimizerEvaluationsH,
		}),
		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: OptimizerCacheHitsN,
			Help: OptimizerCacheHitsH,
		}),
		Fallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: OptimizerFallbacksN,
			Help: OptimizerFallbacksH,
		}),
		Generations: f.NewCounter(prometheus.CounterOpts{
			Name: OptimizerGenerationsN,
			Help: OptimizerGenerationsH,
		}),
		BestFitness: f.NewGauge(prometheus.GaugeOpts{
			Name: OptimizerBestFitnessN,
			Help: OptimizerBestFitnessH,
		}),
		Inferences: f.NewCounter(prometheus.CounterOpts{
			Name: EngineInferencesN,
			Help: EngineInferencesH,
		}),
	}
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.reg
}

// WriteText dumps every collected family in the Prometheus text format.
func (c *Collector) WriteText(w io.Writer) error {
	families, err := c.reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
