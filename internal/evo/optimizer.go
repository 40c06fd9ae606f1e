package evo

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"healthfuzz/internal/fuzzy"
	"healthfuzz/internal/metrics"
	"healthfuzz/internal/model"
	"healthfuzz/internal/scape"
	"healthfuzz/internal/tuning"
)

type RunResult struct {
	Best                  ScoredIndividual
	BestByGeneration      []float64
	GenerationDiagnostics []model.GenerationDiagnostics
	FinalPopulation       []ScoredIndividual
	Lineage               []model.LineageRecord
	Evaluations           int
	CacheHits             int
	Fallbacks             int
}

type OptimizerConfig struct {
	Scape scape.Scape
	// Genes is the individual length, one weight per rule.
	Genes                int
	PopulationSize       int
	OffspringSize        int
	Generations          int
	CrossoverProbability float64
	MutationProbability  float64
	InitMin              float64
	InitMax              float64
	Sense                Sense
	Selector             Selector
	Crossover            Crossover
	Mutator              Mutator
	Fallback             FallbackPolicy
	Seed                 int64
	Workers              int
	Cache                *FitnessCache
	Tuner                tuning.Tuner
	TuneAttempts         int
	TuneAttemptPolicy    tuning.AttemptPolicy
	Metrics              *metrics.Collector
	Logger               *zap.Logger
}

// Optimizer runs a (mu + lambda) evolutionary search over rule weights. The
// random source is only touched from the goroutine calling Run, so a seed
// reproduces a run regardless of Workers.
type Optimizer struct {
	cfg    OptimizerConfig
	rng    *rand.Rand
	nextID int

	evaluations atomic.Int64
	cacheHits   atomic.Int64
	fallbacks   atomic.Int64
}

func NewOptimizer(cfg OptimizerConfig) (*Optimizer, error) {
	if cfg.Scape == nil {
		return nil, fmt.Errorf("scape is required")
	}
	if cfg.Genes <= 0 {
		return nil, fmt.Errorf("genes must be > 0")
	}
	if cfg.PopulationSize <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	if cfg.OffspringSize < 0 {
		return nil, fmt.Errorf("offspring size must be >= 0")
	}
	if cfg.OffspringSize == 0 {
		cfg.OffspringSize = cfg.PopulationSize
	}
	if cfg.Generations <= 0 {
		return nil, fmt.Errorf("generations must be > 0")
	}
	if cfg.CrossoverProbability < 0 || cfg.CrossoverProbability > 1 {
		return nil, fmt.Errorf("crossover probability must be in [0, 1]")
	}
	if cfg.MutationProbability < 0 || cfg.MutationProbability > 1 {
		return nil, fmt.Errorf("mutation probability must be in [0, 1]")
	}
	if cfg.InitMax < cfg.InitMin {
		return nil, fmt.Errorf("initial gene range is empty: [%g, %g]", cfg.InitMin, cfg.InitMax)
	}
	if cfg.Sense != Minimize && cfg.Sense != Maximize {
		return nil, fmt.Errorf("unsupported optimization sense: %d", cfg.Sense)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Workers > cfg.PopulationSize {
		cfg.Workers = cfg.PopulationSize
	}
	if cfg.Tuner != nil && cfg.TuneAttempts < 0 {
		return nil, fmt.Errorf("tune attempts must be >= 0")
	}
	if cfg.Tuner != nil && cfg.TuneAttemptPolicy == nil {
		cfg.TuneAttemptPolicy = tuning.FixedAttemptPolicy{}
	}
	if cfg.Selector == nil {
		cfg.Selector = TournamentSelector{TournamentSize: 3}
	}
	if cfg.Crossover == nil {
		cfg.Crossover = TwoPointCrossover{}
	}
	if cfg.Mutator == nil {
		cfg.Mutator = GaussianMutation{Mean: 0, Sigma: 1, GeneProbability: 0.2}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Optimizer{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

func (o *Optimizer) Config() OptimizerConfig {
	return o.cfg
}

// InitialPopulation draws PopulationSize individuals with genes uniform in
// [InitMin, InitMax).
func (o *Optimizer) InitialPopulation() []model.Individual {
	population := make([]model.Individual, 0, o.cfg.PopulationSize)
	span := o.cfg.InitMax - o.cfg.InitMin
	for i := 0; i < o.cfg.PopulationSize; i++ {
		weights := make([]float64, o.cfg.Genes)
		for g := range weights {
			weights[g] = o.cfg.InitMin + o.rng.Float64()*span
		}
		population = append(population, o.newIndividual(0, weights))
	}
	return population
}

// Run evolves initial for exactly Generations iterations. A nil initial
// population is drawn with InitialPopulation.
func (o *Optimizer) Run(ctx context.Context, initial []model.Individual) (RunResult, error) {
	if initial == nil {
		initial = o.InitialPopulation()
	}
	if len(initial) != o.cfg.PopulationSize {
		return RunResult{}, fmt.Errorf("initial population mismatch: got=%d want=%d", len(initial), o.cfg.PopulationSize)
	}

	population := make([]ScoredIndividual, 0, len(initial))
	lineage := make([]model.LineageRecord, 0, len(initial)+o.cfg.OffspringSize*o.cfg.Generations)
	for _, individual := range initial {
		if len(individual.Weights) != o.cfg.Genes {
			return RunResult{}, fmt.Errorf("individual %s: %w: got %d want %d", individual.ID, fuzzy.ErrInvalidIndividualLength, len(individual.Weights), o.cfg.Genes)
		}
		population = append(population, ScoredIndividual{Individual: individual.Clone()})
		lineage = append(lineage, model.LineageRecord{
			IndividualID: individual.ID,
			Generation:   0,
			Operation:    "seed",
		})
	}

	bestHistory := make([]float64, 0, o.cfg.Generations)
	diagnostics := make([]model.GenerationDiagnostics, 0, o.cfg.Generations)
	log := o.cfg.Logger

	for gen := 1; gen <= o.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return RunResult{}, err
		}
		evalBefore, hitsBefore, fallbacksBefore := o.counters()

		if err := o.evaluate(ctx, population); err != nil {
			return RunResult{}, err
		}
		offspring, records, err := o.breed(population, gen)
		if err != nil {
			return RunResult{}, err
		}
		lineage = append(lineage, records...)
		tuneReport, err := o.tune(ctx, offspring, gen)
		if err != nil {
			return RunResult{}, err
		}
		if err := o.evaluate(ctx, offspring); err != nil {
			return RunResult{}, err
		}

		combined := make([]ScoredIndividual, 0, len(population)+len(offspring))
		combined = append(combined, population...)
		combined = append(combined, offspring...)
		Rank(combined, o.cfg.Sense)
		population = combined[:o.cfg.PopulationSize:o.cfg.PopulationSize]

		evalAfter, hitsAfter, fallbacksAfter := o.counters()
		diag := summarizeGeneration(population, gen)
		diag.Evaluations = evalAfter - evalBefore
		diag.CacheHits = hitsAfter - hitsBefore
		diag.Fallbacks = fallbacksAfter - fallbacksBefore
		diag.TuneAttempts = tuneReport.AttemptsExecuted
		diag.TuneAccepted = tuneReport.AcceptedCandidates
		diag.TuneRejected = tuneReport.RejectedCandidates
		diagnostics = append(diagnostics, diag)
		bestHistory = append(bestHistory, population[0].Fitness)

		if o.cfg.Metrics != nil {
			o.cfg.Metrics.Generations.Inc()
			o.cfg.Metrics.BestFitness.Set(population[0].Fitness)
		}
		log.Debug("generation complete",
			zap.Int("generation", gen),
			zap.Float64("best", diag.BestFitness),
			zap.Float64("mean", diag.MeanFitness),
			zap.Float64("worst", diag.WorstFitness),
			zap.Int("evaluations", diag.Evaluations),
			zap.Int("cache_hits", diag.CacheHits),
			zap.Int("fallbacks", diag.Fallbacks))
	}

	evaluations, hits, fallbacks := o.counters()
	return RunResult{
		Best:                  population[0],
		BestByGeneration:      bestHistory,
		GenerationDiagnostics: diagnostics,
		FinalPopulation:       cloneScored(population),
		Lineage:               lineage,
		Evaluations:           evaluations,
		CacheHits:             hits,
		Fallbacks:             fallbacks,
	}, nil
}

func (o *Optimizer) counters() (int, int, int) {
	return int(o.evaluations.Load()), int(o.cacheHits.Load()), int(o.fallbacks.Load())
}

func (o *Optimizer) newIndividual(generation int, weights []float64) model.Individual {
	id := fmt.Sprintf("g%d-%d", generation, o.nextID)
	o.nextID++
	return model.Individual{ID: id, Weights: weights}
}

// breed draws OffspringSize children: two selected parents, crossover with
// CrossoverProbability, then the mutator with MutationProbability per child.
func (o *Optimizer) breed(population []ScoredIndividual, generation int) ([]ScoredIndividual, []model.LineageRecord, error) {
	offspring := make([]ScoredIndividual, 0, o.cfg.OffspringSize)
	records := make([]model.LineageRecord, 0, o.cfg.OffspringSize)
	for len(offspring) < o.cfg.OffspringSize {
		p1, err := o.cfg.Selector.Select(o.rng, population, o.cfg.Sense)
		if err != nil {
			return nil, nil, fmt.Errorf("select: %w", err)
		}
		p2, err := o.cfg.Selector.Select(o.rng, population, o.cfg.Sense)
		if err != nil {
			return nil, nil, fmt.Errorf("select: %w", err)
		}

		c1, c2 := p1.Weights, p2.Weights
		parents := [][]string{{p1.ID}, {p2.ID}}
		op := "clone"
		if o.rng.Float64() < o.cfg.CrossoverProbability {
			c1, c2, err = o.cfg.Crossover.Cross(o.rng, p1.Weights, p2.Weights)
			if err != nil {
				return nil, nil, fmt.Errorf("%s crossover: %w", o.cfg.Crossover.Name(), err)
			}
			parents = [][]string{{p1.ID, p2.ID}, {p1.ID, p2.ID}}
			op = o.cfg.Crossover.Name()
		}

		for i, child := range [][]float64{c1, c2} {
			if len(offspring) == o.cfg.OffspringSize {
				break
			}
			childOp := op
			if o.rng.Float64() < o.cfg.MutationProbability {
				child, err = o.cfg.Mutator.Mutate(o.rng, child)
				if err != nil {
					return nil, nil, fmt.Errorf("%s mutation: %w", o.cfg.Mutator.Name(), err)
				}
				childOp += "+" + o.cfg.Mutator.Name()
			}
			individual := o.newIndividual(generation, append([]float64(nil), child...))
			offspring = append(offspring, ScoredIndividual{Individual: individual})
			records = append(records, model.LineageRecord{
				IndividualID: individual.ID,
				ParentIDs:    parents[i],
				Generation:   generation,
				Operation:    childOp,
			})
		}
	}
	return offspring, records, nil
}

// tune runs the optional local search on each child before evaluation. It
// stays on the calling goroutine. Reports of a ReportingTuner are summed;
// plain tuners only contribute the attempts they were granted.
func (o *Optimizer) tune(ctx context.Context, offspring []ScoredIndividual, generation int) (tuning.TuneReport, error) {
	var total tuning.TuneReport
	if o.cfg.Tuner == nil {
		return total, nil
	}
	fitness := func(ctx context.Context, weights []float64) (float64, error) {
		scored, err := o.evaluateOne(ctx, model.Individual{Weights: weights})
		if err != nil {
			return 0, err
		}
		if o.cfg.Sense == Minimize {
			return -scored.Fitness, nil
		}
		return scored.Fitness, nil
	}
	reporting, _ := o.cfg.Tuner.(tuning.ReportingTuner)
	for i := range offspring {
		attempts := o.cfg.TuneAttemptPolicy.Attempts(o.cfg.TuneAttempts, generation, o.cfg.Generations, o.cfg.Genes)
		if attempts <= 0 {
			continue
		}
		var (
			tuned  []float64
			report tuning.TuneReport
			err    error
		)
		if reporting != nil {
			tuned, report, err = reporting.TuneWithReport(ctx, offspring[i].Individual.Weights, attempts, fitness)
		} else {
			tuned, err = o.cfg.Tuner.Tune(ctx, offspring[i].Individual.Weights, attempts, fitness)
			report = tuning.TuneReport{AttemptsPlanned: attempts, AttemptsExecuted: attempts}
		}
		if err != nil {
			return total, fmt.Errorf("%s tune %s: %w", o.cfg.Tuner.Name(), offspring[i].Individual.ID, err)
		}
		offspring[i].Individual.Weights = tuned
		total.AttemptsPlanned += report.AttemptsPlanned
		total.AttemptsExecuted += report.AttemptsExecuted
		total.CandidateEvaluations += report.CandidateEvaluations
		total.AcceptedCandidates += report.AcceptedCandidates
		total.RejectedCandidates += report.RejectedCandidates
	}
	return total, nil
}

// evaluate scores every member not yet evaluated on a bounded worker pool.
func (o *Optimizer) evaluate(ctx context.Context, members []ScoredIndividual) error {
	pending := 0
	for _, member := range members {
		if !member.evaluated {
			pending++
		}
	}
	if pending == 0 {
		return nil
	}
	workers := o.cfg.Workers
	if workers > pending {
		workers = pending
	}

	p := pool.New().WithMaxGoroutines(workers).WithErrors().WithFirstError()
	for i := range members {
		if members[i].evaluated {
			continue
		}
		i := i
		p.Go(func() error {
			scored, err := o.evaluateOne(ctx, members[i].Individual)
			if err != nil {
				return fmt.Errorf("evaluate %s: %w", members[i].Individual.ID, err)
			}
			members[i] = scored
			return nil
		})
	}
	return p.Wait()
}

func (o *Optimizer) evaluateOne(ctx context.Context, individual model.Individual) (ScoredIndividual, error) {
	if cached, ok := o.cfg.Cache.get(individual.Weights); ok {
		o.cacheHits.Add(1)
		if o.cfg.Metrics != nil {
			o.cfg.Metrics.CacheHits.Inc()
		}
		if cached.fallback {
			o.countFallback()
		}
		return ScoredIndividual{
			Individual: individual,
			Fitness:    cached.fitness,
			Output:     cached.output,
			Trace:      cached.trace,
			Fallback:   cached.fallback,
			evaluated:  true,
		}, nil
	}

	fitness, trace, err := o.cfg.Scape.Evaluate(ctx, individual.Weights)
	o.evaluations.Add(1)
	if o.cfg.Metrics != nil {
		o.cfg.Metrics.Evaluations.Inc()
	}
	scored := ScoredIndividual{
		Individual: individual,
		Fitness:    float64(fitness),
		Trace:      trace,
		evaluated:  true,
	}
	if err != nil {
		penalty, recovered, err := o.cfg.Fallback.Recover(o.cfg.Sense, err)
		if !recovered {
			return ScoredIndividual{}, err
		}
		o.countFallback()
		scored.Fitness = penalty
		scored.Fallback = true
		scored.Trace = scape.Trace{"fallback": true}
	} else if output, ok := trace["output"].(float64); ok {
		scored.Output = output
	}

	o.cfg.Cache.add(individual.Weights, cachedEvaluation{
		fitness:  scored.Fitness,
		output:   scored.Output,
		trace:    scored.Trace,
		fallback: scored.Fallback,
	})
	return scored, nil
}

func (o *Optimizer) countFallback() {
	o.fallbacks.Add(1)
	if o.cfg.Metrics != nil {
		o.cfg.Metrics.Fallbacks.Inc()
	}
}

// summarizeGeneration expects scored to be ranked best first.
func summarizeGeneration(scored []ScoredIndividual, generation int) model.GenerationDiagnostics {
	if len(scored) == 0 {
		return model.GenerationDiagnostics{Generation: generation}
	}
	total := 0.0
	distinct := make(map[string]struct{}, len(scored))
	for _, item := range scored {
		total += item.Fitness
		distinct[cacheKey(item.Individual.Weights)] = struct{}{}
	}
	return model.GenerationDiagnostics{
		Generation:   generation,
		BestFitness:  scored[0].Fitness,
		MeanFitness:  total / float64(len(scored)),
		WorstFitness: scored[len(scored)-1].Fitness,
		BestOutput:   scored[0].Output,
		BestFallback: scored[0].Fallback,
		Diversity:    len(distinct),
	}
}
