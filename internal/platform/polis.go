package platform

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"healthfuzz/internal/config"
	"healthfuzz/internal/evo"
	"healthfuzz/internal/logbase"
	"healthfuzz/internal/metrics"
	"healthfuzz/internal/model"
	"healthfuzz/internal/scape"
	"healthfuzz/internal/storage"
)

const defaultTopCount = 5

type Config struct {
	Store   storage.Store
	Scapes  []scape.Scape
	Metrics *metrics.Collector
	Logger  *zap.Logger
}

type OptimizationConfig struct {
	// RunID defaults to a random UUID.
	RunID     string
	ScapeName string
	// Genes is the weight vector length, one per rule.
	Genes     int
	Optimizer config.OptimizerConfig
	Initial   []model.Individual
	TopCount  int
}

type OptimizationResult struct {
	Run                   model.RunRecord
	Best                  evo.ScoredIndividual
	BestByGeneration      []float64
	GenerationDiagnostics []model.GenerationDiagnostics
	TopFinal              []model.TopIndividualRecord
	Lineage               []model.LineageRecord
}

// Polis owns the store and the registered scapes and runs optimizations
// against them.
type Polis struct {
	store   storage.Store
	metrics *metrics.Collector
	logger  *zap.Logger

	mu      sync.RWMutex
	scapes  map[string]scape.Scape
	started bool

	config Config
}

func NewPolis(cfg Config) *Polis {
	logger := cfg.Logger
	if logger == nil {
		logger = logbase.L()
	}
	return &Polis{
		store:   cfg.Store,
		metrics: cfg.Metrics,
		logger:  logger,
		scapes:  make(map[string]scape.Scape),
		config:  cfg,
	}
}

func (p *Polis) Init(ctx context.Context) error {
	if p.store == nil {
		return fmt.Errorf("store is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	if err := p.store.Init(ctx); err != nil {
		return err
	}

	scapes := make(map[string]scape.Scape, len(p.config.Scapes))
	for i, s := range p.config.Scapes {
		if s == nil {
			return fmt.Errorf("scape is nil at index %d", i)
		}
		name := s.Name()
		if name == "" {
			return fmt.Errorf("scape name is required at index %d", i)
		}
		if _, exists := scapes[name]; exists {
			return fmt.Errorf("duplicate scape: %s", name)
		}
		scapes[name] = s
	}
	p.scapes = scapes
	p.started = true
	return nil
}

func (p *Polis) RegisterScape(s scape.Scape) error {
	if s == nil {
		return fmt.Errorf("scape is nil")
	}

	name := s.Name()
	if name == "" {
		return fmt.Errorf("scape name is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return fmt.Errorf("polis is not initialized")
	}
	p.scapes[name] = s
	return nil
}

func (p *Polis) GetScape(name string) (scape.Scape, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s, ok := p.scapes[name]
	return s, ok
}

func (p *Polis) RegisteredScapes() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.scapes))
	for name := range p.scapes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *Polis) Started() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.started
}

func (p *Polis) Store() storage.Store {
	return p.store
}

// Stop forgets registered scapes and closes the store when it supports it.
func (p *Polis) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return nil
	}
	p.started = false
	p.scapes = make(map[string]scape.Scape)
	return storage.CloseIfSupported(p.store)
}

func (p *Polis) RunOptimization(ctx context.Context, cfg OptimizationConfig) (OptimizationResult, error) {
	if cfg.ScapeName == "" {
		return OptimizationResult{}, fmt.Errorf("scape name is required")
	}

	p.mu.RLock()
	targetScape, ok := p.scapes[cfg.ScapeName]
	started := p.started
	p.mu.RUnlock()

	if !started {
		return OptimizationResult{}, fmt.Errorf("polis is not initialized")
	}
	if !ok {
		return OptimizationResult{}, fmt.Errorf("scape not registered: %s", cfg.ScapeName)
	}

	evoCfg, err := OptimizerConfigFrom(cfg.Optimizer, targetScape, cfg.Genes)
	if err != nil {
		return OptimizationResult{}, err
	}
	evoCfg.Metrics = p.metrics
	evoCfg.Logger = p.logger

	optimizer, err := evo.NewOptimizer(evoCfg)
	if err != nil {
		return OptimizationResult{}, err
	}

	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	p.logger.Info("optimization started",
		zap.String("run_id", runID),
		zap.String("scape", cfg.ScapeName),
		zap.Int("genes", cfg.Genes),
		zap.Int("population", evoCfg.PopulationSize),
		zap.Int("generations", evoCfg.Generations),
	)

	result, err := optimizer.Run(ctx, cfg.Initial)
	if err != nil {
		return OptimizationResult{}, err
	}
	effective := optimizer.Config()

	run := model.RunRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              runID,
		Scape:           cfg.ScapeName,
		Sense:           effective.Sense.String(),
		Seed:            cfg.Optimizer.Seed,
		Population:      effective.PopulationSize,
		Offspring:       effective.OffspringSize,
		Generations:     effective.Generations,
		RuleCount:       cfg.Genes,
		BestFitness:     result.Best.Fitness,
		BestOutput:      result.Best.Output,
		BestFallback:    result.Best.Fallback,
		Evaluations:     result.Evaluations,
		Fallbacks:       result.Fallbacks,
	}
	top := topIndividuals(result.FinalPopulation, effective.Sense, cfg.TopCount)
	lineage := stampLineage(result.Lineage)

	if err := p.store.SaveRun(ctx, run); err != nil {
		return OptimizationResult{}, err
	}
	if err := p.store.SaveFitnessHistory(ctx, runID, result.BestByGeneration); err != nil {
		return OptimizationResult{}, err
	}
	if err := p.store.SaveGenerationDiagnostics(ctx, runID, result.GenerationDiagnostics); err != nil {
		return OptimizationResult{}, err
	}
	if err := p.store.SaveTopIndividuals(ctx, runID, top); err != nil {
		return OptimizationResult{}, err
	}
	if err := p.store.SaveLineage(ctx, runID, lineage); err != nil {
		return OptimizationResult{}, err
	}
	if err := p.updateScapeSummary(ctx, targetScape, effective.Sense, result.Best.Fitness); err != nil {
		return OptimizationResult{}, err
	}

	p.logger.Info("optimization complete",
		zap.String("run_id", runID),
		zap.Float64("best_fitness", result.Best.Fitness),
		zap.Float64("best_output", result.Best.Output),
		zap.Bool("best_fallback", result.Best.Fallback),
		zap.Int("evaluations", result.Evaluations),
		zap.Int("fallbacks", result.Fallbacks),
	)

	return OptimizationResult{
		Run:                   run,
		Best:                  result.Best,
		BestByGeneration:      result.BestByGeneration,
		GenerationDiagnostics: result.GenerationDiagnostics,
		TopFinal:              top,
		Lineage:               lineage,
	}, nil
}

func topIndividuals(final []evo.ScoredIndividual, sense evo.Sense, count int) []model.TopIndividualRecord {
	if count <= 0 {
		count = defaultTopCount
	}
	ranked := append([]evo.ScoredIndividual(nil), final...)
	evo.Rank(ranked, sense)
	if len(ranked) < count {
		count = len(ranked)
	}
	out := make([]model.TopIndividualRecord, 0, count)
	for i := 0; i < count; i++ {
		individual := ranked[i].Individual.Clone()
		individual.VersionedRecord = storage.CurrentVersion()
		out = append(out, model.TopIndividualRecord{
			VersionedRecord: storage.CurrentVersion(),
			Rank:            i + 1,
			Fitness:         ranked[i].Fitness,
			Output:          ranked[i].Output,
			Fallback:        ranked[i].Fallback,
			Individual:      individual,
		})
	}
	return out
}

func stampLineage(lineage []model.LineageRecord) []model.LineageRecord {
	out := make([]model.LineageRecord, len(lineage))
	for i, record := range lineage {
		out[i] = record
		out[i].VersionedRecord = storage.CurrentVersion()
		out[i].ParentIDs = append([]string(nil), record.ParentIDs...)
	}
	return out
}

func (p *Polis) updateScapeSummary(ctx context.Context, s scape.Scape, sense evo.Sense, fitness float64) error {
	summary, ok, err := p.store.GetScapeSummary(ctx, s.Name())
	if err != nil {
		return err
	}
	if !ok {
		description := fmt.Sprintf("best observed fitness for scape %s", s.Name())
		if described, isDescribed := s.(scape.DescribedScape); isDescribed {
			description = described.Description()
		}
		summary = model.ScapeSummary{
			VersionedRecord: storage.CurrentVersion(),
			Name:            s.Name(),
			Description:     description,
			BestFitness:     fitness,
		}
		return p.store.SaveScapeSummary(ctx, summary)
	}
	if sense.Better(fitness, summary.BestFitness) {
		summary.BestFitness = fitness
	}
	return p.store.SaveScapeSummary(ctx, summary)
}
