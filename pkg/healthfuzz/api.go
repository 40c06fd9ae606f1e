// Package healthfuzz is the embedding API for the fuzzy health-risk engine
// and its rule-weight optimizer.
package healthfuzz

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"healthfuzz/internal/config"
	"healthfuzz/internal/fuzzy"
	"healthfuzz/internal/logbase"
	"healthfuzz/internal/metrics"
	"healthfuzz/internal/model"
	"healthfuzz/internal/platform"
	"healthfuzz/internal/scape"
	"healthfuzz/internal/storage"
)

const (
	defaultStoreKind = "memory"
	defaultDBPath    = storage.DefaultSQLiteDSN
)

type Options struct {
	StoreKind string
	DBPath    string
	// Config replaces the embedded default system when set.
	Config  *config.Config
	Metrics *metrics.Collector
	Logger  *zap.Logger
}

type Client struct {
	cfg     config.Config
	engine  *fuzzy.Engine
	ref     *scape.ReferenceScape
	store   storage.Store
	polis   *platform.Polis
	metrics *metrics.Collector
	logger  *zap.Logger

	mu        sync.Mutex
	started   bool
	latestRun string
}

type OptimizeRequest struct {
	RunID string
	// Optimizer replaces the configured optimizer section when set.
	Optimizer *config.OptimizerConfig
	Initial   []model.Individual
	TopCount  int
}

type OptimizeSummary struct {
	RunID            string
	BestID           string
	BestWeights      []float64
	BestFitness      float64
	BestOutput       float64
	// BestFallback is set when no rule fired for the best individual and
	// BestOutput is meaningless.
	BestFallback     bool
	BestByGeneration []float64
	Diagnostics      []model.GenerationDiagnostics
	Evaluations      int
	Fallbacks        int
}

// RunQuery addresses a stored run either by id or as the latest run of this
// client.
type RunQuery struct {
	RunID  string
	Latest bool
	Limit  int
}

func New(opts Options) (*Client, error) {
	var cfg config.Config
	if opts.Config != nil {
		cfg = *opts.Config
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	} else {
		var err error
		cfg, err = config.Default()
		if err != nil {
			return nil, err
		}
	}

	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = defaultStoreKind
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	ref, engine, err := platform.ReferenceScapeFrom(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}
	collector := opts.Metrics
	if collector == nil {
		collector = metrics.NewCollector()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logbase.L()
	}

	return &Client{
		cfg:     cfg,
		engine:  engine,
		ref:     ref,
		store:   store,
		metrics: collector,
		logger:  logger,
		polis: platform.NewPolis(platform.Config{
			Store:   store,
			Scapes:  []scape.Scape{ref},
			Metrics: collector,
			Logger:  logger,
		}),
	}, nil
}

func (c *Client) Close() error {
	return c.polis.Stop()
}

func (c *Client) Config() config.Config {
	return c.cfg
}

func (c *Client) Metrics() *metrics.Collector {
	return c.metrics
}

// Rules lists the rule table in weight-vector order.
func (c *Client) Rules() []string {
	rules := c.engine.RuleBase().Rules()
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.String()
	}
	return out
}

// Compute returns the crisp reference output for inputs with every rule at
// full weight.
func (c *Client) Compute(inputs map[string]float64) (float64, error) {
	weights := c.engine.RuleBase().UniformWeights(1)
	outputs, err := c.engine.Compute(weights, inputs)
	if err != nil {
		return 0, err
	}
	c.metrics.Inferences.Inc()
	value, ok := outputs[c.ref.Output()]
	if !ok {
		return 0, fmt.Errorf("%w: output %s", fuzzy.ErrUnknownVariable, c.ref.Output())
	}
	return value, nil
}

// Infer exposes the full inference trace. Nil weights mean all ones.
func (c *Client) Infer(weights []float64, inputs map[string]float64) (fuzzy.Inference, error) {
	if weights == nil {
		weights = c.engine.RuleBase().UniformWeights(1)
	}
	inference, err := c.engine.Infer(weights, inputs)
	if err != nil {
		return inference, err
	}
	c.metrics.Inferences.Inc()
	return inference, nil
}

// Optimize tunes the rule weights against the configured reference scenario
// and stores the run.
func (c *Client) Optimize(ctx context.Context, req OptimizeRequest) (OptimizeSummary, error) {
	p, err := c.ensurePolis(ctx)
	if err != nil {
		return OptimizeSummary{}, err
	}
	oc := c.cfg.Optimizer
	if req.Optimizer != nil {
		oc = *req.Optimizer
	}

	result, err := p.RunOptimization(ctx, platform.OptimizationConfig{
		RunID:     req.RunID,
		ScapeName: c.ref.Name(),
		Genes:     c.engine.RuleBase().Len(),
		Optimizer: oc,
		Initial:   req.Initial,
		TopCount:  req.TopCount,
	})
	if err != nil {
		return OptimizeSummary{}, err
	}

	c.mu.Lock()
	c.latestRun = result.Run.ID
	c.mu.Unlock()

	return OptimizeSummary{
		RunID:            result.Run.ID,
		BestID:           result.Best.Individual.ID,
		BestWeights:      append([]float64(nil), result.Best.Individual.Weights...),
		BestFitness:      result.Best.Fitness,
		BestOutput:       result.Best.Output,
		BestFallback:     result.Best.Fallback,
		BestByGeneration: append([]float64(nil), result.BestByGeneration...),
		Diagnostics:      append([]model.GenerationDiagnostics(nil), result.GenerationDiagnostics...),
		Evaluations:      result.Run.Evaluations,
		Fallbacks:        result.Run.Fallbacks,
	}, nil
}

func (c *Client) Run(ctx context.Context, query RunQuery) (model.RunRecord, error) {
	runID, err := c.resolveRunID(ctx, query)
	if err != nil {
		return model.RunRecord{}, err
	}
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return model.RunRecord{}, err
	}
	if !ok {
		return model.RunRecord{}, fmt.Errorf("run not found: %s", runID)
	}
	return run, nil
}

func (c *Client) FitnessHistory(ctx context.Context, query RunQuery) ([]float64, error) {
	runID, err := c.resolveRunID(ctx, query)
	if err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetFitnessHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("fitness history not found for run id: %s", runID)
	}
	if query.Limit > 0 && len(history) > query.Limit {
		history = history[:query.Limit]
	}
	return append([]float64(nil), history...), nil
}

func (c *Client) Diagnostics(ctx context.Context, query RunQuery) ([]model.GenerationDiagnostics, error) {
	runID, err := c.resolveRunID(ctx, query)
	if err != nil {
		return nil, err
	}
	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("generation diagnostics not found for run id: %s", runID)
	}
	if query.Limit > 0 && len(diagnostics) > query.Limit {
		diagnostics = diagnostics[:query.Limit]
	}
	return diagnostics, nil
}

func (c *Client) TopIndividuals(ctx context.Context, query RunQuery) ([]model.TopIndividualRecord, error) {
	runID, err := c.resolveRunID(ctx, query)
	if err != nil {
		return nil, err
	}
	top, ok, err := c.store.GetTopIndividuals(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("top individuals not found for run id: %s", runID)
	}
	if query.Limit > 0 && len(top) > query.Limit {
		top = top[:query.Limit]
	}
	return top, nil
}

func (c *Client) Lineage(ctx context.Context, query RunQuery) ([]model.LineageRecord, error) {
	runID, err := c.resolveRunID(ctx, query)
	if err != nil {
		return nil, err
	}
	lineage, ok, err := c.store.GetLineage(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("lineage not found for run id: %s", runID)
	}
	if query.Limit > 0 && len(lineage) > query.Limit {
		lineage = lineage[:query.Limit]
	}
	return lineage, nil
}

func (c *Client) resolveRunID(ctx context.Context, query RunQuery) (string, error) {
	if query.RunID != "" && query.Latest {
		return "", errors.New("use either run id or latest")
	}
	if query.Limit < 0 {
		return "", errors.New("limit must be >= 0")
	}
	if _, err := c.ensurePolis(ctx); err != nil {
		return "", err
	}
	if !query.Latest {
		if query.RunID == "" {
			return "", errors.New("run id or latest is required")
		}
		return query.RunID, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.latestRun == "" {
		return "", errors.New("no runs available")
	}
	return c.latestRun, nil
}

func (c *Client) ensurePolis(ctx context.Context) (*platform.Polis, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return c.polis, nil
	}
	if err := c.polis.Init(ctx); err != nil {
		return nil, err
	}
	c.started = true
	return c.polis, nil
}
