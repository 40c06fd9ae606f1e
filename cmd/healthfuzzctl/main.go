package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"healthfuzz/internal/logbase"
	"healthfuzz/internal/metrics"
	"healthfuzz/internal/stats"
	healthapi "healthfuzz/pkg/healthfuzz"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return runOptimize(ctx, args)
	}

	switch args[0] {
	case "optimize":
		return runOptimize(ctx, args[1:])
	case "compute":
		return runCompute(args[1:])
	case "rules":
		return runRules(args[1:])
	case "runs":
		return runRuns(args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runOptimize(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("optimize", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional TOML system description (default: embedded)")
	verbose := fs.Bool("verbose", false, "log per-generation progress")
	showMetrics := fs.Bool("metrics", false, "dump collected metrics in Prometheus text format")
	jsonOut := fs.Bool("json", false, "emit the run summary as JSON")
	runID := fs.String("run-id", "", "run id (default: random uuid)")
	storeKind := fs.String("store", "memory", "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "", "sqlite DSN")
	artifactsDir := fs.String("artifacts-dir", "", "write run artifacts and the run index under this directory")
	opt := registerOptimizerFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadOrDefaultConfig(*configPath)
	if err != nil {
		return err
	}
	if err := overrideFromFlags(&cfg.Optimizer, visitedFlags(fs), opt.values()); err != nil {
		return err
	}

	log, err := logbase.Init(*verbose)
	if err != nil {
		return err
	}
	defer func() {
		_ = log.Sync()
	}()

	collector := metrics.NewCollector()
	client, err := healthapi.New(healthapi.Options{
		StoreKind: *storeKind,
		DBPath:    *dbPath,
		Config:    &cfg,
		Metrics:   collector,
		Logger:    log,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	log.Info("optimizing rule weights",
		zap.Int("rules", len(client.Rules())),
		zap.Float64("target", cfg.Reference.Target),
		zap.String("sense", cfg.Optimizer.Sense),
	)
	summary, err := client.Optimize(ctx, healthapi.OptimizeRequest{RunID: *runID})
	if err != nil {
		return err
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return err
		}
	} else {
		for _, diag := range summary.Diagnostics {
			fmt.Printf("generation=%d best_fitness=%.6f mean_fitness=%.6f worst_fitness=%.6f best_output=%s evaluations=%d cache_hits=%d fallbacks=%d diversity=%d tune_accepted=%d\n",
				diag.Generation,
				diag.BestFitness,
				diag.MeanFitness,
				diag.WorstFitness,
				formatOutput(diag.BestOutput, diag.BestFallback),
				diag.Evaluations,
				diag.CacheHits,
				diag.Fallbacks,
				diag.Diversity,
				diag.TuneAccepted,
			)
		}
		fmt.Printf("run_id=%s best_id=%s best_fitness=%.6f best_output=%s evaluations=%s fallbacks=%d\n",
			summary.RunID,
			summary.BestID,
			summary.BestFitness,
			formatOutput(summary.BestOutput, summary.BestFallback),
			humanize.Comma(int64(summary.Evaluations)),
			summary.Fallbacks,
		)
		fmt.Printf("best_weights=%s\n", formatWeights(summary.BestWeights))
	}

	if *artifactsDir != "" {
		runDir, err := writeArtifacts(ctx, *artifactsDir, client, summary)
		if err != nil {
			return err
		}
		log.Info("wrote run artifacts", zap.String("dir", runDir))
	}

	if *showMetrics {
		return collector.WriteText(os.Stdout)
	}
	return nil
}

func writeArtifacts(ctx context.Context, baseDir string, client *healthapi.Client, summary healthapi.OptimizeSummary) (string, error) {
	query := healthapi.RunQuery{RunID: summary.RunID}
	run, err := client.Run(ctx, query)
	if err != nil {
		return "", err
	}
	top, err := client.TopIndividuals(ctx, query)
	if err != nil {
		return "", err
	}
	lineage, err := client.Lineage(ctx, query)
	if err != nil {
		return "", err
	}

	cfg := client.Config()
	oc := cfg.Optimizer
	runDir, err := stats.WriteRunArtifacts(baseDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:                   run.ID,
			Scape:                   run.Scape,
			Sense:                   run.Sense,
			RuleCount:               run.RuleCount,
			Target:                  cfg.Reference.Target,
			Population:              run.Population,
			Offspring:               run.Offspring,
			Generations:             run.Generations,
			Seed:                    run.Seed,
			Workers:                 oc.Workers,
			Selection:               oc.Selection,
			Crossover:               oc.Crossover,
			Mutation:                oc.Mutation,
			TournamentSize:          oc.TournamentSize,
			EliteCount:              oc.EliteCount,
			SwapProbability:         oc.SwapProbability,
			CrossoverProbability:    oc.CrossoverProbability,
			MutationProbability:     oc.MutationProbability,
			GeneMutationProbability: oc.GeneMutationProbability,
			MutationSigma:           oc.MutationSigma,
			CacheSize:               oc.CacheSize,
			TuneAttempts:            oc.TuneAttempts,
			TunePolicy:              oc.TunePolicy,
			TunePolicyParam:         oc.TunePolicyParam,
			TuneCandidateSelection:  oc.TuneCandidateSelection,
		},
		BestByGeneration:      summary.BestByGeneration,
		FinalBestFitness:      summary.BestFitness,
		FinalBestOutput:       summary.BestOutput,
		FinalBestFallback:     summary.BestFallback,
		BestWeights:           summary.BestWeights,
		TopIndividuals:        top,
		Lineage:               lineage,
		GenerationDiagnostics: summary.Diagnostics,
	})
	if err != nil {
		return "", err
	}
	err = stats.AppendRunIndex(baseDir, stats.RunIndexEntry{
		RunID:            run.ID,
		Scape:            run.Scape,
		Sense:            run.Sense,
		Population:       run.Population,
		Generations:      run.Generations,
		Seed:             run.Seed,
		Workers:          oc.Workers,
		TuningEnabled:    oc.TuneAttempts > 0,
		FinalBestFitness: summary.BestFitness,
		FinalBestOutput:  summary.BestOutput,
		FinalFallback:    summary.BestFallback,
		CreatedAtUTC:     time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return "", err
	}
	return runDir, nil
}

func runRuns(args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	artifactsDir := fs.String("artifacts-dir", "artifacts", "directory holding the run index")
	limit := fs.Int("limit", 10, "max runs to list (0 lists all)")
	exportDir := fs.String("export", "", "copy the artifacts of -run-id into this directory")
	runID := fs.String("run-id", "", "run to export")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *exportDir != "" {
		if *runID == "" {
			return errors.New("-export requires -run-id")
		}
		dst, err := stats.ExportRunArtifacts(*artifactsDir, *runID, *exportDir)
		if err != nil {
			return err
		}
		fmt.Printf("exported run_id=%s dir=%s\n", *runID, dst)
		return nil
	}

	entries, err := stats.ListRunIndex(*artifactsDir)
	if err != nil {
		return err
	}
	if *limit > 0 && len(entries) > *limit {
		entries = entries[:*limit]
	}
	for _, e := range entries {
		fmt.Printf("run_id=%s scape=%s sense=%s pop=%d gens=%d seed=%d best_fitness=%.6f best_output=%s created_at=%s\n",
			e.RunID, e.Scape, e.Sense, e.Population, e.Generations, e.Seed, e.FinalBestFitness,
			formatOutput(e.FinalBestOutput, e.FinalFallback), e.CreatedAtUTC)
	}
	return nil
}

func runCompute(args []string) error {
	fs := flag.NewFlagSet("compute", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional TOML system description (default: embedded)")
	diastolic := fs.Float64("diastolic", 0, "diastolic blood pressure")
	systolic := fs.Float64("systolic", 0, "systolic blood pressure")
	temperature := fs.Float64("temperature", 0, "body temperature")
	extra := inputPairs{}
	fs.Var(extra, "input", "additional input as name=value (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadOrDefaultConfig(*configPath)
	if err != nil {
		return err
	}
	client, err := healthapi.New(healthapi.Options{Config: &cfg})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	inputs := make(map[string]float64, len(cfg.Reference.Inputs))
	for name, x := range cfg.Reference.Inputs {
		inputs[name] = x
	}
	set := visitedFlags(fs)
	for name, value := range map[string]float64{"diastolic": *diastolic, "systolic": *systolic, "temperature": *temperature} {
		if set[name] {
			inputs[name] = value
		}
	}
	for name, value := range extra {
		inputs[name] = value
	}

	value, err := client.Compute(inputs)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(inputs))
	for name := range inputs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%s=%g ", name, inputs[name])
	}
	output := cfg.Reference.Output
	if output == "" {
		output = cfg.Consequent.Name
	}
	fmt.Printf("%s=%.6f\n", output, value)
	return nil
}

func runRules(args []string) error {
	fs := flag.NewFlagSet("rules", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional TOML system description (default: embedded)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadOrDefaultConfig(*configPath)
	if err != nil {
		return err
	}
	client, err := healthapi.New(healthapi.Options{Config: &cfg})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	rules := client.Rules()
	if len(rules) == 0 {
		return errors.New("rule table is empty")
	}
	for i, r := range rules {
		fmt.Printf("rule=%d %s\n", i, r)
	}
	fmt.Printf("rules=%d\n", len(rules))
	return nil
}

func formatWeights(weights []float64) string {
	parts := make([]string, len(weights))
	for i, w := range weights {
		parts[i] = strconv.FormatFloat(w, 'f', 4, 64)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// formatOutput renders a crisp output, or "none" when no rule fired and the
// value is a placeholder.
func formatOutput(output float64, fallback bool) string {
	if fallback {
		return "none"
	}
	return strconv.FormatFloat(output, 'f', 6, 64)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: healthfuzzctl [optimize|compute|rules|runs] [flags]", msg)
}
