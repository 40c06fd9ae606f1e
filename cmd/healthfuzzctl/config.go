package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"healthfuzz/internal/config"
	"healthfuzz/internal/tuning"
)

func loadOrDefaultConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default()
	}
	return config.LoadFile(path)
}

type optimizerFlags struct {
	population     *int
	offspring      *int
	generations    *int
	seed           *uint64
	workers        *int
	cxpb           *float64
	mutpb          *float64
	indpb          *float64
	sigma          *float64
	sense          *string
	selection      *string
	crossover      *string
	mutation       *string
	tournament     *int
	elite          *int
	swapProb       *float64
	cacheSize      *int
	tuneAttempts   *int
	tunePolicy     *string
	tuneParam      *float64
	tuneCandidates *string
	tunePerturb    *float64
	tuneAnnealing  *float64
	tuneMinImprove *float64
}

// registerOptimizerFlags declares one flag per overridable optimizer key.
// The defaults are only shown in help output; values apply only when set.
func registerOptimizerFlags(fs *flag.FlagSet) *optimizerFlags {
	d := config.DefaultOptimizer()
	return &optimizerFlags{
		population:   fs.Int("pop", d.Population, "population size (mu)"),
		offspring:    fs.Int("offspring", d.Offspring, "offspring per generation (lambda)"),
		generations:  fs.Int("gens", d.Generations, "generation count"),
		seed:         fs.Uint64("seed", d.Seed, "random seed"),
		workers:      fs.Int("workers", d.Workers, "parallel fitness evaluations"),
		cxpb:         fs.Float64("cxpb", d.CrossoverProbability, "crossover probability"),
		mutpb:        fs.Float64("mutpb", d.MutationProbability, "offspring mutation probability"),
		indpb:        fs.Float64("indpb", d.GeneMutationProbability, "per-gene mutation probability"),
		sigma:        fs.Float64("sigma", d.MutationSigma, "gaussian mutation sigma"),
		sense:        fs.String("sense", d.Sense, "optimization sense: minimize|maximize"),
		selection:    fs.String("selection", d.Selection, "parent selection: tournament|elite|random"),
		crossover:    fs.String("crossover", d.Crossover, "crossover: two_point|uniform"),
		mutation:     fs.String("mutation", d.Mutation, "mutation: gaussian|uniform"),
		tournament:   fs.Int("tournament", d.TournamentSize, "tournament size"),
		elite:        fs.Int("elite", d.EliteCount, "elite selection pool size (0 uses the whole population)"),
		swapProb:     fs.Float64("swap-prob", d.SwapProbability, "uniform crossover per-gene swap probability"),
		cacheSize:    fs.Int("cache-size", d.CacheSize, "fitness cache entries (0 disables)"),
		tuneAttempts: fs.Int("tune-attempts", d.TuneAttempts, "hill-climb attempts per offspring (0 disables)"),
		tunePolicy:   fs.String("tune-policy", d.TunePolicy, "tuning attempt policy: fixed|linear_decay|size_proportional"),
		tuneParam:    fs.Float64("tune-param", d.TunePolicyParam, "attempt policy parameter (linear_decay minimum, size_proportional exponent)"),
		tuneCandidates: fs.String("tune-candidates", d.TuneCandidateSelection,
			"hill-climb candidate bases: "+strings.Join(tuning.CandidateSelections(), "|")),
		tunePerturb:    fs.Float64("tune-perturbation", d.TunePerturbationRange, "hill-climb perturbation range multiplier"),
		tuneAnnealing:  fs.Float64("tune-annealing", d.TuneAnnealingFactor, "hill-climb per-step annealing factor"),
		tuneMinImprove: fs.Float64("tune-min-improvement", d.TuneMinImprovement, "minimum fitness gain to accept a candidate"),
	}
}

func (f *optimizerFlags) values() map[string]any {
	return map[string]any{
		"pop":                  *f.population,
		"offspring":            *f.offspring,
		"gens":                 *f.generations,
		"seed":                 *f.seed,
		"workers":              *f.workers,
		"cxpb":                 *f.cxpb,
		"mutpb":                *f.mutpb,
		"indpb":                *f.indpb,
		"sigma":                *f.sigma,
		"sense":                *f.sense,
		"selection":            *f.selection,
		"crossover":            *f.crossover,
		"mutation":             *f.mutation,
		"tournament":           *f.tournament,
		"elite":                *f.elite,
		"swap-prob":            *f.swapProb,
		"cache-size":           *f.cacheSize,
		"tune-attempts":        *f.tuneAttempts,
		"tune-policy":          *f.tunePolicy,
		"tune-param":           *f.tuneParam,
		"tune-candidates":      *f.tuneCandidates,
		"tune-perturbation":    *f.tunePerturb,
		"tune-annealing":       *f.tuneAnnealing,
		"tune-min-improvement": *f.tuneMinImprove,
	}
}

func overrideFromFlags(oc *config.OptimizerConfig, set map[string]bool, flagValue map[string]any) error {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "pop":
			oc.Population = v.(int)
		case "offspring":
			oc.Offspring = v.(int)
		case "gens":
			oc.Generations = v.(int)
		case "seed":
			oc.Seed = v.(uint64)
		case "workers":
			oc.Workers = v.(int)
		case "cxpb":
			oc.CrossoverProbability = v.(float64)
		case "mutpb":
			oc.MutationProbability = v.(float64)
		case "indpb":
			oc.GeneMutationProbability = v.(float64)
		case "sigma":
			oc.MutationSigma = v.(float64)
		case "sense":
			oc.Sense = v.(string)
		case "selection":
			oc.Selection = v.(string)
		case "crossover":
			oc.Crossover = v.(string)
		case "mutation":
			oc.Mutation = v.(string)
		case "tournament":
			oc.TournamentSize = v.(int)
		case "elite":
			oc.EliteCount = v.(int)
		case "swap-prob":
			oc.SwapProbability = v.(float64)
		case "cache-size":
			oc.CacheSize = v.(int)
		case "tune-attempts":
			oc.TuneAttempts = v.(int)
		case "tune-policy":
			oc.TunePolicy = v.(string)
		case "tune-param":
			oc.TunePolicyParam = v.(float64)
		case "tune-candidates":
			oc.TuneCandidateSelection = v.(string)
		case "tune-perturbation":
			oc.TunePerturbationRange = v.(float64)
		case "tune-annealing":
			oc.TuneAnnealingFactor = v.(float64)
		case "tune-min-improvement":
			oc.TuneMinImprovement = v.(float64)
		default:
			return fmt.Errorf("unsupported override flag: %s", name)
		}
	}
	return oc.Validate()
}

func visitedFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return set
}

// inputPairs collects repeated name=value flags.
type inputPairs map[string]float64

func (p inputPairs) String() string {
	parts := make([]string, 0, len(p))
	for k, v := range p {
		parts = append(parts, fmt.Sprintf("%s=%g", k, v))
	}
	return strings.Join(parts, ",")
}

func (p inputPairs) Set(raw string) error {
	name, value, ok := strings.Cut(raw, "=")
	if !ok || strings.TrimSpace(name) == "" {
		return fmt.Errorf("input must be name=value: %q", raw)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("input %s: %w", name, err)
	}
	p[strings.TrimSpace(name)] = x
	return nil
}
