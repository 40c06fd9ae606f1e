package platform

import (
	"fmt"
	"math/rand"

	"healthfuzz/internal/config"
	"healthfuzz/internal/evo"
	"healthfuzz/internal/fuzzy"
	"healthfuzz/internal/scape"
	"healthfuzz/internal/tuning"
)

// OptimizerConfigFrom resolves the named strategies of a declarative
// optimizer section into an evo.OptimizerConfig for s.
func OptimizerConfigFrom(oc config.OptimizerConfig, s scape.Scape, genes int) (evo.OptimizerConfig, error) {
	sense, err := evo.ParseSense(oc.Sense)
	if err != nil {
		return evo.OptimizerConfig{}, err
	}
	params := evo.StrategyParams{
		TournamentSize:  oc.TournamentSize,
		EliteCount:      oc.EliteCount,
		SwapProbability: oc.SwapProbability,
		MutationMean:    oc.MutationMean,
		MutationSigma:   oc.MutationSigma,
		GeneProbability: oc.GeneMutationProbability,
		UniformLow:      oc.InitMin,
		UniformHigh:     oc.InitMax,
	}
	selector, err := evo.ResolveSelector(defaultName(oc.Selection, "tournament"), params)
	if err != nil {
		return evo.OptimizerConfig{}, err
	}
	crossover, err := evo.ResolveCrossover(defaultName(oc.Crossover, "two_point"), params)
	if err != nil {
		return evo.OptimizerConfig{}, err
	}
	mutator, err := evo.ResolveMutator(defaultName(oc.Mutation, "gaussian"), params)
	if err != nil {
		return evo.OptimizerConfig{}, err
	}

	var cache *evo.FitnessCache
	if oc.CacheSize > 0 {
		cache, err = evo.NewFitnessCache(oc.CacheSize)
		if err != nil {
			return evo.OptimizerConfig{}, fmt.Errorf("fitness cache: %w", err)
		}
	}

	seed := int64(oc.Seed)
	cfg := evo.OptimizerConfig{
		Scape:                s,
		Genes:                genes,
		PopulationSize:       oc.Population,
		OffspringSize:        oc.Offspring,
		Generations:          oc.Generations,
		CrossoverProbability: oc.CrossoverProbability,
		MutationProbability:  oc.MutationProbability,
		InitMin:              oc.InitMin,
		InitMax:              oc.InitMax,
		Sense:                sense,
		Selector:             selector,
		Crossover:            crossover,
		Mutator:              mutator,
		Fallback:             evo.FallbackPolicy{Penalty: oc.NoRuleFiredPenalty},
		Seed:                 seed,
		Workers:              oc.Workers,
		Cache:                cache,
	}

	if oc.TuneAttempts > 0 {
		policy, err := tuning.AttemptPolicyFromConfig(oc.TunePolicy, oc.TunePolicyParam)
		if err != nil {
			return evo.OptimizerConfig{}, err
		}
		mode, err := tuning.ParseCandidateSelection(oc.TuneCandidateSelection)
		if err != nil {
			return evo.OptimizerConfig{}, err
		}
		cfg.Tuner = &tuning.Exoself{
			Rand:               rand.New(rand.NewSource(seed + 1)),
			Steps:              oc.TuneSteps,
			StepSize:           oc.TuneStepSize,
			PerturbationRange:  oc.TunePerturbationRange,
			AnnealingFactor:    oc.TuneAnnealingFactor,
			MinImprovement:     oc.TuneMinImprovement,
			CandidateSelection: mode,
		}
		cfg.TuneAttempts = oc.TuneAttempts
		cfg.TuneAttemptPolicy = policy
	}
	return cfg, nil
}

// ReferenceScapeFrom builds the engine described by cfg and the scape that
// scores it against the configured reference scenario.
func ReferenceScapeFrom(cfg config.Config) (*scape.ReferenceScape, *fuzzy.Engine, error) {
	engine, err := cfg.BuildEngine()
	if err != nil {
		return nil, nil, err
	}
	s, err := scape.NewReferenceScape(engine, cfg.Reference.Output, []scape.Case{{
		Inputs: cfg.Reference.Inputs,
		Target: cfg.Reference.Target,
	}})
	if err != nil {
		return nil, nil, fmt.Errorf("reference scenario: %w", err)
	}
	return s, engine, nil
}

func defaultName(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
