// Package config loads the declarative description of a fuzzy risk system:
// its linguistic variables, rule table, optimizer settings and the reference
// scenario the optimizer tunes against.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"
)

//go:embed default.toml
var defaultTOML []byte

type UniverseConfig struct {
	Start float64 `toml:"start"`
	Stop  float64 `toml:"stop"`
	Step  float64 `toml:"step"`
}

type TermConfig struct {
	Label  string    `toml:"label"`
	Points []float64 `toml:"points"`
}

type VariableConfig struct {
	Name        string         `toml:"name"`
	Description string         `toml:"description,omitempty"`
	Universe    UniverseConfig `toml:"universe"`
	Terms       []TermConfig   `toml:"terms,omitempty"`
	// Partition generates evenly spread triangular terms for the listed
	// labels. It is used only when Terms is empty.
	Partition []string `toml:"partition,omitempty"`
}

type RuleConfig struct {
	When [][]string `toml:"when"`
	Then []string   `toml:"then"`
}

type RuleBaseConfig struct {
	Rules []RuleConfig `toml:"rules"`
}

type OptimizerConfig struct {
	Population              int     `toml:"population"`
	Offspring               int     `toml:"offspring"`
	Generations             int     `toml:"generations"`
	CrossoverProbability    float64 `toml:"crossover_probability"`
	MutationProbability     float64 `toml:"mutation_probability"`
	GeneMutationProbability float64 `toml:"gene_mutation_probability"`
	MutationMean            float64 `toml:"mutation_mean"`
	MutationSigma           float64 `toml:"mutation_sigma"`
	TournamentSize          int     `toml:"tournament_size"`
	EliteCount              int     `toml:"elite_count"`
	SwapProbability         float64 `toml:"swap_probability"`
	InitMin                 float64 `toml:"init_min"`
	InitMax                 float64 `toml:"init_max"`
	Sense                   string  `toml:"sense"`
	Selection               string  `toml:"selection"`
	Crossover               string  `toml:"crossover"`
	Mutation                string  `toml:"mutation"`
	Seed                    uint64  `toml:"seed"`
	Workers                 int     `toml:"workers"`
	NoRuleFiredPenalty      float64 `toml:"no_rule_fired_penalty"`
	CacheSize               int     `toml:"cache_size"`
	TuneAttempts            int     `toml:"tune_attempts"`
	TunePolicy              string  `toml:"tune_policy"`
	TunePolicyParam         float64 `toml:"tune_policy_param"`
	TuneSteps               int     `toml:"tune_steps"`
	TuneStepSize            float64 `toml:"tune_step_size"`
	TuneCandidateSelection  string  `toml:"tune_candidate_selection"`
	TunePerturbationRange   float64 `toml:"tune_perturbation_range"`
	TuneAnnealingFactor     float64 `toml:"tune_annealing_factor"`
	TuneMinImprovement      float64 `toml:"tune_min_improvement"`
}

type ReferenceConfig struct {
	Output string             `toml:"output"`
	Target float64            `toml:"target"`
	Inputs map[string]float64 `toml:"inputs"`
}

type Config struct {
	Antecedents []VariableConfig `toml:"antecedent"`
	Consequent  VariableConfig   `toml:"consequent"`
	Optimizer   OptimizerConfig  `toml:"optimizer"`
	Reference   ReferenceConfig  `toml:"reference"`
	RuleBase    RuleBaseConfig   `toml:"rulebase"`
}

// Default decodes the embedded health-care system.
func Default() (Config, error) {
	cfg, err := Load(bytes.NewReader(defaultTOML))
	if err != nil {
		return Config{}, fmt.Errorf("embedded default: %w", err)
	}
	return cfg, nil
}

// DefaultTOML returns a copy of the embedded configuration text.
func DefaultTOML() []byte {
	return append([]byte(nil), defaultTOML...)
}

// DefaultOptimizer mirrors the embedded [optimizer] section. Documents that
// omit optimizer keys inherit these values.
func DefaultOptimizer() OptimizerConfig {
	return OptimizerConfig{
		Population:              10,
		Offspring:               10,
		Generations:             10,
		CrossoverProbability:    0.7,
		MutationProbability:     1.0,
		GeneMutationProbability: 0.2,
		MutationMean:            0,
		MutationSigma:           1,
		TournamentSize:          3,
		EliteCount:              3,
		SwapProbability:         0.5,
		InitMin:                 0,
		InitMax:                 1,
		Sense:                   "minimize",
		Selection:               "tournament",
		Crossover:               "two_point",
		Mutation:                "gaussian",
		Seed:                    1,
		Workers:                 4,
		NoRuleFiredPenalty:      1e6,
		CacheSize:               1024,
		TunePolicy:              "fixed",
		TunePolicyParam:         0,
		TuneSteps:               4,
		TuneStepSize:            0.1,
		TuneCandidateSelection:  "best_so_far",
		TunePerturbationRange:   1,
		TuneAnnealingFactor:     1,
		TuneMinImprovement:      0,
	}
}

// Load strictly decodes a TOML document; unknown keys are rejected.
func Load(r io.Reader) (Config, error) {
	cfg := Config{Optimizer: DefaultOptimizer()}
	if err := toml.NewDecoder(r).DisallowUnknownFields().Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("decode config: %s", strict.String())
		}
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func LoadFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	cfg, err := Load(f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks structural consistency that does not need the fuzzy
// machinery. Shapes, labels and rules are checked by Build.
func (c Config) Validate() error {
	if len(c.Antecedents) == 0 {
		return errors.New("at least one antecedent is required")
	}
	if c.Consequent.Name == "" {
		return errors.New("consequent name is required")
	}
	seen := map[string]struct{}{c.Consequent.Name: {}}
	for _, v := range c.Antecedents {
		if v.Name == "" {
			return errors.New("antecedent name is required")
		}
		if _, ok := seen[v.Name]; ok {
			return fmt.Errorf("duplicate variable name: %s", v.Name)
		}
		seen[v.Name] = struct{}{}
	}
	if len(c.RuleBase.Rules) == 0 {
		return errors.New("rulebase requires at least one rule")
	}
	if c.Reference.Output != "" && c.Reference.Output != c.Consequent.Name {
		return fmt.Errorf("reference output %s is not the consequent %s", c.Reference.Output, c.Consequent.Name)
	}
	return c.Optimizer.Validate()
}

// Validate checks the ranges the optimizer cannot recover from. Strategy
// names are resolved later.
func (o OptimizerConfig) Validate() error {
	if o.Population <= 0 {
		return errors.New("optimizer population must be > 0")
	}
	if o.Offspring < 0 {
		return errors.New("optimizer offspring must be >= 0")
	}
	if o.Generations <= 0 {
		return errors.New("optimizer generations must be > 0")
	}
	for name, p := range map[string]float64{
		"crossover_probability":     o.CrossoverProbability,
		"mutation_probability":      o.MutationProbability,
		"gene_mutation_probability": o.GeneMutationProbability,
	} {
		if p < 0 || p > 1 {
			return fmt.Errorf("optimizer %s must be in [0, 1]: %g", name, p)
		}
	}
	if o.MutationSigma < 0 {
		return errors.New("optimizer mutation_sigma must be >= 0")
	}
	if o.InitMax < o.InitMin {
		return fmt.Errorf("optimizer init range is empty: [%g, %g]", o.InitMin, o.InitMax)
	}
	if o.Workers < 0 || o.CacheSize < 0 || o.TuneAttempts < 0 {
		return errors.New("optimizer workers, cache_size and tune_attempts must be >= 0")
	}
	if o.SwapProbability <= 0 || o.SwapProbability > 1 {
		return fmt.Errorf("optimizer swap_probability must be in (0, 1]: %g", o.SwapProbability)
	}
	if o.EliteCount < 0 {
		return errors.New("optimizer elite_count must be >= 0")
	}
	if o.TunePerturbationRange < 0 || o.TuneAnnealingFactor < 0 || o.TuneMinImprovement < 0 {
		return errors.New("optimizer tune_perturbation_range, tune_annealing_factor and tune_min_improvement must be >= 0")
	}
	return nil
}
