package evo

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrStrategyExists   = errors.New("strategy already registered")
	ErrStrategyNotFound = errors.New("strategy not found")
)

// StrategyParams carries the numeric knobs a named strategy may need when
// it is built from configuration.
type StrategyParams struct {
	TournamentSize  int
	EliteCount      int
	SwapProbability float64
	MutationMean    float64
	MutationSigma   float64
	GeneProbability float64
	UniformLow      float64
	UniformHigh     float64
}

type (
	SelectorFactory  func(StrategyParams) (Selector, error)
	CrossoverFactory func(StrategyParams) (Crossover, error)
	MutatorFactory   func(StrategyParams) (Mutator, error)
)

type strategyRegistry[F any] struct {
	kind string
	mu   sync.RWMutex
	m    map[string]F
}

func newStrategyRegistry[F any](kind string) *strategyRegistry[F] {
	return &strategyRegistry[F]{kind: kind, m: make(map[string]F)}
}

func (r *strategyRegistry[F]) register(name string, factory F, isNil bool) error {
	name = normalizeStrategyName(name)
	if name == "" {
		return fmt.Errorf("%s name is required", r.kind)
	}
	if isNil {
		return fmt.Errorf("%s factory is required", r.kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.m[name]; exists {
		return fmt.Errorf("%w: %s %s", ErrStrategyExists, r.kind, name)
	}
	r.m[name] = factory
	return nil
}

func (r *strategyRegistry[F]) lookup(name string) (F, error) {
	r.mu.RLock()
	factory, ok := r.m[normalizeStrategyName(name)]
	r.mu.RUnlock()
	if !ok {
		var zero F
		return zero, fmt.Errorf("%w: %s %s", ErrStrategyNotFound, r.kind, name)
	}
	return factory, nil
}

func (r *strategyRegistry[F]) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.m))
	for name := range r.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeStrategyName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
}

var (
	selectorRegistry  = newStrategyRegistry[SelectorFactory]("selector")
	crossoverRegistry = newStrategyRegistry[CrossoverFactory]("crossover")
	mutatorRegistry   = newStrategyRegistry[MutatorFactory]("mutator")
)

func init() {
	registerBuiltinStrategies()
}

func registerBuiltinStrategies() {
	mustRegister(RegisterSelector("tournament", func(p StrategyParams) (Selector, error) {
		if p.TournamentSize < 0 {
			return nil, fmt.Errorf("tournament size must be >= 0")
		}
		return TournamentSelector{TournamentSize: p.TournamentSize}, nil
	}))
	mustRegister(RegisterSelector("elite", func(p StrategyParams) (Selector, error) {
		if p.EliteCount < 0 {
			return nil, fmt.Errorf("elite count must be >= 0")
		}
		return EliteSelector{EliteCount: p.EliteCount}, nil
	}))
	mustRegister(RegisterSelector("random", func(StrategyParams) (Selector, error) {
		return RandomSelector{}, nil
	}))

	mustRegister(RegisterCrossover("two_point", func(StrategyParams) (Crossover, error) {
		return TwoPointCrossover{}, nil
	}))
	mustRegister(RegisterCrossover("uniform", func(p StrategyParams) (Crossover, error) {
		if p.SwapProbability < 0 || p.SwapProbability > 1 {
			return nil, fmt.Errorf("swap probability must be in [0, 1]")
		}
		return UniformCrossover{SwapProbability: p.SwapProbability}, nil
	}))

	mustRegister(RegisterMutator("gaussian", func(p StrategyParams) (Mutator, error) {
		m := GaussianMutation{Mean: p.MutationMean, Sigma: p.MutationSigma, GeneProbability: p.GeneProbability}
		if m.Sigma < 0 {
			return nil, fmt.Errorf("mutation sigma must be >= 0")
		}
		if m.GeneProbability < 0 || m.GeneProbability > 1 {
			return nil, fmt.Errorf("gene mutation probability must be in [0, 1]")
		}
		return m, nil
	}))
	mustRegister(RegisterMutator("uniform", func(p StrategyParams) (Mutator, error) {
		m := UniformMutation{Low: p.UniformLow, High: p.UniformHigh, GeneProbability: p.GeneProbability}
		if !(m.High > m.Low) {
			return nil, fmt.Errorf("uniform mutation requires high > low")
		}
		if m.GeneProbability < 0 || m.GeneProbability > 1 {
			return nil, fmt.Errorf("gene mutation probability must be in [0, 1]")
		}
		return m, nil
	}))
}

func mustRegister(err error) {
	if err != nil {
		panic(err)
	}
}

func RegisterSelector(name string, factory SelectorFactory) error {
	return selectorRegistry.register(name, factory, factory == nil)
}

func RegisterCrossover(name string, factory CrossoverFactory) error {
	return crossoverRegistry.register(name, factory, factory == nil)
}

func RegisterMutator(name string, factory MutatorFactory) error {
	return mutatorRegistry.register(name, factory, factory == nil)
}

// ResolveSelector builds the named selector. Names are case-insensitive and
// treat '-' and '_' alike.
func ResolveSelector(name string, params StrategyParams) (Selector, error) {
	factory, err := selectorRegistry.lookup(name)
	if err != nil {
		return nil, err
	}
	return factory(params)
}

func ResolveCrossover(name string, params StrategyParams) (Crossover, error) {
	factory, err := crossoverRegistry.lookup(name)
	if err != nil {
		return nil, err
	}
	return factory(params)
}

func ResolveMutator(name string, params StrategyParams) (Mutator, error) {
	factory, err := mutatorRegistry.lookup(name)
	if err != nil {
		return nil, err
	}
	return factory(params)
}

func ListSelectors() []string  { return selectorRegistry.names() }
func ListCrossovers() []string { return crossoverRegistry.names() }
func ListMutators() []string   { return mutatorRegistry.names() }
