package evo

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"healthfuzz/internal/model"
)

type firstSelector struct{}

func (firstSelector) Name() string { return "first" }

func (firstSelector) Select(_ *rand.Rand, population []ScoredIndividual, _ Sense) (model.Individual, error) {
	return population[0].Individual.Clone(), nil
}

func TestBuiltinStrategiesAreRegistered(t *testing.T) {
	if got := ListSelectors(); !reflect.DeepEqual(got, []string{"elite", "random", "tournament"}) {
		t.Fatalf("unexpected selectors: %v", got)
	}
	if got := ListCrossovers(); !reflect.DeepEqual(got, []string{"two_point", "uniform"}) {
		t.Fatalf("unexpected crossovers: %v", got)
	}
	if got := ListMutators(); !reflect.DeepEqual(got, []string{"gaussian", "uniform"}) {
		t.Fatalf("unexpected mutators: %v", got)
	}
}

func TestResolveStrategiesFromParams(t *testing.T) {
	params := StrategyParams{TournamentSize: 5, MutationMean: 0.1, MutationSigma: 0.5, GeneProbability: 0.3}

	selector, err := ResolveSelector("Tournament", params)
	if err != nil {
		t.Fatalf("resolve selector: %v", err)
	}
	if ts, ok := selector.(TournamentSelector); !ok || ts.TournamentSize != 5 {
		t.Fatalf("unexpected selector: %#v", selector)
	}

	crossover, err := ResolveCrossover("two-point", params)
	if err != nil {
		t.Fatalf("resolve crossover: %v", err)
	}
	if crossover.Name() != "two_point" {
		t.Fatalf("unexpected crossover: %s", crossover.Name())
	}

	mutator, err := ResolveMutator("gaussian", params)
	if err != nil {
		t.Fatalf("resolve mutator: %v", err)
	}
	if gm, ok := mutator.(GaussianMutation); !ok || gm.Sigma != 0.5 || gm.Mean != 0.1 || gm.GeneProbability != 0.3 {
		t.Fatalf("unexpected mutator: %#v", mutator)
	}
}

func TestResolveStrategyValidation(t *testing.T) {
	if _, err := ResolveSelector("roulette", StrategyParams{}); !errors.Is(err, ErrStrategyNotFound) {
		t.Fatalf("expected ErrStrategyNotFound, got %v", err)
	}
	if _, err := ResolveMutator("gaussian", StrategyParams{MutationSigma: -1}); err == nil {
		t.Fatal("expected sigma validation error")
	}
	if _, err := ResolveMutator("uniform", StrategyParams{UniformLow: 1, UniformHigh: 0}); err == nil {
		t.Fatal("expected uniform range validation error")
	}
	if _, err := ResolveCrossover("uniform", StrategyParams{SwapProbability: 2}); err == nil {
		t.Fatal("expected swap probability validation error")
	}
}

func TestRegisterSelector(t *testing.T) {
	t.Cleanup(resetStrategyRegistriesForTests)

	factory := func(StrategyParams) (Selector, error) { return firstSelector{}, nil }
	if err := RegisterSelector("first", factory); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := RegisterSelector("FIRST", factory); !errors.Is(err, ErrStrategyExists) {
		t.Fatalf("expected ErrStrategyExists, got %v", err)
	}
	if err := RegisterSelector("", factory); err == nil {
		t.Fatal("expected empty name error")
	}
	if err := RegisterSelector("nil", nil); err == nil {
		t.Fatal("expected nil factory error")
	}

	selector, err := ResolveSelector("first", StrategyParams{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	parent, err := selector.Select(nil, scoredPopulation(7, 1), Minimize)
	if err != nil || parent.Weights[0] != 7 {
		t.Fatalf("unexpected parent: %+v %v", parent, err)
	}
}
