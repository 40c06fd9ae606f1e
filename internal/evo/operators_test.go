package evo

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"healthfuzz/internal/fuzzy"
	"healthfuzz/internal/model"
)

func scoredPopulation(fitness ...float64) []ScoredIndividual {
	out := make([]ScoredIndividual, 0, len(fitness))
	for i, f := range fitness {
		out = append(out, ScoredIndividual{
			Individual: model.Individual{ID: fmt.Sprintf("i%d", i), Weights: []float64{f}},
			Fitness:    f,
		})
	}
	return out
}

func TestSenseBetter(t *testing.T) {
	if !Minimize.Better(1, 2) || Minimize.Better(2, 1) || Minimize.Better(1, 1) {
		t.Fatal("minimize comparison is wrong")
	}
	if !Maximize.Better(2, 1) || Maximize.Better(1, 2) {
		t.Fatal("maximize comparison is wrong")
	}
	if Minimize.Better(math.NaN(), 5) || !Minimize.Better(5, math.NaN()) {
		t.Fatal("NaN must lose every comparison")
	}
	if Minimize.Worst(10) != 10 || Maximize.Worst(10) != -10 {
		t.Fatal("unexpected worst values")
	}
}

func TestParseSense(t *testing.T) {
	for name, want := range map[string]Sense{"": Minimize, "minimize": Minimize, "MIN": Minimize, "maximize": Maximize, " max ": Maximize} {
		got, err := ParseSense(name)
		if err != nil || got != want {
			t.Fatalf("parse %q: got=%v err=%v", name, got, err)
		}
	}
	if _, err := ParseSense("sideways"); err == nil {
		t.Fatal("expected unsupported sense error")
	}
}

func TestRankIsStableBestFirst(t *testing.T) {
	pop := scoredPopulation(3, 1, 2, 1)
	Rank(pop, Minimize)
	if pop[0].Individual.ID != "i1" || pop[1].Individual.ID != "i3" || pop[3].Individual.ID != "i0" {
		t.Fatalf("unexpected minimize ranking: %+v", pop)
	}
	Rank(pop, Maximize)
	if pop[0].Fitness != 3 || pop[3].Fitness != 1 {
		t.Fatalf("unexpected maximize ranking: %+v", pop)
	}
}

func TestTournamentSelectorFavorsBetterUnderSense(t *testing.T) {
	pop := scoredPopulation(5, 4, 3, 2, 1, 0)
	rng := rand.New(rand.NewSource(3))

	counts := map[Sense]float64{}
	for _, sense := range []Sense{Minimize, Maximize} {
		selector := TournamentSelector{TournamentSize: 3}
		total := 0.0
		for i := 0; i < 400; i++ {
			parent, err := selector.Select(rng, pop, sense)
			if err != nil {
				t.Fatalf("select: %v", err)
			}
			total += parent.Weights[0]
		}
		counts[sense] = total / 400
	}
	if counts[Minimize] >= 2.5 || counts[Maximize] <= 2.5 {
		t.Fatalf("tournament is not biased by sense: %+v", counts)
	}

	if _, err := (TournamentSelector{}).Select(nil, pop, Minimize); err == nil {
		t.Fatal("expected missing rng error")
	}
	if _, err := (TournamentSelector{}).Select(rng, nil, Minimize); err == nil {
		t.Fatal("expected empty population error")
	}
}

func TestTournamentSelectorReturnsCopy(t *testing.T) {
	pop := scoredPopulation(1)
	parent, err := TournamentSelector{}.Select(rand.New(rand.NewSource(1)), pop, Minimize)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	parent.Weights[0] = 99
	if pop[0].Individual.Weights[0] != 1 {
		t.Fatal("selector leaked population storage")
	}
}

func TestEliteAndRandomSelectors(t *testing.T) {
	pop := scoredPopulation(5, 4, 3, 2, 1, 0)
	rng := rand.New(rand.NewSource(9))
	for i := 0; i < 50; i++ {
		parent, err := EliteSelector{EliteCount: 2}.Select(rng, pop, Minimize)
		if err != nil {
			t.Fatalf("elite select: %v", err)
		}
		if parent.Weights[0] > 1 {
			t.Fatalf("elite selector picked outside the top 2: %v", parent.Weights)
		}
	}
	seen := map[string]struct{}{}
	for i := 0; i < 200; i++ {
		parent, err := RandomSelector{}.Select(rng, pop, Minimize)
		if err != nil {
			t.Fatalf("random select: %v", err)
		}
		seen[parent.ID] = struct{}{}
	}
	if len(seen) != len(pop) {
		t.Fatalf("random selector did not cover the population: %d", len(seen))
	}
}

func TestTwoPointCrossoverSwapsOneSegment(t *testing.T) {
	a := []float64{0, 0, 0, 0, 0, 0, 0, 0}
	b := []float64{1, 1, 1, 1, 1, 1, 1, 1}
	rng := rand.New(rand.NewSource(4))
	for trial := 0; trial < 50; trial++ {
		c1, c2, err := TwoPointCrossover{}.Cross(rng, a, b)
		if err != nil {
			t.Fatalf("cross: %v", err)
		}
		transitions := 0
		for i := range c1 {
			if c1[i]+c2[i] != 1 {
				t.Fatalf("genes lost at %d: %v %v", i, c1, c2)
			}
			if i > 0 && c1[i] != c1[i-1] {
				transitions++
			}
		}
		if transitions > 2 {
			t.Fatalf("expected one contiguous swapped segment, got %v", c1)
		}
		if c1[0] != 0 {
			t.Fatalf("first cut point must be after index 0: %v", c1)
		}
	}
	if a[0] != 0 || b[0] != 1 {
		t.Fatal("parents were modified")
	}
	if _, _, err := (TwoPointCrossover{}).Cross(rng, a, b[:3]); err == nil {
		t.Fatal("expected length mismatch error")
	}
	c1, c2, err := TwoPointCrossover{}.Cross(rng, []float64{7}, []float64{9})
	if err != nil || c1[0] != 7 || c2[0] != 9 {
		t.Fatalf("single gene parents must pass through: %v %v %v", c1, c2, err)
	}
}

func TestUniformCrossoverPreservesGenes(t *testing.T) {
	a := []float64{0, 0, 0, 0, 0, 0}
	b := []float64{1, 1, 1, 1, 1, 1}
	c1, c2, err := UniformCrossover{}.Cross(rand.New(rand.NewSource(2)), a, b)
	if err != nil {
		t.Fatalf("cross: %v", err)
	}
	for i := range c1 {
		if c1[i]+c2[i] != 1 {
			t.Fatalf("genes lost at %d: %v %v", i, c1, c2)
		}
	}
}

func TestGaussianMutation(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	in := []float64{1, 2, 3, 4}

	out, err := GaussianMutation{Sigma: 1, GeneProbability: 0}.Mutate(rng, in)
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("expected no change with zero gene probability: %v", out)
		}
	}

	out, err = GaussianMutation{Mean: 0.5, Sigma: 0, GeneProbability: 1}.Mutate(rng, in)
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	for i := range in {
		if math.Abs(out[i]-(in[i]+0.5)) > 1e-12 {
			t.Fatalf("expected deterministic shift by mean: %v", out)
		}
	}

	out, err = GaussianMutation{Sigma: 1, GeneProbability: 1}.Mutate(rng, in)
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	for i := range in {
		if out[i] == in[i] || math.IsInf(out[i], 0) || math.IsNaN(out[i]) {
			t.Fatalf("expected finite perturbation of every gene: %v", out)
		}
	}
	if in[0] != 1 {
		t.Fatal("input was modified")
	}

	if _, err := (GaussianMutation{Sigma: -1}).Mutate(rng, in); err == nil {
		t.Fatal("expected sigma validation error")
	}
	if _, err := (GaussianMutation{Sigma: 1, GeneProbability: 2}).Mutate(rng, in); err == nil {
		t.Fatal("expected probability validation error")
	}
}

func TestUniformMutation(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	out, err := UniformMutation{Low: -1, High: 1, GeneProbability: 1}.Mutate(rng, []float64{5, 5, 5})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	for _, w := range out {
		if w < -1 || w >= 1 {
			t.Fatalf("gene outside [-1, 1): %v", out)
		}
	}
	if _, err := (UniformMutation{Low: 1, High: 1}).Mutate(rng, out); err == nil {
		t.Fatal("expected empty range error")
	}
}

func TestFallbackPolicy(t *testing.T) {
	policy := FallbackPolicy{}
	fitness, ok, err := policy.Recover(Minimize, fmt.Errorf("case 0: %w", fuzzy.ErrNoRuleFired))
	if err != nil || !ok || fitness != DefaultNoRuleFiredPenalty {
		t.Fatalf("unexpected recovery: %f %v %v", fitness, ok, err)
	}
	fitness, ok, err = FallbackPolicy{Penalty: 5}.Recover(Maximize, fuzzy.ErrNoRuleFired)
	if err != nil || !ok || fitness != -5 {
		t.Fatalf("unexpected maximize recovery: %f %v %v", fitness, ok, err)
	}
	other := errors.New("other")
	if _, ok, err := policy.Recover(Minimize, other); ok || !errors.Is(err, other) {
		t.Fatalf("non-fallback errors must pass through: %v %v", ok, err)
	}
}

func TestFitnessCache(t *testing.T) {
	cache, err := NewFitnessCache(2)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	cache.add([]float64{1, 2}, cachedEvaluation{fitness: 3})
	cache.add([]float64{0, 0}, cachedEvaluation{fitness: 4})
	if got, ok := cache.get([]float64{1, 2}); !ok || got.fitness != 3 {
		t.Fatalf("expected cached fitness 3, got %+v %v", got, ok)
	}
	if _, ok := cache.get([]float64{1, 2.0000001}); ok {
		t.Fatal("near-identical vectors must not collide")
	}
	cache.add([]float64{9}, cachedEvaluation{fitness: 9})
	if cache.Len() != 2 {
		t.Fatalf("expected bounded cache, got %d", cache.Len())
	}
	if _, err := NewFitnessCache(0); err == nil {
		t.Fatal("expected size validation error")
	}

	var disabled *FitnessCache
	disabled.add([]float64{1}, cachedEvaluation{})
	if _, ok := disabled.get([]float64{1}); ok || disabled.Len() != 0 {
		t.Fatal("nil cache must be a no-op")
	}
}
