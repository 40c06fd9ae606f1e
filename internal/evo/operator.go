package evo

import (
	"math/rand"

	"healthfuzz/internal/model"
)

// Selector chooses a parent from the current population.
type Selector interface {
	Name() string
	Select(rng *rand.Rand, population []ScoredIndividual, sense Sense) (model.Individual, error)
}

// Crossover recombines two parent weight vectors into two children. Inputs
// are never modified.
type Crossover interface {
	Name() string
	Cross(rng *rand.Rand, a, b []float64) ([]float64, []float64, error)
}

// Mutator perturbs a weight vector. The input is never modified.
type Mutator interface {
	Name() string
	Mutate(rng *rand.Rand, weights []float64) ([]float64, error)
}
