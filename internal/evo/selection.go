package evo

import (
	"fmt"
	"math/rand"

	"healthfuzz/internal/model"
)

// TournamentSelector samples TournamentSize members with replacement and
// returns the best of them.
type TournamentSelector struct {
	TournamentSize int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

func (s TournamentSelector) Select(rng *rand.Rand, population []ScoredIndividual, sense Sense) (model.Individual, error) {
	if rng == nil {
		return model.Individual{}, fmt.Errorf("random source is required")
	}
	if len(population) == 0 {
		return model.Individual{}, fmt.Errorf("cannot select from an empty population")
	}
	tournamentSize := s.TournamentSize
	if tournamentSize <= 0 {
		tournamentSize = 3
	}

	best := population[rng.Intn(len(population))]
	for i := 1; i < tournamentSize; i++ {
		candidate := population[rng.Intn(len(population))]
		if sense.Better(candidate.Fitness, best.Fitness) {
			best = candidate
		}
	}
	return best.Individual.Clone(), nil
}

// EliteSelector picks uniformly among the EliteCount best members.
type EliteSelector struct {
	EliteCount int
}

func (EliteSelector) Name() string {
	return "elite"
}

func (s EliteSelector) Select(rng *rand.Rand, population []ScoredIndividual, sense Sense) (model.Individual, error) {
	if rng == nil {
		return model.Individual{}, fmt.Errorf("random source is required")
	}
	if len(population) == 0 {
		return model.Individual{}, fmt.Errorf("cannot select from an empty population")
	}
	eliteCount := s.EliteCount
	if eliteCount <= 0 || eliteCount > len(population) {
		eliteCount = len(population)
	}
	ranked := cloneScored(population)
	Rank(ranked, sense)
	return ranked[rng.Intn(eliteCount)].Individual, nil
}

// RandomSelector ignores fitness entirely.
type RandomSelector struct{}

func (RandomSelector) Name() string {
	return "random"
}

func (RandomSelector) Select(rng *rand.Rand, population []ScoredIndividual, _ Sense) (model.Individual, error) {
	if rng == nil {
		return model.Individual{}, fmt.Errorf("random source is required")
	}
	if len(population) == 0 {
		return model.Individual{}, fmt.Errorf("cannot select from an empty population")
	}
	return population[rng.Intn(len(population))].Individual.Clone(), nil
}
